// Package testutil provides an in-process fake of the provider's web API for
// end-to-end tests of the acquisition pipeline.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"

	"igsync/pkg/instagram"
)

// JPEG is a minimal JPEG payload served as every avatar.
var JPEG = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01, 0x01, 0x00, 0xFF, 0xD9}

// Profile is a profile served by the mock.
type Profile struct {
	Username   string
	FullName   string
	Biography  string
	Followers  int
	Followees  int
	MediaCount int
	IsPrivate  bool
	IsVerified bool
}

// MockInstagramServer simulates the login, profile and avatar endpoints.
type MockInstagramServer struct {
	server *httptest.Server

	mu        sync.RWMutex
	profiles  map[string]Profile
	failures  map[string][]int // per-username queue of status codes to answer with
	password  string
	twoFactor bool

	requestCount int32
	profileHits  map[string]int
	loginCount   int32
}

// SessionID is the sessionid cookie value issued by a successful login.
const SessionID = "mock-session-id"

// NewMockInstagramServer starts a mock accepting password for every login.
func NewMockInstagramServer(password string) *MockInstagramServer {
	m := &MockInstagramServer{
		profiles:    make(map[string]Profile),
		failures:    make(map[string][]int),
		profileHits: make(map[string]int),
		password:    password,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(instagram.ProfileEndpoint, m.handleProfile)
	mux.HandleFunc("/avatars/", m.handleAvatar)
	mux.HandleFunc(instagram.LoginPageEndpoint, m.handleLoginPage)
	mux.HandleFunc(instagram.LoginEndpoint, m.handleLogin)

	m.server = httptest.NewServer(m.count(mux))
	return m
}

// URL returns the base URL of the mock.
func (m *MockInstagramServer) URL() string {
	return m.server.URL
}

// Close shuts the mock down.
func (m *MockInstagramServer) Close() {
	m.server.Close()
}

// AddProfile makes p available.
func (m *MockInstagramServer) AddProfile(p Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.Username] = p
}

// FailNext makes the next len(statuses) profile requests for username answer
// with the given status codes.
func (m *MockInstagramServer) FailNext(username string, statuses ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[username] = append(m.failures[username], statuses...)
}

// RequireTwoFactor makes every login answer with a two-factor challenge.
func (m *MockInstagramServer) RequireTwoFactor(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.twoFactor = on
}

// ProfileHits returns how many profile requests were made for username.
func (m *MockInstagramServer) ProfileHits(username string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.profileHits[username]
}

// RequestCount returns the total number of requests served.
func (m *MockInstagramServer) RequestCount() int {
	return int(atomic.LoadInt32(&m.requestCount))
}

// LoginCount returns the number of login form posts.
func (m *MockInstagramServer) LoginCount() int {
	return int(atomic.LoadInt32(&m.loginCount))
}

func (m *MockInstagramServer) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&m.requestCount, 1)
		next.ServeHTTP(w, r)
	})
}

func (m *MockInstagramServer) handleProfile(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")

	m.mu.Lock()
	m.profileHits[username]++
	var status int
	if queue := m.failures[username]; len(queue) > 0 {
		status, m.failures[username] = queue[0], queue[1:]
	}
	p, ok := m.profiles[username]
	m.mu.Unlock()

	if status != 0 {
		writeJSON(w, status, map[string]interface{}{"message": http.StatusText(status), "status": "fail"})
		return
	}

	if c, err := r.Cookie("sessionid"); err != nil || c.Value == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"requires_to_login": true, "status": "fail"})
		return
	}

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"message": "User not found", "status": "fail"})
		return
	}

	avatar := m.server.URL + "/avatars/" + p.Username + ".jpg"
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"user": map[string]interface{}{
				"username":                     p.Username,
				"full_name":                    p.FullName,
				"biography":                    p.Biography,
				"is_private":                   p.IsPrivate,
				"is_verified":                  p.IsVerified,
				"profile_pic_url":              avatar + "?s=150",
				"profile_pic_url_hd":           avatar,
				"edge_followed_by":             map[string]int{"count": p.Followers},
				"edge_follow":                  map[string]int{"count": p.Followees},
				"edge_owner_to_timeline_media": map[string]int{"count": p.MediaCount},
			},
		},
		"status": "ok",
	})
}

func (m *MockInstagramServer) handleAvatar(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/avatars/"), ".jpg")

	m.mu.RLock()
	_, ok := m.profiles[name]
	m.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	_, _ = w.Write(JPEG)
}

func (m *MockInstagramServer) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "mock-csrf", Path: "/"})
	w.WriteHeader(http.StatusOK)
}

func (m *MockInstagramServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&m.loginCount, 1)
	if r.Method != http.MethodPost || r.ParseForm() != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"status": "fail"})
		return
	}

	m.mu.RLock()
	password, twoFactor := m.password, m.twoFactor
	m.mu.RUnlock()

	if twoFactor {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"two_factor_required": true,
			"status":              "fail",
		})
		return
	}
	if !strings.HasSuffix(r.PostForm.Get("enc_password"), ":"+password) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"authenticated": false,
			"user":          true,
			"status":        "ok",
		})
		return
	}

	http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: SessionID, Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated": true,
		"user":          true,
		"userId":        "1",
		"status":        "ok",
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
