package instagram

import (
	"time"

	"igsync/pkg/metadata"
)

// profileResponse is the envelope returned by web_profile_info.
type profileResponse struct {
	RequiresToLogin bool   `json:"requires_to_login"`
	Message         string `json:"message"`
	Data            struct {
		User *User `json:"user"`
	} `json:"data"`
	Status string `json:"status"`
}

// User represents an Instagram user profile
type User struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	FullName        string `json:"full_name"`
	Biography       string `json:"biography"`
	IsPrivate       bool   `json:"is_private"`
	IsVerified      bool   `json:"is_verified"`
	ProfilePicURL   string `json:"profile_pic_url"`
	ProfilePicURLHD string `json:"profile_pic_url_hd"`
	EdgeFollowedBy  count  `json:"edge_followed_by"`
	EdgeFollow      count  `json:"edge_follow"`
	EdgeMedia       count  `json:"edge_owner_to_timeline_media"`
}

type count struct {
	Count int `json:"count"`
}

// Record converts the user to a profile record captured at capturedAt.
// The HD avatar is preferred when the provider returns one.
func (u *User) Record(capturedAt time.Time) *metadata.ProfileRecord {
	pic := u.ProfilePicURLHD
	if pic == "" {
		pic = u.ProfilePicURL
	}
	return &metadata.ProfileRecord{
		Username:      u.Username,
		FullName:      u.FullName,
		Biography:     u.Biography,
		MediaCount:    u.EdgeMedia.Count,
		Followers:     u.EdgeFollowedBy.Count,
		Followees:     u.EdgeFollow.Count,
		IsPrivate:     u.IsPrivate,
		IsVerified:    u.IsVerified,
		ProfilePicURL: pic,
		CapturedAt:    capturedAt.UTC().Truncate(time.Second),
	}
}

// loginResponse is the body of the login form exchange.
type loginResponse struct {
	Authenticated     bool   `json:"authenticated"`
	User              bool   `json:"user"`
	UserID            string `json:"userId"`
	Status            string `json:"status"`
	Message           string `json:"message"`
	TwoFactorRequired bool   `json:"two_factor_required"`
	CheckpointURL     string `json:"checkpoint_url"`
}
