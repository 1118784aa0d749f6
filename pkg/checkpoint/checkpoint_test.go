package checkpoint

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestJournalRecordAndLoad(t *testing.T) {
	mgr, err := NewManager(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	loaded, err := mgr.Load("nasa")
	if err != nil {
		t.Fatalf("Load on empty journal failed: %v", err)
	}
	if loaded != nil {
		t.Fatal("Expected nil entry before any run")
	}

	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	entry := &Entry{
		Entity:     "nasa",
		RunID:      "run-1",
		State:      "SYNCED",
		StagingDir: "dados/nasa",
		Uploaded:   []string{"nasa/profile_info.json", "nasa/profile_pic.jpg"},
		StartedAt:  start,
		FinishedAt: start.Add(3 * time.Second),
	}
	if err := mgr.Record(entry); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	loaded, err = mgr.Load("nasa")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.RunID != "run-1" || loaded.State != "SYNCED" {
		t.Errorf("Unexpected entry: %+v", loaded)
	}
	if loaded.Runs != 1 {
		t.Errorf("Expected 1 run, got %d", loaded.Runs)
	}
	if loaded.Duration() != 3*time.Second {
		t.Errorf("Expected 3s duration, got %v", loaded.Duration())
	}
	if _, err := os.Stat(mgr.Path("nasa") + ".tmp"); !os.IsNotExist(err) {
		t.Error("Temporary file should not remain after Record")
	}
}

func TestJournalCountsRuns(t *testing.T) {
	mgr, err := NewManager(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if err := mgr.Record(&Entry{Entity: "nasa", State: "FAILED", Error: "boom"}); err != nil {
			t.Fatal(err)
		}
	}

	loaded, _ := mgr.Load("nasa")
	if loaded.Runs != 3 {
		t.Errorf("Expected 3 runs, got %d", loaded.Runs)
	}
}

func TestJournalRecordReplacesCorruptEntry(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "nasa"+journalSuffix), []byte("{broken"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := mgr.Record(&Entry{Entity: "nasa", State: "STAGED"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	loaded, err := mgr.Load("nasa")
	if err != nil || loaded.Runs != 1 {
		t.Errorf("Expected fresh entry, got %+v (%v)", loaded, err)
	}
}

func TestJournalListAndDelete(t *testing.T) {
	mgr, err := NewManager(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range []string{"nasa", "instagram", "cristiano"} {
		if err := mgr.Record(&Entry{Entity: e, State: "SYNCED"}); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := mgr.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 || entries[0].Entity != "cristiano" || entries[2].Entity != "nasa" {
		t.Errorf("Unexpected list order: %v", entries)
	}

	if err := mgr.Delete("nasa"); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Delete("nasa"); err != nil {
		t.Errorf("Deleting a missing entry should succeed, got %v", err)
	}
	if e, _ := mgr.Load("nasa"); e != nil {
		t.Error("Expected entry to be gone")
	}
}

func TestRecordRequiresEntity(t *testing.T) {
	mgr, err := NewManager(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := mgr.Record(&Entry{}); err == nil {
		t.Error("Expected error for entry without entity")
	}
}

func TestDefaultDirectoryUsesXDG(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_DATA_HOME only applies on linux")
	}
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	mgr, err := NewManager("", nil)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	if filepath.Base(mgr.dir) != "runs" {
		t.Errorf("Expected runs directory, got %s", mgr.dir)
	}
}
