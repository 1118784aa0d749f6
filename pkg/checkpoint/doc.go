// Package checkpoint journals the outcome of acquisition runs.
//
// After every run the orchestrator records the terminal state, the run ID,
// the originating error (if any) and the uploaded keys for the entity. The
// status command reads the journal back. Entries are written atomically
// through a temporary file and rename.
//
// Journals default to platform-specific data directories:
//   - Linux: ~/.local/share/igsync/runs/
//   - macOS: ~/Library/Application Support/igsync/runs/
//   - Windows: %APPDATA%/igsync/runs/
package checkpoint
