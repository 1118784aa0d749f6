package acquisition

// State is a step of an acquisition run.
type State int

const (
	StateStart State = iota
	StateSessionReady
	StateProfileFetched
	StateStaged
	StateSynced
	StateFailed
	// StateSyncFailed means the entity is staged locally but the upload did
	// not complete.
	StateSyncFailed
)

var stateNames = map[State]string{
	StateStart:          "START",
	StateSessionReady:   "SESSION_READY",
	StateProfileFetched: "PROFILE_FETCHED",
	StateStaged:         "STAGED",
	StateSynced:         "SYNCED",
	StateFailed:         "FAILED",
	StateSyncFailed:     "SYNC_FAILED",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}
