package presence

import "time"

// Actions recorded in the join/leave history.
const (
	ActionJoin  = "join"
	ActionLeave = "leave"
)

// Config configures the presence store. Path is the SQLite database
// file; the parent directory is created if missing.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// Caller is one person currently in the voice channel.
type Caller struct {
	UserID   string
	Username string
	JoinedAt time.Time
}
