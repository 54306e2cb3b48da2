package domain

import "time"

// Session is one monitoring run. Every snapshot persisted during the run
// carries its ID.
type Session struct {
	ID        string     `json:"id" yaml:"id"`
	Battery   string     `json:"battery" yaml:"battery"`
	Host      string     `json:"host" yaml:"host"`
	StartedAt time.Time  `json:"started_at" yaml:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" yaml:"ended_at,omitempty"`
	Snapshots int        `json:"snapshots" yaml:"snapshots"`
}

// Active reports whether the run has not been closed.
func (s Session) Active() bool { return s.EndedAt == nil }
