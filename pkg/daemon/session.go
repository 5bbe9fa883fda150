package daemon

import (
	"time"

	"github.com/google/uuid"
)

// WorkSession starts when the daemon starts and is never reset during a run.
type WorkSession struct {
	ID    uuid.UUID `json:"id"`
	Start time.Time `json:"start"`
}

func NewWorkSession(start time.Time) WorkSession {
	return WorkSession{
		ID:    uuid.New(),
		Start: start.Round(0),
	}
}

// Elapsed is never negative, even if the wall clock steps back.
func (s WorkSession) Elapsed(now time.Time) time.Duration {
	d := now.Round(0).Sub(s.Start)
	if d < 0 {
		return 0
	}
	return d
}
