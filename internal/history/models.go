package history

import "time"

// RunStatus represents the lifecycle of a recorded run.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunOK      RunStatus = "ok"
	RunFailed  RunStatus = "failed"
)

// Run captures one polling pass.
type Run struct {
	ID             string
	StartedAt      time.Time
	FinishedAt     *time.Time
	Status         RunStatus
	FeedsChecked   int
	EntriesMatched int
	ErrorCount     int
	ErrorMessage   string
}

// Duration returns the wall-clock length of a finished run, or zero while
// the run is still open.
func (r *Run) Duration() time.Duration {
	if r == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Match records one feed entry that was dispatched during a run.
type Match struct {
	ID           int64
	RunID        string
	Feed         string
	Subscription string
	Title        string
	Series       *int
	Episode      int
	LinkKind     string
	Target       string
	Action       string
	MatchedAt    time.Time
}
