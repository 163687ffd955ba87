package task

import "time"

// BackgroundTask is a server-side job as reported by the audit server.
// A nil StartedAt means the job has not begun.
type BackgroundTask struct {
	StartedAt   *time.Time `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt"`
	Error       *string    `json:"error"`
}

// Status is the lifecycle classification of a BackgroundTask.
type Status int

const (
	Pending Status = iota
	Running
	Complete
	Errored
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Complete:
		return "complete"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status can no longer change for this task.
func (s Status) Terminal() bool {
	return s == Complete || s == Errored
}

// Classify maps a task snapshot onto exactly one Status.
func Classify(t BackgroundTask) Status {
	switch {
	case t.StartedAt == nil:
		return Pending
	case t.Error != nil:
		return Errored
	case t.CompletedAt != nil:
		return Complete
	default:
		return Running
	}
}

// Status classifies t. A nil task has not begun.
func (t *BackgroundTask) Status() Status {
	if t == nil {
		return Pending
	}
	return Classify(*t)
}

// ErrorText returns the job's failure message, or "" when it has none.
func (t *BackgroundTask) ErrorText() string {
	if t == nil || t.Error == nil {
		return ""
	}
	return *t.Error
}

// Clone returns a deep copy so callers can hold snapshots across refreshes.
func (t *BackgroundTask) Clone() *BackgroundTask {
	if t == nil {
		return nil
	}
	out := &BackgroundTask{}
	if t.StartedAt != nil {
		v := *t.StartedAt
		out.StartedAt = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		out.CompletedAt = &v
	}
	if t.Error != nil {
		v := *t.Error
		out.Error = &v
	}
	return out
}

// Started returns a running task that began at ts.
func Started(ts time.Time) *BackgroundTask {
	return &BackgroundTask{StartedAt: &ts}
}
