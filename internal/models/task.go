package models

// Task statuses. CLOSED is terminal for the sweep; rows are never deleted.
const (
	StatusRunning = "RUNNING"
	StatusPaused  = "PAUSED"
	StatusClosed  = "CLOSED"
)

// Event types accepted on /events.
const (
	EventStart = "START"
	EventPause = "PAUSE"
	EventDone  = "DONE"
)

// Task is one row in the tasks table, keyed by task_id.
// Timestamps are epoch milliseconds. Zero values stand in for NULL
// columns (the store layer maps them both ways).
type Task struct {
	TaskID string `json:"task_id"`
	Title  string `json:"title"`
	Status string `json:"status"`

	StartedAt  int64 `json:"started_at"`
	DeadlineAt int64 `json:"deadline_at"`
	WarnAt     int64 `json:"warn_at"`

	Warned bool `json:"warned"`
	Closed bool `json:"closed"`

	// Pause snapshot. Set together while PAUSED, NULL otherwise.
	PausedAt    int64 `json:"paused_at"`
	RemainingMs int64 `json:"remaining_ms"`

	// Credentials captured from the originating browser session.
	// Cleared once the task reaches CLOSED.
	ClientBearer    string `json:"client_bearer"`
	ClientCDSAPIKey string `json:"client_cds_api_key"`

	TaskURL string `json:"task_url"`
	BoardID string `json:"board_id"`

	UpdatedAt int64 `json:"updated_at"`
}

// DisplayName prefers the title, falling back to the task id.
func (t Task) DisplayName() string {
	if t.Title != "" {
		return t.Title
	}
	return t.TaskID
}
