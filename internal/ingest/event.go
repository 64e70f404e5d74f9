package ingest

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Validation failures. The HTTP layer maps these to 400 responses.
var ErrMissingTaskID = errors.New("missing taskId")

// UnknownEventError echoes the received value back to the caller.
type UnknownEventError struct {
	Received string
}

func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("unknown eventType %q", e.Received)
}

// RawEvent is the inbound JSON body. The browser extension sends ids
// either as strings or numbers depending on where it scraped them, so
// those fields decode as any. Pointer fields distinguish "absent" from
// "zero": the resume logic keys off presence, not value.
type RawEvent struct {
	EventType string `json:"eventType"`
	Action    string `json:"action"` // legacy alias for eventType

	TaskID  any    `json:"taskId"`
	BoardID any    `json:"boardId"`
	URL     string `json:"url"`

	TaskTitle string `json:"taskTitle"`
	TaskName  string `json:"taskName"`
	TaskCode  string `json:"taskCode"`

	SpentHours        *float64 `json:"spentHours"`
	PlannedHours      *float64 `json:"plannedHours"`
	DeadlineSeconds   *float64 `json:"deadlineSeconds"`
	WarnBeforeSeconds *float64 `json:"warnBeforeSeconds"`
	StartedAt         *float64 `json:"startedAt"` // epoch ms

	AuthToken string `json:"authToken"`
	CDSAPIKey string `json:"cdsApiKey"`
}

// Event is the normalized form Process works on.
type Event struct {
	Type    string // upper-cased
	RawType string // as received, echoed on rejection

	TaskID  string
	BoardID string
	Title   string
	TaskURL string

	// DeadlineSeconds is the effective duration for a fresh start.
	// HasCustomDeadline is true when the caller supplied either a
	// deadlineSeconds or plannedHours field, which disables resume.
	DeadlineSeconds   int64
	HasCustomDeadline bool

	WarnBeforeSeconds *int64
	StartedAt         *int64 // epoch ms, nil means "now"

	// Client credentials after header-over-body precedence.
	Bearer    string
	CDSAPIKey string
}

const defaultPlannedHours = 8

// Normalize turns a raw body plus the optional credential headers into
// an Event. Headers win over the body fields of the same meaning.
func Normalize(raw RawEvent, headerBearer, headerAPIKey string) (Event, error) {
	rawType := raw.EventType
	if rawType == "" {
		rawType = raw.Action
	}

	taskID := strings.TrimSpace(coerceString(raw.TaskID))
	if taskID == "" {
		return Event{}, ErrMissingTaskID
	}

	title := raw.TaskTitle
	if title == "" {
		title = raw.TaskName
	}

	planned := float64(defaultPlannedHours)
	if raw.PlannedHours != nil && isFinite(*raw.PlannedHours) && *raw.PlannedHours > 0 {
		planned = *raw.PlannedHours
	}

	deadlineSeconds := int64(planned * 3600)
	if raw.DeadlineSeconds != nil && isFinite(*raw.DeadlineSeconds) {
		deadlineSeconds = int64(*raw.DeadlineSeconds)
	}

	ev := Event{
		Type:              strings.ToUpper(rawType),
		RawType:           rawType,
		TaskID:            taskID,
		BoardID:           strings.TrimSpace(coerceString(raw.BoardID)),
		Title:             title,
		TaskURL:           raw.URL,
		DeadlineSeconds:   deadlineSeconds,
		HasCustomDeadline: raw.DeadlineSeconds != nil || raw.PlannedHours != nil,
		Bearer:            firstNonEmpty(headerBearer, raw.AuthToken),
		CDSAPIKey:         firstNonEmpty(headerAPIKey, raw.CDSAPIKey),
	}

	if raw.WarnBeforeSeconds != nil && isFinite(*raw.WarnBeforeSeconds) {
		wb := int64(*raw.WarnBeforeSeconds)
		ev.WarnBeforeSeconds = &wb
	}
	if raw.StartedAt != nil && isFinite(*raw.StartedAt) {
		sa := int64(*raw.StartedAt)
		ev.StartedAt = &sa
	}

	return ev, nil
}

func coerceString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == math.Trunc(x) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
