// Package ingest processes START/PAUSE/DONE events against the task
// store. The HTTP handler and the Kafka relay both drive this service,
// so it knows nothing about transports.
package ingest

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/QuanCamile/RemindKanban/internal/models"
	"github.com/QuanCamile/RemindKanban/internal/notify"
	"github.com/QuanCamile/RemindKanban/internal/retry"
)

const defaultWarnBeforeSeconds = 300

// TaskStore is the slice of the store the ingestion path needs.
type TaskStore interface {
	Get(ctx context.Context, taskID string) (*models.Task, error)
	UpsertStart(ctx context.Context, t models.Task) error
	MarkPaused(ctx context.Context, taskID string, pausedAt int64, remainingMs *int64) error
	MarkClosed(ctx context.Context, taskID string, nowMs int64) error
}

type Service struct {
	Store    TaskStore
	Notifier notify.Notifier

	// WarnBeforeSeconds applies when the event carries none. Zero
	// means the built-in default of 300.
	WarnBeforeSeconds int64

	// Now is swappable for tests.
	Now func() time.Time
}

// Process applies one normalized event. Store writes go through the
// retry executor; notifications are dispatched on a goroutine so the
// caller's response never waits on delivery.
func (s *Service) Process(ctx context.Context, ev Event) error {
	switch ev.Type {
	case models.EventStart:
		return s.handleStart(ctx, ev)
	case models.EventPause:
		return s.handlePause(ctx, ev)
	case models.EventDone:
		return s.handleDone(ctx, ev)
	default:
		return &UnknownEventError{Received: ev.RawType}
	}
}

// handleStart implements resume-vs-fresh: a paused countdown resumes
// with its remaining time unless the caller explicitly supplied a new
// duration. Resume re-anchors started_at to now without changing the
// countdown's length.
func (s *Service) handleStart(ctx context.Context, ev Event) error {
	nowMs := s.now().UnixMilli()

	startedAt := nowMs
	if ev.StartedAt != nil {
		startedAt = *ev.StartedAt
	}

	var deadlineAt int64
	if !ev.HasCustomDeadline {
		existing, err := s.Store.Get(ctx, ev.TaskID)
		if err != nil {
			// fall back to computing from the supplied duration
			existing = nil
		}
		if existing != nil && existing.Status == models.StatusPaused && existing.RemainingMs > 0 {
			deadlineAt = nowMs + existing.RemainingMs
			startedAt = nowMs
		}
	}
	if deadlineAt == 0 {
		deadlineAt = startedAt + ev.DeadlineSeconds*1000
	}

	warnBefore := s.WarnBeforeSeconds
	if warnBefore == 0 {
		warnBefore = defaultWarnBeforeSeconds
	}
	if ev.WarnBeforeSeconds != nil {
		warnBefore = *ev.WarnBeforeSeconds
	}
	warnAt := deadlineAt - warnBefore*1000

	task := models.Task{
		TaskID:          ev.TaskID,
		Title:           ev.Title,
		Status:          models.StatusRunning,
		StartedAt:       startedAt,
		DeadlineAt:      deadlineAt,
		WarnAt:          warnAt,
		ClientBearer:    ev.Bearer,
		ClientCDSAPIKey: ev.CDSAPIKey,
		TaskURL:         ev.TaskURL,
		BoardID:         ev.BoardID,
		UpdatedAt:       nowMs,
	}
	if err := retry.Do(ctx, func() error { return s.Store.UpsertStart(ctx, task) }); err != nil {
		return err
	}

	remainMin := int64(math.Round(float64(deadlineAt-nowMs) / 60000))
	if remainMin < 0 {
		remainMin = 0
	}
	text := fmt.Sprintf("▶️ START: %s\n🕒 Dự kiến đóng: %s\n⏱️ Còn lại: ~%d phút",
		task.DisplayName(), models.FormatDisplayTime(deadlineAt), remainMin)
	if ev.TaskURL != "" {
		text += "\n🔗 " + ev.TaskURL
	}
	s.notifyAsync(text)
	return nil
}

// handlePause snapshots the remaining countdown from the stored
// deadline and clears the warn state.
func (s *Service) handlePause(ctx context.Context, ev Event) error {
	nowMs := s.now().UnixMilli()

	var remainingMs *int64
	existing, err := s.Store.Get(ctx, ev.TaskID)
	if err == nil && existing != nil && existing.DeadlineAt > 0 {
		r := existing.DeadlineAt - nowMs
		if r < 0 {
			r = 0
		}
		remainingMs = &r
	}

	if err := retry.Do(ctx, func() error {
		return s.Store.MarkPaused(ctx, ev.TaskID, nowMs, remainingMs)
	}); err != nil {
		return err
	}

	name := ev.Title
	if name == "" {
		name = ev.TaskID
	}
	text := "⏸️ PAUSE: " + name
	if ev.TaskURL != "" {
		text += "\n🔗 " + ev.TaskURL
	}
	s.notifyAsync(text)
	return nil
}

func (s *Service) handleDone(ctx context.Context, ev Event) error {
	nowMs := s.now().UnixMilli()

	if err := retry.Do(ctx, func() error {
		return s.Store.MarkClosed(ctx, ev.TaskID, nowMs)
	}); err != nil {
		return err
	}

	name := ev.Title
	if name == "" {
		name = ev.TaskID
	}
	s.notifyAsync("✅ DONE: " + name)
	return nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) notifyAsync(text string) {
	if s.Notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Notifier.Send(ctx, text); err != nil {
			log.Println("ingest: notify:", err)
		}
	}()
}
