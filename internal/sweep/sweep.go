// Package sweep runs the periodic warn and auto-close passes over the
// task store. The two passes share nothing but the store; rows are
// processed sequentially with per-row failure isolation, so one bad
// row never suppresses the rest of a pass.
package sweep

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/QuanCamile/RemindKanban/internal/closer"
	"github.com/QuanCamile/RemindKanban/internal/models"
	"github.com/QuanCamile/RemindKanban/internal/notify"
	"github.com/QuanCamile/RemindKanban/internal/retry"
)

const failureExcerptLen = 600

// TaskStore is the slice of the store the sweep needs.
type TaskStore interface {
	WarnCandidates(ctx context.Context, nowMs int64) ([]models.Task, error)
	CloseCandidates(ctx context.Context, thresholdMs int64) ([]models.Task, error)
	MarkWarned(ctx context.Context, taskID string, nowMs int64) error
	MarkClosed(ctx context.Context, taskID string, nowMs int64) error
}

// TaskCloser is the external close integration.
type TaskCloser interface {
	CloseTask(ctx context.Context, taskID, taskURL, boardID string, creds closer.Credentials) (*closer.Result, error)
}

type Sweeper struct {
	Store    TaskStore
	Closer   TaskCloser
	Notifier notify.Notifier

	// Service-wide fallback credentials for rows whose captured
	// client credentials are missing.
	FallbackBearer string
	FallbackAPIKey string

	// AutoCloseBefore is how far ahead of the deadline the close
	// pass reaches.
	AutoCloseBefore time.Duration

	// Now is swappable for tests.
	Now func() time.Time
}

// Run executes one warn pass and one auto-close pass. Row-level
// failures are logged and notified, never returned; only a failed
// candidate query aborts its pass.
func (s *Sweeper) Run(ctx context.Context) error {
	runID := uuid.NewString()[:8]
	nowMs := s.now().UnixMilli()

	if err := s.warnPass(ctx, runID, nowMs); err != nil {
		log.Printf("sweep %s: warn pass: %v", runID, err)
	}
	if err := s.closePass(ctx, runID, nowMs); err != nil {
		log.Printf("sweep %s: close pass: %v", runID, err)
	}
	return nil
}

func (s *Sweeper) warnPass(ctx context.Context, runID string, nowMs int64) error {
	rows, err := s.Store.WarnCandidates(ctx, nowMs)
	if err != nil {
		return err
	}

	for _, r := range rows {
		if err := retry.Do(ctx, func() error {
			return s.Store.MarkWarned(ctx, r.TaskID, nowMs)
		}); err != nil {
			log.Printf("sweep %s: mark warned %s: %v", runID, r.TaskID, err)
			continue
		}

		remainMin := (r.DeadlineAt - nowMs) / 60000
		if remainMin < 0 {
			remainMin = 0
		}
		text := fmt.Sprintf("⏰ Sắp hết hạn: %s\n🕒 Dự kiến đóng: %s\n⏱️ Còn ~%d phút, cần đóng task!",
			r.DisplayName(), models.FormatDisplayTime(r.DeadlineAt), remainMin)
		s.send(ctx, runID, text)
	}
	return nil
}

// closePass tries the external close for every RUNNING row whose
// deadline is within the auto-close window. Rows are marked CLOSED
// only after the external call succeeds; a failing row stays RUNNING
// and is picked up again on the next sweep.
func (s *Sweeper) closePass(ctx context.Context, runID string, nowMs int64) error {
	threshold := nowMs + s.AutoCloseBefore.Milliseconds()
	rows, err := s.Store.CloseCandidates(ctx, threshold)
	if err != nil {
		return err
	}

	for _, r := range rows {
		apiMsg := s.closeOne(ctx, r, nowMs)
		s.send(ctx, runID, fmt.Sprintf("🔒 Auto close: %s\n%s", r.DisplayName(), apiMsg))
	}
	return nil
}

func (s *Sweeper) closeOne(ctx context.Context, r models.Task, nowMs int64) string {
	creds, err := closer.ResolveCredentials(r.ClientBearer, r.ClientCDSAPIKey, s.FallbackBearer, s.FallbackAPIKey)
	if err != nil {
		return "❌ DoingTask FAIL: " + truncate(err.Error(), failureExcerptLen)
	}

	res, err := s.Closer.CloseTask(ctx, r.TaskID, r.TaskURL, r.BoardID, creds)
	if err != nil {
		return "❌ DoingTask FAIL: " + truncate(err.Error(), failureExcerptLen)
	}

	if err := retry.Do(ctx, func() error {
		return s.Store.MarkClosed(ctx, r.TaskID, nowMs)
	}); err != nil {
		// The external system thinks the task is closed but our row
		// does not; the next sweep retries the whole row.
		return "❌ DoingTask FAIL: " + truncate(err.Error(), failureExcerptLen)
	}

	return fmt.Sprintf("✅ DoingTask OK: HTTP %d\n%s", res.StatusCode, res.Excerpt)
}

// send awaits delivery, unlike the event path: sweep completion should
// reflect notification attempts. Failures are logged only.
func (s *Sweeper) send(ctx context.Context, runID, text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Send(ctx, text); err != nil {
		log.Printf("sweep %s: notify: %v", runID, err)
	}
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
