package sweep_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/QuanCamile/RemindKanban/internal/closer"
	"github.com/QuanCamile/RemindKanban/internal/models"
	"github.com/QuanCamile/RemindKanban/internal/store"
	"github.com/QuanCamile/RemindKanban/internal/sweep"
)

type recordNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (n *recordNotifier) Send(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
	return nil
}

func (n *recordNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.texts...)
}

type fakeCloser struct {
	fail  bool
	calls []struct {
		taskID string
		creds  closer.Credentials
	}
}

func (f *fakeCloser) CloseTask(_ context.Context, taskID, _, _ string, creds closer.Credentials) (*closer.Result, error) {
	f.calls = append(f.calls, struct {
		taskID string
		creds  closer.Credentials
	}{taskID, creds})
	if f.fail {
		return nil, errors.New("HTTP 500 - upstream exploded")
	}
	return &closer.Result{StatusCode: 200, Excerpt: `{"result":"done"}`}, nil
}

const nowMs = int64(1_000_000_000)

func newSweeper(t *testing.T, cl sweep.TaskCloser) (*sweep.Sweeper, *store.Store, *recordNotifier) {
	t.Helper()

	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	n := &recordNotifier{}
	sw := &sweep.Sweeper{
		Store:           st,
		Closer:          cl,
		Notifier:        n,
		AutoCloseBefore: 5 * time.Minute,
		Now:             func() time.Time { return time.UnixMilli(nowMs) },
	}
	return sw, st, n
}

func seed(t *testing.T, st *store.Store, task models.Task) {
	t.Helper()
	if err := st.UpsertStart(context.Background(), task); err != nil {
		t.Fatalf("seed %s: %v", task.TaskID, err)
	}
}

func TestWarnPassNotifiesOnce(t *testing.T) {
	sw, st, n := newSweeper(t, &fakeCloser{})
	ctx := context.Background()

	// warn due, deadline still far beyond the close threshold
	seed(t, st, models.Task{
		TaskID: "due", Title: "Review PR", Status: models.StatusRunning,
		DeadlineAt: nowMs + 3_600_000, WarnAt: nowMs - 1000, UpdatedAt: nowMs,
	})
	seed(t, st, models.Task{
		TaskID: "later", Status: models.StatusRunning,
		DeadlineAt: nowMs + 7_200_000, WarnAt: nowMs + 3_600_000, UpdatedAt: nowMs,
	})

	if err := sw.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	texts := n.all()
	if len(texts) != 1 {
		t.Fatalf("texts=%v, want one warning", texts)
	}
	if !strings.Contains(texts[0], "Review PR") || !strings.Contains(texts[0], "Còn ~60 phút") {
		t.Fatalf("text=%q", texts[0])
	}

	got, _ := st.Get(ctx, "due")
	if !got.Warned {
		t.Fatal("warned flag not persisted")
	}

	// second run: no re-notification
	if err := sw.Run(ctx); err != nil {
		t.Fatalf("run again: %v", err)
	}
	if len(n.all()) != 1 {
		t.Fatalf("re-notified: %v", n.all())
	}
}

func TestAutoCloseSuccess(t *testing.T) {
	fc := &fakeCloser{}
	sw, st, n := newSweeper(t, fc)
	ctx := context.Background()

	seed(t, st, models.Task{
		TaskID: "T1", Title: "Deploy", Status: models.StatusRunning,
		DeadlineAt: nowMs + 60_000, WarnAt: nowMs + 30_000,
		ClientBearer: "row-tok", ClientCDSAPIKey: "row-key",
		UpdatedAt: nowMs,
	})

	if err := sw.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(fc.calls) != 1 || fc.calls[0].taskID != "T1" {
		t.Fatalf("calls=%v", fc.calls)
	}
	if fc.calls[0].creds.Bearer != "row-tok" || fc.calls[0].creds.APIKey != "row-key" {
		t.Fatalf("creds=%+v, want row credentials", fc.calls[0].creds)
	}

	got, _ := st.Get(ctx, "T1")
	if got.Status != models.StatusClosed || !got.Closed {
		t.Fatalf("row=%+v", got)
	}
	if got.ClientBearer != "" || got.ClientCDSAPIKey != "" {
		t.Fatalf("secrets not purged: %+v", got)
	}

	texts := n.all()
	if len(texts) != 1 || !strings.Contains(texts[0], "DoingTask OK: HTTP 200") {
		t.Fatalf("texts=%v", texts)
	}
}

func TestAutoCloseFailureLeavesRowRunning(t *testing.T) {
	sw, st, n := newSweeper(t, &fakeCloser{fail: true})
	ctx := context.Background()

	seed(t, st, models.Task{
		TaskID: "T1", Status: models.StatusRunning,
		DeadlineAt: nowMs + 60_000, WarnAt: nowMs + 30_000,
		ClientBearer: "tok", ClientCDSAPIKey: "key",
		UpdatedAt: nowMs,
	})

	if err := sw.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	got, _ := st.Get(ctx, "T1")
	if got.Status != models.StatusRunning || got.Closed {
		t.Fatalf("row=%+v, want still RUNNING", got)
	}
	if got.ClientBearer != "tok" {
		t.Fatalf("credentials dropped on failure: %+v", got)
	}

	texts := n.all()
	if len(texts) != 1 || !strings.Contains(texts[0], "DoingTask FAIL") {
		t.Fatalf("texts=%v", texts)
	}
}

func TestAutoCloseFallbackCredentials(t *testing.T) {
	fc := &fakeCloser{}
	sw, st, _ := newSweeper(t, fc)
	sw.FallbackBearer = "env-tok"
	sw.FallbackAPIKey = "env-key"

	seed(t, st, models.Task{
		TaskID: "T1", Status: models.StatusRunning,
		DeadlineAt: nowMs + 60_000, WarnAt: nowMs + 30_000,
		UpdatedAt: nowMs,
	})

	if err := sw.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(fc.calls) != 1 || fc.calls[0].creds.Bearer != "env-tok" || fc.calls[0].creds.APIKey != "env-key" {
		t.Fatalf("calls=%+v, want fallback credentials", fc.calls)
	}
}

func TestAutoCloseMissingCredentialsSkipsCall(t *testing.T) {
	fc := &fakeCloser{}
	sw, st, n := newSweeper(t, fc)

	seed(t, st, models.Task{
		TaskID: "T1", Status: models.StatusRunning,
		DeadlineAt: nowMs + 60_000, WarnAt: nowMs + 30_000,
		UpdatedAt: nowMs,
	})

	if err := sw.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(fc.calls) != 0 {
		t.Fatalf("closer called without credentials: %v", fc.calls)
	}

	texts := n.all()
	if len(texts) != 1 || !strings.Contains(texts[0], "DoingTask FAIL") {
		t.Fatalf("texts=%v", texts)
	}

	got, _ := st.Get(context.Background(), "T1")
	if got.Status != models.StatusRunning {
		t.Fatalf("row=%+v", got)
	}
}

// failingStore wraps candidate lists and fails MarkWarned for one id,
// proving a single bad row cannot suppress the rest of the pass.
type failingStore struct {
	sweep.TaskStore
	failID string
	warned []string
}

func (f *failingStore) MarkWarned(ctx context.Context, taskID string, nowMs int64) error {
	if taskID == f.failID {
		return errors.New("disk on fire")
	}
	f.warned = append(f.warned, taskID)
	return f.TaskStore.MarkWarned(ctx, taskID, nowMs)
}

func TestWarnPassIsolatesRowFailures(t *testing.T) {
	sw, st, n := newSweeper(t, &fakeCloser{})
	ctx := context.Background()

	seed(t, st, models.Task{
		TaskID: "bad", Status: models.StatusRunning,
		DeadlineAt: nowMs + 3_600_000, WarnAt: nowMs - 2000, UpdatedAt: nowMs,
	})
	seed(t, st, models.Task{
		TaskID: "good", Status: models.StatusRunning,
		DeadlineAt: nowMs + 3_600_000, WarnAt: nowMs - 1000, UpdatedAt: nowMs,
	})

	fs := &failingStore{TaskStore: st, failID: "bad"}
	sw.Store = fs

	if err := sw.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(fs.warned) != 1 || fs.warned[0] != "good" {
		t.Fatalf("warned=%v, want just 'good'", fs.warned)
	}

	var warnTexts []string
	for _, txt := range n.all() {
		if strings.Contains(txt, "Sắp hết hạn") {
			warnTexts = append(warnTexts, txt)
		}
	}
	if len(warnTexts) != 1 || !strings.Contains(warnTexts[0], "good") {
		t.Fatalf("warn texts=%v, want only the good row", warnTexts)
	}

	got, _ := st.Get(ctx, "bad")
	if got.Warned {
		t.Fatal("failed row marked warned")
	}
}
