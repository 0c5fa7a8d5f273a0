package jobs_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"log/slog"

	dbfs "github.com/garnizeh/servicehub/db"
	"github.com/garnizeh/servicehub/internal/db"
	"github.com/garnizeh/servicehub/internal/jobs"
	"github.com/garnizeh/servicehub/internal/repository/sqlite"
	"github.com/garnizeh/servicehub/pkg/models"
)

func openDB(t *testing.T) *db.DB {
	t.Helper()
	ctx := context.Background()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	d, err := db.New(ctx, dsn, slog.Default())
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := db.Migrate(ctx, d, dbfs.Migrations); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return d
}

func startPool(t *testing.T, d *db.DB, handlers map[string]jobs.Handler) *jobs.WorkerPool {
	t.Helper()
	pool := jobs.NewWorkerPool(jobs.NewRepository(d), handlers, slog.Default(), 1)
	pool.PollInterval = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	t.Cleanup(func() {
		pool.Stop()
		cancel()
	})
	return pool
}

func TestBackoffDuration(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{20, 5 * time.Minute},
	}
	for _, tt := range tests {
		if got := jobs.BackoffDuration(tt.attempt); got != tt.want {
			t.Errorf("BackoffDuration(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestEnqueueAndProcess(t *testing.T) {
	d := openDB(t)
	handled := make(chan string, 1)
	pool := startPool(t, d, map[string]jobs.Handler{
		"test": func(ctx context.Context, j *jobs.Job) error {
			handled <- string(j.Payload)
			return nil
		},
	})

	id, err := pool.Enqueue(context.Background(), "test", map[string]string{"foo": "bar"}, 10, 3)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case payload := <-handled:
		if payload != `{"foo":"bar"}` {
			t.Fatalf("unexpected payload %s", payload)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("handler was not called")
	}

	repo := jobs.NewRepository(d)
	deadline := time.Now().Add(2 * time.Second)
	for {
		j, err := repo.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if j != nil && j.Status == jobs.StatusDone {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never marked done: %+v", j)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestFailedJobMovesToDeadLetter(t *testing.T) {
	d := openDB(t)
	called := make(chan struct{}, 1)
	pool := startPool(t, d, map[string]jobs.Handler{
		"flaky": func(ctx context.Context, j *jobs.Job) error {
			called <- struct{}{}
			return errors.New("boom")
		},
	})

	if _, err := pool.Enqueue(context.Background(), "flaky", nil, 1, 1); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := pool.Enqueue(context.Background(), "unknown", nil, 1, 3); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case <-called:
	case <-time.After(3 * time.Second):
		t.Fatalf("handler was not called")
	}

	repo := jobs.NewRepository(d)
	deadline := time.Now().Add(2 * time.Second)
	for {
		flaky, _ := repo.CountDeadLetters(context.Background(), "flaky")
		unknown, _ := repo.CountDeadLetters(context.Background(), "unknown")
		if flaky == 1 && unknown == 1 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected both jobs in dead letters, got flaky=%d unknown=%d", flaky, unknown)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestFetchNext_ClaimsOnce(t *testing.T) {
	d := openDB(t)
	repo := jobs.NewRepository(d)
	ctx := context.Background()

	if _, err := repo.Enqueue(ctx, &jobs.Job{Type: "a", Payload: []byte(`{}`), Priority: 5}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := repo.Enqueue(ctx, &jobs.Job{Type: "b", Payload: []byte(`{}`), Priority: 1}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	first, err := repo.FetchNext(ctx)
	if err != nil || first == nil || first.Type != "b" || first.Status != jobs.StatusRunning {
		t.Fatalf("expected higher priority job b, got %+v %v", first, err)
	}
	second, _ := repo.FetchNext(ctx)
	if second == nil || second.Type != "a" {
		t.Fatalf("expected job a, got %+v", second)
	}
	if third, _ := repo.FetchNext(ctx); third != nil {
		t.Fatalf("expected no job left, got %+v", third)
	}
}

func TestActivityQueue(t *testing.T) {
	d := openDB(t)
	store := sqlite.New(d, slog.Default())
	pool := startPool(t, d, map[string]jobs.Handler{
		jobs.TypeRequestActivity: jobs.ActivityHandler(store),
	})
	queue := jobs.NewActivityQueue(pool, 3)

	a := models.Activity{RequestID: 42, ActorEmail: "ann@example.com", ActorRole: models.RoleRequester, Action: "request.created", Created: 1}
	if err := queue.RecordActivity(context.Background(), a); err != nil {
		t.Fatalf("RecordActivity: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		acts, err := store.ListByRequest(context.Background(), 42, 10, 0)
		if err != nil {
			t.Fatalf("ListByRequest: %v", err)
		}
		if len(acts) == 1 {
			if acts[0].Action != "request.created" || acts[0].ActorRole != models.RoleRequester {
				t.Fatalf("unexpected activity: %+v", acts[0])
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("activity was not stored")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestActivityHandler_BadPayload(t *testing.T) {
	d := openDB(t)
	h := jobs.ActivityHandler(sqlite.New(d, nil))
	if err := h(context.Background(), &jobs.Job{Payload: []byte(`not json`)}); err == nil {
		t.Fatalf("expected decode error")
	}
	if err := h(context.Background(), &jobs.Job{Payload: []byte(`{"action":""}`)}); err == nil {
		t.Fatalf("expected error for empty activity")
	}
}

func TestJob_DecodeAndExhausted(t *testing.T) {
	j := &jobs.Job{ID: 7, Type: jobs.TypeRequestActivity, Payload: []byte(`{"request_id":3,"action":"offer.submitted"}`), MaxAttempts: 2}
	var a models.Activity
	if err := j.Decode(&a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a.RequestID != 3 || a.Action != "offer.submitted" {
		t.Fatalf("decoded %+v", a)
	}

	cases := []struct {
		attempts int
		want     bool
	}{{0, false}, {1, false}, {2, true}, {3, true}}
	for _, c := range cases {
		j.Attempts = c.attempts
		if got := j.Exhausted(); got != c.want {
			t.Fatalf("attempts=%d: want %v got %v", c.attempts, c.want, got)
		}
	}
}
