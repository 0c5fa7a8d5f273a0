// Package jobs is a persistent background queue on the local SQLite file.
// Workers claim jobs, retry failures with backoff and park jobs that keep
// failing in dead_letter_jobs.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	StatusQueued  = "queued"
	StatusRunning = "running"
	StatusRetry   = "retry"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

type Job struct {
	ID          int64           `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Priority    int             `json:"priority"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	NextTryAt   *time.Time      `json:"next_try_at,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	Created     time.Time       `json:"created"`
	Updated     time.Time       `json:"updated"`
}

// Decode unmarshals the payload into v.
func (j *Job) Decode(v any) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload of job %d: %w", j.Type, j.ID, err)
	}
	return nil
}

// Exhausted reports whether no retry is left.
func (j *Job) Exhausted() bool {
	return j.Attempts >= j.MaxAttempts
}

// Handler processes one job; a returned error schedules a retry.
type Handler func(ctx context.Context, j *Job) error

var ErrMaxAttempts = errors.New("max attempts reached")

// BackoffDuration is 2^attempt seconds, at most five minutes.
func BackoffDuration(attempt int) time.Duration {
	if attempt <= 0 {
		return time.Second
	}
	if attempt > 16 {
		attempt = 16
	}
	d := time.Duration(1<<uint(attempt)) * time.Second
	if limit := 5 * time.Minute; d > limit {
		return limit
	}
	return d
}
