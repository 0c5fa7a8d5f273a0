package jobs

import (
	"context"
	"fmt"

	"github.com/garnizeh/servicehub/pkg/models"
	"github.com/garnizeh/servicehub/pkg/repository"
)

// TypeRequestActivity jobs carry one models.Activity to the audit trail.
const TypeRequestActivity = "request.activity"

const activityPriority = 100

// ActivityQueue records request activity asynchronously through the pool.
type ActivityQueue struct {
	pool        *WorkerPool
	maxAttempts int
}

func NewActivityQueue(pool *WorkerPool, maxAttempts int) *ActivityQueue {
	return &ActivityQueue{pool: pool, maxAttempts: maxAttempts}
}

func (q *ActivityQueue) RecordActivity(ctx context.Context, a models.Activity) error {
	if _, err := q.pool.Enqueue(ctx, TypeRequestActivity, a, activityPriority, q.maxAttempts); err != nil {
		return fmt.Errorf("enqueue activity: %w", err)
	}
	return nil
}

// ActivityHandler stores the activity carried by a request.activity job.
func ActivityHandler(repo repository.ActivityRepo) Handler {
	return func(ctx context.Context, j *Job) error {
		var a models.Activity
		if err := j.Decode(&a); err != nil {
			return err
		}
		if a.RequestID == 0 || a.Action == "" {
			return fmt.Errorf("activity payload without request or action")
		}
		if _, err := repo.CreateActivity(ctx, &a); err != nil {
			return fmt.Errorf("store activity: %w", err)
		}
		return nil
	}
}
