// Package scheduler keeps the due index of scheduled posts and moves due ids onto the queue.
package scheduler

import (
	"context"
	"time"
)

// DefaultKey is the Redis sorted set holding scheduled post ids.
const DefaultKey = "omnipost:scheduled"

// Scheduler records when a post should fire and hands back ids whose time has come.
type Scheduler interface {
	Schedule(ctx context.Context, postID string, at time.Time) error
	Cancel(ctx context.Context, postID string) error
	// Due claims at most limit ids scheduled at or before now. A claimed id is
	// removed from the index and is returned to exactly one caller.
	Due(ctx context.Context, now time.Time, limit int) ([]string, error)
}
