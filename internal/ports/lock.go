package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AssignmentLock is a named mutual-exclusion primitive keyed by assignment ID.
// TryAcquire never blocks: it reports acquired=false when another holder has
// the lock, and an error only when the backend itself is unreachable. The
// returned token fences Release so a holder cannot release a lock it lost.
type AssignmentLock interface {
	TryAcquire(ctx context.Context, assignmentID uuid.UUID, ttl time.Duration) (token string, acquired bool, err error)
	Release(ctx context.Context, assignmentID uuid.UUID, token string) error
}
