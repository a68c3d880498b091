package ports

import (
	"context"
	"time"

	"github.com/caregrid/dispatch-service/internal/domain"
	"github.com/google/uuid"
)

// Roster is the canonical worker/client/assignment record system. The engine
// treats its failures as retryable infrastructure errors, not business
// outcomes.
type Roster interface {
	GetClient(ctx context.Context, clientID uuid.UUID) (domain.Client, error)
	GetAssignment(ctx context.Context, assignmentID uuid.UUID) (domain.Assignment, error)
	// GetWorkersAvailable returns active workers available on the weekday of
	// the given date, excluding the listed IDs, in stable roster order.
	GetWorkersAvailable(ctx context.Context, date time.Time, excludeIDs []uuid.UUID) ([]domain.Worker, error)
	AssignWorker(ctx context.Context, assignmentID, workerID uuid.UUID) error
	RecordCalloff(ctx context.Context, assignmentID, workerID uuid.UUID, reason string) error
}
