package ports

import (
	"context"
	"time"

	"github.com/caregrid/dispatch-service/internal/domain"
	"github.com/google/uuid"
)

// CampaignRepository is the durable keyed store for in-flight campaigns so
// they survive process restarts and remain auditable after closing.
type CampaignRepository interface {
	Create(ctx context.Context, campaign *domain.Campaign) error
	Get(ctx context.Context, campaignID uuid.UUID) (*domain.Campaign, error)
	GetByAssignment(ctx context.Context, assignmentID uuid.UUID) (*domain.Campaign, error)
	// Update persists the whole aggregate (campaign row plus outreach rows)
	// in one transaction.
	Update(ctx context.Context, campaign *domain.Campaign) error
	ListByStatus(ctx context.Context, status domain.CampaignStatus, limit int) ([]*domain.Campaign, error)
	// FindOpenByAddress resolves which in-progress campaign an inbound reply
	// from the given normalized address belongs to.
	FindOpenByAddress(ctx context.Context, normalizedAddress string) (*domain.Campaign, error)
	// FindRecentByAddress resolves the sender's most recent campaign regardless
	// of status, for replies that arrive after the campaign closed.
	FindRecentByAddress(ctx context.Context, normalizedAddress string) (*domain.Campaign, error)
}

type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

type OutboxRecord struct {
	OutboxID     uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	RetryCount   int
	PublishedAt  *time.Time
	LastError    *string
	FirstSeenAt  time.Time
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	FetchUnpublished(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, errMsg string, at time.Time) error
}
