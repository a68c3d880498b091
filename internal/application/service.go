package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/caregrid/dispatch-service/internal/domain"
	"github.com/caregrid/dispatch-service/internal/ports"
)

// EscalationFunc receives the full campaign snapshot whenever a campaign
// reaches escalated, for human-facing alerting.
type EscalationFunc func(ctx context.Context, campaign *domain.Campaign)

type Service struct {
	cfg          Config
	logger       *slog.Logger
	campaigns    ports.CampaignRepository
	roster       ports.Roster
	messenger    ports.Messenger
	lock         ports.AssignmentLock
	outbox       ports.OutboxRepository
	onEscalation EscalationFunc
	nowFn        func() time.Time
}

type Dependencies struct {
	Config       Config
	Logger       *slog.Logger
	Campaigns    ports.CampaignRepository
	Roster       ports.Roster
	Messenger    ports.Messenger
	Lock         ports.AssignmentLock
	Outbox       ports.OutboxRepository
	OnEscalation EscalationFunc
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "dispatch-service"
	}
	if cfg.CampaignTimeout <= 0 {
		cfg.CampaignTimeout = 30 * time.Minute
	}
	if cfg.MaxContacts <= 0 {
		cfg.MaxContacts = 15
	}
	if cfg.FirstWaveSize <= 0 {
		cfg.FirstWaveSize = 10
	}
	if cfg.FirstWaveMin <= 0 {
		cfg.FirstWaveMin = 5
	}
	if cfg.SecondWaveThreshold <= 0 {
		cfg.SecondWaveThreshold = 3
	}
	if cfg.SecondWaveSize <= 0 {
		cfg.SecondWaveSize = 5
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	if cfg.UrgentWindow <= 0 {
		cfg.UrgentWindow = 4 * time.Hour
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:          cfg,
		logger:       logger,
		campaigns:    deps.Campaigns,
		roster:       deps.Roster,
		messenger:    deps.Messenger,
		lock:         deps.Lock,
		outbox:       deps.Outbox,
		onEscalation: deps.OnEscalation,
		nowFn:        func() time.Time { return time.Now().UTC() },
	}
}
