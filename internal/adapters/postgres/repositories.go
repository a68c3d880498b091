package postgres

import (
	"github.com/caregrid/dispatch-service/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Campaigns ports.CampaignRepository
	Roster    ports.Roster
	Outbox    ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Campaigns: &campaignRepository{db: db},
		Roster:    &rosterRepository{db: db},
		Outbox:    &outboxRepository{db: db},
	}
}
