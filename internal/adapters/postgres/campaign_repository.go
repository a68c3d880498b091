package postgres

import (
	"context"
	"errors"

	"github.com/caregrid/dispatch-service/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type campaignRepository struct {
	db *gorm.DB
}

func (r *campaignRepository) Create(ctx context.Context, campaign *domain.Campaign) error {
	rec := toCampaignModel(campaign)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *campaignRepository) Get(ctx context.Context, campaignID uuid.UUID) (*domain.Campaign, error) {
	var rec campaignModel
	if err := r.db.WithContext(ctx).Where("campaign_id = ?", campaignID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	outreach, err := r.outreachFor(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	return toDomainCampaign(rec, outreach), nil
}

func (r *campaignRepository) GetByAssignment(ctx context.Context, assignmentID uuid.UUID) (*domain.Campaign, error) {
	var rec campaignModel
	err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Order("created_at desc").
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	outreach, err := r.outreachFor(ctx, rec.CampaignID)
	if err != nil {
		return nil, err
	}
	return toDomainCampaign(rec, outreach), nil
}

var terminalStatuses = []string{
	string(domain.CampaignStatusFilled),
	string(domain.CampaignStatusEscalated),
	string(domain.CampaignStatusCancelled),
	string(domain.CampaignStatusExpired),
}

// Update persists the whole aggregate in one transaction: the campaign row is
// rewritten and outreach rows are upserted by primary key. A row that already
// reached a terminal status is never overwritten; a writer holding a stale
// snapshot gets ErrConflict instead.
func (r *campaignRepository) Update(ctx context.Context, campaign *domain.Campaign) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := toCampaignModel(campaign)
		res := tx.Model(&campaignModel{}).
			Where("campaign_id = ?", rec.CampaignID).
			Where("status NOT IN ?", terminalStatuses).
			Updates(map[string]any{
			"status":            rec.Status,
			"escalation_reason": rec.EscalationReason,
			"contacted_count":   rec.ContactedCount,
			"responded_count":   rec.RespondedCount,
			"accepted_count":    rec.AcceptedCount,
			"declined_count":    rec.DeclinedCount,
			"winner_worker_id":  rec.WinnerWorkerID,
			"started_at":        rec.StartedAt,
			"completed_at":      rec.CompletedAt,
			"updated_at":        rec.UpdatedAt,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&campaignModel{}).Where("campaign_id = ?", rec.CampaignID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return domain.ErrNotFound
			}
			return domain.ErrConflict
		}
		for i := range campaign.Outreach {
			o := toOutreachModel(campaign.Outreach[i])
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "outreach_id"}},
				UpdateAll: true,
			}).Create(&o).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *campaignRepository) ListByStatus(ctx context.Context, status domain.CampaignStatus, limit int) ([]*domain.Campaign, error) {
	var rows []campaignModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("created_at asc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.CampaignID)
	}
	var outreachRows []outreachModel
	if err := r.db.WithContext(ctx).Where("campaign_id IN ?", ids).Order("sent_at asc").Find(&outreachRows).Error; err != nil {
		return nil, err
	}
	byCampaign := make(map[uuid.UUID][]outreachModel, len(rows))
	for _, o := range outreachRows {
		byCampaign[o.CampaignID] = append(byCampaign[o.CampaignID], o)
	}
	out := make([]*domain.Campaign, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainCampaign(row, byCampaign[row.CampaignID]))
	}
	return out, nil
}

// FindOpenByAddress resolves an inbound reply to the most recent in-progress
// campaign that contacted the sender.
func (r *campaignRepository) FindOpenByAddress(ctx context.Context, normalizedAddress string) (*domain.Campaign, error) {
	var rec campaignModel
	err := r.db.WithContext(ctx).
		Joins("JOIN candidate_outreach ON candidate_outreach.campaign_id = campaigns.campaign_id").
		Where("candidate_outreach.address_norm = ?", normalizedAddress).
		Where("campaigns.status = ?", string(domain.CampaignStatusInProgress)).
		Order("campaigns.created_at desc").
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	outreach, err := r.outreachFor(ctx, rec.CampaignID)
	if err != nil {
		return nil, err
	}
	return toDomainCampaign(rec, outreach), nil
}

// FindRecentByAddress resolves the sender's most recent campaign regardless of
// status. Used when no open campaign matched, so a late reply can still be
// answered against the closed one.
func (r *campaignRepository) FindRecentByAddress(ctx context.Context, normalizedAddress string) (*domain.Campaign, error) {
	var rec campaignModel
	err := r.db.WithContext(ctx).
		Joins("JOIN candidate_outreach ON candidate_outreach.campaign_id = campaigns.campaign_id").
		Where("candidate_outreach.address_norm = ?", normalizedAddress).
		Order("campaigns.created_at desc").
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	outreach, err := r.outreachFor(ctx, rec.CampaignID)
	if err != nil {
		return nil, err
	}
	return toDomainCampaign(rec, outreach), nil
}

func (r *campaignRepository) outreachFor(ctx context.Context, campaignID uuid.UUID) ([]outreachModel, error) {
	var rows []outreachModel
	if err := r.db.WithContext(ctx).Where("campaign_id = ?", campaignID).Order("sent_at asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
