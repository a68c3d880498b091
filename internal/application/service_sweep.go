package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/caregrid/dispatch-service/internal/domain"
	"github.com/caregrid/dispatch-service/internal/metrics"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// CheckTimeouts is the periodic escalation sweep. A campaign is escalated
// only when its negotiation window elapsed with zero acceptances; campaigns
// still inside their window are left untouched. Independently, a campaign
// whose assignment start time arrived unfilled expires.
func (s *Service) CheckTimeouts(ctx context.Context) (int, error) {
	campaigns, err := s.campaigns.ListByStatus(ctx, domain.CampaignStatusInProgress, 200)
	if err != nil {
		return 0, err
	}
	now := s.nowFn()
	swept := 0
	for _, campaign := range campaigns {
		if campaign.TimedOut(now) {
			reason := fmt.Sprintf("no accepted responses within %s", campaign.Timeout)
			if err := s.escalate(ctx, campaign, reason); err != nil {
				s.logger.ErrorContext(ctx, "timeout escalation failed",
					"module", "application",
					"operation", "check_timeouts",
					"campaign_id", campaign.CampaignID,
					"error", err,
				)
				continue
			}
			swept++
			continue
		}

		assignment, err := s.roster.GetAssignment(ctx, campaign.AssignmentID)
		if err != nil {
			continue
		}
		if assignment.Cancelled {
			if err := s.closeCancelled(ctx, campaign); err == nil {
				swept++
			}
			continue
		}
		if !assignment.StartAt.After(now) {
			if err := campaign.Expire(now); err != nil {
				continue
			}
			if err := s.campaigns.Update(ctx, campaign); err != nil {
				s.logger.ErrorContext(ctx, "expiry persist failed", "campaign_id", campaign.CampaignID, "error", err)
				continue
			}
			metrics.CampaignsClosed.WithLabelValues(string(domain.CampaignStatusExpired)).Inc()
			s.enqueueCampaignEvent(ctx, "campaign.expired", campaign)
			if s.onEscalation != nil {
				s.onEscalation(ctx, campaign)
			}
			swept++
		}
	}
	return swept, nil
}

// CancelCampaign invalidates the campaign for an externally cancelled
// assignment. No acceptance may apply afterwards, even one already holding a
// lock: decideAcceptance re-checks assignment validity inside the lock body.
func (s *Service) CancelCampaign(ctx context.Context, campaignID uuid.UUID) error {
	campaign, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return err
	}
	return s.closeCancelled(ctx, campaign)
}

func (s *Service) closeCancelled(ctx context.Context, campaign *domain.Campaign) error {
	if err := campaign.Cancel(s.nowFn()); err != nil {
		if errors.Is(err, domain.ErrCampaignClosed) {
			return nil
		}
		return err
	}
	if err := s.campaigns.Update(ctx, campaign); err != nil {
		return err
	}
	metrics.CampaignsClosed.WithLabelValues(string(domain.CampaignStatusCancelled)).Inc()
	s.enqueueCampaignEvent(ctx, "campaign.cancelled", campaign)
	s.logger.InfoContext(ctx, "campaign cancelled",
		"module", "application",
		"operation", "cancel_campaign",
		"campaign_id", campaign.CampaignID,
		"assignment_id", campaign.AssignmentID,
	)
	return nil
}

// HandleAssignmentCancelled consumes roster assignment.cancelled events and
// invalidates any open campaign on that assignment.
func (s *Service) HandleAssignmentCancelled(ctx context.Context, payload []byte) error {
	raw := gjson.GetBytes(payload, "data.assignment_id").String()
	if raw == "" {
		raw = gjson.GetBytes(payload, "assignment_id").String()
	}
	assignmentID, err := uuid.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: assignment_id missing from cancellation event", domain.ErrInvalidInput)
	}
	campaign, err := s.campaigns.GetByAssignment(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	return s.closeCancelled(ctx, campaign)
}
