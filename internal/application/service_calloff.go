package application

import (
	"context"
	"fmt"

	"github.com/caregrid/dispatch-service/internal/domain"
	"github.com/caregrid/dispatch-service/internal/metrics"
	"github.com/google/uuid"
)

// ProcessCalloff records the calloff with the roster, opens a campaign, and
// sends the first wave of offers: tier 1 capped at FirstWaveSize, backfilled
// with tier 2 when tier 1 alone is thinner than FirstWaveMin. An empty
// candidate pool escalates immediately instead of sending an empty wave.
func (s *Service) ProcessCalloff(ctx context.Context, assignmentID, workerID uuid.UUID, reason string) (CampaignResponse, error) {
	assignment, err := s.roster.GetAssignment(ctx, assignmentID)
	if err != nil {
		return CampaignResponse{}, err
	}
	if assignment.Cancelled {
		return CampaignResponse{}, fmt.Errorf("%w: assignment is cancelled", domain.ErrConflict)
	}
	client, err := s.roster.GetClient(ctx, assignment.ClientID)
	if err != nil {
		return CampaignResponse{}, err
	}

	// Campaign creation mutates the same aggregate the reply handlers do, so
	// it runs under the same assignment lock.
	token, acquired, lockErr := s.lock.TryAcquire(ctx, assignmentID, s.cfg.LockTTL)
	if lockErr != nil {
		if !s.cfg.AllowUnlockedAssignment {
			return CampaignResponse{}, fmt.Errorf("%w: %v", domain.ErrLockBackendUnavailable, lockErr)
		}
		s.logger.WarnContext(ctx, "lock backend unavailable, proceeding unlocked per configuration",
			"module", "application",
			"operation", "process_calloff",
			"assignment_id", assignmentID,
			"error", lockErr,
		)
	}
	if lockErr == nil && !acquired {
		metrics.LockConflicts.Inc()
		return CampaignResponse{}, fmt.Errorf("%w: assignment %s is being decided", domain.ErrLockConflict, assignmentID)
	}
	if lockErr == nil {
		defer func() {
			if err := s.lock.Release(ctx, assignmentID, token); err != nil {
				s.logger.WarnContext(ctx, "lock release failed",
					"module", "application",
					"operation", "process_calloff",
					"assignment_id", assignmentID,
					"error", err,
				)
			}
		}()
	}

	if existing, err := s.campaigns.GetByAssignment(ctx, assignmentID); err == nil && !existing.Terminal() {
		return CampaignResponse{}, fmt.Errorf("%w: campaign %s already open for assignment", domain.ErrConflict, existing.CampaignID)
	}
	if err := s.roster.RecordCalloff(ctx, assignmentID, workerID, reason); err != nil {
		return CampaignResponse{}, err
	}
	assignment.Status = domain.AssignmentStatusOpen

	now := s.nowFn()
	campaign := domain.NewCampaign(assignmentID, workerID, reason, s.cfg.CampaignTimeout, s.cfg.MaxContacts, now)
	if err := s.campaigns.Create(ctx, campaign); err != nil {
		return CampaignResponse{}, err
	}

	ranked, workersByID, err := s.rankCandidates(ctx, assignment, client, []uuid.UUID{workerID})
	if err != nil {
		return CampaignResponse{}, err
	}
	if len(ranked) == 0 {
		if err := s.escalate(ctx, campaign, "no available candidates"); err != nil {
			return CampaignResponse{}, err
		}
		return toCampaignResponse(campaign), nil
	}

	wave := firstWave(ranked, s.cfg.FirstWaveSize, s.cfg.FirstWaveMin)
	campaign.Start(now)
	sent := s.sendWave(ctx, campaign, assignment, client, wave, workersByID, s.cfg.FirstWaveSize, "first")
	if sent == 0 {
		// Every send failed; nobody was actually offered anything.
		if err := s.escalate(ctx, campaign, "offer delivery failed for all candidates"); err != nil {
			return CampaignResponse{}, err
		}
		return toCampaignResponse(campaign), nil
	}
	if err := s.campaigns.Update(ctx, campaign); err != nil {
		return CampaignResponse{}, err
	}
	s.logger.InfoContext(ctx, "calloff processed",
		"module", "application",
		"operation", "process_calloff",
		"campaign_id", campaign.CampaignID,
		"assignment_id", assignmentID,
		"candidates_ranked", len(ranked),
		"offers_sent", sent,
	)
	return toCampaignResponse(campaign), nil
}

// firstWave keeps tier 1 up to size, topping up with tier 2 only when tier 1
// has fewer than min candidates.
func firstWave(ranked []domain.MatchResult, size, min int) []domain.MatchResult {
	tier1 := make([]domain.MatchResult, 0, size)
	tier2 := make([]domain.MatchResult, 0, size)
	for _, m := range ranked {
		switch m.Tier {
		case 1:
			if len(tier1) < size {
				tier1 = append(tier1, m)
			}
		case 2:
			if len(tier2) < size {
				tier2 = append(tier2, m)
			}
		}
	}
	if len(tier1) >= min {
		return tier1
	}
	wave := tier1
	for _, m := range tier2 {
		if len(wave) >= size {
			break
		}
		wave = append(wave, m)
	}
	if len(wave) == 0 {
		// Only tier 3 remains; offer to the best of them rather than stranding
		// the shift.
		for _, m := range ranked {
			if len(wave) >= min {
				break
			}
			wave = append(wave, m)
		}
	}
	return wave
}

func (s *Service) GetCampaign(ctx context.Context, campaignID uuid.UUID) (CampaignResponse, error) {
	campaign, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return CampaignResponse{}, err
	}
	return toCampaignResponse(campaign), nil
}

func (s *Service) ListCampaigns(ctx context.Context, status domain.CampaignStatus, limit int) ([]CampaignResponse, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	campaigns, err := s.campaigns.ListByStatus(ctx, status, limit)
	if err != nil {
		return nil, err
	}
	out := make([]CampaignResponse, 0, len(campaigns))
	for _, c := range campaigns {
		out = append(out, toCampaignResponse(c))
	}
	return out, nil
}
