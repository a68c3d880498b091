package application

import (
	"context"
	"encoding/json"
	"time"

	"github.com/caregrid/dispatch-service/internal/domain"
	"github.com/caregrid/dispatch-service/internal/matching"
	"github.com/caregrid/dispatch-service/internal/metrics"
	"github.com/caregrid/dispatch-service/internal/ports"
	"github.com/google/uuid"
)

type campaignEventData struct {
	CampaignID       string `json:"campaign_id"`
	AssignmentID     string `json:"assignment_id"`
	Status           string `json:"status"`
	WinnerWorkerID   string `json:"winner_worker_id,omitempty"`
	EscalationReason string `json:"escalation_reason,omitempty"`
	ContactedCount   int    `json:"contacted_count"`
	RespondedCount   int    `json:"responded_count"`
	OccurredAt       string `json:"occurred_at"`
}

func (s *Service) enqueueCampaignEvent(ctx context.Context, eventType string, campaign *domain.Campaign) {
	occurredAt := s.nowFn()
	data := campaignEventData{
		CampaignID:       campaign.CampaignID.String(),
		AssignmentID:     campaign.AssignmentID.String(),
		Status:           string(campaign.Status),
		EscalationReason: campaign.EscalationReason,
		ContactedCount:   campaign.ContactedCount,
		RespondedCount:   campaign.RespondedCount,
		OccurredAt:       occurredAt.Format(time.RFC3339),
	}
	if campaign.WinnerWorkerID != nil {
		data.WinnerWorkerID = campaign.WinnerWorkerID.String()
	}
	envelope := map[string]any{
		"event_id":       uuid.NewString(),
		"event_type":     eventType,
		"occurred_at":    occurredAt.Format(time.RFC3339),
		"source_service": s.cfg.ServiceName,
		"partition_key":  campaign.AssignmentID.String(),
		"data":           data,
	}
	payload, _ := json.Marshal(envelope)
	err := s.outbox.Enqueue(ctx, ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    eventType,
		PartitionKey: campaign.AssignmentID.String(),
		Payload:      payload,
		OccurredAt:   occurredAt,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "enqueue campaign event failed",
			"module", "application",
			"operation", "enqueue_event",
			"event_type", eventType,
			"campaign_id", campaign.CampaignID,
			"error", err,
		)
	}
}

// sendWave sends up to limit offers from the ranked slice and records one
// outreach row per delivered message. Send failures are logged and skipped;
// the transport owns its own retry policy.
func (s *Service) sendWave(ctx context.Context, campaign *domain.Campaign, assignment domain.Assignment, client domain.Client, ranked []domain.MatchResult, workersByID map[uuid.UUID]domain.Worker, limit int, wave string) int {
	now := s.nowFn()
	body := s.offerMessage(assignment, client, now)
	sent := 0
	for _, match := range ranked {
		if sent >= limit {
			break
		}
		worker, ok := workersByID[match.WorkerID]
		if !ok {
			continue
		}
		if _, err := s.messenger.Send(ctx, worker.Phone, body); err != nil {
			metrics.SendFailures.Inc()
			s.logger.WarnContext(ctx, "offer send failed",
				"module", "application",
				"operation", "send_wave",
				"campaign_id", campaign.CampaignID,
				"worker_id", worker.WorkerID,
				"error", err,
			)
			continue
		}
		err := campaign.AddOutreach(domain.CandidateOutreach{
			OutreachID: uuid.New(),
			WorkerID:   worker.WorkerID,
			Address:    worker.Phone,
			Message:    body,
			SentAt:     now,
			Response:   domain.ResponseNoResponse,
			MatchScore: match.Score,
			MatchTier:  match.Tier,
		}, now)
		if err != nil {
			// Max contacts reached; stop fanning out.
			break
		}
		sent++
	}
	if sent > 0 {
		metrics.OffersSent.WithLabelValues(wave).Add(float64(sent))
	}
	return sent
}

// rankCandidates pulls a fresh roster snapshot and ranks it. MatchResults are
// never persisted, so every wave recomputes.
func (s *Service) rankCandidates(ctx context.Context, assignment domain.Assignment, client domain.Client, excludeIDs []uuid.UUID) ([]domain.MatchResult, map[uuid.UUID]domain.Worker, error) {
	pool, err := s.roster.GetWorkersAvailable(ctx, assignment.StartAt, excludeIDs)
	if err != nil {
		return nil, nil, err
	}
	workersByID := make(map[uuid.UUID]domain.Worker, len(pool))
	for _, w := range pool {
		workersByID[w.WorkerID] = w
	}
	return matching.Rank(assignment, client, pool, excludeIDs), workersByID, nil
}

func (s *Service) escalate(ctx context.Context, campaign *domain.Campaign, reason string) error {
	now := s.nowFn()
	if err := campaign.Escalate(reason, now); err != nil {
		return err
	}
	if err := s.campaigns.Update(ctx, campaign); err != nil {
		return err
	}
	metrics.CampaignsClosed.WithLabelValues(string(domain.CampaignStatusEscalated)).Inc()
	s.enqueueCampaignEvent(ctx, "campaign.escalated", campaign)
	if s.onEscalation != nil {
		s.onEscalation(ctx, campaign)
	}
	s.logger.InfoContext(ctx, "campaign escalated",
		"module", "application",
		"operation", "escalate",
		"campaign_id", campaign.CampaignID,
		"assignment_id", campaign.AssignmentID,
		"reason", reason,
	)
	return nil
}
