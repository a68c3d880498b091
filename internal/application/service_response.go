package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/caregrid/dispatch-service/internal/classify"
	"github.com/caregrid/dispatch-service/internal/domain"
	"github.com/caregrid/dispatch-service/internal/metrics"
	"github.com/google/uuid"
)

// ProcessResponse routes one inbound reply to its outreach row, classifies
// it, and acts on the label. Handlers run in parallel: two candidates can
// reply within milliseconds of each other, so every mutation of the campaign
// happens under the assignment lock, against a copy reloaded inside it.
func (s *Service) ProcessResponse(ctx context.Context, campaignID uuid.UUID, fromAddress, text string) (ReplyResult, error) {
	campaign, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return ReplyResult{}, err
	}
	return s.processReply(ctx, campaign, fromAddress, text)
}

// RouteInboundReply serves transport integrations that only know the sender
// address: it resolves the open campaign whose outreach targeted it. When no
// campaign is open it falls back to the sender's most recent closed one, so a
// late acceptance still gets the shift-filled notice instead of silence.
func (s *Service) RouteInboundReply(ctx context.Context, fromAddress, text string) (ReplyResult, error) {
	normalized := classify.NormalizeAddress(fromAddress)
	campaign, err := s.campaigns.FindOpenByAddress(ctx, normalized)
	if errors.Is(err, domain.ErrNotFound) {
		campaign, err = s.campaigns.FindRecentByAddress(ctx, normalized)
	}
	if err != nil {
		return ReplyResult{}, err
	}
	return s.processReply(ctx, campaign, fromAddress, text)
}

func (s *Service) processReply(ctx context.Context, campaign *domain.Campaign, fromAddress, text string) (ReplyResult, error) {
	outreach, found := outreachByAddress(campaign, fromAddress)
	if !found {
		return ReplyResult{}, fmt.Errorf("%w: no outreach matches sender %s", domain.ErrNotFound, classify.NormalizeAddress(fromAddress))
	}

	verdict := classify.Classify(text)
	metrics.RepliesClassified.WithLabelValues(string(verdict.Label)).Inc()
	result := ReplyResult{
		CampaignID:     campaign.CampaignID.String(),
		WorkerID:       outreach.WorkerID.String(),
		Classification: string(verdict.Label),
		Rule:           verdict.Rule,
		Outcome:        OutcomeRecorded,
	}
	s.logger.InfoContext(ctx, "reply classified",
		"module", "application",
		"operation", "process_response",
		"campaign_id", campaign.CampaignID,
		"worker_id", outreach.WorkerID,
		"label", verdict.Label,
		"rule", verdict.Rule,
	)

	if campaign.Terminal() {
		return s.closedCampaignReply(ctx, campaign, outreach.WorkerID, outreach.Address, verdict.Label, result), nil
	}

	// Record-and-act is a read-modify-write of the whole aggregate. It runs
	// under the assignment lock so a handler working from a snapshot taken
	// before a concurrent acceptance cannot write that snapshot back over
	// the filled record.
	token, acquired, lockErr := s.lock.TryAcquire(ctx, campaign.AssignmentID, s.cfg.LockTTL)
	if lockErr != nil {
		if !s.cfg.AllowUnlockedAssignment {
			return ReplyResult{}, fmt.Errorf("%w: %v", domain.ErrLockBackendUnavailable, lockErr)
		}
		s.logger.WarnContext(ctx, "lock backend unavailable, proceeding unlocked per configuration",
			"module", "application",
			"operation", "process_response",
			"assignment_id", campaign.AssignmentID,
			"error", lockErr,
		)
	}
	if lockErr == nil && !acquired {
		metrics.LockConflicts.Inc()
		result.Outcome = OutcomeTryAgain
		return result, nil
	}
	if lockErr == nil {
		defer func() {
			if err := s.lock.Release(ctx, campaign.AssignmentID, token); err != nil {
				s.logger.WarnContext(ctx, "lock release failed",
					"module", "application",
					"operation", "process_response",
					"assignment_id", campaign.AssignmentID,
					"error", err,
				)
			}
		}()
	}

	// Reload inside the lock; the snapshot we classified against may predate
	// another handler's decision.
	campaign, err := s.campaigns.Get(ctx, campaign.CampaignID)
	if err != nil {
		return ReplyResult{}, err
	}
	outreach, found = outreachByAddress(campaign, fromAddress)
	if !found {
		return ReplyResult{}, fmt.Errorf("%w: no outreach matches sender %s", domain.ErrNotFound, classify.NormalizeAddress(fromAddress))
	}
	if campaign.Terminal() {
		return s.closedCampaignReply(ctx, campaign, outreach.WorkerID, outreach.Address, verdict.Label, result), nil
	}

	now := s.nowFn()
	switch verdict.Label {
	case domain.ResponseAccepted:
		if err := campaign.RecordResponse(outreach.WorkerID, verdict.Label, text, now); err != nil {
			return ReplyResult{}, err
		}
		if err := s.campaigns.Update(ctx, campaign); err != nil {
			return ReplyResult{}, err
		}
		outcome, err := s.decideAcceptance(ctx, campaign, outreach.WorkerID, outreach.Address)
		if err != nil {
			return ReplyResult{}, err
		}
		result.Outcome = outcome
		return result, nil

	case domain.ResponseDeclined:
		if err := campaign.RecordResponse(outreach.WorkerID, verdict.Label, text, now); err != nil {
			return ReplyResult{}, err
		}
		if err := s.campaigns.Update(ctx, campaign); err != nil {
			return ReplyResult{}, err
		}
		s.maybeSendSecondWave(ctx, campaign)
		return result, nil

	default:
		// Ambiguous: not a decision. Restate the offer once and wait for an
		// explicit yes/no; counts stay untouched until it resolves.
		if err := campaign.RecordResponse(outreach.WorkerID, domain.ResponseAmbiguous, text, now); err != nil {
			return ReplyResult{}, err
		}
		if !outreach.ClarificationSent {
			s.sendClarification(ctx, campaign, outreach.WorkerID, outreach.Address)
		}
		if err := s.campaigns.Update(ctx, campaign); err != nil {
			return ReplyResult{}, err
		}
		return result, nil
	}
}

// closedCampaignReply answers a reply that arrived after the campaign closed.
// An acceptance still deserves an answer; everything else is noise we ignore.
func (s *Service) closedCampaignReply(ctx context.Context, campaign *domain.Campaign, workerID uuid.UUID, address string, label domain.ResponseLabel, result ReplyResult) ReplyResult {
	result.Outcome = OutcomeCampaignClosed
	if campaign.Status == domain.CampaignStatusFilled && label == domain.ResponseAccepted {
		if campaign.WinnerWorkerID != nil && *campaign.WinnerWorkerID == workerID {
			result.Outcome = OutcomeConfirmed
			return result
		}
		result.Outcome = OutcomeAlreadyFilled
		s.sendFilledNotice(ctx, campaign, address)
	}
	return result
}

func outreachByAddress(campaign *domain.Campaign, fromAddress string) (domain.CandidateOutreach, bool) {
	normalized := classify.NormalizeAddress(fromAddress)
	for i := range campaign.Outreach {
		if classify.NormalizeAddress(campaign.Outreach[i].Address) == normalized {
			return campaign.Outreach[i], true
		}
	}
	return domain.CandidateOutreach{}, false
}

// decideAcceptance is the correctness-critical path: exactly one acceptance
// per assignment may win, across every process that might handle a reply.
// The caller holds the assignment lock and has already reloaded the campaign
// inside it; a held lock elsewhere means another handler is deciding right
// now, so that candidate gets a transient try-again, never a silent success
// or a dropped acceptance.
func (s *Service) decideAcceptance(ctx context.Context, campaign *domain.Campaign, workerID uuid.UUID, address string) (AcceptanceOutcome, error) {
	// The lock body re-checks the assignment itself, not just campaign
	// status: an external cancellation can race with an acceptance.
	assignment, err := s.roster.GetAssignment(ctx, campaign.AssignmentID)
	if err != nil {
		return "", err
	}
	if assignment.Cancelled {
		if err := campaign.Cancel(s.nowFn()); err == nil {
			_ = s.campaigns.Update(ctx, campaign)
			metrics.CampaignsClosed.WithLabelValues(string(domain.CampaignStatusCancelled)).Inc()
			s.enqueueCampaignEvent(ctx, "campaign.cancelled", campaign)
		}
		return OutcomeCampaignClosed, nil
	}
	if assignment.Status == domain.AssignmentStatusAssigned {
		return OutcomeAlreadyFilled, nil
	}

	now := s.nowFn()
	if err := campaign.MarkWinner(workerID, now); err != nil {
		return "", err
	}
	// Persist the decision before mutating the roster: the campaign record is
	// the audit source of truth for who won.
	if err := s.campaigns.Update(ctx, campaign); err != nil {
		return "", err
	}
	if err := s.roster.AssignWorker(ctx, campaign.AssignmentID, workerID); err != nil {
		// Never swallow a winner-arbitration failure; a lost error here risks
		// a double assignment or a lost acceptance.
		return "", fmt.Errorf("assign winner %s to assignment %s: %w", workerID, campaign.AssignmentID, err)
	}
	metrics.CampaignsClosed.WithLabelValues(string(domain.CampaignStatusFilled)).Inc()
	s.enqueueCampaignEvent(ctx, "campaign.filled", campaign)

	client, clientErr := s.roster.GetClient(ctx, assignment.ClientID)
	if clientErr == nil {
		if _, err := s.messenger.Send(ctx, address, s.confirmationMessage(assignment, client)); err != nil {
			metrics.SendFailures.Inc()
			s.logger.WarnContext(ctx, "winner confirmation send failed", "worker_id", workerID, "error", err)
		}
	}
	s.notifyLosers(ctx, campaign, assignment, workerID)

	s.logger.InfoContext(ctx, "campaign filled",
		"module", "application",
		"operation", "process_response",
		"campaign_id", campaign.CampaignID,
		"assignment_id", campaign.AssignmentID,
		"winner_worker_id", workerID,
	)
	return OutcomeConfirmed, nil
}

// notifyLosers tells candidates who already replied that the shift is gone.
// Candidates who never responded are left alone to avoid unnecessary noise.
func (s *Service) notifyLosers(ctx context.Context, campaign *domain.Campaign, assignment domain.Assignment, winnerID uuid.UUID) {
	body := s.filledMessage(assignment)
	for i := range campaign.Outreach {
		o := campaign.Outreach[i]
		if o.WorkerID == winnerID || o.Response == domain.ResponseNoResponse {
			continue
		}
		if _, err := s.messenger.Send(ctx, o.Address, body); err != nil {
			metrics.SendFailures.Inc()
			s.logger.WarnContext(ctx, "filled notice send failed", "worker_id", o.WorkerID, "error", err)
		}
	}
}

func (s *Service) sendFilledNotice(ctx context.Context, campaign *domain.Campaign, address string) {
	assignment, err := s.roster.GetAssignment(ctx, campaign.AssignmentID)
	if err != nil {
		return
	}
	if _, err := s.messenger.Send(ctx, address, s.filledMessage(assignment)); err != nil {
		metrics.SendFailures.Inc()
	}
}

func (s *Service) sendClarification(ctx context.Context, campaign *domain.Campaign, workerID uuid.UUID, address string) {
	assignment, err := s.roster.GetAssignment(ctx, campaign.AssignmentID)
	if err != nil {
		return
	}
	client, err := s.roster.GetClient(ctx, assignment.ClientID)
	if err != nil {
		return
	}
	if _, err := s.messenger.Send(ctx, address, s.clarifyMessage(assignment, client)); err != nil {
		metrics.SendFailures.Inc()
		return
	}
	campaign.MarkClarificationSent(workerID, s.nowFn())
}

// maybeSendSecondWave tops the campaign up from the reserve pool when
// declines have thinned the pending set below the configured threshold.
func (s *Service) maybeSendSecondWave(ctx context.Context, campaign *domain.Campaign) {
	if campaign.Terminal() || campaign.PendingCount() >= s.cfg.SecondWaveThreshold {
		return
	}
	assignment, err := s.roster.GetAssignment(ctx, campaign.AssignmentID)
	if err != nil {
		s.logger.WarnContext(ctx, "second wave skipped, assignment lookup failed", "campaign_id", campaign.CampaignID, "error", err)
		return
	}
	client, err := s.roster.GetClient(ctx, assignment.ClientID)
	if err != nil {
		s.logger.WarnContext(ctx, "second wave skipped, client lookup failed", "campaign_id", campaign.CampaignID, "error", err)
		return
	}
	exclude := append(campaign.ContactedWorkerIDs(), campaign.CalloffWorkerID)
	ranked, workersByID, err := s.rankCandidates(ctx, assignment, client, exclude)
	if err != nil {
		s.logger.WarnContext(ctx, "second wave skipped, ranking failed", "campaign_id", campaign.CampaignID, "error", err)
		return
	}
	if len(ranked) == 0 {
		return
	}
	sent := s.sendWave(ctx, campaign, assignment, client, ranked, workersByID, s.cfg.SecondWaveSize, "second")
	if sent == 0 {
		return
	}
	if err := s.campaigns.Update(ctx, campaign); err != nil {
		s.logger.ErrorContext(ctx, "second wave persist failed", "campaign_id", campaign.CampaignID, "error", err)
	}
}
