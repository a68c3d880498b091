package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Campaign is the aggregate root for one attempt at filling an open
// assignment. All mutation goes through its methods so the state machine
// (pending -> in_progress -> filled|escalated|cancelled|expired) and the
// single-winner invariant hold no matter who calls.
type Campaign struct {
	CampaignID       uuid.UUID
	AssignmentID     uuid.UUID
	Status           CampaignStatus
	CalloffWorkerID  uuid.UUID
	CalloffReason    string
	EscalationReason string
	Outreach         []CandidateOutreach
	ContactedCount   int
	RespondedCount   int
	AcceptedCount    int
	DeclinedCount    int
	WinnerWorkerID   *uuid.UUID
	Timeout          time.Duration
	MaxContacts      int
	CreatedAt        time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
	UpdatedAt        time.Time
}

func NewCampaign(assignmentID, calloffWorkerID uuid.UUID, calloffReason string, timeout time.Duration, maxContacts int, now time.Time) *Campaign {
	return &Campaign{
		CampaignID:      uuid.New(),
		AssignmentID:    assignmentID,
		Status:          CampaignStatusPending,
		CalloffWorkerID: calloffWorkerID,
		CalloffReason:   calloffReason,
		Timeout:         timeout,
		MaxContacts:     maxContacts,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (c *Campaign) Terminal() bool { return c.Status.Terminal() }

// Start moves the campaign into in_progress when the first wave goes out.
func (c *Campaign) Start(now time.Time) {
	if c.Status != CampaignStatusPending {
		return
	}
	c.Status = CampaignStatusInProgress
	c.StartedAt = &now
	c.UpdatedAt = now
}

func (c *Campaign) AddOutreach(o CandidateOutreach, now time.Time) error {
	if c.Terminal() {
		return fmt.Errorf("%w: cannot add outreach in status %s", ErrCampaignClosed, c.Status)
	}
	if c.MaxContacts > 0 && len(c.Outreach) >= c.MaxContacts {
		return fmt.Errorf("%w: max contacts (%d) reached", ErrInvalidInput, c.MaxContacts)
	}
	if c.findOutreach(o.WorkerID) != nil {
		return fmt.Errorf("%w: worker already contacted", ErrConflict)
	}
	o.CampaignID = c.CampaignID
	if o.Response == "" {
		o.Response = ResponseNoResponse
	}
	c.Outreach = append(c.Outreach, o)
	c.ContactedCount++
	c.UpdatedAt = now
	return nil
}

func (c *Campaign) findOutreach(workerID uuid.UUID) *CandidateOutreach {
	for i := range c.Outreach {
		if c.Outreach[i].WorkerID == workerID {
			return &c.Outreach[i]
		}
	}
	return nil
}

func (c *Campaign) OutreachFor(workerID uuid.UUID) (CandidateOutreach, bool) {
	if o := c.findOutreach(workerID); o != nil {
		return *o, true
	}
	return CandidateOutreach{}, false
}

// RecordResponse updates the matching outreach entry and the campaign
// counters. A reply that re-resolves an earlier ambiguous one replaces it;
// ambiguous replies never count toward the accept/decline totals.
func (c *Campaign) RecordResponse(workerID uuid.UUID, label ResponseLabel, text string, now time.Time) error {
	if c.Terminal() {
		return fmt.Errorf("%w: cannot record response in status %s", ErrCampaignClosed, c.Status)
	}
	o := c.findOutreach(workerID)
	if o == nil {
		return fmt.Errorf("%w: no outreach for worker %s", ErrNotFound, workerID)
	}
	switch o.Response {
	case ResponseAccepted, ResponseDeclined:
		// Already decided; keep the first decision.
		return nil
	case ResponseNoResponse:
		c.RespondedCount++
	case ResponseAmbiguous:
		// Clarification round; responded already counted.
	}
	o.Response = label
	o.ResponseText = text
	o.RespondedAt = &now
	switch label {
	case ResponseAccepted:
		c.AcceptedCount++
	case ResponseDeclined:
		c.DeclinedCount++
	}
	c.UpdatedAt = now
	return nil
}

// MarkWinner sets the single winning outreach and closes the campaign as
// filled. Calling it again for the same worker is a no-op; for a different
// worker it is rejected. A winner is never overwritten.
func (c *Campaign) MarkWinner(workerID uuid.UUID, now time.Time) error {
	if c.Status == CampaignStatusFilled {
		if c.WinnerWorkerID != nil && *c.WinnerWorkerID == workerID {
			return nil
		}
		return fmt.Errorf("%w: already filled", ErrCampaignClosed)
	}
	if c.Terminal() {
		return fmt.Errorf("%w: cannot mark winner in status %s", ErrCampaignClosed, c.Status)
	}
	o := c.findOutreach(workerID)
	if o == nil {
		return fmt.Errorf("%w: no outreach for worker %s", ErrNotFound, workerID)
	}
	o.IsWinner = true
	winner := workerID
	c.WinnerWorkerID = &winner
	c.Status = CampaignStatusFilled
	c.CompletedAt = &now
	c.UpdatedAt = now
	return nil
}

func (c *Campaign) Escalate(reason string, now time.Time) error {
	if c.Terminal() {
		return fmt.Errorf("%w: cannot escalate in status %s", ErrCampaignClosed, c.Status)
	}
	c.Status = CampaignStatusEscalated
	c.EscalationReason = reason
	c.CompletedAt = &now
	c.UpdatedAt = now
	return nil
}

func (c *Campaign) Cancel(now time.Time) error {
	if c.Terminal() {
		return fmt.Errorf("%w: cannot cancel in status %s", ErrCampaignClosed, c.Status)
	}
	c.Status = CampaignStatusCancelled
	c.CompletedAt = &now
	c.UpdatedAt = now
	return nil
}

func (c *Campaign) Expire(now time.Time) error {
	if c.Terminal() {
		return fmt.Errorf("%w: cannot expire in status %s", ErrCampaignClosed, c.Status)
	}
	c.Status = CampaignStatusExpired
	c.EscalationReason = "assignment start reached unfilled"
	c.CompletedAt = &now
	c.UpdatedAt = now
	return nil
}

// MarkClarificationSent flags an outreach so the clarifying follow-up is only
// sent once per ambiguous reply.
func (c *Campaign) MarkClarificationSent(workerID uuid.UUID, now time.Time) {
	if o := c.findOutreach(workerID); o != nil {
		o.ClarificationSent = true
		c.UpdatedAt = now
	}
}

// PendingCount counts candidates whose offer is still undecided. Ambiguous
// replies stay pending until the clarification resolves them.
func (c *Campaign) PendingCount() int {
	n := 0
	for i := range c.Outreach {
		switch c.Outreach[i].Response {
		case ResponseNoResponse, ResponseAmbiguous:
			n++
		}
	}
	return n
}

// TimedOut reports whether the negotiation window elapsed with nobody
// accepting. Only in_progress campaigns can time out.
func (c *Campaign) TimedOut(now time.Time) bool {
	if c.Status != CampaignStatusInProgress || c.StartedAt == nil {
		return false
	}
	return c.AcceptedCount == 0 && now.Sub(*c.StartedAt) > c.Timeout
}

func (c *Campaign) ContactedWorkerIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.Outreach))
	for i := range c.Outreach {
		ids = append(ids, c.Outreach[i].WorkerID)
	}
	return ids
}
