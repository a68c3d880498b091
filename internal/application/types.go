package application

import (
	"time"

	"github.com/caregrid/dispatch-service/internal/domain"
)

type Config struct {
	ServiceName         string
	CampaignTimeout     time.Duration
	MaxContacts         int
	FirstWaveSize       int
	FirstWaveMin        int
	SecondWaveThreshold int
	SecondWaveSize      int
	LockTTL             time.Duration
	UrgentWindow        time.Duration
	// AllowUnlockedAssignment degrades winner arbitration to best-effort when
	// the lock backend is down. Off by default; enabling it is a deliberate,
	// logged deployment choice for single-instance environments only.
	AllowUnlockedAssignment bool
}

// AcceptanceOutcome is what an accepting candidate observes; only one
// concurrent acceptance per assignment ever sees OutcomeConfirmed.
type AcceptanceOutcome string

const (
	OutcomeConfirmed      AcceptanceOutcome = "confirmed"
	OutcomeAlreadyFilled  AcceptanceOutcome = "already_filled"
	OutcomeTryAgain       AcceptanceOutcome = "try_again"
	OutcomeCampaignClosed AcceptanceOutcome = "campaign_closed"
	OutcomeRecorded       AcceptanceOutcome = "recorded"
)

type CalloffRequest struct {
	AssignmentID string `json:"assignment_id"`
	WorkerID     string `json:"worker_id"`
	Reason       string `json:"reason"`
}

type ReplyRequest struct {
	From string `json:"from"`
	Text string `json:"text"`
}

type ReplyResult struct {
	CampaignID     string            `json:"campaign_id"`
	WorkerID       string            `json:"worker_id,omitempty"`
	Classification string            `json:"classification"`
	Rule           string            `json:"rule,omitempty"`
	Outcome        AcceptanceOutcome `json:"outcome"`
}

type OutreachView struct {
	WorkerID          string     `json:"worker_id"`
	Address           string     `json:"address"`
	SentAt            time.Time  `json:"sent_at"`
	Response          string     `json:"response"`
	ResponseText      string     `json:"response_text,omitempty"`
	RespondedAt       *time.Time `json:"responded_at,omitempty"`
	MatchScore        int        `json:"match_score"`
	MatchTier         int        `json:"match_tier"`
	IsWinner          bool       `json:"is_winner"`
	ClarificationSent bool       `json:"clarification_sent,omitempty"`
}

type CampaignResponse struct {
	CampaignID       string         `json:"campaign_id"`
	AssignmentID     string         `json:"assignment_id"`
	Status           string         `json:"status"`
	CalloffReason    string         `json:"calloff_reason,omitempty"`
	EscalationReason string         `json:"escalation_reason,omitempty"`
	ContactedCount   int            `json:"contacted_count"`
	RespondedCount   int            `json:"responded_count"`
	AcceptedCount    int            `json:"accepted_count"`
	DeclinedCount    int            `json:"declined_count"`
	WinnerWorkerID   string         `json:"winner_worker_id,omitempty"`
	Outreach         []OutreachView `json:"outreach,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	StartedAt        *time.Time     `json:"started_at,omitempty"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
}

func toCampaignResponse(c *domain.Campaign) CampaignResponse {
	resp := CampaignResponse{
		CampaignID:       c.CampaignID.String(),
		AssignmentID:     c.AssignmentID.String(),
		Status:           string(c.Status),
		CalloffReason:    c.CalloffReason,
		EscalationReason: c.EscalationReason,
		ContactedCount:   c.ContactedCount,
		RespondedCount:   c.RespondedCount,
		AcceptedCount:    c.AcceptedCount,
		DeclinedCount:    c.DeclinedCount,
		CreatedAt:        c.CreatedAt,
		StartedAt:        c.StartedAt,
		CompletedAt:      c.CompletedAt,
	}
	if c.WinnerWorkerID != nil {
		resp.WinnerWorkerID = c.WinnerWorkerID.String()
	}
	for i := range c.Outreach {
		o := c.Outreach[i]
		resp.Outreach = append(resp.Outreach, OutreachView{
			WorkerID:          o.WorkerID.String(),
			Address:           o.Address,
			SentAt:            o.SentAt,
			Response:          string(o.Response),
			ResponseText:      o.ResponseText,
			RespondedAt:       o.RespondedAt,
			MatchScore:        o.MatchScore,
			MatchTier:         o.MatchTier,
			IsWinner:          o.IsWinner,
			ClarificationSent: o.ClarificationSent,
		})
	}
	return resp
}
