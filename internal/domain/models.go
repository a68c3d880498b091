package domain

import (
	"time"

	"github.com/google/uuid"
)

type AssignmentStatus string

const (
	AssignmentStatusOpen     AssignmentStatus = "open"
	AssignmentStatusAssigned AssignmentStatus = "assigned"
)

type CampaignStatus string

const (
	CampaignStatusPending    CampaignStatus = "pending"
	CampaignStatusInProgress CampaignStatus = "in_progress"
	CampaignStatusFilled     CampaignStatus = "filled"
	CampaignStatusEscalated  CampaignStatus = "escalated"
	CampaignStatusCancelled  CampaignStatus = "cancelled"
	CampaignStatusExpired    CampaignStatus = "expired"
)

func (s CampaignStatus) Terminal() bool {
	switch s {
	case CampaignStatusFilled, CampaignStatusEscalated, CampaignStatusCancelled, CampaignStatusExpired:
		return true
	default:
		return false
	}
}

type ResponseLabel string

const (
	ResponseAccepted   ResponseLabel = "accepted"
	ResponseDeclined   ResponseLabel = "declined"
	ResponseNoResponse ResponseLabel = "no_response"
	ResponseAmbiguous  ResponseLabel = "ambiguous"
)

type Assignment struct {
	AssignmentID uuid.UUID
	ClientID     uuid.UUID
	WorkerID     *uuid.UUID
	Status       AssignmentStatus
	StartAt      time.Time
	EndAt        time.Time
	Cancelled    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (a Assignment) Duration() time.Duration {
	return a.EndAt.Sub(a.StartAt)
}

type Worker struct {
	WorkerID             uuid.UUID
	FirstName            string
	LastName             string
	Phone                string
	City                 string
	Active               bool
	WeeklyHoursCommitted float64
	WeeklyHoursCap       float64
	Skills               []string
	PriorClientIDs       []uuid.UUID
	AvailableWeekdays    []time.Weekday
	ResponseRate         float64
	AcceptanceRate       float64
	Reliability          float64
	Rating               float64
	HiredAt              time.Time
}

func (w Worker) HasServedClient(clientID uuid.UUID) bool {
	for _, id := range w.PriorClientIDs {
		if id == clientID {
			return true
		}
	}
	return false
}

func (w Worker) AvailableOn(day time.Weekday) bool {
	for _, d := range w.AvailableWeekdays {
		if d == day {
			return true
		}
	}
	return false
}

type Client struct {
	ClientID           uuid.UUID
	FirstName          string
	LastName           string
	City               string
	Difficulty         int
	PreferredWorkerIDs []uuid.UUID
}

func (c Client) Prefers(workerID uuid.UUID) bool {
	for _, id := range c.PreferredWorkerIDs {
		if id == workerID {
			return true
		}
	}
	return false
}

// MatchResult is ephemeral: produced fresh on every ranking call, never persisted.
type MatchResult struct {
	WorkerID uuid.UUID
	Score    int
	Tier     int
	Reasons  []string
}

type CandidateOutreach struct {
	OutreachID        uuid.UUID
	CampaignID        uuid.UUID
	WorkerID          uuid.UUID
	Address           string
	Message           string
	SentAt            time.Time
	Response          ResponseLabel
	ResponseText      string
	RespondedAt       *time.Time
	MatchScore        int
	MatchTier         int
	IsWinner          bool
	ClarificationSent bool
}
