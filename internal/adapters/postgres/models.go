package postgres

import (
	"time"

	"github.com/google/uuid"
)

type campaignModel struct {
	CampaignID       uuid.UUID  `gorm:"column:campaign_id;type:uuid;primaryKey"`
	AssignmentID     uuid.UUID  `gorm:"column:assignment_id"`
	Status           string     `gorm:"column:status"`
	CalloffWorkerID  uuid.UUID  `gorm:"column:calloff_worker_id"`
	CalloffReason    string     `gorm:"column:calloff_reason"`
	EscalationReason string     `gorm:"column:escalation_reason"`
	ContactedCount   int        `gorm:"column:contacted_count"`
	RespondedCount   int        `gorm:"column:responded_count"`
	AcceptedCount    int        `gorm:"column:accepted_count"`
	DeclinedCount    int        `gorm:"column:declined_count"`
	WinnerWorkerID   *uuid.UUID `gorm:"column:winner_worker_id"`
	TimeoutSeconds   int64      `gorm:"column:timeout_seconds"`
	MaxContacts      int        `gorm:"column:max_contacts"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	StartedAt        *time.Time `gorm:"column:started_at"`
	CompletedAt      *time.Time `gorm:"column:completed_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at"`
}

func (campaignModel) TableName() string { return "campaigns" }

type outreachModel struct {
	OutreachID        uuid.UUID  `gorm:"column:outreach_id;type:uuid;primaryKey"`
	CampaignID        uuid.UUID  `gorm:"column:campaign_id"`
	WorkerID          uuid.UUID  `gorm:"column:worker_id"`
	Address           string     `gorm:"column:address"`
	AddressNorm       string     `gorm:"column:address_norm"`
	Message           string     `gorm:"column:message"`
	SentAt            time.Time  `gorm:"column:sent_at"`
	Response          string     `gorm:"column:response"`
	ResponseText      string     `gorm:"column:response_text"`
	RespondedAt       *time.Time `gorm:"column:responded_at"`
	MatchScore        int        `gorm:"column:match_score"`
	MatchTier         int        `gorm:"column:match_tier"`
	IsWinner          bool       `gorm:"column:is_winner"`
	ClarificationSent bool       `gorm:"column:clarification_sent"`
}

func (outreachModel) TableName() string { return "candidate_outreach" }

type workerModel struct {
	WorkerID             uuid.UUID `gorm:"column:worker_id;type:uuid;primaryKey"`
	FirstName            string    `gorm:"column:first_name"`
	LastName             string    `gorm:"column:last_name"`
	Phone                string    `gorm:"column:phone"`
	City                 string    `gorm:"column:city"`
	Active               bool      `gorm:"column:active"`
	WeeklyHoursCommitted float64   `gorm:"column:weekly_hours_committed"`
	WeeklyHoursCap       float64   `gorm:"column:weekly_hours_cap"`
	Skills               string    `gorm:"column:skills"`
	PriorClientIDs       string    `gorm:"column:prior_client_ids"`
	AvailableWeekdays    string    `gorm:"column:available_weekdays"`
	ResponseRate         float64   `gorm:"column:response_rate"`
	AcceptanceRate       float64   `gorm:"column:acceptance_rate"`
	Reliability          float64   `gorm:"column:reliability"`
	Rating               float64   `gorm:"column:rating"`
	HiredAt              time.Time `gorm:"column:hired_at"`
	CreatedAt            time.Time `gorm:"column:created_at"`
}

func (workerModel) TableName() string { return "workers" }

type clientModel struct {
	ClientID           uuid.UUID `gorm:"column:client_id;type:uuid;primaryKey"`
	FirstName          string    `gorm:"column:first_name"`
	LastName           string    `gorm:"column:last_name"`
	City               string    `gorm:"column:city"`
	Difficulty         int       `gorm:"column:difficulty"`
	PreferredWorkerIDs string    `gorm:"column:preferred_worker_ids"`
}

func (clientModel) TableName() string { return "clients" }

type assignmentModel struct {
	AssignmentID uuid.UUID  `gorm:"column:assignment_id;type:uuid;primaryKey"`
	ClientID     uuid.UUID  `gorm:"column:client_id"`
	WorkerID     *uuid.UUID `gorm:"column:worker_id"`
	Status       string     `gorm:"column:status"`
	StartAt      time.Time  `gorm:"column:start_at"`
	EndAt        time.Time  `gorm:"column:end_at"`
	Cancelled    bool       `gorm:"column:cancelled"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at"`
}

func (assignmentModel) TableName() string { return "assignments" }

type calloffModel struct {
	CalloffID    uuid.UUID `gorm:"column:calloff_id;type:uuid;default:gen_random_uuid();primaryKey"`
	AssignmentID uuid.UUID `gorm:"column:assignment_id"`
	WorkerID     uuid.UUID `gorm:"column:worker_id"`
	Reason       string    `gorm:"column:reason"`
	RecordedAt   time.Time `gorm:"column:recorded_at"`
}

func (calloffModel) TableName() string { return "calloffs" }

type dispatchOutboxModel struct {
	OutboxID     uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      string     `gorm:"column:payload"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	FirstSeenAt  time.Time  `gorm:"column:first_seen_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
	RetryCount   int        `gorm:"column:retry_count"`
	LastError    *string    `gorm:"column:last_error"`
	LastErrorAt  *time.Time `gorm:"column:last_error_at"`
}

func (dispatchOutboxModel) TableName() string { return "dispatch_outbox" }
