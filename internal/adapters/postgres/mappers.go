package postgres

import (
	"encoding/json"
	"time"

	"github.com/caregrid/dispatch-service/internal/classify"
	"github.com/caregrid/dispatch-service/internal/domain"
)

func toDomainCampaign(m campaignModel, outreach []outreachModel) *domain.Campaign {
	c := &domain.Campaign{
		CampaignID:       m.CampaignID,
		AssignmentID:     m.AssignmentID,
		Status:           domain.CampaignStatus(m.Status),
		CalloffWorkerID:  m.CalloffWorkerID,
		CalloffReason:    m.CalloffReason,
		EscalationReason: m.EscalationReason,
		ContactedCount:   m.ContactedCount,
		RespondedCount:   m.RespondedCount,
		AcceptedCount:    m.AcceptedCount,
		DeclinedCount:    m.DeclinedCount,
		WinnerWorkerID:   m.WinnerWorkerID,
		Timeout:          time.Duration(m.TimeoutSeconds) * time.Second,
		MaxContacts:      m.MaxContacts,
		CreatedAt:        m.CreatedAt,
		StartedAt:        m.StartedAt,
		CompletedAt:      m.CompletedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	for _, o := range outreach {
		c.Outreach = append(c.Outreach, domain.CandidateOutreach{
			OutreachID: o.OutreachID, CampaignID: o.CampaignID, WorkerID: o.WorkerID,
			Address: o.Address, Message: o.Message, SentAt: o.SentAt,
			Response: domain.ResponseLabel(o.Response), ResponseText: o.ResponseText,
			RespondedAt: o.RespondedAt, MatchScore: o.MatchScore, MatchTier: o.MatchTier,
			IsWinner: o.IsWinner, ClarificationSent: o.ClarificationSent,
		})
	}
	return c
}

func toCampaignModel(c *domain.Campaign) campaignModel {
	return campaignModel{
		CampaignID:       c.CampaignID,
		AssignmentID:     c.AssignmentID,
		Status:           string(c.Status),
		CalloffWorkerID:  c.CalloffWorkerID,
		CalloffReason:    c.CalloffReason,
		EscalationReason: c.EscalationReason,
		ContactedCount:   c.ContactedCount,
		RespondedCount:   c.RespondedCount,
		AcceptedCount:    c.AcceptedCount,
		DeclinedCount:    c.DeclinedCount,
		WinnerWorkerID:   c.WinnerWorkerID,
		TimeoutSeconds:   int64(c.Timeout.Seconds()),
		MaxContacts:      c.MaxContacts,
		CreatedAt:        c.CreatedAt,
		StartedAt:        c.StartedAt,
		CompletedAt:      c.CompletedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

func toOutreachModel(o domain.CandidateOutreach) outreachModel {
	return outreachModel{
		OutreachID: o.OutreachID, CampaignID: o.CampaignID, WorkerID: o.WorkerID,
		Address: o.Address, AddressNorm: classify.NormalizeAddress(o.Address),
		Message: o.Message, SentAt: o.SentAt, Response: string(o.Response),
		ResponseText: o.ResponseText, RespondedAt: o.RespondedAt,
		MatchScore: o.MatchScore, MatchTier: o.MatchTier,
		IsWinner: o.IsWinner, ClarificationSent: o.ClarificationSent,
	}
}

func toDomainWorker(m workerModel) domain.Worker {
	w := domain.Worker{
		WorkerID:             m.WorkerID,
		FirstName:            m.FirstName,
		LastName:             m.LastName,
		Phone:                m.Phone,
		City:                 m.City,
		Active:               m.Active,
		WeeklyHoursCommitted: m.WeeklyHoursCommitted,
		WeeklyHoursCap:       m.WeeklyHoursCap,
		ResponseRate:         m.ResponseRate,
		AcceptanceRate:       m.AcceptanceRate,
		Reliability:          m.Reliability,
		Rating:               m.Rating,
		HiredAt:              m.HiredAt,
	}
	_ = json.Unmarshal([]byte(orEmptyList(m.Skills)), &w.Skills)
	_ = json.Unmarshal([]byte(orEmptyList(m.PriorClientIDs)), &w.PriorClientIDs)
	var weekdays []int
	_ = json.Unmarshal([]byte(orEmptyList(m.AvailableWeekdays)), &weekdays)
	for _, d := range weekdays {
		w.AvailableWeekdays = append(w.AvailableWeekdays, time.Weekday(d))
	}
	return w
}

func toDomainClient(m clientModel) domain.Client {
	c := domain.Client{
		ClientID:   m.ClientID,
		FirstName:  m.FirstName,
		LastName:   m.LastName,
		City:       m.City,
		Difficulty: m.Difficulty,
	}
	_ = json.Unmarshal([]byte(orEmptyList(m.PreferredWorkerIDs)), &c.PreferredWorkerIDs)
	return c
}

func toDomainAssignment(m assignmentModel) domain.Assignment {
	return domain.Assignment{
		AssignmentID: m.AssignmentID,
		ClientID:     m.ClientID,
		WorkerID:     m.WorkerID,
		Status:       domain.AssignmentStatus(m.Status),
		StartAt:      m.StartAt,
		EndAt:        m.EndAt,
		Cancelled:    m.Cancelled,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func orEmptyList(raw string) string {
	if raw == "" {
		return "[]"
	}
	return raw
}
