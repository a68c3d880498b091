package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/caregrid/dispatch-service/internal/application"
	"github.com/caregrid/dispatch-service/internal/domain"
)

func (h *Handler) reportCalloff(w http.ResponseWriter, r *http.Request) {
	var req application.CalloffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json body")
		return
	}
	assignmentID, err := uuid.Parse(req.AssignmentID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid assignment_id")
		return
	}
	workerID, err := uuid.Parse(req.WorkerID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid worker_id")
		return
	}
	resp, err := h.service.ProcessCalloff(r.Context(), assignmentID, workerID, req.Reason)
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg)
		return
	}
	writeSuccess(w, http.StatusCreated, resp)
}

func (h *Handler) recordReply(w http.ResponseWriter, r *http.Request) {
	campaignID, err := uuid.Parse(chi.URLParam(r, "campaign_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid campaign_id")
		return
	}
	var req application.ReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json body")
		return
	}
	if strings.TrimSpace(req.From) == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "from is required")
		return
	}
	resp, err := h.service.ProcessResponse(r.Context(), campaignID, req.From, req.Text)
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg)
		return
	}
	writeSuccess(w, http.StatusOK, resp)
}

// inboundReplyWebhook receives carrier callbacks where only the sender address
// identifies the campaign. Unroutable replies are acknowledged with 200 so the
// carrier does not retry them.
func (h *Handler) inboundReplyWebhook(w http.ResponseWriter, r *http.Request) {
	var req application.ReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json body")
		return
	}
	if strings.TrimSpace(req.From) == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "from is required")
		return
	}
	resp, err := h.service.RouteInboundReply(r.Context(), req.From, req.Text)
	if err != nil {
		if status, code, msg := mapDomainError(err); status != http.StatusNotFound {
			writeError(w, status, code, msg)
			return
		}
		writeMessage(w, http.StatusOK, "no open campaign for sender")
		return
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (h *Handler) getCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID, err := uuid.Parse(chi.URLParam(r, "campaign_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid campaign_id")
		return
	}
	resp, err := h.service.GetCampaign(r.Context(), campaignID)
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg)
		return
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (h *Handler) listCampaigns(w http.ResponseWriter, r *http.Request) {
	status := domain.CampaignStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = domain.CampaignStatusInProgress
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	resp, err := h.service.ListCampaigns(r.Context(), status, limit)
	if err != nil {
		st, code, msg := mapDomainError(err)
		writeError(w, st, code, msg)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"campaigns": resp,
		"pagination": map[string]any{
			"limit": limit,
		},
	})
}

func (h *Handler) cancelCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID, err := uuid.Parse(chi.URLParam(r, "campaign_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid campaign_id")
		return
	}
	if err := h.service.CancelCampaign(r.Context(), campaignID); err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg)
		return
	}
	writeMessage(w, http.StatusOK, "Campaign cancelled")
}
