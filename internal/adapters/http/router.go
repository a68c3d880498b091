package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/caregrid/dispatch-service/internal/application"
	"github.com/caregrid/dispatch-service/internal/metrics"
)

type Handler struct {
	service      *application.Service
	webhookToken string
}

func NewHandler(service *application.Service, webhookToken string) *Handler {
	return &Handler{service: service, webhookToken: webhookToken}
}

func NewRouter(handler *Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeMessage(w, http.StatusOK, "ok") })
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) { writeMessage(w, http.StatusOK, "ready") })
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/calloffs", handler.reportCalloff)
		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", handler.listCampaigns)
			r.Get("/{campaign_id}", handler.getCampaign)
			r.Post("/{campaign_id}/replies", handler.recordReply)
			r.Post("/{campaign_id}/cancel", handler.cancelCampaign)
		})
	})

	r.Route("/webhooks", func(r chi.Router) {
		r.Use(handler.webhookAuthMiddleware)
		r.Post("/replies", handler.inboundReplyWebhook)
	})

	return r
}
