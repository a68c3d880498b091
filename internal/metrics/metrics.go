// Package metrics provides Prometheus observability for the dispatch engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the custom prometheus registry for the service.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

// OffersSent counts outbound offers by wave ("first" or "second").
var OffersSent = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dispatch",
	Name:      "offers_sent_total",
	Help:      "Outbound replacement offers sent, by wave",
}, []string{"wave"})

// RepliesClassified counts inbound replies by classification label.
var RepliesClassified = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dispatch",
	Name:      "replies_classified_total",
	Help:      "Inbound replies by classification label",
}, []string{"label"})

// CampaignsClosed counts campaigns reaching a terminal state, by status.
var CampaignsClosed = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dispatch",
	Name:      "campaigns_closed_total",
	Help:      "Campaigns reaching a terminal state, by status",
}, []string{"status"})

// LockConflicts counts acceptances deferred because another handler held the
// assignment lock. A steady nonzero rate is normal under reply races.
var LockConflicts = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "dispatch",
	Name:      "lock_conflicts_total",
	Help:      "Acceptances told to retry because the assignment lock was held",
})

// SendFailures counts offers the transport could not deliver.
var SendFailures = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "dispatch",
	Name:      "send_failures_total",
	Help:      "Outbound messages the transport failed to send",
})
