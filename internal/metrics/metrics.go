package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "riskwatch"

// Metrics holds the pipeline's Prometheus collectors
type Metrics struct {
	MessagesScanned    prometheus.Counter
	KeywordHits        *prometheus.CounterVec
	ReportsCreated     prometheus.Counter
	ReportUpdates      prometheus.Counter
	AdminNotifications *prometheus.CounterVec
	PushFailures       *prometheus.CounterVec
	ChatCompletions    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_scanned_total",
			Help:      "Messages passed through the keyword matcher.",
		}),
		KeywordHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keyword_hits_total",
			Help:      "Risk indicator phrase matches, by phrase.",
		}, []string{"keyword"}),
		ReportsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_created_total",
			Help:      "Risk reports persisted.",
		}),
		ReportUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_updates_total",
			Help:      "Triage updates applied to risk reports.",
		}),
		AdminNotifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admin_notifications_total",
			Help:      "Per-administrator notification attempts, by outcome.",
		}, []string{"outcome"}),
		PushFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_failures_total",
			Help:      "Failed push deliveries, by channel.",
		}, []string{"channel"}),
		ChatCompletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_completions_total",
			Help:      "Chat completion calls, by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.MessagesScanned,
		m.KeywordHits,
		m.ReportsCreated,
		m.ReportUpdates,
		m.AdminNotifications,
		m.PushFailures,
		m.ChatCompletions,
	)
	return m
}

// NewUnregistered returns collectors attached to a private registry,
// for tests and command-line tools
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}

// ObserveDetection records one scanned message and its matched phrases
func (m *Metrics) ObserveDetection(keywords []string) {
	m.MessagesScanned.Inc()
	for _, k := range keywords {
		m.KeywordHits.WithLabelValues(k).Inc()
	}
}
