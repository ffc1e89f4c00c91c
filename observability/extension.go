// Package observability provides a metrics extension for the quota core
// that records lifecycle event counts and latencies via
// prometheus/client_golang, registered as a plugin.Registry plugin.
package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mkucukkoc/aiorealbackend/plugin"
)

// Ensure MetricsExtension implements the hooks it records.
var (
	_ plugin.Plugin                     = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionSynced       = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionEventApplied = (*MetricsExtension)(nil)
	_ plugin.OnWalletOpened             = (*MetricsExtension)(nil)
	_ plugin.OnWalletClosed             = (*MetricsExtension)(nil)
	_ plugin.OnUsageReserved            = (*MetricsExtension)(nil)
	_ plugin.OnUsageCommitted           = (*MetricsExtension)(nil)
	_ plugin.OnUsageRolledBack          = (*MetricsExtension)(nil)
	_ plugin.OnQuotaExceeded            = (*MetricsExtension)(nil)
	_ plugin.OnWebhookReceived          = (*MetricsExtension)(nil)
	_ plugin.OnWebhookDuplicate         = (*MetricsExtension)(nil)
	_ plugin.OnWebhookProcessed         = (*MetricsExtension)(nil)
)

// MetricsExtension records system-wide quota-core lifecycle metrics.
// Register it with a plugin.Registry to track subscription, wallet,
// usage, and webhook activity automatically.
type MetricsExtension struct {
	SubscriptionSynced       *prometheus.CounterVec
	SubscriptionEventApplied *prometheus.CounterVec

	WalletOpened *prometheus.CounterVec
	WalletClosed *prometheus.CounterVec

	UsageReserved   prometheus.Counter
	UsageCommitted  prometheus.Counter
	UsageRolledBack prometheus.Counter
	QuotaExceeded   prometheus.Counter
	UsageRemaining  prometheus.Histogram

	WebhookReceived  *prometheus.CounterVec
	WebhookDuplicate prometheus.Counter
	WebhookProcessed prometheus.Counter
	WebhookLatency   prometheus.Histogram
}

// NewMetricsExtension creates a MetricsExtension and registers all of its
// collectors against reg.
func NewMetricsExtension(reg prometheus.Registerer) *MetricsExtension {
	m := &MetricsExtension{
		SubscriptionSynced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quota_subscription_synced_total",
			Help: "Subscriptions synced from a plan-sync request, by plan.",
		}, []string{"plan_id"}),
		SubscriptionEventApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quota_subscription_event_applied_total",
			Help: "Billing events applied to a subscription, by event type and resulting status.",
		}, []string{"event_type", "status"}),

		WalletOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quota_wallet_opened_total",
			Help: "Wallets opened, by plan.",
		}, []string{"plan_id"}),
		WalletClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quota_wallet_closed_total",
			Help: "Wallets closed, by reason.",
		}, []string{"reason"}),

		UsageReserved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quota_usage_reserved_total",
			Help: "Successful Reserve calls.",
		}),
		UsageCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quota_usage_committed_total",
			Help: "Reservations committed.",
		}),
		UsageRolledBack: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quota_usage_rolled_back_total",
			Help: "Reservations rolled back.",
		}),
		QuotaExceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quota_exceeded_total",
			Help: "Reserve calls rejected for insufficient remaining quota.",
		}),
		UsageRemaining: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quota_usage_remaining",
			Help:    "Wallet quota remaining immediately after a successful reservation.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),

		WebhookReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quota_webhook_received_total",
			Help: "Inbound billing events, by event type.",
		}, []string{"event_type"}),
		WebhookDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quota_webhook_duplicate_total",
			Help: "Billing events dropped as replays.",
		}),
		WebhookProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quota_webhook_processed_total",
			Help: "Billing events fully processed.",
		}),
		WebhookLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quota_webhook_processing_duration_seconds",
			Help:    "Time spent driving a billing event's subscription and wallet side effects.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.SubscriptionSynced, m.SubscriptionEventApplied,
		m.WalletOpened, m.WalletClosed,
		m.UsageReserved, m.UsageCommitted, m.UsageRolledBack, m.QuotaExceeded, m.UsageRemaining,
		m.WebhookReceived, m.WebhookDuplicate, m.WebhookProcessed, m.WebhookLatency,
	)
	return m
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnSubscriptionSynced implements plugin.OnSubscriptionSynced.
func (m *MetricsExtension) OnSubscriptionSynced(_ context.Context, _, planID string) error {
	m.SubscriptionSynced.WithLabelValues(planID).Inc()
	return nil
}

// OnSubscriptionEventApplied implements plugin.OnSubscriptionEventApplied.
func (m *MetricsExtension) OnSubscriptionEventApplied(_ context.Context, _, eventType, newStatus string) error {
	m.SubscriptionEventApplied.WithLabelValues(eventType, newStatus).Inc()
	return nil
}

// OnWalletOpened implements plugin.OnWalletOpened.
func (m *MetricsExtension) OnWalletOpened(_ context.Context, _, _, planID string, _ int64) error {
	m.WalletOpened.WithLabelValues(planID).Inc()
	return nil
}

// OnWalletClosed implements plugin.OnWalletClosed.
func (m *MetricsExtension) OnWalletClosed(_ context.Context, _, _, reason string) error {
	m.WalletClosed.WithLabelValues(reason).Inc()
	return nil
}

// OnUsageReserved implements plugin.OnUsageReserved.
func (m *MetricsExtension) OnUsageReserved(_ context.Context, _, _ string, _, remaining int64) error {
	m.UsageReserved.Inc()
	m.UsageRemaining.Observe(float64(remaining))
	return nil
}

// OnUsageCommitted implements plugin.OnUsageCommitted.
func (m *MetricsExtension) OnUsageCommitted(_ context.Context, _, _ string) error {
	m.UsageCommitted.Inc()
	return nil
}

// OnUsageRolledBack implements plugin.OnUsageRolledBack.
func (m *MetricsExtension) OnUsageRolledBack(_ context.Context, _, _ string) error {
	m.UsageRolledBack.Inc()
	return nil
}

// OnQuotaExceeded implements plugin.OnQuotaExceeded.
func (m *MetricsExtension) OnQuotaExceeded(_ context.Context, _, _ string, _, _ int64) error {
	m.QuotaExceeded.Inc()
	return nil
}

// OnWebhookReceived implements plugin.OnWebhookReceived.
func (m *MetricsExtension) OnWebhookReceived(_ context.Context, eventType string, _ []byte) error {
	m.WebhookReceived.WithLabelValues(eventType).Inc()
	return nil
}

// OnWebhookDuplicate implements plugin.OnWebhookDuplicate.
func (m *MetricsExtension) OnWebhookDuplicate(_ context.Context, _, _ string) error {
	m.WebhookDuplicate.Inc()
	return nil
}

// OnWebhookProcessed implements plugin.OnWebhookProcessed.
func (m *MetricsExtension) OnWebhookProcessed(_ context.Context, _, _ string, elapsed time.Duration) error {
	m.WebhookProcessed.Inc()
	m.WebhookLatency.Observe(elapsed.Seconds())
	return nil
}
