package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PromotionEvaluations counts engine evaluations by promotion kind and outcome reason.
	PromotionEvaluations *prometheus.CounterVec
	// PromotionDiscount records applied discount amounts.
	PromotionDiscount *prometheus.HistogramVec
	// InvoicesTotal counts checkout outcomes.
	InvoicesTotal *prometheus.CounterVec
	// OfflineSyncTotal counts replayed offline checkouts by status.
	OfflineSyncTotal *prometheus.CounterVec
	// AnalyticsRollupTotal counts analytics task outcomes.
	AnalyticsRollupTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PromotionEvaluations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promotion_evaluations_total",
			Help:      "Count of promotion evaluations by kind and reason.",
		}, []string{"kind", "reason"})
		PromotionDiscount = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "promotion_discount_amount",
			Help:      "Applied promotion discount amounts.",
			Buckets:   []float64{1_000, 5_000, 10_000, 20_000, 50_000, 100_000, 250_000, 500_000},
		}, []string{"kind"})
		InvoicesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoices_total",
			Help:      "Count of checkout attempts by payment method and result.",
		}, []string{"payment_method", "result"})
		OfflineSyncTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offline_sync_total",
			Help:      "Count of offline invoice sync entries by status.",
		}, []string{"status"})
		AnalyticsRollupTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_rollup_total",
			Help:      "Count of analytics rollup task outcomes.",
		}, []string{"result"})

		for _, vec := range []**prometheus.CounterVec{&PromotionEvaluations, &InvoicesTotal, &OfflineSyncTotal, &AnalyticsRollupTotal} {
			target := vec
			mustRegisterCollector(reg, *target, func(existing prometheus.Collector) {
				if v, ok := existing.(*prometheus.CounterVec); ok {
					*target = v
				}
			})
		}
		mustRegisterCollector(reg, PromotionDiscount, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				PromotionDiscount = v
			}
		})
	})
}

// ObservePromotionEvaluation records an engine outcome. Safe to call before registration.
func ObservePromotionEvaluation(kind, reason string, discount int64) {
	if PromotionEvaluations != nil {
		PromotionEvaluations.WithLabelValues(kind, reason).Inc()
	}
	if PromotionDiscount != nil && discount > 0 {
		PromotionDiscount.WithLabelValues(kind).Observe(float64(discount))
	}
}

// IncInvoice records a checkout outcome.
func IncInvoice(paymentMethod, result string) {
	if InvoicesTotal != nil {
		InvoicesTotal.WithLabelValues(paymentMethod, result).Inc()
	}
}

// IncOfflineSync records an offline sync entry status.
func IncOfflineSync(status string) {
	if OfflineSyncTotal != nil {
		OfflineSyncTotal.WithLabelValues(status).Inc()
	}
}

// IncAnalyticsRollup records an analytics task outcome.
func IncAnalyticsRollup(result string) {
	if AnalyticsRollupTotal != nil {
		AnalyticsRollupTotal.WithLabelValues(result).Inc()
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register metric: %w", err))
	}
}
