package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// SalesCommittedTotal counts successfully persisted sales.
	SalesCommittedTotal prometheus.Counter
	// SalesRejectedTotal counts rejected sale submissions by reason.
	SalesRejectedTotal *prometheus.CounterVec
	// PromotionAppliedTotal counts promotion applications by type at quote time.
	PromotionAppliedTotal *prometheus.CounterVec
	// PrescriptionsCreatedTotal counts stored prescriptions.
	PrescriptionsCreatedTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers the pharmacy domain
// collectors. Safe to call more than once.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		SalesCommittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_committed_total",
			Help:      "Count of sales persisted with all stock decrements applied.",
		})
		SalesRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_rejected_total",
			Help:      "Count of rejected sale submissions by reason.",
		}, []string{"reason"})
		PromotionAppliedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promotion_applied_total",
			Help:      "Count of promotion applications produced by the pricing engine.",
		}, []string{"type"})
		PrescriptionsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prescriptions_created_total",
			Help:      "Count of prescriptions stored via intake.",
		})
		reg.MustRegister(SalesCommittedTotal, SalesRejectedTotal, PromotionAppliedTotal, PrescriptionsCreatedTotal)
	})
}
