package metrics

import "github.com/prometheus/client_golang/prometheus"

// Order submission outcomes.
const (
	OrderOutcomeCreated       = "created"
	OrderOutcomeTotalMismatch = "total_mismatch"
	OrderOutcomeOutOfStock    = "out_of_stock"
	OrderOutcomeRejected      = "rejected"
	OrderOutcomeFailed        = "failed"
)

// CheckoutMetrics tracks discount-code gate rejections and order submissions.
type CheckoutMetrics struct {
	gateRejections *prometheus.CounterVec
	discountUses   *prometheus.CounterVec
	orders         *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on reg.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	gate := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "discount_gate_rejections_total",
		Help:      "Discount-code lookups rejected by the local gate, by reason.",
	}, []string{"reason"})
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "discount_lookups_total",
		Help:      "Discount-code lookups by result.",
	}, []string{"result"})
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "order_submissions_total",
		Help:      "Order submissions by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(gate, lookups, orders)
	return &CheckoutMetrics{gateRejections: gate, discountUses: lookups, orders: orders}
}

func (m *CheckoutMetrics) IncGateRejection(reason string) {
	if m == nil || m.gateRejections == nil {
		return
	}
	m.gateRejections.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *CheckoutMetrics) IncDiscountLookup(result string) {
	if m == nil || m.discountUses == nil {
		return
	}
	m.discountUses.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *CheckoutMetrics) IncOrder(outcome string) {
	if m == nil || m.orders == nil {
		return
	}
	m.orders.WithLabelValues(normalizeLabel(outcome)).Inc()
}
