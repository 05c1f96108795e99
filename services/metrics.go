package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes counters for the escrow workflow. A fresh registry is used
// in tests so orchestrators can be constructed repeatedly.
type Metrics struct {
	OrdersCreated     prometheus.Counter
	InvoicesGenerated prometheus.Counter
	OrdersPickedUp    prometheus.Counter
	OrdersDelivered   prometheus.Counter
	ChainFailures     *prometheus.CounterVec
}

// NewMetrics registers the workflow counters with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OrdersCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "chainshop_orders_created_total",
			Help: "Orders successfully created (including escrow deployment).",
		}),
		InvoicesGenerated: factory.NewCounter(prometheus.CounterOpts{
			Name: "chainshop_invoices_generated_total",
			Help: "Payment transaction descriptors handed to customers.",
		}),
		OrdersPickedUp: factory.NewCounter(prometheus.CounterOpts{
			Name: "chainshop_orders_picked_up_total",
			Help: "Orders transitioned to PENDING by a courier pickup.",
		}),
		OrdersDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "chainshop_orders_delivered_total",
			Help: "Orders transitioned to COMPLETE by a delivery confirmation.",
		}),
		ChainFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chainshop_chain_failures_total",
			Help: "Chain interactions that failed, by operation.",
		}, []string{"operation"}),
	}
}
