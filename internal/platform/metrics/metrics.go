package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the auction engine.
type Metrics struct {
	ListingsCreated prometheus.Counter
	Purchases       prometheus.Counter
	SoldOuts        prometheus.Counter
	BidsAccepted    prometheus.Counter
	BidsRejected    prometheus.Counter
	Settlements     prometheus.Counter
	EscrowHeld      prometheus.Gauge
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ListingsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gavel_listings_created_total",
			Help: "Total number of listings created",
		}),
		Purchases: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gavel_purchases_total",
			Help: "Total number of direct-sale purchases completed",
		}),
		SoldOuts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gavel_sold_outs_total",
			Help: "Total number of listings whose edition sold out",
		}),
		BidsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gavel_bids_accepted_total",
			Help: "Total number of sealed bids accepted as the new best bid",
		}),
		BidsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gavel_bids_rejected_total",
			Help: "Total number of sealed bids rejected",
		}),
		Settlements: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gavel_settlements_total",
			Help: "Total number of auctions settled",
		}),
		EscrowHeld: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "gavel_escrow_held",
			Help: "Sum of funds currently held in bid escrow, native units",
		}),
	}
}
