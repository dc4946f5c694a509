package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReservationCreateDuration tracks the latency of reservation creation,
	// labelled by outcome (created, insufficient_stock, rejected, error).
	ReservationCreateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flashsale_reservation_create_duration_seconds",
			Help:    "Duration of reservation creation requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		},
		[]string{"outcome"},
	)

	// ReservationTransitions counts reservation status transitions,
	// labelled by the resulting status.
	ReservationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flashsale_reservation_transitions_total",
			Help: "Reservation status transitions by resulting status",
		},
		[]string{"to"},
	)

	// SweepReclaimed counts reservations reclaimed by the expiry sweep.
	SweepReclaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flashsale_sweep_reclaimed_total",
			Help: "Expired pending reservations reclaimed by the sweep",
		},
	)

	// CampaignTransitions counts scheduler-driven campaign transitions,
	// labelled by the transition (activated, ended).
	CampaignTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flashsale_campaign_transitions_total",
			Help: "Campaign status transitions performed by the scheduler",
		},
		[]string{"transition"},
	)

	// CounterIntegrityAlerts counts detected stock counter anomalies, e.g.
	// a release that would have driven the reserved counter negative.
	CounterIntegrityAlerts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flashsale_counter_integrity_alerts_total",
			Help: "Detected stock counter integrity violations",
		},
	)
)
