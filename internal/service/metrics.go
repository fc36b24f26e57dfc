package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reviewsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "reviewgo",
			Name:      "reviews_created_total",
			Help:      "Reviews submitted",
		},
	)

	reviewRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reviewgo",
			Name:      "review_submissions_rejected_total",
			Help:      "Review submissions refused by business rules",
		},
		[]string{"reason"},
	)

	statusTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reviewgo",
			Name:      "review_status_transitions_total",
			Help:      "Review moderation transitions",
		},
		[]string{"from", "to", "trigger"},
	)

	reportsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "reviewgo",
			Name:      "review_reports_total",
			Help:      "Reports filed against reviews",
		},
	)

	helpfulVotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reviewgo",
			Name:      "review_helpful_votes_total",
			Help:      "Helpful vote toggles",
		},
		[]string{"action"},
	)

	exportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reviewgo",
			Name:      "review_exports_total",
			Help:      "Review exports by format",
		},
		[]string{"format"},
	)
)
