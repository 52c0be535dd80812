package service

import (
	"engagement-rewards/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// Submission outcomes recorded by Metrics.
const (
	OutcomeAccepted    = "accepted"
	OutcomeDuplicate   = "duplicate"
	OutcomeRateLimited = "rate_limited"
	OutcomeFailed      = "failed"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	submissions *prometheus.CounterVec
	credited    *prometheus.CounterVec
	withdrawals *prometheus.CounterVec
	reviews     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "engagement_rewards",
			Name:      "submissions_total",
			Help:      "Submission attempts by platform and outcome.",
		}, []string{"platform", "outcome"}),
		credited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "engagement_rewards",
			Name:      "credited_minor_units_total",
			Help:      "Minor units credited to earnings accounts by platform.",
		}, []string{"platform"}),
		withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "engagement_rewards",
			Name:      "withdrawals_total",
			Help:      "Withdrawal transitions by resulting status.",
		}, []string{"status"}),
		reviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "engagement_rewards",
			Name:      "submission_reviews_total",
			Help:      "Admin submission reviews by resulting status.",
		}, []string{"status"}),
	}
	reg.MustRegister(m.submissions, m.credited, m.withdrawals, m.reviews)
	return m
}

func (m *Metrics) submission(platform domain.Platform, outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(string(platform), outcome).Inc()
}

func (m *Metrics) credit(platform domain.Platform, amount int64) {
	if m == nil {
		return
	}
	m.credited.WithLabelValues(string(platform)).Add(float64(amount))
}

func (m *Metrics) withdrawal(status domain.WithdrawalStatus) {
	if m == nil {
		return
	}
	m.withdrawals.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) review(status domain.SubmissionStatus) {
	if m == nil {
		return
	}
	m.reviews.WithLabelValues(string(status)).Inc()
}
