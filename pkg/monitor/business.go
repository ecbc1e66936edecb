package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics 定义业务监控指标
type BusinessMetrics struct {
	ProposalsTotal        *prometheus.CounterVec
	ConfirmationsTotal    *prometheus.CounterVec
	ConfirmationsRejected *prometheus.CounterVec
	QuorumReachedTotal    *prometheus.CounterVec
	ExecutionsTotal       *prometheus.CounterVec
	BundleBuildDuration   prometheus.Histogram
	PendingTransactions   *prometheus.GaugeVec
}

// Global Metrics Instance
var Business *BusinessMetrics

// InitBusinessMetrics 初始化业务指标
func InitBusinessMetrics() {
	Business = &BusinessMetrics{
		ProposalsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "safe_proposals_total",
			Help: "The total number of proposed multisig transactions",
		}, []string{"chain_id"}),
		ConfirmationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "safe_confirmations_total",
			Help: "The total number of accepted owner confirmations",
		}, []string{"chain_id"}),
		ConfirmationsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "safe_confirmations_rejected_total",
			Help: "Confirmations rejected during validation",
		}, []string{"reason"}),
		QuorumReachedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "safe_quorum_reached_total",
			Help: "Transactions that collected enough confirmations",
		}, []string{"chain_id"}),
		ExecutionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "safe_executions_total",
			Help: "execTransaction broadcasts by final status",
		}, []string{"status"}),
		BundleBuildDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "safe_bundle_build_duration_seconds",
			Help:    "Time spent assembling sorted signature bundles",
			Buckets: prometheus.DefBuckets,
		}),
		PendingTransactions: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "safe_pending_transactions",
			Help: "Transactions waiting for confirmations or execution",
		}, []string{"chain_id"}),
	}
}
