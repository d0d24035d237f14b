package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PortalMetrics exposes the counters and gauges maintained by the portal
// engine.
type PortalMetrics struct {
	operations       *prometheus.CounterVec
	rewardPool       prometheus.Gauge
	rewardsCollected prometheus.Gauge
	totalStaked      prometheus.Gauge
	maxLockDuration  prometheus.Gauge
	reserves         *prometheus.GaugeVec
}

var (
	portalOnce     sync.Once
	portalRegistry *PortalMetrics
)

// Portal returns the lazily registered portal metrics.
func Portal() *PortalMetrics {
	portalOnce.Do(func() {
		portalRegistry = &PortalMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "portal",
				Name:      "operations_total",
				Help:      "Portal engine calls segmented by operation, outcome and error kind.",
			}, []string{"operation", "outcome", "kind"}),
			rewardPool: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "portal",
				Name:      "funding_reward_pool",
				Help:      "Reference asset currently reserved for receipt redemption.",
			}),
			rewardsCollected: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "portal",
				Name:      "funding_rewards_collected",
				Help:      "Cumulative reference asset skimmed into the reward pool.",
			}),
			totalStaked: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "portal",
				Name:      "total_principal_staked",
				Help:      "Principal currently staked across all accounts.",
			}),
			maxLockDuration: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "portal",
				Name:      "max_lock_duration_seconds",
				Help:      "Current lock duration used for stake debt.",
			}),
			reserves: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "portal",
				Name:      "exchange_reserve",
				Help:      "Last synchronised internal exchange reserves.",
			}, []string{"side"}),
		}
		prometheus.MustRegister(
			portalRegistry.operations,
			portalRegistry.rewardPool,
			portalRegistry.rewardsCollected,
			portalRegistry.totalStaked,
			portalRegistry.maxLockDuration,
			portalRegistry.reserves,
		)
	})
	return portalRegistry
}

// ObserveOperation counts a finished engine call. kind is empty on success.
func (m *PortalMetrics) ObserveOperation(operation, outcome, kind string) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	if kind == "" {
		kind = "none"
	}
	m.operations.WithLabelValues(operation, outcome, kind).Inc()
}

// SetFundingPool records the reward pool and the cumulative collected amount.
func (m *PortalMetrics) SetFundingPool(pool, collected *big.Int) {
	if m == nil {
		return
	}
	m.rewardPool.Set(toFloat(pool))
	m.rewardsCollected.Set(toFloat(collected))
}

func (m *PortalMetrics) SetTotalStaked(amount *big.Int) {
	if m == nil {
		return
	}
	m.totalStaked.Set(toFloat(amount))
}

func (m *PortalMetrics) SetMaxLockDuration(seconds uint64) {
	if m == nil {
		return
	}
	m.maxLockDuration.Set(float64(seconds))
}

func (m *PortalMetrics) SetReserves(reserve0, reserve1 *big.Int) {
	if m == nil {
		return
	}
	m.reserves.WithLabelValues("reference").Set(toFloat(reserve0))
	m.reserves.WithLabelValues("credit").Set(toFloat(reserve1))
}

func toFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
