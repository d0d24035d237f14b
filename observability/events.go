package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Ledger operations reported by LedgerMetrics.
const (
	LedgerOpTransfer = "transfer"
	LedgerOpMint     = "mint"
	LedgerOpBurn     = "burn"
	LedgerOpCredit   = "credit"
)

// LedgerMetrics counts balance movements applied by the bank ledger. Counts
// are taken when the write lands in the open transaction, so a movement that
// is later rolled back is still counted.
type LedgerMetrics struct {
	movements *prometheus.CounterVec
}

var (
	ledgerMetricsOnce sync.Once
	ledgerMetrics     *LedgerMetrics
)

// Ledger returns the process-wide ledger metrics.
func Ledger() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerMetrics = &LedgerMetrics{
			movements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakeportal",
				Subsystem: "bank",
				Name:      "movements_total",
				Help:      "Balance movements applied by the ledger, by asset and operation.",
			}, []string{"asset", "op"}),
		}
		prometheus.MustRegister(ledgerMetrics.movements)
	})
	return ledgerMetrics
}

// RecordMovement counts one applied movement of asset.
func (m *LedgerMetrics) RecordMovement(asset, op string) {
	if m == nil {
		return
	}
	asset = strings.ToUpper(strings.TrimSpace(asset))
	if asset == "" {
		asset = "UNKNOWN"
	}
	m.movements.WithLabelValues(asset, op).Inc()
}
