package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordMovementNormalizesAsset(t *testing.T) {
	m := Ledger()
	require.Same(t, m, Ledger())

	before := testutil.ToFloat64(m.movements.WithLabelValues("BPSM", LedgerOpMint))
	m.RecordMovement(" bpsm ", LedgerOpMint)
	m.RecordMovement("BPSM", LedgerOpMint)
	require.Equal(t, before+2, testutil.ToFloat64(m.movements.WithLabelValues("BPSM", LedgerOpMint)))

	unknown := testutil.ToFloat64(m.movements.WithLabelValues("UNKNOWN", LedgerOpBurn))
	m.RecordMovement("  ", LedgerOpBurn)
	require.Equal(t, unknown+1, testutil.ToFloat64(m.movements.WithLabelValues("UNKNOWN", LedgerOpBurn)))

	var nilMetrics *LedgerMetrics
	require.NotPanics(t, func() { nilMetrics.RecordMovement("BPSM", LedgerOpMint) })
}
