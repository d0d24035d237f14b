package portal

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustBig(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok, "parse %s", s)
	return v
}

func TestTradableReserves(t *testing.T) {
	k := mustBig(t, "2200000000000000000000000000000000000000")
	r0, r1, err := tradableReserves(mustBig(t, "2000000000000000000"), big.NewInt(0), k)
	require.NoError(t, err)
	require.Equal(t, "2000000000000000000", r0.String())
	require.Equal(t, "1100000000000000000000", r1.String())

	// the reward pool is not tradable
	r0, _, err = tradableReserves(big.NewInt(1_500), big.NewInt(500), big.NewInt(2_000_000))
	require.NoError(t, err)
	require.Equal(t, "1000", r0.String())

	_, _, err = tradableReserves(big.NewInt(500), big.NewInt(500), big.NewInt(2_000_000))
	require.ErrorIs(t, err, ErrNoLiquidity)

	_, _, err = tradableReserves(big.NewInt(500), big.NewInt(0), big.NewInt(0))
	require.ErrorIs(t, err, ErrNoLiquidity)

	_, _, err = tradableReserves(big.NewInt(500), big.NewInt(0), big.NewInt(10))
	require.ErrorIs(t, err, ErrNoLiquidity)
}

func TestConstantProductOut(t *testing.T) {
	require.Equal(t, "181", constantProductOut(big.NewInt(100), big.NewInt(1_000), big.NewInt(2_000)).String())
	require.Equal(t, "0", constantProductOut(big.NewInt(0), big.NewInt(0), big.NewInt(2_000)).String())
}

func TestRoundTripDoesNotProfit(t *testing.T) {
	k := big.NewInt(2_000_000_000_000)
	balance := big.NewInt(1_000_000)
	for _, amountIn := range []int64{1, 7, 100, 999, 50_000} {
		in := big.NewInt(amountIn)
		r0, r1, err := tradableReserves(balance, big.NewInt(0), k)
		require.NoError(t, err)
		credit := constantProductOut(in, r0, r1)

		after := new(big.Int).Add(balance, in)
		r0, r1, err = tradableReserves(after, big.NewInt(0), k)
		require.NoError(t, err)
		back := constantProductOut(credit, r1, r0)
		require.LessOrEqual(t, back.Cmp(in), 0, "amountIn %d returned %s", amountIn, back)
	}
}

func TestConverterReward(t *testing.T) {
	st := newState(0, 1)
	st.FundingMaxRewards = big.NewInt(100)

	require.Equal(t, "100", converterReward(st, big.NewInt(1_000), big.NewInt(5)).String())
	require.Equal(t, "0", converterReward(st, big.NewInt(1_000), big.NewInt(0)).String())

	st.FundingRewardsCollected = big.NewInt(100)
	require.Equal(t, "0", converterReward(st, big.NewInt(1_000), big.NewInt(5)).String())
}

func TestRedeemPayout(t *testing.T) {
	require.Equal(t, "250", redeemPayout(big.NewInt(1_000), big.NewInt(25), big.NewInt(100)).String())
	require.Equal(t, "333", redeemPayout(big.NewInt(1_000), big.NewInt(1), big.NewInt(3)).String())
	require.Equal(t, "0", redeemPayout(big.NewInt(1_000), big.NewInt(1), big.NewInt(0)).String())
}
