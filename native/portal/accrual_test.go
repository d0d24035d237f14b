package portal

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"stakeportal/crypto"
)

func testOwner(b byte) crypto.Address {
	return crypto.MustNewAddress(crypto.UserPrefix, bytes.Repeat([]byte{b}, crypto.AddressLength))
}

func TestAccrueFirstStake(t *testing.T) {
	acc := NewAccount(testOwner(0x01))

	next := Accrue(acc, big.NewInt(100_000), 7_776_000, 500)

	require.Equal(t, "100000", next.StakedBalance.String())
	require.Equal(t, "24657", next.MaxStakeDebt.String())
	require.Equal(t, "24657", next.CreditLine.String())
	require.Equal(t, "100000", next.AvailableToWithdraw.String())
	require.Equal(t, uint64(500), next.LastUpdateTime)

	// input untouched
	require.Zero(t, acc.StakedBalance.Sign())
	require.Zero(t, acc.CreditLine.Sign())
	require.Zero(t, acc.LastUpdateTime)
}

func TestAccrueIsIdempotentWithinTimestamp(t *testing.T) {
	first := Accrue(NewAccount(testOwner(0x01)), big.NewInt(100_000), 7_776_000, 500)
	second := Accrue(first, nil, 7_776_000, 500)
	requireSameAccount(t, first, second)

	third := Accrue(second, big.NewInt(0), 7_776_000, 500)
	requireSameAccount(t, first, third)
}

func requireSameAccount(t *testing.T, want, got *Account) {
	t.Helper()
	require.Equal(t, want.LastUpdateTime, got.LastUpdateTime)
	require.Equal(t, want.StakedBalance.String(), got.StakedBalance.String())
	require.Equal(t, want.MaxStakeDebt.String(), got.MaxStakeDebt.String())
	require.Equal(t, want.CreditLine.String(), got.CreditLine.String())
	require.Equal(t, want.AvailableToWithdraw.String(), got.AvailableToWithdraw.String())
}

func TestAccrueEarnsLinearly(t *testing.T) {
	acc := Accrue(NewAccount(testOwner(0x01)), big.NewInt(100_000), 7_776_000, 0)

	year := Accrue(acc, nil, 7_776_000, SecondsPerYear)
	require.Equal(t, "124657", year.CreditLine.String())
	require.Equal(t, "24657", year.MaxStakeDebt.String())

	half := Accrue(acc, nil, 7_776_000, SecondsPerYear/2)
	require.Equal(t, "74657", half.CreditLine.String())
}

func TestAccrueIgnoresClockRegression(t *testing.T) {
	acc := Accrue(NewAccount(testOwner(0x01)), big.NewInt(100_000), 7_776_000, 1_000)
	back := Accrue(acc, nil, 7_776_000, 10)
	require.Equal(t, uint64(1_000), back.LastUpdateTime)
	require.Equal(t, acc.CreditLine.String(), back.CreditLine.String())
}

func TestAvailableToWithdraw(t *testing.T) {
	tests := []struct {
		name   string
		staked int64
		credit int64
		debt   int64
		want   int64
	}{
		{name: "nothing staked", staked: 0, credit: 10, debt: 10, want: 0},
		{name: "no debt", staked: 1_000, credit: 0, debt: 0, want: 1_000},
		{name: "fully covered", staked: 1_000, credit: 600, debt: 500, want: 1_000},
		{name: "partial", staked: 1_000, credit: 100, debt: 500, want: 200},
		{name: "floors", staked: 100_000, credit: 4_657, debt: 24_657, want: 18_887},
		{name: "no credit", staked: 1_000, credit: 0, debt: 500, want: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := availableToWithdraw(big.NewInt(tc.staked), big.NewInt(tc.credit), big.NewInt(tc.debt))
			require.Equal(t, big.NewInt(tc.want).String(), got.String())
			require.LessOrEqual(t, got.Cmp(big.NewInt(tc.staked)), 0)
		})
	}
}

func TestSettleDebtIsProRata(t *testing.T) {
	acc := Accrue(NewAccount(testOwner(0x01)), big.NewInt(100_000), 7_776_000, 0)
	require.Equal(t, "12328", settleDebt(acc, big.NewInt(50_000)).String())
	require.Equal(t, "24657", settleDebt(acc, big.NewInt(100_000)).String())
	require.Zero(t, settleDebt(NewAccount(testOwner(0x02)), big.NewInt(5)).Sign())
}
