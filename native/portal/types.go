package portal

import (
	"math/big"

	"stakeportal/crypto"
)

// Phase is the bootstrap state of the portal. The only permitted edge is
// PhaseFunding -> PhaseActive.
type Phase uint8

const (
	// PhaseFunding accepts contributions and rejects staking, exchange and
	// conversion.
	PhaseFunding Phase = iota
	// PhaseActive enables staking, the internal exchange, the converter and
	// receipt redemption.
	PhaseActive
)

func (p Phase) String() string {
	switch p {
	case PhaseFunding:
		return "funding"
	case PhaseActive:
		return "active"
	default:
		return "unknown"
	}
}

// RatchetState tracks whether the max lock duration can still be raised.
type RatchetState uint8

const (
	RatchetAdjustable RatchetState = iota
	RatchetFrozen
)

func (r RatchetState) String() string {
	switch r {
	case RatchetAdjustable:
		return "adjustable"
	case RatchetFrozen:
		return "frozen"
	default:
		return "unknown"
	}
}

// Account is the per-owner staking record. It is created on the first stake
// and never deleted.
type Account struct {
	Owner crypto.Address
	// Exists becomes true on the first stake and is never reset.
	Exists         bool
	LastUpdateTime uint64
	// StakedBalance is the principal held on behalf of the owner.
	StakedBalance *big.Int
	// MaxStakeDebt is the credit line required to unlock the full stake.
	MaxStakeDebt *big.Int
	// CreditLine is the accrued entitlement balance.
	CreditLine *big.Int
	// AvailableToWithdraw is derived on every touch and is never trusted
	// across calls.
	AvailableToWithdraw *big.Int
}

// NewAccount returns an empty record for owner.
func NewAccount(owner crypto.Address) *Account {
	return &Account{
		Owner:               owner,
		StakedBalance:       big.NewInt(0),
		MaxStakeDebt:        big.NewInt(0),
		CreditLine:          big.NewInt(0),
		AvailableToWithdraw: big.NewInt(0),
	}
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	clone.StakedBalance = cloneAmount(a.StakedBalance)
	clone.MaxStakeDebt = cloneAmount(a.MaxStakeDebt)
	clone.CreditLine = cloneAmount(a.CreditLine)
	clone.AvailableToWithdraw = cloneAmount(a.AvailableToWithdraw)
	return &clone
}

// State is the protocol-wide singleton.
type State struct {
	CreationTime uint64
	Phase        Phase
	Ratchet      RatchetState
	// MaxLockDuration is the seconds of accrual a fresh stake is indebted for.
	MaxLockDuration      uint64
	TotalPrincipalStaked *big.Int

	FundingBalance          *big.Int
	FundingRewardPool       *big.Int
	FundingRewardsCollected *big.Int
	FundingMaxRewards       *big.Int

	// ConstantProduct is fixed once at activation.
	ConstantProduct *big.Int
	// Reserve0 (reference asset) and Reserve1 (credit line) are snapshots of
	// the last synchronisation. Pricing always recomputes them.
	Reserve0 *big.Int
	Reserve1 *big.Int
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	clone := *s
	clone.TotalPrincipalStaked = cloneAmount(s.TotalPrincipalStaked)
	clone.FundingBalance = cloneAmount(s.FundingBalance)
	clone.FundingRewardPool = cloneAmount(s.FundingRewardPool)
	clone.FundingRewardsCollected = cloneAmount(s.FundingRewardsCollected)
	clone.FundingMaxRewards = cloneAmount(s.FundingMaxRewards)
	clone.ConstantProduct = cloneAmount(s.ConstantProduct)
	clone.Reserve0 = cloneAmount(s.Reserve0)
	clone.Reserve1 = cloneAmount(s.Reserve1)
	return &clone
}

func newState(creationTime, maxLockDuration uint64) *State {
	return &State{
		CreationTime:            creationTime,
		Phase:                   PhaseFunding,
		Ratchet:                 RatchetAdjustable,
		MaxLockDuration:         maxLockDuration,
		TotalPrincipalStaked:    big.NewInt(0),
		FundingBalance:          big.NewInt(0),
		FundingRewardPool:       big.NewInt(0),
		FundingRewardsCollected: big.NewInt(0),
		FundingMaxRewards:       big.NewInt(0),
		ConstantProduct:         big.NewInt(0),
		Reserve0:                big.NewInt(0),
		Reserve1:                big.NewInt(0),
	}
}

// Quote is the priced outcome of an exchange or conversion request.
type Quote struct {
	AmountIn  *big.Int
	AmountOut *big.Int
	Reserve0  *big.Int
	Reserve1  *big.Int
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func positive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}
