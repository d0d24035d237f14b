package state

import (
	"fmt"
	"math/big"

	"stakeportal/crypto"
	"stakeportal/native/portal"
)

type storedPortalAccount struct {
	Owner          []byte
	Exists         bool
	LastUpdateTime uint64
	StakedBalance  *big.Int
	MaxStakeDebt   *big.Int
	CreditLine     *big.Int
}

type storedPortalState struct {
	CreationTime            uint64
	Phase                   uint8
	Ratchet                 uint8
	MaxLockDuration         uint64
	TotalPrincipalStaked    *big.Int
	FundingBalance          *big.Int
	FundingRewardPool       *big.Int
	FundingRewardsCollected *big.Int
	FundingMaxRewards       *big.Int
	ConstantProduct         *big.Int
	Reserve0                *big.Int
	Reserve1                *big.Int
}

// PortalAccountGet loads the staking record for owner. AvailableToWithdraw is
// not persisted and comes back as zero until the engine recomputes it.
func (m *Manager) PortalAccountGet(owner crypto.Address) (*portal.Account, bool, error) {
	var stored storedPortalAccount
	ok, err := m.KVGet(portalAccountKey(owner.Bytes()), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	acc := portal.NewAccount(owner)
	acc.Exists = stored.Exists
	acc.LastUpdateTime = stored.LastUpdateTime
	acc.StakedBalance = copyAmount(stored.StakedBalance)
	acc.MaxStakeDebt = copyAmount(stored.MaxStakeDebt)
	acc.CreditLine = copyAmount(stored.CreditLine)
	return acc, true, nil
}

// PortalAccountPut persists the staking record keyed by its owner.
func (m *Manager) PortalAccountPut(acc *portal.Account) error {
	if acc == nil {
		return fmt.Errorf("portal state: nil account")
	}
	if acc.Owner.IsZero() {
		return fmt.Errorf("portal state: account owner required")
	}
	stored := storedPortalAccount{
		Owner:          acc.Owner.Bytes(),
		Exists:         acc.Exists,
		LastUpdateTime: acc.LastUpdateTime,
	}
	var err error
	if stored.StakedBalance, err = checkAmount(acc.StakedBalance); err != nil {
		return fmt.Errorf("portal state: staked balance: %w", err)
	}
	if stored.MaxStakeDebt, err = checkAmount(acc.MaxStakeDebt); err != nil {
		return fmt.Errorf("portal state: max stake debt: %w", err)
	}
	if stored.CreditLine, err = checkAmount(acc.CreditLine); err != nil {
		return fmt.Errorf("portal state: credit line: %w", err)
	}
	return m.KVPut(portalAccountKey(acc.Owner.Bytes()), stored)
}

// PortalStateGet loads the protocol singleton.
func (m *Manager) PortalStateGet() (*portal.State, bool, error) {
	var stored storedPortalState
	ok, err := m.KVGet(portalStateKeyBytes, &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &portal.State{
		CreationTime:            stored.CreationTime,
		Phase:                   portal.Phase(stored.Phase),
		Ratchet:                 portal.RatchetState(stored.Ratchet),
		MaxLockDuration:         stored.MaxLockDuration,
		TotalPrincipalStaked:    copyAmount(stored.TotalPrincipalStaked),
		FundingBalance:          copyAmount(stored.FundingBalance),
		FundingRewardPool:       copyAmount(stored.FundingRewardPool),
		FundingRewardsCollected: copyAmount(stored.FundingRewardsCollected),
		FundingMaxRewards:       copyAmount(stored.FundingMaxRewards),
		ConstantProduct:         copyAmount(stored.ConstantProduct),
		Reserve0:                copyAmount(stored.Reserve0),
		Reserve1:                copyAmount(stored.Reserve1),
	}, true, nil
}

// PortalStatePut persists the protocol singleton.
func (m *Manager) PortalStatePut(st *portal.State) error {
	if st == nil {
		return fmt.Errorf("portal state: nil state")
	}
	stored := storedPortalState{
		CreationTime:    st.CreationTime,
		Phase:           uint8(st.Phase),
		Ratchet:         uint8(st.Ratchet),
		MaxLockDuration: st.MaxLockDuration,
	}
	fields := []struct {
		name string
		src  *big.Int
		dst  **big.Int
	}{
		{"total principal staked", st.TotalPrincipalStaked, &stored.TotalPrincipalStaked},
		{"funding balance", st.FundingBalance, &stored.FundingBalance},
		{"funding reward pool", st.FundingRewardPool, &stored.FundingRewardPool},
		{"funding rewards collected", st.FundingRewardsCollected, &stored.FundingRewardsCollected},
		{"funding max rewards", st.FundingMaxRewards, &stored.FundingMaxRewards},
		{"constant product", st.ConstantProduct, &stored.ConstantProduct},
		{"reserve0", st.Reserve0, &stored.Reserve0},
		{"reserve1", st.Reserve1, &stored.Reserve1},
	}
	for _, f := range fields {
		v, err := checkAmount(f.src)
		if err != nil {
			return fmt.Errorf("portal state: %s: %w", f.name, err)
		}
		*f.dst = v
	}
	return m.KVPut(portalStateKeyBytes, stored)
}
