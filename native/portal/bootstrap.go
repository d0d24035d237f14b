package portal

import (
	"math/big"

	"stakeportal/core/events"
	"stakeportal/crypto"
)

// redeemPayout is the pro-rata share of the pool for amount of receipts,
// evaluated against the supply before burning. With no supply outstanding the
// payout is zero.
func redeemPayout(pool, amount, supply *big.Int) *big.Int {
	if supply == nil || supply.Sign() == 0 {
		return new(big.Int)
	}
	payout := new(big.Int).Mul(pool, amount)
	return payout.Quo(payout, supply)
}

// Contribute accepts reference-asset funding during the funding phase and
// mints receipts at the fixed reward rate. It returns the receipts minted.
func (e *Engine) Contribute(contributor crypto.Address, amount *big.Int) (*big.Int, error) {
	var minted *big.Int
	err := e.execute("contribute", func() ([]events.Event, error) {
		if !positive(amount) {
			return nil, ErrInvalidAmount
		}
		if contributor.IsZero() {
			return nil, ErrInvalidOwner
		}
		st, err := e.loadState()
		if err != nil {
			return nil, err
		}
		if st.Phase != PhaseFunding {
			return nil, ErrAlreadyActive
		}
		if err := e.requireAssets(); err != nil {
			return nil, err
		}
		if err := e.requireClaims(); err != nil {
			return nil, err
		}

		receipts := new(big.Int).Mul(amount, new(big.Int).SetUint64(e.params.FundingRewardRate))
		if err := e.assets.Transfer(e.params.ReferenceAsset, contributor, e.address, amount); err != nil {
			return nil, err
		}
		if err := e.claims.Mint(e.params.ReceiptAsset, contributor, receipts); err != nil {
			return nil, err
		}
		st.FundingBalance = new(big.Int).Add(st.FundingBalance, amount)
		if err := e.state.PortalStatePut(st); err != nil {
			return nil, err
		}
		minted = receipts
		return []events.Event{events.PortalFundingContributed{
			Contributor:    contributor,
			Amount:         cloneAmount(amount),
			Receipts:       cloneAmount(receipts),
			FundingBalance: cloneAmount(st.FundingBalance),
		}}, nil
	})
	return minted, err
}

// ActivatePortal closes the funding phase once its window has elapsed. It fixes
// the exchange constant product and the converter reward cap.
func (e *Engine) ActivatePortal() (*State, error) {
	var out *State
	err := e.execute("activatePortal", func() ([]events.Event, error) {
		st, err := e.loadState()
		if err != nil {
			return nil, err
		}
		if st.Phase != PhaseFunding {
			return nil, ErrAlreadyActive
		}
		now := e.now()
		if now < st.CreationTime+e.params.FundingPhaseDuration {
			return nil, ErrFundingWindowOpen
		}
		if err := e.requireClaims(); err != nil {
			return nil, err
		}
		supply, err := e.claims.TotalSupply(e.params.ReceiptAsset)
		if err != nil {
			return nil, err
		}

		required := new(big.Int).Mul(st.FundingBalance, new(big.Int).SetUint64(e.params.FundingExchangeRatio))
		st.ConstantProduct = new(big.Int).Mul(st.FundingBalance, required)
		st.FundingMaxRewards = cloneAmount(supply)
		st.Phase = PhaseActive
		if err := e.syncReserves(st); err != nil {
			return nil, err
		}
		if err := e.state.PortalStatePut(st); err != nil {
			return nil, err
		}
		out = st.Clone()
		return []events.Event{events.PortalActivated{
			FundingBalance:    cloneAmount(st.FundingBalance),
			ConstantProduct:   cloneAmount(st.ConstantProduct),
			FundingMaxRewards: cloneAmount(st.FundingMaxRewards),
			ActivatedAt:       now,
		}}, nil
	})
	return out, err
}

// RedeemValue quotes the reward-pool payout for amount of receipts at the
// current pool size.
func (e *Engine) RedeemValue(amount *big.Int) (*big.Int, error) {
	if !positive(amount) {
		return nil, ErrInvalidAmount
	}
	st, err := e.requireActive()
	if err != nil {
		return nil, err
	}
	if err := e.requireClaims(); err != nil {
		return nil, err
	}
	supply, err := e.claims.TotalSupply(e.params.ReceiptAsset)
	if err != nil {
		return nil, err
	}
	return redeemPayout(st.FundingRewardPool, amount, supply), nil
}

// Redeem burns amount of the holder's receipts and pays their share of the
// reward pool. Once no receipts are outstanding it is a no-op paying zero.
func (e *Engine) Redeem(holder crypto.Address, amount *big.Int) (*big.Int, error) {
	var paid *big.Int
	err := e.execute("redeem", func() ([]events.Event, error) {
		if !positive(amount) {
			return nil, ErrInvalidAmount
		}
		if holder.IsZero() {
			return nil, ErrInvalidOwner
		}
		st, err := e.requireActive()
		if err != nil {
			return nil, err
		}
		if err := e.requireAssets(); err != nil {
			return nil, err
		}
		if err := e.requireClaims(); err != nil {
			return nil, err
		}
		supply, err := e.claims.TotalSupply(e.params.ReceiptAsset)
		if err != nil {
			return nil, err
		}
		if supply.Sign() == 0 {
			paid = new(big.Int)
			return nil, nil
		}
		payout := redeemPayout(st.FundingRewardPool, amount, supply)

		if err := e.claims.Burn(e.params.ReceiptAsset, holder, amount); err != nil {
			return nil, err
		}
		st.FundingRewardPool = new(big.Int).Sub(st.FundingRewardPool, payout)
		if err := e.assets.Transfer(e.params.ReferenceAsset, e.address, holder, payout); err != nil {
			return nil, err
		}
		if err := e.syncReserves(st); err != nil {
			return nil, err
		}
		if err := e.state.PortalStatePut(st); err != nil {
			return nil, err
		}
		paid = payout
		return []events.Event{events.PortalFundingRedeemed{
			Holder: holder,
			Burned: cloneAmount(amount),
			Payout: cloneAmount(payout),
			Pool:   cloneAmount(st.FundingRewardPool),
		}}, nil
	})
	return paid, err
}
