package portal

import (
	"math/big"

	"stakeportal/core/events"
	"stakeportal/crypto"
)

// Stake pulls amount of principal from owner, deposits it with the yield
// venue and books it against owner's account. The account is created on the
// first stake.
func (e *Engine) Stake(owner crypto.Address, amount *big.Int) (*Account, error) {
	var out *Account
	err := e.execute("stake", func() ([]events.Event, error) {
		if !positive(amount) {
			return nil, ErrInvalidAmount
		}
		st, err := e.requireActive()
		if err != nil {
			return nil, err
		}
		if err := e.requireAssets(); err != nil {
			return nil, err
		}
		if e.venue == nil {
			return nil, errNilVenue
		}
		acc, err := e.ensureAccount(owner)
		if err != nil {
			return nil, err
		}

		if err := e.assets.Transfer(e.params.PrincipalAsset, owner, e.address, amount); err != nil {
			return nil, err
		}
		if err := e.venue.Deposit(e.address, amount); err != nil {
			return nil, err
		}

		next := Accrue(acc, amount, st.MaxLockDuration, e.now())
		next.Exists = true
		st.TotalPrincipalStaked = new(big.Int).Add(st.TotalPrincipalStaked, amount)

		if err := e.state.PortalAccountPut(next); err != nil {
			return nil, err
		}
		if err := e.state.PortalStatePut(st); err != nil {
			return nil, err
		}
		out = next.Clone()
		return []events.Event{events.PortalStaked{
			Account:       owner,
			Amount:        cloneAmount(amount),
			StakedBalance: cloneAmount(next.StakedBalance),
			MaxStakeDebt:  cloneAmount(next.MaxStakeDebt),
			CreditLine:    cloneAmount(next.CreditLine),
		}}, nil
	})
	return out, err
}

// Unstake withdraws amount of principal, bounded by the refreshed
// availableToWithdraw. The debt attached to the withdrawn share of stake is
// settled from both maxStakeDebt and the credit line.
func (e *Engine) Unstake(owner crypto.Address, amount *big.Int) (*Account, error) {
	var out *Account
	err := e.execute("unstake", func() ([]events.Event, error) {
		if !positive(amount) {
			return nil, ErrInvalidAmount
		}
		st, err := e.loadState()
		if err != nil {
			return nil, err
		}
		if err := e.requireAssets(); err != nil {
			return nil, err
		}
		if e.venue == nil {
			return nil, errNilVenue
		}
		acc, err := e.loadAccount(owner)
		if err != nil {
			return nil, err
		}
		next := Accrue(acc, nil, st.MaxLockDuration, e.now())
		if amount.Cmp(next.AvailableToWithdraw) > 0 {
			return nil, ErrExceedsWithdrawable
		}

		settled := settleDebt(next, amount)
		next.StakedBalance.Sub(next.StakedBalance, amount)
		next.MaxStakeDebt.Sub(next.MaxStakeDebt, settled)
		next.CreditLine.Sub(next.CreditLine, settled)
		if next.CreditLine.Sign() < 0 {
			next.CreditLine.SetInt64(0)
		}
		next.AvailableToWithdraw = availableToWithdraw(next.StakedBalance, next.CreditLine, next.MaxStakeDebt)
		st.TotalPrincipalStaked = new(big.Int).Sub(st.TotalPrincipalStaked, amount)

		if err := e.venue.Withdraw(e.address, amount); err != nil {
			return nil, err
		}
		if err := e.assets.Transfer(e.params.PrincipalAsset, e.address, owner, amount); err != nil {
			return nil, err
		}
		if err := e.state.PortalAccountPut(next); err != nil {
			return nil, err
		}
		if err := e.state.PortalStatePut(st); err != nil {
			return nil, err
		}
		out = next.Clone()
		return []events.Event{events.PortalUnstaked{
			Account:       owner,
			Amount:        cloneAmount(amount),
			StakedBalance: cloneAmount(next.StakedBalance),
			CreditLine:    cloneAmount(next.CreditLine),
		}}, nil
	})
	return out, err
}

// ForceUnstakeAll withdraws the whole stake. When the credit line does not
// cover maxStakeDebt the shortfall is burned from owner's external
// entitlement tokens; otherwise the debt is settled from the credit line.
func (e *Engine) ForceUnstakeAll(owner crypto.Address) (*Account, error) {
	var out *Account
	err := e.execute("forceUnstakeAll", func() ([]events.Event, error) {
		st, err := e.loadState()
		if err != nil {
			return nil, err
		}
		if err := e.requireAssets(); err != nil {
			return nil, err
		}
		if e.venue == nil {
			return nil, errNilVenue
		}
		acc, err := e.loadAccount(owner)
		if err != nil {
			return nil, err
		}
		next := Accrue(acc, nil, st.MaxLockDuration, e.now())
		amount := new(big.Int).Set(next.StakedBalance)
		if amount.Sign() == 0 {
			return nil, ErrNothingStaked
		}

		burned := big.NewInt(0)
		if next.CreditLine.Cmp(next.MaxStakeDebt) < 0 {
			if err := e.requireClaims(); err != nil {
				return nil, err
			}
			burned.Sub(next.MaxStakeDebt, next.CreditLine)
			if err := e.claims.Burn(e.params.EntitlementAsset, owner, burned); err != nil {
				return nil, err
			}
			next.CreditLine.SetInt64(0)
		} else {
			next.CreditLine.Sub(next.CreditLine, next.MaxStakeDebt)
		}
		next.StakedBalance.SetInt64(0)
		next.MaxStakeDebt.SetInt64(0)
		next.AvailableToWithdraw = big.NewInt(0)
		st.TotalPrincipalStaked = new(big.Int).Sub(st.TotalPrincipalStaked, amount)

		if err := e.venue.Withdraw(e.address, amount); err != nil {
			return nil, err
		}
		if err := e.assets.Transfer(e.params.PrincipalAsset, e.address, owner, amount); err != nil {
			return nil, err
		}
		if err := e.state.PortalAccountPut(next); err != nil {
			return nil, err
		}
		if err := e.state.PortalStatePut(st); err != nil {
			return nil, err
		}
		out = next.Clone()
		return []events.Event{events.PortalUnstaked{
			Account:       owner,
			Amount:        amount,
			StakedBalance: cloneAmount(next.StakedBalance),
			CreditLine:    cloneAmount(next.CreditLine),
			Burned:        burned,
			Forced:        true,
		}}, nil
	})
	return out, err
}
