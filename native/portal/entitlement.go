package portal

import (
	"math/big"

	"stakeportal/core/events"
	"stakeportal/crypto"
)

// MintEntitlementToken moves amount out of owner's credit line into the
// external entitlement token held by recipient.
func (e *Engine) MintEntitlementToken(owner, recipient crypto.Address, amount *big.Int) (*Account, error) {
	var out *Account
	err := e.execute("mintEntitlementToken", func() ([]events.Event, error) {
		if !positive(amount) {
			return nil, ErrInvalidAmount
		}
		if recipient.IsZero() {
			return nil, ErrInvalidOwner
		}
		st, err := e.requireActive()
		if err != nil {
			return nil, err
		}
		if err := e.requireClaims(); err != nil {
			return nil, err
		}
		acc, err := e.loadAccount(owner)
		if err != nil {
			return nil, err
		}
		next := Accrue(acc, nil, st.MaxLockDuration, e.now())
		if amount.Cmp(next.CreditLine) > 0 {
			return nil, ErrInsufficientCreditLine
		}
		next.CreditLine.Sub(next.CreditLine, amount)
		next.AvailableToWithdraw = availableToWithdraw(next.StakedBalance, next.CreditLine, next.MaxStakeDebt)
		if err := e.claims.Mint(e.params.EntitlementAsset, recipient, amount); err != nil {
			return nil, err
		}
		if err := e.state.PortalAccountPut(next); err != nil {
			return nil, err
		}
		out = next.Clone()
		return []events.Event{events.PortalEntitlement{
			Owner:     owner,
			Recipient: recipient,
			Amount:    cloneAmount(amount),
		}}, nil
	})
	return out, err
}

// BurnEntitlementToken burns amount of owner's entitlement tokens and credits
// recipient's credit line. The recipient must have an account.
func (e *Engine) BurnEntitlementToken(owner, recipient crypto.Address, amount *big.Int) (*Account, error) {
	var out *Account
	err := e.execute("burnEntitlementToken", func() ([]events.Event, error) {
		if !positive(amount) {
			return nil, ErrInvalidAmount
		}
		if owner.IsZero() {
			return nil, ErrInvalidOwner
		}
		st, err := e.requireActive()
		if err != nil {
			return nil, err
		}
		if err := e.requireClaims(); err != nil {
			return nil, err
		}
		acc, err := e.loadAccount(recipient)
		if err != nil {
			return nil, err
		}
		if err := e.claims.Burn(e.params.EntitlementAsset, owner, amount); err != nil {
			return nil, err
		}
		next := Accrue(acc, nil, st.MaxLockDuration, e.now())
		next.CreditLine.Add(next.CreditLine, amount)
		next.AvailableToWithdraw = availableToWithdraw(next.StakedBalance, next.CreditLine, next.MaxStakeDebt)
		if err := e.state.PortalAccountPut(next); err != nil {
			return nil, err
		}
		out = next.Clone()
		return []events.Event{events.PortalEntitlement{
			Owner:     owner,
			Recipient: recipient,
			Amount:    cloneAmount(amount),
			Burned:    true,
		}}, nil
	})
	return out, err
}
