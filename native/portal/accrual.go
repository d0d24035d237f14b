package portal

import (
	"math/big"

	"stakeportal/core/events"
	"stakeportal/crypto"
)

var secondsPerYear = new(big.Int).SetUint64(SecondsPerYear)

// Accrue returns acc brought forward to now with amount of new principal
// added. The input is not modified, which makes the same function serve both
// the mutating path and read-only quoting.
//
// Credit accrues linearly at one unit per unit of principal per year. New
// principal raises the stake debt by amount*maxLockDuration/year and credits
// the same amount to the credit line, so a fresh stake is fully withdrawable.
// All divisions floor.
func Accrue(acc *Account, amount *big.Int, maxLockDuration, now uint64) *Account {
	next := acc.Clone()
	if next == nil {
		next = (&Account{}).Clone()
	}

	elapsed := uint64(0)
	if now > next.LastUpdateTime {
		elapsed = now - next.LastUpdateTime
	}
	earned := new(big.Int).Mul(next.StakedBalance, new(big.Int).SetUint64(elapsed))
	earned.Quo(earned, secondsPerYear)

	increase := big.NewInt(0)
	if positive(amount) {
		increase.Mul(amount, new(big.Int).SetUint64(maxLockDuration))
		increase.Quo(increase, secondsPerYear)
		next.StakedBalance.Add(next.StakedBalance, amount)
		next.MaxStakeDebt.Add(next.MaxStakeDebt, increase)
	}

	if now > next.LastUpdateTime {
		next.LastUpdateTime = now
	}
	next.CreditLine.Add(next.CreditLine, earned)
	next.CreditLine.Add(next.CreditLine, increase)
	next.AvailableToWithdraw = availableToWithdraw(next.StakedBalance, next.CreditLine, next.MaxStakeDebt)
	return next
}

// availableToWithdraw unlocks stake linearly in creditLine/maxStakeDebt. No
// debt means fully unlocked.
func availableToWithdraw(staked, creditLine, maxStakeDebt *big.Int) *big.Int {
	if staked == nil || staked.Sign() <= 0 {
		return big.NewInt(0)
	}
	if maxStakeDebt == nil || maxStakeDebt.Sign() == 0 || creditLine.Cmp(maxStakeDebt) >= 0 {
		return new(big.Int).Set(staked)
	}
	available := new(big.Int).Mul(staked, creditLine)
	return available.Quo(available, maxStakeDebt)
}

// settleDebt returns the share of maxStakeDebt attached to amount of stake.
func settleDebt(acc *Account, amount *big.Int) *big.Int {
	if acc.StakedBalance.Sign() == 0 {
		return big.NewInt(0)
	}
	share := new(big.Int).Mul(amount, acc.MaxStakeDebt)
	return share.Quo(share, acc.StakedBalance)
}

// Refresh accrues the owner's account to the current time and persists it.
func (e *Engine) Refresh(owner crypto.Address) (*Account, error) {
	var out *Account
	err := e.execute("refresh", func() ([]events.Event, error) {
		st, err := e.loadState()
		if err != nil {
			return nil, err
		}
		acc, err := e.loadAccount(owner)
		if err != nil {
			return nil, err
		}
		next := Accrue(acc, nil, st.MaxLockDuration, e.now())
		if err := e.state.PortalAccountPut(next); err != nil {
			return nil, err
		}
		out = next.Clone()
		return nil, nil
	})
	return out, err
}

// PreviewAccount reports what owner's account would look like after staking
// amount now. Nothing is written. A never-seen owner previews from an empty
// record.
func (e *Engine) PreviewAccount(owner crypto.Address, amount *big.Int) (*Account, error) {
	if amount != nil && amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	st, err := e.loadState()
	if err != nil {
		return nil, err
	}
	acc, err := e.ensureAccount(owner)
	if err != nil {
		return nil, err
	}
	return Accrue(acc, amount, st.MaxLockDuration, e.now()), nil
}
