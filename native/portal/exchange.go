package portal

import (
	"errors"
	"math/big"

	"stakeportal/core/events"
	"stakeportal/crypto"
)

// tradableReserves derives the exchange reserves from custody. The reward
// pool is carved out of the reference balance; the credit-line side is
// synthetic, K / reserve0.
func tradableReserves(balance, rewardPool, constantProduct *big.Int) (*big.Int, *big.Int, error) {
	reserve0 := new(big.Int).Sub(balance, rewardPool)
	if reserve0.Sign() <= 0 || constantProduct.Sign() == 0 {
		return nil, nil, ErrNoLiquidity
	}
	reserve1 := new(big.Int).Quo(constantProduct, reserve0)
	if reserve1.Sign() == 0 {
		return nil, nil, ErrNoLiquidity
	}
	return reserve0, reserve1, nil
}

// constantProductOut is amountIn*reserveOut/(amountIn+reserveIn), floored.
func constantProductOut(amountIn, reserveIn, reserveOut *big.Int) *big.Int {
	num := new(big.Int).Mul(amountIn, reserveOut)
	den := new(big.Int).Add(amountIn, reserveIn)
	if den.Sign() == 0 {
		return big.NewInt(0)
	}
	return num.Quo(num, den)
}

func (e *Engine) reserves(st *State) (*big.Int, *big.Int, error) {
	if err := e.requireAssets(); err != nil {
		return nil, nil, err
	}
	balance, err := e.assets.BalanceOf(e.params.ReferenceAsset, e.address)
	if err != nil {
		return nil, nil, err
	}
	return tradableReserves(balance, st.FundingRewardPool, st.ConstantProduct)
}

// syncReserves stores the current reserves on st. A drained exchange stores
// zeros rather than failing the caller.
func (e *Engine) syncReserves(st *State) error {
	reserve0, reserve1, err := e.reserves(st)
	switch {
	case errors.Is(err, ErrNoLiquidity):
		st.Reserve0 = big.NewInt(0)
		st.Reserve1 = big.NewInt(0)
		return nil
	case err != nil:
		return err
	}
	st.Reserve0 = reserve0
	st.Reserve1 = reserve1
	return nil
}

// QuoteBuy prices amountIn of the reference asset in credit line.
func (e *Engine) QuoteBuy(amountIn *big.Int) (*Quote, error) {
	if !positive(amountIn) {
		return nil, ErrInvalidAmount
	}
	st, err := e.requireActive()
	if err != nil {
		return nil, err
	}
	reserve0, reserve1, err := e.reserves(st)
	if err != nil {
		return nil, err
	}
	return &Quote{
		AmountIn:  cloneAmount(amountIn),
		AmountOut: constantProductOut(amountIn, reserve0, reserve1),
		Reserve0:  reserve0,
		Reserve1:  reserve1,
	}, nil
}

// QuoteSell prices amountIn of credit line in the reference asset.
func (e *Engine) QuoteSell(amountIn *big.Int) (*Quote, error) {
	if !positive(amountIn) {
		return nil, ErrInvalidAmount
	}
	st, err := e.requireActive()
	if err != nil {
		return nil, err
	}
	reserve0, reserve1, err := e.reserves(st)
	if err != nil {
		return nil, err
	}
	return &Quote{
		AmountIn:  cloneAmount(amountIn),
		AmountOut: constantProductOut(amountIn, reserve1, reserve0),
		Reserve0:  reserve0,
		Reserve1:  reserve1,
	}, nil
}

// BuyCreditLine pays amountIn of the reference asset into the exchange and
// credits the output to the caller's credit line. The caller must already
// have an account.
func (e *Engine) BuyCreditLine(caller crypto.Address, amountIn, minReceived *big.Int, deadline uint64) (*Quote, error) {
	var out *Quote
	err := e.execute("buyCreditLine", func() ([]events.Event, error) {
		if !positive(amountIn) {
			return nil, ErrInvalidAmount
		}
		now := e.now()
		if err := checkDeadline(deadline, now); err != nil {
			return nil, err
		}
		st, err := e.requireActive()
		if err != nil {
			return nil, err
		}
		acc, err := e.loadAccount(caller)
		if err != nil {
			return nil, err
		}
		reserve0, reserve1, err := e.reserves(st)
		if err != nil {
			return nil, err
		}
		received := constantProductOut(amountIn, reserve0, reserve1)
		if minReceived != nil && received.Cmp(minReceived) < 0 {
			return nil, ErrSlippage
		}

		if err := e.assets.Transfer(e.params.ReferenceAsset, caller, e.address, amountIn); err != nil {
			return nil, err
		}
		next := Accrue(acc, nil, st.MaxLockDuration, now)
		next.CreditLine.Add(next.CreditLine, received)
		next.AvailableToWithdraw = availableToWithdraw(next.StakedBalance, next.CreditLine, next.MaxStakeDebt)
		if err := e.syncReserves(st); err != nil {
			return nil, err
		}
		if err := e.state.PortalAccountPut(next); err != nil {
			return nil, err
		}
		if err := e.state.PortalStatePut(st); err != nil {
			return nil, err
		}
		out = &Quote{AmountIn: cloneAmount(amountIn), AmountOut: received, Reserve0: cloneAmount(st.Reserve0), Reserve1: cloneAmount(st.Reserve1)}
		return []events.Event{events.PortalTrade{
			Account:   caller,
			AmountIn:  cloneAmount(amountIn),
			AmountOut: cloneAmount(received),
			Reserve0:  cloneAmount(st.Reserve0),
			Reserve1:  cloneAmount(st.Reserve1),
		}}, nil
	})
	return out, err
}

// SellCreditLine deducts amountIn from the caller's credit line and pays the
// output in the reference asset from the exchange.
func (e *Engine) SellCreditLine(caller crypto.Address, amountIn, minReceived *big.Int, deadline uint64) (*Quote, error) {
	var out *Quote
	err := e.execute("sellCreditLine", func() ([]events.Event, error) {
		if !positive(amountIn) {
			return nil, ErrInvalidAmount
		}
		now := e.now()
		if err := checkDeadline(deadline, now); err != nil {
			return nil, err
		}
		st, err := e.requireActive()
		if err != nil {
			return nil, err
		}
		acc, err := e.loadAccount(caller)
		if err != nil {
			return nil, err
		}
		next := Accrue(acc, nil, st.MaxLockDuration, now)
		if amountIn.Cmp(next.CreditLine) > 0 {
			return nil, ErrInsufficientCreditLine
		}
		reserve0, reserve1, err := e.reserves(st)
		if err != nil {
			return nil, err
		}
		received := constantProductOut(amountIn, reserve1, reserve0)
		if minReceived != nil && received.Cmp(minReceived) < 0 {
			return nil, ErrSlippage
		}

		next.CreditLine.Sub(next.CreditLine, amountIn)
		next.AvailableToWithdraw = availableToWithdraw(next.StakedBalance, next.CreditLine, next.MaxStakeDebt)
		if err := e.assets.Transfer(e.params.ReferenceAsset, e.address, caller, received); err != nil {
			return nil, err
		}
		if err := e.syncReserves(st); err != nil {
			return nil, err
		}
		if err := e.state.PortalAccountPut(next); err != nil {
			return nil, err
		}
		if err := e.state.PortalStatePut(st); err != nil {
			return nil, err
		}
		out = &Quote{AmountIn: cloneAmount(amountIn), AmountOut: received, Reserve0: cloneAmount(st.Reserve0), Reserve1: cloneAmount(st.Reserve1)}
		return []events.Event{events.PortalTrade{
			Account:   caller,
			Sell:      true,
			AmountIn:  cloneAmount(amountIn),
			AmountOut: cloneAmount(received),
			Reserve0:  cloneAmount(st.Reserve0),
			Reserve1:  cloneAmount(st.Reserve1),
		}}, nil
	})
	return out, err
}
