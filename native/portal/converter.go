package portal

import (
	"math/big"

	"stakeportal/core/events"
	"stakeportal/crypto"
)

// converterReward is the share of payment routed to the reward pool, or zero
// once the pool has collected its cap or no receipts are outstanding.
func converterReward(st *State, payment, receiptSupply *big.Int) *big.Int {
	if receiptSupply == nil || receiptSupply.Sign() == 0 {
		return big.NewInt(0)
	}
	if st.FundingRewardsCollected.Cmp(st.FundingMaxRewards) >= 0 {
		return big.NewInt(0)
	}
	reward := new(big.Int).Mul(payment, big.NewInt(fundingRewardSharePercent))
	return reward.Quo(reward, big.NewInt(100))
}

// Convert sells the portal's entire balance of token to the caller for the
// fixed reference-asset payment. minReceived guards against the balance
// shrinking between quote and execution. It returns the amount swept.
func (e *Engine) Convert(caller crypto.Address, token string, minReceived *big.Int, deadline uint64) (*big.Int, error) {
	var swept *big.Int
	err := e.execute("convert", func() ([]events.Event, error) {
		if caller.IsZero() {
			return nil, ErrInvalidOwner
		}
		token = normalizeAsset(token)
		if token == "" || token == e.params.ReferenceAsset || token == e.params.PrincipalAsset {
			return nil, ErrInvalidConvertToken
		}
		if err := checkDeadline(deadline, e.now()); err != nil {
			return nil, err
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
		balance, err := e.assets.BalanceOf(token, e.address)
		if err != nil {
			return nil, err
		}
		if minReceived != nil && balance.Cmp(minReceived) < 0 {
			return nil, ErrSlippage
		}

		payment := e.params.AmountToConvert
		if err := e.assets.Transfer(e.params.ReferenceAsset, caller, e.address, payment); err != nil {
			return nil, err
		}
		supply, err := e.claims.TotalSupply(e.params.ReceiptAsset)
		if err != nil {
			return nil, err
		}
		reward := converterReward(st, payment, supply)
		if reward.Sign() > 0 {
			st.FundingRewardPool = new(big.Int).Add(st.FundingRewardPool, reward)
			st.FundingRewardsCollected = new(big.Int).Add(st.FundingRewardsCollected, reward)
		}
		if err := e.assets.Transfer(token, e.address, caller, balance); err != nil {
			return nil, err
		}
		if err := e.syncReserves(st); err != nil {
			return nil, err
		}
		if err := e.state.PortalStatePut(st); err != nil {
			return nil, err
		}
		swept = cloneAmount(balance)
		return []events.Event{events.PortalConverted{
			Caller:      caller,
			Token:       token,
			AmountOut:   cloneAmount(balance),
			Payment:     cloneAmount(payment),
			RewardAdded: reward,
		}}, nil
	})
	return swept, err
}
