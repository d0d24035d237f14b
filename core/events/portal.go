package events

import (
	"math/big"
	"strconv"
	"strings"

	"stakeportal/core/types"
	"stakeportal/crypto"
)

const (
	// TypePortalStaked is emitted when principal is staked.
	TypePortalStaked = "portal.staked"
	// TypePortalUnstaked is emitted when principal is withdrawn, including
	// forced exits.
	TypePortalUnstaked = "portal.unstaked"
	// TypePortalCreditBought captures a reference-asset to credit-line trade.
	TypePortalCreditBought = "portal.creditLine.bought"
	// TypePortalCreditSold captures a credit-line to reference-asset trade.
	TypePortalCreditSold = "portal.creditLine.sold"
	// TypePortalEntitlementMinted is emitted when credit leaves the account as
	// an external token.
	TypePortalEntitlementMinted = "portal.entitlement.minted"
	// TypePortalEntitlementBurned is emitted when external tokens are folded
	// back into a credit line.
	TypePortalEntitlementBurned = "portal.entitlement.burned"
	// TypePortalFundingContributed is emitted for each bootstrap contribution.
	TypePortalFundingContributed = "portal.funding.contributed"
	// TypePortalActivated is emitted once, when the funding phase closes.
	TypePortalActivated = "portal.activated"
	// TypePortalFundingRedeemed is emitted when receipt claims are redeemed.
	TypePortalFundingRedeemed = "portal.funding.redeemed"
	// TypePortalConverted is emitted when a token balance is swept.
	TypePortalConverted = "portal.converted"
	// TypePortalLockDurationUpdated is emitted when the ratchet moves.
	TypePortalLockDurationUpdated = "portal.maxLockDuration.updated"
	// TypePortalRewardsClaimed is emitted after venue rewards were pulled.
	TypePortalRewardsClaimed = "portal.rewards.claimed"
)

// PortalStaked captures the account position after a stake.
type PortalStaked struct {
	Account       crypto.Address
	Amount        *big.Int
	StakedBalance *big.Int
	MaxStakeDebt  *big.Int
	CreditLine    *big.Int
}

// EventType satisfies the Event interface.
func (PortalStaked) EventType() string { return TypePortalStaked }

// Event converts the structured payload into a broadcastable event.
func (e PortalStaked) Event() *types.Event {
	return &types.Event{Type: TypePortalStaked, Attributes: map[string]string{
		"addr":          e.Account.String(),
		"amount":        formatAmount(e.Amount),
		"stakedBalance": formatAmount(e.StakedBalance),
		"maxStakeDebt":  formatAmount(e.MaxStakeDebt),
		"creditLine":    formatAmount(e.CreditLine),
	}}
}

// PortalUnstaked captures a withdrawal of principal.
type PortalUnstaked struct {
	Account       crypto.Address
	Amount        *big.Int
	StakedBalance *big.Int
	CreditLine    *big.Int
	// Burned is the external entitlement burned to settle a forced exit.
	Burned *big.Int
	Forced bool
}

// EventType satisfies the Event interface.
func (PortalUnstaked) EventType() string { return TypePortalUnstaked }

// Event converts the structured payload into a broadcastable event.
func (e PortalUnstaked) Event() *types.Event {
	attrs := map[string]string{
		"addr":          e.Account.String(),
		"amount":        formatAmount(e.Amount),
		"stakedBalance": formatAmount(e.StakedBalance),
		"creditLine":    formatAmount(e.CreditLine),
	}
	if e.Forced {
		attrs["forced"] = "true"
		attrs["burned"] = formatAmount(e.Burned)
	}
	return &types.Event{Type: TypePortalUnstaked, Attributes: attrs}
}

// PortalTrade captures an internal exchange trade in either direction.
type PortalTrade struct {
	Account   crypto.Address
	Sell      bool
	AmountIn  *big.Int
	AmountOut *big.Int
	Reserve0  *big.Int
	Reserve1  *big.Int
}

// EventType satisfies the Event interface.
func (e PortalTrade) EventType() string {
	if e.Sell {
		return TypePortalCreditSold
	}
	return TypePortalCreditBought
}

// Event converts the structured payload into a broadcastable event.
func (e PortalTrade) Event() *types.Event {
	return &types.Event{Type: e.EventType(), Attributes: map[string]string{
		"addr":      e.Account.String(),
		"amountIn":  formatAmount(e.AmountIn),
		"amountOut": formatAmount(e.AmountOut),
		"reserve0":  formatAmount(e.Reserve0),
		"reserve1":  formatAmount(e.Reserve1),
	}}
}

// PortalEntitlement captures movement between a credit line and the external
// entitlement token.
type PortalEntitlement struct {
	Owner     crypto.Address
	Recipient crypto.Address
	Amount    *big.Int
	Burned    bool
}

// EventType satisfies the Event interface.
func (e PortalEntitlement) EventType() string {
	if e.Burned {
		return TypePortalEntitlementBurned
	}
	return TypePortalEntitlementMinted
}

// Event converts the structured payload into a broadcastable event.
func (e PortalEntitlement) Event() *types.Event {
	return &types.Event{Type: e.EventType(), Attributes: map[string]string{
		"owner":     e.Owner.String(),
		"recipient": e.Recipient.String(),
		"amount":    formatAmount(e.Amount),
	}}
}

// PortalFundingContributed captures a bootstrap contribution.
type PortalFundingContributed struct {
	Contributor    crypto.Address
	Amount         *big.Int
	Receipts       *big.Int
	FundingBalance *big.Int
}

// EventType satisfies the Event interface.
func (PortalFundingContributed) EventType() string { return TypePortalFundingContributed }

// Event converts the structured payload into a broadcastable event.
func (e PortalFundingContributed) Event() *types.Event {
	return &types.Event{Type: TypePortalFundingContributed, Attributes: map[string]string{
		"addr":           e.Contributor.String(),
		"amount":         formatAmount(e.Amount),
		"receipts":       formatAmount(e.Receipts),
		"fundingBalance": formatAmount(e.FundingBalance),
	}}
}

// PortalActivated captures the exchange parameters fixed at activation.
type PortalActivated struct {
	FundingBalance    *big.Int
	ConstantProduct   *big.Int
	FundingMaxRewards *big.Int
	ActivatedAt       uint64
}

// EventType satisfies the Event interface.
func (PortalActivated) EventType() string { return TypePortalActivated }

// Event converts the structured payload into a broadcastable event.
func (e PortalActivated) Event() *types.Event {
	return &types.Event{Type: TypePortalActivated, Attributes: map[string]string{
		"fundingBalance":    formatAmount(e.FundingBalance),
		"constantProduct":   formatAmount(e.ConstantProduct),
		"fundingMaxRewards": formatAmount(e.FundingMaxRewards),
		"activatedAt":       strconv.FormatUint(e.ActivatedAt, 10),
	}}
}

// PortalFundingRedeemed captures a receipt redemption against the reward pool.
type PortalFundingRedeemed struct {
	Holder crypto.Address
	Burned *big.Int
	Payout *big.Int
	Pool   *big.Int
}

// EventType satisfies the Event interface.
func (PortalFundingRedeemed) EventType() string { return TypePortalFundingRedeemed }

// Event converts the structured payload into a broadcastable event.
func (e PortalFundingRedeemed) Event() *types.Event {
	return &types.Event{Type: TypePortalFundingRedeemed, Attributes: map[string]string{
		"addr":   e.Holder.String(),
		"burned": formatAmount(e.Burned),
		"payout": formatAmount(e.Payout),
		"pool":   formatAmount(e.Pool),
	}}
}

// PortalConverted captures a converter sweep.
type PortalConverted struct {
	Caller      crypto.Address
	Token       string
	AmountOut   *big.Int
	Payment     *big.Int
	RewardAdded *big.Int
}

// EventType satisfies the Event interface.
func (PortalConverted) EventType() string { return TypePortalConverted }

// Event converts the structured payload into a broadcastable event.
func (e PortalConverted) Event() *types.Event {
	attrs := map[string]string{
		"addr":      e.Caller.String(),
		"token":     normalizeAsset(e.Token),
		"amountOut": formatAmount(e.AmountOut),
		"payment":   formatAmount(e.Payment),
	}
	if e.RewardAdded != nil && e.RewardAdded.Sign() > 0 {
		attrs["rewardAdded"] = formatAmount(e.RewardAdded)
	}
	return &types.Event{Type: TypePortalConverted, Attributes: attrs}
}

// PortalLockDurationUpdated captures a ratchet step.
type PortalLockDurationUpdated struct {
	MaxLockDuration uint64
	Frozen          bool
}

// EventType satisfies the Event interface.
func (PortalLockDurationUpdated) EventType() string { return TypePortalLockDurationUpdated }

// Event converts the structured payload into a broadcastable event.
func (e PortalLockDurationUpdated) Event() *types.Event {
	return &types.Event{Type: TypePortalLockDurationUpdated, Attributes: map[string]string{
		"maxLockDuration": strconv.FormatUint(e.MaxLockDuration, 10),
		"frozen":          strconv.FormatBool(e.Frozen),
	}}
}

// PortalRewardsClaimed captures a venue reward pull.
type PortalRewardsClaimed struct {
	Caller  crypto.Address
	Pools   []string
	Sources []string
}

// EventType satisfies the Event interface.
func (PortalRewardsClaimed) EventType() string { return TypePortalRewardsClaimed }

// Event converts the structured payload into a broadcastable event.
func (e PortalRewardsClaimed) Event() *types.Event {
	attrs := map[string]string{
		"pools":   strings.Join(e.Pools, ","),
		"sources": strings.Join(e.Sources, ","),
	}
	if !e.Caller.IsZero() {
		attrs["addr"] = e.Caller.String()
	}
	return &types.Event{Type: TypePortalRewardsClaimed, Attributes: attrs}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func normalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}
