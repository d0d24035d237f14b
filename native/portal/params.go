package portal

import (
	"fmt"
	"math/big"
	"strings"
)

// SecondsPerYear is the accrual period: one unit of credit per unit of
// principal per year.
const SecondsPerYear uint64 = 31_536_000

// fundingRewardSharePercent is the converter payment share routed to the
// reward pool.
const fundingRewardSharePercent = 10

// Params is the immutable configuration fixed at construction.
type Params struct {
	// FundingPhaseDuration is the length of the funding window in seconds.
	FundingPhaseDuration uint64
	// FundingExchangeRatio sets the initial credit-line liquidity per unit of
	// funded reference asset.
	FundingExchangeRatio uint64
	// FundingRewardRate is the receipts minted per unit contributed.
	FundingRewardRate uint64

	PrincipalAsset   string
	ReceiptAsset     string
	EntitlementAsset string
	ReferenceAsset   string

	// InitialMaxLockDuration seeds the ratchet.
	InitialMaxLockDuration uint64
	// TerminalMaxLockDuration freezes the ratchet once reached.
	TerminalMaxLockDuration uint64
	// AmountToConvert is the fixed reference-asset payment of a conversion.
	AmountToConvert *big.Int
}

// DefaultParams mirrors the launch configuration of the portal.
func DefaultParams() Params {
	amount, _ := new(big.Int).SetString("100000000000000000000000", 10)
	return Params{
		FundingPhaseDuration:    432_000,
		FundingExchangeRatio:    550,
		FundingRewardRate:       10,
		PrincipalAsset:          "HLP",
		ReceiptAsset:            "BPSM",
		EntitlementAsset:        "PE",
		ReferenceAsset:          "PSM",
		InitialMaxLockDuration:  7_776_000,
		TerminalMaxLockDuration: 157_680_000,
		AmountToConvert:         amount,
	}
}

// Clone returns a deep copy of the params.
func (p Params) Clone() Params {
	clone := p
	clone.AmountToConvert = cloneAmount(p.AmountToConvert)
	return clone
}

func (p *Params) normalize() {
	p.PrincipalAsset = normalizeAsset(p.PrincipalAsset)
	p.ReceiptAsset = normalizeAsset(p.ReceiptAsset)
	p.EntitlementAsset = normalizeAsset(p.EntitlementAsset)
	p.ReferenceAsset = normalizeAsset(p.ReferenceAsset)
}

// Validate checks that the configuration can drive a portal.
func (p Params) Validate() error {
	if p.FundingPhaseDuration == 0 {
		return fmt.Errorf("%w: funding phase duration must be positive", ErrInvalidParams)
	}
	if p.FundingExchangeRatio == 0 {
		return fmt.Errorf("%w: funding exchange ratio must be positive", ErrInvalidParams)
	}
	if p.FundingRewardRate == 0 {
		return fmt.Errorf("%w: funding reward rate must be positive", ErrInvalidParams)
	}
	if p.InitialMaxLockDuration == 0 {
		return fmt.Errorf("%w: initial max lock duration must be positive", ErrInvalidParams)
	}
	if p.TerminalMaxLockDuration < p.InitialMaxLockDuration {
		return fmt.Errorf("%w: terminal max lock duration below initial value", ErrInvalidParams)
	}
	if !positive(p.AmountToConvert) {
		return fmt.Errorf("%w: amount to convert must be positive", ErrInvalidParams)
	}
	seen := make(map[string]string, 4)
	for label, asset := range map[string]string{
		"principal":   normalizeAsset(p.PrincipalAsset),
		"receipt":     normalizeAsset(p.ReceiptAsset),
		"entitlement": normalizeAsset(p.EntitlementAsset),
		"reference":   normalizeAsset(p.ReferenceAsset),
	} {
		if asset == "" {
			return fmt.Errorf("%w: %s asset required", ErrInvalidParams, label)
		}
		if other, dup := seen[asset]; dup {
			return fmt.Errorf("%w: %s and %s asset share symbol %s", ErrInvalidParams, label, other, asset)
		}
		seen[asset] = label
	}
	return nil
}

func normalizeAsset(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
