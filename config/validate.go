package config

import (
	"fmt"
	"math/big"
	"strings"

	"stakeportal/crypto"
)

// ValidateConfig checks the protocol section and the genesis allocations.
func ValidateConfig(c Config) error {
	if _, err := c.Portal.Params(); err != nil {
		return err
	}
	for i, alloc := range c.Genesis {
		if strings.TrimSpace(alloc.Asset) == "" {
			return fmt.Errorf("genesis[%d]: asset required", i)
		}
		if _, err := crypto.DecodeAddress(alloc.Address); err != nil {
			return fmt.Errorf("genesis[%d]: %w", i, err)
		}
		if _, err := alloc.Value(); err != nil {
			return fmt.Errorf("genesis[%d]: %w", i, err)
		}
	}
	return nil
}

// Value parses the allocation amount.
func (a Allocation) Value() (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(a.Amount), 10)
	if !ok || v.Sign() <= 0 {
		return nil, fmt.Errorf("amount %q must be a positive base-10 integer", a.Amount)
	}
	return v, nil
}
