package portal

import (
	"errors"
	"math/big"
	"strings"

	"stakeportal/core/events"
	"stakeportal/crypto"
)

var errNilRewards = errors.New("portal: reward sources not configured")

// ClaimRewards pulls pending venue rewards into the portal's custody, where
// the converter can sweep them. It is permissionless; caller is recorded for
// the event only.
func (e *Engine) ClaimRewards(caller crypto.Address, pools, sources []string) error {
	return e.execute("claimRewards", func() ([]events.Event, error) {
		if e.rewards == nil {
			return nil, errNilRewards
		}
		if _, err := e.requireActive(); err != nil {
			return nil, err
		}
		pools = trimAll(pools)
		sources = trimAll(sources)
		if err := e.rewards.ClaimRewards(e.address, pools, sources); err != nil {
			return nil, err
		}
		return []events.Event{events.PortalRewardsClaimed{
			Caller:  caller,
			Pools:   pools,
			Sources: sources,
		}}, nil
	})
}

// PendingRewards reports the rewards claimable from source.
func (e *Engine) PendingRewards(source string) (*big.Int, error) {
	if e == nil || e.pending == nil {
		return nil, errNilRewards
	}
	return e.pending.PendingRewards(strings.TrimSpace(source))
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
