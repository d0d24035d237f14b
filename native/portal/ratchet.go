package portal

import "stakeportal/core/events"

// nextMaxLockDuration applies one ratchet step. The candidate is twice the
// protocol age; reaching the terminal value freezes the ratchet for good.
func nextMaxLockDuration(st *State, terminal, now uint64) (uint64, RatchetState, error) {
	if st.Ratchet == RatchetFrozen {
		return st.MaxLockDuration, RatchetFrozen, ErrLockDurationFrozen
	}
	age := uint64(0)
	if now > st.CreationTime {
		age = now - st.CreationTime
	}
	candidate := 2 * age
	if age > (^uint64(0))/2 {
		candidate = ^uint64(0)
	}
	switch {
	case candidate >= terminal:
		return terminal, RatchetFrozen, nil
	case candidate > st.MaxLockDuration:
		return candidate, RatchetAdjustable, nil
	default:
		return st.MaxLockDuration, RatchetAdjustable, ErrLockDurationNotIncreased
	}
}

// UpdateMaxLockDuration is a permissionless ratchet step. It returns the new
// duration.
func (e *Engine) UpdateMaxLockDuration() (uint64, error) {
	var out uint64
	err := e.execute("updateMaxLockDuration", func() ([]events.Event, error) {
		st, err := e.loadState()
		if err != nil {
			return nil, err
		}
		duration, ratchet, err := nextMaxLockDuration(st, e.params.TerminalMaxLockDuration, e.now())
		if err != nil {
			return nil, err
		}
		st.MaxLockDuration = duration
		st.Ratchet = ratchet
		if err := e.state.PortalStatePut(st); err != nil {
			return nil, err
		}
		out = duration
		return []events.Event{events.PortalLockDurationUpdated{
			MaxLockDuration: duration,
			Frozen:          ratchet == RatchetFrozen,
		}}, nil
	})
	return out, err
}
