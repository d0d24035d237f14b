package main

import (
	"errors"
	"fmt"
	"log/slog"

	protocolcfg "stakeportal/config"
	"stakeportal/core/state"
	"stakeportal/crypto"
	"stakeportal/native/bank"
	"stakeportal/native/portal"
)

var genesisMarkerKey = []byte("portald/genesis/applied")

// applyGenesis credits the configured allocations once. The marker is written
// in the same commit as the credits.
func applyGenesis(mgr *state.Manager, ledger *bank.Ledger, allocations []protocolcfg.Allocation) (bool, error) {
	var applied bool
	if _, err := mgr.KVGet(genesisMarkerKey, &applied); err != nil {
		return false, fmt.Errorf("read genesis marker: %w", err)
	}
	if applied {
		return false, nil
	}
	if err := mgr.Begin(); err != nil {
		return false, err
	}
	for i, alloc := range allocations {
		holder, err := crypto.DecodeAddress(alloc.Address)
		if err != nil {
			mgr.Rollback()
			return false, fmt.Errorf("genesis[%d]: %w", i, err)
		}
		amount, err := alloc.Value()
		if err != nil {
			mgr.Rollback()
			return false, fmt.Errorf("genesis[%d]: %w", i, err)
		}
		if err := ledger.Credit(alloc.Asset, holder, amount); err != nil {
			mgr.Rollback()
			return false, fmt.Errorf("genesis[%d]: %w", i, err)
		}
	}
	if err := mgr.KVPut(genesisMarkerKey, true); err != nil {
		mgr.Rollback()
		return false, err
	}
	if err := mgr.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// bootstrap funds genesis holders and creates the protocol singleton on the
// first start. Later starts leave both untouched.
func bootstrap(logger *slog.Logger, engine *portal.Engine, mgr *state.Manager, ledger *bank.Ledger, protocol *protocolcfg.Config, now uint64) error {
	credited, err := applyGenesis(mgr, ledger, protocol.Genesis)
	if err != nil {
		return err
	}
	if credited {
		logger.Info("genesis allocations credited", slog.Int("count", len(protocol.Genesis)))
	}

	creation := protocol.CreationTime
	if creation == 0 {
		creation = now
	}
	err = engine.InitState(creation)
	switch {
	case errors.Is(err, portal.ErrAlreadyInitialised):
		return nil
	case err != nil:
		return fmt.Errorf("init portal state: %w", err)
	}
	logger.Info("portal created", slog.Uint64("creationTime", creation))
	return nil
}
