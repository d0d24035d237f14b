package venue

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"stakeportal/crypto"
)

var (
	// ErrUnknownSource is returned for a reward source that never accrued.
	ErrUnknownSource = errors.New("venue: unknown reward source")
	// ErrInvalidAmount rejects non-positive amounts.
	ErrInvalidAmount = errors.New("venue: amount must be positive")
)

// Assets is the ledger capability the vault moves balances through.
type Assets interface {
	Transfer(asset string, from, to crypto.Address, amount *big.Int) error
}

// Storage abstracts the subset of state manager functionality required by the
// vault.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var pendingPrefix = []byte("venue/pending/")

const moduleName = "venue"

// Vault custodies staked principal and accumulates rewards per source. Yield
// generation happens elsewhere; Accrue records what the vault is owed.
type Vault struct {
	store          Storage
	assets         Assets
	principalAsset string
	rewardAsset    string
	address        crypto.Address
}

// NewVault binds a vault that holds principalAsset and pays rewardAsset.
func NewVault(store Storage, assets Assets, principalAsset, rewardAsset string) *Vault {
	return &Vault{
		store:          store,
		assets:         assets,
		principalAsset: strings.ToUpper(strings.TrimSpace(principalAsset)),
		rewardAsset:    strings.ToUpper(strings.TrimSpace(rewardAsset)),
		address:        crypto.ModuleAddress(moduleName),
	}
}

// Address returns the vault custody address.
func (v *Vault) Address() crypto.Address { return v.address }

// RewardAsset returns the token rewards are paid in.
func (v *Vault) RewardAsset() string { return v.rewardAsset }

// Deposit pulls amount of principal from depositor into the vault.
func (v *Vault) Deposit(depositor crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return v.assets.Transfer(v.principalAsset, depositor, v.address, amount)
}

// Withdraw returns amount of principal to recipient.
func (v *Vault) Withdraw(recipient crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return v.assets.Transfer(v.principalAsset, v.address, recipient, amount)
}

func pendingKey(source string) []byte {
	return append(append([]byte(nil), pendingPrefix...), source...)
}

func (v *Vault) pending(source string) (*big.Int, bool, error) {
	var stored *big.Int
	ok, err := v.store.KVGet(pendingKey(source), &stored)
	if err != nil {
		return nil, false, err
	}
	if !ok || stored == nil {
		return big.NewInt(0), ok, nil
	}
	return stored, true, nil
}

// Accrue books amount of rewards owed by source. The reward tokens must
// already sit at the vault address.
func (v *Vault) Accrue(source string, amount *big.Int) error {
	source = strings.TrimSpace(source)
	if source == "" {
		return ErrUnknownSource
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	current, _, err := v.pending(source)
	if err != nil {
		return err
	}
	return v.store.KVPut(pendingKey(source), new(big.Int).Add(current, amount))
}

// PendingRewards reports the rewards claimable from source.
func (v *Vault) PendingRewards(source string) (*big.Int, error) {
	source = strings.TrimSpace(source)
	amount, ok, err := v.pending(source)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
	return amount, nil
}

// ClaimRewards pays every listed source's pending rewards to recipient. Pools
// scope the claim on venues with several staking pools; this vault runs a
// single pool and accepts any pool label.
func (v *Vault) ClaimRewards(recipient crypto.Address, pools, sources []string) error {
	for _, source := range sources {
		source = strings.TrimSpace(source)
		amount, ok, err := v.pending(source)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownSource, source)
		}
		if amount.Sign() == 0 {
			continue
		}
		if err := v.assets.Transfer(v.rewardAsset, v.address, recipient, amount); err != nil {
			return err
		}
		if err := v.store.KVPut(pendingKey(source), big.NewInt(0)); err != nil {
			return err
		}
	}
	return nil
}
