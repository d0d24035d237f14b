package bank

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"

	"stakeportal/crypto"
	"stakeportal/native/portal"
	"stakeportal/observability"
)

var (
	// ErrInsufficientBalance is returned when a holder cannot cover a debit.
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	// ErrInvalidAmount rejects negative amounts.
	ErrInvalidAmount = errors.New("bank: amount must not be negative")
	// ErrInvalidAsset rejects an empty asset symbol.
	ErrInvalidAsset = errors.New("bank: asset symbol required")
	// ErrInvalidHolder rejects the zero address.
	ErrInvalidHolder = errors.New("bank: holder address required")
	// ErrOverflow is returned when a balance or supply would leave 256 bits.
	ErrOverflow = errors.New("bank: amount overflows 256 bits")
)

func init() {
	portal.RegisterInsufficientError(ErrInsufficientBalance)
}

// Storage abstracts the subset of state manager functionality required by the
// ledger.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var (
	balancePrefix = []byte("bank/balance/")
	supplyPrefix  = []byte("bank/supply/")
)

// Ledger keeps per-asset balances and supplies. It serves as both the asset
// transfer and the claim issuance capability of the portal.
type Ledger struct {
	store Storage
}

// NewLedger binds a ledger to store.
func NewLedger(store Storage) *Ledger {
	return &Ledger{store: store}
}

func normalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}

func balanceKey(asset string, holder crypto.Address) []byte {
	key := make([]byte, 0, len(balancePrefix)+len(asset)+1+crypto.AddressLength)
	key = append(key, balancePrefix...)
	key = append(key, asset...)
	key = append(key, '/')
	return append(key, holder.Bytes()...)
}

func supplyKey(asset string) []byte {
	return append(append([]byte(nil), supplyPrefix...), asset...)
}

func (l *Ledger) load(key []byte) (*uint256.Int, error) {
	if l == nil || l.store == nil {
		return nil, fmt.Errorf("bank: storage unavailable")
	}
	var stored *big.Int
	ok, err := l.store.KVGet(key, &stored)
	if err != nil {
		return nil, err
	}
	if !ok || stored == nil {
		return new(uint256.Int), nil
	}
	v, overflow := uint256.FromBig(stored)
	if overflow {
		return nil, ErrOverflow
	}
	return v, nil
}

func (l *Ledger) save(key []byte, v *uint256.Int) error {
	return l.store.KVPut(key, v.ToBig())
}

func parseAmount(amount *big.Int) (*uint256.Int, error) {
	if amount == nil {
		return new(uint256.Int), nil
	}
	if amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	v, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, ErrOverflow
	}
	return v, nil
}

func validate(asset string, holder crypto.Address) (string, error) {
	asset = normalizeAsset(asset)
	if asset == "" {
		return "", ErrInvalidAsset
	}
	if holder.IsZero() {
		return "", ErrInvalidHolder
	}
	return asset, nil
}

// BalanceOf returns the holder's balance of asset.
func (l *Ledger) BalanceOf(asset string, holder crypto.Address) (*big.Int, error) {
	asset, err := validate(asset, holder)
	if err != nil {
		return nil, err
	}
	v, err := l.load(balanceKey(asset, holder))
	if err != nil {
		return nil, err
	}
	return v.ToBig(), nil
}

// TotalSupply returns the minted-minus-burned supply of asset.
func (l *Ledger) TotalSupply(asset string) (*big.Int, error) {
	asset = normalizeAsset(asset)
	if asset == "" {
		return nil, ErrInvalidAsset
	}
	v, err := l.load(supplyKey(asset))
	if err != nil {
		return nil, err
	}
	return v.ToBig(), nil
}

// Transfer moves amount of asset from one holder to another. A zero amount is
// a no-op.
func (l *Ledger) Transfer(asset string, from, to crypto.Address, amount *big.Int) error {
	asset, err := validate(asset, from)
	if err != nil {
		return err
	}
	if to.IsZero() {
		return ErrInvalidHolder
	}
	value, err := parseAmount(amount)
	if err != nil {
		return err
	}
	if value.IsZero() {
		return nil
	}
	if err := l.debit(asset, from, value); err != nil {
		return err
	}
	if err := l.credit(asset, to, value); err != nil {
		return err
	}
	observability.Ledger().RecordMovement(asset, observability.LedgerOpTransfer)
	return nil
}

// Mint credits amount of asset to holder and grows the supply.
func (l *Ledger) Mint(asset string, to crypto.Address, amount *big.Int) error {
	asset, err := validate(asset, to)
	if err != nil {
		return err
	}
	value, err := parseAmount(amount)
	if err != nil {
		return err
	}
	supply, err := l.load(supplyKey(asset))
	if err != nil {
		return err
	}
	next, overflow := new(uint256.Int).AddOverflow(supply, value)
	if overflow {
		return ErrOverflow
	}
	if err := l.credit(asset, to, value); err != nil {
		return err
	}
	if err := l.save(supplyKey(asset), next); err != nil {
		return err
	}
	observability.Ledger().RecordMovement(asset, observability.LedgerOpMint)
	return nil
}

// Burn debits amount of asset from holder and shrinks the supply.
func (l *Ledger) Burn(asset string, from crypto.Address, amount *big.Int) error {
	asset, err := validate(asset, from)
	if err != nil {
		return err
	}
	value, err := parseAmount(amount)
	if err != nil {
		return err
	}
	if err := l.debit(asset, from, value); err != nil {
		return err
	}
	supply, err := l.load(supplyKey(asset))
	if err != nil {
		return err
	}
	if supply.Lt(value) {
		return fmt.Errorf("bank: %s supply below burned amount", asset)
	}
	if err := l.save(supplyKey(asset), new(uint256.Int).Sub(supply, value)); err != nil {
		return err
	}
	observability.Ledger().RecordMovement(asset, observability.LedgerOpBurn)
	return nil
}

// Credit funds a holder without touching supply. It is meant for genesis
// allocations of assets issued outside the ledger.
func (l *Ledger) Credit(asset string, to crypto.Address, amount *big.Int) error {
	asset, err := validate(asset, to)
	if err != nil {
		return err
	}
	value, err := parseAmount(amount)
	if err != nil {
		return err
	}
	if err := l.credit(asset, to, value); err != nil {
		return err
	}
	observability.Ledger().RecordMovement(asset, observability.LedgerOpCredit)
	return nil
}

func (l *Ledger) debit(asset string, holder crypto.Address, value *uint256.Int) error {
	key := balanceKey(asset, holder)
	balance, err := l.load(key)
	if err != nil {
		return err
	}
	if balance.Lt(value) {
		return fmt.Errorf("%w: %s has %s %s, needs %s", ErrInsufficientBalance, holder, balance.Dec(), asset, value.Dec())
	}
	return l.save(key, new(uint256.Int).Sub(balance, value))
}

func (l *Ledger) credit(asset string, holder crypto.Address, value *uint256.Int) error {
	key := balanceKey(asset, holder)
	balance, err := l.load(key)
	if err != nil {
		return err
	}
	next, overflow := new(uint256.Int).AddOverflow(balance, value)
	if overflow {
		return ErrOverflow
	}
	return l.save(key, next)
}
