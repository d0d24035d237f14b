package state

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"stakeportal/storage"
)

var (
	// ErrTxActive is returned when Begin is called while a transaction is open.
	ErrTxActive = errors.New("state: transaction already open")
	// ErrNoTx is returned by Commit when no transaction is open.
	ErrNoTx = errors.New("state: no open transaction")
	// ErrAmountOverflow is returned when a persisted amount is negative or
	// does not fit in 256 bits.
	ErrAmountOverflow = errors.New("state: amount out of range")
)

// Manager provides typed key/value access on top of a storage backend. Values
// are RLP encoded and keys are hashed before they reach the database.
//
// Writes made between Begin and Commit are buffered in an overlay that reads
// observe first. Rollback discards the overlay, so a failed call leaves the
// database untouched.
type Manager struct {
	mu sync.Mutex
	db storage.Database
	tx *overlay
}

type overlay struct {
	writes  map[string][]byte
	deletes map[string]struct{}
}

func newOverlay() *overlay {
	return &overlay{
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// Begin opens a write overlay. Only one transaction may be open at a time.
func (m *Manager) Begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tx != nil {
		return ErrTxActive
	}
	m.tx = newOverlay()
	return nil
}

// InTx reports whether a transaction is currently open.
func (m *Manager) InTx() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tx != nil
}

// Commit flushes the overlay with a single storage batch.
func (m *Manager) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tx == nil {
		return ErrNoTx
	}
	tx := m.tx
	m.tx = nil
	batch := m.db.NewBatch()
	for key := range tx.deletes {
		batch.Delete([]byte(key))
	}
	for key, value := range tx.writes {
		batch.Put([]byte(key), value)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	return nil
}

// Rollback discards the overlay. It is a no-op without an open transaction.
func (m *Manager) Rollback() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tx = nil
}

func (m *Manager) get(hashed []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tx != nil {
		if _, deleted := m.tx.deletes[string(hashed)]; deleted {
			return nil, nil
		}
		if value, ok := m.tx.writes[string(hashed)]; ok {
			return value, nil
		}
	}
	value, err := m.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return value, err
}

func (m *Manager) put(hashed, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tx != nil {
		delete(m.tx.deletes, string(hashed))
		m.tx.writes[string(hashed)] = value
		return nil
	}
	return m.db.Put(hashed, value)
}

func (m *Manager) del(hashed []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tx != nil {
		delete(m.tx.writes, string(hashed))
		m.tx.deletes[string(hashed)] = struct{}{}
		return nil
	}
	return m.db.Delete(hashed)
}

// KVPut stores an arbitrary RLP-encodable value under the supplied key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.put(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the value stored under the supplied key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.del(kvKey(key))
}

// checkAmount copies v and rejects values that cannot be stored on-chain.
func checkAmount(v *big.Int) (*big.Int, error) {
	if v == nil {
		return big.NewInt(0), nil
	}
	if v.Sign() < 0 {
		return nil, ErrAmountOverflow
	}
	if _, overflow := uint256.FromBig(v); overflow {
		return nil, ErrAmountOverflow
	}
	return new(big.Int).Set(v), nil
}

func copyAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
