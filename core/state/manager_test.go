package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"stakeportal/storage"
)

func newTestManager(t *testing.T) (*Manager, storage.Database) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	return NewManager(db), db
}

func TestKVRoundTrip(t *testing.T) {
	mgr, _ := newTestManager(t)

	require.NoError(t, mgr.KVPut([]byte("bank/supply/PSM"), big.NewInt(42)))
	var out *big.Int
	ok, err := mgr.KVGet([]byte("bank/supply/PSM"), &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "42", out.String())

	ok, err = mgr.KVGet([]byte("bank/supply/HLP"), &out)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, mgr.KVDelete([]byte("bank/supply/PSM")))
	ok, err = mgr.KVGet([]byte("bank/supply/PSM"), nil)
	require.NoError(t, err)
	require.False(t, ok)

	require.Error(t, mgr.KVPut(nil, big.NewInt(1)))
}

func TestTransactionCommitIsAtomic(t *testing.T) {
	mgr, db := newTestManager(t)
	key := []byte("venue/pending/a")

	require.NoError(t, mgr.Begin())
	require.ErrorIs(t, mgr.Begin(), ErrTxActive)
	require.True(t, mgr.InTx())

	require.NoError(t, mgr.KVPut(key, big.NewInt(7)))

	// visible through the manager, absent from the database
	var out *big.Int
	ok, err := mgr.KVGet(key, &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "7", out.String())
	has, err := db.Has(kvKey(key))
	require.NoError(t, err)
	require.False(t, has)

	require.NoError(t, mgr.Commit())
	require.False(t, mgr.InTx())
	has, err = db.Has(kvKey(key))
	require.NoError(t, err)
	require.True(t, has)

	require.ErrorIs(t, mgr.Commit(), ErrNoTx)
}

func TestTransactionRollbackDiscardsWrites(t *testing.T) {
	mgr, _ := newTestManager(t)
	kept := []byte("venue/pending/kept")
	dropped := []byte("venue/pending/dropped")
	require.NoError(t, mgr.KVPut(kept, big.NewInt(1)))

	require.NoError(t, mgr.Begin())
	require.NoError(t, mgr.KVPut(dropped, big.NewInt(2)))
	require.NoError(t, mgr.KVDelete(kept))
	ok, err := mgr.KVGet(kept, nil)
	require.NoError(t, err)
	require.False(t, ok)
	mgr.Rollback()

	ok, err = mgr.KVGet(kept, nil)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = mgr.KVGet(dropped, nil)
	require.NoError(t, err)
	require.False(t, ok)

	// rollback without a transaction is harmless
	mgr.Rollback()
}

func TestCheckAmount(t *testing.T) {
	v, err := checkAmount(nil)
	require.NoError(t, err)
	require.Zero(t, v.Sign())

	_, err = checkAmount(big.NewInt(-1))
	require.ErrorIs(t, err, ErrAmountOverflow)

	limit := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	v, err = checkAmount(limit)
	require.NoError(t, err)
	require.Equal(t, limit.String(), v.String())

	_, err = checkAmount(new(big.Int).Add(limit, big.NewInt(1)))
	require.ErrorIs(t, err, ErrAmountOverflow)
}
