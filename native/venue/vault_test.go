package venue

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"stakeportal/core/state"
	"stakeportal/crypto"
	"stakeportal/native/bank"
	"stakeportal/storage"
)

func setup(t *testing.T) (*Vault, *bank.Ledger) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	mgr := state.NewManager(db)
	ledger := bank.NewLedger(mgr)
	return NewVault(mgr, ledger, "hlp", "rwd"), ledger
}

func TestDepositAndWithdraw(t *testing.T) {
	vault, ledger := setup(t)
	depositor := crypto.MustNewAddress(crypto.ModulePrefix, bytes.Repeat([]byte{0x07}, crypto.AddressLength))
	require.NoError(t, ledger.Credit("HLP", depositor, big.NewInt(100)))

	require.NoError(t, vault.Deposit(depositor, big.NewInt(60)))
	held, err := ledger.BalanceOf("HLP", vault.Address())
	require.NoError(t, err)
	require.Equal(t, "60", held.String())

	require.NoError(t, vault.Withdraw(depositor, big.NewInt(60)))
	held, err = ledger.BalanceOf("HLP", depositor)
	require.NoError(t, err)
	require.Equal(t, "100", held.String())

	require.ErrorIs(t, vault.Withdraw(depositor, big.NewInt(1)), bank.ErrInsufficientBalance)
	require.ErrorIs(t, vault.Deposit(depositor, big.NewInt(0)), ErrInvalidAmount)
}

func TestRewardsClaim(t *testing.T) {
	vault, ledger := setup(t)
	recipient := crypto.MustNewAddress(crypto.ModulePrefix, bytes.Repeat([]byte{0x08}, crypto.AddressLength))

	_, err := vault.PendingRewards("pool-a")
	require.ErrorIs(t, err, ErrUnknownSource)

	require.NoError(t, ledger.Credit("RWD", vault.Address(), big.NewInt(300)))
	require.NoError(t, vault.Accrue("pool-a", big.NewInt(100)))
	require.NoError(t, vault.Accrue("pool-a", big.NewInt(50)))
	require.NoError(t, vault.Accrue("pool-b", big.NewInt(150)))

	pending, err := vault.PendingRewards(" pool-a ")
	require.NoError(t, err)
	require.Equal(t, "150", pending.String())

	require.NoError(t, vault.ClaimRewards(recipient, nil, []string{"pool-a", "pool-b"}))
	paid, err := ledger.BalanceOf("RWD", recipient)
	require.NoError(t, err)
	require.Equal(t, "300", paid.String())

	pending, err = vault.PendingRewards("pool-a")
	require.NoError(t, err)
	require.Zero(t, pending.Sign())

	// already claimed sources pay nothing
	require.NoError(t, vault.ClaimRewards(recipient, nil, []string{"pool-a"}))
	require.ErrorIs(t, vault.ClaimRewards(recipient, nil, []string{"pool-c"}), ErrUnknownSource)
}
