package portal

import (
	"errors"
	"fmt"
	"testing"

	nativecommon "stakeportal/native/common"
)

func TestKind(t *testing.T) {
	insufficient := errors.New("ledger: short")
	RegisterInsufficientError(insufficient)

	tests := []struct {
		err  error
		want ErrorKind
	}{
		{nil, KindNone},
		{ErrNotActive, KindPrecondition},
		{fmt.Errorf("wrapped: %w", ErrAccountNotFound), KindPrecondition},
		{nativecommon.ErrModulePaused, KindPrecondition},
		{nativecommon.ErrReentrantCall, KindPrecondition},
		{ErrExceedsWithdrawable, KindInsufficient},
		{ErrNoLiquidity, KindInsufficient},
		{fmt.Errorf("%w: alice", insufficient), KindInsufficient},
		{ErrSlippage, KindSlippage},
		{ErrInvalidAmount, KindInvalid},
		{errors.New("disk on fire"), KindInternal},
	}
	for _, tc := range tests {
		if got := Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestParamsValidate(t *testing.T) {
	if err := DefaultParams().Validate(); err != nil {
		t.Fatalf("default params invalid: %v", err)
	}

	dup := DefaultParams()
	dup.ReceiptAsset = "psm"
	if _, err := NewEngine(dup); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams for duplicate symbol, got %v", err)
	}

	lock := DefaultParams()
	lock.TerminalMaxLockDuration = lock.InitialMaxLockDuration - 1
	if err := lock.Validate(); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams for terminal lock, got %v", err)
	}

	convert := DefaultParams()
	convert.AmountToConvert = nil
	if err := convert.Validate(); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams for convert amount, got %v", err)
	}
}
