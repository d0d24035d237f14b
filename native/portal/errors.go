package portal

import (
	"errors"

	nativecommon "stakeportal/native/common"
)

var (
	errNilState  = errors.New("portal: state not configured")
	errNilAssets = errors.New("portal: asset ledger not configured")
	errNilClaims = errors.New("portal: claim issuer not configured")
	errNilVenue  = errors.New("portal: yield venue not configured")

	// ErrInvalidParams rejects construction with an unusable configuration.
	ErrInvalidParams = errors.New("portal: invalid params")
	// ErrNotInitialised is returned before InitState has run.
	ErrNotInitialised = errors.New("portal: state not initialised")
	// ErrAlreadyInitialised is returned when InitState runs twice.
	ErrAlreadyInitialised = errors.New("portal: state already initialised")

	ErrInvalidAmount = errors.New("portal: amount must be positive")
	ErrInvalidOwner  = errors.New("portal: owner address required")

	// Bootstrap gating.
	ErrNotActive         = errors.New("portal: portal not active")
	ErrAlreadyActive     = errors.New("portal: portal already active")
	ErrFundingWindowOpen = errors.New("portal: funding phase has not elapsed")

	// Account gating.
	ErrAccountNotFound = errors.New("portal: account does not exist")
	ErrNothingStaked   = errors.New("portal: nothing staked")

	// Balances.
	ErrExceedsWithdrawable    = errors.New("portal: amount exceeds available to withdraw")
	ErrInsufficientCreditLine = errors.New("portal: insufficient credit line")
	ErrNoLiquidity            = errors.New("portal: exchange has no liquidity")

	// Quotes.
	ErrSlippage        = errors.New("portal: output below minimum")
	ErrDeadlineExpired = errors.New("portal: deadline expired")

	// Converter.
	ErrInvalidConvertToken = errors.New("portal: token cannot be converted")

	// Ratchet.
	ErrLockDurationFrozen       = errors.New("portal: max lock duration is frozen")
	ErrLockDurationNotIncreased = errors.New("portal: max lock duration would not increase")
)

// ErrorKind classifies failures for callers and telemetry.
type ErrorKind string

const (
	KindNone         ErrorKind = ""
	KindPrecondition ErrorKind = "precondition"
	KindInsufficient ErrorKind = "insufficient"
	KindSlippage     ErrorKind = "slippage"
	KindInvalid      ErrorKind = "invalid"
	KindInternal     ErrorKind = "internal"
)

// Insufficient-balance sentinels from collaborators register here so Kind can
// classify them without importing their packages.
var insufficientSentinels []error

// RegisterInsufficientError marks err as an insufficient-balance failure for
// Kind.
func RegisterInsufficientError(err error) {
	if err != nil {
		insufficientSentinels = append(insufficientSentinels, err)
	}
}

// Kind maps an error returned by the engine onto the failure taxonomy.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotActive),
		errors.Is(err, ErrAlreadyActive),
		errors.Is(err, ErrFundingWindowOpen),
		errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrNotInitialised),
		errors.Is(err, ErrAlreadyInitialised),
		errors.Is(err, ErrLockDurationFrozen),
		errors.Is(err, ErrLockDurationNotIncreased),
		errors.Is(err, ErrDeadlineExpired),
		errors.Is(err, nativecommon.ErrModulePaused),
		errors.Is(err, nativecommon.ErrReentrantCall):
		return KindPrecondition
	case errors.Is(err, ErrExceedsWithdrawable),
		errors.Is(err, ErrInsufficientCreditLine),
		errors.Is(err, ErrNothingStaked),
		errors.Is(err, ErrNoLiquidity):
		return KindInsufficient
	case errors.Is(err, ErrSlippage):
		return KindSlippage
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidOwner),
		errors.Is(err, ErrInvalidConvertToken),
		errors.Is(err, ErrInvalidParams):
		return KindInvalid
	}
	for _, sentinel := range insufficientSentinels {
		if errors.Is(err, sentinel) {
			return KindInsufficient
		}
	}
	return KindInternal
}
