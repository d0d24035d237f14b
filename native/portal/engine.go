package portal

import (
	"log/slog"
	"math/big"
	"time"

	"stakeportal/core/events"
	"stakeportal/crypto"
	nativecommon "stakeportal/native/common"
	"stakeportal/observability/metrics"
)

const moduleName = "portal"

type engineState interface {
	Begin() error
	Commit() error
	Rollback()
	PortalAccountGet(owner crypto.Address) (*Account, bool, error)
	PortalAccountPut(account *Account) error
	PortalStateGet() (*State, bool, error)
	PortalStatePut(state *State) error
}

// AssetLedger moves fungible assets between holders.
type AssetLedger interface {
	Transfer(asset string, from, to crypto.Address, amount *big.Int) error
	BalanceOf(asset string, holder crypto.Address) (*big.Int, error)
}

// ClaimIssuer mints and burns receipt and entitlement tokens.
type ClaimIssuer interface {
	Mint(asset string, to crypto.Address, amount *big.Int) error
	Burn(asset string, from crypto.Address, amount *big.Int) error
	TotalSupply(asset string) (*big.Int, error)
}

// YieldVenue holds staked principal on behalf of the portal.
type YieldVenue interface {
	Deposit(depositor crypto.Address, amount *big.Int) error
	Withdraw(recipient crypto.Address, amount *big.Int) error
}

// RewardClaimer pulls pending venue rewards into the portal's custody.
type RewardClaimer interface {
	ClaimRewards(recipient crypto.Address, pools, sources []string) error
}

// PendingRewardQuerier reports the rewards claimable from a source.
type PendingRewardQuerier interface {
	PendingRewards(source string) (*big.Int, error)
}

// Engine applies the portal's state transitions. Every mutating entry point
// runs under the execution guard inside a single state transaction, so a
// failed call leaves no partial effect and emits no events.
type Engine struct {
	state     engineState
	assets    AssetLedger
	claims    ClaimIssuer
	venue     YieldVenue
	rewards   RewardClaimer
	pending   PendingRewardQuerier
	emitter   events.Emitter
	logger    *slog.Logger
	telemetry *metrics.PortalMetrics
	pauses    nativecommon.PauseView
	guard     nativecommon.ExecutionGuard
	nowFn     func() int64
	params    Params
	address   crypto.Address
}

// NewEngine validates params and returns an engine whose custody address is
// derived from the module name.
func NewEngine(params Params) (*Engine, error) {
	params = params.Clone()
	params.normalize()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		params:    params,
		address:   crypto.ModuleAddress(moduleName),
		emitter:   events.NoopEmitter{},
		logger:    slog.Default(),
		telemetry: metrics.Portal(),
		nowFn: func() int64 {
			return time.Now().Unix()
		},
	}, nil
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAssets configures the asset transfer capability.
func (e *Engine) SetAssets(assets AssetLedger) { e.assets = assets }

// SetClaims configures the receipt and entitlement issuer.
func (e *Engine) SetClaims(claims ClaimIssuer) { e.claims = claims }

// SetVenue configures where staked principal is deposited.
func (e *Engine) SetVenue(venue YieldVenue) { e.venue = venue }

// SetRewardSources configures the venue reward capabilities. Either may be nil.
func (e *Engine) SetRewardSources(claimer RewardClaimer, pending PendingRewardQuerier) {
	e.rewards = claimer
	e.pending = pending
}

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetLogger overrides the structured logger.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger.With(slog.String("module", moduleName))
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Address returns the portal custody address.
func (e *Engine) Address() crypto.Address { return e.address }

// Params returns a copy of the immutable configuration.
func (e *Engine) Params() Params { return e.params.Clone() }

func (e *Engine) now() uint64 {
	var ts int64
	if e == nil || e.nowFn == nil {
		ts = time.Now().Unix()
	} else {
		ts = e.nowFn()
	}
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// InitState creates the protocol singleton. creationTime anchors both the
// funding window and the lock-duration ratchet.
func (e *Engine) InitState(creationTime uint64) error {
	return e.execute("init", func() ([]events.Event, error) {
		if _, ok, err := e.state.PortalStateGet(); err != nil {
			return nil, err
		} else if ok {
			return nil, ErrAlreadyInitialised
		}
		st := newState(creationTime, e.params.InitialMaxLockDuration)
		if err := e.state.PortalStatePut(st); err != nil {
			return nil, err
		}
		return nil, nil
	})
}

// Account returns a snapshot of the stored record without accruing. Only
// AvailableToWithdraw is derived.
func (e *Engine) Account(owner crypto.Address) (*Account, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	acc, ok, err := e.state.PortalAccountGet(owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAccountNotFound
	}
	out := acc.Clone()
	out.AvailableToWithdraw = availableToWithdraw(out.StakedBalance, out.CreditLine, out.MaxStakeDebt)
	return out, nil
}

// State returns a snapshot of the protocol singleton.
func (e *Engine) State() (*State, error) {
	st, err := e.loadState()
	if err != nil {
		return nil, err
	}
	return st.Clone(), nil
}

// execute runs fn under the execution guard inside a state transaction.
// Events are only emitted after a successful commit.
func (e *Engine) execute(op string, fn func() ([]events.Event, error)) (err error) {
	if e == nil || e.state == nil {
		return errNilState
	}
	release, err := e.guard.Enter()
	if err != nil {
		e.observe(op, err)
		return err
	}
	defer release()
	defer func() { e.observe(op, err) }()

	if err = nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err = e.state.Begin(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			e.state.Rollback()
			panic(r)
		}
	}()
	emitted, err := fn()
	if err != nil {
		e.state.Rollback()
		return err
	}
	if err = e.state.Commit(); err != nil {
		e.state.Rollback()
		return err
	}
	e.afterCommit(emitted)
	return nil
}

// afterCommit publishes gauges, state-transition logs and events for a
// committed call.
func (e *Engine) afterCommit(emitted []events.Event) {
	if st, ok, err := e.state.PortalStateGet(); err == nil && ok {
		e.observeState(st)
	}
	for _, evt := range emitted {
		switch ev := evt.(type) {
		case events.PortalActivated:
			e.logger.Info("portal activated",
				slog.String("fundingBalance", amountString(ev.FundingBalance)),
				slog.String("constantProduct", amountString(ev.ConstantProduct)))
		case events.PortalLockDurationUpdated:
			if ev.Frozen {
				e.logger.Info("max lock duration frozen", slog.Uint64("maxLockDuration", ev.MaxLockDuration))
			}
		}
		e.emitter.Emit(evt)
	}
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func (e *Engine) observe(op string, err error) {
	if err != nil {
		if e.logger != nil {
			e.logger.Debug("portal call rejected",
				slog.String("operation", op),
				slog.String("kind", string(Kind(err))),
				slog.Any("error", err))
		}
		e.telemetry.ObserveOperation(op, "error", string(Kind(err)))
		return
	}
	e.telemetry.ObserveOperation(op, "success", "")
}

func (e *Engine) observeState(st *State) {
	if st == nil {
		return
	}
	e.telemetry.SetTotalStaked(st.TotalPrincipalStaked)
	e.telemetry.SetFundingPool(st.FundingRewardPool, st.FundingRewardsCollected)
	e.telemetry.SetMaxLockDuration(st.MaxLockDuration)
	e.telemetry.SetReserves(st.Reserve0, st.Reserve1)
}

func (e *Engine) loadState() (*State, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	st, ok, err := e.state.PortalStateGet()
	if err != nil {
		return nil, err
	}
	if !ok || st == nil {
		return nil, ErrNotInitialised
	}
	return st, nil
}

func (e *Engine) requireActive() (*State, error) {
	st, err := e.loadState()
	if err != nil {
		return nil, err
	}
	if st.Phase != PhaseActive {
		return nil, ErrNotActive
	}
	return st, nil
}

// loadAccount returns the stored account or ErrAccountNotFound.
func (e *Engine) loadAccount(owner crypto.Address) (*Account, error) {
	if owner.IsZero() {
		return nil, ErrInvalidOwner
	}
	acc, ok, err := e.state.PortalAccountGet(owner)
	if err != nil {
		return nil, err
	}
	if !ok || acc == nil || !acc.Exists {
		return nil, ErrAccountNotFound
	}
	return acc, nil
}

func (e *Engine) ensureAccount(owner crypto.Address) (*Account, error) {
	if owner.IsZero() {
		return nil, ErrInvalidOwner
	}
	acc, ok, err := e.state.PortalAccountGet(owner)
	if err != nil {
		return nil, err
	}
	if !ok || acc == nil {
		acc = NewAccount(owner)
	}
	return acc, nil
}

func (e *Engine) requireAssets() error {
	if e.assets == nil {
		return errNilAssets
	}
	return nil
}

func (e *Engine) requireClaims() error {
	if e.claims == nil {
		return errNilClaims
	}
	return nil
}

func checkDeadline(deadline, now uint64) error {
	if deadline != 0 && now > deadline {
		return ErrDeadlineExpired
	}
	return nil
}
