package server

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"stakeportal/crypto"
	"stakeportal/native/portal"
	"stakeportal/services/portald/journal"
)

const requestLimit = 1 << 20 // 1 MiB

// Engine is the subset of portal.Engine exposed over HTTP.
type Engine interface {
	Params() portal.Params
	State() (*portal.State, error)
	Account(owner crypto.Address) (*portal.Account, error)
	Refresh(owner crypto.Address) (*portal.Account, error)
	PreviewAccount(owner crypto.Address, amount *big.Int) (*portal.Account, error)
	Stake(owner crypto.Address, amount *big.Int) (*portal.Account, error)
	Unstake(owner crypto.Address, amount *big.Int) (*portal.Account, error)
	ForceUnstakeAll(owner crypto.Address) (*portal.Account, error)
	QuoteBuy(amountIn *big.Int) (*portal.Quote, error)
	QuoteSell(amountIn *big.Int) (*portal.Quote, error)
	BuyCreditLine(caller crypto.Address, amountIn, minReceived *big.Int, deadline uint64) (*portal.Quote, error)
	SellCreditLine(caller crypto.Address, amountIn, minReceived *big.Int, deadline uint64) (*portal.Quote, error)
	MintEntitlementToken(owner, recipient crypto.Address, amount *big.Int) (*portal.Account, error)
	BurnEntitlementToken(owner, recipient crypto.Address, amount *big.Int) (*portal.Account, error)
	Contribute(contributor crypto.Address, amount *big.Int) (*big.Int, error)
	ActivatePortal() (*portal.State, error)
	RedeemValue(amount *big.Int) (*big.Int, error)
	Redeem(holder crypto.Address, amount *big.Int) (*big.Int, error)
	Convert(caller crypto.Address, token string, minReceived *big.Int, deadline uint64) (*big.Int, error)
	UpdateMaxLockDuration() (uint64, error)
	ClaimRewards(caller crypto.Address, pools, sources []string) error
	PendingRewards(source string) (*big.Int, error)
}

// Balances reads holder balances and supplies from the bank.
type Balances interface {
	BalanceOf(asset string, holder crypto.Address) (*big.Int, error)
	TotalSupply(asset string) (*big.Int, error)
	Credit(asset string, to crypto.Address, amount *big.Int) error
}

// RewardVenue books rewards owed by the yield venue.
type RewardVenue interface {
	Address() crypto.Address
	RewardAsset() string
	Accrue(source string, amount *big.Int) error
}

// Transactor groups writes made outside the engine into one commit.
type Transactor interface {
	Begin() error
	Commit() error
	Rollback()
}

// Backend bundles the components served by portald.
type Backend struct {
	Engine   Engine
	Balances Balances
	Venue    RewardVenue
	State    Transactor
	Journal  *journal.Journal
}

// Config tunes the HTTP surface.
type Config struct {
	RateLimit RateLimit
	Logger    *slog.Logger
}

// Server exposes the portal over JSON/HTTP. All backend access is serialised
// by mu: the engine rejects overlapping calls and the state overlay is shared.
type Server struct {
	mu      sync.Mutex
	backend Backend
	logger  *slog.Logger
	limiter *RateLimiter
	router  chi.Router
	started time.Time
}

// New validates the backend and mounts the routes.
func New(backend Backend, cfg Config) (*Server, error) {
	if backend.Engine == nil {
		return nil, fmt.Errorf("engine required")
	}
	if backend.Balances == nil {
		return nil, fmt.Errorf("balances required")
	}
	if backend.Journal == nil {
		return nil, fmt.Errorf("journal required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		backend: backend,
		logger:  logger,
		limiter: NewRateLimiter(cfg.RateLimit, logger),
		started: time.Now(),
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the instrumented root handler.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "portald")
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(requestID)
	r.Use(accessLog(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(api chi.Router) {
		api.Use(s.limiter.Middleware)
		api.Use(chimw.AllowContentType("application/json"))

		api.Route("/v1/portal", func(p chi.Router) {
			p.Get("/params", s.handleParams)
			p.Get("/state", s.handleState)

			p.Get("/accounts/{address}", s.handleAccount)
			p.Get("/accounts/{address}/preview", s.handlePreview)
			p.Post("/accounts/{address}/refresh", s.handleRefresh)

			p.Post("/stake", s.handleStake)
			p.Post("/unstake", s.handleUnstake)
			p.Post("/force-unstake", s.handleForceUnstake)

			p.Get("/quote/buy", s.handleQuote(true))
			p.Get("/quote/sell", s.handleQuote(false))
			p.Post("/buy", s.handleTrade(true))
			p.Post("/sell", s.handleTrade(false))

			p.Post("/entitlement/mint", s.handleEntitlement(true))
			p.Post("/entitlement/burn", s.handleEntitlement(false))

			p.Post("/funding/contribute", s.handleContribute)
			p.Post("/funding/activate", s.handleActivate)
			p.Get("/funding/redeem-value", s.handleRedeemValue)
			p.Post("/funding/redeem", s.handleRedeem)

			p.Post("/convert", s.handleConvert)
			p.Post("/ratchet", s.handleRatchet)

			p.Post("/rewards/claim", s.handleClaimRewards)
			p.Get("/rewards/pending/{source}", s.handlePendingRewards)
		})

		api.Get("/v1/balances/{asset}/{address}", s.handleBalance)
		api.Get("/v1/supply/{asset}", s.handleSupply)
		api.Post("/v1/venue/accrue", s.handleAccrue)

		api.Get("/v1/journal", s.handleJournal)
		api.Get("/v1/journal/verify", s.handleJournalVerify)
		api.Get("/v1/journal/stream", s.handleJournalStream)
	})
	return r
}

// locked runs fn with exclusive access to the backend.
func (s *Server) locked(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	seq, head := s.backend.Journal.Head()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"uptime":      time.Since(s.started).Round(time.Second).String(),
		"journalSeq":  seq,
		"journalHead": head,
	})
}

// fail writes the error response for an engine or request failure. Only
// server-side failures are logged.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		writeJSONError(w, http.StatusBadRequest, string(portal.KindInvalid), err)
		return
	}
	status := statusFor(err)
	kind := portal.Kind(err)
	if status < http.StatusInternalServerError && kind == portal.KindInternal {
		kind = portal.KindNone
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("portal operation failed",
			slog.String("operation", op),
			slog.String("kind", string(kind)),
			slog.String("requestid", RequestIDFromContext(r.Context())),
			slog.Any("error", err))
	}
	writeJSONError(w, status, string(kind), err)
}

func normalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}
