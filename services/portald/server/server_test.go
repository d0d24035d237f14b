package server

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"stakeportal/core/events"
	"stakeportal/core/state"
	"stakeportal/crypto"
	"stakeportal/native/bank"
	"stakeportal/native/portal"
	"stakeportal/native/venue"
	"stakeportal/services/portald/journal"
	"stakeportal/storage"
)

const creationTime = 1_000

type testEnv struct {
	t       *testing.T
	server  *Server
	handler http.Handler
	ledger  *bank.Ledger
	journal *journal.Journal
	now     int64
}

func newTestEnv(t *testing.T, limit RateLimit) *testEnv {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	mgr := state.NewManager(db)
	ledger := bank.NewLedger(mgr)
	params := portal.DefaultParams()
	vault := venue.NewVault(mgr, ledger, params.PrincipalAsset, "RWD")

	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	engine, err := portal.NewEngine(params)
	require.NoError(t, err)
	env := &testEnv{t: t, ledger: ledger, journal: j, now: creationTime}
	engine.SetState(mgr)
	engine.SetAssets(ledger)
	engine.SetClaims(ledger)
	engine.SetVenue(vault)
	engine.SetRewardSources(vault, vault)
	engine.SetEmitter(j)
	engine.SetNowFunc(func() int64 { return env.now })
	require.NoError(t, engine.InitState(creationTime))

	srv, err := New(Backend{Engine: engine, Balances: ledger, Venue: vault, State: mgr, Journal: j}, Config{RateLimit: limit})
	require.NoError(t, err)
	env.server = srv
	env.handler = srv.Handler()
	return env
}

func testAddr(b byte) crypto.Address {
	return crypto.MustNewAddress(crypto.UserPrefix, bytes.Repeat([]byte{b}, crypto.AddressLength))
}

var (
	alice = testAddr(0xA1)
	bob   = testAddr(0xB2)
)

const oneE18 = "1000000000000000000"

func (e *testEnv) credit(asset string, to crypto.Address, amount string) {
	e.t.Helper()
	v, ok := new(big.Int).SetString(amount, 10)
	require.True(e.t, ok)
	require.NoError(e.t, e.ledger.Credit(asset, to, v))
}

func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

var generous = RateLimit{RequestsPerMinute: 60_000, Burst: 1_000}

// activate funds the portal with two contributions and closes the window.
func (e *testEnv) activate() {
	e.t.Helper()
	for _, contributor := range []crypto.Address{alice, bob} {
		e.credit("PSM", contributor, oneE18)
		rec := e.do(http.MethodPost, "/v1/portal/funding/contribute", map[string]string{
			"contributor": contributor.String(),
			"amount":      oneE18,
		})
		require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())
		require.Equal(e.t, "10000000000000000000", decode[map[string]string](e.t, rec)["receipts"])
	}
	e.now = creationTime + 432_000
	rec := e.do(http.MethodPost, "/v1/portal/funding/activate", nil)
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(e.t, "active", decode[stateView](e.t, rec).Phase)
}

func TestFundingActivationAndStake(t *testing.T) {
	env := newTestEnv(t, generous)

	rec := env.do(http.MethodPost, "/v1/portal/funding/activate", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, string(portal.KindPrecondition), decode[errorResponse](t, rec).Kind)

	env.credit("HLP", alice, oneE18)
	rec = env.do(http.MethodPost, "/v1/portal/stake", map[string]string{"owner": alice.String(), "amount": oneE18})
	require.Equal(t, http.StatusConflict, rec.Code, "staking is closed while funding")

	env.activate()

	rec = env.do(http.MethodPost, "/v1/portal/stake", map[string]string{"owner": alice.String(), "amount": oneE18})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	acc := decode[accountView](t, rec)
	require.True(t, acc.Exists)
	require.Equal(t, oneE18, acc.StakedBalance)
	require.Equal(t, acc.MaxStakeDebt, acc.CreditLine)
	require.Equal(t, oneE18, acc.AvailableToWithdraw)

	rec = env.do(http.MethodGet, "/v1/portal/accounts/"+alice.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, oneE18, decode[accountView](t, rec).StakedBalance)

	rec = env.do(http.MethodGet, "/v1/balances/hlp/"+alice.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "0", decode[map[string]string](t, rec)["balance"])

	rec = env.do(http.MethodGet, "/v1/portal/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, oneE18, decode[stateView](t, rec).TotalPrincipalStaked)
}

func TestErrorsMapToStatusCodes(t *testing.T) {
	env := newTestEnv(t, generous)

	rec := env.do(http.MethodGet, "/v1/portal/accounts/"+bob.String(), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodGet, "/v1/portal/accounts/not-an-address", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, string(portal.KindInvalid), decode[errorResponse](t, rec).Kind)

	rec = env.do(http.MethodPost, "/v1/portal/stake", map[string]string{"owner": alice.String(), "amount": "lots"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/v1/portal/stake", map[string]string{"owner": alice.String(), "amount": "1", "extra": "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")

	req := httptest.NewRequest(http.MethodPost, "/v1/portal/stake", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "text/plain")
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusUnsupportedMediaType, res.Code)

	env.activate()
	env.credit("HLP", alice, "100")
	rec = env.do(http.MethodPost, "/v1/portal/stake", map[string]string{"owner": alice.String(), "amount": "100"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = env.do(http.MethodPost, "/v1/portal/unstake", map[string]string{"owner": alice.String(), "amount": "101"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, string(portal.KindInsufficient), decode[errorResponse](t, rec).Kind)
}

func TestQuoteAndTrade(t *testing.T) {
	env := newTestEnv(t, generous)
	env.activate()

	rec := env.do(http.MethodGet, "/v1/portal/quote/buy?amountIn=1000000", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	quote := decode[quoteView](t, rec)
	require.NotEqual(t, "0", quote.AmountOut)

	rec = env.do(http.MethodGet, "/v1/portal/quote/buy", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	env.credit("HLP", alice, "100")
	rec = env.do(http.MethodPost, "/v1/portal/stake", map[string]string{"owner": alice.String(), "amount": "100"})
	require.Equal(t, http.StatusOK, rec.Code)

	env.credit("PSM", alice, "1000000")
	rec = env.do(http.MethodPost, "/v1/portal/buy", map[string]any{
		"caller":      alice.String(),
		"amountIn":    "1000000",
		"minReceived": quote.AmountOut,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, quote.AmountOut, decode[quoteView](t, rec).AmountOut)

	rec = env.do(http.MethodPost, "/v1/portal/buy", map[string]any{
		"caller":   alice.String(),
		"amountIn": "1",
		"deadline": 1,
	})
	require.Equal(t, http.StatusConflict, rec.Code, "expired deadline")
}

func TestRewardsAccrueAndClaim(t *testing.T) {
	env := newTestEnv(t, generous)

	rec := env.do(http.MethodGet, "/v1/portal/rewards/pending/validators", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodPost, "/v1/venue/accrue", map[string]string{"source": "validators", "amount": "500"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodGet, "/v1/portal/rewards/pending/validators", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "500", decode[map[string]string](t, rec)["pending"])

	env.activate()
	rec = env.do(http.MethodPost, "/v1/portal/rewards/claim", map[string]any{
		"caller":  alice.String(),
		"pools":   []string{"main"},
		"sources": []string{"validators"},
	})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = env.do(http.MethodGet, "/v1/portal/rewards/pending/validators", nil)
	require.Equal(t, "0", decode[map[string]string](t, rec)["pending"])
}

func TestJournalRecordsMutations(t *testing.T) {
	env := newTestEnv(t, generous)
	env.activate()

	rec := env.do(http.MethodGet, "/v1/journal", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[struct {
		Entries []journal.Entry `json:"entries"`
	}](t, rec).Entries
	require.Len(t, entries, 3)
	require.Equal(t, "portal.funding.contributed", entries[0].Type)
	require.Equal(t, "portal.activated", entries[2].Type)
	require.Equal(t, entries[1].Digest, entries[2].PrevDigest)

	rec = env.do(http.MethodGet, "/v1/journal?after=2", nil)
	require.Len(t, decode[struct {
		Entries []journal.Entry `json:"entries"`
	}](t, rec).Entries, 1)

	rec = env.do(http.MethodGet, "/v1/journal/verify", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// failed mutations leave no entry
	rec = env.do(http.MethodPost, "/v1/portal/funding/activate", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	seq, _ := env.journal.Head()
	require.Equal(t, int64(3), seq)
}

func TestRateLimitPerClient(t *testing.T) {
	env := newTestEnv(t, RateLimit{RequestsPerMinute: 1, Burst: 1})

	rec := env.do(http.MethodGet, "/v1/portal/params", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get(requestIDHeader))

	rec = env.do(http.MethodGet, "/v1/portal/params", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/portal/params", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code, "a different client has its own bucket")

	// health and metrics bypass the limiter
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/healthz", nil).Code)
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/metrics", nil).Code)
}

func TestRequestIDPropagation(t *testing.T) {
	env := newTestEnv(t, generous)
	const id = "0b5f4f6e-3f0d-4a53-9d0c-6a0c7f3b2d11"
	req := httptest.NewRequest(http.MethodGet, "/v1/portal/params", nil)
	req.Header.Set(requestIDHeader, id)
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)
	require.Equal(t, id, res.Header().Get(requestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/v1/portal/params", nil)
	req.Header.Set(requestIDHeader, "not a uuid")
	res = httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)
	require.NotEqual(t, "not a uuid", res.Header().Get(requestIDHeader))
}

func TestJournalStreamReplaysAndFollows(t *testing.T) {
	env := newTestEnv(t, generous)
	env.activate()

	ts := httptest.NewServer(env.handler)
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/v1/journal/stream?after=1", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	read := func() journal.Entry {
		t.Helper()
		typ, data, err := conn.Read(ctx)
		require.NoError(t, err)
		require.Equal(t, websocket.MessageText, typ)
		var entry journal.Entry
		require.NoError(t, json.Unmarshal(data, &entry))
		return entry
	}
	require.Equal(t, int64(2), read().Seq)
	require.Equal(t, "portal.activated", read().Type)

	_, err = env.journal.Append(ctx, events.PortalLockDurationUpdated{MaxLockDuration: 99})
	require.NoError(t, err)
	live := read()
	require.Equal(t, int64(4), live.Seq)
	require.Equal(t, events.TypePortalLockDurationUpdated, live.Type)
}
