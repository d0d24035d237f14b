package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"stakeportal/crypto"
	"stakeportal/native/bank"
	nativecommon "stakeportal/native/common"
	"stakeportal/native/portal"
	"stakeportal/native/venue"
)

var errRateLimited = errors.New("rate limit exceeded")

// requestError marks a malformed request.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

func statusFor(err error) int {
	if errors.Is(err, nativecommon.ErrModulePaused) {
		return http.StatusServiceUnavailable
	}
	switch {
	case errors.Is(err, portal.ErrAccountNotFound), errors.Is(err, venue.ErrUnknownSource):
		return http.StatusNotFound
	case errors.Is(err, venue.ErrInvalidAmount),
		errors.Is(err, bank.ErrInvalidAmount),
		errors.Is(err, bank.ErrInvalidAsset),
		errors.Is(err, bank.ErrInvalidHolder):
		return http.StatusBadRequest
	}
	switch portal.Kind(err) {
	case portal.KindInvalid:
		return http.StatusBadRequest
	case portal.KindPrecondition, portal.KindSlippage:
		return http.StatusConflict
	case portal.KindInsufficient:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSONError(w http.ResponseWriter, status int, kind string, err error) {
	message := http.StatusText(status)
	if err != nil && strings.TrimSpace(err.Error()) != "" {
		message = strings.TrimSpace(err.Error())
	}
	writeJSON(w, status, errorResponse{
		Error:     message,
		Kind:      kind,
		RequestID: w.Header().Get(requestIDHeader),
	})
}

func decodeBody(r *http.Request, out any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, requestLimit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return badRequest("invalid payload: %v", err)
	}
	return nil
}

func parseAddress(field, raw string) (crypto.Address, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(raw))
	if err != nil {
		return crypto.Address{}, badRequest("%s: %v", field, err)
	}
	return addr, nil
}

// parseAmount accepts a base-10 integer. Range checks are left to the engine.
func parseAmount(field, raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, badRequest("%s required", field)
	}
	v, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, badRequest("%s: %q is not a base-10 integer", field, raw)
	}
	return v, nil
}

// parseOptionalAmount treats an empty value as zero.
func parseOptionalAmount(field, raw string) (*big.Int, error) {
	if strings.TrimSpace(raw) == "" {
		return big.NewInt(0), nil
	}
	return parseAmount(field, raw)
}

func parseInt(field, raw string, fallback int64) (int64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, badRequest("%s: %v", field, err)
	}
	return v, nil
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

type accountView struct {
	Owner               string `json:"owner"`
	Exists              bool   `json:"exists"`
	LastUpdateTime      uint64 `json:"lastUpdateTime"`
	StakedBalance       string `json:"stakedBalance"`
	MaxStakeDebt        string `json:"maxStakeDebt"`
	CreditLine          string `json:"creditLine"`
	AvailableToWithdraw string `json:"availableToWithdraw"`
}

func newAccountView(acc *portal.Account) accountView {
	return accountView{
		Owner:               acc.Owner.String(),
		Exists:              acc.Exists,
		LastUpdateTime:      acc.LastUpdateTime,
		StakedBalance:       amountString(acc.StakedBalance),
		MaxStakeDebt:        amountString(acc.MaxStakeDebt),
		CreditLine:          amountString(acc.CreditLine),
		AvailableToWithdraw: amountString(acc.AvailableToWithdraw),
	}
}

type stateView struct {
	CreationTime            uint64 `json:"creationTime"`
	Phase                   string `json:"phase"`
	Ratchet                 string `json:"ratchet"`
	MaxLockDuration         uint64 `json:"maxLockDuration"`
	TotalPrincipalStaked    string `json:"totalPrincipalStaked"`
	FundingBalance          string `json:"fundingBalance"`
	FundingRewardPool       string `json:"fundingRewardPool"`
	FundingRewardsCollected string `json:"fundingRewardsCollected"`
	FundingMaxRewards       string `json:"fundingMaxRewards"`
	ConstantProduct         string `json:"constantProduct"`
	Reserve0                string `json:"reserve0"`
	Reserve1                string `json:"reserve1"`
}

func newStateView(st *portal.State) stateView {
	return stateView{
		CreationTime:            st.CreationTime,
		Phase:                   st.Phase.String(),
		Ratchet:                 st.Ratchet.String(),
		MaxLockDuration:         st.MaxLockDuration,
		TotalPrincipalStaked:    amountString(st.TotalPrincipalStaked),
		FundingBalance:          amountString(st.FundingBalance),
		FundingRewardPool:       amountString(st.FundingRewardPool),
		FundingRewardsCollected: amountString(st.FundingRewardsCollected),
		FundingMaxRewards:       amountString(st.FundingMaxRewards),
		ConstantProduct:         amountString(st.ConstantProduct),
		Reserve0:                amountString(st.Reserve0),
		Reserve1:                amountString(st.Reserve1),
	}
}

type quoteView struct {
	AmountIn  string `json:"amountIn"`
	AmountOut string `json:"amountOut"`
	Reserve0  string `json:"reserve0"`
	Reserve1  string `json:"reserve1"`
}

func newQuoteView(q *portal.Quote) quoteView {
	return quoteView{
		AmountIn:  amountString(q.AmountIn),
		AmountOut: amountString(q.AmountOut),
		Reserve0:  amountString(q.Reserve0),
		Reserve1:  amountString(q.Reserve1),
	}
}

type paramsView struct {
	FundingPhaseDuration    uint64 `json:"fundingPhaseDuration"`
	FundingExchangeRatio    uint64 `json:"fundingExchangeRatio"`
	FundingRewardRate       uint64 `json:"fundingRewardRate"`
	PrincipalAsset          string `json:"principalAsset"`
	ReceiptAsset            string `json:"receiptAsset"`
	EntitlementAsset        string `json:"entitlementAsset"`
	ReferenceAsset          string `json:"referenceAsset"`
	InitialMaxLockDuration  uint64 `json:"initialMaxLockDuration"`
	TerminalMaxLockDuration uint64 `json:"terminalMaxLockDuration"`
	AmountToConvert         string `json:"amountToConvert"`
}

func newParamsView(p portal.Params) paramsView {
	return paramsView{
		FundingPhaseDuration:    p.FundingPhaseDuration,
		FundingExchangeRatio:    p.FundingExchangeRatio,
		FundingRewardRate:       p.FundingRewardRate,
		PrincipalAsset:          p.PrincipalAsset,
		ReceiptAsset:            p.ReceiptAsset,
		EntitlementAsset:        p.EntitlementAsset,
		ReferenceAsset:          p.ReferenceAsset,
		InitialMaxLockDuration:  p.InitialMaxLockDuration,
		TerminalMaxLockDuration: p.TerminalMaxLockDuration,
		AmountToConvert:         amountString(p.AmountToConvert),
	}
}
