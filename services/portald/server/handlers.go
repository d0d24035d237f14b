package server

import (
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"

	"stakeportal/crypto"
	"stakeportal/native/portal"
)

type ownerAmountRequest struct {
	Owner  string `json:"owner"`
	Amount string `json:"amount"`
}

func (req ownerAmountRequest) parse() (crypto.Address, *big.Int, error) {
	owner, err := parseAddress("owner", req.Owner)
	if err != nil {
		return crypto.Address{}, nil, err
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return crypto.Address{}, nil, err
	}
	return owner, amount, nil
}

type tradeRequest struct {
	Caller      string `json:"caller"`
	AmountIn    string `json:"amountIn"`
	MinReceived string `json:"minReceived"`
	Deadline    uint64 `json:"deadline"`
}

type entitlementRequest struct {
	Owner     string `json:"owner"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

type convertRequest struct {
	Caller      string `json:"caller"`
	Token       string `json:"token"`
	MinReceived string `json:"minReceived"`
	Deadline    uint64 `json:"deadline"`
}

type claimRequest struct {
	Caller  string   `json:"caller"`
	Pools   []string `json:"pools"`
	Sources []string `json:"sources"`
}

type accrueRequest struct {
	Source string `json:"source"`
	Amount string `json:"amount"`
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newParamsView(s.backend.Engine.Params()))
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	var st *portal.State
	err := s.locked(func() (err error) {
		st, err = s.backend.Engine.State()
		return err
	})
	if err != nil {
		s.fail(w, r, "state", err)
		return
	}
	writeJSON(w, http.StatusOK, newStateView(st))
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	owner, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		s.fail(w, r, "account", err)
		return
	}
	var acc *portal.Account
	err = s.locked(func() (err error) {
		acc, err = s.backend.Engine.Account(owner)
		return err
	})
	if err != nil {
		s.fail(w, r, "account", err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountView(acc))
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	owner, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		s.fail(w, r, "preview", err)
		return
	}
	amount, err := parseOptionalAmount("amount", r.URL.Query().Get("amount"))
	if err != nil {
		s.fail(w, r, "preview", err)
		return
	}
	var acc *portal.Account
	err = s.locked(func() (err error) {
		acc, err = s.backend.Engine.PreviewAccount(owner, amount)
		return err
	})
	if err != nil {
		s.fail(w, r, "preview", err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountView(acc))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	owner, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		s.fail(w, r, "refresh", err)
		return
	}
	s.accountMutation(w, r, "refresh", func() (*portal.Account, error) {
		return s.backend.Engine.Refresh(owner)
	})
}

func (s *Server) accountMutation(w http.ResponseWriter, r *http.Request, op string, fn func() (*portal.Account, error)) {
	var acc *portal.Account
	err := s.locked(func() (err error) {
		acc, err = fn()
		return err
	})
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountView(acc))
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	var req ownerAmountRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, "stake", err)
		return
	}
	owner, amount, err := req.parse()
	if err != nil {
		s.fail(w, r, "stake", err)
		return
	}
	s.accountMutation(w, r, "stake", func() (*portal.Account, error) {
		return s.backend.Engine.Stake(owner, amount)
	})
}

func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	var req ownerAmountRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, "unstake", err)
		return
	}
	owner, amount, err := req.parse()
	if err != nil {
		s.fail(w, r, "unstake", err)
		return
	}
	s.accountMutation(w, r, "unstake", func() (*portal.Account, error) {
		return s.backend.Engine.Unstake(owner, amount)
	})
}

func (s *Server) handleForceUnstake(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Owner string `json:"owner"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, "forceUnstakeAll", err)
		return
	}
	owner, err := parseAddress("owner", req.Owner)
	if err != nil {
		s.fail(w, r, "forceUnstakeAll", err)
		return
	}
	s.accountMutation(w, r, "forceUnstakeAll", func() (*portal.Account, error) {
		return s.backend.Engine.ForceUnstakeAll(owner)
	})
}

func (s *Server) handleQuote(buy bool) http.HandlerFunc {
	op := "quoteSell"
	if buy {
		op = "quoteBuy"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		amountIn, err := parseAmount("amountIn", r.URL.Query().Get("amountIn"))
		if err != nil {
			s.fail(w, r, op, err)
			return
		}
		var quote *portal.Quote
		err = s.locked(func() (err error) {
			if buy {
				quote, err = s.backend.Engine.QuoteBuy(amountIn)
			} else {
				quote, err = s.backend.Engine.QuoteSell(amountIn)
			}
			return err
		})
		if err != nil {
			s.fail(w, r, op, err)
			return
		}
		writeJSON(w, http.StatusOK, newQuoteView(quote))
	}
}

func (s *Server) handleTrade(buy bool) http.HandlerFunc {
	op := "sellCreditLine"
	if buy {
		op = "buyCreditLine"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req tradeRequest
		if err := decodeBody(r, &req); err != nil {
			s.fail(w, r, op, err)
			return
		}
		caller, err := parseAddress("caller", req.Caller)
		if err != nil {
			s.fail(w, r, op, err)
			return
		}
		amountIn, err := parseAmount("amountIn", req.AmountIn)
		if err != nil {
			s.fail(w, r, op, err)
			return
		}
		minReceived, err := parseOptionalAmount("minReceived", req.MinReceived)
		if err != nil {
			s.fail(w, r, op, err)
			return
		}
		var quote *portal.Quote
		err = s.locked(func() (err error) {
			if buy {
				quote, err = s.backend.Engine.BuyCreditLine(caller, amountIn, minReceived, req.Deadline)
			} else {
				quote, err = s.backend.Engine.SellCreditLine(caller, amountIn, minReceived, req.Deadline)
			}
			return err
		})
		if err != nil {
			s.fail(w, r, op, err)
			return
		}
		writeJSON(w, http.StatusOK, newQuoteView(quote))
	}
}

func (s *Server) handleEntitlement(mint bool) http.HandlerFunc {
	op := "burnEntitlementToken"
	if mint {
		op = "mintEntitlementToken"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req entitlementRequest
		if err := decodeBody(r, &req); err != nil {
			s.fail(w, r, op, err)
			return
		}
		owner, amount, err := ownerAmountRequest{Owner: req.Owner, Amount: req.Amount}.parse()
		if err != nil {
			s.fail(w, r, op, err)
			return
		}
		recipient, err := parseAddress("recipient", req.Recipient)
		if err != nil {
			s.fail(w, r, op, err)
			return
		}
		s.accountMutation(w, r, op, func() (*portal.Account, error) {
			if mint {
				return s.backend.Engine.MintEntitlementToken(owner, recipient, amount)
			}
			return s.backend.Engine.BurnEntitlementToken(owner, recipient, amount)
		})
	}
}

func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Contributor string `json:"contributor"`
		Amount      string `json:"amount"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, "contribute", err)
		return
	}
	contributor, amount, err := ownerAmountRequest{Owner: req.Contributor, Amount: req.Amount}.parse()
	if err != nil {
		s.fail(w, r, "contribute", err)
		return
	}
	var receipts *big.Int
	err = s.locked(func() (err error) {
		receipts, err = s.backend.Engine.Contribute(contributor, amount)
		return err
	})
	if err != nil {
		s.fail(w, r, "contribute", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"receipts": amountString(receipts)})
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	var st *portal.State
	err := s.locked(func() (err error) {
		st, err = s.backend.Engine.ActivatePortal()
		return err
	})
	if err != nil {
		s.fail(w, r, "activatePortal", err)
		return
	}
	writeJSON(w, http.StatusOK, newStateView(st))
}

func (s *Server) handleRedeemValue(w http.ResponseWriter, r *http.Request) {
	amount, err := parseAmount("amount", r.URL.Query().Get("amount"))
	if err != nil {
		s.fail(w, r, "redeemValue", err)
		return
	}
	var value *big.Int
	err = s.locked(func() (err error) {
		value, err = s.backend.Engine.RedeemValue(amount)
		return err
	})
	if err != nil {
		s.fail(w, r, "redeemValue", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"value": amountString(value)})
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Holder string `json:"holder"`
		Amount string `json:"amount"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, "redeem", err)
		return
	}
	holder, amount, err := ownerAmountRequest{Owner: req.Holder, Amount: req.Amount}.parse()
	if err != nil {
		s.fail(w, r, "redeem", err)
		return
	}
	var payout *big.Int
	err = s.locked(func() (err error) {
		payout, err = s.backend.Engine.Redeem(holder, amount)
		return err
	})
	if err != nil {
		s.fail(w, r, "redeem", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"payout": amountString(payout)})
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, "convert", err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		s.fail(w, r, "convert", err)
		return
	}
	minReceived, err := parseOptionalAmount("minReceived", req.MinReceived)
	if err != nil {
		s.fail(w, r, "convert", err)
		return
	}
	var received *big.Int
	err = s.locked(func() (err error) {
		received, err = s.backend.Engine.Convert(caller, req.Token, minReceived, req.Deadline)
		return err
	})
	if err != nil {
		s.fail(w, r, "convert", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"received": amountString(received)})
}

func (s *Server) handleRatchet(w http.ResponseWriter, r *http.Request) {
	var duration uint64
	err := s.locked(func() (err error) {
		duration, err = s.backend.Engine.UpdateMaxLockDuration()
		return err
	})
	if err != nil {
		s.fail(w, r, "updateMaxLockDuration", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"maxLockDuration": duration})
}

func (s *Server) handleClaimRewards(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, "claimRewards", err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		s.fail(w, r, "claimRewards", err)
		return
	}
	err = s.locked(func() error {
		return s.backend.Engine.ClaimRewards(caller, req.Pools, req.Sources)
	})
	if err != nil {
		s.fail(w, r, "claimRewards", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePendingRewards(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")
	var pending *big.Int
	err := s.locked(func() (err error) {
		pending, err = s.backend.Engine.PendingRewards(source)
		return err
	})
	if err != nil {
		s.fail(w, r, "pendingRewards", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"source": source, "pending": amountString(pending)})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	holder, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		s.fail(w, r, "balance", err)
		return
	}
	asset := normalizeAsset(chi.URLParam(r, "asset"))
	var balance *big.Int
	err = s.locked(func() (err error) {
		balance, err = s.backend.Balances.BalanceOf(asset, holder)
		return err
	})
	if err != nil {
		s.fail(w, r, "balance", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"asset":   asset,
		"address": holder.String(),
		"balance": amountString(balance),
	})
}

func (s *Server) handleSupply(w http.ResponseWriter, r *http.Request) {
	asset := normalizeAsset(chi.URLParam(r, "asset"))
	var supply *big.Int
	err := s.locked(func() (err error) {
		supply, err = s.backend.Balances.TotalSupply(asset)
		return err
	})
	if err != nil {
		s.fail(w, r, "supply", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"asset": asset, "supply": amountString(supply)})
}

// handleAccrue funds the venue with freshly issued reward tokens and books them
// as owed by source.
func (s *Server) handleAccrue(w http.ResponseWriter, r *http.Request) {
	if s.backend.Venue == nil || s.backend.State == nil {
		writeJSONError(w, http.StatusNotImplemented, "", nil)
		return
	}
	var req accrueRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, "accrue", err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.fail(w, r, "accrue", err)
		return
	}
	venue := s.backend.Venue
	err = s.locked(func() error {
		if err := s.backend.State.Begin(); err != nil {
			return err
		}
		if err := s.backend.Balances.Credit(venue.RewardAsset(), venue.Address(), amount); err != nil {
			s.backend.State.Rollback()
			return err
		}
		if err := venue.Accrue(req.Source, amount); err != nil {
			s.backend.State.Rollback()
			return err
		}
		return s.backend.State.Commit()
	})
	if err != nil {
		s.fail(w, r, "accrue", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"source": req.Source, "amount": amountString(amount)})
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	after, err := parseInt("after", r.URL.Query().Get("after"), 0)
	if err != nil {
		s.fail(w, r, "journal", err)
		return
	}
	limit, err := parseInt("limit", r.URL.Query().Get("limit"), 100)
	if err != nil {
		s.fail(w, r, "journal", err)
		return
	}
	entries, err := s.backend.Journal.Entries(r.Context(), after, int(limit))
	if err != nil {
		s.fail(w, r, "journal", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleJournalVerify(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.Journal.Verify(r.Context()); err != nil {
		writeJSONError(w, http.StatusConflict, "", err)
		return
	}
	seq, head := s.backend.Journal.Head()
	writeJSON(w, http.StatusOK, map[string]any{"verified": true, "seq": seq, "head": head})
}
