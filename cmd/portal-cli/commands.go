package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

type command struct {
	args    string
	summary string
	build   func(args []string) (apiRequest, error)
}

var commands = map[string]command{
	"params": {summary: "show protocol parameters", build: fixed(http.MethodGet, "/v1/portal/params")},
	"state":  {summary: "show the protocol state", build: fixed(http.MethodGet, "/v1/portal/state")},
	"account": {args: "<address>", summary: "show a stored account", build: func(args []string) (apiRequest, error) {
		if err := want(args, 1); err != nil {
			return apiRequest{}, err
		}
		return apiRequest{method: http.MethodGet, path: "/v1/portal/accounts/" + url.PathEscape(args[0])}, nil
	}},
	"preview": {args: "<address> [amount]", summary: "preview an account after accrual and an optional stake", build: func(args []string) (apiRequest, error) {
		if len(args) < 1 || len(args) > 2 {
			return apiRequest{}, fmt.Errorf("expected 1 or 2 arguments")
		}
		req := apiRequest{method: http.MethodGet, path: "/v1/portal/accounts/" + url.PathEscape(args[0]) + "/preview"}
		if len(args) == 2 {
			req.query = url.Values{"amount": {args[1]}}
		}
		return req, nil
	}},
	"refresh": {args: "<address>", summary: "accrue and persist an account", build: func(args []string) (apiRequest, error) {
		if err := want(args, 1); err != nil {
			return apiRequest{}, err
		}
		return apiRequest{method: http.MethodPost, path: "/v1/portal/accounts/" + url.PathEscape(args[0]) + "/refresh"}, nil
	}},
	"stake":         {args: "<owner> <amount>", summary: "stake principal", build: ownerAmount("/v1/portal/stake", "owner")},
	"unstake":       {args: "<owner> <amount>", summary: "withdraw principal", build: ownerAmount("/v1/portal/unstake", "owner")},
	"contribute":    {args: "<contributor> <amount>", summary: "contribute to the funding phase", build: ownerAmount("/v1/portal/funding/contribute", "contributor")},
	"redeem":        {args: "<holder> <amount>", summary: "redeem receipt claims", build: ownerAmount("/v1/portal/funding/redeem", "holder")},
	"activate":      {summary: "close the funding phase", build: fixed(http.MethodPost, "/v1/portal/funding/activate")},
	"ratchet":       {summary: "raise the max lock duration", build: fixed(http.MethodPost, "/v1/portal/ratchet")},
	"force-unstake": {args: "<owner>", summary: "exit a position, burning external entitlement", build: func(args []string) (apiRequest, error) {
		if err := want(args, 1); err != nil {
			return apiRequest{}, err
		}
		return apiRequest{method: http.MethodPost, path: "/v1/portal/force-unstake", body: map[string]string{"owner": args[0]}}, nil
	}},
	"quote": {args: "buy|sell <amountIn>", summary: "price a trade without executing it", build: func(args []string) (apiRequest, error) {
		if err := want(args, 2); err != nil {
			return apiRequest{}, err
		}
		side := strings.ToLower(args[0])
		if side != "buy" && side != "sell" {
			return apiRequest{}, fmt.Errorf("side must be buy or sell")
		}
		return apiRequest{method: http.MethodGet, path: "/v1/portal/quote/" + side, query: url.Values{"amountIn": {args[1]}}}, nil
	}},
	"buy":  {args: "[--min N] [--deadline TS] <caller> <amountIn>", summary: "buy credit line with the reference asset", build: trade("/v1/portal/buy")},
	"sell": {args: "[--min N] [--deadline TS] <caller> <amountIn>", summary: "sell credit line for the reference asset", build: trade("/v1/portal/sell")},
	"mint": {args: "<owner> <recipient> <amount>", summary: "mint entitlement tokens from a credit line", build: entitlement("/v1/portal/entitlement/mint")},
	"burn": {args: "<owner> <recipient> <amount>", summary: "burn entitlement tokens into a credit line", build: entitlement("/v1/portal/entitlement/burn")},
	"redeem-value": {args: "<amount>", summary: "price a receipt redemption", build: func(args []string) (apiRequest, error) {
		if err := want(args, 1); err != nil {
			return apiRequest{}, err
		}
		return apiRequest{method: http.MethodGet, path: "/v1/portal/funding/redeem-value", query: url.Values{"amount": {args[0]}}}, nil
	}},
	"convert": {args: "[--min N] [--deadline TS] <caller> <token>", summary: "sweep a token balance for the fixed payment", build: func(args []string) (apiRequest, error) {
		fs, minReceived, deadline := tradeFlags("convert")
		if err := fs.Parse(args); err != nil {
			return apiRequest{}, err
		}
		if err := want(fs.Args(), 2); err != nil {
			return apiRequest{}, err
		}
		return apiRequest{method: http.MethodPost, path: "/v1/portal/convert", body: map[string]any{
			"caller":      fs.Arg(0),
			"token":       fs.Arg(1),
			"minReceived": *minReceived,
			"deadline":    *deadline,
		}}, nil
	}},
	"claim": {args: "[--pools a,b] --sources x,y <caller>", summary: "pull venue rewards into the portal", build: func(args []string) (apiRequest, error) {
		fs := flag.NewFlagSet("claim", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		pools := fs.String("pools", "", "comma-separated pool labels")
		sources := fs.String("sources", "", "comma-separated reward sources")
		if err := fs.Parse(args); err != nil {
			return apiRequest{}, err
		}
		if err := want(fs.Args(), 1); err != nil {
			return apiRequest{}, err
		}
		return apiRequest{method: http.MethodPost, path: "/v1/portal/rewards/claim", body: map[string]any{
			"caller":  fs.Arg(0),
			"pools":   splitList(*pools),
			"sources": splitList(*sources),
		}}, nil
	}},
	"pending": {args: "<source>", summary: "show rewards claimable from a source", build: func(args []string) (apiRequest, error) {
		if err := want(args, 1); err != nil {
			return apiRequest{}, err
		}
		return apiRequest{method: http.MethodGet, path: "/v1/portal/rewards/pending/" + url.PathEscape(args[0])}, nil
	}},
	"balance": {args: "<asset> <address>", summary: "show a bank balance", build: func(args []string) (apiRequest, error) {
		if err := want(args, 2); err != nil {
			return apiRequest{}, err
		}
		return apiRequest{method: http.MethodGet, path: "/v1/balances/" + url.PathEscape(args[0]) + "/" + url.PathEscape(args[1])}, nil
	}},
	"supply": {args: "<asset>", summary: "show an asset's total supply", build: func(args []string) (apiRequest, error) {
		if err := want(args, 1); err != nil {
			return apiRequest{}, err
		}
		return apiRequest{method: http.MethodGet, path: "/v1/supply/" + url.PathEscape(args[0])}, nil
	}},
	"journal": {args: "[--after SEQ] [--limit N]", summary: "list journal entries", build: func(args []string) (apiRequest, error) {
		fs := flag.NewFlagSet("journal", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		after := fs.Int64("after", 0, "return entries after this sequence number")
		limit := fs.Int("limit", 100, "maximum entries")
		if err := fs.Parse(args); err != nil {
			return apiRequest{}, err
		}
		return apiRequest{method: http.MethodGet, path: "/v1/journal", query: url.Values{
			"after": {fmt.Sprint(*after)},
			"limit": {fmt.Sprint(*limit)},
		}}, nil
	}},
	"verify": {summary: "recompute the journal hash chain", build: fixed(http.MethodGet, "/v1/journal/verify")},
}

func usage() string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString("Usage: portal-cli [--url URL] [--pretty] <command> [arguments]\n\nCommands:\n")
	for _, name := range names {
		cmd := commands[name]
		fmt.Fprintf(&b, "  %-14s %-44s %s\n", name, cmd.args, cmd.summary)
	}
	return strings.TrimRight(b.String(), "\n")
}

func want(args []string, n int) error {
	if len(args) != n {
		return fmt.Errorf("expected %d argument(s), got %d", n, len(args))
	}
	return nil
}

func fixed(method, path string) func([]string) (apiRequest, error) {
	return func(args []string) (apiRequest, error) {
		if err := want(args, 0); err != nil {
			return apiRequest{}, err
		}
		return apiRequest{method: method, path: path}, nil
	}
}

func ownerAmount(path, field string) func([]string) (apiRequest, error) {
	return func(args []string) (apiRequest, error) {
		if err := want(args, 2); err != nil {
			return apiRequest{}, err
		}
		return apiRequest{method: http.MethodPost, path: path, body: map[string]string{field: args[0], "amount": args[1]}}, nil
	}
}

func entitlement(path string) func([]string) (apiRequest, error) {
	return func(args []string) (apiRequest, error) {
		if err := want(args, 3); err != nil {
			return apiRequest{}, err
		}
		return apiRequest{method: http.MethodPost, path: path, body: map[string]string{
			"owner":     args[0],
			"recipient": args[1],
			"amount":    args[2],
		}}, nil
	}
}

func tradeFlags(name string) (*flag.FlagSet, *string, *uint64) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	minReceived := fs.String("min", "", "minimum output accepted")
	deadline := fs.Uint64("deadline", 0, "unix deadline, 0 for none")
	return fs, minReceived, deadline
}

func trade(path string) func([]string) (apiRequest, error) {
	return func(args []string) (apiRequest, error) {
		fs, minReceived, deadline := tradeFlags("trade")
		if err := fs.Parse(args); err != nil {
			return apiRequest{}, err
		}
		if err := want(fs.Args(), 2); err != nil {
			return apiRequest{}, err
		}
		return apiRequest{method: http.MethodPost, path: path, body: map[string]any{
			"caller":      fs.Arg(0),
			"amountIn":    fs.Arg(1),
			"minReceived": *minReceived,
			"deadline":    *deadline,
		}}, nil
	}
}

func splitList(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
