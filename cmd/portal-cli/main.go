package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

const defaultEndpoint = "http://127.0.0.1:7080"

var httpClient = &http.Client{Timeout: 15 * time.Second}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func defaultPortalEndpoint() string {
	if value := strings.TrimSpace(os.Getenv("PORTAL_URL")); value != "" {
		return value
	}
	return defaultEndpoint
}

// run parses the global flags and dispatches the subcommand.
func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("portal-cli", flag.ContinueOnError)
	global.SetOutput(stderr)
	endpoint := global.String("url", defaultPortalEndpoint(), "portald base URL")
	pretty := global.Bool("pretty", false, "indent JSON output even when stdout is not a terminal")
	if err := global.Parse(args); err != nil {
		return 2
	}
	rest := global.Args()
	if len(rest) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		fmt.Fprintf(stderr, "Error: unknown command %q\n\n%s\n", rest[0], usage())
		return 1
	}
	req, err := cmd.build(rest[1:])
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\nUsage: portal-cli %s %s\n", err, rest[0], cmd.args)
		return 1
	}
	client := &portalClient{
		base:   strings.TrimRight(*endpoint, "/"),
		http:   httpClient,
		indent: *pretty || isTerminal(stdout),
	}
	return client.execute(req, stdout, stderr)
}

type apiRequest struct {
	method string
	path   string
	query  url.Values
	body   any
}

type portalClient struct {
	base   string
	http   *http.Client
	indent bool
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (c *portalClient) execute(req apiRequest, stdout, stderr io.Writer) int {
	target := c.base + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}
	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to encode request: %v\n", err)
			return 1
		}
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequest(req.method, target, body)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to build request: %v\n", err)
		return 1
	}
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		fmt.Fprintf(stderr, "Error: portald unreachable at %s: %v\n", c.base, err)
		return 1
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		fmt.Fprintf(stderr, "Failed to read response: %v\n", err)
		return 1
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			if apiErr.Kind != "" {
				fmt.Fprintf(stderr, "Error (%s): %s\n", apiErr.Kind, apiErr.Error)
			} else {
				fmt.Fprintf(stderr, "Error: %s\n", apiErr.Error)
			}
		} else {
			fmt.Fprintf(stderr, "Error: %s\n", resp.Status)
		}
		return 1
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		fmt.Fprintln(stdout, "OK")
		return 0
	}
	var out bytes.Buffer
	if c.indent {
		err = json.Indent(&out, raw, "", "  ")
	} else {
		err = json.Compact(&out, raw)
	}
	if err != nil {
		stdout.Write(raw)
		return 0
	}
	out.WriteByte('\n')
	_, _ = out.WriteTo(stdout)
	return 0
}
