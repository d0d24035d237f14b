package logging

import (
	"log/slog"
	"net"
	"net/netip"
	"strings"
)

// RedactedValue replaces values that must not reach the logs.
const RedactedValue = "[REDACTED]"

// Keys the portal writes that never carry client data.
var plainKeys = map[string]struct{}{
	"service":   {},
	"env":       {},
	"module":    {},
	"operation": {},
	"kind":      {},
	"method":    {},
	"route":     {},
	"status":    {},
	"requestid": {},
	"type":      {},
	"seq":       {},
}

// MaskField redacts value unless key is one of the plain portal keys.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" {
		return slog.String(key, value)
	}
	if _, ok := plainKeys[strings.ToLower(strings.TrimSpace(key))]; ok {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// MaskRemote logs only the network of a client address: the /24 for IPv4 and
// the /48 for IPv6. Anything that does not parse as an IP is redacted.
func MaskRemote(key, remote string) slog.Attr {
	host := strings.TrimSpace(remote)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return slog.String(key, RedactedValue)
	}
	bits := 48
	if addr.Is4() || addr.Is4In6() {
		addr = addr.Unmap()
		bits = 24
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return slog.String(key, RedactedValue)
	}
	return slog.String(key, prefix.String())
}
