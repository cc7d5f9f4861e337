package webhook

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
)

var (
	ErrInvalidScheme    = errors.New("only HTTPS allowed")
	ErrPrivateIP        = errors.New("private IP addresses not allowed")
	ErrLocalhostBlocked = errors.New("localhost not allowed")
	ErrInvalidPort      = errors.New("only port 443 allowed")
	ErrInvalidURL       = errors.New("invalid URL format")
	ErrEmptyHost        = errors.New("URL must have a host")
)

// nonPublic lists loopback, link-local, private and unspecified ranges.
var nonPublic = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::/128"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// TargetPolicy decides which webhook endpoints the service may call.
// The zero value only allows public HTTPS hosts on port 443.
// AllowInsecure permits http, loopback and private addresses, for
// local development.
type TargetPolicy struct {
	AllowInsecure bool
}

// CheckURL validates a configured endpoint before any delivery. Hosts
// that do not resolve yet are accepted; the dial check covers them.
func (p TargetPolicy) CheckURL(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ErrInvalidURL
	}

	if u.Scheme != "https" && !(p.AllowInsecure && u.Scheme == "http") {
		return ErrInvalidScheme
	}
	host := u.Hostname()
	if host == "" {
		return ErrEmptyHost
	}
	if p.AllowInsecure {
		return nil
	}

	if isLocalName(host) {
		return ErrLocalhostBlocked
	}
	if port := u.Port(); port != "" && port != "443" {
		return ErrInvalidPort
	}

	addrs, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		if isBlockedAddr(a) {
			return ErrPrivateIP
		}
	}
	return nil
}

// dialControl runs after DNS resolution on every connection, so a host
// that later resolves to a private address is still refused.
func (p TargetPolicy) dialControl(_, address string, _ syscall.RawConn) error {
	if p.AllowInsecure {
		return nil
	}
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("webhook dial %s: %w", address, err)
	}
	if isBlockedAddr(ap.Addr()) {
		return fmt.Errorf("webhook dial %s: %w", address, ErrPrivateIP)
	}
	return nil
}

func isLocalName(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "localhost" {
		return true
	}
	for _, suffix := range []string{".localhost", ".local", ".internal"} {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

func isBlockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, prefix := range nonPublic {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
