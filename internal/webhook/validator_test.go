package webhook

import (
	"errors"
	"net/netip"
	"testing"
)

func TestTargetPolicy_CheckURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		policy  TargetPolicy
		wantErr error
	}{
		{"public https", "https://93.184.216.34/hooks/orders", TargetPolicy{}, nil},
		{"explicit 443", "https://93.184.216.34:443/hooks", TargetPolicy{}, nil},
		{"http rejected", "http://93.184.216.34/hooks", TargetPolicy{}, ErrInvalidScheme},
		{"ftp rejected", "ftp://example.com/hooks", TargetPolicy{}, ErrInvalidScheme},
		{"no host", "https:///hooks", TargetPolicy{}, ErrEmptyHost},
		{"localhost", "https://localhost/hooks", TargetPolicy{}, ErrLocalhostBlocked},
		{"mdns", "https://printer.local/hooks", TargetPolicy{}, ErrLocalhostBlocked},
		{"internal zone", "https://billing.corp.internal/hooks", TargetPolicy{}, ErrLocalhostBlocked},
		{"trailing dot", "https://localhost./hooks", TargetPolicy{}, ErrLocalhostBlocked},
		{"carrier nat", "https://100.64.0.9/hooks", TargetPolicy{}, ErrPrivateIP},
		{"custom port", "https://93.184.216.34:8443/hooks", TargetPolicy{}, ErrInvalidPort},
		{"private ip", "https://10.1.2.3/hooks", TargetPolicy{}, ErrPrivateIP},
		{"loopback ip", "https://127.0.0.1/hooks", TargetPolicy{}, ErrPrivateIP},
		{"ipv6 loopback", "https://[::1]/hooks", TargetPolicy{}, ErrPrivateIP},
		{"malformed", "https://%zz", TargetPolicy{}, ErrInvalidURL},
		{"insecure dev", "http://localhost:8080/hooks", TargetPolicy{AllowInsecure: true}, nil},
		{"insecure still needs host", "http:///hooks", TargetPolicy{AllowInsecure: true}, ErrEmptyHost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.CheckURL(t.Context(), tt.url)
			if err != tt.wantErr {
				t.Errorf("CheckURL(%q) error = %v, want %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestIsBlockedAddr(t *testing.T) {
	tests := []struct {
		ip      string
		blocked bool
	}{
		{"10.0.0.1", true},
		{"172.16.0.1", true},
		{"192.168.1.1", true},
		{"169.254.1.1", true},
		{"::ffff:127.0.0.1", true},
		{"fd00::1", true},
		{"8.8.8.8", false},
		{"2606:4700::1111", false},
	}

	for _, tt := range tests {
		if got := isBlockedAddr(netip.MustParseAddr(tt.ip)); got != tt.blocked {
			t.Errorf("isBlockedAddr(%s) = %v, want %v", tt.ip, got, tt.blocked)
		}
	}
}

func TestTargetPolicy_DialControl(t *testing.T) {
	strict := TargetPolicy{}
	if err := strict.dialControl("tcp", "93.184.216.34:443", nil); err != nil {
		t.Errorf("public address refused: %v", err)
	}
	if err := strict.dialControl("tcp", "[fe80::1]:443", nil); !errors.Is(err, ErrPrivateIP) {
		t.Errorf("link-local address: got %v, want ErrPrivateIP", err)
	}
	if err := (TargetPolicy{AllowInsecure: true}).dialControl("tcp", "127.0.0.1:8080", nil); err != nil {
		t.Errorf("insecure policy refused loopback: %v", err)
	}
}
