package http

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	utls "github.com/refraction-networking/utls"
)

// TLSProfile represents a browser TLS fingerprint
type TLSProfile struct {
	Name     string
	ClientID utls.ClientHelloID
}

var tlsProfiles = map[string]TLSProfile{
	"chrome_120":  {Name: "chrome_120", ClientID: utls.HelloChrome_120},
	"chrome_131":  {Name: "chrome_131", ClientID: utls.HelloChrome_131},
	"chrome_133":  {Name: "chrome_133", ClientID: utls.HelloChrome_133},
	"firefox_120": {Name: "firefox_120", ClientID: utls.HelloFirefox_120},
	"edge_106":    {Name: "edge_106", ClientID: utls.HelloEdge_106},
}

// ProfileByName looks up a TLS profile, case-insensitively.
func ProfileByName(name string) (TLSProfile, error) {
	p, ok := tlsProfiles[strings.ToLower(name)]
	if !ok {
		return TLSProfile{}, fmt.Errorf("unknown tls_profile %q (known: %s)", name, strings.Join(ProfileNames(), ", "))
	}
	return p, nil
}

// ProfileNames lists the supported profile names in sorted order.
func ProfileNames() []string {
	names := make([]string, 0, len(tlsProfiles))
	for name := range tlsProfiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TLSDialer opens TLS connections that present a browser ClientHello.
type TLSDialer struct {
	profile TLSProfile
	dialer  *net.Dialer
}

// NewTLSDialer creates a dialer for profile.
func NewTLSDialer(profile TLSProfile) *TLSDialer {
	return &TLSDialer{
		profile: profile,
		dialer:  &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second},
	}
}

// DialTLSContext is suitable for http.Transport.DialTLSContext. ALPN is
// pinned to HTTP/1.1 because the transport cannot speak h2 over a utls conn.
func (d *TLSDialer) DialTLSContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}

	spec, err := utls.UTLSIdToSpec(d.profile.ClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s hello: %w", d.profile.Name, err)
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}

	raw, err := d.dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	conn := utls.UClient(raw, &utls.Config{ServerName: host}, utls.HelloCustom)
	if err := conn.ApplyPreset(&spec); err != nil {
		raw.Close()
		return nil, fmt.Errorf("failed to apply %s hello: %w", d.profile.Name, err)
	}
	if err := conn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, err
	}
	return conn, nil
}
