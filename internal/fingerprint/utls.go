// Package fingerprint builds HTTP transports whose TLS ClientHello
// matches a real browser. The Raah frontends sit behind edge protection
// that scores TLS fingerprints, so the default Go handshake can draw
// extra 429s on long crawls.
package fingerprint

import (
	"context"
	"fmt"
	"net"
	"net/http"

	utls "github.com/refraction-networking/utls"
)

// Profile selects a TLS fingerprint.
type Profile string

const (
	ProfileChrome  Profile = "chrome"
	ProfileFirefox Profile = "firefox"
	ProfileGo      Profile = "go" // standard library TLS, useful in tests
)

// Transport returns a RoundTripper speaking TLS with the given profile.
// ProfileGo returns a plain cloned http.Transport.
func Transport(p Profile) (http.RoundTripper, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if p == ProfileGo || p == "" {
		return transport, nil
	}

	var helloID utls.ClientHelloID
	switch p {
	case ProfileChrome:
		helloID = utls.HelloChrome_Auto
	case ProfileFirefox:
		helloID = utls.HelloFirefox_Auto
	default:
		return nil, fmt.Errorf("fingerprint: unknown profile %q", p)
	}

	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		tcpConn, err := transport.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}

		uConn := utls.UClient(tcpConn, &utls.Config{ServerName: host}, helloID)
		if err := uConn.HandshakeContext(ctx); err != nil {
			_ = tcpConn.Close()
			return nil, fmt.Errorf("fingerprint: utls handshake: %w", err)
		}
		return uConn, nil
	}

	return transport, nil
}
