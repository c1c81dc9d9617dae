// Package transport opens authenticated, transport-encrypted sessions to
// mail servers. One session serves exactly one submission or one fetch-all
// and is torn down on every exit path.
package transport

import (
	"fmt"
	"net"
	"strings"
)

const (
	// DefaultSMTPPort is the standard submission port, used when an SMTP
	// endpoint carries no explicit port.
	DefaultSMTPPort = "587"

	// DefaultIMAPPort is the standard implicit-TLS IMAP port, used when
	// an IMAP endpoint carries no explicit port.
	DefaultIMAPPort = "993"
)

// splitEndpoint normalizes a host[:port] endpoint, filling in defaultPort
// when none is given. It returns the bare host (for TLS server-name
// verification) and the dialable host:port address.
func splitEndpoint(endpoint, defaultPort string) (host, addr string, err error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", "", fmt.Errorf("empty endpoint")
	}

	if !strings.Contains(endpoint, ":") {
		return endpoint, net.JoinHostPort(endpoint, defaultPort), nil
	}

	host, port, err := net.SplitHostPort(endpoint)
	if err != nil {
		return "", "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if host == "" {
		return "", "", fmt.Errorf("invalid endpoint %q: missing host", endpoint)
	}
	if port == "" {
		port = defaultPort
	}
	return host, net.JoinHostPort(host, port), nil
}
