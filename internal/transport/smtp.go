package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"
)

const dialTimeout = 30 * time.Second

// SMTPTransport submits messages over a STARTTLS-upgraded SMTP session.
type SMTPTransport struct {
	endpoint string
	username string
	password string
}

// NewSMTP creates an SMTP transport for one endpoint and credential pair.
func NewSMTP(endpoint, username, password string) *SMTPTransport {
	return &SMTPTransport{
		endpoint: endpoint,
		username: username,
		password: password,
	}
}

// Submit sends exactly one message to all recipients in one session:
// connect, STARTTLS upgrade, authenticate, MAIL/RCPT/DATA, quit. Success
// means the server accepted the message for delivery. The session is
// closed on every exit path and there is no fallback to an unencrypted
// channel.
func (t *SMTPTransport) Submit(ctx context.Context, from string, recipients []string, raw []byte) error {
	host, addr, err := splitEndpoint(t.endpoint, DefaultSMTPPort)
	if err != nil {
		return &ConnectError{Endpoint: t.endpoint, Err: err}
	}

	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &ConnectError{Endpoint: addr, Err: err}
	}

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return &ConnectError{Endpoint: addr, Err: err}
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
		return &ConnectError{Endpoint: addr, Err: fmt.Errorf("STARTTLS: %w", err)}
	}

	auth := smtp.PlainAuth("", t.username, t.password, host)
	if err := client.Auth(auth); err != nil {
		return &AuthError{Endpoint: addr, Username: t.username, Err: err}
	}

	if err := client.Mail(from); err != nil {
		return &SendError{Err: fmt.Errorf("MAIL FROM: %w", err)}
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return &SendError{Err: fmt.Errorf("RCPT TO %s: %w", rcpt, err)}
		}
	}

	w, err := client.Data()
	if err != nil {
		return &SendError{Err: fmt.Errorf("DATA: %w", err)}
	}
	if _, err := w.Write(raw); err != nil {
		return &SendError{Err: fmt.Errorf("writing message: %w", err)}
	}
	if err := w.Close(); err != nil {
		return &SendError{Err: fmt.Errorf("closing message: %w", err)}
	}

	if err := client.Quit(); err != nil {
		return &SendError{Err: fmt.Errorf("QUIT: %w", err)}
	}

	return nil
}
