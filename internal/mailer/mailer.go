// Package mailer composes account resolution, the body encryption overlay,
// the message codec, and the mail transports into the two user-facing
// flows: send and retrieve.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/nhle/mailvault/internal/account"
	"github.com/nhle/mailvault/internal/codec"
	"github.com/nhle/mailvault/internal/model"
	"github.com/nhle/mailvault/internal/overlay"
	"github.com/nhle/mailvault/internal/transport"
)

// Submitter submits one wire-formatted message over an authenticated,
// transport-encrypted session.
type Submitter interface {
	Submit(ctx context.Context, from string, recipients []string, raw []byte) error
}

// Fetcher retrieves every message in a mailbox over an authenticated,
// transport-encrypted session.
type Fetcher interface {
	FetchAll(ctx context.Context, mailbox string) (*transport.FetchResult, error)
}

// Dialer builds per-account transports. Every flow dials a fresh session;
// sessions are never shared across operations.
type Dialer interface {
	SMTP(acct model.ResolvedAccount) Submitter
	IMAP(acct model.ResolvedAccount) Fetcher
}

// NetDialer is the production Dialer over real SMTP/IMAP connections.
type NetDialer struct {
	// FetchConcurrency bounds parallel per-message fetches within one
	// retrieve; values below 1 use the transport default.
	FetchConcurrency int
}

func (d NetDialer) SMTP(acct model.ResolvedAccount) Submitter {
	return transport.NewSMTP(acct.SMTPEndpoint, acct.SMTPUsername, acct.SMTPPassword)
}

func (d NetDialer) IMAP(acct model.ResolvedAccount) Fetcher {
	return transport.NewIMAP(acct.IMAPEndpoint, acct.IMAPUsername, acct.IMAPPassword, d.FetchConcurrency)
}

// Mailer drives the send and retrieve flows for resolved accounts.
type Mailer struct {
	accounts *account.AccountStore
	overlay  *overlay.Overlay
	dialer   Dialer
	mailbox  string
	log      *logrus.Logger
}

// New creates a Mailer. mailbox is the default mailbox for retrieves.
func New(accounts *account.AccountStore, ov *overlay.Overlay, dialer Dialer, mailbox string, log *logrus.Logger) *Mailer {
	if mailbox == "" {
		mailbox = "INBOX"
	}
	if log == nil {
		log = logrus.New()
	}
	return &Mailer{
		accounts: accounts,
		overlay:  ov,
		dialer:   dialer,
		mailbox:  mailbox,
		log:      log,
	}
}

// SendOptions describes one send flow.
type SendOptions struct {
	AccountID   string
	Recipients  []string
	Subject     string
	Body        string
	Attachments []model.Attachment

	// UseOverlay encrypts the body for the first recipient before the
	// message is built.
	UseOverlay bool

	// AllowPlaintext lets the flow proceed without the overlay when the
	// recipient's key material is unavailable. Without it, an
	// unavailable overlay is fatal for the send.
	AllowPlaintext bool
}

// Send resolves the account, optionally applies the body overlay, builds
// the wire message, and submits it in one fresh SMTP session.
func (m *Mailer) Send(ctx context.Context, masterSecret []byte, opts SendOptions) error {
	if len(opts.Recipients) == 0 {
		return fmt.Errorf("sending from %s: no recipients", opts.AccountID)
	}

	acct, err := m.accounts.ResolveOne(ctx, opts.AccountID, masterSecret)
	if err != nil {
		return fmt.Errorf("sending from %s: %w", opts.AccountID, err)
	}

	log := m.log.WithFields(logrus.Fields{
		"account":    acct.ID,
		"recipients": len(opts.Recipients),
	})

	body := opts.Body
	if opts.UseOverlay {
		encrypted, err := m.overlay.EncryptBody(body, opts.Recipients[0])
		switch {
		case err == nil:
			body = encrypted
		case errors.Is(err, overlay.ErrUnavailable) && opts.AllowPlaintext:
			log.Warn("overlay unavailable, sending plaintext over transport encryption")
		default:
			return fmt.Errorf("sending from %s: %w", opts.AccountID, err)
		}
	}

	raw, err := codec.Build(model.OutgoingMessage{
		From:        acct.EmailAddress,
		Recipients:  opts.Recipients,
		Subject:     opts.Subject,
		Body:        body,
		Attachments: opts.Attachments,
	})
	if err != nil {
		return fmt.Errorf("sending from %s: %w", opts.AccountID, err)
	}

	if err := m.dialer.SMTP(*acct).Submit(ctx, acct.EmailAddress, opts.Recipients, raw); err != nil {
		return fmt.Errorf("sending from %s: %w", opts.AccountID, err)
	}

	log.Info("message accepted for delivery")
	return nil
}

// RetrieveOptions describes one retrieve flow.
type RetrieveOptions struct {
	AccountID string

	// Mailbox overrides the mailer's default mailbox when non-empty.
	Mailbox string

	// UseOverlay decrypts each body with the overlay after parsing.
	UseOverlay bool

	// OverlayIdentity selects the private key for overlay decryption;
	// empty defaults to the account's email address.
	OverlayIdentity string

	// OverlayPassphrase unlocks the private key; empty for an unlocked
	// key.
	OverlayPassphrase string
}

// ItemFailure reports one message that could not be fetched, parsed, or
// overlay-decrypted during a retrieve.
type ItemFailure struct {
	UID uint32
	Err error
}

// RetrieveResult holds successfully retrieved messages in ascending UID
// order alongside per-item failures.
type RetrieveResult struct {
	Messages []model.IncomingMessage
	Failures []ItemFailure
}

// Retrieve resolves the account, fetches every message in the mailbox over
// one fresh IMAP session, parses each, and optionally strips the body
// overlay. Connect and auth failures abort the flow; per-message decode or
// overlay failures are collected and reported alongside the successes.
func (m *Mailer) Retrieve(ctx context.Context, masterSecret []byte, opts RetrieveOptions) (*RetrieveResult, error) {
	acct, err := m.accounts.ResolveOne(ctx, opts.AccountID, masterSecret)
	if err != nil {
		return nil, fmt.Errorf("retrieving for %s: %w", opts.AccountID, err)
	}

	mailbox := opts.Mailbox
	if mailbox == "" {
		mailbox = m.mailbox
	}

	log := m.log.WithFields(logrus.Fields{
		"account": acct.ID,
		"mailbox": mailbox,
	})

	fetched, err := m.dialer.IMAP(*acct).FetchAll(ctx, mailbox)
	if err != nil {
		return nil, fmt.Errorf("retrieving for %s: %w", opts.AccountID, err)
	}

	identity := opts.OverlayIdentity
	if identity == "" {
		identity = acct.EmailAddress
	}

	result := &RetrieveResult{}
	for i := range fetched.Failures {
		fe := fetched.Failures[i]
		result.Failures = append(result.Failures, ItemFailure{UID: fe.UID, Err: &fe})
	}

	for _, rm := range fetched.Messages {
		msg, err := codec.Parse(rm.Data)
		if err != nil {
			result.Failures = append(result.Failures, ItemFailure{UID: rm.UID, Err: err})
			continue
		}
		msg.UID = rm.UID

		if opts.UseOverlay {
			body, err := m.overlay.DecryptBody(msg.Body, identity, opts.OverlayPassphrase)
			if err != nil {
				result.Failures = append(result.Failures, ItemFailure{UID: rm.UID, Err: err})
				continue
			}
			msg.Body = body
		}

		result.Messages = append(result.Messages, *msg)
	}

	// Server-defined id order is not trusted; sort after collection so
	// the caller sees a deterministic sequence.
	sort.Slice(result.Messages, func(i, j int) bool {
		return result.Messages[i].UID < result.Messages[j].UID
	})
	sort.Slice(result.Failures, func(i, j int) bool {
		return result.Failures[i].UID < result.Failures[j].UID
	})

	log.WithFields(logrus.Fields{
		"retrieved": len(result.Messages),
		"failed":    len(result.Failures),
	}).Info("retrieve complete")

	return result, nil
}
