package transport

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"golang.org/x/sync/errgroup"
)

// DefaultFetchConcurrency bounds parallel per-message fetches when no
// explicit limit is configured.
const DefaultFetchConcurrency = 4

// RawMessage is one fetched message as raw RFC822 bytes with its UID.
type RawMessage struct {
	UID  uint32
	Data []byte
}

// FetchResult holds the outcome of one fetch-all: messages sorted by UID
// plus per-message failures. A failed UID never discards the rest.
type FetchResult struct {
	Messages []RawMessage
	Failures []FetchError
}

// IMAPTransport retrieves messages over an implicit-TLS IMAP session.
type IMAPTransport struct {
	endpoint    string
	username    string
	password    string
	concurrency int
}

// NewIMAP creates an IMAP transport for one endpoint and credential pair.
// concurrency bounds parallel per-message fetches; values below 1 use
// DefaultFetchConcurrency.
func NewIMAP(endpoint, username, password string, concurrency int) *IMAPTransport {
	if concurrency < 1 {
		concurrency = DefaultFetchConcurrency
	}
	return &IMAPTransport{
		endpoint:    endpoint,
		username:    username,
		password:    password,
		concurrency: concurrency,
	}
}

// connect opens a TLS connection and authenticates. The caller owns the
// returned client and must log it out.
func (t *IMAPTransport) connect(_ context.Context) (*imapclient.Client, error) {
	_, addr, err := splitEndpoint(t.endpoint, DefaultIMAPPort)
	if err != nil {
		return nil, &ConnectError{Endpoint: t.endpoint, Err: err}
	}

	client, err := imapclient.DialTLS(addr, nil)
	if err != nil {
		return nil, &ConnectError{Endpoint: addr, Err: err}
	}

	if err := client.Login(t.username, t.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &AuthError{Endpoint: addr, Username: t.username, Err: err}
	}

	return client, nil
}

// FetchAll connects, selects the mailbox, searches all message UIDs, and
// fetches each message's full raw form. Fetches run in parallel across a
// bounded worker pool; results are sorted by UID after collection so the
// output is deterministic regardless of completion order. The session is
// logged out on every exit path.
func (t *IMAPTransport) FetchAll(ctx context.Context, mailbox string) (*FetchResult, error) {
	client, err := t.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(mailbox, nil).Wait(); err != nil {
		return nil, fmt.Errorf("selecting mailbox %q: %w", mailbox, err)
	}

	// An empty criteria set matches ALL.
	searchData, err := client.UIDSearch(&imap.SearchCriteria{}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	uids := searchData.AllUIDs()
	result := &FetchResult{}
	if len(uids) == 0 {
		return result, nil
	}

	var mu sync.Mutex
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)

	for _, uid := range uids {
		g.Go(func() error {
			raw, err := fetchOne(client, uid)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failures = append(result.Failures, FetchError{UID: uint32(uid), Err: err})
				return nil
			}
			result.Messages = append(result.Messages, RawMessage{UID: uint32(uid), Data: raw})
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(result.Messages, func(i, j int) bool {
		return result.Messages[i].UID < result.Messages[j].UID
	})
	sort.Slice(result.Failures, func(i, j int) bool {
		return result.Failures[i].UID < result.Failures[j].UID
	})

	return result, nil
}

// fetchOne retrieves the full raw message for a single UID. The client is
// safe for concurrent commands, so workers share one session.
func fetchOne(client *imapclient.Client, uid imap.UID) ([]byte, error) {
	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := client.Fetch(imap.UIDSetNum(uid), &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	})

	msg := fetchCmd.Next()
	if msg == nil {
		_ = fetchCmd.Close()
		return nil, fmt.Errorf("message not found")
	}

	buf, err := msg.Collect()
	if err != nil {
		_ = fetchCmd.Close()
		return nil, fmt.Errorf("collecting message data: %w", err)
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("closing fetch: %w", err)
	}

	raw := buf.FindBodySection(bodySection)
	if raw == nil {
		return nil, fmt.Errorf("server returned no body section")
	}

	return raw, nil
}
