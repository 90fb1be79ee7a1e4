package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/farbod-bigdeli/banking-2pc/pkg/metrics"
	"github.com/farbod-bigdeli/banking-2pc/pkg/protocol"
)

// Client handles HTTP/JSON communication with coordinator and participant
// nodes. Every call carries a per-request deadline; there are no retries,
// a retried transaction is a new transaction from the caller's view.
type Client struct {
	client  *http.Client
	timeout time.Duration
}

// NewClient creates a client with the given per-call deadline
func NewClient(timeout time.Duration) *Client {
	return &Client{
		client:  &http.Client{},
		timeout: timeout,
	}
}

// DefaultClient creates a client with the default 2 second deadline
func DefaultClient() *Client {
	return NewClient(2 * time.Second)
}

// Prepare sends a voting-phase request to a participant
func (c *Client) Prepare(ctx context.Context, addr string, req *protocol.PrepareRequest) (*protocol.PrepareResponse, error) {
	defer observe(protocol.PhaseVoting)()

	var resp protocol.PrepareResponse
	if err := c.postJSON(ctx, addr, "prepare", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Commit sends a decision-phase commit to a participant
func (c *Client) Commit(ctx context.Context, addr string, req *protocol.CommitRequest) (*protocol.Ack, error) {
	defer observe(protocol.PhaseDecision)()

	var ack protocol.Ack
	if err := c.postJSON(ctx, addr, "commit", req, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

// Abort sends a decision-phase abort to a participant
func (c *Client) Abort(ctx context.Context, addr string, req *protocol.AbortRequest) (*protocol.Ack, error) {
	defer observe(protocol.PhaseDecision)()

	var ack protocol.Ack
	if err := c.postJSON(ctx, addr, "abort", req, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

// CreateAccount asks a coordinator to run the account-creation protocol
func (c *Client) CreateAccount(ctx context.Context, addr string, req *protocol.CreateAccountRequest) (*protocol.CreateAccountResponse, error) {
	var resp protocol.CreateAccountResponse
	if err := c.postJSON(ctx, addr, "accounts", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TxOutcome queries a coordinator for the recorded decision of a transaction
func (c *Client) TxOutcome(ctx context.Context, addr, txID string) (*protocol.TxOutcomeResponse, error) {
	var resp protocol.TxOutcomeResponse
	if err := c.getJSON(ctx, addr, "transactions/"+url.PathEscape(txID), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetAccount fetches a committed account from a participant
func (c *Client) GetAccount(ctx context.Context, addr, accountID string) (*protocol.GetAccountResponse, error) {
	var resp protocol.GetAccountResponse
	if err := c.getJSON(ctx, addr, "accounts/"+url.PathEscape(accountID), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListAccounts fetches all committed accounts from a participant
func (c *Client) ListAccounts(ctx context.Context, addr string) (*protocol.ListAccountsResponse, error) {
	var resp protocol.ListAccountsResponse
	if err := c.getJSON(ctx, addr, "accounts", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HealthCheck checks whether a node is alive
func (c *Client) HealthCheck(ctx context.Context, addr string) (*protocol.HealthResponse, error) {
	var resp protocol.HealthResponse
	if err := c.getJSON(ctx, addr, "health", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) postJSON(ctx context.Context, addr, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("http://%s/%s", addr, path), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, addr, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("http://%s/%s", addr, path), nil)
	if err != nil {
		return err
	}

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Protocol outcomes (votes, abort summaries, not-found reads) ride in
	// the body regardless of the status code.
	return json.NewDecoder(resp.Body).Decode(out)
}

func observe(phase protocol.Phase) func() {
	start := time.Now()
	return func() {
		metrics.RPCDuration.WithLabelValues(string(phase)).Observe(time.Since(start).Seconds())
	}
}
