package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks HTTP to the backend consensus/execution service: submitting
// signed transactions and querying account state, plus a liveness probe
// used by /healthz and /readyz.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a Client bound to baseURL with the given per-call
// timeout. Every outbound call is bounded by this timeout through
// http.Client.Timeout (the spec requires every backend HTTP call to have one).
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// AccountState is the backend's view of a custodial key's on-chain account.
type AccountState struct {
	Nonce      uint64 `json:"nonce"`
	Balance    uint64 `json:"balance"`
	Registered bool   `json:"registered"`
	HasBalance bool   `json:"has_balance"`
}

// SubmitResult is the backend's synchronous reply to a submission.
type SubmitResult struct {
	Accepted bool   `json:"accepted"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
}

// Submit posts a binary submission built by the wire/signer packages.
// Errors are returned as *TransportError so the forwarder can classify
// them as retryable or not; backend-level rejections (HTTP 200 with
// Accepted=false) are returned in SubmitResult, not as an error.
func (c *Client) Submit(ctx context.Context, submission []byte) (*SubmitResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/submit", bytes.NewReader(submission))
	if err != nil {
		return nil, fmt.Errorf("building submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransportErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, &TransportError{Retryable: true, StatusCode: resp.StatusCode, Message: resp.Status}
	}
	if resp.StatusCode >= 400 {
		return nil, &TransportError{Retryable: false, StatusCode: resp.StatusCode, Message: resp.Status}
	}

	var result SubmitResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding submit response: %w", err)
	}
	return &result, nil
}

// QueryAccount fetches the backend's view of a public key's account.
func (c *Client) QueryAccount(ctx context.Context, pubKeyHex string) (*AccountState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/account/"+pubKeyHex, nil)
	if err != nil {
		return nil, fmt.Errorf("building account request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransportErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, &TransportError{Retryable: true, StatusCode: resp.StatusCode, Message: resp.Status}
	}
	if resp.StatusCode >= 400 {
		return nil, &TransportError{Retryable: false, StatusCode: resp.StatusCode, Message: resp.Status}
	}

	var state AccountState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return nil, fmt.Errorf("decoding account response: %w", err)
	}
	return &state, nil
}

// Healthy reports whether the backend responds to a lightweight probe.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()
	return resp.StatusCode == http.StatusOK
}
