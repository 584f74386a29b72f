// Package chain wraps the rumor-tracing ledger node: event filters,
// per-kind polling cursors, and contract point lookups.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rumor-tracing/ledger-indexer/internal/models"
)

// ErrSourceUnavailable marks transport-level failures against the ledger
// node. Callers treat it as transient and retry on the next cycle.
var ErrSourceUnavailable = errors.New("event source unavailable")

// RumorDetail is the full rumor tuple returned by the contract point
// lookup. Event payloads may be partial; this is the authoritative state.
type RumorDetail struct {
	Content            string         `json:"content"`
	Source             string         `json:"source"`
	Metadata           map[string]any `json:"metadata"`
	Creator            string         `json:"creator"`
	CreatedAt          time.Time      `json:"created_at"`
	IsVerified         bool           `json:"is_verified"`
	VerificationResult string         `json:"verification_result"`
	Verifier           string         `json:"verifier"`
	VerifiedAt         *time.Time     `json:"verified_at"`
}

// VerificationDetail is the full verification tuple for a rumor.
type VerificationDetail struct {
	Result    string    `json:"result"`
	Evidence  string    `json:"evidence"`
	Verifier  string    `json:"verifier"`
	CreatedAt time.Time `json:"created_at"`
}

// Client is the boundary to the external ledger service.
type Client interface {
	// BlockNumber returns the current head block.
	BlockNumber(ctx context.Context) (uint64, error)

	// FilterEvents returns all events of the given kind observed in the
	// inclusive block range, in emission order.
	FilterEvents(ctx context.Context, kind models.EventKind, fromBlock, toBlock uint64) ([]models.RawEvent, error)

	// GetRumor fetches the current rumor tuple by contract-assigned id.
	GetRumor(ctx context.Context, rumorID int64) (*RumorDetail, error)

	// GetVerification fetches the verification tuple for a rumor id.
	GetVerification(ctx context.Context, rumorID int64) (*VerificationDetail, error)
}

// RPCClient implements Client over the node's JSON-RPC endpoint.
type RPCClient struct {
	url      string
	contract string
	client   *http.Client
	seq      atomic.Int64
}

// NewRPCClient creates a client against the given JSON-RPC URL. The
// contract address scopes event filters and lookups.
func NewRPCClient(url, contract string) *RPCClient {
	return &RPCClient{
		url:      url,
		contract: contract,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int64  `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call performs one JSON-RPC round trip and decodes the result into out.
// Transport and HTTP failures wrap ErrSourceUnavailable; application
// errors reported by the node do not.
func (c *RPCClient) call(ctx context.Context, method string, params []any, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.seq.Add(1),
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: unexpected status %d", ErrSourceUnavailable, method, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("%w: %s: decode response: %v", ErrSourceUnavailable, method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("%s: %w", method, rpcResp.Error)
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("%s: unmarshal result: %w", method, err)
		}
	}
	return nil
}

// BlockNumber returns the node's current head block.
func (c *RPCClient) BlockNumber(ctx context.Context) (uint64, error) {
	var head uint64
	if err := c.call(ctx, "tracing_blockNumber", nil, &head); err != nil {
		return 0, err
	}
	return head, nil
}

type wireEvent struct {
	Kind        models.EventKind `json:"event_kind"`
	Payload     map[string]any   `json:"payload"`
	BlockNumber uint64           `json:"block_number"`
	TxHash      string           `json:"tx_hash"`
}

// FilterEvents returns events of one kind in the inclusive block range.
func (c *RPCClient) FilterEvents(ctx context.Context, kind models.EventKind, fromBlock, toBlock uint64) ([]models.RawEvent, error) {
	params := []any{map[string]any{
		"contract":   c.contract,
		"event_kind": string(kind),
		"from_block": fromBlock,
		"to_block":   toBlock,
	}}
	var wire []wireEvent
	if err := c.call(ctx, "tracing_getEvents", params, &wire); err != nil {
		return nil, err
	}

	events := make([]models.RawEvent, 0, len(wire))
	for _, w := range wire {
		events = append(events, models.RawEvent{
			Kind:        w.Kind,
			Payload:     w.Payload,
			BlockNumber: w.BlockNumber,
			TxHash:      w.TxHash,
		})
	}
	return events, nil
}

// GetRumor fetches the full rumor tuple by contract id.
func (c *RPCClient) GetRumor(ctx context.Context, rumorID int64) (*RumorDetail, error) {
	var detail RumorDetail
	if err := c.call(ctx, "tracing_getRumor", []any{c.contract, rumorID}, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// GetVerification fetches the verification tuple for a rumor id.
func (c *RPCClient) GetVerification(ctx context.Context, rumorID int64) (*VerificationDetail, error) {
	var detail VerificationDetail
	if err := c.call(ctx, "tracing_getVerification", []any{c.contract, rumorID}, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}
