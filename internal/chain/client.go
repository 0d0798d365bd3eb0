package chain

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/guonaihong/gout"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Ledger is the read side of the ledger node used by the gateway
type Ledger interface {
	// OwnedObjects returns one page of objects owned by owner, with type and content
	OwnedObjects(ctx context.Context, owner, cursor string, limit int) (*ObjectsPage, error)

	// GetObject returns one object with type and content
	GetObject(ctx context.Context, objectID string) (*ObjectResponse, error)

	// GetTransactionBlock returns an executed transaction with effects, events and object changes.
	// It fails while the transaction is not yet known to the node.
	GetTransactionBlock(ctx context.Context, digest string) (*TransactionBlockResponse, error)

	// GetCoins returns one page of coins of coinType owned by owner
	GetCoins(ctx context.Context, owner, coinType, cursor string, limit int) (*CoinsPage, error)
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int64         `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	JSONRPC string              `json:"jsonrpc"`
	ID      int64               `json:"id"`
	Result  jsoniter.RawMessage `json:"result"`
	Error   *RPCError           `json:"error"`
}

// RPCClient talks JSON-RPC 2.0 to a ledger full node over HTTP
type RPCClient struct {
	endpoint string
	timeout  time.Duration
	seq      int64
}

var _ Ledger = (*RPCClient)(nil)

// NewRPCClient creates a client for the node at endpoint
func NewRPCClient(endpoint string, timeout time.Duration) *RPCClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RPCClient{endpoint: endpoint, timeout: timeout}
}

// Call invokes method with params and decodes the result into out
func (c *RPCClient) Call(ctx context.Context, method string, out interface{}, params ...interface{}) error {
	if params == nil {
		params = []interface{}{}
	}
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      atomic.AddInt64(&c.seq, 1),
		Method:  method,
		Params:  params,
	}

	var body []byte
	var code int
	err := gout.POST(c.endpoint).
		WithContext(ctx).
		SetTimeout(c.timeout).
		SetJSON(req).
		BindBody(&body).
		Code(&code).
		Do()
	if err != nil {
		return errors.Wrapf(err, "rpc %s", method)
	}
	if code < 200 || code > 299 {
		return errors.Wrapf(&HTTPError{StatusCode: code, Status: http.StatusText(code), Body: string(body)}, "rpc %s", method)
	}

	var resp rpcResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return errors.Wrapf(err, "rpc %s: decode response", method)
	}
	if resp.Error != nil {
		return errors.Wrapf(resp.Error, "rpc %s", method)
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return errors.Wrapf(err, "rpc %s: decode result", method)
	}
	return nil
}

func objectOptions() map[string]interface{} {
	return map[string]interface{}{
		"showType":    true,
		"showContent": true,
		"showOwner":   true,
	}
}

func nullable(cursor string) interface{} {
	if cursor == "" {
		return nil
	}
	return cursor
}

func (c *RPCClient) OwnedObjects(ctx context.Context, owner, cursor string, limit int) (*ObjectsPage, error) {
	var page ObjectsPage
	query := map[string]interface{}{"options": objectOptions()}
	err := c.Call(ctx, "suix_getOwnedObjects", &page, owner, query, nullable(cursor), limit)
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *RPCClient) GetObject(ctx context.Context, objectID string) (*ObjectResponse, error) {
	var obj ObjectResponse
	if err := c.Call(ctx, "sui_getObject", &obj, objectID, objectOptions()); err != nil {
		return nil, err
	}
	return &obj, nil
}

func (c *RPCClient) GetTransactionBlock(ctx context.Context, digest string) (*TransactionBlockResponse, error) {
	var block TransactionBlockResponse
	opts := map[string]interface{}{
		"showEffects":       true,
		"showEvents":        true,
		"showObjectChanges": true,
	}
	if err := c.Call(ctx, "sui_getTransactionBlock", &block, digest, opts); err != nil {
		return nil, err
	}
	return &block, nil
}

func (c *RPCClient) GetCoins(ctx context.Context, owner, coinType, cursor string, limit int) (*CoinsPage, error) {
	var page CoinsPage
	if err := c.Call(ctx, "suix_getCoins", &page, owner, coinType, nullable(cursor), limit); err != nil {
		return nil, err
	}
	return &page, nil
}
