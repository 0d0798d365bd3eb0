package chain

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/guonaihong/gout"
	"github.com/pkg/errors"
)

// Signer signs a transaction with the connected wallet and submits it to the ledger
type Signer interface {
	// Address is the account that signs and pays gas
	Address() string

	// SignAndExecute signs tx and returns the execution response with effects, events and object changes
	SignAndExecute(ctx context.Context, tx *Transaction) (*TransactionBlockResponse, error)
}

// RemoteSigner delegates signing to a wallet signer bridge over HTTP.
// The bridge holds the keys; this service only sees addresses and transactions.
type RemoteSigner struct {
	endpoint string
	address  string
	timeout  time.Duration
}

var _ Signer = (*RemoteSigner)(nil)

type signRequest struct {
	Sender      string                 `json:"sender"`
	Transaction *Transaction           `json:"transaction"`
	Options     map[string]interface{} `json:"options"`
}

// NewRemoteSigner creates a signer for address backed by the bridge at endpoint
func NewRemoteSigner(endpoint, address string, timeout time.Duration) *RemoteSigner {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &RemoteSigner{endpoint: strings.TrimRight(endpoint, "/"), address: address, timeout: timeout}
}

func (s *RemoteSigner) Address() string {
	return s.address
}

func (s *RemoteSigner) SignAndExecute(ctx context.Context, tx *Transaction) (*TransactionBlockResponse, error) {
	req := signRequest{
		Sender:      s.address,
		Transaction: tx,
		Options: map[string]interface{}{
			"showEffects":       true,
			"showEvents":        true,
			"showObjectChanges": true,
		},
	}

	var body []byte
	var code int
	err := gout.POST(s.endpoint + "/sign-and-execute").
		WithContext(ctx).
		SetTimeout(s.timeout).
		SetJSON(req).
		BindBody(&body).
		Code(&code).
		Do()
	if err != nil {
		return nil, errors.Wrap(err, "signer bridge")
	}
	if code < 200 || code > 299 {
		return nil, errors.Wrap(&HTTPError{StatusCode: code, Status: http.StatusText(code), Body: string(body)}, "signer bridge")
	}

	var resp TransactionBlockResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, "signer bridge: decode response")
	}
	return &resp, nil
}

// CheckResponse validates an execution response: a digest, effects and a success status are required
func CheckResponse(resp *TransactionBlockResponse) error {
	if resp == nil || resp.Digest == "" {
		return ErrMissingDigest
	}
	if resp.Effects == nil {
		return ErrMissingEffects
	}
	if resp.Effects.Status.Status != "success" {
		return &TransactionAbortedError{
			Digest: resp.Digest,
			Status: resp.Effects.Status.Status,
			Reason: resp.Effects.Status.Error,
		}
	}
	return nil
}
