package chain

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNoSigner is returned when no wallet signer is connected
	ErrNoSigner = errors.New("no signer connected")
	// ErrConfigMissing is returned when the supplychain package address is not configured
	ErrConfigMissing = errors.New("supplychain package id is not configured")
	// ErrMissingEffects is returned for an execution response without effects
	ErrMissingEffects = errors.New("transaction response has no effects")
	// ErrMissingDigest is returned for an execution response without a digest
	ErrMissingDigest = errors.New("transaction response has no digest")
	// ErrOrderEventMissing is returned when a create_order transaction emitted no OrderCreatedEvent
	ErrOrderEventMissing = errors.New("OrderCreatedEvent not found in transaction events")
)

// TransactionAbortedError reports a transaction the ledger executed with a failure status
type TransactionAbortedError struct {
	Digest string
	Status string
	Reason string
}

func (e *TransactionAbortedError) Error() string {
	return fmt.Sprintf("transaction %s aborted: status=%s %s", e.Digest, e.Status, e.Reason)
}

// InsufficientBalanceError is returned before submission when the funding coin cannot
// cover the order total plus the gas buffer
type InsufficientBalanceError struct {
	CoinID    string
	Balance   int64
	Required  int64
	GasBuffer int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("coin %s balance %d is below required %d (total %d + gas buffer %d)",
		e.CoinID, e.Balance, e.Required+e.GasBuffer, e.Required, e.GasBuffer)
}

// RPCError is a JSON-RPC error object returned by the ledger node or the signer bridge
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// HTTPError is a non-2xx answer from the ledger node or the signer bridge
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d %s: %s", e.StatusCode, e.Status, e.Body)
}

// IsInsufficientBalance reports whether err is an InsufficientBalanceError
func IsInsufficientBalance(err error) bool {
	var ib *InsufficientBalanceError
	return errors.As(err, &ib)
}

// IsTransactionAborted reports whether err is a TransactionAbortedError
func IsTransactionAborted(err error) bool {
	var ta *TransactionAbortedError
	return errors.As(err, &ta)
}
