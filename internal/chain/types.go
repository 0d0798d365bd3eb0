package chain

import "github.com/spf13/cast"

// SuiCoinType is the coin type used for escrow funding
const SuiCoinType = "0x2::sui::SUI"

// MoveContent is the parsed content of a Move object
type MoveContent struct {
	DataType string                 `json:"dataType"`
	Type     string                 `json:"type"`
	Fields   map[string]interface{} `json:"fields"`
}

// ObjectData describes one ledger object
type ObjectData struct {
	ObjectID string       `json:"objectId"`
	Version  string       `json:"version"`
	Digest   string       `json:"digest"`
	Type     string       `json:"type"`
	Content  *MoveContent `json:"content"`
}

// ObjectType returns the struct type from the object or its content
func (o *ObjectData) ObjectType() string {
	if o.Type != "" {
		return o.Type
	}
	if o.Content != nil {
		return o.Content.Type
	}
	return ""
}

// ObjectResponse wraps an object lookup result
type ObjectResponse struct {
	Data  *ObjectData `json:"data"`
	Error interface{} `json:"error,omitempty"`
}

// ObjectsPage is one page of owned objects
type ObjectsPage struct {
	Data        []ObjectResponse `json:"data"`
	NextCursor  *string          `json:"nextCursor"`
	HasNextPage bool             `json:"hasNextPage"`
}

// ExecutionStatus is the execution outcome reported in transaction effects
type ExecutionStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// TransactionEffects holds the effects of an executed transaction
type TransactionEffects struct {
	Status ExecutionStatus `json:"status"`
}

// Event is an event emitted by a transaction
type Event struct {
	Type       string                 `json:"type"`
	Sender     string                 `json:"sender"`
	ParsedJSON map[string]interface{} `json:"parsedJson"`
}

// ObjectChange is a created/mutated/transferred object of a transaction
type ObjectChange struct {
	Type       string `json:"type"`
	ObjectType string `json:"objectType"`
	ObjectID   string `json:"objectId"`
	Sender     string `json:"sender"`
}

// TransactionBlockResponse is the execution or lookup result of a transaction
type TransactionBlockResponse struct {
	Digest        string              `json:"digest"`
	Effects       *TransactionEffects `json:"effects"`
	Events        []Event             `json:"events"`
	ObjectChanges []ObjectChange      `json:"objectChanges"`
}

// Coin is a coin object owned by an account
type Coin struct {
	CoinType     string `json:"coinType"`
	CoinObjectID string `json:"coinObjectId"`
	Version      string `json:"version"`
	Digest       string `json:"digest"`
	Balance      string `json:"balance"`
}

// Amount returns the coin balance in MIST
func (c Coin) Amount() int64 {
	return cast.ToInt64(c.Balance)
}

// CoinsPage is one page of coins
type CoinsPage struct {
	Data        []Coin  `json:"data"`
	NextCursor  *string `json:"nextCursor"`
	HasNextPage bool    `json:"hasNextPage"`
}

// FundingCoin is the coin an escrow order is paid from. An empty ObjectID pays from the gas coin.
type FundingCoin struct {
	ObjectID string `json:"object_id"`
	Balance  int64  `json:"balance"`
}
