package chain

import "strconv"

// ArgumentKind tells the signer bridge how to resolve a transaction argument
type ArgumentKind string

const (
	ArgPure         ArgumentKind = "pure"
	ArgObject       ArgumentKind = "object"
	ArgGas          ArgumentKind = "gas"
	ArgResult       ArgumentKind = "result"
	ArgNestedResult ArgumentKind = "nestedResult"
)

// Argument is an input or an intermediate result of a programmable transaction
type Argument struct {
	Kind        ArgumentKind `json:"kind"`
	Type        string       `json:"type,omitempty"` // pure value type: string, u64, address, vector<u8>
	Value       interface{}  `json:"value,omitempty"`
	ObjectID    string       `json:"objectId,omitempty"`
	Index       int          `json:"index,omitempty"`
	ResultIndex int          `json:"resultIndex,omitempty"`
}

// Command kinds
const (
	CmdMoveCall        = "MoveCall"
	CmdSplitCoins      = "SplitCoins"
	CmdTransferObjects = "TransferObjects"
)

// Command is one step of a programmable transaction
type Command struct {
	Kind          string     `json:"kind"`
	Target        string     `json:"target,omitempty"`
	TypeArguments []string   `json:"typeArguments,omitempty"`
	Arguments     []Argument `json:"arguments,omitempty"`
	Coin          *Argument  `json:"coin,omitempty"`
	Amounts       []Argument `json:"amounts,omitempty"`
	Objects       []Argument `json:"objects,omitempty"`
	Address       *Argument  `json:"address,omitempty"`
}

// Transaction is a programmable transaction block handed to a Signer
type Transaction struct {
	Sender    string    `json:"sender,omitempty"`
	GasBudget uint64    `json:"gasBudget,omitempty"`
	Commands  []Command `json:"commands"`
}

// NewTransaction creates an empty transaction
func NewTransaction() *Transaction {
	return &Transaction{Commands: make([]Command, 0, 4)}
}

// PureString is a Move String argument
func (tx *Transaction) PureString(s string) Argument {
	return Argument{Kind: ArgPure, Type: "string", Value: s}
}

// PureU64 is a u64 argument; u64 values travel as decimal strings
func (tx *Transaction) PureU64(v uint64) Argument {
	return Argument{Kind: ArgPure, Type: "u64", Value: strconv.FormatUint(v, 10)}
}

// PureAddress is an address argument
func (tx *Transaction) PureAddress(addr string) Argument {
	return Argument{Kind: ArgPure, Type: "address", Value: addr}
}

// PureBytes is a vector<u8> argument
func (tx *Transaction) PureBytes(b []byte) Argument {
	values := make([]int, len(b))
	for i, c := range b {
		values[i] = int(c)
	}
	return Argument{Kind: ArgPure, Type: "vector<u8>", Value: values}
}

// Object references an existing object by id
func (tx *Transaction) Object(id string) Argument {
	return Argument{Kind: ArgObject, ObjectID: id}
}

// Gas references the gas coin of the transaction
func (tx *Transaction) Gas() Argument {
	return Argument{Kind: ArgGas}
}

func (tx *Transaction) add(cmd Command) Argument {
	tx.Commands = append(tx.Commands, cmd)
	return Argument{Kind: ArgResult, Index: len(tx.Commands) - 1}
}

// MoveCall invokes target (package::module::function) and returns its result
func (tx *Transaction) MoveCall(target string, typeArgs []string, args ...Argument) Argument {
	return tx.add(Command{Kind: CmdMoveCall, Target: target, TypeArguments: typeArgs, Arguments: args})
}

// SplitCoins splits amounts out of coin; one result per amount
func (tx *Transaction) SplitCoins(coin Argument, amounts ...Argument) []Argument {
	res := tx.add(Command{Kind: CmdSplitCoins, Coin: &coin, Amounts: amounts})
	out := make([]Argument, len(amounts))
	for i := range amounts {
		out[i] = Argument{Kind: ArgNestedResult, Index: res.Index, ResultIndex: i}
	}
	return out
}

// TransferObjects sends objects to address
func (tx *Transaction) TransferObjects(objects []Argument, address Argument) {
	tx.add(Command{Kind: CmdTransferObjects, Objects: objects, Address: &address})
}
