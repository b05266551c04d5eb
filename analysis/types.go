package analysis

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// TraceEntry is a single executed instruction as reported by a struct logger.
// Depth is 0-based and Stack is the operand stack before execution, with the
// top of the stack as the last element.
type TraceEntry struct {
	PC      uint64
	Op      string
	Gas     uint64
	GasCost uint64
	Depth   int
	Stack   []uint256.Int
}

// Trace is the execution trace of one transaction.
type Trace struct {
	Gas         uint64
	Failed      bool
	ReturnValue []byte
	StructLogs  []TraceEntry
}

// TxMeta is the transaction data needed to seed the call context stack.
type TxMeta struct {
	Hash     common.Hash
	Sender   common.Address
	To       *common.Address // nil for contract creation
	Value    *uint256.Int
	Input    []byte
	Gas      uint64
	GasPrice *uint256.Int
	Nonce    uint64
}

// AccessKind tells how a StateAccess was produced.
type AccessKind uint8

const (
	KindAccount AccessKind = iota
	KindStorageRead
	KindStorageWrite
)

func (k AccessKind) String() string {
	switch k {
	case KindAccount:
		return "account"
	case KindStorageRead:
		return "read"
	case KindStorageWrite:
		return "write"
	default:
		return "unknown"
	}
}

// StateAccess is an observed touch of chain state. A nil Slot means the
// account itself was touched without a specific storage slot.
type StateAccess struct {
	Address common.Address
	Slot    *uint256.Int
	Kind    AccessKind
}

// AccountAccess returns an address-only access.
func AccountAccess(addr common.Address) StateAccess {
	return StateAccess{Address: addr, Kind: KindAccount}
}

// StorageAccess returns a storage access of the given kind at slot.
func StorageAccess(addr common.Address, slot uint256.Int, kind AccessKind) StateAccess {
	return StateAccess{Address: addr, Slot: &slot, Kind: kind}
}
