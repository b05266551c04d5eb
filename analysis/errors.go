package analysis

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrUnsupportedOpcode = errors.New("unsupported opcode")
	ErrMissingRecipient  = errors.New("transaction has no recipient")
	ErrEmptyContextStack = errors.New("empty call context stack")
	ErrStackUnderflow    = errors.New("call context stack underflow")
	ErrDepthMismatch     = errors.New("trace depth above call context depth")
	ErrMalformedStack    = errors.New("operand stack too short")
	ErrLengthMismatch    = errors.New("transaction and trace count mismatch")
)

// UnsupportedOpcodeError names an opcode the classifier does not know.
type UnsupportedOpcodeError struct {
	Op string
}

func (e *UnsupportedOpcodeError) Error() string {
	return fmt.Sprintf("unsupported opcode %q", e.Op)
}

func (e *UnsupportedOpcodeError) Is(target error) bool {
	return target == ErrUnsupportedOpcode
}

// TraceError locates a failure inside a transaction trace.
type TraceError struct {
	Index int // position in Trace.StructLogs
	PC    uint64
	Depth int
	Op    string
	Err   error
}

func (e *TraceError) Error() string {
	return fmt.Sprintf("trace entry %d (pc=%d depth=%d op=%s): %v", e.Index, e.PC, e.Depth, e.Op, e.Err)
}

func (e *TraceError) Unwrap() error { return e.Err }

// TxError locates a failure at a transaction of a block.
type TxError struct {
	TxIndex int
	TxHash  common.Hash
	Err     error
}

func (e *TxError) Error() string {
	return fmt.Sprintf("tx %d (%v): %v", e.TxIndex, e.TxHash, e.Err)
}

func (e *TxError) Unwrap() error { return e.Err }
