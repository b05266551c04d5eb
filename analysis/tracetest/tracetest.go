// Package tracetest builds synthetic transactions and traces for tests.
package tracetest

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jsign/trace-access-list/analysis"
)

// Addr returns an address whose first byte is prefix and last byte is n, in
// the 0xAA..01 notation.
func Addr(prefix, n byte) common.Address {
	var a common.Address
	a[0] = prefix
	a[common.AddressLength-1] = n
	return a
}

// Word returns the stack word holding addr.
func Word(addr common.Address) uint256.Int {
	var w uint256.Int
	w.SetBytes20(addr[:])
	return w
}

// Tx returns a plain call from sender to to with zero value.
func Tx(sender, to common.Address) analysis.TxMeta {
	return analysis.TxMeta{Sender: sender, To: &to, Value: new(uint256.Int), GasPrice: new(uint256.Int)}
}

// Builder appends trace entries, tracking the current depth.
type Builder struct {
	depth   int
	entries []analysis.TraceEntry
}

func NewBuilder() *Builder { return &Builder{} }

// Op appends an instruction at the current depth with the given stack, whose
// last element is the top.
func (b *Builder) Op(op string, stack ...uint256.Int) *Builder {
	b.entries = append(b.entries, analysis.TraceEntry{
		PC:    uint64(len(b.entries)),
		Op:    op,
		Gas:   100_000,
		Depth: b.depth,
		Stack: stack,
	})
	return b
}

// SLoad appends an SLOAD of slot.
func (b *Builder) SLoad(slot uint64) *Builder {
	return b.Op("SLOAD", *uint256.NewInt(0xdead), *uint256.NewInt(slot))
}

// SStore appends an SSTORE of value at slot.
func (b *Builder) SStore(slot, value uint64) *Builder {
	return b.Op("SSTORE", *uint256.NewInt(value), *uint256.NewInt(slot))
}

// Call appends a call opcode to target and descends one level. Stack operands
// follow the EVM order so the gas word is on top.
func (b *Builder) Call(op string, target common.Address, value uint64) *Builder {
	gas := *uint256.NewInt(50_000)
	switch op {
	case "CALL", "CALLCODE":
		b.Op(op, *uint256.NewInt(0), *uint256.NewInt(0), *uint256.NewInt(0), *uint256.NewInt(0), *uint256.NewInt(value), Word(target), gas)
	default:
		b.Op(op, *uint256.NewInt(0), *uint256.NewInt(0), *uint256.NewInt(0), *uint256.NewInt(0), Word(target), gas)
	}
	b.depth++
	return b
}

// Return appends a RETURN at the current depth and ascends one level.
func (b *Builder) Return() *Builder {
	b.Op("RETURN", *uint256.NewInt(0), *uint256.NewInt(0))
	b.depth--
	return b
}

// Ascend moves one level up without emitting an instruction, as happens when
// a call targets an account without code.
func (b *Builder) Ascend() *Builder {
	b.depth--
	return b
}

// Trace returns the built trace.
func (b *Builder) Trace() analysis.Trace {
	return analysis.Trace{Gas: 21_000, StructLogs: b.entries}
}
