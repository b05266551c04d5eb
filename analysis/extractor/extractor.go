// Package extractor replays a transaction trace against a call context stack
// and reports every account and storage slot the transaction touched.
package extractor

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jsign/trace-access-list/analysis"
	"github.com/jsign/trace-access-list/analysis/callstack"
	"github.com/jsign/trace-access-list/analysis/opcodes"
)

// Extract returns the state accesses of a transaction in emission order. The
// sender and the recipient are always reported first. Events are not
// deduplicated.
func Extract(meta analysis.TxMeta, trace analysis.Trace) ([]analysis.StateAccess, error) {
	accesses := make([]analysis.StateAccess, 0, 2+len(trace.StructLogs)/16)
	accesses = append(accesses, analysis.AccountAccess(meta.Sender))
	if meta.To != nil {
		accesses = append(accesses, analysis.AccountAccess(*meta.To))
	}

	stack, err := callstack.New(meta)
	if err != nil {
		return nil, err
	}
	for i := range trace.StructLogs {
		entry := &trace.StructLogs[i]
		access, ok, err := step(stack, entry)
		if err != nil {
			return nil, &analysis.TraceError{Index: i, PC: entry.PC, Depth: entry.Depth, Op: entry.Op, Err: err}
		}
		if ok {
			accesses = append(accesses, access)
		}
	}
	return accesses, nil
}

// step processes one trace entry and returns the access it produced, if any.
func step(stack *callstack.Stack, entry *analysis.TraceEntry) (analysis.StateAccess, bool, error) {
	if err := stack.Sync(entry.Depth); err != nil {
		return analysis.StateAccess{}, false, err
	}
	cur, err := stack.Current()
	if err != nil {
		return analysis.StateAccess{}, false, err
	}

	switch cat := opcodes.Classify(entry.Op); cat {
	case opcodes.Benign:
		return analysis.StateAccess{}, false, nil
	case opcodes.Read, opcodes.Write:
		slot, err := peek(entry.Stack, 0)
		if err != nil {
			return analysis.StateAccess{}, false, err
		}
		kind := analysis.KindStorageRead
		if cat == opcodes.Write {
			kind = analysis.KindStorageWrite
		}
		return analysis.StorageAccess(cur.Storage, *slot, kind), true, nil
	case opcodes.Touch:
		word, err := peek(entry.Stack, 0)
		if err != nil {
			return analysis.StateAccess{}, false, err
		}
		return analysis.AccountAccess(common.Address(word.Bytes20())), true, nil
	case opcodes.Call:
		next, err := enter(cur, entry)
		if err != nil {
			return analysis.StateAccess{}, false, err
		}
		stack.Enter(next)
		return analysis.AccountAccess(next.Code), true, nil
	case opcodes.Unsupported:
		return analysis.StateAccess{}, false, &analysis.UnsupportedOpcodeError{Op: entry.Op}
	default:
		panic(fmt.Sprintf("unhandled opcode category %v", cat))
	}
}

// enter derives the frame a call opcode enters. Operands are gas, target and,
// for CALL and CALLCODE, value, counted from the top of the stack.
func enter(cur callstack.Context, entry *analysis.TraceEntry) (callstack.Context, error) {
	word, err := peek(entry.Stack, 1)
	if err != nil {
		return callstack.Context{}, err
	}
	target := common.Address(word.Bytes20())

	switch entry.Op {
	case "CALL", "CALLCODE":
		value, err := peek(entry.Stack, 2)
		if err != nil {
			return callstack.Context{}, err
		}
		if entry.Op == "CALL" {
			return cur.Call(target, value), nil
		}
		return cur.CallCode(target, value), nil
	case "DELEGATECALL":
		return cur.DelegateCall(target), nil
	case "STATICCALL":
		return cur.StaticCall(target), nil
	default:
		return callstack.Context{}, &analysis.UnsupportedOpcodeError{Op: entry.Op}
	}
}

// peek returns the n-th stack word from the top.
func peek(stack []uint256.Int, n int) (*uint256.Int, error) {
	if len(stack) <= n {
		return nil, fmt.Errorf("%w: need %d operands, have %d", analysis.ErrMalformedStack, n+1, len(stack))
	}
	return &stack[len(stack)-1-n], nil
}
