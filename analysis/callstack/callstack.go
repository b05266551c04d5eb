// Package callstack tracks the addressing roles of nested message calls
// while a transaction trace is replayed.
package callstack

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jsign/trace-access-list/analysis"
)

// Context holds the addressing roles of one call frame.
type Context struct {
	Sender  common.Address // message caller
	Self    common.Address // account seen by ADDRESS
	Storage common.Address // account whose storage SLOAD/SSTORE address
	Code    common.Address // account whose bytecode is executing
	Value   uint256.Int    // wei transferred into the frame
}

// Call derives the frame entered by CALL.
func (c Context) Call(target common.Address, value *uint256.Int) Context {
	return Context{Sender: c.Self, Self: target, Storage: target, Code: target, Value: *value}
}

// StaticCall derives the frame entered by STATICCALL.
func (c Context) StaticCall(target common.Address) Context {
	return Context{Sender: c.Self, Self: target, Storage: target, Code: target}
}

// CallCode derives the frame entered by CALLCODE: target code runs against
// the caller's storage, with the caller as sender.
func (c Context) CallCode(target common.Address, value *uint256.Int) Context {
	return Context{Sender: c.Self, Self: c.Self, Storage: c.Storage, Code: target, Value: *value}
}

// DelegateCall derives the frame entered by DELEGATECALL: only the code
// changes.
func (c Context) DelegateCall(target common.Address) Context {
	c.Code = target
	return c
}

// Stack is the call context stack of one transaction. Its depth is the number
// of frames minus one, matching the 0-based depth of trace entries.
type Stack struct {
	frames []Context
}

// New seeds a stack with the top level frame of the transaction.
func New(meta analysis.TxMeta) (*Stack, error) {
	if meta.To == nil {
		return nil, analysis.ErrMissingRecipient
	}
	to := *meta.To
	root := Context{Sender: meta.Sender, Self: to, Storage: to, Code: to}
	if meta.Value != nil {
		root.Value = *meta.Value
	}
	return &Stack{frames: []Context{root}}, nil
}

// Depth returns the depth of the current frame, or -1 on an empty stack.
func (s *Stack) Depth() int {
	return len(s.frames) - 1
}

// Current returns the innermost frame.
func (s *Stack) Current() (Context, error) {
	if len(s.frames) == 0 {
		return Context{}, analysis.ErrEmptyContextStack
	}
	return s.frames[len(s.frames)-1], nil
}

// Enter pushes a frame.
func (s *Stack) Enter(c Context) {
	s.frames = append(s.frames, c)
}

// Exit pops the innermost frame. The transaction's own frame is never popped.
func (s *Stack) Exit() error {
	if len(s.frames) == 0 {
		return analysis.ErrEmptyContextStack
	}
	if len(s.frames) == 1 {
		return analysis.ErrStackUnderflow
	}
	s.frames = s.frames[:len(s.frames)-1]
	return nil
}

// Sync pops frames until the stack depth equals depth. Trace depth is the
// authoritative signal for returns, so no RETURN/REVERT/STOP matching is done.
func (s *Stack) Sync(depth int) error {
	if len(s.frames) == 0 {
		return analysis.ErrEmptyContextStack
	}
	if depth < 0 {
		return fmt.Errorf("%w: negative depth %d", analysis.ErrStackUnderflow, depth)
	}
	for s.Depth() > depth {
		if err := s.Exit(); err != nil {
			return err
		}
	}
	if s.Depth() != depth {
		return fmt.Errorf("%w: entry depth %d, context depth %d", analysis.ErrDepthMismatch, depth, s.Depth())
	}
	return nil
}
