package callstack

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jsign/trace-access-list/analysis"
	"github.com/stretchr/testify/require"
)

var (
	sender = common.HexToAddress("0xaa00000000000000000000000000000000000001")
	to     = common.HexToAddress("0xbb00000000000000000000000000000000000002")
	target = common.HexToAddress("0xcc00000000000000000000000000000000000003")
)

func newStack(t *testing.T) *Stack {
	t.Helper()
	s, err := New(analysis.TxMeta{Sender: sender, To: &to, Value: uint256.NewInt(7)})
	require.NoError(t, err)
	return s
}

func TestNew(t *testing.T) {
	s := newStack(t)
	require.Equal(t, 0, s.Depth())

	cur, err := s.Current()
	require.NoError(t, err)
	require.Equal(t, Context{Sender: sender, Self: to, Storage: to, Code: to, Value: *uint256.NewInt(7)}, cur)
}

func TestNewMissingRecipient(t *testing.T) {
	_, err := New(analysis.TxMeta{Sender: sender})
	require.ErrorIs(t, err, analysis.ErrMissingRecipient)
}

func TestEmptyStack(t *testing.T) {
	var s Stack
	_, err := s.Current()
	require.ErrorIs(t, err, analysis.ErrEmptyContextStack)
	require.ErrorIs(t, s.Exit(), analysis.ErrEmptyContextStack)
	require.ErrorIs(t, s.Sync(0), analysis.ErrEmptyContextStack)
}

func TestEnterExit(t *testing.T) {
	s := newStack(t)
	root, err := s.Current()
	require.NoError(t, err)

	s.Enter(root.StaticCall(target))
	require.Equal(t, 1, s.Depth())
	cur, err := s.Current()
	require.NoError(t, err)
	require.Equal(t, target, cur.Code)

	require.NoError(t, s.Exit())
	require.Equal(t, 0, s.Depth())
	require.ErrorIs(t, s.Exit(), analysis.ErrStackUnderflow)
}

func TestSync(t *testing.T) {
	s := newStack(t)
	root, err := s.Current()
	require.NoError(t, err)
	s.Enter(root.Call(target, uint256.NewInt(0)))
	s.Enter(root.Call(target, uint256.NewInt(0)))
	require.Equal(t, 2, s.Depth())

	require.NoError(t, s.Sync(2))
	require.Equal(t, 2, s.Depth())

	require.NoError(t, s.Sync(0))
	require.Equal(t, 0, s.Depth())

	require.ErrorIs(t, s.Sync(1), analysis.ErrDepthMismatch)
	require.ErrorIs(t, s.Sync(-1), analysis.ErrStackUnderflow)
}

func TestDerivedContexts(t *testing.T) {
	parent := Context{Sender: sender, Self: to, Storage: to, Code: to, Value: *uint256.NewInt(3)}
	value := uint256.NewInt(9)

	tests := []struct {
		name string
		got  Context
		want Context
	}{
		{
			name: "call",
			got:  parent.Call(target, value),
			want: Context{Sender: to, Self: target, Storage: target, Code: target, Value: *value},
		},
		{
			name: "staticcall",
			got:  parent.StaticCall(target),
			want: Context{Sender: to, Self: target, Storage: target, Code: target},
		},
		{
			name: "callcode",
			got:  parent.CallCode(target, value),
			want: Context{Sender: to, Self: to, Storage: to, Code: target, Value: *value},
		},
		{
			name: "delegatecall",
			got:  parent.DelegateCall(target),
			want: Context{Sender: sender, Self: to, Storage: to, Code: target, Value: *uint256.NewInt(3)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.got)
		})
	}
}
