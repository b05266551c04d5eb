package opcodes

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		op   string
		want Category
	}{
		{"ADD", Benign},
		{"PUSH1", Benign},
		{"PUSH32", Benign},
		{"DUP16", Benign},
		{"SWAP1", Benign},
		{"MSTORE8", Benign},
		{"JUMPDEST", Benign},
		{"LOG4", Benign},
		{"CALLER", Benign},
		{"ADDRESS", Benign},
		{"SHA3", Benign},
		{"KECCAK256", Benign},
		{"TSTORE", Benign},
		{"SLOAD", Read},
		{"SSTORE", Write},
		{"CALL", Call},
		{"CALLCODE", Call},
		{"DELEGATECALL", Call},
		{"STATICCALL", Call},
		{"BALANCE", Touch},
		{"EXTCODEHASH", Touch},
		{"SELFDESTRUCT", Touch},
		{"CREATE", Unsupported},
		{"CREATE2", Unsupported},
		{"PUSH33", Unsupported},
		{"sload", Unsupported},
		{"", Unsupported},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			require.Equal(t, tt.want, Classify(tt.op))
		})
	}
}

func TestKnown(t *testing.T) {
	require.True(t, Known("CREATE2"))
	require.True(t, Known("SLOAD"))
	require.False(t, Known("NOTANOPCODE"))
}

// Every opcode defined by the interpreter must have an explicit entry so a
// new instruction cannot be silently reported as unknown.
func TestEveryDefinedOpcodeIsTabled(t *testing.T) {
	for i := 0; i < 256; i++ {
		name := vm.OpCode(i).String()
		if strings.HasPrefix(name, "opcode ") {
			continue
		}
		require.Truef(t, Known(name), "opcode %#x (%s) missing from classification table", i, name)
	}
}

func TestCategoryString(t *testing.T) {
	require.Equal(t, "read", Read.String())
	require.Equal(t, "unsupported", Unsupported.String())
	require.Equal(t, "category(42)", Category(42).String())
}
