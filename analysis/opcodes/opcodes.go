// Package opcodes classifies EVM mnemonics by the way they touch account
// state.
package opcodes

import "fmt"

// Category is the access behavior of an opcode.
type Category uint8

const (
	// Unsupported is the zero value so unknown mnemonics never classify as
	// anything else by accident.
	Unsupported Category = iota
	Benign
	Read
	Write
	Call
	Touch
)

func (c Category) String() string {
	switch c {
	case Unsupported:
		return "unsupported"
	case Benign:
		return "benign"
	case Read:
		return "read"
	case Write:
		return "write"
	case Call:
		return "call"
	case Touch:
		return "touch"
	default:
		return fmt.Sprintf("category(%d)", uint8(c))
	}
}

var table = map[string]Category{}

func register(c Category, ops ...string) {
	for _, op := range ops {
		if _, ok := table[op]; ok {
			panic(fmt.Sprintf("opcode %s registered twice", op))
		}
		table[op] = c
	}
}

func init() {
	// Arithmetic, comparison and bitwise.
	register(Benign,
		"STOP", "ADD", "MUL", "SUB", "DIV", "SDIV", "MOD", "SMOD", "ADDMOD", "MULMOD", "EXP", "SIGNEXTEND",
		"LT", "GT", "SLT", "SGT", "EQ", "ISZERO", "AND", "OR", "XOR", "NOT", "BYTE", "SHL", "SHR", "SAR",
		"SHA3", "KECCAK256",
	)
	// Environment and block context that only concern the executing frame.
	register(Benign,
		"ADDRESS", "ORIGIN", "CALLER", "CALLVALUE", "CALLDATALOAD", "CALLDATASIZE", "CALLDATACOPY",
		"CODESIZE", "CODECOPY", "GASPRICE", "RETURNDATASIZE", "RETURNDATACOPY",
		"BLOCKHASH", "COINBASE", "TIMESTAMP", "NUMBER", "DIFFICULTY", "PREVRANDAO", "RANDOM", "GASLIMIT",
		"CHAINID", "SELFBALANCE", "BASEFEE", "BLOBHASH", "BLOBBASEFEE",
	)
	// Stack, memory, control flow and transient storage.
	register(Benign,
		"POP", "MLOAD", "MSTORE", "MSTORE8", "JUMP", "JUMPI", "PC", "MSIZE", "GAS", "JUMPDEST",
		"TLOAD", "TSTORE", "MCOPY", "PUSH0", "RETURN", "REVERT", "INVALID",
		"LOG0", "LOG1", "LOG2", "LOG3", "LOG4",
	)
	for i := 1; i <= 32; i++ {
		register(Benign, fmt.Sprintf("PUSH%d", i))
	}
	for i := 1; i <= 16; i++ {
		register(Benign, fmt.Sprintf("DUP%d", i), fmt.Sprintf("SWAP%d", i))
	}

	register(Read, "SLOAD")
	register(Write, "SSTORE")
	register(Call, "CALL", "CALLCODE", "DELEGATECALL", "STATICCALL")
	register(Touch, "BALANCE", "EXTCODESIZE", "EXTCODECOPY", "EXTCODEHASH", "SELFDESTRUCT")

	// Known but not modeled: contract creation and the EOF instruction set.
	register(Unsupported,
		"CREATE", "CREATE2",
		"RJUMP", "RJUMPI", "RJUMPV", "CALLF", "RETF", "JUMPF", "DUPN", "SWAPN", "EXCHANGE",
		"DATALOAD", "DATALOADN", "DATASIZE", "DATACOPY", "RETURNDATALOAD",
		"EOFCREATE", "RETURNCONTRACT", "EXTCALL", "EXTDELEGATECALL", "EXTSTATICCALL",
	)
}

// Classify returns the access category of an opcode mnemonic. Unknown
// mnemonics are Unsupported.
func Classify(op string) Category {
	return table[op]
}

// Known reports whether the mnemonic is present in the classification table,
// including opcodes that are recognized but not modeled.
func Known(op string) bool {
	_, ok := table[op]
	return ok
}
