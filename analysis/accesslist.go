package analysis

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// AccountAccessList is an address together with the sorted, distinct storage
// slots touched under it.
type AccountAccessList struct {
	Address common.Address
	Slots   []uint256.Int
}

// BlockAccessList is sorted by address ascending with one entry per address.
type BlockAccessList []AccountAccessList

// NumSlots returns the total number of storage slots in the list.
func (l BlockAccessList) NumSlots() int {
	var n int
	for _, acc := range l {
		n += len(acc.Slots)
	}
	return n
}

// Accesses flattens the list back into access events: one address-only
// access per account followed by one read per slot.
func (l BlockAccessList) Accesses() []StateAccess {
	out := make([]StateAccess, 0, len(l)+l.NumSlots())
	for _, acc := range l {
		out = append(out, AccountAccess(acc.Address))
		for _, slot := range acc.Slots {
			out = append(out, StorageAccess(acc.Address, slot, KindStorageRead))
		}
	}
	return out
}

// Validate checks that addresses and slots are strictly ascending.
func (l BlockAccessList) Validate() error {
	for i, acc := range l {
		if i > 0 && l[i-1].Address.Cmp(acc.Address) >= 0 {
			return fmt.Errorf("address %v out of order at index %d", acc.Address, i)
		}
		for j := 1; j < len(acc.Slots); j++ {
			if !acc.Slots[j-1].Lt(&acc.Slots[j]) {
				return fmt.Errorf("slot %s of %v out of order at index %d", acc.Slots[j].Hex(), acc.Address, j)
			}
		}
	}
	return nil
}

// AccessList converts the list to the go-ethereum transaction access list
// representation.
func (l BlockAccessList) AccessList() types.AccessList {
	al := make(types.AccessList, 0, len(l))
	for _, acc := range l {
		keys := make([]common.Hash, 0, len(acc.Slots))
		for _, slot := range acc.Slots {
			keys = append(keys, slot.Bytes32())
		}
		al = append(al, types.AccessTuple{Address: acc.Address, StorageKeys: keys})
	}
	return al
}

// FromAccessList converts a go-ethereum access list. The result is only
// sorted if the input was.
func FromAccessList(al types.AccessList) BlockAccessList {
	l := make(BlockAccessList, 0, len(al))
	for _, tuple := range al {
		acc := AccountAccessList{Address: tuple.Address, Slots: make([]uint256.Int, 0, len(tuple.StorageKeys))}
		for _, key := range tuple.StorageKeys {
			var slot uint256.Int
			slot.SetBytes32(key[:])
			acc.Slots = append(acc.Slots, slot)
		}
		l = append(l, acc)
	}
	return l
}

// MarshalJSON encodes the list in the eth_createAccessList shape.
func (l BlockAccessList) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.AccessList())
}

func (l *BlockAccessList) UnmarshalJSON(input []byte) error {
	var al types.AccessList
	if err := json.Unmarshal(input, &al); err != nil {
		return err
	}
	*l = FromAccessList(al)
	return nil
}
