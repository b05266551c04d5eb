package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/jsign/trace-access-list/analysis"
	"github.com/jsign/trace-access-list/analysis/aggregator"
	"github.com/urfave/cli/v2"
)

var compareHeader = []string{"block", "tx", "hash", "accounts", "slots", "node_accounts", "node_slots", "missing", "extra"}

// withoutImplicit drops the address-only entries eth_createAccessList never
// reports: the sender, the recipient and precompiles.
func withoutImplicit(list analysis.BlockAccessList, meta analysis.TxMeta) analysis.BlockAccessList {
	implicit := map[common.Address]bool{meta.Sender: true}
	if meta.To != nil {
		implicit[*meta.To] = true
	}
	for _, addr := range vm.PrecompiledAddressesCancun {
		implicit[addr] = true
	}
	out := make(analysis.BlockAccessList, 0, len(list))
	for _, acc := range list {
		if len(acc.Slots) == 0 && implicit[acc.Address] {
			continue
		}
		out = append(out, acc)
	}
	return out
}

func slotSets(list analysis.BlockAccessList) map[common.Address]map[uint256.Int]struct{} {
	sets := make(map[common.Address]map[uint256.Int]struct{}, len(list))
	for _, acc := range list {
		set := make(map[uint256.Int]struct{}, len(acc.Slots))
		for _, slot := range acc.Slots {
			set[slot] = struct{}{}
		}
		sets[acc.Address] = set
	}
	return sets
}

// missingFrom returns the accesses of want not covered by got, in want's order.
func missingFrom(want, got analysis.BlockAccessList) []analysis.StateAccess {
	sets := slotSets(got)
	var out []analysis.StateAccess
	for _, acc := range want {
		set, ok := sets[acc.Address]
		if !ok {
			out = append(out, analysis.AccountAccess(acc.Address))
		}
		for _, slot := range acc.Slots {
			if _, ok := set[slot]; !ok {
				out = append(out, analysis.StorageAccess(acc.Address, slot, analysis.KindStorageRead))
			}
		}
	}
	return out
}

// diffAccessLists reports what the node listed that was not compiled
// (missing) and what was compiled that the node did not list (extra). Both
// lists must be sorted.
func diffAccessLists(compiled, node analysis.BlockAccessList) (missing, extra []analysis.StateAccess) {
	return missingFrom(node, compiled), missingFrom(compiled, node)
}

func compareCommand(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	numbers, err := blockRange(ctx.Uint64(fromFlag.Name), ctx.Uint64(toFlag.Name))
	if err != nil {
		return err
	}
	if numbers[0] == 0 {
		return fmt.Errorf("block 0 has no parent state to compare against")
	}
	node, err := dialRPC(ctx.Context, cfg)
	if err != nil {
		return err
	}
	defer node.Close()

	var (
		blocks = node.Block
		rows   [][]string
	)
	if cfg.Compile.TracesDir != "" {
		src, closeSrc, err := openSource(ctx.Context, cfg)
		if err != nil {
			return err
		}
		defer closeSrc()
		blocks = src.Block
	}
	for _, number := range numbers {
		block, err := blocks(ctx.Context, number)
		if err != nil {
			return err
		}
		for i, meta := range block.Metas {
			if meta.To == nil {
				log.Warn("Skipping contract creation", "block", number, "tx", i, "hash", meta.Hash)
				continue
			}
			compiled, err := aggregator.ForTransaction(meta, block.Traces[i])
			if err != nil {
				return fmt.Errorf("block %d tx %d: %w", number, i, err)
			}
			// The parent state only matches the first transaction exactly;
			// later ones see the block's earlier writes.
			al, _, err := node.CreateAccessList(ctx.Context, meta, number-1)
			if err != nil {
				return fmt.Errorf("block %d tx %d: %w", number, i, err)
			}
			nodeList := aggregator.Group(analysis.FromAccessList(al).Accesses())
			missing, extra := diffAccessLists(withoutImplicit(compiled, meta), nodeList)
			for _, m := range missing {
				log.Debug("Missing access", "block", number, "tx", i, "address", m.Address, "slot", m.Slot)
			}
			rows = append(rows, []string{
				strconv.FormatUint(number, 10),
				strconv.Itoa(i),
				meta.Hash.TerminalString(),
				strconv.Itoa(len(compiled)),
				strconv.Itoa(compiled.NumSlots()),
				strconv.Itoa(len(nodeList)),
				strconv.Itoa(nodeList.NumSlots()),
				strconv.Itoa(len(missing)),
				strconv.Itoa(len(extra)),
			})
		}
	}
	renderTable(os.Stdout, compareHeader, rows)
	return nil
}
