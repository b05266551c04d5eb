// Package aggregator folds the state accesses of every transaction in a block
// into a single sorted block access list.
package aggregator

import (
	"context"
	"fmt"
	"runtime"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jsign/trace-access-list/analysis"
	"github.com/jsign/trace-access-list/analysis/extractor"
	"golang.org/x/sync/errgroup"
)

type config struct {
	workers int
}

// Option configures Aggregate.
type Option func(*config)

// WithWorkers bounds the number of transactions extracted concurrently.
// Values below one mean sequential extraction.
func WithWorkers(n int) Option {
	return func(c *config) {
		if n < 1 {
			n = 1
		}
		c.workers = n
	}
}

// Aggregate extracts the accesses of every transaction and groups them into a
// BlockAccessList. metas and traces are parallel, in block order. If any
// transaction fails, the failure with the lowest transaction index is returned
// and no list is produced.
func Aggregate(ctx context.Context, metas []analysis.TxMeta, traces []analysis.Trace, opts ...Option) (analysis.BlockAccessList, error) {
	if len(metas) != len(traces) {
		return nil, fmt.Errorf("%w: %d transactions, %d traces", analysis.ErrLengthMismatch, len(metas), len(traces))
	}
	cfg := config{workers: runtime.NumCPU()}
	for _, opt := range opts {
		opt(&cfg)
	}

	results := make([][]analysis.StateAccess, len(metas))
	errs := make([]error, len(metas))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workers)
	for i := range metas {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], errs[i] = extractor.Extract(metas[i], traces[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i, err := range errs {
		if err != nil {
			return nil, &analysis.TxError{TxIndex: i, TxHash: metas[i].Hash, Err: err}
		}
	}
	return Group(slices.Concat(results...)), nil
}

// ForTransaction returns the access list of a single transaction.
func ForTransaction(meta analysis.TxMeta, trace analysis.Trace) (analysis.BlockAccessList, error) {
	accesses, err := extractor.Extract(meta, trace)
	if err != nil {
		return nil, err
	}
	return Group(accesses), nil
}

// Group collects accesses by address, keeping the distinct storage slots of
// each address. Addresses and slots are sorted ascending. Access kinds are
// not distinguished. Group(list.Accesses()) returns list unchanged.
func Group(accesses []analysis.StateAccess) analysis.BlockAccessList {
	byAddr := make(map[common.Address]map[uint256.Int]struct{})
	for _, access := range accesses {
		slots, ok := byAddr[access.Address]
		if !ok {
			slots = make(map[uint256.Int]struct{})
			byAddr[access.Address] = slots
		}
		if access.Slot != nil {
			slots[*access.Slot] = struct{}{}
		}
	}

	list := make(analysis.BlockAccessList, 0, len(byAddr))
	for addr, set := range byAddr {
		slots := make([]uint256.Int, 0, len(set))
		for slot := range set {
			slots = append(slots, slot)
		}
		slices.SortFunc(slots, func(a, b uint256.Int) int { return a.Cmp(&b) })
		list = append(list, analysis.AccountAccessList{Address: addr, Slots: slots})
	}
	slices.SortFunc(list, func(a, b analysis.AccountAccessList) int { return a.Address.Cmp(b.Address) })
	return list
}
