package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/jsign/trace-access-list/analysis"
	"github.com/jsign/trace-access-list/analysis/aggregator"
	"github.com/jsign/trace-access-list/source"
	"github.com/jsign/trace-access-list/source/gobsource"
	"github.com/jsign/trace-access-list/source/rpcsource"
)

type compileMetrics struct {
	timer    metrics.Timer
	blocks   metrics.Counter
	txs      metrics.Counter
	accounts metrics.Histogram
	failures metrics.Meter
}

// newCompileMetrics registers the compile metrics. They are no-ops unless
// metrics.Enabled is set beforehand.
func newCompileMetrics() *compileMetrics {
	return &compileMetrics{
		timer:    metrics.NewRegisteredTimer("accesslist/compile", nil),
		blocks:   metrics.NewRegisteredCounter("accesslist/blocks", nil),
		txs:      metrics.NewRegisteredCounter("accesslist/txs", nil),
		accounts: metrics.NewRegisteredHistogram("accesslist/accounts", nil, metrics.NewExpDecaySample(1028, 0.015)),
		failures: metrics.NewRegisteredMeter("accesslist/failures", nil),
	}
}

type blockResult struct {
	err error

	number   uint64
	hash     common.Hash
	txs      int
	list     analysis.BlockAccessList
	duration time.Duration
}

type compiler struct {
	src       source.Source
	txWorkers int
	metrics   *compileMetrics
}

// compileBlock fetches a block and aggregates its access list. Any failure
// discards the whole block.
func (c *compiler) compileBlock(ctx context.Context, number uint64) blockResult {
	block, err := c.src.Block(ctx, number)
	if err != nil {
		c.metrics.failures.Mark(1)
		return blockResult{number: number, err: fmt.Errorf("error fetching block %d: %w", number, err)}
	}
	start := time.Now()
	list, err := aggregator.Aggregate(ctx, block.Metas, block.Traces, aggregator.WithWorkers(c.txWorkers))
	if err != nil {
		c.metrics.failures.Mark(1)
		return blockResult{number: number, err: fmt.Errorf("error compiling block %d: %w", number, err)}
	}
	c.metrics.timer.UpdateSince(start)
	c.metrics.blocks.Inc(1)
	c.metrics.txs.Inc(int64(len(block.Metas)))
	c.metrics.accounts.Update(int64(len(list)))

	return blockResult{
		number:   number,
		hash:     block.Hash,
		txs:      len(block.Metas),
		list:     list,
		duration: time.Since(start),
	}
}

func (c *compiler) processBlocks(ctx context.Context, numbers []uint64, out chan<- blockResult) {
	for _, number := range numbers {
		if ctx.Err() != nil {
			out <- blockResult{number: number, err: ctx.Err()}
			continue
		}
		out <- c.compileBlock(ctx, number)
	}
}

// run splices numbers across workers and hands every result to fn in
// completion order. The first error returned by fn, or carried by a result,
// stops the run.
func (c *compiler) run(ctx context.Context, numbers []uint64, workers int, fn func(blockResult) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if workers > len(numbers) {
		workers = len(numbers)
	}
	if workers < 1 {
		return nil
	}
	sliceSize := len(numbers) / workers
	results := make(chan blockResult, len(numbers))
	for i := 0; i < workers; i++ {
		if i == workers-1 {
			go c.processBlocks(ctx, numbers[i*sliceSize:], results)
		} else {
			go c.processBlocks(ctx, numbers[i*sliceSize:(i+1)*sliceSize], results)
		}
	}

	var firstErr error
	for i := 0; i < len(numbers); i++ {
		res := <-results
		if firstErr != nil {
			continue
		}
		if res.err != nil {
			firstErr = res.err
			cancel()
			continue
		}
		if err := fn(res); err != nil {
			firstErr = err
			cancel()
			continue
		}
		if len(numbers) >= 20 && (i+1)%(len(numbers)/20) == 0 {
			log.Info("Compiling blocks", "progress", fmt.Sprintf("%.2f%%", float64(i+1)/float64(len(numbers))*100))
		}
	}
	return firstErr
}

// openSource returns the trace directory source when one is configured, and
// the RPC source otherwise.
func openSource(ctx context.Context, cfg config) (source.Source, func(), error) {
	if cfg.Compile.TracesDir != "" {
		return gobsource.New(cfg.Compile.TracesDir), func() {}, nil
	}
	src, err := dialRPC(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return src, src.Close, nil
}

func dialRPC(ctx context.Context, cfg config) (*rpcsource.Source, error) {
	return rpcsource.Dial(ctx, cfg.RPC.URL, rpcsource.WithRateLimit(cfg.RPC.RateLimit, cfg.RPC.Burst))
}

// blockRange returns the numbers in [from, to]; to defaults to from.
func blockRange(from, to uint64) ([]uint64, error) {
	if to == 0 {
		to = from
	}
	if from > to {
		return nil, fmt.Errorf("invalid block range [%d, %d]", from, to)
	}
	numbers := make([]uint64, 0, to-from+1)
	for n := from; ; n++ {
		numbers = append(numbers, n)
		if n == to {
			return numbers, nil
		}
	}
}
