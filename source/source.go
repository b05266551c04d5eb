// Package source defines where blocks and their execution traces come from.
package source

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jsign/trace-access-list/analysis"
)

var ErrBlockNotFound = errors.New("block not found")

// Block is a block's transactions and their traces, in block order.
type Block struct {
	Number uint64
	Hash   common.Hash
	Metas  []analysis.TxMeta
	Traces []analysis.Trace
}

// Source provides blocks with their traces.
type Source interface {
	Block(ctx context.Context, number uint64) (*Block, error)
}
