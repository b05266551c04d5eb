package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

type headSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// API is the accesslist JSON-RPC namespace.
type API struct {
	c *compiler
}

func newAPI(c *compiler) *API {
	return &API{c: c}
}

// Compile returns the access list of a block. Only numbers and "latest" are
// accepted.
func (api *API) Compile(ctx context.Context, number rpc.BlockNumber) (*compiledBlock, error) {
	n, err := api.resolve(ctx, number)
	if err != nil {
		return nil, err
	}
	res := api.c.compileBlock(ctx, n)
	if res.err != nil {
		return nil, res.err
	}
	return &compiledBlock{Number: hexutil.Uint64(res.number), Hash: res.hash, AccessList: res.list}, nil
}

func (api *API) resolve(ctx context.Context, number rpc.BlockNumber) (uint64, error) {
	if number >= 0 {
		return uint64(number.Int64()), nil
	}
	if number == rpc.LatestBlockNumber {
		if heads, ok := api.c.src.(headSource); ok {
			return heads.BlockNumber(ctx)
		}
	}
	return 0, fmt.Errorf("block tag %q not supported", number.String())
}
