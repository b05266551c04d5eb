// Package rpcsource fetches blocks and struct logger traces from an Ethereum
// node over JSON-RPC.
package rpcsource

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"github.com/jsign/trace-access-list/analysis"
	"github.com/jsign/trace-access-list/source"
	"golang.org/x/time/rate"
)

// traceConfig keeps the struct logger output to what extraction needs.
var traceConfig = map[string]any{
	"disableStorage":   true,
	"enableMemory":     false,
	"enableReturnData": false,
}

type rpcTransaction struct {
	Hash     common.Hash     `json:"hash"`
	From     common.Address  `json:"from"`
	To       *common.Address `json:"to"`
	Value    *hexutil.Big    `json:"value"`
	Input    hexutil.Bytes   `json:"input"`
	Gas      hexutil.Uint64  `json:"gas"`
	GasPrice *hexutil.Big    `json:"gasPrice"`
	Nonce    hexutil.Uint64  `json:"nonce"`
}

type rpcBlock struct {
	Number       hexutil.Uint64   `json:"number"`
	Hash         common.Hash      `json:"hash"`
	Transactions []rpcTransaction `json:"transactions"`
}

type rpcStructLog struct {
	Pc      uint64   `json:"pc"`
	Op      string   `json:"op"`
	Gas     uint64   `json:"gas"`
	GasCost uint64   `json:"gasCost"`
	Depth   int      `json:"depth"`
	Stack   []string `json:"stack"`
	Error   string   `json:"error,omitempty"`
}

type rpcTrace struct {
	Gas         uint64         `json:"gas"`
	Failed      bool           `json:"failed"`
	ReturnValue string         `json:"returnValue"`
	StructLogs  []rpcStructLog `json:"structLogs"`
}

type rpcTxTrace struct {
	TxHash common.Hash `json:"txHash"`
	Result *rpcTrace   `json:"result"`
	Error  string      `json:"error"`
}

type accessListResult struct {
	AccessList *types.AccessList `json:"accessList"`
	Error      string            `json:"error,omitempty"`
	GasUsed    hexutil.Uint64    `json:"gasUsed"`
}

// Option configures a Source.
type Option func(*Source)

// WithRateLimit throttles outgoing requests. A non-positive rps disables
// throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Source) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// Source implements source.Source against a node exposing the eth and debug
// namespaces.
type Source struct {
	client  *rpc.Client
	limiter *rate.Limiter
	logger  log.Logger
}

var _ source.Source = (*Source)(nil)

// Dial connects to the node at rawurl.
func Dial(ctx context.Context, rawurl string, opts ...Option) (*Source, error) {
	client, err := rpc.DialContext(ctx, rawurl)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", rawurl, err)
	}
	return New(client, opts...), nil
}

// New wraps an existing client.
func New(client *rpc.Client, opts ...Option) *Source {
	s := &Source{client: client, logger: log.New("module", "rpcsource")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Source) Close() { s.client.Close() }

func (s *Source) call(ctx context.Context, result any, method string, args ...any) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return s.client.CallContext(ctx, result, method, args...)
}

// BlockNumber returns the node's head block number.
func (s *Source) BlockNumber(ctx context.Context) (uint64, error) {
	var head hexutil.Uint64
	if err := s.call(ctx, &head, "eth_blockNumber"); err != nil {
		return 0, fmt.Errorf("eth_blockNumber: %w", err)
	}
	return uint64(head), nil
}

// Block fetches the block's transactions and traces them with the struct
// logger.
func (s *Source) Block(ctx context.Context, number uint64) (*source.Block, error) {
	var block *rpcBlock
	if err := s.call(ctx, &block, "eth_getBlockByNumber", hexutil.EncodeUint64(number), true); err != nil {
		return nil, fmt.Errorf("eth_getBlockByNumber %d: %w", number, err)
	}
	if block == nil {
		return nil, fmt.Errorf("%w: %d", source.ErrBlockNotFound, number)
	}

	var traces []rpcTxTrace
	if len(block.Transactions) > 0 {
		if err := s.call(ctx, &traces, "debug_traceBlockByNumber", hexutil.EncodeUint64(number), traceConfig); err != nil {
			return nil, fmt.Errorf("debug_traceBlockByNumber %d: %w", number, err)
		}
	}
	if len(traces) != len(block.Transactions) {
		return nil, fmt.Errorf("block %d: %w: %d transactions, %d traces", number, analysis.ErrLengthMismatch, len(block.Transactions), len(traces))
	}

	out := &source.Block{
		Number: uint64(block.Number),
		Hash:   block.Hash,
		Metas:  make([]analysis.TxMeta, len(block.Transactions)),
		Traces: make([]analysis.Trace, len(traces)),
	}
	for i, tx := range block.Transactions {
		meta, err := convertTx(tx)
		if err != nil {
			return nil, fmt.Errorf("block %d tx %d: %w", number, i, err)
		}
		out.Metas[i] = meta

		tr := traces[i]
		if tr.TxHash != (common.Hash{}) && tr.TxHash != tx.Hash {
			return nil, fmt.Errorf("block %d tx %d: trace for %v, want %v", number, i, tr.TxHash, tx.Hash)
		}
		if tr.Result == nil {
			return nil, fmt.Errorf("block %d tx %d: tracing failed: %s", number, i, tr.Error)
		}
		if out.Traces[i], err = convertTrace(tr.Result); err != nil {
			return nil, fmt.Errorf("block %d tx %d: %w", number, i, err)
		}
	}
	s.logger.Debug("Fetched block", "number", number, "txs", len(out.Metas))
	return out, nil
}

// CreateAccessList asks the node for the access list of meta executed on top
// of the state at block number.
func (s *Source) CreateAccessList(ctx context.Context, meta analysis.TxMeta, number uint64) (types.AccessList, uint64, error) {
	args := map[string]any{
		"from":  meta.Sender,
		"input": hexutil.Bytes(meta.Input),
		"gas":   hexutil.Uint64(meta.Gas),
	}
	if meta.To != nil {
		args["to"] = *meta.To
	}
	if meta.Value != nil {
		args["value"] = (*hexutil.Big)(meta.Value.ToBig())
	}
	var res accessListResult
	if err := s.call(ctx, &res, "eth_createAccessList", args, hexutil.EncodeUint64(number)); err != nil {
		return nil, 0, fmt.Errorf("eth_createAccessList: %w", err)
	}
	if res.Error != "" {
		return nil, 0, fmt.Errorf("eth_createAccessList: %s", res.Error)
	}
	if res.AccessList == nil {
		return types.AccessList{}, uint64(res.GasUsed), nil
	}
	return *res.AccessList, uint64(res.GasUsed), nil
}

func convertTx(tx rpcTransaction) (analysis.TxMeta, error) {
	value, err := toUint256(tx.Value)
	if err != nil {
		return analysis.TxMeta{}, fmt.Errorf("value: %w", err)
	}
	gasPrice, err := toUint256(tx.GasPrice)
	if err != nil {
		return analysis.TxMeta{}, fmt.Errorf("gas price: %w", err)
	}
	return analysis.TxMeta{
		Hash:     tx.Hash,
		Sender:   tx.From,
		To:       tx.To,
		Value:    value,
		Input:    tx.Input,
		Gas:      uint64(tx.Gas),
		GasPrice: gasPrice,
		Nonce:    uint64(tx.Nonce),
	}, nil
}

// convertTrace turns a struct logger result into a Trace. The struct logger
// reports the top level frame at depth 1.
func convertTrace(tr *rpcTrace) (analysis.Trace, error) {
	out := analysis.Trace{
		Gas:         tr.Gas,
		Failed:      tr.Failed,
		ReturnValue: common.FromHex(tr.ReturnValue),
		StructLogs:  make([]analysis.TraceEntry, len(tr.StructLogs)),
	}
	for i, l := range tr.StructLogs {
		if l.Depth < 1 {
			return analysis.Trace{}, fmt.Errorf("struct log %d: invalid depth %d", i, l.Depth)
		}
		stack := make([]uint256.Int, len(l.Stack))
		for j, word := range l.Stack {
			if err := parseWord(&stack[j], word); err != nil {
				return analysis.Trace{}, fmt.Errorf("struct log %d stack item %d: %w", i, j, err)
			}
		}
		out.StructLogs[i] = analysis.TraceEntry{
			PC:      l.Pc,
			Op:      l.Op,
			Gas:     l.Gas,
			GasCost: l.GasCost,
			Depth:   l.Depth - 1,
			Stack:   stack,
		}
	}
	return out, nil
}

// parseWord accepts both the minimal 0x-prefixed form and the zero padded
// form emitted by older nodes.
func parseWord(z *uint256.Int, s string) error {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		z.Clear()
		return nil
	}
	b, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return fmt.Errorf("invalid hex word %q", s)
	}
	if b.Sign() < 0 {
		return fmt.Errorf("negative word %q", s)
	}
	if z.SetFromBig(b) {
		return errors.New("word overflows 256 bits")
	}
	return nil
}

func toUint256(b *hexutil.Big) (*uint256.Int, error) {
	if b == nil {
		return new(uint256.Int), nil
	}
	v, overflow := uint256.FromBig((*big.Int)(b))
	if overflow {
		return nil, errors.New("overflows 256 bits")
	}
	return v, nil
}
