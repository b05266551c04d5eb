package aggregator

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jsign/trace-access-list/analysis"
	tt "github.com/jsign/trace-access-list/analysis/tracetest"
	"github.com/stretchr/testify/require"
)

var (
	sender = tt.Addr(0xaa, 0x01)
	a      = tt.Addr(0xbb, 0x02)
	b      = tt.Addr(0xcc, 0x03)
)

func slots(ns ...uint64) []uint256.Int {
	out := make([]uint256.Int, 0, len(ns))
	for _, n := range ns {
		out = append(out, *uint256.NewInt(n))
	}
	return out
}

func TestAggregateScenarioSingleTx(t *testing.T) {
	metas := []analysis.TxMeta{tt.Tx(sender, a)}
	traces := []analysis.Trace{tt.NewBuilder().Op("ADDRESS").SLoad(5).Trace()}

	got, err := Aggregate(context.Background(), metas, traces)
	require.NoError(t, err)
	require.Equal(t, analysis.BlockAccessList{
		{Address: sender, Slots: slots()},
		{Address: a, Slots: slots(5)},
	}, got)
}

func TestAggregateMergesAcrossTransactions(t *testing.T) {
	other := tt.Addr(0xab, 0x09)
	metas := []analysis.TxMeta{tt.Tx(sender, b), tt.Tx(other, b)}
	traces := []analysis.Trace{
		tt.NewBuilder().SLoad(1).Trace(),
		tt.NewBuilder().SLoad(2).SLoad(1).SStore(2, 7).Trace(),
	}

	got, err := Aggregate(context.Background(), metas, traces, WithWorkers(2))
	require.NoError(t, err)
	require.Equal(t, analysis.BlockAccessList{
		{Address: sender, Slots: slots()},
		{Address: other, Slots: slots()},
		{Address: b, Slots: slots(1, 2)},
	}, got)
	require.NoError(t, got.Validate())
}

func TestAggregateSortInvariant(t *testing.T) {
	var (
		metas  []analysis.TxMeta
		traces []analysis.Trace
	)
	for i := byte(20); i > 0; i-- {
		to := tt.Addr(i, i)
		metas = append(metas, tt.Tx(tt.Addr(0xf0, i), to))
		builder := tt.NewBuilder()
		for s := uint64(10); s > 0; s-- {
			builder.SLoad(s * uint64(i)).SLoad(s)
		}
		builder.Call("CALL", tt.Addr(0x01, 0xff-i), 0).SLoad(uint64(i)).Return()
		traces = append(traces, builder.Trace())
	}

	got, err := Aggregate(context.Background(), metas, traces, WithWorkers(4))
	require.NoError(t, err)
	require.NoError(t, got.Validate())
	require.Len(t, got, 60)
}

func TestAggregateIdempotent(t *testing.T) {
	metas := []analysis.TxMeta{tt.Tx(sender, a), tt.Tx(sender, b)}
	traces := []analysis.Trace{
		tt.NewBuilder().SLoad(3).Call("DELEGATECALL", b, 0).SLoad(1).Return().Trace(),
		tt.NewBuilder().SStore(8, 1).SLoad(3).Trace(),
	}

	got, err := Aggregate(context.Background(), metas, traces)
	require.NoError(t, err)
	require.Equal(t, got, Group(got.Accesses()))
}

func TestAggregateDelegateCall(t *testing.T) {
	metas := []analysis.TxMeta{tt.Tx(sender, a)}
	traces := []analysis.Trace{tt.NewBuilder().Call("DELEGATECALL", b, 0).SLoad(1).Return().Trace()}

	got, err := Aggregate(context.Background(), metas, traces)
	require.NoError(t, err)
	require.Equal(t, analysis.BlockAccessList{
		{Address: sender, Slots: slots()},
		{Address: a, Slots: slots(1)},
		{Address: b, Slots: slots()},
	}, got)
}

func TestAggregatePlainCall(t *testing.T) {
	metas := []analysis.TxMeta{tt.Tx(sender, a)}
	traces := []analysis.Trace{tt.NewBuilder().Call("CALL", b, 0).SLoad(1).Return().Trace()}

	got, err := Aggregate(context.Background(), metas, traces)
	require.NoError(t, err)
	require.Equal(t, analysis.BlockAccessList{
		{Address: sender, Slots: slots()},
		{Address: a, Slots: slots()},
		{Address: b, Slots: slots(1)},
	}, got)
}

func TestAggregateEmptyBlock(t *testing.T) {
	got, err := Aggregate(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestAggregateLengthMismatch(t *testing.T) {
	_, err := Aggregate(context.Background(), []analysis.TxMeta{tt.Tx(sender, a)}, nil)
	require.ErrorIs(t, err, analysis.ErrLengthMismatch)
}

func TestAggregateFailsWholeBlock(t *testing.T) {
	hash := common.HexToHash("0x01")
	metas := []analysis.TxMeta{tt.Tx(sender, a), tt.Tx(sender, b), tt.Tx(sender, a)}
	metas[1].Hash = hash
	traces := []analysis.Trace{
		tt.NewBuilder().SLoad(1).Trace(),
		tt.NewBuilder().Op("BOGUS").Trace(),
		tt.NewBuilder().Op("ALSOBOGUS").Trace(),
	}

	got, err := Aggregate(context.Background(), metas, traces, WithWorkers(3))
	require.Nil(t, got)
	require.ErrorIs(t, err, analysis.ErrUnsupportedOpcode)

	var txErr *analysis.TxError
	require.ErrorAs(t, err, &txErr)
	require.Equal(t, 1, txErr.TxIndex)
	require.Equal(t, hash, txErr.TxHash)

	var opErr *analysis.UnsupportedOpcodeError
	require.ErrorAs(t, err, &opErr)
	require.Equal(t, "BOGUS", opErr.Op)
}

func TestAggregateCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	metas := []analysis.TxMeta{tt.Tx(sender, a)}
	traces := []analysis.Trace{tt.NewBuilder().SLoad(1).Trace()}
	_, err := Aggregate(ctx, metas, traces)
	require.ErrorIs(t, err, context.Canceled)
}

func TestForTransaction(t *testing.T) {
	got, err := ForTransaction(tt.Tx(sender, a), tt.NewBuilder().SLoad(2).SLoad(2).Trace())
	require.NoError(t, err)
	require.Equal(t, analysis.BlockAccessList{
		{Address: sender, Slots: slots()},
		{Address: a, Slots: slots(2)},
	}, got)
}

func TestGroup(t *testing.T) {
	accesses := []analysis.StateAccess{
		analysis.StorageAccess(b, *uint256.NewInt(2), analysis.KindStorageWrite),
		analysis.AccountAccess(a),
		analysis.StorageAccess(b, *uint256.NewInt(1), analysis.KindStorageRead),
		analysis.StorageAccess(b, *uint256.NewInt(2), analysis.KindStorageRead),
	}
	require.Equal(t, analysis.BlockAccessList{
		{Address: a, Slots: slots()},
		{Address: b, Slots: slots(1, 2)},
	}, Group(accesses))
}
