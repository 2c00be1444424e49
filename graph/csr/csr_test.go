package csr

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lcgraph"
	"github.com/hupe1980/lcgraph/locks"
	"github.com/hupe1980/lcgraph/resource"
	"github.com/hupe1980/lcgraph/topology"
)

// ring5 is the 4-node scenario: edges 0->1, 0->2, 1->2, 2->3, 3->0.
func ring5[E any](vals map[[2]lcgraph.Node]E) *topology.Builder[E] {
	b := topology.NewBuilder[E](4)
	for _, e := range [][2]lcgraph.Node{{0, 1}, {0, 2}, {1, 2}, {2, 3}, {3, 0}} {
		b.AddEdge(e[0], e[1], vals[e])
	}
	return b
}

func edgeDsts[N, E any](t *testing.T, g *Graph[N, E], n lcgraph.Node) []lcgraph.Node {
	t.Helper()
	seq, err := g.OutEdges(n, lcgraph.None)
	require.NoError(t, err)
	var out []lcgraph.Node
	for e := range seq {
		out = append(out, g.EdgeDst(e))
	}
	return out
}

func TestGraph_Scenario(t *testing.T) {
	ctx := context.Background()

	g := New[struct{}, struct{}](WithLogger(lcgraph.NewTextLogger(slog.LevelError)))
	require.NoError(t, g.Populate(ctx, ring5[struct{}](nil)))
	defer g.Close()

	assert.Equal(t, uint64(4), g.Size())
	assert.Equal(t, uint64(5), g.SizeEdges())

	assert.Equal(t, []lcgraph.Node{1, 2}, edgeDsts(t, g, 0))

	has, err := g.HasNeighbor(2, 3, lcgraph.None)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = g.HasNeighbor(3, 1, lcgraph.None)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestGraph_RoundTrip(t *testing.T) {
	ctx := context.Background()

	vals := map[[2]lcgraph.Node]int{
		{0, 1}: 5, {0, 2}: 1, {1, 2}: 7, {2, 3}: 9, {3, 0}: 3,
	}
	topo := ring5(vals)

	g := New[int, int]()
	require.NoError(t, g.Populate(ctx, topo))
	defer g.Close()

	// Every (src, dst, payload) triple reads back in original order.
	for n := range g.Nodes() {
		var wantDst []lcgraph.Node
		var wantVal []int
		for dst, v := range topo.Edges(n) {
			wantDst = append(wantDst, dst)
			wantVal = append(wantVal, v)
		}

		seq, err := g.OutEdges(n, lcgraph.None)
		require.NoError(t, err)
		var gotDst []lcgraph.Node
		var gotVal []int
		for e := range seq {
			gotDst = append(gotDst, g.EdgeDst(e))
			gotVal = append(gotVal, *g.EdgeData(e))
		}
		assert.Equal(t, wantDst, gotDst, "node %d destinations", n)
		assert.Equal(t, wantVal, gotVal, "node %d payloads", n)
	}
}

func TestGraph_EdgeRangesCoverAllEdges(t *testing.T) {
	ctx := context.Background()

	g := New[struct{}, struct{}]()
	require.NoError(t, g.Populate(ctx, ring5[struct{}](nil)))
	defer g.Close()

	var total uint64
	for n := range g.Nodes() {
		total += g.Degree(n)
		seq, err := g.OutEdges(n, lcgraph.None)
		require.NoError(t, err)
		for e := range seq {
			assert.Less(t, uint64(g.EdgeDst(e)), g.Size())
		}
	}
	assert.Equal(t, g.SizeEdges(), total)
}

func TestGraph_DataReadIdempotent(t *testing.T) {
	ctx := context.Background()

	g := New[int, int]()
	require.NoError(t, g.Populate(ctx, ring5(map[[2]lcgraph.Node]int{{0, 1}: 42})))
	defer g.Close()

	d, err := g.Data(1, lcgraph.None)
	require.NoError(t, err)
	*d = 99

	d2, err := g.Data(1, lcgraph.None)
	require.NoError(t, err)
	assert.Equal(t, 99, *d2)

	d3, err := g.Data(1, lcgraph.None)
	require.NoError(t, err)
	assert.Equal(t, 99, *d3)
}

func TestGraph_SortEdgesByData(t *testing.T) {
	ctx := context.Background()

	// Node 0 carries payloads {0->1: 5, 0->2: 1}; after sorting ascending,
	// destination 2 (payload 1) precedes destination 1 (payload 5).
	vals := map[[2]lcgraph.Node]int{{0, 1}: 5, {0, 2}: 1}
	g := New[struct{}, int]()
	require.NoError(t, g.Populate(ctx, ring5(vals)))
	defer g.Close()

	require.NoError(t, g.SortEdgesByData(0, func(a, b int) bool { return a < b }, lcgraph.None))

	seq, err := g.OutEdges(0, lcgraph.None)
	require.NoError(t, err)
	var dsts []lcgraph.Node
	var payloads []int
	for e := range seq {
		dsts = append(dsts, g.EdgeDst(e))
		payloads = append(payloads, *g.EdgeData(e))
	}
	assert.Equal(t, []lcgraph.Node{2, 1}, dsts)
	assert.Equal(t, []int{1, 5}, payloads)

	// Other nodes untouched.
	assert.Equal(t, []lcgraph.Node{2}, edgeDsts(t, g, 1))
}

func TestGraph_SortEdgesCustomComparator(t *testing.T) {
	ctx := context.Background()

	b := topology.NewBuilder[int](2)
	b.AddEdge(0, 1, 1)
	b.AddEdge(0, 0, 1)
	b.AddEdge(0, 1, 0)

	g := New[struct{}, int]()
	require.NoError(t, g.Populate(ctx, b))
	defer g.Close()

	// Order by destination, payload as tiebreak.
	require.NoError(t, g.SortEdges(0, func(a, b lcgraph.EdgeSortValue[int]) bool {
		if a.Dst != b.Dst {
			return a.Dst < b.Dst
		}
		return a.Data < b.Data
	}, lcgraph.None))

	seq, err := g.OutEdges(0, lcgraph.None)
	require.NoError(t, err)
	var got []lcgraph.EdgeSortValue[int]
	for e := range seq {
		got = append(got, lcgraph.EdgeSortValue[int]{Dst: g.EdgeDst(e), Data: *g.EdgeData(e)})
	}
	assert.Equal(t, []lcgraph.EdgeSortValue[int]{{Dst: 0, Data: 1}, {Dst: 1, Data: 0}, {Dst: 1, Data: 1}}, got)
}

func TestGraph_Acquisition(t *testing.T) {
	ctx := context.Background()

	g := New[int, struct{}]()
	require.NoError(t, g.Populate(ctx, ring5[struct{}](nil)))
	defer g.Close()

	mgr := locks.NewManager(g.Size())

	t.Run("conflict on held node", func(t *testing.T) {
		a := mgr.NewTask()
		b := mgr.NewTask()
		defer a.Release()
		defer b.Release()

		_, err := g.Data(2, lcgraph.Write(a))
		require.NoError(t, err)

		_, err = g.Data(2, lcgraph.Write(b))
		assert.ErrorIs(t, err, lcgraph.ErrConflict)
	})

	t.Run("FlagAll locks neighborhood", func(t *testing.T) {
		a := mgr.NewTask()
		b := mgr.NewTask()
		defer a.Release()
		defer b.Release()

		// Task a iterates node 0's edges under the strict policy, taking
		// 0 and its destinations 1 and 2.
		_, err := g.OutEdges(0, lcgraph.All(a))
		require.NoError(t, err)
		assert.True(t, a.Holds(0))
		assert.True(t, a.Holds(1))
		assert.True(t, a.Holds(2))

		// Task b then conflicts on the neighborhood of node 1.
		_, err = g.OutEdges(1, lcgraph.All(b))
		assert.ErrorIs(t, err, lcgraph.ErrConflict)
	})

	t.Run("FlagNone never conflicts", func(t *testing.T) {
		a := mgr.NewTask()
		defer a.Release()

		_, err := g.Data(3, lcgraph.Write(a))
		require.NoError(t, err)

		_, err = g.Data(3, lcgraph.None)
		assert.NoError(t, err)
	})
}

func TestGraph_PopulateErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("double populate", func(t *testing.T) {
		g := New[struct{}, struct{}]()
		require.NoError(t, g.Populate(ctx, ring5[struct{}](nil)))
		defer g.Close()

		assert.ErrorIs(t, g.Populate(ctx, ring5[struct{}](nil)), lcgraph.ErrPopulated)
	})

	t.Run("memory limit aborts construction", func(t *testing.T) {
		ctrl := resource.NewController(resource.Config{MemoryLimitBytes: 16})

		g := New[int, int](WithController(ctrl))
		err := g.Populate(ctx, ring5(map[[2]lcgraph.Node]int{}))
		require.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)

		// Everything reserved during the failed attempt was released.
		assert.Equal(t, int64(0), ctrl.MemoryUsage())
	})
}

func TestGraph_LocalNodes(t *testing.T) {
	ctx := context.Background()

	b := topology.NewBuilder[struct{}](11)
	b.AddEdge(0, 1, struct{}{})
	b.AddEdge(4, 2, struct{}{})
	b.AddEdge(10, 0, struct{}{})

	g := New[struct{}, struct{}]()
	require.NoError(t, g.Populate(ctx, b))
	defer g.Close()

	var all []lcgraph.Node
	for n := range g.Nodes() {
		all = append(all, n)
	}

	// Concatenating the per-worker chunks in tid order reproduces the global
	// sequence, for worker counts below and above the node count.
	for _, workers := range []int{1, 2, 3, 5, 16} {
		var concat []lcgraph.Node
		for tid := 0; tid < workers; tid++ {
			for n := range g.LocalNodes(tid, workers) {
				concat = append(concat, n)
			}
		}
		assert.Equal(t, all, concat, "workers=%d", workers)
	}
}

func TestGraph_OffHeap(t *testing.T) {
	ctx := context.Background()

	g := New[struct{}, int](WithOffHeap())
	require.NoError(t, g.Populate(ctx, ring5(map[[2]lcgraph.Node]int{{0, 1}: 5, {0, 2}: 1})))
	defer g.Close()

	assert.Equal(t, []lcgraph.Node{1, 2}, edgeDsts(t, g, 0))
}

func TestGraph_PayloadElision(t *testing.T) {
	ctx := context.Background()
	ctrl := resource.NewController(resource.Config{})

	g := New[struct{}, struct{}](WithController(ctrl))
	require.NoError(t, g.Populate(ctx, ring5[struct{}](nil)))
	defer g.Close()

	// Index (4×8) and destination (5×4) arrays reserve memory; the empty
	// node and edge payload arrays reserve nothing.
	assert.Equal(t, int64(4*8+5*4), ctrl.MemoryUsage())
}
