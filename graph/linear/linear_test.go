package linear

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lcgraph"
	"github.com/hupe1980/lcgraph/locks"
	"github.com/hupe1980/lcgraph/resource"
	"github.com/hupe1980/lcgraph/topology"
)

func ring5() *topology.Builder[struct{}] {
	b := topology.NewBuilder[struct{}](4)
	b.AddEdge(0, 1, struct{}{})
	b.AddEdge(0, 2, struct{}{})
	b.AddEdge(1, 2, struct{}{})
	b.AddEdge(2, 3, struct{}{})
	b.AddEdge(3, 0, struct{}{})
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

func TestGraph_Populate(t *testing.T) {
	ctx := context.Background()

	g := New[struct{}, struct{}]()
	require.NoError(t, g.Populate(ctx, ring5()))
	defer g.Close()

	assert.Equal(t, uint64(4), g.Size())
	assert.Equal(t, uint64(5), g.SizeEdges())

	assert.Equal(t, []lcgraph.Node{1, 2}, edgeDsts(t, g, 0))
	assert.Equal(t, []lcgraph.Node{2}, edgeDsts(t, g, 1))
	assert.Equal(t, []lcgraph.Node{3}, edgeDsts(t, g, 2))
	assert.Equal(t, []lcgraph.Node{0}, edgeDsts(t, g, 3))

	var total uint64
	for n := range g.Nodes() {
		total += g.Degree(n)
	}
	assert.Equal(t, g.SizeEdges(), total)

	ok, err := g.HasNeighbor(3, 0, lcgraph.None)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = g.HasNeighbor(0, 3, lcgraph.None)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, g.Populate(ctx, ring5()), lcgraph.ErrPopulated)
}

func TestGraph_LocalNodes(t *testing.T) {
	ctx := context.Background()

	g := New[struct{}, struct{}]()
	require.NoError(t, g.Populate(ctx, ring5()))
	defer g.Close()

	var all []lcgraph.Node
	for n := range g.Nodes() {
		all = append(all, n)
	}

	// Concatenating the per-worker chunks in tid order reproduces the global
	// sequence, for worker counts below and above the node count.
	for _, workers := range []int{1, 2, 3, 7} {
		var concat []lcgraph.Node
		for tid := 0; tid < workers; tid++ {
			for n := range g.LocalNodes(tid, workers) {
				concat = append(concat, n)
			}
		}
		assert.Equal(t, all, concat, "workers=%d", workers)
	}
}

func TestGraph_Payloads(t *testing.T) {
	ctx := context.Background()

	b := topology.NewBuilder[float64](3)
	b.AddEdge(0, 1, 1.5)
	b.AddEdge(0, 2, 2.5)
	b.AddEdge(1, 2, 3.5)

	g := New[uint64, float64]()
	require.NoError(t, g.Populate(ctx, b))
	defer g.Close()

	for n := range g.Nodes() {
		d, err := g.Data(n, lcgraph.None)
		require.NoError(t, err)
		assert.Zero(t, *d)
		*d = uint64(n) + 100
	}
	d, err := g.Data(1, lcgraph.None)
	require.NoError(t, err)
	assert.Equal(t, uint64(101), *d)

	seq, err := g.OutEdges(0, lcgraph.None)
	require.NoError(t, err)
	var vals []float64
	for e := range seq {
		vals = append(vals, *g.EdgeData(e))
	}
	assert.Equal(t, []float64{1.5, 2.5}, vals)
}

func TestGraph_SortEdges(t *testing.T) {
	ctx := context.Background()

	b := topology.NewBuilder[int](3)
	b.AddEdge(0, 1, 5)
	b.AddEdge(0, 2, 1)

	g := New[struct{}, int]()
	require.NoError(t, g.Populate(ctx, b))
	defer g.Close()

	require.NoError(t, g.SortEdgesByData(0, func(a, b int) bool { return a < b }, lcgraph.None))
	assert.Equal(t, []lcgraph.Node{2, 1}, edgeDsts(t, g, 0))

	require.NoError(t, g.SortEdges(0, func(a, b lcgraph.EdgeSortValue[int]) bool {
		return a.Dst < b.Dst
	}, lcgraph.None))
	assert.Equal(t, []lcgraph.Node{1, 2}, edgeDsts(t, g, 0))
}

func TestGraph_Acquisition(t *testing.T) {
	ctx := context.Background()

	g := New[struct{}, struct{}]()
	require.NoError(t, g.Populate(ctx, ring5()))
	defer g.Close()

	m := locks.NewManager(g.Size())

	owner, other := m.NewTask(), m.NewTask()
	defer owner.Release()
	defer other.Release()

	require.NoError(t, owner.Acquire(2))

	_, err := g.Data(2, lcgraph.Write(other))
	assert.ErrorIs(t, err, lcgraph.ErrConflict)

	// FlagAll on node 1 needs its only neighbor, node 2, which is owned.
	_, err = g.OutEdges(1, lcgraph.All(other))
	assert.ErrorIs(t, err, lcgraph.ErrConflict)

	// The owner itself traverses freely.
	_, err = g.OutEdges(1, lcgraph.All(owner))
	assert.NoError(t, err)
}

func TestGraph_Controller(t *testing.T) {
	ctx := context.Background()

	t.Run("reservation released on close", func(t *testing.T) {
		ctrl := resource.NewController(resource.Config{})

		g := New[struct{}, struct{}](WithController(ctrl))
		require.NoError(t, g.Populate(ctx, ring5()))
		assert.Positive(t, ctrl.MemoryUsage())

		require.NoError(t, g.Close())
		assert.Equal(t, int64(0), ctrl.MemoryUsage())
	})

	t.Run("limit aborts population", func(t *testing.T) {
		ctrl := resource.NewController(resource.Config{MemoryLimitBytes: 16})

		g := New[struct{}, struct{}](WithController(ctrl))
		require.ErrorIs(t, g.Populate(ctx, ring5()), resource.ErrMemoryLimitExceeded)
		assert.Equal(t, int64(0), ctrl.MemoryUsage())
	})
}
