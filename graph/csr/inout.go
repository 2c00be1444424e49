package csr

import (
	"context"
	"errors"
	"iter"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/lcgraph"
	"github.com/hupe1980/lcgraph/topology"
)

// InOut is a CSR graph that additionally supports in-edge traversal.
//
// Two construction modes exist. PopulateSymmetric asserts the input is
// symmetric and aliases the forward arrays for reverse traversal at zero
// extra memory. PopulateWithTranspose materializes a second index/
// destination/payload triple from an independently supplied transposed
// topology whose totals must match the forward graph's exactly.
type InOut[N, E any] struct {
	Graph[N, E]

	in        topoArrays[E]
	symmetric bool
}

// NewInOut creates an empty bidirectional CSR graph.
func NewInOut[N, E any](opts ...Option) *InOut[N, E] {
	g := &InOut[N, E]{}
	for _, opt := range opts {
		opt(&g.opts)
	}
	if g.opts.Logger == nil {
		g.opts.Logger = lcgraph.NoopLogger()
	}
	return g
}

// ErrNoInEdges is returned when an InOut graph is populated through the
// forward-only Populate instead of one of its own construction modes.
var ErrNoInEdges = errors.New("csr: InOut requires PopulateSymmetric or PopulateWithTranspose")

// Populate shadows the embedded forward-only construction. A graph built
// through it would have no in-edge storage, so the call is rejected with
// ErrNoInEdges; use PopulateSymmetric or PopulateWithTranspose.
func (g *InOut[N, E]) Populate(context.Context, topology.Source[E]) error {
	return ErrNoInEdges
}

// PopulateSymmetric builds the graph from a topology the caller asserts to
// be symmetric ((u,v) in E implies (v,u) in E). In-edge accessors reuse the
// forward arrays directly; no overlay storage is allocated.
func (g *InOut[N, E]) PopulateSymmetric(ctx context.Context, topo topology.Source[E]) error {
	if err := g.Graph.Populate(ctx, topo); err != nil {
		return err
	}
	g.in = topoArrays[E]{ind: g.edgeIndData, dst: g.edgeDst, data: g.edgeData}
	g.symmetric = true
	return nil
}

// PopulateWithTranspose builds the forward graph from topo and the in-edge
// overlay from transpose. The two sources must agree on node and edge
// counts; a mismatch fails before any overlay storage is allocated. The two
// array sets are populated concurrently.
func (g *InOut[N, E]) PopulateWithTranspose(ctx context.Context, topo, transpose topology.Source[E]) error {
	if topo.Size() != transpose.Size() {
		return &lcgraph.ErrCountMismatch{What: "nodes", Graph: topo.Size(), Transpose: transpose.Size()}
	}
	if topo.SizeEdges() != transpose.SizeEdges() {
		return &lcgraph.ErrCountMismatch{What: "edges", Graph: topo.SizeEdges(), Transpose: transpose.SizeEdges()}
	}

	var in *topoArrays[E]

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return g.Graph.Populate(egCtx, topo)
	})
	eg.Go(func() error {
		t, err := populateArrays(egCtx, transpose, g.opts)
		if err != nil {
			return err
		}
		in = t
		return nil
	})

	if err := eg.Wait(); err != nil {
		if in != nil {
			in.close()
		}
		g.Graph.Close()
		g.Graph = Graph[N, E]{opts: g.opts}
		return err
	}

	g.in = *in
	return nil
}

func (g *InOut[N, E]) inRawBegin(n lcgraph.Node) uint64 {
	if n == 0 {
		return 0
	}
	return *g.in.ind.At(uint64(n) - 1)
}

func (g *InOut[N, E]) inRawEnd(n lcgraph.Node) uint64 {
	return *g.in.ind.At(uint64(n))
}

// InDegree returns node n's in-degree.
func (g *InOut[N, E]) InDegree(n lcgraph.Node) uint64 {
	return g.inRawEnd(n) - g.inRawBegin(n)
}

// InEdges returns node n's incoming edge handles in storage order, applying
// the access policy exactly as OutEdges does: n first, then every in-edge
// source under FlagAll.
func (g *InOut[N, E]) InEdges(n lcgraph.Node, ac lcgraph.Access) (iter.Seq[lcgraph.Edge], error) {
	if err := ac.Acquire(n); err != nil {
		return nil, err
	}

	begin, end := g.inRawBegin(n), g.inRawEnd(n)

	if ac.LocksNeighbors() {
		dsts := g.in.dst.Slice()
		for i := begin; i != end; i++ {
			if err := ac.Acquire(dsts[i]); err != nil {
				return nil, err
			}
		}
	}

	return func(yield func(lcgraph.Edge) bool) {
		for e := begin; e != end; e++ {
			if !yield(e) {
				return
			}
		}
	}, nil
}

// InEdgeDst returns the node on the far side of in-edge e (the edge's
// original source).
func (g *InOut[N, E]) InEdgeDst(e lcgraph.Edge) lcgraph.Node {
	return *g.in.dst.At(e)
}

// InEdgeData returns a pointer to in-edge e's payload. In symmetric mode
// this is the forward edge's payload; in transpose mode it is the copy
// materialized from the transpose source.
func (g *InOut[N, E]) InEdgeData(e lcgraph.Edge) *E {
	return g.in.data.At(e)
}

// SortInEdgesByData sorts node n's incoming edges in place by payload under
// less.
func (g *InOut[N, E]) SortInEdgesByData(n lcgraph.Node, less func(a, b E) bool, ac lcgraph.Access) error {
	if err := ac.Acquire(n); err != nil {
		return err
	}
	begin, end := g.inRawBegin(n), g.inRawEnd(n)
	sortEdgeRange(g.in.dst.Slice()[begin:end], g.in.data.Slice()[begin:end], func(data []E, i, j int) bool {
		return less(data[i], data[j])
	})
	return nil
}

// SortInEdges sorts node n's incoming edges in place under a comparator over
// (source, payload) pairs.
func (g *InOut[N, E]) SortInEdges(n lcgraph.Node, less func(a, b lcgraph.EdgeSortValue[E]) bool, ac lcgraph.Access) error {
	if err := ac.Acquire(n); err != nil {
		return err
	}
	begin, end := g.inRawBegin(n), g.inRawEnd(n)
	dst, data := g.in.dst.Slice()[begin:end], g.in.data.Slice()[begin:end]
	sortEdgeRange(dst, data, func(data []E, i, j int) bool {
		return less(
			lcgraph.EdgeSortValue[E]{Dst: dst[i], Data: data[i]},
			lcgraph.EdgeSortValue[E]{Dst: dst[j], Data: data[j]},
		)
	})
	return nil
}

// Close releases forward storage and, in transpose mode, the overlay's.
func (g *InOut[N, E]) Close() error {
	err := g.Graph.Close()
	if !g.symmetric {
		if cerr := g.in.close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
