package csr

import (
	"context"
	"fmt"
	"iter"
	"math"
	"time"
	"unsafe"

	"github.com/hupe1980/lcgraph"
	"github.com/hupe1980/lcgraph/larray"
	"github.com/hupe1980/lcgraph/resource"
	"github.com/hupe1980/lcgraph/topology"
)

// Options contains configuration options for CSR graphs.
type Options struct {
	// Controller accounts for the memory reserved by the backing arrays and
	// may throttle population bandwidth.
	Controller *resource.Controller

	// OffHeap places the index and destination arrays in anonymous mappings,
	// keeping large topologies out of GC scans. Payload arrays stay on the
	// Go heap so payload types may contain pointers.
	OffHeap bool

	// Logger receives construction events. Defaults to a no-op logger.
	Logger *lcgraph.Logger
}

// Option is a configuration option for CSR graphs.
type Option func(*Options)

// WithController sets the resource controller.
func WithController(c *resource.Controller) Option {
	return func(o *Options) { o.Controller = c }
}

// WithOffHeap places topology arrays off-heap.
func WithOffHeap() Option {
	return func(o *Options) { o.OffHeap = true }
}

// WithLogger sets the logger for construction events.
func WithLogger(l *lcgraph.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// Graph is a compressed-sparse-row graph with node payloads of type N and
// edge payloads of type E. The zero value is empty; call Populate exactly
// once before traversal.
//
// Edge handles are indices into the destination array.
type Graph[N, E any] struct {
	nodeData    *larray.Array[N]
	edgeIndData *larray.Array[uint64]
	edgeDst     *larray.Array[lcgraph.Node]
	edgeData    *larray.Array[E]

	numNodes uint64
	numEdges uint64

	opts Options
}

var _ lcgraph.Graph[int, int] = (*Graph[int, int])(nil)

// New creates an empty CSR graph.
func New[N, E any](opts ...Option) *Graph[N, E] {
	g := &Graph[N, E]{}
	for _, opt := range opts {
		opt(&g.opts)
	}
	if g.opts.Logger == nil {
		g.opts.Logger = lcgraph.NoopLogger()
	}
	return g
}

// topoArrays holds the index/destination/payload triple built from one
// topology source. The forward graph owns one; the transpose overlay owns a
// second or aliases the first.
type topoArrays[E any] struct {
	ind  *larray.Array[uint64]
	dst  *larray.Array[lcgraph.Node]
	data *larray.Array[E]
}

func (t *topoArrays[E]) close() error {
	var err error
	if t.ind != nil {
		err = t.ind.Close()
	}
	if t.dst != nil {
		if cerr := t.dst.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if t.data != nil {
		if cerr := t.data.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// populateArrays allocates the triple and bulk-copies the source into it.
// One O(V+E) linear pass, no intermediate structure.
func populateArrays[E any](ctx context.Context, topo topology.Source[E], opts Options) (*topoArrays[E], error) {
	numNodes, numEdges := topo.Size(), topo.SizeEdges()

	topoOpts := []larray.Option{larray.WithController(opts.Controller)}
	if opts.OffHeap {
		topoOpts = append(topoOpts, larray.WithOffHeap())
	}

	t := &topoArrays[E]{}

	var err error
	if t.ind, err = larray.Alloc[uint64](ctx, numNodes, topoOpts...); err != nil {
		return nil, fmt.Errorf("csr: allocate edge index: %w", err)
	}
	if t.dst, err = larray.Alloc[lcgraph.Node](ctx, numEdges, topoOpts...); err != nil {
		t.close()
		return nil, fmt.Errorf("csr: allocate destinations: %w", err)
	}
	// Payloads may hold pointers; always heap-backed.
	if t.data, err = larray.Alloc[E](ctx, numEdges, larray.WithController(opts.Controller)); err != nil {
		t.close()
		return nil, fmt.Errorf("csr: allocate edge data: %w", err)
	}

	if err = t.ind.CopyIn(ctx, topo.EdgeIndex()); err != nil {
		t.close()
		return nil, fmt.Errorf("csr: copy edge index: %w", err)
	}
	if err = t.dst.CopyIn(ctx, topo.Dsts()); err != nil {
		t.close()
		return nil, fmt.Errorf("csr: copy destinations: %w", err)
	}

	var zeroE E
	if unsafe.Sizeof(zeroE) != 0 {
		if err = t.data.CopyIn(ctx, topo.EdgeValues()); err != nil {
			t.close()
			return nil, fmt.Errorf("csr: copy edge data: %w", err)
		}
	}

	return t, nil
}

// Populate builds the graph from topo in a single bulk pass. It fails with
// lcgraph.ErrPopulated on a second call and lcgraph.ErrTooManyNodes when the
// node count exceeds the handle width; allocation failures abort construction
// with everything allocated so far released.
func (g *Graph[N, E]) Populate(ctx context.Context, topo topology.Source[E]) error {
	start := time.Now()
	err := g.populate(ctx, topo)
	g.opts.Logger.LogPopulate(ctx, "csr", topo.Size(), topo.SizeEdges(), time.Since(start), err)
	return err
}

func (g *Graph[N, E]) populate(ctx context.Context, topo topology.Source[E]) error {
	if g.nodeData != nil {
		return lcgraph.ErrPopulated
	}
	if topo.Size() > math.MaxUint32 {
		return lcgraph.ErrTooManyNodes
	}

	numNodes, numEdges := topo.Size(), topo.SizeEdges()

	nodeData, err := larray.Alloc[N](ctx, numNodes, larray.WithController(g.opts.Controller))
	if err != nil {
		return fmt.Errorf("csr: allocate node data: %w", err)
	}

	t, err := populateArrays(ctx, topo, g.opts)
	if err != nil {
		nodeData.Close()
		return err
	}

	g.nodeData = nodeData
	g.edgeIndData, g.edgeDst, g.edgeData = t.ind, t.dst, t.data
	g.numNodes, g.numEdges = numNodes, numEdges
	return nil
}

// Size returns the node count.
func (g *Graph[N, E]) Size() uint64 { return g.numNodes }

// SizeEdges returns the edge count.
func (g *Graph[N, E]) SizeEdges() uint64 { return g.numEdges }

func (g *Graph[N, E]) rawBegin(n lcgraph.Node) uint64 {
	if n == 0 {
		return 0
	}
	return *g.edgeIndData.At(uint64(n) - 1)
}

func (g *Graph[N, E]) rawEnd(n lcgraph.Node) uint64 {
	return *g.edgeIndData.At(uint64(n))
}

// edgeIndex scans src's range for dst. O(degree); CSR has no secondary
// index.
func (g *Graph[N, E]) edgeIndex(src, dst lcgraph.Node) (lcgraph.Edge, bool) {
	dsts := g.edgeDst.Slice()
	for i, end := g.rawBegin(src), g.rawEnd(src); i != end; i++ {
		if dsts[i] == dst {
			return i, true
		}
	}
	return 0, false
}

// Nodes returns a lazy, restartable sequence of all node handles.
func (g *Graph[N, E]) Nodes() iter.Seq[lcgraph.Node] {
	return func(yield func(lcgraph.Node) bool) {
		for n := uint64(0); n < g.numNodes; n++ {
			if !yield(lcgraph.Node(n)) {
				return
			}
		}
	}
}

// LocalNodes returns worker tid's share of an even split of the node range
// across workers, in handle order. Concatenating LocalNodes over ascending
// tid yields the same sequence as Nodes.
func (g *Graph[N, E]) LocalNodes(tid, workers int) iter.Seq[lcgraph.Node] {
	return lcgraph.LocalNodes(g.numNodes, tid, workers)
}

// Degree returns node n's out-degree.
func (g *Graph[N, E]) Degree(n lcgraph.Node) uint64 {
	return g.rawEnd(n) - g.rawBegin(n)
}

// Data returns a pointer to node n's payload after applying the access
// policy to n.
func (g *Graph[N, E]) Data(n lcgraph.Node, ac lcgraph.Access) (*N, error) {
	if err := ac.Acquire(n); err != nil {
		return nil, err
	}
	return g.nodeData.At(uint64(n)), nil
}

// OutEdges returns node n's outgoing edge handles in storage order. The
// access policy is applied before the sequence is returned: n is acquired,
// and under FlagAll every destination in the range as well. A conflict on
// any of them fails the whole call.
func (g *Graph[N, E]) OutEdges(n lcgraph.Node, ac lcgraph.Access) (iter.Seq[lcgraph.Edge], error) {
	if err := ac.Acquire(n); err != nil {
		return nil, err
	}

	begin, end := g.rawBegin(n), g.rawEnd(n)

	if ac.LocksNeighbors() {
		dsts := g.edgeDst.Slice()
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

// EdgeDst returns the destination of edge e.
func (g *Graph[N, E]) EdgeDst(e lcgraph.Edge) lcgraph.Node {
	return *g.edgeDst.At(e)
}

// EdgeData returns a pointer to edge e's payload. Acquisition happened when
// the edge range was obtained; handles reach here already policed.
func (g *Graph[N, E]) EdgeData(e lcgraph.Edge) *E {
	return g.edgeData.At(e)
}

// HasNeighbor reports whether the edge src->dst exists. Linear in src's
// degree; intended for assertions and low-degree checks, not hot paths.
func (g *Graph[N, E]) HasNeighbor(src, dst lcgraph.Node, ac lcgraph.Access) (bool, error) {
	if err := ac.Acquire(src); err != nil {
		return false, err
	}
	_, ok := g.edgeIndex(src, dst)
	return ok, nil
}

// SortEdgesByData sorts node n's outgoing edges in place by payload under
// less, keeping destinations and payloads in lock-step.
func (g *Graph[N, E]) SortEdgesByData(n lcgraph.Node, less func(a, b E) bool, ac lcgraph.Access) error {
	if err := ac.Acquire(n); err != nil {
		return err
	}
	begin, end := g.rawBegin(n), g.rawEnd(n)
	sortEdgeRange(g.edgeDst.Slice()[begin:end], g.edgeData.Slice()[begin:end], func(data []E, i, j int) bool {
		return less(data[i], data[j])
	})
	return nil
}

// SortEdges sorts node n's outgoing edges in place under a comparator over
// (destination, payload) pairs.
func (g *Graph[N, E]) SortEdges(n lcgraph.Node, less func(a, b lcgraph.EdgeSortValue[E]) bool, ac lcgraph.Access) error {
	if err := ac.Acquire(n); err != nil {
		return err
	}
	begin, end := g.rawBegin(n), g.rawEnd(n)
	dst, data := g.edgeDst.Slice()[begin:end], g.edgeData.Slice()[begin:end]
	sortEdgeRange(dst, data, func(data []E, i, j int) bool {
		return less(
			lcgraph.EdgeSortValue[E]{Dst: dst[i], Data: data[i]},
			lcgraph.EdgeSortValue[E]{Dst: dst[j], Data: data[j]},
		)
	})
	return nil
}

// Close releases all backing arrays. Handles become invalid.
func (g *Graph[N, E]) Close() error {
	if g.nodeData == nil {
		return nil
	}
	var err error
	if cerr := g.nodeData.Close(); cerr != nil {
		err = cerr
	}
	t := topoArrays[E]{ind: g.edgeIndData, dst: g.edgeDst, data: g.edgeData}
	if cerr := t.close(); cerr != nil && err == nil {
		err = cerr
	}
	g.opts.Logger.LogClose("csr", err)
	return err
}
