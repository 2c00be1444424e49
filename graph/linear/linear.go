package linear

import (
	"context"
	"fmt"
	"iter"
	"math"
	"sort"
	"time"
	"unsafe"

	"github.com/hupe1980/lcgraph"
	"github.com/hupe1980/lcgraph/internal/arena"
	"github.com/hupe1980/lcgraph/internal/conv"
	"github.com/hupe1980/lcgraph/larray"
	"github.com/hupe1980/lcgraph/resource"
	"github.com/hupe1980/lcgraph/topology"
)

// Options contains configuration options for linear graphs.
type Options struct {
	// Controller accounts for the memory reserved by the arena and the
	// offsets table and may throttle population bandwidth.
	Controller *resource.Controller

	// Logger receives construction events. Defaults to a no-op logger.
	Logger *lcgraph.Logger
}

// Option is a configuration option for linear graphs.
type Option func(*Options)

// WithController sets the resource controller.
func WithController(c *resource.Controller) Option {
	return func(o *Options) { o.Controller = c }
}

// WithLogger sets the logger for construction events.
func WithLogger(l *lcgraph.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// nodeRecord heads each node's block in the arena. Payload first: a trailing
// zero-size field would force padding.
type nodeRecord[N any] struct {
	data   N
	degree uint64
}

// edgeRecord interleaves payload and destination, payload first for the same
// padding reason.
type edgeRecord[E any] struct {
	data E
	dst  lcgraph.Node
}

// layout holds the compile-time record geometry for one (N, E) pair.
type layout struct {
	nodeSize   uint64
	edgeStride uint64
	edgeOff    uint64 // first edge record, relative to the block start
	blockAlign uint64
}

func layoutOf[N, E any]() layout {
	var nr nodeRecord[N]
	var er edgeRecord[E]

	l := layout{
		nodeSize:   uint64(unsafe.Sizeof(nr)),
		edgeStride: uint64(unsafe.Sizeof(er)),
		blockAlign: uint64(unsafe.Alignof(nr)),
	}
	edgeAlign := uint64(unsafe.Alignof(er))
	if edgeAlign > l.blockAlign {
		l.blockAlign = edgeAlign
	}
	l.edgeOff = alignUp(l.nodeSize, edgeAlign)
	return l
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}

// Graph is a linear-record graph with node payloads of type N and edge
// payloads of type E. The zero value is empty; call Populate exactly once
// before traversal.
//
// N and E must be pointer-free: the records live in an anonymous mapping the
// garbage collector never scans.
type Graph[N, E any] struct {
	arena   *arena.Arena
	offsets *larray.Array[uint64]

	lay      layout
	numNodes uint64
	numEdges uint64

	opts Options
}

var _ lcgraph.Graph[int, int] = (*Graph[int, int])(nil)

// New creates an empty linear graph.
func New[N, E any](opts ...Option) *Graph[N, E] {
	g := &Graph[N, E]{lay: layoutOf[N, E]()}
	for _, opt := range opts {
		opt(&g.opts)
	}
	if g.opts.Logger == nil {
		g.opts.Logger = lcgraph.NoopLogger()
	}
	return g
}

// arenaSize bounds the bytes needed for all records. Per-block alignment
// padding is bounded by the block alignment; one extra block covers the
// arena's null sentinel byte.
func (g *Graph[N, E]) arenaSize(numNodes, numEdges uint64) uint64 {
	return (numNodes+1)*(g.lay.edgeOff+g.lay.blockAlign) + numEdges*g.lay.edgeStride
}

// Populate builds the graph from topo: one block per node is bump-allocated
// and filled in handle order, so record placement is deterministic. It fails
// with lcgraph.ErrPopulated on a second call and lcgraph.ErrTooManyNodes
// when the node count exceeds the handle width.
func (g *Graph[N, E]) Populate(ctx context.Context, topo topology.Source[E]) error {
	start := time.Now()
	err := g.populate(ctx, topo)
	g.opts.Logger.LogPopulate(ctx, "linear", topo.Size(), topo.SizeEdges(), time.Since(start), err)
	return err
}

func (g *Graph[N, E]) populate(ctx context.Context, topo topology.Source[E]) error {
	if g.arena != nil {
		return lcgraph.ErrPopulated
	}
	if topo.Size() > math.MaxUint32 {
		return lcgraph.ErrTooManyNodes
	}

	numNodes, numEdges := topo.Size(), topo.SizeEdges()

	size, err := conv.Uint64ToInt(g.arenaSize(numNodes, numEdges))
	if err != nil {
		return fmt.Errorf("linear: arena size: %w", err)
	}

	var arenaOpts []arena.Option
	if g.opts.Controller != nil {
		arenaOpts = append(arenaOpts, arena.WithMemoryAcquirer(g.opts.Controller))
	}
	a, err := arena.New(ctx, size, arenaOpts...)
	if err != nil {
		return fmt.Errorf("linear: allocate arena: %w", err)
	}

	offsets, err := larray.Alloc[uint64](ctx, numNodes, larray.WithController(g.opts.Controller))
	if err != nil {
		a.Close()
		return fmt.Errorf("linear: allocate offsets: %w", err)
	}

	offs := offsets.Slice()
	for n := uint64(0); n < numNodes; n++ {
		degree := topo.Degree(lcgraph.Node(n))

		off, err := a.Alloc(g.lay.edgeOff+degree*g.lay.edgeStride, g.lay.blockAlign)
		if err != nil {
			a.Close()
			offsets.Close()
			return fmt.Errorf("linear: allocate node block: %w", err)
		}
		offs[n] = off

		rec := (*nodeRecord[N])(a.Pointer(off))
		rec.degree = degree

		e := off + g.lay.edgeOff
		for dst, val := range topo.Edges(lcgraph.Node(n)) {
			er := (*edgeRecord[E])(a.Pointer(e))
			er.dst = dst
			er.data = val
			e += g.lay.edgeStride
		}
	}

	g.arena = a
	g.offsets = offsets
	g.numNodes, g.numEdges = numNodes, numEdges
	return nil
}

// Size returns the node count.
func (g *Graph[N, E]) Size() uint64 { return g.numNodes }

// SizeEdges returns the edge count.
func (g *Graph[N, E]) SizeEdges() uint64 { return g.numEdges }

func (g *Graph[N, E]) record(n lcgraph.Node) *nodeRecord[N] {
	return (*nodeRecord[N])(g.arena.Pointer(*g.offsets.At(uint64(n))))
}

// edgeRange returns the arena offsets [begin, end) of n's edge records.
func (g *Graph[N, E]) edgeRange(n lcgraph.Node) (uint64, uint64) {
	off := *g.offsets.At(uint64(n))
	rec := (*nodeRecord[N])(g.arena.Pointer(off))
	begin := off + g.lay.edgeOff
	return begin, begin + rec.degree*g.lay.edgeStride
}

// edgeRecords views n's edge records as a slice for in-place sorting.
func (g *Graph[N, E]) edgeRecords(n lcgraph.Node) []edgeRecord[E] {
	begin, _ := g.edgeRange(n)
	rec := g.record(n)
	return unsafe.Slice((*edgeRecord[E])(g.arena.Pointer(begin)), rec.degree)
}

// edgeIndex scans src's records for dst. O(degree).
func (g *Graph[N, E]) edgeIndex(src, dst lcgraph.Node) (lcgraph.Edge, bool) {
	for begin, end := g.edgeRange(src); begin != end; begin += g.lay.edgeStride {
		if (*edgeRecord[E])(g.arena.Pointer(begin)).dst == dst {
			return begin, true
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
	return g.record(n).degree
}

// Data returns a pointer to node n's payload after applying the access
// policy to n.
func (g *Graph[N, E]) Data(n lcgraph.Node, ac lcgraph.Access) (*N, error) {
	if err := ac.Acquire(n); err != nil {
		return nil, err
	}
	return &g.record(n).data, nil
}

// OutEdges returns node n's outgoing edge handles in storage order. The
// access policy is applied before the sequence is returned: n is acquired,
// and under FlagAll every destination in the range as well.
func (g *Graph[N, E]) OutEdges(n lcgraph.Node, ac lcgraph.Access) (iter.Seq[lcgraph.Edge], error) {
	if err := ac.Acquire(n); err != nil {
		return nil, err
	}

	begin, end := g.edgeRange(n)

	if ac.LocksNeighbors() {
		for e := begin; e != end; e += g.lay.edgeStride {
			if err := ac.Acquire((*edgeRecord[E])(g.arena.Pointer(e)).dst); err != nil {
				return nil, err
			}
		}
	}

	stride := g.lay.edgeStride
	return func(yield func(lcgraph.Edge) bool) {
		for e := begin; e != end; e += stride {
			if !yield(e) {
				return
			}
		}
	}, nil
}

// EdgeDst returns the destination of edge e.
func (g *Graph[N, E]) EdgeDst(e lcgraph.Edge) lcgraph.Node {
	return (*edgeRecord[E])(g.arena.Pointer(e)).dst
}

// EdgeData returns a pointer to edge e's payload. Acquisition happened when
// the edge range was obtained; handles reach here already policed.
func (g *Graph[N, E]) EdgeData(e lcgraph.Edge) *E {
	return &(*edgeRecord[E])(g.arena.Pointer(e)).data
}

// HasNeighbor reports whether the edge src->dst exists. Linear in src's
// degree.
func (g *Graph[N, E]) HasNeighbor(src, dst lcgraph.Node, ac lcgraph.Access) (bool, error) {
	if err := ac.Acquire(src); err != nil {
		return false, err
	}
	_, ok := g.edgeIndex(src, dst)
	return ok, nil
}

// SortEdgesByData sorts node n's outgoing edges in place by payload under
// less.
func (g *Graph[N, E]) SortEdgesByData(n lcgraph.Node, less func(a, b E) bool, ac lcgraph.Access) error {
	if err := ac.Acquire(n); err != nil {
		return err
	}
	edges := g.edgeRecords(n)
	sort.Slice(edges, func(i, j int) bool {
		return less(edges[i].data, edges[j].data)
	})
	return nil
}

// SortEdges sorts node n's outgoing edges in place under a comparator over
// (destination, payload) pairs.
func (g *Graph[N, E]) SortEdges(n lcgraph.Node, less func(a, b lcgraph.EdgeSortValue[E]) bool, ac lcgraph.Access) error {
	if err := ac.Acquire(n); err != nil {
		return err
	}
	edges := g.edgeRecords(n)
	sort.Slice(edges, func(i, j int) bool {
		return less(
			lcgraph.EdgeSortValue[E]{Dst: edges[i].dst, Data: edges[i].data},
			lcgraph.EdgeSortValue[E]{Dst: edges[j].dst, Data: edges[j].data},
		)
	})
	return nil
}

// Close releases the offsets table and the arena. Handles and payload
// pointers become invalid.
func (g *Graph[N, E]) Close() error {
	if g.arena == nil {
		return nil
	}
	err := g.offsets.Close()
	if cerr := g.arena.Close(); cerr != nil && err == nil {
		err = cerr
	}
	g.opts.Logger.LogClose("linear", err)
	return err
}
