package inline

import (
	"context"
	"fmt"
	"iter"
	"math"
	"sort"
	"time"

	"github.com/hupe1980/lcgraph"
	"github.com/hupe1980/lcgraph/larray"
	"github.com/hupe1980/lcgraph/resource"
	"github.com/hupe1980/lcgraph/topology"
)

// Options contains configuration options for inline graphs.
type Options struct {
	// Controller accounts for the memory reserved by the backing arrays and
	// may throttle population bandwidth.
	Controller *resource.Controller

	// OffHeap places both record arrays in anonymous mappings. Because edge
	// payloads are interleaved with destinations, off-heap mode requires
	// pointer-free payload types.
	OffHeap bool

	// Logger receives construction events. Defaults to a no-op logger.
	Logger *lcgraph.Logger
}

// Option is a configuration option for inline graphs.
type Option func(*Options)

// WithController sets the resource controller.
func WithController(c *resource.Controller) Option {
	return func(o *Options) { o.Controller = c }
}

// WithOffHeap places the record arrays off-heap. Payload types must be
// pointer-free.
func WithOffHeap() Option {
	return func(o *Options) { o.OffHeap = true }
}

// WithLogger sets the logger for construction events.
func WithLogger(l *lcgraph.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// nodeRecord pairs a node's payload with its half-open edge range. Unlike
// the cumulative CSR index, each record is self-contained: reading a range
// never touches the previous node's record.
type nodeRecord[N any] struct {
	data      N
	edgeBegin uint64
	edgeEnd   uint64
}

// edgeRecord interleaves payload and destination. The payload comes first: a
// trailing zero-size field would force padding and defeat payload elision.
type edgeRecord[E any] struct {
	data E
	dst  lcgraph.Node
}

// Graph is an inline-record graph with node payloads of type N and edge
// payloads of type E. The zero value is empty; call Populate exactly once
// before traversal.
//
// Edge handles are indices into the edge record array.
type Graph[N, E any] struct {
	nodes *larray.Array[nodeRecord[N]]
	edges *larray.Array[edgeRecord[E]]

	numNodes uint64
	numEdges uint64

	opts Options
}

var _ lcgraph.Graph[int, int] = (*Graph[int, int])(nil)

// New creates an empty inline graph.
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

// Populate builds the graph from topo in two deterministic passes: node
// records first, carrying ranges derived from the cumulative edge index,
// then the edge records in storage order. It fails with lcgraph.ErrPopulated
// on a second call and lcgraph.ErrTooManyNodes when the node count exceeds
// the handle width.
func (g *Graph[N, E]) Populate(ctx context.Context, topo topology.Source[E]) error {
	start := time.Now()
	err := g.populate(ctx, topo)
	g.opts.Logger.LogPopulate(ctx, "inline", topo.Size(), topo.SizeEdges(), time.Since(start), err)
	return err
}

func (g *Graph[N, E]) populate(ctx context.Context, topo topology.Source[E]) error {
	if g.nodes != nil {
		return lcgraph.ErrPopulated
	}
	if topo.Size() > math.MaxUint32 {
		return lcgraph.ErrTooManyNodes
	}

	numNodes, numEdges := topo.Size(), topo.SizeEdges()

	allocOpts := []larray.Option{larray.WithController(g.opts.Controller)}
	if g.opts.OffHeap {
		allocOpts = append(allocOpts, larray.WithOffHeap())
	}

	nodes, err := larray.Alloc[nodeRecord[N]](ctx, numNodes, allocOpts...)
	if err != nil {
		return fmt.Errorf("inline: allocate node records: %w", err)
	}
	edges, err := larray.Alloc[edgeRecord[E]](ctx, numEdges, allocOpts...)
	if err != nil {
		nodes.Close()
		return fmt.Errorf("inline: allocate edge records: %w", err)
	}

	err = nodes.CopyIn(ctx, func(yield func(nodeRecord[N]) bool) {
		begin := uint64(0)
		for end := range topo.EdgeIndex() {
			if !yield(nodeRecord[N]{edgeBegin: begin, edgeEnd: end}) {
				return
			}
			begin = end
		}
	})
	if err == nil {
		err = edges.CopyIn(ctx, func(yield func(edgeRecord[E]) bool) {
			for n := uint64(0); n < numNodes; n++ {
				for dst, val := range topo.Edges(lcgraph.Node(n)) {
					if !yield(edgeRecord[E]{dst: dst, data: val}) {
						return
					}
				}
			}
		})
	}
	if err != nil {
		nodes.Close()
		edges.Close()
		return fmt.Errorf("inline: copy records: %w", err)
	}

	g.nodes, g.edges = nodes, edges
	g.numNodes, g.numEdges = numNodes, numEdges
	return nil
}

// Size returns the node count.
func (g *Graph[N, E]) Size() uint64 { return g.numNodes }

// SizeEdges returns the edge count.
func (g *Graph[N, E]) SizeEdges() uint64 { return g.numEdges }

func (g *Graph[N, E]) record(n lcgraph.Node) *nodeRecord[N] {
	return g.nodes.At(uint64(n))
}

// edgeIndex scans src's range for dst. O(degree).
func (g *Graph[N, E]) edgeIndex(src, dst lcgraph.Node) (lcgraph.Edge, bool) {
	rec := g.record(src)
	edges := g.edges.Slice()
	for i := rec.edgeBegin; i != rec.edgeEnd; i++ {
		if edges[i].dst == dst {
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
	rec := g.record(n)
	return rec.edgeEnd - rec.edgeBegin
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

	rec := g.record(n)
	begin, end := rec.edgeBegin, rec.edgeEnd

	if ac.LocksNeighbors() {
		edges := g.edges.Slice()
		for i := begin; i != end; i++ {
			if err := ac.Acquire(edges[i].dst); err != nil {
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
	return g.edges.At(e).dst
}

// EdgeData returns a pointer to edge e's payload. Acquisition happened when
// the edge range was obtained; handles reach here already policed.
func (g *Graph[N, E]) EdgeData(e lcgraph.Edge) *E {
	return &g.edges.At(e).data
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
// less. Interleaved records keep destination and payload together, so this
// is a plain record sort.
func (g *Graph[N, E]) SortEdgesByData(n lcgraph.Node, less func(a, b E) bool, ac lcgraph.Access) error {
	if err := ac.Acquire(n); err != nil {
		return err
	}
	rec := g.record(n)
	edges := g.edges.Slice()[rec.edgeBegin:rec.edgeEnd]
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
	rec := g.record(n)
	edges := g.edges.Slice()[rec.edgeBegin:rec.edgeEnd]
	sort.Slice(edges, func(i, j int) bool {
		return less(
			lcgraph.EdgeSortValue[E]{Dst: edges[i].dst, Data: edges[i].data},
			lcgraph.EdgeSortValue[E]{Dst: edges[j].dst, Data: edges[j].data},
		)
	})
	return nil
}

// Close releases the record arrays. Handles become invalid.
func (g *Graph[N, E]) Close() error {
	if g.nodes == nil {
		return nil
	}
	err := g.nodes.Close()
	if cerr := g.edges.Close(); cerr != nil && err == nil {
		err = cerr
	}
	g.opts.Logger.LogClose("inline", err)
	return err
}
