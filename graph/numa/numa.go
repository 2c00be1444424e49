package numa

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
	"github.com/hupe1980/lcgraph/internal/worker"
	"github.com/hupe1980/lcgraph/larray"
	"github.com/hupe1980/lcgraph/resource"
	"github.com/hupe1980/lcgraph/topology"
)

// Handles pack the partition index into the bits above partShift and the
// arena byte offset below it: up to 2^24 partitions of 1 TiB each.
const (
	partShift = 40
	offMask   = 1<<partShift - 1
)

// Options contains configuration options for NUMA graphs.
type Options struct {
	// Controller accounts for the memory reserved by the arenas and the
	// offsets table.
	Controller *resource.Controller

	// Workers is the number of partitions and pool workers used for
	// population. Non-positive means runtime.GOMAXPROCS(0).
	Workers int

	// Logger receives construction events. Defaults to a no-op logger.
	Logger *lcgraph.Logger
}

// Option is a configuration option for NUMA graphs.
type Option func(*Options)

// WithController sets the resource controller.
func WithController(c *resource.Controller) Option {
	return func(o *Options) { o.Controller = c }
}

// WithWorkers sets the partition and worker count.
func WithWorkers(n int) Option {
	return func(o *Options) { o.Workers = n }
}

// WithLogger sets the logger for construction events.
func WithLogger(l *lcgraph.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// nodeRecord and edgeRecord match the linear layout: payload first so a
// zero-size payload adds no trailing padding.
type nodeRecord[N any] struct {
	data   N
	degree uint64
}

type edgeRecord[E any] struct {
	data E
	dst  lcgraph.Node
}

type layout struct {
	nodeSize   uint64
	edgeStride uint64
	edgeOff    uint64
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
	l.edgeOff = (l.nodeSize + edgeAlign - 1) &^ (edgeAlign - 1)
	return l
}

// partition is one worker's share of the graph: a contiguous node range
// [beginNode, endNode) and the arena holding those nodes' records.
type partition struct {
	arena     *arena.Arena
	beginNode uint64
	endNode   uint64
	numEdges  uint64
}

// Graph is a partitioned linear-record graph with node payloads of type N
// and edge payloads of type E. The zero value is empty; call Populate
// exactly once before traversal.
//
// N and E must be pointer-free.
type Graph[N, E any] struct {
	parts   []partition
	offsets *larray.Array[uint64]

	lay      layout
	numNodes uint64
	numEdges uint64

	opts Options
}

var _ lcgraph.Graph[int, int] = (*Graph[int, int])(nil)

// New creates an empty NUMA graph.
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

// distribute assigns contiguous node ranges to workers by byte cost. The
// total cost V*sizeof(nodeRecord) + E*sizeof(edgeRecord) is divided into
// per-worker blocks; a walk over the nodes advances to the next worker once
// the accumulated cost crosses its block boundary. The last worker with
// nodes absorbs the remainder.
func (g *Graph[N, E]) distribute(topo topology.Source[E], workers int) []partition {
	numNodes := topo.Size()
	total := numNodes*g.lay.nodeSize + topo.SizeEdges()*g.lay.edgeStride
	block := (total + uint64(workers) - 1) / uint64(workers)

	parts := make([]partition, workers)
	tid := 0
	var acc uint64
	for n := uint64(0); n < numNodes; n++ {
		// A single heavy node can cross several block boundaries; skip the
		// intermediate workers, leaving them empty partitions.
		for tid+1 < workers && acc >= uint64(tid+1)*block {
			parts[tid].endNode = n
			tid++
			parts[tid].beginNode = n
		}
		degree := topo.Degree(lcgraph.Node(n))
		acc += g.lay.nodeSize + degree*g.lay.edgeStride
		parts[tid].numEdges += degree
	}
	parts[tid].endNode = numNodes
	for i := tid + 1; i < workers; i++ {
		parts[i].beginNode, parts[i].endNode = numNodes, numNodes
	}
	return parts
}

// arenaSize bounds the bytes for one partition's records, including
// per-block alignment padding and the arena's null sentinel.
func (g *Graph[N, E]) arenaSize(p *partition) uint64 {
	numNodes := p.endNode - p.beginNode
	return (numNodes+1)*(g.lay.edgeOff+g.lay.blockAlign) + p.numEdges*g.lay.edgeStride
}

// Populate builds the graph from topo. Node ranges are distributed by cost,
// then every pool worker allocates its partition's arena and fills its node
// blocks; pages are first touched by the worker that owns them. Workers read
// topo concurrently, so its iteration must be safe for concurrent readers
// (topology.Builder is, once construction has finished). It fails
// with lcgraph.ErrPopulated on a second call, lcgraph.ErrTooManyNodes when
// the node count exceeds the handle width, and lcgraph.ErrTooManyEdges when
// a partition's storage exceeds the offset bits of the packed edge handle.
func (g *Graph[N, E]) Populate(ctx context.Context, topo topology.Source[E]) error {
	start := time.Now()
	err := g.populate(ctx, topo)
	g.opts.Logger.LogPopulate(ctx, "numa", topo.Size(), topo.SizeEdges(), time.Since(start), err)
	return err
}

func (g *Graph[N, E]) populate(ctx context.Context, topo topology.Source[E]) error {
	if g.offsets != nil {
		return lcgraph.ErrPopulated
	}
	if topo.Size() > math.MaxUint32 {
		return lcgraph.ErrTooManyNodes
	}

	numNodes, numEdges := topo.Size(), topo.SizeEdges()

	pool := worker.NewPool(g.opts.Workers)
	defer pool.Close()

	parts := g.distribute(topo, pool.Size())

	offsets, err := larray.Alloc[uint64](ctx, numNodes, larray.WithController(g.opts.Controller))
	if err != nil {
		return fmt.Errorf("numa: allocate offsets: %w", err)
	}
	offs := offsets.Slice()

	var arenaOpts []arena.Option
	if g.opts.Controller != nil {
		arenaOpts = append(arenaOpts, arena.WithMemoryAcquirer(g.opts.Controller))
	}

	// Each worker touches only its own partition entry and offset range, so
	// the pass needs no synchronization beyond OnEach itself.
	err = pool.OnEach(ctx, func(tid int) error {
		p := &parts[tid]
		if p.beginNode == p.endNode {
			return nil
		}

		bytes := g.arenaSize(p)
		if bytes > offMask {
			return fmt.Errorf("numa: partition %d needs %d bytes: %w", tid, bytes, lcgraph.ErrTooManyEdges)
		}
		size, err := conv.Uint64ToInt(bytes)
		if err != nil {
			return fmt.Errorf("numa: partition %d size: %w", tid, err)
		}
		a, err := arena.New(ctx, size, arenaOpts...)
		if err != nil {
			return fmt.Errorf("numa: partition %d arena: %w", tid, err)
		}
		p.arena = a

		for n := p.beginNode; n < p.endNode; n++ {
			degree := topo.Degree(lcgraph.Node(n))

			off, err := a.Alloc(g.lay.edgeOff+degree*g.lay.edgeStride, g.lay.blockAlign)
			if err != nil {
				return fmt.Errorf("numa: partition %d node block: %w", tid, err)
			}
			offs[n] = uint64(tid)<<partShift | off

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
		return nil
	})
	if err != nil {
		for i := range parts {
			if parts[i].arena != nil {
				parts[i].arena.Close()
			}
		}
		offsets.Close()
		return err
	}

	g.parts = parts
	g.offsets = offsets
	g.numNodes, g.numEdges = numNodes, numEdges
	return nil
}

// Size returns the node count.
func (g *Graph[N, E]) Size() uint64 { return g.numNodes }

// SizeEdges returns the edge count.
func (g *Graph[N, E]) SizeEdges() uint64 { return g.numEdges }

// Partitions returns the partition count. Partition IDs are pool worker IDs
// in [0, Partitions()).
func (g *Graph[N, E]) Partitions() int { return len(g.parts) }

func (g *Graph[N, E]) record(n lcgraph.Node) *nodeRecord[N] {
	enc := *g.offsets.At(uint64(n))
	return (*nodeRecord[N])(g.parts[enc>>partShift].arena.Pointer(enc & offMask))
}

// edgeRange returns the partition and the arena offsets [begin, end) of n's
// edge records.
func (g *Graph[N, E]) edgeRange(n lcgraph.Node) (uint64, uint64, uint64) {
	enc := *g.offsets.At(uint64(n))
	part, off := enc>>partShift, enc&offMask
	rec := (*nodeRecord[N])(g.parts[part].arena.Pointer(off))
	begin := off + g.lay.edgeOff
	return part, begin, begin + rec.degree*g.lay.edgeStride
}

func (g *Graph[N, E]) edgeRecords(n lcgraph.Node) []edgeRecord[E] {
	part, begin, _ := g.edgeRange(n)
	rec := g.record(n)
	return unsafe.Slice((*edgeRecord[E])(g.parts[part].arena.Pointer(begin)), rec.degree)
}

func (g *Graph[N, E]) edgeIndex(src, dst lcgraph.Node) (lcgraph.Edge, bool) {
	part, begin, end := g.edgeRange(src)
	a := g.parts[part].arena
	for ; begin != end; begin += g.lay.edgeStride {
		if (*edgeRecord[E])(a.Pointer(begin)).dst == dst {
			return part<<partShift | begin, true
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

// LocalNodes returns the node handles owned by partition tid, in handle
// order. Concatenating LocalNodes over ascending tid yields the same
// sequence as Nodes.
func (g *Graph[N, E]) LocalNodes(tid int) iter.Seq[lcgraph.Node] {
	p := g.parts[tid]
	return func(yield func(lcgraph.Node) bool) {
		for n := p.beginNode; n < p.endNode; n++ {
			if !yield(lcgraph.Node(n)) {
				return
			}
		}
	}
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

	part, begin, end := g.edgeRange(n)
	a := g.parts[part].arena

	if ac.LocksNeighbors() {
		for e := begin; e != end; e += g.lay.edgeStride {
			if err := ac.Acquire((*edgeRecord[E])(a.Pointer(e)).dst); err != nil {
				return nil, err
			}
		}
	}

	stride := g.lay.edgeStride
	return func(yield func(lcgraph.Edge) bool) {
		for e := begin; e != end; e += stride {
			if !yield(part<<partShift | e) {
				return
			}
		}
	}, nil
}

// EdgeDst returns the destination of edge e.
func (g *Graph[N, E]) EdgeDst(e lcgraph.Edge) lcgraph.Node {
	return (*edgeRecord[E])(g.parts[e>>partShift].arena.Pointer(e & offMask)).dst
}

// EdgeData returns a pointer to edge e's payload. Acquisition happened when
// the edge range was obtained; handles reach here already policed.
func (g *Graph[N, E]) EdgeData(e lcgraph.Edge) *E {
	return &(*edgeRecord[E])(g.parts[e>>partShift].arena.Pointer(e & offMask)).data
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

// Close releases the offsets table and every partition arena. Handles and
// payload pointers become invalid.
func (g *Graph[N, E]) Close() error {
	if g.offsets == nil {
		return nil
	}
	err := g.offsets.Close()
	for i := range g.parts {
		if g.parts[i].arena == nil {
			continue
		}
		if cerr := g.parts[i].arena.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	g.opts.Logger.LogClose("numa", err)
	return err
}
