package lcgraph

import "iter"

// Graph is the traversal contract shared by every layout variant. A variant
// is populated once through its own construction API and then read through
// this interface; all methods taking an Access apply the acquisition policy
// before touching shared state.
//
// Layouts differ only in storage: handle values, iteration order within a
// node's edge range, and payload addresses are stable for the lifetime of a
// populated graph regardless of variant.
type Graph[N, E any] interface {
	// Size returns the node count.
	Size() uint64
	// SizeEdges returns the edge count.
	SizeEdges() uint64
	// Nodes returns a lazy, restartable sequence of all node handles.
	Nodes() iter.Seq[Node]
	// Degree returns node n's out-degree.
	Degree(n Node) uint64
	// Data returns a pointer to node n's payload.
	Data(n Node, ac Access) (*N, error)
	// OutEdges returns node n's outgoing edge handles in storage order.
	OutEdges(n Node, ac Access) (iter.Seq[Edge], error)
	// EdgeDst returns the destination of edge e.
	EdgeDst(e Edge) Node
	// EdgeData returns a pointer to edge e's payload.
	EdgeData(e Edge) *E
	// HasNeighbor reports whether the edge src->dst exists.
	HasNeighbor(src, dst Node, ac Access) (bool, error)
	// SortEdgesByData sorts node n's outgoing edges in place by payload.
	SortEdgesByData(n Node, less func(a, b E) bool, ac Access) error
	// SortEdges sorts node n's outgoing edges in place by (dst, payload).
	SortEdges(n Node, less func(a, b EdgeSortValue[E]) bool, ac Access) error
	// Close releases the graph's backing storage.
	Close() error
}

// LocalRange splits [0, total) into workers contiguous chunks and returns
// chunk tid as [begin, end). Chunk sizes differ by at most one, the first
// total%workers chunks taking the extra node. Concatenating the chunks in
// tid order reproduces the full range.
//
// The contiguous layout variants use this split for their LocalNodes
// methods; the partitioned variant owns its ranges and splits by byte cost
// instead.
func LocalRange(total uint64, tid, workers int) (begin, end uint64) {
	per := total / uint64(workers)
	rem := total % uint64(workers)

	begin = uint64(tid) * per
	if uint64(tid) < rem {
		begin += uint64(tid)
	} else {
		begin += rem
	}
	end = begin + per
	if uint64(tid) < rem {
		end++
	}
	return begin, end
}

// LocalNodes returns the node handles of chunk tid of an even split of
// [0, total) across workers, in handle order.
func LocalNodes(total uint64, tid, workers int) iter.Seq[Node] {
	begin, end := LocalRange(total, tid, workers)
	return func(yield func(Node) bool) {
		for n := begin; n < end; n++ {
			if !yield(Node(n)) {
				return
			}
		}
	}
}
