// Package topology defines the construction input consumed by the graph
// layouts: node/edge counts plus per-node neighbor sequences.
//
// A Source is typically backed by a parsed graph file in the embedding
// runtime; this package deliberately defines no on-disk encoding. The
// in-memory Builder exists for programmatic construction and tests, and
// Transpose derives the reversed structure needed by the bidirectional
// overlay's explicit-transpose mode.
package topology

import (
	"iter"

	"github.com/hupe1980/lcgraph"
)

// Source describes an immutable graph structure with edge payloads of type E.
// Destinations are grouped by source node, in node order; the grouped
// sequences (Dsts, EdgeValues) and the per-node sequences (Edges) must agree.
//
// Sources must be restartable: every sequence may be iterated multiple times
// and always yields the same values in the same order. Population passes rely
// on this determinism.
type Source[E any] interface {
	// Size returns the total node count.
	Size() uint64

	// SizeEdges returns the total edge count.
	SizeEdges() uint64

	// EdgeIndex yields the cumulative out-degree for each node in node
	// order: element i is the index one past node i's last edge.
	EdgeIndex() iter.Seq[uint64]

	// Dsts yields every edge destination, grouped by source in node order.
	Dsts() iter.Seq[lcgraph.Node]

	// EdgeValues yields every edge payload, aligned with Dsts.
	EdgeValues() iter.Seq[E]

	// Degree returns node n's out-degree.
	Degree(n lcgraph.Node) uint64

	// Edges yields node n's (destination, payload) pairs in edge order.
	Edges(n lcgraph.Node) iter.Seq2[lcgraph.Node, E]
}

// Builder is an in-memory Source assembled edge by edge.
//
// The zero value is not usable; create builders with NewBuilder. Builders are
// not safe for concurrent mutation.
type Builder[E any] struct {
	dsts     [][]lcgraph.Node
	vals     [][]E
	numEdges uint64
}

var _ Source[int] = (*Builder[int])(nil)

// NewBuilder creates a builder for a graph with n nodes and no edges.
func NewBuilder[E any](n uint64) *Builder[E] {
	return &Builder[E]{
		dsts: make([][]lcgraph.Node, n),
		vals: make([][]E, n),
	}
}

// AddEdge appends a directed edge src->dst carrying data.
func (b *Builder[E]) AddEdge(src, dst lcgraph.Node, data E) {
	b.dsts[src] = append(b.dsts[src], dst)
	b.vals[src] = append(b.vals[src], data)
	b.numEdges++
}

// Size returns the total node count.
func (b *Builder[E]) Size() uint64 { return uint64(len(b.dsts)) }

// SizeEdges returns the total edge count.
func (b *Builder[E]) SizeEdges() uint64 { return b.numEdges }

// Degree returns node n's out-degree.
func (b *Builder[E]) Degree(n lcgraph.Node) uint64 { return uint64(len(b.dsts[n])) }

// EdgeIndex yields the cumulative out-degree sequence.
func (b *Builder[E]) EdgeIndex() iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		var total uint64
		for _, row := range b.dsts {
			total += uint64(len(row))
			if !yield(total) {
				return
			}
		}
	}
}

// Dsts yields every destination grouped by source in node order.
func (b *Builder[E]) Dsts() iter.Seq[lcgraph.Node] {
	return func(yield func(lcgraph.Node) bool) {
		for _, row := range b.dsts {
			for _, dst := range row {
				if !yield(dst) {
					return
				}
			}
		}
	}
}

// EdgeValues yields every payload aligned with Dsts.
func (b *Builder[E]) EdgeValues() iter.Seq[E] {
	return func(yield func(E) bool) {
		for _, row := range b.vals {
			for _, v := range row {
				if !yield(v) {
					return
				}
			}
		}
	}
}

// Edges yields node n's (destination, payload) pairs in edge order.
func (b *Builder[E]) Edges(n lcgraph.Node) iter.Seq2[lcgraph.Node, E] {
	return func(yield func(lcgraph.Node, E) bool) {
		for i, dst := range b.dsts[n] {
			if !yield(dst, b.vals[n][i]) {
				return
			}
		}
	}
}

// Transpose returns a builder holding the reversed structure of s: for every
// edge (u,v,data) in s, the result has (v,u,data). Counts are preserved.
func Transpose[E any](s Source[E]) *Builder[E] {
	t := NewBuilder[E](s.Size())
	for src := lcgraph.Node(0); uint64(src) < s.Size(); src++ {
		for dst, v := range s.Edges(src) {
			t.AddEdge(dst, src, v)
		}
	}
	return t
}
