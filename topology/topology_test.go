package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/lcgraph"
)

func collect[T any](seq func(func(T) bool)) []T {
	var out []T
	seq(func(v T) bool {
		out = append(out, v)
		return true
	})
	return out
}

func TestBuilder(t *testing.T) {
	b := NewBuilder[int](4)
	b.AddEdge(0, 1, 10)
	b.AddEdge(0, 2, 20)
	b.AddEdge(1, 2, 30)
	b.AddEdge(2, 3, 40)
	b.AddEdge(3, 0, 50)

	assert.Equal(t, uint64(4), b.Size())
	assert.Equal(t, uint64(5), b.SizeEdges())
	assert.Equal(t, uint64(2), b.Degree(0))
	assert.Equal(t, b.SizeEdges(), b.Degree(0)+b.Degree(1)+b.Degree(2)+b.Degree(3))

	assert.Equal(t, []uint64{2, 3, 4, 5}, collect(b.EdgeIndex()))
	assert.Equal(t, []lcgraph.Node{1, 2, 2, 3, 0}, collect(b.Dsts()))
	assert.Equal(t, []int{10, 20, 30, 40, 50}, collect(b.EdgeValues()))

	var dsts []lcgraph.Node
	var vals []int
	for dst, v := range b.Edges(0) {
		dsts = append(dsts, dst)
		vals = append(vals, v)
	}
	assert.Equal(t, []lcgraph.Node{1, 2}, dsts)
	assert.Equal(t, []int{10, 20}, vals)
}

func TestBuilder_Restartable(t *testing.T) {
	b := NewBuilder[struct{}](2)
	b.AddEdge(0, 1, struct{}{})

	first := collect(b.Dsts())
	second := collect(b.Dsts())
	assert.Equal(t, first, second)
}

func TestTranspose(t *testing.T) {
	b := NewBuilder[int](3)
	b.AddEdge(0, 1, 10)
	b.AddEdge(0, 2, 20)
	b.AddEdge(2, 1, 30)

	tr := Transpose[int](b)

	assert.Equal(t, b.Size(), tr.Size())
	assert.Equal(t, b.SizeEdges(), tr.SizeEdges())
	assert.Equal(t, uint64(0), tr.Degree(0))
	assert.Equal(t, uint64(2), tr.Degree(1))
	assert.Equal(t, uint64(1), tr.Degree(2))

	var dsts []lcgraph.Node
	var vals []int
	for dst, v := range tr.Edges(1) {
		dsts = append(dsts, dst)
		vals = append(vals, v)
	}
	assert.Equal(t, []lcgraph.Node{0, 2}, dsts)
	assert.Equal(t, []int{10, 30}, vals)
}
