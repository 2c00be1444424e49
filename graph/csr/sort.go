package csr

import (
	"sort"

	"github.com/hupe1980/lcgraph"
)

// edgeSorter reorders a destination range and its payload range in lock-step.
// The two slices are parallel views over the same edge index range.
type edgeSorter[E any] struct {
	dst  []lcgraph.Node
	data []E
	less func(data []E, i, j int) bool
}

func (s *edgeSorter[E]) Len() int { return len(s.dst) }

func (s *edgeSorter[E]) Less(i, j int) bool { return s.less(s.data, i, j) }

func (s *edgeSorter[E]) Swap(i, j int) {
	s.dst[i], s.dst[j] = s.dst[j], s.dst[i]
	s.data[i], s.data[j] = s.data[j], s.data[i]
}

func sortEdgeRange[E any](dst []lcgraph.Node, data []E, less func(data []E, i, j int) bool) {
	sort.Sort(&edgeSorter[E]{dst: dst, data: data, less: less})
}
