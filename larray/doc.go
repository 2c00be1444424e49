// Package larray provides large, typed, contiguous backing arrays for graph
// records.
//
// An Array is allocated exactly once, at its final length, and never grows:
// graph topology is immutable after population, so the usual slice growth
// machinery is pure overhead here. Arrays are cache-line aligned and, for
// pointer-free element types, may be placed off-heap in an anonymous mapping
// so multi-billion-entry destination arrays stay out of GC scans.
//
// Elements of zero size (struct{} payloads) reserve no storage at all; the
// decision folds to a constant per instantiated element type, so graphs
// without node or edge payloads pay nothing for the payload arrays.
package larray
