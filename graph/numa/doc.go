// Package numa provides a graph layout that splits the linear record format
// across per-worker arenas. Nodes are divided into contiguous partitions by
// a byte-cost model, and each partition's arena is allocated and filled on
// its owning pool worker so first-touch page placement lands near the thread
// that will process the partition.
//
// Payload types must be pointer-free. Edge handles encode the owning
// partition and the record's arena offset.
package numa
