// Package csr implements the compressed-sparse-row graph layout.
//
// Topology lives in three flat arrays: a cumulative out-degree table, an
// edge destination array grouped by source node, and an optional edge
// payload array aligned with the destinations. Node payloads occupy a fourth
// array indexed by node handle. Neighbor range lookup is a single offset
// table read; every accessor is O(1) except HasNeighbor, which scans the
// source node's range.
//
// The InOut type layers reverse-edge traversal on top: either aliasing the
// forward arrays (symmetric inputs, zero extra memory) or materializing a
// transposed copy from a second topology source.
package csr
