// Package linear provides a graph layout that stores self-describing node
// records in a single raw byte arena. Each record carries the node payload
// and its out-degree, immediately followed by that node's interleaved edge
// records. An offsets table maps node handles to record positions.
//
// The whole structure lives outside the Go heap, so payload types must be
// pointer-free. Edge handles are arena byte offsets.
package linear
