// Package inline provides a graph layout that interleaves each edge's
// destination and payload in a single shared record array. Node records hold
// the payload together with explicit begin/end offsets into that array.
//
// Compared to the flat CSR layout, a traversal touching both destination and
// payload reads one cache line per edge instead of two. The price is that
// destination-only scans stride over the payload bytes.
package inline
