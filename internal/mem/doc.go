// Package mem provides memory allocation utilities.
//
// # Aligned Allocation
//
// Backing arrays for node and edge records are allocated cache-line aligned
// (64 bytes) so associated record strides never straddle lines needlessly and
// bulk copies stay friendly to hardware prefetch.
package mem
