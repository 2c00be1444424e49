// Package lcgraph implements local computation graphs: in-memory graphs whose
// topology is immutable after a single bulk population pass, with per-node and
// per-edge payload values stored in flat, cache-friendly arrays.
//
// The package family provides several layouts behind one traversal contract:
//
//   - graph/csr: compressed sparse row (offset table + destination array)
//   - graph/inline: node records carrying explicit edge ranges into a shared
//     edge array
//   - graph/linear: self-describing records laid out back to back in a raw
//     arena
//   - graph/numa: the linear layout split into per-worker partitions for
//     NUMA locality
//
// All layouts identify nodes by dense uint32 handles and edges by opaque
// uint64 handles; handles are stable for the lifetime of the graph instance
// that produced them and are meaningless outside it.
//
// # Concurrency
//
// Graphs are populated once and then traversed concurrently by many worker
// goroutines. The package performs no locking itself; instead, every accessor
// that can observe or mutate shared payload state takes an Access value
// pairing an acquisition policy with the caller's Acquirer capability. When
// the policy requires it, the target node (and, under FlagAll, every reachable
// destination) is acquired before data is returned. A failed acquisition
// surfaces ErrConflict so the enclosing scheduler can abort and retry the
// task; this package never retries internally.
//
// The locks package provides a ready-made Acquirer implementation. Passing
// lcgraph.None skips acquisition entirely, which is appropriate for
// single-threaded phases or ranges already isolated by the caller.
package lcgraph
