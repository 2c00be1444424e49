// Package arena provides a fixed-capacity off-heap bump allocator for graph
// record storage.
//
// The linear and NUMA graph layouts place variable-stride records (a node
// header immediately followed by its edge records) back to back in one
// contiguous block. An Arena is that block: sized once from the topology's
// counts, mmap-backed so record memory never enters GC scans, handed out by
// bump allocation, and returned to the OS as a single unit on Close.
//
// # Concurrency Model
//
// Alloc uses lock-free CAS and is safe to call from multiple goroutines, but
// Close must not run concurrently with allocations or accesses. The NUMA
// layout gives each worker its own Arena, so in practice each instance is
// populated by exactly one goroutine (which also yields first-touch page
// placement).
//
// # Safety
//
// Offsets returned by Alloc are only meaningful with the Arena that produced
// them. Payload types stored in an Arena must not contain Go pointers: the
// memory is off-heap and invisible to the garbage collector.
package arena
