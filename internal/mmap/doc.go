// Package mmap provides anonymous memory mappings for off-heap storage.
//
// Graph record arenas and large backing arrays live outside the Go heap so
// that multi-gigabyte topologies do not inflate GC scan time. MapAnon creates
// a read-write anonymous mapping; Close returns it to the OS as one block.
//
// Callers must never touch a mapping's bytes after Close.
package mmap
