package lcgraph

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict signals that a required node is owned by another task. It is
	// a control-flow signal for the enclosing scheduler, not a failure: the
	// caller's task is expected to unwind without committing any mutation and
	// be retried.
	ErrConflict = errors.New("lcgraph: node owned by another task")

	// ErrTooManyNodes is returned when a topology exceeds the uint32 node
	// handle space.
	ErrTooManyNodes = errors.New("lcgraph: node count exceeds handle width")

	// ErrTooManyEdges is returned when the storage for a partition exceeds
	// the offset bits of the packed edge handle.
	ErrTooManyEdges = errors.New("lcgraph: partition size exceeds handle width")

	// ErrPopulated is returned when Populate is called on a graph that
	// already holds a structure.
	ErrPopulated = errors.New("lcgraph: graph already populated")
)

// ErrCountMismatch indicates that a transpose topology does not describe the
// same structure as the forward graph. It is reported before any overlay
// storage is allocated.
type ErrCountMismatch struct {
	What      string // "nodes" or "edges"
	Graph     uint64
	Transpose uint64
}

func (e *ErrCountMismatch) Error() string {
	return fmt.Sprintf("lcgraph: number of %s in graph (%d) and its transpose (%d) do not match",
		e.What, e.Graph, e.Transpose)
}
