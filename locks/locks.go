// Package locks provides the default lock manager behind the graph packages'
// acquisition hook.
//
// A Manager owns one lock word per node. Tasks — one per concurrently
// executing unit of work — acquire nodes through compare-and-swap; a node
// held by another task yields lcgraph.ErrConflict immediately, signaling the
// enclosing scheduler to abort and retry the task. There is no blocking and
// no internal retry: conflict detection is the whole job.
//
// Each task records the nodes it holds in a roaring bitmap so Release can
// hand everything back in one pass regardless of how scattered the task's
// neighborhood was.
package locks

import (
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/lcgraph"
)

// Manager holds the per-node ownership words for one graph instance.
// The node ID space must cover every handle the graph can produce.
type Manager struct {
	owners []atomic.Uint64
	nextID atomic.Uint64
}

// NewManager creates a manager covering node handles [0, numNodes).
func NewManager(numNodes uint64) *Manager {
	return &Manager{
		owners: make([]atomic.Uint64, numNodes),
	}
}

// NewTask creates a task context with a fresh identity and no held nodes.
//
// A Task belongs to the single goroutine executing that unit of work; it is
// not safe for concurrent use by multiple goroutines.
func (m *Manager) NewTask() *Task {
	return &Task{
		m:    m,
		id:   m.nextID.Add(1),
		held: roaring.New(),
	}
}

// Task is a unit of work's acquisition context. It implements
// lcgraph.Acquirer.
type Task struct {
	m    *Manager
	id   uint64
	held *roaring.Bitmap
}

var _ lcgraph.Acquirer = (*Task)(nil)

// Acquire takes ownership of node n. It succeeds immediately if the task
// already holds n, fails immediately with lcgraph.ErrConflict if another
// task does, and otherwise claims n for this task.
func (t *Task) Acquire(n lcgraph.Node) error {
	if t.held.Contains(n) {
		return nil
	}
	if !t.m.owners[n].CompareAndSwap(0, t.id) {
		return lcgraph.ErrConflict
	}
	t.held.Add(n)
	return nil
}

// Holds reports whether the task currently owns node n.
func (t *Task) Holds(n lcgraph.Node) bool {
	return t.held.Contains(n)
}

// HeldCount returns the number of nodes the task currently owns.
func (t *Task) HeldCount() uint64 {
	return t.held.GetCardinality()
}

// Release returns every node the task holds. Call it when the task commits
// or aborts; the task may be reused for another attempt afterwards.
func (t *Task) Release() {
	it := t.held.Iterator()
	for it.HasNext() {
		n := it.Next()
		t.m.owners[n].CompareAndSwap(t.id, 0)
	}
	t.held.Clear()
}
