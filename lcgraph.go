package lcgraph

// Node is a dense index handle identifying a node within one graph instance.
// Handles are assigned during population, never renumbered, and never reused.
type Node = uint32

// Edge is an opaque handle identifying an edge within one graph instance.
// Its encoding is layout-specific; callers obtain edge handles only from a
// graph's own iterators and hand them back to the same graph.
type Edge = uint64

// MethodFlag selects how strictly an accessor enforces exclusive access
// before returning shared state.
type MethodFlag uint8

const (
	// FlagNone performs no acquisition. The caller guarantees isolation.
	FlagNone MethodFlag = iota
	// FlagRead acquires the target node with read intent.
	FlagRead
	// FlagWrite acquires the target node ahead of a checked write.
	FlagWrite
	// FlagAll acquires the target node and, for edge-range iteration, every
	// destination reachable from it.
	FlagAll
)

// Acquirer is the injected concurrency-control capability. Implementations
// track ownership per task; Acquire returns nil when the task owns or has
// just obtained the node, and ErrConflict when another task holds it.
//
// Acquire must not block beyond the lock manager's own bounded attempt and
// must be safe to call re-entrantly for nodes the task already holds.
type Acquirer interface {
	Acquire(n Node) error
}

// Access pairs an acquisition policy with the task capability enforcing it.
// The zero value (None) never acquires anything.
type Access struct {
	Task Acquirer
	Flag MethodFlag
}

// None is the no-acquisition access value.
var None = Access{}

// Read returns an Access acquiring targets with read intent.
func Read(t Acquirer) Access { return Access{Task: t, Flag: FlagRead} }

// Write returns an Access acquiring targets ahead of checked writes.
func Write(t Acquirer) Access { return Access{Task: t, Flag: FlagWrite} }

// All returns an Access acquiring targets and their edge destinations.
func All(t Acquirer) Access { return Access{Task: t, Flag: FlagAll} }

// Locks reports whether this access acquires the target node.
func (a Access) Locks() bool { return a.Task != nil && a.Flag != FlagNone }

// LocksNeighbors reports whether edge-range iteration under this access must
// also acquire every destination node.
func (a Access) LocksNeighbors() bool { return a.Task != nil && a.Flag == FlagAll }

// Acquire applies the policy to a single node. It is a no-op for None.
func (a Access) Acquire(n Node) error {
	if !a.Locks() {
		return nil
	}
	return a.Task.Acquire(n)
}

// EdgeSortValue is the (destination, payload) pair seen by custom edge-sort
// comparators.
type EdgeSortValue[E any] struct {
	Dst  Node
	Data E
}
