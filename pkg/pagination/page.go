package pagination

// Page is one committed batch of items tagged with its 1-based index.
type Page[T any] struct {
	Index int
	Items []T
}

func newPage[T any](index int, items []T) Page[T] {
	cp := make([]T, len(items))
	copy(cp, items)
	return Page[T]{Index: index, Items: cp}
}

// State is a read-only snapshot of a Store.
type State[T any] struct {
	// Items is the derived list: pages 1..Page concatenated in order.
	Items []T

	// Page is the last committed page (0 before the first commit).
	Page int

	// TotalPages is the known page count.
	TotalPages int

	// Loading is true while a load dispatched by Advance is outstanding.
	Loading bool

	// LastError is the most recent load failure, cleared by a commit or reset.
	LastError error

	// Generation increases on every Reset.
	Generation uint64

	// Version increases on every transition. Listeners that may receive
	// snapshots out of order can discard lower versions.
	Version uint64
}

// HasMore reports whether another page can be requested.
func (s State[T]) HasMore() bool {
	return s.Page < s.TotalPages
}
