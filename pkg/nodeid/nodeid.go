// Package nodeid assigns process-unique identifiers to audio graph nodes.
package nodeid

import "sync/atomic"

// ID is a process-unique, monotonically assigned node identifier.
// The zero value is never assigned and is used as an invalid/unset marker.
type ID uint64

// counter is the monotonic allocator shared by every graph in the process.
var counter atomic.Uint64

// New allocates and returns the next ID. IDs are never reused, even after
// the node they named has been removed from its graph.
func New() ID {
	return ID(counter.Add(1))
}

// Valid reports whether id was produced by New (i.e. is nonzero).
func (id ID) Valid() bool {
	return id != 0
}

// String implements fmt.Stringer for diagnostics and log lines.
func (id ID) String() string {
	return "node#" + uitoa(uint64(id))
}

func uitoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
