// Package kvstore defines the read-only snapshot and writable fork
// abstractions the Merkelized storage schema is built on. Any concrete
// key-value engine satisfying these two small interfaces may be plugged in;
// this is the sole dynamic-dispatch boundary in the core (§9).
package kvstore

// Snapshot is an immutable, point-in-time view of the key space. Read-only
// wallet queries are served from snapshots taken at block boundaries.
type Snapshot interface {
	// Get returns the value stored at key, or ok=false if absent.
	Get(key []byte) (value []byte, ok bool)

	// Iterate calls fn for every key with the given prefix, in ascending
	// lexicographic key order, until fn returns false.
	Iterate(prefix []byte, fn func(key, value []byte) bool)
}

// Fork is a writable view exclusively owned by the engine during execution
// of a single block. CONCURRENCY: a Fork must not be shared across
// goroutines; the engine guarantees sequential access.
type Fork interface {
	Snapshot
	Put(key, value []byte)
	Delete(key []byte)
}
