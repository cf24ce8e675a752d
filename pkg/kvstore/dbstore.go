package kvstore

import (
	dbm "github.com/cometbft/cometbft-db"
)

// DBStore wraps a CometBFT dbm.DB to implement Fork, the same adapter shape
// used to bridge CometBFT's storage into application-level indexes.
type DBStore struct {
	db dbm.DB
}

// NewDBStore wraps db.
func NewDBStore(db dbm.DB) *DBStore {
	return &DBStore{db: db}
}

// Get implements Snapshot.
func (s *DBStore) Get(key []byte) ([]byte, bool) {
	v, err := s.db.Get(key)
	if err != nil || v == nil {
		return nil, false
	}
	return v, true
}

// Put implements Fork. Writes are durable (SetSync) since they occur at
// block-commit time.
func (s *DBStore) Put(key, value []byte) {
	_ = s.db.SetSync(key, value)
}

// Delete implements Fork.
func (s *DBStore) Delete(key []byte) {
	_ = s.db.DeleteSync(key)
}

// Iterate implements Snapshot using dbm.DB's range iterator over [prefix,
// prefix+0xff...).
func (s *DBStore) Iterate(prefix []byte, fn func(key, value []byte) bool) {
	end := prefixUpperBound(prefix)
	it, err := s.db.Iterator(prefix, end)
	if err != nil {
		return
	}
	defer it.Close()
	for ; it.Valid(); it.Next() {
		if !fn(it.Key(), it.Value()) {
			return
		}
	}
}

// prefixUpperBound returns the smallest key greater than every key with the
// given prefix, or nil if the prefix is all 0xff bytes (meaning "no upper
// bound").
func prefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
