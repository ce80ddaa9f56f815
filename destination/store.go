package destination

import (
	"sync"
)

// Store holds the current destination for concurrent readers and writers
//
// The store has its own lock, independent of the log buffer, because reconfiguration is rare and shouldn't
// contend with the frequent enqueuing of records
type Store struct {
	lock    sync.Mutex
	current Destination
}

// NewStore creates a Store with the given initial destination
func NewStore(initial Destination) *Store {
	return &Store{
		lock:    sync.Mutex{},
		current: initial,
	}
}

// Get returns the current destination
func (store *Store) Get() Destination {
	store.lock.Lock()
	defer store.lock.Unlock()
	return store.current
}

// Set replaces the current destination with an already validated one
func (store *Store) Set(dest Destination) {
	store.lock.Lock()
	defer store.lock.Unlock()
	store.current = dest
}

// Configure parses the given text against the current destination and applies the result
//
// On error the current destination is kept and returned
func (store *Store) Configure(text []byte) (Destination, error) {
	store.lock.Lock()
	defer store.lock.Unlock()
	dest, err := Parse(text, store.current)
	if err != nil {
		return store.current, err
	}
	store.current = dest
	return dest, nil
}

// Format returns the current destination in text form, see Format
func (store *Store) Format() string {
	return Format(store.Get())
}
