package storage

import "sync"

// Overlay stages writes on top of a base database without mutating it. A
// settlement transition runs entirely against an overlay; Commit flushes the
// staged mutations to the base only once the transition has fully succeeded,
// giving every transition all-or-nothing semantics.
type Overlay struct {
	mu      sync.RWMutex
	base    Database
	writes  map[string][]byte
	deletes map[string]struct{}
}

// NewOverlay wraps the provided base database in a fresh staging layer.
func NewOverlay(base Database) *Overlay {
	return &Overlay{
		base:    base,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

func (o *Overlay) Put(key []byte, value []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	k := string(key)
	delete(o.deletes, k)
	o.writes[k] = append([]byte(nil), value...)
	return nil
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	k := string(key)
	if _, gone := o.deletes[k]; gone {
		return nil, ErrNotFound
	}
	if value, ok := o.writes[k]; ok {
		return append([]byte(nil), value...), nil
	}
	return o.base.Get(key)
}

func (o *Overlay) Has(key []byte) (bool, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	k := string(key)
	if _, gone := o.deletes[k]; gone {
		return false, nil
	}
	if _, ok := o.writes[k]; ok {
		return true, nil
	}
	return o.base.Has(key)
}

func (o *Overlay) Delete(key []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	k := string(key)
	delete(o.writes, k)
	o.deletes[k] = struct{}{}
	return nil
}

// Close satisfies the Database interface. The base database stays open; an
// overlay never owns the underlying connection.
func (o *Overlay) Close() {}

// Commit flushes all staged writes and deletes to the base database. The
// overlay must be discarded afterwards.
func (o *Overlay) Commit() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for k, v := range o.writes {
		if err := o.base.Put([]byte(k), v); err != nil {
			return err
		}
	}
	for k := range o.deletes {
		if err := o.base.Delete([]byte(k)); err != nil {
			return err
		}
	}
	o.writes = make(map[string][]byte)
	o.deletes = make(map[string]struct{})
	return nil
}
