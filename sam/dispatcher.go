package sam

import "sync"

// Dispatcher is a many-to-many listener registry keyed by exact string.
// The zero value is ready to use and safe for concurrent use.
type Dispatcher[T any] struct {
	mu   sync.RWMutex
	next uint64
	subs map[string][]listener[T]
}

type listener[T any] struct {
	id uint64
	fn func(T)
}

// Subscribe registers fn under key and returns a function that removes
// it again.  Calling the returned function more than once is harmless.
func (d *Dispatcher[T]) Subscribe(key string, fn func(T)) (unsubscribe func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.subs == nil {
		d.subs = make(map[string][]listener[T])
	}
	d.next++
	id := d.next
	d.subs[key] = append(d.subs[key], listener[T]{id: id, fn: fn})

	return func() { d.remove(key, id) }
}

func (d *Dispatcher[T]) remove(key string, id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ls := d.subs[key]
	for i, l := range ls {
		if l.id == id {
			// Copy so a Dispatch iterating the old slice is unaffected.
			next := make([]listener[T], 0, len(ls)-1)
			next = append(next, ls[:i]...)
			next = append(next, ls[i+1:]...)
			if len(next) == 0 {
				delete(d.subs, key)
			} else {
				d.subs[key] = next
			}
			return
		}
	}
}

// Dispatch calls every listener registered under key, in registration
// order, and returns how many ran.  Listeners run without the registry
// lock held, so they may Subscribe or unsubscribe.
func (d *Dispatcher[T]) Dispatch(key string, v T) int {
	d.mu.RLock()
	ls := d.subs[key]
	d.mu.RUnlock()

	for _, l := range ls {
		l.fn(v)
	}
	return len(ls)
}

// Has reports whether any listener is registered under key.
func (d *Dispatcher[T]) Has(key string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs[key]) > 0
}
