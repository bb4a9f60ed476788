package enrichment

import (
	"errors"
	"sync"
)

// ErrMailboxClosed is returned by Put once Close was called. The value was
// not stored and stays owned by the caller.
var ErrMailboxClosed = errors.New("mailbox closed")

// Mailbox is a single-slot buffer with overwrite-on-full semantics: a new Put
// replaces any value that was not taken yet. There is no queue, so a slow
// consumer always sees the most recent value.
type Mailbox[T any] struct {
	mu    sync.Mutex
	value T
	full   bool
	closed bool
	drops  uint64
}

// Put stores v. If an unconsumed value was replaced it is returned with
// dropped set, so the caller can release it.
func (m *Mailbox[T]) Put(v T) (old T, dropped bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return old, false, ErrMailboxClosed
	}
	if m.full {
		old, dropped = m.value, true
		m.drops++
	}
	m.value = v
	m.full = true
	return old, dropped, nil
}

// Take empties the slot and returns its value, if any.
func (m *Mailbox[T]) Take() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero T
	if !m.full {
		return zero, false
	}
	v := m.value
	m.value = zero
	m.full = false
	return v, true
}

// Close rejects further Puts and returns the value left in the slot, if any.
func (m *Mailbox[T]) Close() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	var zero T
	if !m.full {
		return zero, false
	}
	v := m.value
	m.value = zero
	m.full = false
	return v, true
}

// Drops returns how many values were overwritten before being taken.
func (m *Mailbox[T]) Drops() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drops
}
