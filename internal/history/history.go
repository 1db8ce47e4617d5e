// Package history provides a bounded, linear undo/redo stack of labelled
// state snapshots.
package history

import (
	"time"

	"github.com/google/uuid"
)

// DefaultCapacity is the number of entries kept when no capacity is given.
const DefaultCapacity = 50

// Entry is one snapshot in the stack.
type Entry[T any] struct {
	ID        string
	Timestamp time.Time
	Label     string
	State     T
}

// Info describes an entry without its state.
type Info struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Label     string    `json:"label"`
	Current   bool      `json:"current"`
}

// History is a bounded stack with a single cursor. Pushing after an undo
// discards the entries ahead of the cursor. It is not safe for concurrent use.
type History[T any] struct {
	entries  []Entry[T]
	cursor   int
	capacity int
	clone    func(T) T
	now      func() time.Time
}

// New creates a history holding at most capacity entries. clone must return a
// deep copy; it is applied on the way in and on the way out so callers never
// share memory with a stored snapshot.
func New[T any](capacity int, clone func(T) T) *History[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &History[T]{
		cursor:   -1,
		capacity: capacity,
		clone:    clone,
		now:      time.Now,
	}
}

// Push records state as the newest entry.
func (h *History[T]) Push(label string, state T) Entry[T] {
	if h.cursor < len(h.entries)-1 {
		h.entries = h.entries[:h.cursor+1]
	}

	e := Entry[T]{
		ID:        uuid.NewString(),
		Timestamp: h.now(),
		Label:     label,
		State:     h.clone(state),
	}
	h.entries = append(h.entries, e)

	if overflow := len(h.entries) - h.capacity; overflow > 0 {
		// Drop references so evicted snapshots can be collected.
		for i := 0; i < overflow; i++ {
			h.entries[i] = Entry[T]{}
		}
		h.entries = h.entries[overflow:]
	}
	h.cursor = len(h.entries) - 1
	return e
}

// Reset replaces the whole stack with a single baseline entry.
func (h *History[T]) Reset(label string, state T) {
	h.entries = nil
	h.cursor = -1
	h.Push(label, state)
}

// Undo moves the cursor back one entry and returns a copy of that state.
func (h *History[T]) Undo() (T, bool) {
	if !h.CanUndo() {
		var zero T
		return zero, false
	}
	h.cursor--
	return h.clone(h.entries[h.cursor].State), true
}

// Redo moves the cursor forward one entry and returns a copy of that state.
func (h *History[T]) Redo() (T, bool) {
	if !h.CanRedo() {
		var zero T
		return zero, false
	}
	h.cursor++
	return h.clone(h.entries[h.cursor].State), true
}

func (h *History[T]) CanUndo() bool {
	return h.cursor > 0
}

func (h *History[T]) CanRedo() bool {
	return h.cursor >= 0 && h.cursor < len(h.entries)-1
}

// Current returns a copy of the entry under the cursor.
func (h *History[T]) Current() (Entry[T], bool) {
	if h.cursor < 0 {
		return Entry[T]{}, false
	}
	e := h.entries[h.cursor]
	e.State = h.clone(e.State)
	return e, true
}

func (h *History[T]) Len() int { return len(h.entries) }
func (h *History[T]) Cursor() int { return h.cursor }
func (h *History[T]) Capacity() int { return h.capacity }

// Entries lists the stack oldest first.
func (h *History[T]) Entries() []Info {
	out := make([]Info, len(h.entries))
	for i, e := range h.entries {
		out[i] = Info{ID: e.ID, Timestamp: e.Timestamp, Label: e.Label, Current: i == h.cursor}
	}
	return out
}
