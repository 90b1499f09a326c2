// Package queue provides the insertion-ordered containers used by the session worker.
package queue

import "container/list"

type entry[K comparable, V any] struct {
	key   K
	value V
}

// OrderedMap is a FIFO map: iteration and PopFront follow first-insertion order,
// and setting an existing key replaces its value in place.
//
// It is not goroutine-safe; callers guard it with their own lock.
type OrderedMap[K comparable, V any] struct {
	order *list.List
	index map[K]*list.Element
}

// NewOrderedMap creates an empty OrderedMap.
func NewOrderedMap[K comparable, V any]() *OrderedMap[K, V] {
	return &OrderedMap[K, V]{
		order: list.New(),
		index: make(map[K]*list.Element),
	}
}

// Set stores value under key. A key already present keeps its position.
// It reports whether the key was newly added.
func (m *OrderedMap[K, V]) Set(key K, value V) bool {
	if el, ok := m.index[key]; ok {
		el.Value.(*entry[K, V]).value = value
		return false
	}
	m.index[key] = m.order.PushBack(&entry[K, V]{key: key, value: value})

	return true
}

// Get returns the value stored under key.
func (m *OrderedMap[K, V]) Get(key K) (V, bool) {
	if el, ok := m.index[key]; ok {
		return el.Value.(*entry[K, V]).value, true
	}
	var zero V

	return zero, false
}

// Delete removes key and reports whether it was present.
func (m *OrderedMap[K, V]) Delete(key K) bool {
	el, ok := m.index[key]
	if !ok {
		return false
	}
	m.order.Remove(el)
	delete(m.index, key)

	return true
}

// Front returns the oldest entry without removing it.
func (m *OrderedMap[K, V]) Front() (K, V, bool) {
	el := m.order.Front()
	if el == nil {
		var (
			k K
			v V
		)
		return k, v, false
	}
	e := el.Value.(*entry[K, V])

	return e.key, e.value, true
}

// PopFront removes and returns the oldest entry.
func (m *OrderedMap[K, V]) PopFront() (K, V, bool) {
	k, v, ok := m.Front()
	if ok {
		m.Delete(k)
	}

	return k, v, ok
}

// Keys returns the keys in insertion order.
func (m *OrderedMap[K, V]) Keys() []K {
	keys := make([]K, 0, m.order.Len())
	for el := m.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry[K, V]).key)
	}

	return keys
}

// Len returns the number of entries.
func (m *OrderedMap[K, V]) Len() int {
	return m.order.Len()
}

// IsEmpty returns true if the map holds no entries.
func (m *OrderedMap[K, V]) IsEmpty() bool {
	return m.order.Len() == 0
}

// Reset drops every entry.
func (m *OrderedMap[K, V]) Reset() {
	m.order.Init()
	clear(m.index)
}
