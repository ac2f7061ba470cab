// Package eventrepo stores the events of one side that still have to be
// synchronized.
package eventrepo

import (
	"context"
	"slices"
	"sync"

	"github.com/openmined/syftnotes/internal/note"
)

// Memory is an in-memory repository. Events are returned in insertion order.
type Memory struct {
	mu     sync.RWMutex
	order  []string
	events map[string]note.Event
}

func NewMemory(events ...note.Event) *Memory {
	m := &Memory{events: make(map[string]note.Event)}
	for _, e := range events {
		m.add(e)
	}
	return m
}

func (m *Memory) Events(context.Context) ([]note.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]note.Event, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.events[id])
	}
	return out, nil
}

func (m *Memory) Add(_ context.Context, e note.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.add(e)
	return nil
}

func (m *Memory) add(e note.Event) {
	if _, ok := m.events[e.EventID]; !ok {
		m.order = append(m.order, e.EventID)
	}
	m.events[e.EventID] = e
}

func (m *Memory) Remove(_ context.Context, e note.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[e.EventID]; !ok {
		return nil
	}
	delete(m.events, e.EventID)
	m.order = slices.DeleteFunc(m.order, func(id string) bool { return id == e.EventID })
	return nil
}

// Len returns the number of pending events.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}
