// Package store keeps the session's variables between dispatch calls. The
// engine only ever sees snapshots; writes from setVariable land here.
package store

import (
	"sync"

	"github.com/nstehr/mudlark/mudlark-core/model"
)

// Store is the external variable store the host threads through dispatch.
type Store interface {
	// Variables returns a snapshot safe to hand to the engine.
	Variables() []model.Variable
	Set(name, value string) error
	// Seed adds variables that are not stored yet, leaving existing values alone.
	Seed(vars []model.Variable) error
	Close() error
}

// Memory is an ordered in-memory store.
type Memory struct {
	mu    sync.RWMutex
	vars  []model.Variable
	index map[string]int
}

func NewMemory(vars ...model.Variable) *Memory {
	m := &Memory{index: make(map[string]int)}
	for _, v := range vars {
		m.put(v)
	}
	return m
}

func (m *Memory) put(v model.Variable) {
	if i, ok := m.index[v.Name]; ok {
		if v.Description == "" {
			v.Description = m.vars[i].Description
		}
		m.vars[i] = v
		return
	}
	m.index[v.Name] = len(m.vars)
	m.vars = append(m.vars, v)
}

func (m *Memory) Variables() []model.Variable {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Variable, len(m.vars))
	copy(out, m.vars)
	return out
}

func (m *Memory) Get(name string) (model.Variable, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.index[name]
	if !ok {
		return model.Variable{}, false
	}
	return m.vars[i], true
}

func (m *Memory) Set(name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(model.Variable{Name: name, Value: value})
	return nil
}

func (m *Memory) Seed(vars []model.Variable) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range vars {
		if _, ok := m.index[v.Name]; !ok {
			m.put(v)
		}
	}
	return nil
}

func (m *Memory) Close() error { return nil }
