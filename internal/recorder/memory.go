package recorder

import (
	"context"
	"slices"
	"sync"
)

// Memory keeps every case in memory.
type Memory struct {
	mu     sync.Mutex
	meta   Metadata
	cases  []Case
	closed bool
}

// NewMemory creates an empty in-memory recorder.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Startup(meta Metadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta = meta
	return nil
}

func (m *Memory) Record(_ context.Context, c Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cases = append(m.cases, c)
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Metadata returns what was passed to Startup.
func (m *Memory) Metadata() Metadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.meta
}

// Cases returns the recorded cases in order.
func (m *Memory) Cases() []Case {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.cases)
}

// Closed reports whether Close was called.
func (m *Memory) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

var (
	_ Recorder = (*Dump)(nil)
	_ Recorder = (*YAML)(nil)
	_ Recorder = (*Memory)(nil)
)
