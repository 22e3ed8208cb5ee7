package mirror

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"gsm-go/internal/gsm"
)

// MemoryMirror keeps blobs in memory. It is safe for concurrent use.
type MemoryMirror struct {
	root  string
	blobs map[string][]byte // full path -> content
	mu    sync.RWMutex
}

// NewMemoryMirror creates an empty in-memory mirror rooted at root.
func NewMemoryMirror(root string) *MemoryMirror {
	return &MemoryMirror{
		root:  root,
		blobs: make(map[string][]byte),
	}
}

var (
	sharedMu     sync.Mutex
	sharedMemory = map[string]*MemoryMirror{}
)

// sharedMemoryMirror returns the process-wide memory mirror registered under
// name, so that separately built mirrors observe the same blobs.
func sharedMemoryMirror(name, root string) *MemoryMirror {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	id := name + "\x00" + root
	m, ok := sharedMemory[id]
	if !ok {
		m = NewMemoryMirror(root)
		sharedMemory[id] = m
	}
	return m
}

func (m *MemoryMirror) Write(ctx context.Context, key string, r io.Reader, size int64) error {
	p, err := fullPath(m.root, key)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[p] = data
	return nil
}

func (m *MemoryMirror) Read(ctx context.Context, key string, w io.Writer) error {
	p, err := fullPath(m.root, key)
	if err != nil {
		return err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[p]
	if !ok {
		return notFound(key)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}
	return nil
}

func (m *MemoryMirror) Delete(ctx context.Context, key string) error {
	p, err := fullPath(m.root, key)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, p)
	return nil
}

func (m *MemoryMirror) RemoveAll(ctx context.Context, prefix string) error {
	p, err := fullPath(m.root, prefix)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.blobs {
		if k == p || strings.HasPrefix(k, p+"/") {
			delete(m.blobs, k)
		}
	}
	return nil
}

func (m *MemoryMirror) List(ctx context.Context, prefix string) ([]string, error) {
	p, err := fullPath(m.root, prefix)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.blobs {
		if k == p || strings.HasPrefix(k, strings.TrimSuffix(p, "/")+"/") {
			keys = append(keys, relativeKey(m.root, k))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Check always succeeds.
func (m *MemoryMirror) Check(context.Context) error { return nil }

// Blob returns the content stored under key and whether it exists.
func (m *MemoryMirror) Blob(key string) ([]byte, bool) {
	p, err := fullPath(m.root, key)
	if err != nil {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[p]
	return append([]byte(nil), data...), ok
}

// Len returns the number of stored blobs.
func (m *MemoryMirror) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

var _ gsm.Mirror = (*MemoryMirror)(nil)
