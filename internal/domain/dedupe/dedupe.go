// Package dedupe tracks processed battle ids for at-most-once stat updates.
package dedupe

import (
	"context"
	"sync"
)

// Guard records seen battle IDs so a replayed battle never double-counts
// participant statistics.
type Guard interface {
	// SeenAndRecord atomically checks whether id was seen and records it
	// if not. Returns true if id was already seen.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets an ID so it can be retried. Used when a battle was
	// marked seen but failed to enqueue (backpressure).
	Unrecord(ctx context.Context, id string)

	// Size returns the number of tracked ids.
	Size() int64
}

// memoryGuard implements Guard with a map plus a FIFO ring of ids. When the
// ring is full the oldest id is evicted: a battle id recurs immediately
// after submission (a replayed request) or never, so forgetting old ids is
// safe.
type memoryGuard struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	ring    []string
	next    int
	maxSize int // 0 or negative disables eviction
}

// NewGuard creates a battle-id guard with configuration options.
func NewGuard(opts ...Option) Guard {
	g := &memoryGuard{
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.seen = make(map[string]struct{})
	if g.maxSize > 0 {
		g.ring = make([]string, g.maxSize)
	}
	return g
}

func (g *memoryGuard) SeenAndRecord(_ context.Context, id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.seen[id]; ok {
		return true
	}
	if g.maxSize > 0 {
		if old := g.ring[g.next]; old != "" {
			delete(g.seen, old)
		}
		g.ring[g.next] = id
		g.next = (g.next + 1) % g.maxSize
	}
	g.seen[id] = struct{}{}
	return false
}

func (g *memoryGuard) Unrecord(_ context.Context, id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.seen[id]; !ok {
		return
	}
	delete(g.seen, id)
	if g.maxSize > 0 {
		for i, v := range g.ring {
			if v == id {
				g.ring[i] = ""
				break
			}
		}
	}
}

func (g *memoryGuard) Size() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return int64(len(g.seen))
}
