// Package dedupe tracks processed battle ids for at-most-once stat updates.
package dedupe

// defaultMaxSize bounds the guard when no option overrides it.
const defaultMaxSize = 50000

// Option applies a configuration option to the guard.
type Option func(*memoryGuard)

// WithMaxSize sets the maximum number of battle ids kept in memory.
// A value <= 0 disables eviction entirely.
func WithMaxSize(maxSize int) Option {
	return func(g *memoryGuard) {
		g.maxSize = maxSize
	}
}
