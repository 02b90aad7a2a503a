// Package morph provides the shared morph-weight buffer the animation
// pipeline writes into and the rendering layer reads from.
package morph

import (
	"sort"
	"strings"
	"sync"
)

// VisemePrefix is the key namespace reserved for mouth-shape weights.
// The lip-sync loop only touches keys under this prefix; the expression
// engine owns everything else. Keeping the namespaces disjoint is what
// lets both loops share one buffer.
const VisemePrefix = "viseme_"

// Buffer is a named morph-weight buffer. All weights are kept in [0, 1].
type Buffer struct {
	mu      sync.RWMutex
	weights map[string]float64

	// validKeys, when non-nil, is the set of morph targets the mesh
	// actually exposes. Unknown keys are still stored (the renderer
	// ignores them) but OnUnknownKey fires once per key.
	validKeys    map[string]bool
	unknownSeen  map[string]bool
	onUnknownKey func(key string)
}

// NewBuffer creates an empty morph-weight buffer.
func NewBuffer() *Buffer {
	return &Buffer{
		weights:     make(map[string]float64),
		unknownSeen: make(map[string]bool),
	}
}

// SetValidKeys restricts the known-key set, typically loaded from the
// avatar mesh. Pass nil to disable validation.
func (b *Buffer) SetValidKeys(keys []string, onUnknown func(key string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if keys == nil {
		b.validKeys = nil
		b.onUnknownKey = nil
		return
	}
	b.validKeys = make(map[string]bool, len(keys))
	for _, k := range keys {
		b.validKeys[k] = true
	}
	b.onUnknownKey = onUnknown
}

// Set writes a single weight, clamped to [0, 1].
func (b *Buffer) Set(key string, weight float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.set(key, weight)
}

// SetAll overwrites the given keys, clamped to [0, 1]. Keys absent from
// the map are left untouched.
func (b *Buffer) SetAll(weights map[string]float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, w := range weights {
		b.set(k, w)
	}
}

// DecayAndAdd scales every existing weight under the given key prefix
// by decay, then additively applies the given weights, clamping results
// to [0, 1]. This is the per-audio-frame write path: decay gives natural
// falloff on silence and prevents runaway accumulation. Scoping the
// decay to the caller's prefix keeps the write inside its own namespace;
// keys owned by the other writer are never touched.
func (b *Buffer) DecayAndAdd(prefix string, decay float64, add map[string]float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for k, w := range b.weights {
		if strings.HasPrefix(k, prefix) {
			b.weights[k] = w * decay
		}
	}
	for k, w := range add {
		b.set(k, b.weights[k]+w)
	}
}

// Get returns the weight for a key, zero if unset.
func (b *Buffer) Get(key string) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.weights[key]
}

// Snapshot returns a copy of all weights.
func (b *Buffer) Snapshot() map[string]float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]float64, len(b.weights))
	for k, w := range b.weights {
		out[k] = w
	}
	return out
}

// Keys returns all keys currently in the buffer, sorted.
func (b *Buffer) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.weights))
	for k := range b.weights {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ZeroPrefix sets every weight under the given key prefix to zero.
// Used for idempotent cancellation of the lip-sync loop.
func (b *Buffer) ZeroPrefix(prefix string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k := range b.weights {
		if strings.HasPrefix(k, prefix) {
			b.weights[k] = 0
		}
	}
}

// Reset clears the buffer entirely.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.weights = make(map[string]float64)
}

// set stores a clamped weight; caller holds the lock.
func (b *Buffer) set(key string, weight float64) {
	if b.validKeys != nil && !b.validKeys[key] && !b.unknownSeen[key] {
		b.unknownSeen[key] = true
		if b.onUnknownKey != nil {
			b.onUnknownKey(key)
		}
	}
	if weight < 0 {
		weight = 0
	} else if weight > 1 {
		weight = 1
	}
	b.weights[key] = weight
}
