// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package texture implements the GPU resource manager's
// texture pool and asynchronous read-back path: a free-list
// pool keyed by (width, height, format) that recycles
// driver.Texture handles across pipeline runs, and a Reader
// that schedules non-blocking device-to-host copies.
package texture

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/gviegas/vision/driver"
	"github.com/gviegas/vision/internal/bitvec"
)

// poolKey identifies a free-list bucket. Acquire only ever
// returns an exact match, matching the pool's invariant that
// scratch textures never undergo format conversion.
type poolKey struct {
	w, h   int
	format driver.PixelFmt
}

// bucket is the set of textures ever allocated for a given
// poolKey. used tracks which slots are currently on loan;
// slot index i corresponds to texs[i].
type bucket struct {
	texs []driver.Texture
	used bitvec.V[uint32]
}

// Pool recycles driver.Texture handles of a fixed set of
// (width, height, format) combinations. Acquire/Release pair
// to borrow and return a texture; the pool never shrinks a
// bucket once grown, since the pipeline's working set of
// scratch sizes is stable across runs.
type Pool struct {
	mu      sync.Mutex
	gpu     driver.GPU
	cfg     Config
	buckets map[poolKey]*bucket
	slot    map[driver.Texture]slotRef
}

// slotRef locates a texture within its bucket, so Release
// can find the bit to unset without a linear scan.
type slotRef struct {
	key   poolKey
	index int
}

// NewPool creates a Pool that allocates new textures through
// gpu when a bucket's free list is exhausted.
func NewPool(gpu driver.GPU) *Pool {
	return &Pool{
		gpu:     gpu,
		cfg:     DefaultConfig(),
		buckets: make(map[poolKey]*bucket),
		slot:    make(map[driver.Texture]slotRef),
	}
}

var errExhausted = errors.New("texture: pool exhausted")

// Acquire returns a texture of the given size and format,
// recycling one from the free list if available, or
// allocating a new batch of wordBits (32) textures otherwise.
func (p *Pool) Acquire(w, h int, format driver.PixelFmt) (driver.Texture, error) {
	if w < 1 || h < 1 {
		return nil, errors.New("texture: invalid dimensions")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	key := poolKey{w, h, format}
	b, ok := p.buckets[key]
	if !ok {
		b = &bucket{}
		p.buckets[key] = b
	}

	idx, ok := b.used.Search()
	if !ok {
		if err := p.grow(key, b); err != nil {
			return nil, err
		}
		idx, ok = b.used.Search()
		if !ok {
			return nil, errExhausted
		}
	}
	b.used.Set(idx)
	tex := b.texs[idx]
	p.slot[tex] = slotRef{key, idx}
	return tex, nil
}

// wordBits matches the bit width of the bitvec.V[uint32]
// granularity used for every bucket's free-slot tracking.
// A bucket grows one word (32 slots) at a time, so every
// tracked bit always has a backing texture: there is no
// notion of a bit that is free but unbacked.
const wordBits = 32

// grow allocates one word's worth of new textures for key's
// bucket.
func (p *Pool) grow(key poolKey, b *bucket) error {
	start := b.used.Grow(1)
	for i := 0; i < wordBits; i++ {
		tex, err := p.gpu.NewTexture(key.format, key.w, key.h, 1, driver.UGeneric)
		if err != nil {
			for _, t := range b.texs[start:] {
				t.Destroy()
			}
			b.texs = b.texs[:start]
			b.used.Shrink(1)
			return err
		}
		b.texs = append(b.texs, tex)
	}
	if p.cfg.LogGrowth {
		slog.Debug("texture: pool grew bucket", "w", key.w, "h", key.h, "format", key.format, "total", start+wordBits)
	}
	return nil
}

// Release returns tex to the pool. It panics if tex was not
// currently on loan from p, which indicates a double-release
// or a handle foreign to this pool — both programmer errors.
func (p *Pool) Release(tex driver.Texture) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ref, ok := p.slot[tex]
	if !ok {
		panic("texture.Pool.Release: texture not on loan from this pool")
	}
	delete(p.slot, tex)
	p.buckets[ref.key].used.Unset(ref.index)
}

// Outstanding returns the total number of textures currently
// on loan across every bucket. A pipeline run must leave this
// at the same value it found at the start of the run.
func (p *Pool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slot)
}

// Free returns the total number of textures currently
// available for reuse across every bucket.
func (p *Pool) Free() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	var n int
	for _, b := range p.buckets {
		n += b.used.Rem()
	}
	return n
}
