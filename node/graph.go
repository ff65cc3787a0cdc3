// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package node

import "github.com/gviegas/vision/internal/bitm"

// Graph is a dense, bitmap-indexed table of nodes, assigning
// each a stable integer id for the lifetime of its membership
// in the table. A pipeline embeds a Graph to track its node
// set; connection records (edges) are the pipeline's own
// responsibility, kept separate so neither a node nor this
// table holds a back-pointer to its owning pipeline.
type Graph struct {
	bm    bitm.Bitm[uint32]
	slots []Interface
}

// wordBits matches the bit width of bitm.Bitm[uint32]'s
// granularity: the slot table grows a whole word (32 ids) at
// a time, so every tracked bit always addresses a valid slice
// index.
const wordBits = 32

// Add assigns n a fresh id and returns it.
func (g *Graph) Add(n Interface) int {
	idx, ok := g.bm.Search()
	if !ok {
		idx = g.bm.Grow(1)
		g.slots = append(g.slots, make([]Interface, wordBits)...)
	}
	g.bm.Set(idx)
	g.slots[idx] = n
	return idx
}

// Remove retires id, making it available for reuse by a
// future Add.
func (g *Graph) Remove(id int) {
	g.slots[id] = nil
	g.bm.Unset(id)
}

// At returns the node previously assigned id, or nil if id is
// not currently in use.
func (g *Graph) At(id int) Interface {
	if id < 0 || id >= len(g.slots) {
		return nil
	}
	return g.slots[id]
}

// Len returns the number of nodes currently in the table.
func (g *Graph) Len() int { return g.bm.Len() - g.bm.Rem() }

// Each calls f for every node currently in the table, in id
// order.
func (g *Graph) Each(f func(id int, n Interface)) {
	for i, n := range g.slots {
		if n != nil {
			f(i, n)
		}
	}
}
