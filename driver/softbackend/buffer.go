// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package softbackend

// buffer is a host-memory-backed driver.Buffer. Since the
// soft backend has no separate device memory, every buffer
// is host visible regardless of the visible parameter given
// at creation; visible only gates whether Bytes returns the
// storage, matching the contract driver.Buffer documents for
// non-visible buffers.
type buffer struct {
	data    []byte
	visible bool
}

func (b *buffer) Destroy() { b.data = nil }

func (b *buffer) Visible() bool { return b.visible }

func (b *buffer) Bytes() []byte {
	if !b.visible {
		return nil
	}
	return b.data
}

func (b *buffer) Cap() int64 { return int64(len(b.data)) }
