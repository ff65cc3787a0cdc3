// Copyright 2024 Gustavo C. Viegas. All rights reserved.

//go:build gl

package glbackend

// buffer is a host-visible staging area used for
// CmdBuffer.ReadTexture results. Real device-local buffers
// are unnecessary for this engine: the only Buffer consumer
// is the async texture reader (package texture), which
// always requests a visible buffer.
type buffer struct {
	data    []byte
	visible bool
}

func newBuffer(size int64, visible bool) (*buffer, error) {
	return &buffer{data: make([]byte, size), visible: visible}, nil
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
