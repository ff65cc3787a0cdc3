// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package texture

import (
	"context"
	"errors"
	"sync"

	"github.com/gviegas/vision/driver"
)

// Reader schedules asynchronous device-to-host copies of a
// texture's pixels.
type Reader struct {
	gpu driver.GPU
}

// NewReader creates a Reader that reads textures back through
// gpu.
func NewReader(gpu driver.GPU) *Reader { return &Reader{gpu: gpu} }

// ReadFuture is the result of a single ReadPixels call. It
// resolves exactly once, either with the copied pixel data or
// with an error (driver.ErrCancelled if Cancel was called
// before the copy completed).
type ReadFuture struct {
	ch         chan readResult
	cancel     chan struct{}
	cancelOnce sync.Once
	resolve    sync.Once
}

type readResult struct {
	data []byte
	err  error
}

func newReadFuture() *ReadFuture {
	return &ReadFuture{
		ch:     make(chan readResult, 1),
		cancel: make(chan struct{}),
	}
}

func (f *ReadFuture) resolveOnce(data []byte, err error) {
	f.resolve.Do(func() { f.ch <- readResult{data, err} })
}

// Cancel rejects the future with driver.ErrCancelled if it has
// not already resolved. It is safe to call Cancel after the
// future already resolved; it then has no effect.
func (f *ReadFuture) Cancel() {
	f.cancelOnce.Do(func() { close(f.cancel) })
}

// Wait blocks until the future resolves or ctx is done,
// whichever happens first.
func (f *ReadFuture) Wait(ctx context.Context) ([]byte, error) {
	select {
	case r := <-f.ch:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ReadPixels schedules a copy of tex's pixels into host
// memory. The copy runs on a background goroutine; the
// returned future resolves when it completes, fails, or is
// cancelled.
func (r *Reader) ReadPixels(ctx context.Context, tex driver.Texture) (*ReadFuture, error) {
	if tex == nil {
		return nil, errors.New("texture: ReadPixels of a nil texture")
	}
	sz := tex.Format().Size() * tex.Width() * tex.Height()
	buf, err := r.gpu.NewBuffer(int64(sz), true, driver.UHostRead)
	if err != nil {
		return nil, err
	}
	cb, err := r.gpu.NewCmdBuffer()
	if err != nil {
		buf.Destroy()
		return nil, err
	}
	if err := cb.Begin(); err != nil {
		cb.Destroy()
		buf.Destroy()
		return nil, err
	}
	if err := cb.ReadTexture(buf, tex); err != nil {
		cb.Destroy()
		buf.Destroy()
		return nil, err
	}
	if err := cb.End(); err != nil {
		cb.Destroy()
		buf.Destroy()
		return nil, err
	}

	f := newReadFuture()
	go f.run(ctx, r.gpu, cb, buf)
	return f, nil
}

// run commits cb and waits for either completion or
// cancellation (via ctx or f.cancel), resolving the future
// exactly once either way.
func (f *ReadFuture) run(ctx context.Context, gpu driver.GPU, cb driver.CmdBuffer, buf driver.Buffer) {
	select {
	case <-f.cancel:
		cb.Destroy()
		buf.Destroy()
		f.resolveOnce(nil, driver.ErrCancelled)
		return
	case <-ctx.Done():
		cb.Destroy()
		buf.Destroy()
		f.resolveOnce(nil, driver.ErrCancelled)
		return
	default:
	}

	done := make(chan error, 1)
	gpu.Commit([]driver.CmdBuffer{cb}, done)

	select {
	case err := <-done:
		cb.Destroy()
		if err != nil {
			buf.Destroy()
			f.resolveOnce(nil, err)
			return
		}
		data := make([]byte, len(buf.Bytes()))
		copy(data, buf.Bytes())
		buf.Destroy()
		f.resolveOnce(data, nil)
	case <-ctx.Done():
		f.resolveOnce(nil, driver.ErrCancelled)
	case <-f.cancel:
		f.resolveOnce(nil, driver.ErrCancelled)
	}
}
