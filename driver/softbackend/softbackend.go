// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package softbackend implements driver.Driver purely in Go,
// simulating kernel dispatch on the host CPU instead of on a
// real GPU. It exists so the pipeline engine's testable
// properties (wiring validity, scheduler order, resource
// conservation, codec round-trips, matrix laws) can be
// checked deterministically on any machine, with or without
// a display or a GPU driver installed.
package softbackend

import (
	"errors"
	"sync"

	"github.com/gviegas/vision/driver"
)

const driverName = "soft"

func init() {
	driver.Register(&Driver{})
}

// Driver implements driver.Driver and driver.GPU.
// Unlike a real backend, opening it always succeeds.
type Driver struct {
	mu   sync.Mutex
	gpu  *gpu
	open bool
}

// Open initializes the driver.
func (d *Driver) Open() (driver.GPU, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		d.gpu = &gpu{drv: d}
		d.open = true
	}
	return d.gpu, nil
}

// Name returns "soft".
func (d *Driver) Name() string { return driverName }

// Close deinitializes the driver.
func (d *Driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gpu = nil
	d.open = false
}

// gpu implements driver.GPU over host memory.
type gpu struct {
	drv *Driver
}

func (g *gpu) Driver() driver.Driver { return g.drv }

func (g *gpu) Limits() driver.Limits {
	return driver.Limits{
		MaxTexture2D:   16384,
		MaxLevels:      14,
		MaxDispatch:    [3]int{65535, 65535, 65535},
		Float32Texture: true,
	}
}

func (g *gpu) NewCmdBuffer() (driver.CmdBuffer, error) {
	return &cmdBuffer{gpu: g}, nil
}

func (g *gpu) NewKernel(src driver.KernelSource) (driver.Kernel, error) {
	fn, ok := lookup(src.Name)
	if !ok {
		return nil, errors.New("softbackend: unknown kernel " + src.Name)
	}
	return &kernel{name: src.Name, fn: fn}, nil
}

func (g *gpu) NewBuffer(size int64, visible bool, usg driver.Usage) (driver.Buffer, error) {
	if size < 0 {
		return nil, errors.New("softbackend: negative buffer size")
	}
	return &buffer{data: make([]byte, size), visible: visible}, nil
}

func (g *gpu) NewTexture(pf driver.PixelFmt, w, h, levels int, usg driver.Usage) (driver.Texture, error) {
	if w < 1 || h < 1 {
		return nil, errors.New("softbackend: invalid texture size")
	}
	if levels < 1 {
		levels = 1
	}
	sz := pf.Size()
	if sz == 0 {
		return nil, errors.New("softbackend: invalid pixel format")
	}
	return &texture{
		format: pf,
		w:      w,
		h:      h,
		levels: levels,
		pix:    make([]byte, w*h*sz),
	}, nil
}

// Commit executes every recorded command buffer synchronously
// and reports the result on ch, in the order given by cb
// (matching the ordering guarantee driver.GPU.Commit documents).
func (g *gpu) Commit(cb []driver.CmdBuffer, ch chan<- error) {
	var err error
	for _, c := range cb {
		b, ok := c.(*cmdBuffer)
		if !ok {
			err = errors.New("softbackend: foreign command buffer")
			break
		}
		if err = b.exec(); err != nil {
			break
		}
	}
	ch <- err
}
