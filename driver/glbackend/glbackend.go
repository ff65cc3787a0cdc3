// Copyright 2024 Gustavo C. Viegas. All rights reserved.

//go:build gl

// Package glbackend implements driver.Driver on top of a
// real OpenGL 4.6 compute-shader context, using
// github.com/soypat/glgl for program compilation and
// texture/SSBO management and github.com/go-gl/glfw for a
// hidden window carrying the context.
//
// It is built only with the "gl" build tag: most hosts
// running this engine's test suite have no display and no
// OpenGL driver, so driver/softbackend is what the tests
// exercise. This backend is for hosts that do have a GPU.
package glbackend

import (
	"errors"
	"runtime"
	"strings"
	"sync"

	"github.com/soypat/glgl/v4.6-core/glgl"

	"github.com/gviegas/vision/driver"
)

const driverName = "gl"

func init() {
	runtime.LockOSThread()
	driver.Register(&Driver{})
}

// Driver implements driver.Driver and driver.GPU over a
// hidden GLFW window's OpenGL context.
type Driver struct {
	mu        sync.Mutex
	gpu       *gpu
	open      bool
	terminate func()
}

func (d *Driver) Open() (driver.GPU, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open {
		return d.gpu, nil
	}
	_, terminate, err := glgl.InitWithCurrentWindow33(glgl.WindowConfig{
		Title:   "vision",
		Version: [2]int{4, 6},
		Width:   1,
		Height:  1,
	})
	if err != nil {
		return nil, errors.Join(driver.ErrNotInstalled, err)
	}
	d.terminate = terminate
	d.gpu = &gpu{drv: d}
	d.open = true
	return d.gpu, nil
}

func (d *Driver) Name() string { return driverName }

func (d *Driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return
	}
	if d.terminate != nil {
		d.terminate()
	}
	d.gpu = nil
	d.open = false
}

// gpu implements driver.GPU by dispatching compute shaders
// compiled with glgl.CompileProgram.
type gpu struct {
	drv  *Driver
	mu   sync.Mutex
	unit int // next free image unit for NewTexture bindings
}

func (g *gpu) Driver() driver.Driver { return g.drv }

func (g *gpu) Limits() driver.Limits {
	x, y, z := glgl.MaxComputeWorkGroupCount()
	return driver.Limits{
		MaxTexture2D:   16384,
		MaxLevels:      14,
		MaxDispatch:    [3]int{x, y, z},
		Float32Texture: true,
	}
}

func (g *gpu) NewCmdBuffer() (driver.CmdBuffer, error) {
	return &cmdBuffer{gpu: g}, nil
}

func (g *gpu) NewKernel(src driver.KernelSource) (driver.Kernel, error) {
	if len(src.Code) == 0 {
		return nil, errors.New("glbackend: NewKernel requires GLSL compute source in Code")
	}
	ss, err := glgl.ParseCombined(strings.NewReader(string(src.Code)))
	if err != nil {
		return nil, err
	}
	prog, err := glgl.CompileProgram(ss)
	if err != nil {
		return nil, err
	}
	return &kernel{name: src.Name, prog: prog}, nil
}

func (g *gpu) NewBuffer(size int64, visible bool, usg driver.Usage) (driver.Buffer, error) {
	return newBuffer(size, visible)
}

func (g *gpu) NewTexture(pf driver.PixelFmt, w, h, levels int, usg driver.Usage) (driver.Texture, error) {
	g.mu.Lock()
	unit := g.unit
	g.unit++
	g.mu.Unlock()
	return newTexture(pf, w, h, levels, unit, usg)
}

func (g *gpu) Commit(cb []driver.CmdBuffer, ch chan<- error) {
	var err error
	for _, c := range cb {
		b, ok := c.(*cmdBuffer)
		if !ok {
			err = errors.New("glbackend: foreign command buffer")
			break
		}
		if err = b.exec(); err != nil {
			break
		}
	}
	// Compute dispatches recorded via gl.DispatchCompute are
	// already synchronized with gl.MemoryBarrier in exec, so
	// by the time Commit returns every write is visible to a
	// subsequent read-back.
	ch <- err
}

