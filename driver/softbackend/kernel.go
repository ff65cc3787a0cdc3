// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package softbackend

import (
	"errors"
	"sync"

	"github.com/gviegas/vision/driver"
)

// Func is the signature of a host-simulated kernel.
// It runs the kernel's whole work for the given tile against
// out's pixel storage, with uniforms bound exactly as they
// were given to CmdBuffer.Dispatch.
type Func func(out driver.Texture, uniforms []driver.Uniform, tileIndex, tileCount int) error

var (
	regMu sync.RWMutex
	reg   = make(map[string]Func)
)

// RegisterKernel makes a kernel function available under
// name for NewKernel to resolve. It panics if name is
// already registered: unlike driver.Register, which replaces
// a driver by name, a kernel identity clash is a programmer
// error rather than a runtime reconfiguration.
func RegisterKernel(name string, fn Func) {
	regMu.Lock()
	defer regMu.Unlock()
	if _, ok := reg[name]; ok {
		panic("softbackend: kernel already registered: " + name)
	}
	reg[name] = fn
}

func lookup(name string) (Func, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	fn, ok := reg[name]
	return fn, ok
}

// kernel implements driver.Kernel.
type kernel struct {
	name string
	fn   Func
}

func (k *kernel) Destroy()     {}
func (k *kernel) Name() string { return k.name }

// Uniform lookup helpers, for the kernel functions that other
// packages register; this package itself registers none.

// Float32 returns the float32 value of the uniform named
// name, or ok=false if absent or of the wrong type.
func Float32(u []driver.Uniform, name string) (float32, bool) {
	for _, x := range u {
		if x.Name == name {
			v, ok := x.Value.(float32)
			return v, ok
		}
	}
	return 0, false
}

// Texture returns the driver.Texture value of the uniform
// named name, or ok=false if absent or of the wrong type.
func Texture(u []driver.Uniform, name string) (driver.Texture, bool) {
	for _, x := range u {
		if x.Name == name {
			v, ok := x.Value.(driver.Texture)
			return v, ok
		}
	}
	return nil, false
}

// Int returns the int value of the uniform named name, or
// ok=false if absent or of the wrong type.
func Int(u []driver.Uniform, name string) (int, bool) {
	for _, x := range u {
		if x.Name == name {
			v, ok := x.Value.(int)
			return v, ok
		}
	}
	return 0, false
}

// pix returns the host-accessible pixel storage of tex.
func pix(tex driver.Texture) ([]byte, error) {
	ht, ok := tex.(hostTexture)
	if !ok {
		return nil, errors.New("softbackend: texture is not host-accessible")
	}
	return ht.Pix(), nil
}

// Pixels exposes a texture's host-accessible pixel storage to
// a registered kernel function. A soft-backend texture is
// just a byte slice, so a kernel reads (or, for its own out
// parameter, writes) through the slice Pixels returns
// directly, with no copy. It fails if tex did not come from
// this backend.
func Pixels(tex driver.Texture) ([]byte, error) {
	return pix(tex)
}
