// Copyright 2024 Gustavo C. Viegas. All rights reserved.

//go:build gl

package glbackend

import "github.com/soypat/glgl/v4.6-core/glgl"

// kernel wraps a compiled compute program.
type kernel struct {
	name string
	prog glgl.Program
}

func (k *kernel) Destroy()     { k.prog.Delete() }
func (k *kernel) Name() string { return k.name }
