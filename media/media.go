// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package media defines the upload seam through which a host
// image source (a decoded still, a video frame, a canvas)
// gets its pixels onto the device: width, height, and a
// method that uploads the current frame into a caller-
// supplied texture. The core engine depends only on this
// interface, never on how a frame was produced.
package media

import (
	"github.com/gviegas/vision/driver"
)

// Media is implemented by any frame source an Image.Source
// node can wrap.
type Media interface {
	// Width and Height return the current frame's dimensions.
	// They must match the destination texture passed to
	// Upload.
	Width() int
	Height() int

	// Upload writes the current frame's pixels into dst, a
	// texture already sized Width() x Height(). It is
	// synchronous: the device observes the write before
	// Upload returns.
	Upload(gpu driver.GPU, dst driver.Texture) error
}

// upload is the shared device path every Media implementation
// in this package funnels through: stage pix in a host-
// visible buffer, record a WriteTexture, and commit
// synchronously.
func upload(gpu driver.GPU, pix []byte, dst driver.Texture) error {
	buf, err := gpu.NewBuffer(int64(len(pix)), true, driver.UGeneric)
	if err != nil {
		return err
	}
	defer buf.Destroy()
	copy(buf.Bytes(), pix)

	cb, err := gpu.NewCmdBuffer()
	if err != nil {
		return err
	}
	defer cb.Destroy()
	if err := cb.Begin(); err != nil {
		return err
	}
	if err := cb.WriteTexture(dst, buf); err != nil {
		return err
	}
	if err := cb.End(); err != nil {
		return err
	}

	ch := make(chan error, 1)
	gpu.Commit([]driver.CmdBuffer{cb}, ch)
	return <-ch
}
