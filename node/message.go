// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package node

import (
	"github.com/gviegas/vision/driver"
	"github.com/gviegas/vision/linear"
)

// Message is an immutable value published by a node on an
// output port. The concrete types below are the only
// implementations; each pairs with exactly one Type.
type Message interface {
	messageType() Type
}

// ImageMessage carries a GPU-resident image produced or
// consumed by image-processing nodes.
type ImageMessage struct {
	Texture driver.Texture
	Format  driver.PixelFmt
}

func (ImageMessage) messageType() Type { return ImageType }

// KeypointMessage carries a densely packed keypoint list, as
// produced by the keypoint codec's encoder pass (see the
// keypoint package).
type KeypointMessage struct {
	EncodedKeypoints driver.Texture
	DescriptorSize   int
	ExtraSize        int
	EncoderLength    int
}

func (KeypointMessage) messageType() Type { return KeypointType }

// Matrix2DMessage carries a small fixed-size 2x2 matrix, used
// by geometric estimators for results that don't warrant a
// general strided matrix.
type Matrix2DMessage struct {
	M linear.M2
}

func (Matrix2DMessage) messageType() Type { return Matrix2DType }

// Vector2DMessage carries a single 2-component vector, e.g. a
// point displacement produced by a tracker.
type Vector2DMessage struct {
	V linear.V2
}

func (Vector2DMessage) messageType() Type { return Vector2DType }

// TypeOf returns the Type of a concrete Message value.
func TypeOf(m Message) Type { return m.messageType() }
