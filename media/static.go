// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package media

import (
	"image"
	_ "image/png"
	"io"

	"golang.org/x/image/draw"

	"github.com/gviegas/vision/driver"
)

// StaticImage is a Media backed by a single decoded image,
// useful for fixture-driven tests and for any pipeline whose
// input never changes across runs.
type StaticImage struct {
	rgba *image.RGBA
}

// NewStaticImage decodes r (any format registered with the
// standard image package; PNG is registered by this package's
// import) into a fixed RGBA frame.
func NewStaticImage(r io.Reader) (*StaticImage, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)
	return &StaticImage{rgba: rgba}, nil
}

func (m *StaticImage) Width() int  { return m.rgba.Bounds().Dx() }
func (m *StaticImage) Height() int { return m.rgba.Bounds().Dy() }

func (m *StaticImage) Upload(gpu driver.GPU, dst driver.Texture) error {
	return upload(gpu, m.rgba.Pix, dst)
}
