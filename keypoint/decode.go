// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package keypoint

// Decode reads the dense packed encoding out of pix (an
// encoderLength x encoderLength RGBA8 buffer) and returns the
// keypoint list it carries: the 0xFFFF/0xFFFF sentinel stops
// decoding, an all-zero cell with a zero score low byte is
// skipped (not a keypoint), and a cell with fewer than
// descriptorSize+extraSize bytes remaining is discarded rather
// than decoded.
func Decode(pix []byte, encoderLength, descriptorSize, extraSize int) []Keypoint {
	cellSize := CellSize(descriptorSize, extraSize)
	ncells := (encoderLength * encoderLength) / cellSize

	var out []Keypoint
	for c := 0; c < ncells; c++ {
		off := c * cellSize * 4
		if off+8 > len(pix) {
			break
		}
		xLo, xHi, yLo, yHi := pix[off], pix[off+1], pix[off+2], pix[off+3]
		if xLo == sentinelByte && xHi == sentinelByte && yLo == sentinelByte && yHi == sentinelByte {
			break
		}
		xRaw := uint16(xHi)<<8 | uint16(xLo)
		yRaw := uint16(yHi)<<8 | uint16(yLo)
		scoreLo := pix[off+6]
		scoreHi := pix[off+7]
		if xRaw == 0 && yRaw == 0 && scoreLo == 0 {
			continue
		}
		if off+8+descriptorSize+extraSize > len(pix) {
			break
		}

		kp := Keypoint{
			X:           float32(xRaw) / FixResolution,
			Y:           float32(yRaw) / FixResolution,
			LOD:         byteToLOD(pix[off+4]),
			Orientation: byteToOrientation(pix[off+5]),
			Score:       uint16(scoreHi)<<8 | uint16(scoreLo),
		}
		if descriptorSize > 0 {
			kp.Descriptor = append([]byte(nil), pix[off+8:off+8+descriptorSize]...)
		}
		if extraSize > 0 {
			kp.Extra = append([]byte(nil), pix[off+8+descriptorSize:off+8+descriptorSize+extraSize]...)
		}
		out = append(out, kp)
	}
	return out
}
