// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package linear

// M2 is a column-major 2x2 matrix of float32.
// It backs Matrix2DMessage, used by geometric nodes for
// small fixed-size transforms (e.g. an affine estimate's
// linear part) that don't warrant the general strided
// matrix.Matrix type.
type M2 [2]V2

// I makes m an identity matrix.
func (m *M2) I() { *m = M2{{1}, {0, 1}} }

// Mul sets m to contain l ⋅ r.
func (m *M2) Mul(l, r *M2) {
	*m = M2{}
	for i := range m {
		for j := range m {
			for k := range m {
				m[i][j] += l[k][j] * r[i][k]
			}
		}
	}
}

// Transpose sets m to contain the transpose of n.
func (m *M2) Transpose(n *M2) {
	for i := range m {
		m[i][i] = n[i][i]
		for j := i + 1; j < len(m); j++ {
			m[i][j], m[j][i] = n[j][i], n[i][j]
		}
	}
}

// Invert sets m to contain the inverse of n.
func (m *M2) Invert(n *M2) {
	idet := 1 / (n[0][0]*n[1][1] - n[1][0]*n[0][1])
	m[0][0] = n[1][1] * idet
	m[0][1] = -n[0][1] * idet
	m[1][0] = -n[1][0] * idet
	m[1][1] = n[0][0] * idet
}
