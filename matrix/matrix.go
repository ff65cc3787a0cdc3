// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package matrix implements the CPU-side dense linear
// algebra kernel used by geometric estimators: a stateless
// interpreter dispatched by an operation code over
// column-major, strided matrices.
package matrix

import "golang.org/x/exp/constraints"

// Elem is the set of element types a Matrix can hold.
type Elem interface {
	constraints.Float | constraints.Integer
}

// Matrix is a column-major, strided block of numeric data.
// Element (i, j) is stored at Data[j*Stride+i]. Stride must
// be at least Rows; the range [j*Stride+Rows, j*Stride+Stride)
// within each column is padding, never read nor written by
// any operation in this package.
type Matrix[T Elem] struct {
	Rows, Cols int
	Stride     int
	Data       []T
}

// New allocates a Matrix with Stride == Rows (packed) and a
// freshly zeroed backing store.
func New[T Elem](rows, cols int) Matrix[T] {
	return Matrix[T]{Rows: rows, Cols: cols, Stride: rows, Data: make([]T, rows*cols)}
}

// NewStrided allocates a Matrix with the given stride. It
// panics if stride < rows, matching this package's
// fundamental storage invariant.
func NewStrided[T Elem](rows, cols, stride int) Matrix[T] {
	if stride < rows {
		panic("matrix: stride must be >= rows")
	}
	return Matrix[T]{Rows: rows, Cols: cols, Stride: stride, Data: make([]T, stride*cols)}
}

// At returns the element at (i, j).
func (m *Matrix[T]) At(i, j int) T { return m.Data[j*m.Stride+i] }

// Set stores v at (i, j).
func (m *Matrix[T]) Set(i, j int, v T) { m.Data[j*m.Stride+i] = v }

// packed reports whether m's storage has no per-column
// padding, allowing a single contiguous fast path.
func (m *Matrix[T]) packed() bool { return m.Stride == m.Rows }

// col returns the backing slice for column j, spanning
// exactly the logical Rows elements (no padding).
func (m *Matrix[T]) col(j int) []T {
	off := j * m.Stride
	return m.Data[off : off+m.Rows]
}
