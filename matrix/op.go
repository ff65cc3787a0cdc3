// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package matrix

import "errors"

// Op identifies a matrix operation dispatched by Exec.
type Op int

// Operations, one per row of the op-code contract table.
const (
	NOP Op = iota
	FILL
	COPY
	TRANSPOSE
	ADD
	SUB
	MUL
	MULLT
	MULRT
	SCALE
	COMPMULT
)

func (op Op) String() string {
	switch op {
	case NOP:
		return "NOP"
	case FILL:
		return "FILL"
	case COPY:
		return "COPY"
	case TRANSPOSE:
		return "TRANSPOSE"
	case ADD:
		return "ADD"
	case SUB:
		return "SUB"
	case MUL:
		return "MUL"
	case MULLT:
		return "MULLT"
	case MULRT:
		return "MULRT"
	case SCALE:
		return "SCALE"
	case COMPMULT:
		return "COMPMULT"
	default:
		return "Op(?)"
	}
}

var errDim = errors.New("matrix: dimension mismatch")

// Exec dispatches op against out, using a and/or b as inputs
// and scalar as the FILL/SCALE operand, as the operation
// requires. Unused operands may be the zero Matrix/value.
//
// Exec never reads or writes a matrix's padding region (the
// [Rows, Stride) range of each column): every operation loops
// over the logical Rows x Cols extent only, so results are
// identical whether or not Stride == Rows.
func Exec[T Elem](op Op, out *Matrix[T], a, b *Matrix[T], scalar T) error {
	switch op {
	case NOP:
		return nil
	case FILL:
		fill(out, scalar)
		return nil
	case COPY:
		if out.Rows != a.Rows || out.Cols != a.Cols {
			return errDim
		}
		copyInto(out, a)
		return nil
	case TRANSPOSE:
		if out.Rows != a.Cols || out.Cols != a.Rows {
			return errDim
		}
		transpose(out, a)
		return nil
	case ADD:
		if !sameShape(out, a) || !sameShape(out, b) {
			return errDim
		}
		componentwise(out, a, b, func(x, y T) T { return x + y })
		return nil
	case SUB:
		if !sameShape(out, a) || !sameShape(out, b) {
			return errDim
		}
		componentwise(out, a, b, func(x, y T) T { return x - y })
		return nil
	case COMPMULT:
		if !sameShape(out, a) || !sameShape(out, b) {
			return errDim
		}
		componentwise(out, a, b, func(x, y T) T { return x * y })
		return nil
	case SCALE:
		if !sameShape(out, a) {
			return errDim
		}
		scale(out, a, scalar)
		return nil
	case MUL:
		if a.Cols != b.Rows || out.Rows != a.Rows || out.Cols != b.Cols {
			return errDim
		}
		mul(out, a, b)
		return nil
	case MULLT:
		// out = aᵀ · b: a is Rows(a) x Cols(a), aᵀ is Cols(a) x Rows(a).
		if a.Rows != b.Rows || out.Rows != a.Cols || out.Cols != b.Cols {
			return errDim
		}
		mullt(out, a, b)
		return nil
	case MULRT:
		// out = a · bᵀ: b is Rows(b) x Cols(b), bᵀ is Cols(b) x Rows(b).
		if a.Cols != b.Cols || out.Rows != a.Rows || out.Cols != b.Rows {
			return errDim
		}
		mulrt(out, a, b)
		return nil
	default:
		return errors.New("matrix: unknown op " + op.String())
	}
}

func sameShape[T Elem](x, y *Matrix[T]) bool {
	return x.Rows == y.Rows && x.Cols == y.Cols
}

func fill[T Elem](out *Matrix[T], v T) {
	if out.packed() {
		d := out.Data
		for i := range d {
			d[i] = v
		}
		return
	}
	for j := 0; j < out.Cols; j++ {
		c := out.col(j)
		for i := range c {
			c[i] = v
		}
	}
}

func copyInto[T Elem](out, in *Matrix[T]) {
	if out.packed() && in.packed() {
		copy(out.Data, in.Data)
		return
	}
	for j := 0; j < out.Cols; j++ {
		copy(out.col(j), in.col(j))
	}
}

func transpose[T Elem](out, in *Matrix[T]) {
	for j := 0; j < in.Cols; j++ {
		for i := 0; i < in.Rows; i++ {
			out.Set(j, i, in.At(i, j))
		}
	}
}

func componentwise[T Elem](out, a, b *Matrix[T], f func(x, y T) T) {
	for j := 0; j < out.Cols; j++ {
		ac, bc, oc := a.col(j), b.col(j), out.col(j)
		for i := range oc {
			oc[i] = f(ac[i], bc[i])
		}
	}
}

func scale[T Elem](out, in *Matrix[T], s T) {
	for j := 0; j < out.Cols; j++ {
		ic, oc := in.col(j), out.col(j)
		for i := range oc {
			oc[i] = s * ic[i]
		}
	}
}

// mul computes out = a * b with the outer loop walking output
// columns, the middle loop walking the shared dimension and
// the innermost loop walking rows, so both out and a are
// addressed contiguously (within a column) for cache locality.
func mul[T Elem](out, a, b *Matrix[T]) {
	fill(out, T(0))
	for j := 0; j < out.Cols; j++ {
		oc := out.col(j)
		for k := 0; k < a.Cols; k++ {
			bkj := b.At(k, j)
			if bkj == 0 {
				continue
			}
			ac := a.col(k)
			for i := range oc {
				oc[i] += ac[i] * bkj
			}
		}
	}
}

// mullt computes out = aᵀ · b. Every output element is
// written exactly once via a dot product, so no prior clear
// is needed (nor correct to skip, since accumulation here is
// local to each element's own sum).
func mullt[T Elem](out, a, b *Matrix[T]) {
	for j := 0; j < out.Cols; j++ {
		bc := b.col(j)
		for i := 0; i < out.Rows; i++ {
			ac := a.col(i)
			var sum T
			for k := range bc {
				sum += ac[k] * bc[k]
			}
			out.Set(i, j, sum)
		}
	}
}

// mulrt computes out = a · bᵀ.
func mulrt[T Elem](out, a, b *Matrix[T]) {
	fill(out, T(0))
	for k := 0; k < a.Cols; k++ {
		ac := a.col(k)
		for j := 0; j < out.Cols; j++ {
			bjk := b.At(j, k)
			if bjk == 0 {
				continue
			}
			oc := out.col(j)
			for i := range oc {
				oc[i] += ac[i] * bjk
			}
		}
	}
}
