// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package matrix

import "testing"

func ident[T Elem](n int) Matrix[T] {
	m := New[T](n, n)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

func fromRows[T Elem](rows, cols int, data []T) Matrix[T] {
	m := New[T](rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			m.Set(i, j, data[i*cols+j])
		}
	}
	return m
}

func eq[T Elem](a, b *Matrix[T]) bool {
	if a.Rows != b.Rows || a.Cols != b.Cols {
		return false
	}
	for i := 0; i < a.Rows; i++ {
		for j := 0; j < a.Cols; j++ {
			if a.At(i, j) != b.At(i, j) {
				return false
			}
		}
	}
	return true
}

func TestTransposeInvolution(t *testing.T) {
	a := fromRows[float32](2, 3, []float32{1, 2, 3, 4, 5, 6})
	at := New[float32](3, 2)
	if err := Exec(TRANSPOSE, &at, &a, nil, 0); err != nil {
		t.Fatalf("TRANSPOSE: %v", err)
	}
	att := New[float32](2, 3)
	if err := Exec(TRANSPOSE, &att, &at, nil, 0); err != nil {
		t.Fatalf("TRANSPOSE: %v", err)
	}
	if !eq(&att, &a) {
		t.Fatalf("(Aᵀ)ᵀ != A\nhave %v\nwant %v", att.Data, a.Data)
	}
}

func TestMulIdentity(t *testing.T) {
	a := fromRows[float32](2, 2, []float32{1, 2, 3, 4})
	i := ident[float32](2)
	out := New[float32](2, 2)
	if err := Exec(MUL, &out, &a, &i, 0); err != nil {
		t.Fatalf("MUL: %v", err)
	}
	if !eq(&out, &a) {
		t.Fatalf("MUL(A,I) != A\nhave %v\nwant %v", out.Data, a.Data)
	}
}

func TestMulltMatchesTransposeThenMul(t *testing.T) {
	a := fromRows[float32](3, 2, []float32{1, 2, 3, 4, 5, 6})
	b := fromRows[float32](3, 2, []float32{7, 8, 9, 10, 11, 12})

	got := New[float32](2, 2)
	if err := Exec(MULLT, &got, &a, &b, 0); err != nil {
		t.Fatalf("MULLT: %v", err)
	}

	at := New[float32](2, 3)
	if err := Exec(TRANSPOSE, &at, &a, nil, 0); err != nil {
		t.Fatalf("TRANSPOSE: %v", err)
	}
	want := New[float32](2, 2)
	if err := Exec(MUL, &want, &at, &b, 0); err != nil {
		t.Fatalf("MUL: %v", err)
	}

	if !eq(&got, &want) {
		t.Fatalf("MULLT(A,B) != MUL(TRANSPOSE(A),B)\nhave %v\nwant %v", got.Data, want.Data)
	}
}

func TestMulrtMatchesMulThenTranspose(t *testing.T) {
	a := fromRows[float32](2, 3, []float32{1, 2, 3, 4, 5, 6})
	b := fromRows[float32](2, 3, []float32{7, 8, 9, 10, 11, 12})

	got := New[float32](2, 2)
	if err := Exec(MULRT, &got, &a, &b, 0); err != nil {
		t.Fatalf("MULRT: %v", err)
	}

	bt := New[float32](3, 2)
	if err := Exec(TRANSPOSE, &bt, &b, nil, 0); err != nil {
		t.Fatalf("TRANSPOSE: %v", err)
	}
	want := New[float32](2, 2)
	if err := Exec(MUL, &want, &a, &bt, 0); err != nil {
		t.Fatalf("MUL: %v", err)
	}

	if !eq(&got, &want) {
		t.Fatalf("MULRT(A,B) != MUL(A,TRANSPOSE(B))\nhave %v\nwant %v", got.Data, want.Data)
	}
}

// TestStrideIndependence checks that operating on a strided
// (padded) matrix yields the same logical result as a packed
// one, and that the padding region is left untouched.
func TestStrideIndependence(t *testing.T) {
	a := fromRows[float32](2, 2, []float32{1, 2, 3, 4})
	b := fromRows[float32](2, 2, []float32{5, 6, 7, 8})

	packedOut := New[float32](2, 2)
	if err := Exec(MUL, &packedOut, &a, &b, 0); err != nil {
		t.Fatalf("MUL: %v", err)
	}

	sa := NewStrided[float32](2, 2, 4)
	sb := NewStrided[float32](2, 2, 4)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			sa.Set(i, j, a.At(i, j))
			sb.Set(i, j, b.At(i, j))
		}
	}
	so := NewStrided[float32](2, 2, 4)
	// poison the padding so a stray write would be detected.
	for j := 0; j < so.Cols; j++ {
		for i := so.Rows; i < so.Stride; i++ {
			so.Data[j*so.Stride+i] = -999
		}
	}

	if err := Exec(MUL, &so, &sa, &sb, 0); err != nil {
		t.Fatalf("MUL (strided): %v", err)
	}
	if !eq(&so, &packedOut) {
		t.Fatalf("strided MUL != packed MUL\nhave %v\nwant %v", so.Data, packedOut.Data)
	}
	for j := 0; j < so.Cols; j++ {
		for i := so.Rows; i < so.Stride; i++ {
			if so.Data[j*so.Stride+i] != -999 {
				t.Fatalf("MUL wrote into padding at col %d row %d", j, i)
			}
		}
	}
}

func TestFillScaleAddSub(t *testing.T) {
	var m Matrix[float32]
	m = New[float32](2, 2)
	if err := Exec(FILL, &m, nil, nil, 3); err != nil {
		t.Fatalf("FILL: %v", err)
	}
	for _, v := range m.Data {
		if v != 3 {
			t.Fatalf("FILL\nhave %v\nwant all 3", m.Data)
		}
	}

	scaled := New[float32](2, 2)
	if err := Exec(SCALE, &scaled, &m, nil, 2); err != nil {
		t.Fatalf("SCALE: %v", err)
	}
	for _, v := range scaled.Data {
		if v != 6 {
			t.Fatalf("SCALE\nhave %v\nwant all 6", scaled.Data)
		}
	}

	sum := New[float32](2, 2)
	if err := Exec(ADD, &sum, &m, &scaled, 0); err != nil {
		t.Fatalf("ADD: %v", err)
	}
	for _, v := range sum.Data {
		if v != 9 {
			t.Fatalf("ADD\nhave %v\nwant all 9", sum.Data)
		}
	}

	diff := New[float32](2, 2)
	if err := Exec(SUB, &diff, &scaled, &m, 0); err != nil {
		t.Fatalf("SUB: %v", err)
	}
	for _, v := range diff.Data {
		if v != 3 {
			t.Fatalf("SUB\nhave %v\nwant all 3", diff.Data)
		}
	}
}

func TestDimensionMismatch(t *testing.T) {
	a := New[float32](2, 3)
	b := New[float32](2, 2)
	out := New[float32](2, 2)
	if err := Exec(MUL, &out, &a, &b, 0); err == nil {
		t.Fatalf("MUL with incompatible shapes: want error, got nil")
	}
}
