// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sdp

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Cost is a sparse symmetric n×n cost matrix in coordinate form.
// Off-diagonal entries are stored on both sides of the diagonal, so the
// Frobenius norm of the stored data equals the Frobenius norm of the matrix.
type Cost struct {
	N    int
	Rows []int
	Cols []int
	Data []float64
}

// NewCost builds a cost matrix from coordinate data.
// The triple lists must already contain both mirror entries.
func NewCost(n int, rows, cols []int, data []float64) *Cost {
	if len(rows) != len(cols) || len(cols) != len(data) {
		panic("sdp: cost triple lists must have equal length")
	}
	return &Cost{N: n, Rows: rows, Cols: cols, Data: data}
}

// Grow returns a view of c embedded into an m×m matrix (m ≥ c.N).
// The stored entries are shared, only the logical dimension changes.
func (c *Cost) Grow(m int) *Cost {
	if m < c.N {
		panic("sdp: cannot shrink cost matrix")
	}
	return &Cost{N: m, Rows: c.Rows, Cols: c.Cols, Data: c.Data}
}

// Scaled returns a copy of c with every coefficient multiplied by s.
func (c *Cost) Scaled(s float64) *Cost {
	data := make([]float64, len(c.Data))
	for i, v := range c.Data {
		data[i] = v * s
	}
	return &Cost{N: c.N, Rows: c.Rows, Cols: c.Cols, Data: data}
}

// NormF is the Frobenius norm ‖𝐂‖F.
func (c *Cost) NormF() float64 {
	var ss float64
	for _, v := range c.Data {
		ss += v * v
	}
	return math.Sqrt(ss)
}

// MatVec computes dst = 𝐂·src. Both vectors have length N.
func (c *Cost) MatVec(dst, src []float64) {
	if len(dst) != c.N || len(src) != c.N {
		panic("sdp: cost matvec dimension mismatch")
	}
	for i := range dst {
		dst[i] = 0
	}
	for t, v := range c.Data {
		dst[c.Rows[t]] += v * src[c.Cols[t]]
	}
}

// MatMat computes dst = 𝐂·U for an N×k factor U, one column at a time.
func (c *Cost) MatMat(dst *mat.Dense, u mat.Matrix) {
	n, k := u.Dims()
	if n != c.N {
		panic("sdp: cost matmat dimension mismatch")
	}
	dst.Zero()
	for t, v := range c.Data {
		i, j := c.Rows[t], c.Cols[t]
		for l := 0; l < k; l++ {
			dst.Set(i, l, dst.At(i, l)+v*u.At(j, l))
		}
	}
}

// InnerFactor computes ⟨𝐂, UUᵀ⟩ = 𝐭𝐫(Uᵀ𝐂U) without forming UUᵀ.
func (c *Cost) InnerFactor(u mat.Matrix) float64 {
	n, k := u.Dims()
	if n != c.N {
		panic("sdp: cost inner dimension mismatch")
	}
	var sum float64
	for t, v := range c.Data {
		i, j := c.Rows[t], c.Cols[t]
		for l := 0; l < k; l++ {
			sum += v * u.At(i, l) * u.At(j, l)
		}
	}
	return sum
}

// Inner computes ⟨𝐂, 𝐗⟩ for a dense 𝐗.
func (c *Cost) Inner(x mat.Matrix) float64 {
	var sum float64
	for t, v := range c.Data {
		sum += v * x.At(c.Rows[t], c.Cols[t])
	}
	return sum
}

// Dense materializes the cost matrix. Intended for tests and small programs.
func (c *Cost) Dense() *mat.Dense {
	d := mat.NewDense(c.N, c.N, nil)
	for t, v := range c.Data {
		d.Set(c.Rows[t], c.Cols[t], d.At(c.Rows[t], c.Cols[t])+v)
	}
	return d
}
