// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sdp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Operator is the linear constraint operator 𝓐 stored as a struct of
// arrays of (constraint, row, col) index triples with coefficients.
//
// Ordering invariant: triples are grouped by constraint id and constraint
// blocks appear in ascending id order. Two operators describing the same
// constraints over different index spaces visit their blocks in the same
// relative order, which is exactly what ConstraintIndexMap depends on.
//
// Symmetry invariant: every off-diagonal triple (c,i,j) with i≠j has a
// mirror triple (c,j,i) carrying the same coefficient, so each implied
// constraint matrix 𝐀ᵢ is symmetric.
type Operator struct {
	M    int // number of constraints
	Con  []int
	Rows []int
	Cols []int
	Data []float64
}

// NNZ is the number of stored triples.
func (a *Operator) NNZ() int { return len(a.Con) }

// append adds one triple without mirroring.
func (a *Operator) append(c, i, j int, v float64) {
	a.Con = append(a.Con, c)
	a.Rows = append(a.Rows, i)
	a.Cols = append(a.Cols, j)
	a.Data = append(a.Data, v)
}

// appendSym adds a triple and, for off-diagonal entries, its mirror.
func (a *Operator) appendSym(c, i, j int, v float64) {
	a.append(c, i, j, v)
	if i != j {
		a.append(c, j, i, v)
	}
}

// Validate checks the symmetry invariant: every off-diagonal triple must
// have a mirror with the same coefficient. It panics with a description
// of the first violation; an asymmetric operator is a programmer error,
// not an input condition.
func (a *Operator) Validate() {
	type key struct{ c, i, j int }
	seen := make(map[key]float64, len(a.Con))
	for t := range a.Con {
		seen[key{a.Con[t], a.Rows[t], a.Cols[t]}] += a.Data[t]
	}
	for k, v := range seen {
		if k.i == k.j {
			continue
		}
		if mv, ok := seen[key{k.c, k.j, k.i}]; !ok || mv != v {
			panic(fmt.Sprintf("sdp: constraint %d entry (%d,%d) has no mirror with coefficient %g", k.c, k.i, k.j, v))
		}
	}
}

// Apply computes dst = 𝓐(𝐗) for a dense 𝐗: dstᶜ = ⟨𝐀ᶜ,𝐗⟩.
func (a *Operator) Apply(dst []float64, x mat.Matrix) {
	if len(dst) != a.M {
		panic("sdp: operator apply dimension mismatch")
	}
	for i := range dst {
		dst[i] = 0
	}
	for t, v := range a.Data {
		dst[a.Con[t]] += v * x.At(a.Rows[t], a.Cols[t])
	}
}

// ApplyFactor computes dst = 𝓐(UUᵀ) for an n×k factor U without forming UUᵀ:
// dstᶜ = Σₜ vₜ·⟨Uᵢₜ,Uⱼₜ⟩ over the triples of constraint c.
func (a *Operator) ApplyFactor(dst []float64, u mat.Matrix) {
	if len(dst) != a.M {
		panic("sdp: operator apply dimension mismatch")
	}
	_, k := u.Dims()
	for i := range dst {
		dst[i] = 0
	}
	for t, v := range a.Data {
		i, j := a.Rows[t], a.Cols[t]
		var dot float64
		for l := 0; l < k; l++ {
			dot += u.At(i, l) * u.At(j, l)
		}
		dst[a.Con[t]] += v * dot
	}
}

// AdjointVec computes dst = 𝓐*(y)·src, the slim form of the adjoint: the
// matrix Σ yᶜ𝐀ᶜ applied to a single vector, never materialized.
func (a *Operator) AdjointVec(dst, y, src []float64) {
	if len(y) != a.M {
		panic("sdp: operator adjoint dimension mismatch")
	}
	for i := range dst {
		dst[i] = 0
	}
	for t, v := range a.Data {
		dst[a.Rows[t]] += y[a.Con[t]] * v * src[a.Cols[t]]
	}
}

// AdjointFactor computes dst = 𝓐*(y)·U column-wise for an n×k factor U.
func (a *Operator) AdjointFactor(dst *mat.Dense, y []float64, u mat.Matrix) {
	if len(y) != a.M {
		panic("sdp: operator adjoint dimension mismatch")
	}
	_, k := u.Dims()
	dst.Zero()
	for t, v := range a.Data {
		i, j := a.Rows[t], a.Cols[t]
		yv := y[a.Con[t]] * v
		if yv == 0 {
			continue
		}
		for l := 0; l < k; l++ {
			dst.Set(i, l, dst.At(i, l)+yv*u.At(j, l))
		}
	}
}

// Adjoint materializes 𝓐*(y) = Σ yᶜ𝐀ᶜ as a dense n×n matrix.
// Intended for tests and small programs.
func (a *Operator) Adjoint(dst *mat.Dense, y []float64) {
	dst.Zero()
	for t, v := range a.Data {
		i, j := a.Rows[t], a.Cols[t]
		dst.Set(i, j, dst.At(i, j)+y[a.Con[t]]*v)
	}
}

// RowNorms returns the 2-norm of each constraint row of the flattened
// operator, used to compute the per-constraint scale factors.
func (a *Operator) RowNorms() []float64 {
	norms := make([]float64, a.M)
	for t, v := range a.Data {
		norms[a.Con[t]] += v * v
	}
	for i, v := range norms {
		norms[i] = math.Sqrt(v)
	}
	return norms
}

// Scaled returns a copy of a with every row c multiplied by sa[c].
func (a *Operator) Scaled(sa []float64) *Operator {
	if len(sa) != a.M {
		panic("sdp: scale vector dimension mismatch")
	}
	data := make([]float64, len(a.Data))
	for t, v := range a.Data {
		data[t] = v * sa[a.Con[t]]
	}
	return &Operator{M: a.M, Con: a.Con, Rows: a.Rows, Cols: a.Cols, Data: data}
}

// Reindexed returns a copy of a with every row/col index mapped through f.
// Constraint ids are left untouched.
func (a *Operator) Reindexed(f func(int) int) *Operator {
	rows := make([]int, len(a.Rows))
	cols := make([]int, len(a.Cols))
	for t := range a.Rows {
		rows[t] = f(a.Rows[t])
		cols[t] = f(a.Cols[t])
	}
	return &Operator{M: a.M, Con: a.Con, Rows: rows, Cols: cols, Data: a.Data}
}
