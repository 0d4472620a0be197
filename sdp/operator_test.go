// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sdp

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// randomCost draws a sparse symmetric cost with unit diagonal entries
// and a few mirrored off-diagonal pairs.
func randomCost(n int, rng *rand.Rand) *Cost {
	var rows, cols []int
	var data []float64
	for i := 0; i < n; i++ {
		rows = append(rows, i)
		cols = append(cols, i)
		data = append(data, rng.NormFloat64())
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if rng.Float64() < 0.4 {
				v := rng.NormFloat64()
				rows = append(rows, i, j)
				cols = append(cols, j, i)
				data = append(data, v, v)
			}
		}
	}
	return NewCost(n, rows, cols, data)
}

func TestAssembleMirrorCompleteness(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	p := Assemble(randomCost(8, rng))
	p.A.Validate()

	type key struct{ c, i, j int }
	seen := make(map[key]float64)
	for idx := range p.A.Data {
		seen[key{p.A.Con[idx], p.A.Rows[idx], p.A.Cols[idx]}] = p.A.Data[idx]
	}
	for idx := range p.A.Data {
		c, i, j := p.A.Con[idx], p.A.Rows[idx], p.A.Cols[idx]
		if i == j {
			continue
		}
		v, ok := seen[key{c, j, i}]
		if !ok {
			t.Fatalf("triple (%d,%d,%d) has no mirror", c, i, j)
		}
		if v != p.A.Data[idx] {
			t.Fatalf("mirror of (%d,%d,%d) has coefficient %g, want %g", c, i, j, v, p.A.Data[idx])
		}
	}
}

func TestAssembleConstraintShape(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	c := randomCost(6, rng)
	p := Assemble(c)

	offDiag := 0
	for idx := range c.Data {
		if c.Rows[idx] < c.Cols[idx] {
			offDiag++
		}
	}
	if p.M() != 6+offDiag {
		t.Fatalf("assembled %d constraints, want %d", p.M(), 6+offDiag)
	}
	for i := 0; i < 6; i++ {
		if p.IneqMask[i] || p.B[i] != 1 {
			t.Fatalf("diagonal row %d is not an equality with b=1", i)
		}
	}
	for i := 6; i < p.M(); i++ {
		if !p.IneqMask[i] || p.B[i] != 0 {
			t.Fatalf("entry row %d is not an inequality with b=0", i)
		}
	}
}

func TestAdjointConsistency(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	p := Assemble(randomCost(7, rng))
	n, m := p.N(), p.M()

	// Random symmetric X and random y: ⟨𝓐*(y),𝐗⟩ must equal y·𝓐(𝐗).
	x := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := rng.NormFloat64()
			x.Set(i, j, v)
			x.Set(j, i, v)
		}
	}
	y := make([]float64, m)
	for i := range y {
		y[i] = rng.NormFloat64()
	}

	ax := make([]float64, m)
	p.A.Apply(ax, x)
	var lhs float64
	for c := range y {
		lhs += y[c] * ax[c]
	}

	adj := mat.NewDense(n, n, nil)
	p.A.Adjoint(adj, y)
	var rhs float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			rhs += adj.At(i, j) * x.At(i, j)
		}
	}

	if math.Abs(lhs-rhs) > 1e-10*(1+math.Abs(lhs)) {
		t.Fatalf("adjoint identity violated: %g vs %g", lhs, rhs)
	}
}

func TestApplyFactorMatchesApply(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	p := Assemble(randomCost(6, rng))
	n, m := p.N(), p.M()

	u := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		u.Set(i, 0, rng.NormFloat64())
		u.Set(i, 1, rng.NormFloat64())
	}
	var x mat.Dense
	x.Mul(u, u.T())

	slim := make([]float64, m)
	dense := make([]float64, m)
	p.A.ApplyFactor(slim, u)
	p.A.Apply(dense, &x)

	for c := range slim {
		if math.Abs(slim[c]-dense[c]) > 1e-10 {
			t.Fatalf("row %d: factor application %g, dense %g", c, slim[c], dense[c])
		}
	}
}

func TestProjK(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	p := Assemble(randomCost(5, rng))
	m := p.M()

	v := make([]float64, m)
	for c := range v {
		v[c] = rng.NormFloat64() * 2
	}
	dst := make([]float64, m)
	p.ProjK(dst, v)

	for c := range dst {
		if p.IneqMask[c] {
			if dst[c] > p.B[c] {
				t.Fatalf("inequality row %d projected above its bound", c)
			}
			if v[c] <= p.B[c] && dst[c] != v[c] {
				t.Fatalf("feasible inequality row %d was moved", c)
			}
		} else if dst[c] != p.B[c] {
			t.Fatalf("equality row %d not pinned to b", c)
		}
	}
}
