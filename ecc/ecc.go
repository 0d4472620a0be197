// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ecc grows a correlation-clustering SDP one evidence constraint
// at a time. Each constraint introduces one fresh variable, orthogonality
// rows against incompatible points, and "sum greater than one" hyperplane
// rows over candidate satisfying pairs. The warm-start path transfers the
// previous solution into the grown program through low-rank point
// embeddings so the solver resumes near the old optimum instead of from
// zero.
//
// All growth happens in unscaled space. Callers unscale the incoming
// state, grow, then recompute and reapply the scaling triple for the new
// instance.
package ecc

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/specbm/sdp"
)

// Constraint is one evidence constraint over an existing program. The
// new variable it introduces has index n (the old dimension); pair
// entries may reference it.
type Constraint struct {
	// OrthoPairs lists (u, v) index pairs forced orthogonal,
	// 𝐗ᵤᵥ + 𝐗ᵥᵤ ≤ 0. The first element of each pair is treated as a
	// negated point when transferring embeddings.
	OrthoPairs [][2]int
	// SumGTOne lists groups of (u, v) pairs; within each group at least
	// one pair must correlate, Σ ½(𝐗ᵤᵥ + 𝐗ᵥᵤ) ≥ 1. The second element of
	// each pair is a satisfying point for the group.
	SumGTOne [][][2]int
}

// Grow appends the constraint's rows to an unscaled problem: the new
// variable with its diagonal equality, the orthogonality rows, the
// hyperplane rows, and one auxiliary mixed row per pair of every
// multi-pair group. It returns the group-index → auxiliary-constraint-id
// map used later to force a chosen pair to one.
func Grow(p *sdp.Problem, c Constraint) map[int][]int {
	p.AddVariable()
	p.AddOrthoConstraints(c.OrthoPairs)
	p.AddSumGTOne(c.SumGTOne)
	return p.AddMixed(c.SumGTOne)
}

// ColdStart grows the problem and pairs it with a fresh zero state.
func ColdStart(p *sdp.Problem, c Constraint, sketchDim int, rng *rand.Rand) (*sdp.State, map[int][]int, error) {
	mixed := Grow(p, c)
	st, err := sdp.NewState(p.N(), p.M(), sketchDim, rng)
	if err != nil {
		return nil, nil, err
	}
	return st, mixed, nil
}

// WarmStart grows the problem and builds a new state seeded from the old
// solution. old must be unscaled. The transfer goes through unit-norm
// point embeddings of rank max(numClusters, 2): the new point starts at
// the normalized average embedding of the group's satisfying points, and
// negated points are zeroed so the orthogonality rows start feasible.
// Old duals are carried over on the surviving constraint rows.
func WarmStart(p *sdp.Problem, c Constraint, old *sdp.State, numClusters, sketchDim int, rng *rand.Rand) (*sdp.State, map[int][]int, error) {
	oldM := p.M()
	mixed := Grow(p, c)
	st, err := sdp.NewState(p.N(), p.M(), sketchDim, rng)
	if err != nil {
		return nil, nil, err
	}

	embedDim := numClusters
	if embedDim < 2 {
		embedDim = 2
	}

	var embeds *mat.Dense
	switch {
	case !old.Sketched():
		embeds = denseEmbeds(old.X, embedDim)
	default:
		e, lambda := sdp.Reconstruct(old.Omega, old.P)
		lambda = sdp.TraceCorrect(lambda, old.TrX)
		_, r := e.Dims()
		embeds = mat.NewDense(p.N()-1, r, nil)
		for i := 0; i < p.N()-1; i++ {
			for j := 0; j < r; j++ {
				embeds.Set(i, j, e.At(i, j)*math.Sqrt(math.Max(lambda[j], 0)))
			}
		}
	}
	normalizeRows(embeds)

	embeds = appendAvgEmbed(embeds, c.SumGTOne)
	for _, uv := range c.OrthoPairs {
		zeroRow(embeds, uv[0])
	}

	if st.Sketched() {
		var ot, px mat.Dense
		ot.Mul(embeds.T(), st.Omega)
		px.Mul(embeds, &ot)
		st.P.Copy(&px)
		p.A.ApplyFactor(st.Z, embeds)
		st.PrimalObj = p.C.InnerFactor(embeds)
	} else {
		st.X.Mul(embeds, embeds.T())
		p.A.Apply(st.Z, st.X)
		st.PrimalObj = p.C.Inner(st.X)
	}
	st.TrX = rowGram(embeds)
	copy(st.Y[:oldM], old.Y[:oldM])
	return st, mixed, nil
}

// denseEmbeds extracts rank-dim embeddings 𝐄·√Λ from the top of the
// primal spectrum.
func denseEmbeds(x *mat.Dense, dim int) *mat.Dense {
	n, _ := x.Dims()
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, 0.5*(x.At(i, j)+x.At(j, i)))
		}
	}
	var es mat.EigenSym
	if !es.Factorize(sym, true) {
		panic("ecc: primal eigendecomposition failed")
	}
	vals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	if dim > n {
		dim = n
	}
	e := mat.NewDense(n, dim, nil)
	for j := 0; j < dim; j++ {
		// Eigenvalues come back ascending; take the trailing dim columns.
		src := n - dim + j
		s := math.Sqrt(math.Max(vals[src], 0))
		for i := 0; i < n; i++ {
			e.Set(i, j, vecs.At(i, src)*s)
		}
	}
	return e
}

// appendAvgEmbed adds the new point's starting embedding: the normalized
// average of the satisfying-point embeddings, each weighted down by its
// group size.
func appendAvgEmbed(embeds *mat.Dense, groups [][][2]int) *mat.Dense {
	n, r := embeds.Dims()
	out := mat.NewDense(n+1, r, nil)
	out.Slice(0, n, 0, r).(*mat.Dense).Copy(embeds)

	type pc struct {
		point, count int
	}
	seen := make(map[pc]bool)
	avg := make([]float64, r)
	for _, pairs := range groups {
		for _, uv := range pairs {
			k := pc{uv[1], len(pairs)}
			if seen[k] || k.point >= n {
				continue
			}
			seen[k] = true
			for j := 0; j < r; j++ {
				avg[j] += embeds.At(k.point, j) / float64(k.count)
			}
		}
	}
	if nrm := mat.NewVecDense(r, avg).Norm(2); nrm > 0 {
		for j := range avg {
			avg[j] /= nrm
		}
	}
	out.SetRow(n, avg)
	return out
}

func normalizeRows(m *mat.Dense) {
	rows, cols := m.Dims()
	for i := 0; i < rows; i++ {
		var nrm float64
		for j := 0; j < cols; j++ {
			v := m.At(i, j)
			nrm += v * v
		}
		if nrm = math.Sqrt(nrm); nrm > 0 {
			for j := 0; j < cols; j++ {
				m.Set(i, j, m.At(i, j)/nrm)
			}
		}
	}
}

func zeroRow(m *mat.Dense, i int) {
	_, cols := m.Dims()
	for j := 0; j < cols; j++ {
		m.Set(i, j, 0)
	}
}

// rowGram is 𝐭𝐫(𝐄𝐄ᵀ), the trace of the implied primal.
func rowGram(m *mat.Dense) float64 {
	rows, cols := m.Dims()
	var tr float64
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := m.At(i, j)
			tr += v * v
		}
	}
	return tr
}
