// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package specbm

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// apgdState is one iterate of the bundle subproblem loop. Each step
// produces a wholly new record; nothing is shared across iterations.
type apgdState struct {
	i              int
	etaCurr        float64
	etaPast        float64
	sCurr          *mat.SymDense
	sPast          *mat.SymDense
	maxValueChange float64
}

// solveSubproblem minimizes the quadratic surrogate of the augmented
// Lagrangian restricted to the bundle subspace plus the η·X̄ direction:
//
//	min ⟨𝐛,y⟩ + η·f̄ - η⟨y,z̄⟩ + ⟨𝐂,VSVᵀ⟩ - ⟨y,𝓐(VSVᵀ)⟩ + (½/ρ)‖ηz̄ + 𝓐(VSVᵀ) - 𝐛‖²
//	s.t. S ⪰ 0, η ≥ 0, 𝐭𝐫(S) + η·𝐭𝐫(X̄) ≤ τ
//
// by projected gradient steps on (η, S) with the trust region enforced as
// a simplex projection of the combined eigenvalue/η vector. On inequality
// rows the penalty is one-sided: the gradient flows through the dual
// multiplier estimate ŷ = y + (𝐛-z)/ρ clamped to the cone ŷ ≤ 0, so a row
// whose multiplier crosses zero stops pulling 𝓐(X) up to 𝐛. Returns η*
// and S* with the trust-region scale τ already folded into S*.
//
// Momentum is a placeholder held at zero for tunability; the loop is
// plain projected gradient descent.
func (sv *Solver) solveSubproblem(v *mat.Dense, y, zBar []float64, barPrimalObj float64) (float64, *mat.SymDense) {
	prob, o := sv.prob, &sv.opts
	n, k := v.Dims()
	m := prob.M()
	tau := sv.traceUB

	const momentum = 0.0

	cv := mat.NewDense(n, k, nil)
	prob.C.MatMat(cv, v) // 𝐂V is constant across steps

	aopVSV := make([]float64, m)
	yHat := make([]float64, m)
	adjH := mat.NewDense(n, k, nil)
	gradS := mat.NewDense(k, k, nil)
	var tmp mat.Dense

	state := apgdState{
		sCurr:          mat.NewSymDense(k, nil),
		sPast:          mat.NewSymDense(k, nil),
		maxValueChange: 1.1 * o.APGDEps,
	}

	for state.i < o.APGDMaxIters && state.maxValueChange > o.APGDEps {
		s := mat.NewSymDense(k, nil)
		for i := 0; i < k; i++ {
			for j := i; j < k; j++ {
				s.SetSym(i, j, state.sCurr.At(i, j)+momentum*(state.sCurr.At(i, j)-state.sPast.At(i, j)))
			}
		}
		eta := state.etaCurr + momentum*(state.etaCurr-state.etaPast)

		vals, vecs := eighClipped(s)
		factor := factorCols(v, vecs, vals, 0, k, tau)
		prob.A.ApplyFactor(aopVSV, factor)

		// Gradients of the surrogate with respect to S and η, taken
		// through the clamped multiplier estimate.
		for c := range yHat {
			yHat[c] = y[c] + (prob.B[c]-(eta*zBar[c]+aopVSV[c]))/o.Rho
			if prob.IneqMask[c] && yHat[c] > 0 {
				yHat[c] = 0
			}
		}
		prob.A.AdjointFactor(adjH, yHat, v)
		tmp.Sub(cv, adjH)
		gradS.Mul(v.T(), &tmp)
		gradEta := barPrimalObj - floats.Dot(zBar, yHat)

		// Unprojected step.
		sUnproj := mat.NewSymDense(k, nil)
		for i := 0; i < k; i++ {
			for j := i; j < k; j++ {
				g := 0.5 * tau * (gradS.At(i, j) + gradS.At(j, i))
				sUnproj.SetSym(i, j, s.At(i, j)-o.APGDStepSize*g)
			}
		}
		etaUnproj := eta - o.APGDStepSize*gradEta

		uVals, uVecs := eigh(sUnproj)
		traceVals := append(append(make([]float64, 0, k+1), uVals...), etaUnproj)

		// Fast path: already on or inside the simplex.
		if !insideSimplex(traceVals) {
			projSimplex(traceVals)
		}

		etaNext := traceVals[k]
		sNext := mat.NewSymDense(k, nil)
		outerScaled(sNext, uVecs, traceVals[:k])

		change := math.Abs(state.etaCurr - etaNext)
		for i := 0; i < k; i++ {
			for j := 0; j < k; j++ {
				change = math.Max(change, math.Abs(state.sCurr.At(i, j)-sNext.At(i, j)))
			}
		}

		state = apgdState{
			i:              state.i + 1,
			etaCurr:        etaNext,
			etaPast:        state.etaCurr,
			sCurr:          sNext,
			sPast:          state.sCurr,
			maxValueChange: change,
		}
	}

	sOut := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			sOut.SetSym(i, j, tau*state.sCurr.At(i, j))
		}
	}
	return state.etaCurr, sOut
}

// insideSimplex reports the projection fast path: all coordinates
// (numerically) non-negative and summing to less than one.
func insideSimplex(vals []float64) bool {
	var sum float64
	for _, v := range vals {
		if v < -1e-6 {
			return false
		}
		sum += v
	}
	return sum < 1
}

// projSimplex projects vals in place onto the probability simplex
// {x : x ≥ 0, Σx = 1} with the standard sort-and-threshold rule.
func projSimplex(vals []float64) {
	descend := append([]float64(nil), vals...)
	sort.Sort(sort.Reverse(sort.Float64Slice(descend)))

	var cum float64
	offset := 0.0
	for i, v := range descend {
		cum += v
		if v+(1-cum)/float64(i+1) > 0 {
			offset = (1 - cum) / float64(i+1)
		}
	}
	for i, v := range vals {
		vals[i] = math.Max(v+offset, 0)
	}
}

// eigh returns the ascending eigendecomposition of a small symmetric matrix.
func eigh(s *mat.SymDense) ([]float64, *mat.Dense) {
	var es mat.EigenSym
	if !es.Factorize(s, true) {
		panic("specbm: bundle eigendecomposition failed")
	}
	vals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)
	return vals, &vecs
}

// eighClipped is eigh with negative eigenvalues clipped to zero for
// numerical safety before taking square roots.
func eighClipped(s *mat.SymDense) ([]float64, *mat.Dense) {
	vals, vecs := eigh(s)
	for i, v := range vals {
		if v < 0 {
			vals[i] = 0
		}
	}
	return vals, vecs
}

// factorCols forms V·W·diag(√(scale·λ)) for the eigenvector columns
// [lo,hi) — the low-rank factor whose Gram matrix is the bundle update.
func factorCols(v, vecs *mat.Dense, vals []float64, lo, hi int, scale float64) *mat.Dense {
	n, _ := v.Dims()
	var prod mat.Dense
	k, _ := vecs.Dims()
	prod.Mul(v, vecs.Slice(0, k, lo, hi))
	out := mat.NewDense(n, hi-lo, nil)
	for j := lo; j < hi; j++ {
		s := math.Sqrt(scale * math.Max(vals[j], 0))
		for i := 0; i < n; i++ {
			out.Set(i, j-lo, s*prod.At(i, j-lo))
		}
	}
	return out
}

// outerScaled sets dst = W·diag(vals)·Wᵀ.
func outerScaled(dst *mat.SymDense, vecs *mat.Dense, vals []float64) {
	k, _ := vecs.Dims()
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			var sum float64
			for l, v := range vals {
				sum += v * vecs.At(i, l) * vecs.At(j, l)
			}
			dst.SetSym(i, j, sum)
		}
	}
}
