// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cgal implements the conditional-gradient augmented-Lagrangian
// loop (CGAL) for trace-bounded semidefinite programs. It is the simpler
// fallback/comparison path next to package specbm: one dominant descent
// eigenvector per iteration, the standard 2/(t+2) Frank-Wolfe schedule,
// and a proximal dual step. It is not composed with the bundle method
// within a single run.
package cgal

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/specbm/eigen"
	"github.com/curioloop/specbm/sdp"
)

// Options configures the CGAL loop.
type Options struct {
	// Beta is the smoothing/penalty parameter of the augmented Lagrangian.
	Beta float64
	// Eps is the stopping tolerance: both the surrogate objective gap and
	// the infeasibility gap must fall below it.
	Eps float64
	// MaxIters bounds the loop; exhausting it returns the best iterate.
	MaxIters int

	// LanczosIters and LanczosEps bound the per-iteration eigensolver call.
	LanczosIters int
	LanczosEps   float64

	// Scale un-normalizes the reported gaps so they are comparable across
	// differently scaled instances.
	Scale sdp.Scale

	// Seed feeds the eigensolver's randomized start vectors.
	Seed int64

	// Log, when non-nil, receives one trace line per iteration.
	Log io.Writer
}

// Result reports the final iterate quality. Non-convergence is not an
// error; callers judge the returned gaps.
type Result struct {
	Converged  bool
	Iterations int
	ObjGap     float64
	InfeasGap  float64
	PrimalObj  float64
}

// iterState is the loop state. Transitions build new records.
type iterState struct {
	t         int
	x         *mat.Dense
	p         *mat.Dense
	y         []float64
	objGap    float64
	infeasGap float64
}

// Solve runs CGAL from st (in scaled space), updating it in place with
// the final primal/dual iterate.
func Solve(prob *sdp.Problem, st *sdp.State, traceUB float64, opts Options) (*Result, error) {
	n, m := prob.N(), prob.M()
	switch {
	case traceUB <= 0:
		return nil, errors.New("cgal: trace bound must be positive")
	case opts.Beta <= 0:
		return nil, errors.New("cgal: penalty parameter beta must be positive")
	case opts.Eps <= 0:
		return nil, errors.New("cgal: stopping tolerance must be positive")
	case opts.MaxIters < 1:
		return nil, errors.New("cgal: max iterations must be at least 1")
	}
	if opts.LanczosIters <= 0 {
		opts.LanczosIters = min(n, 32)
	}
	if opts.LanczosEps <= 0 {
		opts.LanczosEps = 1e-12
	}
	scaleC, scaleX := opts.Scale.C, opts.Scale.X
	if scaleC == 0 {
		scaleC = 1
	}
	if scaleX == 0 {
		scaleX = 1
	}

	rng := rand.New(rand.NewSource(opts.Seed))

	z := make([]float64, m)
	bTilde := make([]float64, m)
	w := make([]float64, m)
	projZ := make([]float64, m)
	buf := make([]float64, n)
	gradV := make([]float64, n)

	state := iterState{
		x:         st.X,
		p:         st.P,
		y:         append([]float64(nil), st.Y...),
		objGap:    1.1 * opts.Eps,
		infeasGap: 1.1 * opts.Eps,
	}

	applyZ := func(s iterState, dst []float64) {
		if s.x != nil {
			prob.A.Apply(dst, s.x)
		} else {
			// 𝓐 is not evaluable from the sketch alone; track z incrementally.
			copy(dst, st.Z)
		}
	}

	primalObj := st.PrimalObj
	trX := st.TrX

	for (state.objGap > opts.Eps || state.infeasGap > opts.Eps) && state.t < opts.MaxIters {
		applyZ(state, z)
		for c := range bTilde {
			w[c] = z[c] + state.y[c]/opts.Beta
		}
		prob.ProjK(bTilde, w)
		for c := range w {
			w[c] = state.y[c] + opts.Beta*(z[c]-bTilde[c])
		}

		// Gradient operator 𝐂 + 𝓐*(w), applied slim.
		grad := func(dst, src []float64) {
			prob.C.MatVec(dst, src)
			prob.A.AdjointVec(buf, w, src)
			floats.Add(dst, buf)
		}
		_, vecs := eigen.MinK(grad, n, 1, opts.LanczosIters, opts.LanczosEps, rng)
		minVec := make([]float64, n)
		mat.Col(minVec, 0, vecs)

		// ⟨𝜵,𝐗 - vvᵀ⟩ without materializing the gradient:
		// ⟨𝜵,𝐗⟩ = ⟨𝐂,𝐗⟩ + w·𝓐(𝐗) and ⟨𝜵,vvᵀ⟩ = vᵀ𝜵v.
		// gradV must be distinct from buf, which grad scribbles on.
		grad(gradV, minVec)
		surrogateGap := primalObj + floats.Dot(w, z) - floats.Dot(minVec, gradV)

		objGap := surrogateGap
		for c := range z {
			objGap -= state.y[c] * (z[c] - bTilde[c])
			objGap -= 0.5 * opts.Beta * (z[c] - bTilde[c]) * (z[c] - bTilde[c])
		}
		objGap /= scaleC * scaleX

		prob.ProjK(projZ, z)
		infeasGap := 0.0
		for c := range z {
			infeasGap = math.Max(infeasGap, math.Abs(z[c]-projZ[c]))
		}
		infeasGap /= scaleX

		if opts.Log != nil {
			_, _ = fmt.Fprintf(opts.Log, "t: %d - obj_val: %.8e - obj_gap: %.3e - infeas_gap: %.3e\n",
				state.t, primalObj/(scaleC*scaleX), objGap, infeasGap)
		}

		// Frank-Wolfe blend with the rank-one update direction vvᵀ.
		eta := 2.0 / (float64(state.t) + 2.0)
		var xNext, pNext *mat.Dense
		if state.x != nil {
			xNext = mat.NewDense(n, n, nil)
			xNext.Scale(1-eta, state.x)
			for i := 0; i < n; i++ {
				for j := 0; j < n; j++ {
					xNext.Set(i, j, xNext.At(i, j)+eta*minVec[i]*minVec[j])
				}
			}
		} else {
			pNext = &mat.Dense{}
			pNext.Scale(1-eta, state.p)
			vtOmega := make([]float64, st.Omega.RawMatrix().Cols)
			for j := range vtOmega {
				col := mat.Col(nil, j, st.Omega)
				vtOmega[j] = floats.Dot(minVec, col)
			}
			for i := 0; i < n; i++ {
				for j := range vtOmega {
					pNext.Set(i, j, pNext.At(i, j)+eta*minVec[i]*vtOmega[j])
				}
			}
		}

		// Incremental bookkeeping for the sketch mode (and cheap for dense).
		primalObj = (1-eta)*primalObj + eta*costQuad(prob.C, minVec)
		trX = (1-eta)*trX + eta
		zRank1 := make([]float64, m)
		prob.A.ApplyFactor(zRank1, mat.NewDense(n, 1, minVec))
		for c := range st.Z {
			st.Z[c] = (1-eta)*z[c] + eta*zRank1[c]
		}

		// Proximal dual step at the new point.
		next := iterState{
			t:         state.t + 1,
			x:         xNext,
			p:         pNext,
			y:         make([]float64, m),
			objGap:    objGap,
			infeasGap: infeasGap,
		}
		applyZ(next, z)
		for c := range w {
			w[c] = z[c] + state.y[c]/opts.Beta
		}
		prob.ProjK(bTilde, w)
		for c := range next.y {
			next.y[c] = state.y[c] + (z[c] - bTilde[c])
		}
		state = next
	}

	st.X = state.x
	st.P = state.p
	copy(st.Y, state.y)
	st.TrX = trX
	st.PrimalObj = primalObj

	return &Result{
		Converged:  state.objGap <= opts.Eps && state.infeasGap <= opts.Eps,
		Iterations: state.t,
		ObjGap:     state.objGap,
		InfeasGap:  state.infeasGap,
		PrimalObj:  primalObj / (scaleC * scaleX),
	}, nil
}

// costQuad computes vᵀ𝐂v.
func costQuad(c *sdp.Cost, v []float64) float64 {
	var sum float64
	for t := range c.Data {
		sum += c.Data[t] * v[c.Rows[t]] * v[c.Cols[t]]
	}
	return sum
}
