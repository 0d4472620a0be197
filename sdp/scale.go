// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sdp

// Scale is the per-problem scaling triple: SCALE_C on the cost, SCALE_X on
// the primal variable, and SCALE_A per constraint row. It normalizes the
// numerical magnitudes of the program before iterating; UnscaleState is
// the exact inverse and must be applied before any structural change to
// the problem, because the factors are recomputed per instance.
type Scale struct {
	C float64
	X float64
	A []float64
}

// ComputeScale derives the scaling triple for p:
//
//	SCALE_X = 1/traceUBBase, SCALE_C = 1/‖𝐂‖F, SCALE_Aᶜ = 1/‖𝐀ᶜ‖₂
func ComputeScale(p *Problem, traceUBBase float64) Scale {
	sa := p.A.RowNorms()
	for c, v := range sa {
		if v == 0 {
			sa[c] = 1
		} else {
			sa[c] = 1 / v
		}
	}
	sc := p.C.NormF()
	if sc == 0 {
		sc = 1
	}
	return Scale{C: 1 / sc, X: 1 / traceUBBase, A: sa}
}

// ScaleProblem returns the solver-space copy of p under s.
func (s Scale) ScaleProblem(p *Problem) *Problem {
	b := make([]float64, len(p.B))
	for c, v := range p.B {
		b[c] = v * s.X * s.A[c]
	}
	return &Problem{
		C:        p.C.Scaled(s.C),
		A:        p.A.Scaled(s.A),
		B:        b,
		IneqMask: p.IneqMask,
	}
}

// ScaleState converts st from unscaled to scaled space in place.
func (s Scale) ScaleState(st *State) {
	if st.X != nil {
		st.X.Scale(s.X, st.X)
	}
	if st.P != nil {
		st.P.Scale(s.X, st.P)
	}
	for c := range st.Z {
		st.Z[c] *= s.A[c] * s.X
	}
	for c := range st.Y {
		st.Y[c] *= s.C / s.A[c]
	}
	st.TrX *= s.X
	st.PrimalObj *= s.C * s.X
}

// UnscaleState is the exact inverse of ScaleState.
func (s Scale) UnscaleState(st *State) {
	if st.X != nil {
		st.X.Scale(1/s.X, st.X)
	}
	if st.P != nil {
		st.P.Scale(1/s.X, st.P)
	}
	for c := range st.Z {
		st.Z[c] /= s.A[c] * s.X
	}
	for c := range st.Y {
		st.Y[c] *= s.A[c] / s.C
	}
	st.TrX /= s.X
	st.PrimalObj /= s.C * s.X
}
