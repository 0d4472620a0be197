// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package specbm implements the spectral bundle method (SpecBM) for
// trace-bounded semidefinite programs in the canonical form of package
// sdp. A proximal bundle model of the penalized dual objective
//
//	f(y) = -⟨𝐛,y⟩ + τ·𝚖𝚊𝚡(0, λ𝚖𝚊𝚡(𝓐*(y) - 𝐂))
//
// is maintained over a low-rank basis of accumulated eigenvector
// directions. Each iteration solves a small quadratic subproblem over
// the bundle, refreshes the extreme eigenpair certificate with a Lanczos
// call, and moves the dual only on serious steps; null steps enrich the
// model without moving the iterate. The bundle method is monotone, which
// is what drives the relative gap below the stopping tolerance.
package specbm

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/specbm/eigen"
	"github.com/curioloop/specbm/sdp"
)

// iterState is the composite outer-loop state. Every transition builds a
// new record; the loop owns it exclusively.
type iterState struct {
	t int

	x    *mat.Dense // dense mode primal, nil when sketched
	xBar *mat.Dense
	p    *mat.Dense // sketch mode accumulators, nil when dense
	pBar *mat.Dense

	trX    float64
	trXBar float64

	z    []float64
	zBar []float64
	y    []float64

	v *mat.Dense // n×k bundle basis

	primalObj    float64
	barPrimalObj float64
	penDualObj   float64
	lbSpecEst    float64

	infeas       float64
	infeasGap    float64
	seriousSteps int
}

// Solve runs the bundle loop from st, which may be a cold start or a
// warm start mapped from a previous instance. st and the result are in
// scaled space; st is updated in place with the final primal/dual state.
func (sv *Solver) Solve(st *sdp.State) *Result {
	prob, o := sv.prob, &sv.opts
	n := prob.N()
	k := o.KCurr + o.KPast

	// Initial penalized dual objective and bundle basis from one
	// eigensolver call on the negated-dual operator.
	initVals, initVecs := eigen.MinK(sv.dualOperator(st.Y), n, k, o.LanczosIters, o.LanczosEps, sv.rng)
	penDualObj := -floats.Dot(prob.B, st.Y) + sv.traceUB*math.Max(0, -initVals[0])

	state := iterState{
		x:            st.X,
		xBar:         cloneDense(st.X),
		p:            st.P,
		pBar:         cloneDense(st.P),
		trX:          st.TrX,
		trXBar:       st.TrX,
		z:            append([]float64(nil), st.Z...),
		zBar:         append([]float64(nil), st.Z...),
		y:            append([]float64(nil), st.Y...),
		v:            sv.padBasis(initVecs, k),
		primalObj:    st.PrimalObj,
		barPrimalObj: st.PrimalObj,
		penDualObj:   penDualObj,
	}

	// A small relative gap certifies the dual; the primal model point can
	// lag one prox step behind it, so termination also waits for the
	// constraint image to land in K.
	for state.t == 0 ||
		(state.penDualObj-state.lbSpecEst)/(1+state.penDualObj) > o.Eps ||
		state.infeasGap > o.Eps {
		if state.t >= o.MaxIters {
			break
		}
		state = sv.step(st, state)
	}

	relGap := (state.penDualObj - state.lbSpecEst) / (1 + state.penDualObj)
	res := &Result{
		Converged:    state.t > 0 && relGap <= o.Eps && state.infeasGap <= o.Eps,
		Iterations:   state.t,
		SeriousSteps: state.seriousSteps,
		PenDualObj:   state.penDualObj,
		LBSpecEst:    state.lbSpecEst,
		RelGap:       relGap,
		Infeas:       state.infeas,
		InfeasGap:    state.infeasGap,
	}

	if log := o.Logger; log.enable(LogLast) {
		log.log("specbm: t=%d serious=%d pen_dual_obj=%.6e gap=%.3e infeas_gap=%.3e\n",
			state.t, state.seriousSteps, state.penDualObj, res.RelGap, state.infeasGap)
	}

	// Write the final iterate back for extraction or warm-starting.
	st.X = state.x
	st.P = state.p
	copy(st.Y, state.y)
	copy(st.Z, state.z)
	st.TrX = state.trX
	st.PrimalObj = state.primalObj
	return res
}

// step is the per-iteration transition of the outer state machine.
func (sv *Solver) step(st *sdp.State, state iterState) iterState {
	prob, o := sv.prob, &sv.opts
	n, m := prob.N(), prob.M()
	kc := o.KCurr
	k := o.KCurr + o.KPast

	// 1. Bundle subproblem: (η, S) over the current basis.
	eta, s := sv.solveSubproblem(state.v, state.y, state.zBar, state.barPrimalObj)
	sVals, sVecs := eighClipped(s)

	// 2. Candidate point and candidate dual.
	factor := factorCols(state.v, sVecs, sVals, 0, k, 1)
	zUpd := make([]float64, m)
	prob.A.ApplyFactor(zUpd, factor)

	zNext := make([]float64, m)
	for c := range zNext {
		zNext[c] = eta*state.zBar[c] + zUpd[c]
	}
	yCand := make([]float64, m)
	for c := range yCand {
		yCand[c] = state.y[c] + (prob.B[c]-zNext[c])/o.Rho
		if prob.IneqMask[c] && yCand[c] > 0 {
			// duals of ≤-rows live in the non-positive orthant
			yCand[c] = 0
		}
	}

	factorObj := prob.C.InnerFactor(factor)
	primalObjNext := eta*state.barPrimalObj + factorObj

	// 3. Fresh extreme eigenpair certificate at the candidate dual.
	candVals, candVecs := eigen.MinK(sv.dualOperator(yCand), n, kc, o.LanczosIters, o.LanczosEps, sv.rng)

	// 4. Candidate penalized dual objective and lower-bound estimate.
	negBy := -floats.Dot(prob.B, yCand)
	candPenDualObj := negBy + sv.traceUB*math.Max(0, -candVals[0])
	lbSpecEst := negBy + eta*floats.Dot(state.zBar, yCand) - eta*state.barPrimalObj
	lbSpecEst += floats.Dot(zUpd, yCand) - factorObj

	// 5. Serious-step test.
	yNext, penNext := state.y, state.penDualObj
	serious := o.Beta*(state.penDualObj-lbSpecEst) <= state.penDualObj-candPenDualObj
	if serious {
		yNext, penNext = yCand, candPenDualObj
	}

	// 6. Bundle center and basis update.
	currFactor := factorCols(state.v, sVecs, sVals, 0, kc, 1)
	currObj := prob.C.InnerFactor(currFactor)
	zBarUpd := make([]float64, m)
	prob.A.ApplyFactor(zBarUpd, currFactor)
	zBarNext := make([]float64, m)
	for c := range zBarNext {
		zBarNext[c] = eta*state.zBar[c] + zBarUpd[c]
	}

	var xNext, xBarNext, pNext, pBarNext *mat.Dense
	if state.x != nil {
		xNext = blendFactor(eta, state.xBar, factor)
		xBarNext = blendFactor(eta, state.xBar, currFactor)
	} else {
		pNext = blendSketch(eta, state.pBar, factor, st.Omega)
		pBarNext = blendSketch(eta, state.pBar, currFactor, st.Omega)
	}

	vNext := mat.NewDense(n, k, nil)
	if o.KPast > 0 {
		var past mat.Dense
		past.Mul(state.v, sVecs.Slice(0, k, kc, k))
		vNext.Slice(0, n, 0, o.KPast).(*mat.Dense).Copy(&past)
	}
	vNext.Slice(0, n, o.KPast, k).(*mat.Dense).Copy(sv.padBasis(candVecs, kc))

	infeas := 0.0
	residSq := 0.0
	projZ := make([]float64, m)
	prob.ProjK(projZ, zNext)
	for c := range zNext {
		r := zNext[c] - projZ[c]
		infeas = math.Max(infeas, math.Abs(r))
		residSq += r * r
	}
	infeasGap := math.Sqrt(residSq) / (1 + floats.Norm(prob.B, 2))

	next := iterState{
		t:            state.t + 1,
		x:            xNext,
		xBar:         xBarNext,
		p:            pNext,
		pBar:         pBarNext,
		trX:          eta*state.trXBar + floats.Sum(sVals),
		trXBar:       eta*state.trXBar + floats.Sum(sVals[:kc]),
		z:            zNext,
		zBar:         zBarNext,
		y:            yNext,
		v:            vNext,
		primalObj:    primalObjNext,
		barPrimalObj: eta*state.barPrimalObj + currObj,
		penDualObj:   penNext,
		lbSpecEst:    lbSpecEst,
		infeas:       infeas,
		infeasGap:    infeasGap,
		seriousSteps: state.seriousSteps,
	}
	if serious {
		next.seriousSteps++
	}

	if log := o.Logger; log.enable(LogIter) {
		log.log("t: %d - pen_dual_obj: %.8e - cand_pen_dual_obj: %.8e - lb: %.8e - eta: %.4f - infeas: %.3e\n",
			state.t, state.penDualObj, candPenDualObj, lbSpecEst, eta, infeas)
	}
	if o.OnIteration != nil {
		o.OnIteration(IterStats{
			T:              state.t,
			PenDualObj:     state.penDualObj,
			CandPenDualObj: candPenDualObj,
			LBSpecEst:      lbSpecEst,
			Eta:            eta,
			Infeas:         infeas,
			Serious:        serious,
		})
	}
	return next
}

// dualOperator is the negated-dual gradient operator at y applied slim:
// v ↦ 𝐂v - 𝓐*(y)v. Its smallest eigenpairs certify λ𝚖𝚊𝚡(𝓐*(y) - 𝐂).
func (sv *Solver) dualOperator(y []float64) eigen.Operator {
	prob := sv.prob
	buf := make([]float64, prob.N())
	return func(dst, src []float64) {
		prob.C.MatVec(dst, src)
		prob.A.AdjointVec(buf, y, src)
		floats.Sub(dst, buf)
	}
}

// padBasis widens vecs to k columns with random directions
// orthogonalized against the existing ones, keeping the bundle dimension
// fixed when the eigensolver returns a closed Krylov space.
func (sv *Solver) padBasis(vecs *mat.Dense, k int) *mat.Dense {
	n, got := vecs.Dims()
	if got >= k {
		return vecs
	}
	out := mat.NewDense(n, k, nil)
	out.Slice(0, n, 0, got).(*mat.Dense).Copy(vecs)
	col := make([]float64, n)
	prev := make([]float64, n)
	for j := got; j < k; j++ {
		for i := range col {
			col[i] = sv.rng.NormFloat64()
		}
		for l := 0; l < j; l++ {
			mat.Col(prev, l, out)
			floats.AddScaled(col, -floats.Dot(col, prev), prev)
		}
		floats.Scale(1/floats.Norm(col, 2), col)
		out.SetCol(j, col)
	}
	return out
}

// cloneDense copies a possibly nil matrix.
func cloneDense(m *mat.Dense) *mat.Dense {
	if m == nil {
		return nil
	}
	var out mat.Dense
	out.CloneFrom(m)
	return &out
}

// blendFactor forms η·X̄ + UUᵀ.
func blendFactor(eta float64, xBar, u *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Scale(eta, xBar)
	var uut mat.Dense
	uut.Mul(u, u.T())
	out.Add(&out, &uut)
	return &out
}

// blendSketch forms the sketch of η·X̄ + UUᵀ: η·P̄ + U(UᵀΩ).
func blendSketch(eta float64, pBar, u, omega *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Scale(eta, pBar)
	var utOmega mat.Dense
	utOmega.Mul(u.T(), omega)
	var upd mat.Dense
	upd.Mul(u, &utOmega)
	out.Add(&out, &upd)
	return &out
}
