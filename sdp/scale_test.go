// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sdp

import (
	"math"
	"math/rand"
	"testing"
)

func randomState(n, m, sketchDim int, rng *rand.Rand) *State {
	st, err := NewState(n, m, sketchDim, rng)
	if err != nil {
		panic(err)
	}
	if st.X != nil {
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				st.X.Set(i, j, rng.NormFloat64())
			}
		}
	}
	if st.P != nil {
		r, c := st.P.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				st.P.Set(i, j, rng.NormFloat64())
			}
		}
	}
	for i := range st.Y {
		st.Y[i] = rng.NormFloat64()
		st.Z[i] = rng.NormFloat64()
	}
	st.TrX = rng.Float64() * 10
	st.PrimalObj = rng.NormFloat64() * 100
	return st
}

func TestScaleRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	p := Assemble(randomCost(6, rng))
	sc := ComputeScale(p, 6)

	for _, sketchDim := range []int{DenseMode, 3} {
		st := randomState(p.N(), p.M(), sketchDim, rng)
		ref := &State{
			Y:         append([]float64(nil), st.Y...),
			Z:         append([]float64(nil), st.Z...),
			TrX:       st.TrX,
			PrimalObj: st.PrimalObj,
		}
		var refX, refP []float64
		if st.X != nil {
			refX = append([]float64(nil), st.X.RawMatrix().Data...)
		}
		if st.P != nil {
			refP = append([]float64(nil), st.P.RawMatrix().Data...)
		}

		sc.ScaleState(st)
		sc.UnscaleState(st)

		const tol = 1e-12
		for c := range ref.Y {
			if math.Abs(st.Y[c]-ref.Y[c]) > tol*(1+math.Abs(ref.Y[c])) {
				t.Fatalf("sketchDim=%d: y[%d] drifted: %g vs %g", sketchDim, c, st.Y[c], ref.Y[c])
			}
			if math.Abs(st.Z[c]-ref.Z[c]) > tol*(1+math.Abs(ref.Z[c])) {
				t.Fatalf("sketchDim=%d: z[%d] drifted: %g vs %g", sketchDim, c, st.Z[c], ref.Z[c])
			}
		}
		if math.Abs(st.TrX-ref.TrX) > tol*(1+ref.TrX) {
			t.Fatalf("sketchDim=%d: trace drifted: %g vs %g", sketchDim, st.TrX, ref.TrX)
		}
		if math.Abs(st.PrimalObj-ref.PrimalObj) > tol*(1+math.Abs(ref.PrimalObj)) {
			t.Fatalf("sketchDim=%d: objective drifted: %g vs %g", sketchDim, st.PrimalObj, ref.PrimalObj)
		}
		for i, v := range refX {
			if math.Abs(st.X.RawMatrix().Data[i]-v) > tol*(1+math.Abs(v)) {
				t.Fatalf("dense primal drifted at flat index %d", i)
			}
		}
		for i, v := range refP {
			if math.Abs(st.P.RawMatrix().Data[i]-v) > tol*(1+math.Abs(v)) {
				t.Fatalf("sketch drifted at flat index %d", i)
			}
		}
	}
}

func TestComputeScale(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	p := Assemble(randomCost(5, rng))
	sc := ComputeScale(p, 10)

	if math.Abs(sc.X-0.1) > 1e-15 {
		t.Fatalf("SCALE_X = %g, want 0.1", sc.X)
	}
	if math.Abs(sc.C*p.C.NormF()-1) > 1e-12 {
		t.Fatalf("SCALE_C does not normalize the cost norm")
	}
	norms := p.A.RowNorms()
	for c, v := range norms {
		if math.Abs(sc.A[c]*v-1) > 1e-12 {
			t.Fatalf("SCALE_A[%d] does not normalize its row norm", c)
		}
	}

	// The scaled problem has unit row norms and unit cost norm.
	sp := sc.ScaleProblem(p)
	if math.Abs(sp.C.NormF()-1) > 1e-12 {
		t.Fatalf("scaled cost norm %g, want 1", sp.C.NormF())
	}
	for c, v := range sp.A.RowNorms() {
		if math.Abs(v-1) > 1e-12 {
			t.Fatalf("scaled row %d norm %g, want 1", c, v)
		}
	}
}
