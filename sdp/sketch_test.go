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

func TestReconstructLowRank(t *testing.T) {
	// A rank-2 PSD matrix sketched at rank 4 reconstructs essentially
	// exactly: the Nyström approximation is exact on matrices whose rank
	// does not exceed the sketch rank.
	const n, rank, dim = 8, 2, 4
	rng := rand.New(rand.NewSource(31))

	u := mat.NewDense(n, rank, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < rank; j++ {
			u.Set(i, j, rng.NormFloat64())
		}
	}
	var x mat.Dense
	x.Mul(u, u.T())

	omega := GaussianSketch(n, dim, rng)
	var p mat.Dense
	p.Mul(&x, omega)

	e, lambda := Reconstruct(omega, &p)

	// Rebuild E·diag(Λ)·Eᵀ and compare entrywise.
	var rebuilt mat.Dense
	r := len(lambda)
	scaled := mat.NewDense(n, r, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < r; j++ {
			scaled.Set(i, j, e.At(i, j)*lambda[j])
		}
	}
	rebuilt.Mul(scaled, e.T())

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if math.Abs(rebuilt.At(i, j)-x.At(i, j)) > 1e-6 {
				t.Fatalf("reconstruction off at (%d,%d): %g vs %g", i, j, rebuilt.At(i, j), x.At(i, j))
			}
		}
	}

	// The reconstructed spectrum has rank-many significant values.
	for j := rank; j < r; j++ {
		if lambda[j] > 1e-6 {
			t.Fatalf("eigenvalue %d = %g, want ~0 beyond rank %d", j, lambda[j], rank)
		}
	}
}

func TestTraceCorrect(t *testing.T) {
	lambda := []float64{3, 2, 1}
	out := TraceCorrect(lambda, 9)

	var sum float64
	for _, v := range out {
		sum += v
	}
	if math.Abs(sum-9) > 1e-12 {
		t.Fatalf("corrected trace %g, want 9", sum)
	}
	// The deficit spreads evenly.
	for i, v := range out {
		if math.Abs(v-(lambda[i]+1)) > 1e-12 {
			t.Fatalf("corrected eigenvalue %d = %g, want %g", i, v, lambda[i]+1)
		}
	}
}

func TestNewStateModes(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if _, err := NewState(4, 6, 0, rng); err == nil {
		t.Fatal("sketchDim=0 must be rejected")
	}
	st, err := NewState(4, 6, DenseMode, rng)
	if err != nil {
		t.Fatal(err)
	}
	if st.Sketched() || st.X == nil {
		t.Fatal("dense mode state is missing its primal matrix")
	}
	st, err = NewState(4, 6, 3, rng)
	if err != nil {
		t.Fatal(err)
	}
	if !st.Sketched() || st.Omega == nil || st.P == nil {
		t.Fatal("sketch mode state is missing its sketch pair")
	}
}
