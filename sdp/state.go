// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sdp

import (
	"errors"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// DenseMode is the sentinel sketch dimension selecting a materialized
// primal matrix instead of a randomized sketch.
const DenseMode = -1

// ErrSketchDim reports an invalid sketch dimension: the only legal values
// are DenseMode (-1) and a positive sketch rank.
var ErrSketchDim = errors.New("sdp: sketch dimension must be positive or -1 for dense mode")

// State is the primal/dual solver state for one program instance.
// Exactly one of X or (Omega, P) is populated: dense mode stores the
// primal matrix, sketch mode stores the fixed random test matrix Ω and
// the accumulated sketch P = 𝐗·Ω.
type State struct {
	X     *mat.Dense // nil in sketch mode
	Omega *mat.Dense // nil in dense mode
	P     *mat.Dense // nil in dense mode

	Y []float64 // dual vector
	Z []float64 // constraint image 𝓐(𝐗)

	TrX       float64
	PrimalObj float64
}

// NewState creates a cold-start state of dimension n with m constraints.
// sketchDim selects dense mode (DenseMode) or the sketch rank (> 0);
// anything else fails before any iteration begins. The sketch test matrix
// is drawn from rng so restarts are reproducible.
func NewState(n, m, sketchDim int, rng *rand.Rand) (*State, error) {
	st := &State{
		Y: make([]float64, m),
		Z: make([]float64, m),
	}
	switch {
	case sketchDim == DenseMode:
		st.X = mat.NewDense(n, n, nil)
	case sketchDim > 0:
		st.Omega = GaussianSketch(n, sketchDim, rng)
		st.P = mat.NewDense(n, sketchDim, nil)
	default:
		return nil, ErrSketchDim
	}
	return st, nil
}

// Sketched reports whether the primal is stored implicitly.
func (s *State) Sketched() bool { return s.X == nil }
