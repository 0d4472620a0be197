// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package specbm

import (
	"errors"
	"math/rand"

	"github.com/curioloop/specbm/sdp"
)

// Options configures the spectral bundle solver.
type Options struct {
	// Rho is the proximal penalty parameter of the augmented Lagrangian.
	Rho float64
	// Beta is the serious-step threshold: a candidate dual is accepted
	// when it achieves at least Beta times the model-predicted decrease.
	Beta float64
	// KCurr is the number of fresh eigenvector directions added to the
	// bundle each iteration; KPast the number of retained past directions.
	KCurr, KPast int
	// Eps is the stopping tolerance of the outer loop: the relative dual
	// gap and the scaled primal infeasibility must both fall below it.
	Eps float64
	// MaxIters bounds the outer loop. Exhausting it is not an error:
	// the result carries the best iterate and its gap.
	MaxIters int

	// LanczosIters and LanczosEps bound the eigensolver calls.
	LanczosIters int
	LanczosEps   float64

	// APGDStepSize, APGDMaxIters and APGDEps control the bundle
	// subproblem loop.
	APGDStepSize float64
	APGDMaxIters int
	APGDEps      float64

	// Seed feeds every randomized step (Lanczos starts, inverse
	// iteration). Runs with equal seeds are identical.
	Seed int64

	// Logger receives iteration traces. Nil disables logging.
	Logger *Logger
	// OnIteration, when set, observes every outer iteration boundary.
	OnIteration func(IterStats)
}

// IterStats is the observability record emitted at each outer iteration.
type IterStats struct {
	T              int
	PenDualObj     float64
	CandPenDualObj float64
	LBSpecEst      float64
	Eta            float64
	Infeas         float64
	Serious        bool
}

// Result reports the outcome of a solve. A non-converged result is a
// valid best iterate; callers judge its quality from the gap fields.
type Result struct {
	Converged    bool
	Iterations   int
	SeriousSteps int

	PenDualObj float64 // penalized dual objective f(y)
	LBSpecEst  float64 // lower-bound estimate f̂(y, X̄)
	RelGap     float64 // (f(y) - f̂)/(1 + f(y))
	Infeas     float64 // ‖𝓐(𝐗) - 𝚙𝚛𝚘𝚓_K(𝓐(𝐗))‖∞, scaled space
	InfeasGap  float64 // ‖𝓐(𝐗) - 𝚙𝚛𝚘𝚓_K(𝓐(𝐗))‖₂/(1 + ‖𝐛‖₂)
}

// Solver is a configured spectral bundle method for one SDP instance.
type Solver struct {
	prob    *sdp.Problem
	traceUB float64
	opts    Options
	rng     *rand.Rand
}

// NewSolver validates the configuration against the problem.
// All validation happens here, before any iteration begins.
func NewSolver(prob *sdp.Problem, traceUB float64, opts Options) (*Solver, error) {
	if opts.LanczosIters <= 0 {
		opts.LanczosIters = min(prob.N(), 32)
	}
	if opts.LanczosEps <= 0 {
		opts.LanczosEps = 1e-12
	}
	if opts.APGDMaxIters <= 0 {
		opts.APGDMaxIters = 2000
	}
	if opts.APGDEps <= 0 {
		opts.APGDEps = 1e-10
	}
	if opts.APGDStepSize <= 0 {
		opts.APGDStepSize = 0.1
	}

	switch {
	case traceUB <= 0:
		return nil, errors.New("specbm: trace bound must be positive")
	case opts.Rho <= 0:
		return nil, errors.New("specbm: proximal parameter rho must be positive")
	case opts.Beta <= 0 || opts.Beta >= 1:
		return nil, errors.New("specbm: serious-step threshold beta must be in (0,1)")
	case opts.KCurr < 1:
		return nil, errors.New("specbm: at least one current direction is required")
	case opts.KPast < 0:
		return nil, errors.New("specbm: retained direction count must not be negative")
	case opts.Eps <= 0:
		return nil, errors.New("specbm: stopping tolerance must be positive")
	case opts.MaxIters < 1:
		return nil, errors.New("specbm: max iterations must be at least 1")
	}

	return &Solver{
		prob:    prob,
		traceUB: traceUB,
		opts:    opts,
		rng:     rand.New(rand.NewSource(opts.Seed)),
	}, nil
}
