// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command specbm solves the SDP relaxation of a QAP or TSP benchmark
// instance with the spectral bundle method (or the CGAL baseline) and
// rounds the result to a permutation. With --num-drop and --warm-start
// it first solves a smaller instance with the trailing nodes removed,
// then maps that solution into the full instance as a warm start.
package main

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/specbm/cgal"
	"github.com/curioloop/specbm/qap"
	"github.com/curioloop/specbm/sdp"
	"github.com/curioloop/specbm/specbm"
)

var (
	argData        string
	argSolver      string
	argMaxIters    int
	argKCurr       int
	argKPast       int
	argTraceFactor float64
	argRho         float64
	argBeta        float64
	argEps         float64
	argSketchDim   int
	argNumDrop     int
	argWarmStart   bool
	argSeed        int64
	argVerbose     bool
)

var cmdRoot = &cobra.Command{
	Use:   "specbm",
	Short: "Spectral bundle method SDP solver for assignment problems",
	Args:  cobra.NoArgs,
	RunE:  run,

	SilenceUsage: true,
}

func init() {
	flags := cmdRoot.Flags()
	flags.StringVar(&argData, "data", "", "path to a QAPLIB .dat or TSPLIB .tsp instance")
	flags.StringVar(&argSolver, "solver", "specbm", "solver to run: specbm or cgal")
	flags.IntVar(&argMaxIters, "max-iters", 5000, "outer iteration budget")
	flags.IntVar(&argKCurr, "k-curr", 1, "fresh eigenvector directions per bundle update")
	flags.IntVar(&argKPast, "k-past", 0, "retained past directions in the bundle")
	flags.Float64Var(&argTraceFactor, "trace-factor", 2.0, "trust-region factor on the primal trace bound")
	flags.Float64Var(&argRho, "rho", 0.5, "proximal parameter")
	flags.Float64Var(&argBeta, "beta", 0.25, "serious-step acceptance threshold")
	flags.Float64Var(&argEps, "eps", 1e-5, "relative-gap convergence tolerance")
	flags.IntVar(&argSketchDim, "sketch-dim", sdp.DenseMode, "primal sketch rank, or -1 to store the primal densely")
	flags.IntVar(&argNumDrop, "num-drop", 0, "nodes dropped from the instance tail")
	flags.BoolVar(&argWarmStart, "warm-start", false, "solve the dropped instance first and warm start the full one")
	flags.Int64Var(&argSeed, "seed", 0, "random seed")
	flags.BoolVar(&argVerbose, "verbose", false, "log every iteration")
	cobra.CheckErr(cmdRoot.MarkFlagRequired("data"))
}

func main() {
	if err := cmdRoot.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	if argWarmStart && argNumDrop == 0 {
		return errors.New("--warm-start requires --num-drop > 0")
	}

	inst, err := qap.Load(argData, argNumDrop)
	if err != nil {
		return err
	}
	prob := sdp.Assemble(inst.C)
	st, err := sdp.NewState(prob.N(), prob.M(), argSketchDim, rand.New(rand.NewSource(argSeed)))
	if err != nil {
		return err
	}
	if err := solve(prob, st, float64(inst.L)); err != nil {
		return err
	}

	if argWarmStart {
		full, err := qap.Load(argData, 0)
		if err != nil {
			return err
		}
		fullProb := sdp.Assemble(full.C)
		st, err = transfer(prob, st, fullProb, full.L)
		if err != nil {
			return err
		}
		inst, prob = full, fullProb
		if err := solve(prob, st, float64(inst.L)); err != nil {
			return err
		}
	}

	perm, score := qap.Round(inst, primalEstimate(st, inst.L*inst.L))
	fmt.Printf("primal objective: %.6g\n", st.PrimalObj)
	fmt.Printf("rounded objective: %.6g\n", score)
	fmt.Printf("permutation: %v\n", perm)
	return nil
}

// solve scales the problem and state in place, runs the selected solver,
// and unscales the final iterate. st holds the unscaled solution on
// return.
func solve(prob *sdp.Problem, st *sdp.State, traceUBBase float64) error {
	sc := sdp.ComputeScale(prob, traceUBBase)
	scaled := sc.ScaleProblem(prob)
	sc.ScaleState(st)
	traceUB := argTraceFactor * traceUBBase * sc.X

	switch argSolver {
	case "specbm":
		logger := &specbm.Logger{Level: specbm.LogLast, Msg: os.Stderr}
		if argVerbose {
			logger.Level = specbm.LogIter
		}
		solver, err := specbm.NewSolver(scaled, traceUB, specbm.Options{
			Rho:      argRho,
			Beta:     argBeta,
			KCurr:    argKCurr,
			KPast:    argKPast,
			Eps:      argEps,
			MaxIters: argMaxIters,
			Seed:     argSeed,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		res := solver.Solve(st)
		fmt.Printf("specbm: converged=%v iters=%d serious=%d gap=%.3g infeas=%.3g infeas_gap=%.3g\n",
			res.Converged, res.Iterations, res.SeriousSteps, res.RelGap, res.Infeas, res.InfeasGap)
	case "cgal":
		opts := cgal.Options{
			Beta:     1.0,
			Eps:      argEps,
			MaxIters: argMaxIters,
			Scale:    sc,
			Seed:     argSeed,
		}
		if argVerbose {
			opts.Log = os.Stderr
		}
		res, err := cgal.Solve(scaled, st, traceUB, opts)
		if err != nil {
			return err
		}
		fmt.Printf("cgal: converged=%v iters=%d objgap=%.3g infeas=%.3g\n",
			res.Converged, res.Iterations, res.ObjGap, res.InfeasGap)
	default:
		return fmt.Errorf("unknown solver %q", argSolver)
	}

	sc.UnscaleState(st)
	return nil
}

// transfer maps the unscaled solution of the dropped instance into a
// fresh state for the full instance. Variable indices pass through the
// drop reindexer, constraint rows through the lockstep index map. In
// sketch mode only the duals carry over; the sketch is instance-specific
// and restarts from zero.
func transfer(small *sdp.Problem, st *sdp.State, full *sdp.Problem, l int) (*sdp.State, error) {
	f, err := sdp.Reindexer(l, argNumDrop)
	if err != nil {
		return nil, err
	}
	idxMap := sdp.ConstraintIndexMap(small.A.Reindexed(f), full.A)

	next, err := sdp.NewState(full.N(), full.M(), argSketchDim, rand.New(rand.NewSource(argSeed+1)))
	if err != nil {
		return nil, err
	}
	next.Y = sdp.Scatter(full.M(), idxMap, st.Y)
	next.Z = sdp.Scatter(full.M(), idxMap, st.Z)
	if !st.Sketched() {
		n, _ := st.X.Dims()
		for i := 0; i < n; i++ {
			fi := f(i)
			for j := 0; j < n; j++ {
				next.X.Set(fi, f(j), st.X.At(i, j))
			}
		}
		next.TrX = st.TrX
		next.PrimalObj = st.PrimalObj
	}
	return next, nil
}

// primalEstimate extracts an n-vector assignment estimate: the dominant
// eigendirection of the primal, scaled by the root of its eigenvalue.
func primalEstimate(st *sdp.State, n int) []float64 {
	out := make([]float64, n)
	if st.Sketched() {
		e, lambda := sdp.Reconstruct(st.Omega, st.P)
		lambda = sdp.TraceCorrect(lambda, st.TrX)
		s := math.Sqrt(math.Max(lambda[0], 0))
		for i := 0; i < n; i++ {
			out[i] = e.At(i, 0) * s
		}
		return out
	}
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, 0.5*(st.X.At(i, j)+st.X.At(j, i)))
		}
	}
	var es mat.EigenSym
	if !es.Factorize(sym, true) {
		panic("specbm: primal eigendecomposition failed")
	}
	vals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)
	s := math.Sqrt(math.Max(vals[n-1], 0))
	for i := 0; i < n; i++ {
		out[i] = vecs.At(i, n-1) * s
	}
	return out
}
