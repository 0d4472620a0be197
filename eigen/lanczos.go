// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package eigen computes approximate extreme eigenpairs of symmetric
// linear operators with the Lanczos iteration.
//
// The operator is only ever applied as a function call, never
// materialized. Symmetry is a caller contract: the routine degrades
// gracefully on a non-symmetric operator but its output is meaningless.
package eigen

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Operator applies a symmetric linear map 𝐌: ℝⁿ → ℝⁿ, writing 𝐌·src
// into dst. dst and src never alias.
type Operator func(dst, src []float64)

// MinK computes the k algebraically smallest eigenvalues of the n×n
// symmetric operator m together with their eigenvectors (as the columns
// of the returned n×k matrix, normalized to unit length).
//
// The Lanczos recurrence is fully reorthogonalized at every step: with
// extended iteration counts the three-term recurrence loses orthogonality
// quickly under floating point and corrupts the tridiagonal model.
// Iteration stops when the off-diagonal entry drops below eps (an
// invariant subspace was found) or the budget maxIters is exhausted;
// at least one iteration always runs. Fewer than k pairs are returned
// when the Krylov space closes early.
//
// Randomness (the start vector and the inverse-iteration seeds) comes
// from rng only, keeping repeated runs deterministic.
func MinK(m Operator, n, k, maxIters int, eps float64, rng *rand.Rand) (vals []float64, vecs *mat.Dense) {
	if n <= 0 || k <= 0 {
		panic("eigen: dimensions must be positive")
	}
	if maxIters > n {
		maxIters = n
	}
	if maxIters < 1 {
		maxIters = 1
	}

	// Fixed-capacity buffers sized to the iteration budget.
	basis := make([][]float64, maxIters+1)
	for i := range basis {
		basis[i] = make([]float64, n)
	}
	diag := make([]float64, maxIters)
	offDiag := make([]float64, maxIters)

	v0 := basis[0]
	for i := range v0 {
		v0[i] = rng.NormFloat64()
	}
	floats.Scale(1/floats.Norm(v0, 2), v0)

	w := make([]float64, n)
	dims := 0
	for t := 0; t < maxIters; t++ {
		m(w, basis[t])
		if t > 0 {
			floats.AddScaled(w, -offDiag[t-1], basis[t-1])
		}
		diag[t] = floats.Dot(basis[t], w)
		floats.AddScaled(w, -diag[t], basis[t])
		// Full reorthogonalization against the whole basis.
		for i := 0; i <= t; i++ {
			floats.AddScaled(w, -floats.Dot(w, basis[i]), basis[i])
		}
		dims = t + 1
		beta := floats.Norm(w, 2)
		offDiag[t] = beta
		if beta == 0 || (beta <= eps && t >= 1) || t == maxIters-1 {
			break
		}
		copy(basis[t+1], w)
		floats.Scale(1/beta, basis[t+1])
	}

	if k > dims {
		k = dims
	}

	// Eigenvalues of the tridiagonal model, ascending.
	tvals := tridiagEigvals(diag[:dims], offDiag[:dims-1])
	vals = tvals[:k]

	// Eigenvectors by inverse iteration on the tridiagonal system.
	tw := tridiagEigvecs(diag[:dims], offDiag[:dims-1], vals, rng)

	// Map back to the full space: column j is Σₜ twₜⱼ·basisₜ.
	vecs = mat.NewDense(n, k, nil)
	col := make([]float64, n)
	for j := 0; j < k; j++ {
		for i := range col {
			col[i] = 0
		}
		for t := 0; t < dims; t++ {
			floats.AddScaled(col, tw.At(t, j), basis[t])
		}
		floats.Scale(1/floats.Norm(col, 2), col)
		vecs.SetCol(j, col)
	}
	return vals, vecs
}

// tridiagEigvals returns all eigenvalues of the symmetric tridiagonal
// matrix (diag, offDiag) in ascending order. The model is small (bounded
// by the Lanczos budget), so a dense symmetric eigendecomposition is fine.
func tridiagEigvals(diag, offDiag []float64) []float64 {
	t := len(diag)
	sym := mat.NewSymDense(t, nil)
	for i := 0; i < t; i++ {
		sym.SetSym(i, i, diag[i])
		if i+1 < t {
			sym.SetSym(i, i+1, offDiag[i])
		}
	}
	var es mat.EigenSym
	if !es.Factorize(sym, false) {
		panic("eigen: tridiagonal eigendecomposition failed")
	}
	return es.Values(nil)
}

// tridiagEigvecs recovers eigenvectors of the tridiagonal system for the
// given (ascending) eigenvalues via inverse iteration seeded with random
// vectors. Eigenvectors in clusters of eigenvalues closer than the gap
// tolerance √εₘ·𝚖𝚊𝚡(|λ₀|,|λₖ₋₁|) are not individually well defined and
// are re-orthonormalized by QR after every step. Iteration stops when no
// vector norm grows by 10% anymore, or after 5 steps (the LAPACK xSTEIN
// cap).
func tridiagEigvecs(diag, offDiag []float64, vals []float64, rng *rand.Rand) *mat.Dense {
	t, k := len(diag), len(vals)

	machEps := math.Nextafter(1, 2) - 1
	gaptol := math.Sqrt(machEps) * math.Max(math.Abs(vals[0]), math.Abs(vals[k-1]))

	// Clusters are runs of consecutive eigenvalues with gaps below gaptol.
	clusters := make([][2]int, 0, k)
	start := 0
	for i := 1; i <= k; i++ {
		if i == k || vals[i]-vals[i-1] >= gaptol {
			clusters = append(clusters, [2]int{start, i})
			start = i
		}
	}

	vecs := mat.NewDense(t, k, nil)
	col := make([]float64, t)
	norm := make([]float64, k)
	for j := 0; j < k; j++ {
		for i := range col {
			col[i] = rng.NormFloat64()
		}
		floats.Scale(1/floats.Norm(col, 2), col)
		vecs.SetCol(j, col)
		norm[j] = 1
	}

	d := make([]float64, t)
	rhs := mat.NewVecDense(t, nil)
	sol := mat.NewVecDense(t, nil)

	const maxIt = 5
	const minNormGrowth = 0.1
	prevNorm := make([]float64, k)
	for it := 0; it < maxIt; it++ {
		copy(prevNorm, norm)
		for j := 0; j < k; j++ {
			shift := vals[j]
			for i := range d {
				d[i] = diag[i] - shift
			}
			for i := 0; i < t; i++ {
				rhs.SetVec(i, vecs.At(i, j))
			}
			if err := solveShifted(d, offDiag, sol, rhs); err != nil {
				// Exactly singular shift: nudge it by the gap tolerance.
				for i := range d {
					d[i] += gaptol * machEps
				}
				if err := solveShifted(d, offDiag, sol, rhs); err != nil {
					panic("eigen: inverse iteration solve failed: " + err.Error())
				}
			}
			nrm := mat.Norm(sol, 2)
			norm[j] = nrm
			for i := 0; i < t; i++ {
				vecs.Set(i, j, sol.AtVec(i)/nrm)
			}
		}
		orthogonalizeClusters(vecs, clusters)

		grow := false
		for j := 0; j < k; j++ {
			if norm[j] >= (1+minNormGrowth)*prevNorm[j] {
				grow = true
				break
			}
		}
		if !grow {
			break
		}
	}
	return vecs
}

// solveShifted solves (𝐓 - λ𝐈)x = b for the symmetric tridiagonal 𝐓 with
// shifted diagonal d. mat.Condition errors are expected here (the system
// is near singular by construction) and are not failures.
func solveShifted(d, offDiag []float64, dst, b *mat.VecDense) error {
	t := len(d)
	dl := make([]float64, t-1)
	du := make([]float64, t-1)
	copy(dl, offDiag)
	copy(du, offDiag)
	tri := mat.NewTridiag(t, dl, append([]float64(nil), d...), du)
	err := tri.SolveVecTo(dst, false, b)
	if err != nil {
		if _, ok := err.(mat.Condition); ok {
			return nil
		}
		return err
	}
	return nil
}

// orthogonalizeClusters re-orthonormalizes the eigenvector columns of
// every multi-element cluster with a QR factorization of the cluster
// subspace.
func orthogonalizeClusters(vecs *mat.Dense, clusters [][2]int) {
	t, _ := vecs.Dims()
	for _, cl := range clusters {
		lo, hi := cl[0], cl[1]
		if hi-lo < 2 {
			continue
		}
		sub := mat.NewDense(t, hi-lo, nil)
		sub.Copy(vecs.Slice(0, t, lo, hi))
		var qr mat.QR
		qr.Factorize(sub)
		var q mat.Dense
		qr.QTo(&q)
		for j := lo; j < hi; j++ {
			for i := 0; i < t; i++ {
				vecs.Set(i, j, q.At(i, j-lo))
			}
		}
	}
}
