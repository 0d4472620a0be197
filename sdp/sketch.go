// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sdp

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// GaussianSketch draws the fixed n×dim random test matrix Ω.
func GaussianSketch(n, dim int, rng *rand.Rand) *mat.Dense {
	omega := mat.NewDense(n, dim, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < dim; j++ {
			omega.Set(i, j, rng.NormFloat64())
		}
	}
	return omega
}

// Reconstruct recovers an approximate eigendecomposition (E, Λ) of the
// implicit primal 𝐗 from its randomized sketch (Ω, P = 𝐗·Ω) via the
// Nyström reconstruction:
//
//	σ  = √n·εₘ·‖P‖F
//	Pσ = P + σΩ
//	B  = ½(ΩᵀPσ + PσᵀΩ) = 𝐔ᵀ𝐔 (Cholesky)
//	Pσ𝐔⁻¹ = E·diag(s)·𝐖ᵀ (thin SVD),  Λᵢ = 𝚖𝚊𝚡(sᵢ² - σ, 0)
//
// E is n×r with orthonormal columns and Λ is returned in the SVD's
// non-increasing order.
func Reconstruct(omega, p *mat.Dense) (e *mat.Dense, lambda []float64) {
	n, r := omega.Dims()
	pn, pr := p.Dims()
	if pn != n || pr != r {
		panic("sdp: sketch dimension mismatch")
	}

	machEps := math.Nextafter(1, 2) - 1
	sigma := math.Sqrt(float64(n)) * machEps * mat.Norm(p, 2)

	var pSigma mat.Dense
	pSigma.Scale(sigma, omega)
	pSigma.Add(&pSigma, p)

	var b mat.Dense
	b.Mul(omega.T(), &pSigma)
	sym := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			sym.SetSym(i, j, 0.5*(b.At(i, j)+b.At(j, i)))
		}
	}

	var chol mat.Cholesky
	if !chol.Factorize(sym) {
		// The shifted Gram matrix can lose definiteness to rounding when
		// the sketch is rank deficient. Retry with a larger shift.
		sigma *= math.Sqrt(float64(n))
		pSigma.Scale(sigma, omega)
		pSigma.Add(&pSigma, p)
		b.Mul(omega.T(), &pSigma)
		for i := 0; i < r; i++ {
			for j := i; j < r; j++ {
				sym.SetSym(i, j, 0.5*(b.At(i, j)+b.At(j, i)))
			}
		}
		if !chol.Factorize(sym) {
			panic("sdp: sketch Gram matrix is not positive definite")
		}
	}

	var u mat.TriDense
	chol.UTo(&u)

	// Whiten: solve 𝐔ᵀWᵀ = Pσᵀ so that W = Pσ𝐔⁻¹.
	var wt mat.Dense
	if err := wt.Solve(u.T(), pSigma.T()); err != nil {
		panic("sdp: sketch whitening failed: " + err.Error())
	}

	var svd mat.SVD
	if !svd.Factorize(wt.T(), mat.SVDThinU) {
		panic("sdp: sketch SVD failed to converge")
	}
	e = &mat.Dense{}
	svd.UTo(e)
	s := svd.Values(nil)

	lambda = make([]float64, len(s))
	for i, v := range s {
		lambda[i] = math.Max(v*v-sigma, 0)
	}
	return e, lambda
}

// TraceCorrect spreads the trace deficit introduced by sketching evenly
// across the reconstructed eigenvalues: Λᵢ + (𝐭𝐫𝐗 - ΣΛ)/r.
func TraceCorrect(lambda []float64, trX float64) []float64 {
	var sum float64
	for _, v := range lambda {
		sum += v
	}
	offset := (trX - sum) / float64(len(lambda))
	out := make([]float64, len(lambda))
	for i, v := range lambda {
		out[i] = v + offset
	}
	return out
}
