// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ecc

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/specbm/sdp"
)

// Edge is one weighted undirected graph edge, listed once with U < V.
type Edge struct {
	U, V int
	W    float64
}

// SparseLaplacian builds the signed Laplacian cost matrix of an
// edge-weighted similarity graph, spectrally sparsified by
// effective-resistance sampling. Positive and negative edges are
// sparsified independently and the result is L⁺ - L⁻ as a sparse
// symmetric cost. eps controls the sparsifier quality; small graphs
// (fewer than 15 nodes) skip sampling entirely.
func SparseLaplacian(n int, edges []Edge, eps float64, rng *rand.Rand) *sdp.Cost {
	var pos, neg []Edge
	for _, e := range edges {
		if e.W > 0 {
			pos = append(pos, e)
		} else if e.W < 0 {
			neg = append(neg, Edge{e.U, e.V, -e.W})
		}
	}

	if n >= 15 {
		pos = sampleEdges(n, pos, eps, rng)
		neg = sampleEdges(n, neg, eps, rng)
	}

	var rows, cols []int
	var data []float64
	add := func(i, j int, v float64) {
		rows = append(rows, i)
		cols = append(cols, j)
		data = append(data, v)
	}
	diag := make([]float64, n)
	emit := func(es []Edge, sign float64) {
		for _, e := range es {
			diag[e.U] += sign * e.W
			diag[e.V] += sign * e.W
			add(e.U, e.V, -sign*e.W)
			add(e.V, e.U, -sign*e.W)
		}
	}
	emit(pos, 1)
	emit(neg, -1)
	for i, v := range diag {
		if v != 0 {
			add(i, i, v)
		}
	}
	return sdp.NewCost(n, rows, cols, data)
}

// sampleEdges keeps a subset of edges drawn with probability proportional
// to weighted effective resistance, approximated through random ±1/√k
// projections of the incidence rows against the Laplacian pseudoinverse.
func sampleEdges(n int, edges []Edge, eps float64, rng *rand.Rand) []Edge {
	m := len(edges)
	numSample := int(math.Ceil(float64(n) * math.Log(float64(n)) / (2 * eps * eps)))
	if m == 0 || numSample >= m {
		return edges
	}

	lap := laplacian(n, edges)
	pinv := pseudoInverse(lap)

	// Resistance embeddings Z = L⁺·𝐁ᵀ·√W·R, with 𝐁 the m×n incidence
	// matrix. r_e ≈ ‖𝐁Z‖² row-wise recovers the effective resistances.
	k := int(math.Ceil(math.Log(float64(n)) / (eps * eps)))
	proj := mat.NewDense(m, k, nil)
	inv := 1 / math.Sqrt(float64(k))
	for i := 0; i < m; i++ {
		for j := 0; j < k; j++ {
			if rng.Intn(2) == 0 {
				proj.Set(i, j, inv)
			} else {
				proj.Set(i, j, -inv)
			}
		}
	}

	bw := mat.NewDense(n, k, nil) // 𝐁ᵀ·√W·R
	for e, ed := range edges {
		sw := math.Sqrt(ed.W)
		for j := 0; j < k; j++ {
			v := sw * proj.At(e, j)
			bw.Set(ed.U, j, bw.At(ed.U, j)+v)
			bw.Set(ed.V, j, bw.At(ed.V, j)-v)
		}
	}
	var z mat.Dense
	z.Mul(pinv, bw)

	energies := make([]float64, m)
	var total float64
	for e, ed := range edges {
		var r float64
		for j := 0; j < k; j++ {
			d := z.At(ed.U, j) - z.At(ed.V, j)
			r += d * d
		}
		energies[e] = ed.W * r
		total += energies[e]
	}
	if total <= 0 {
		return edges
	}

	// Multinomial draw of numSample edges; an edge survives with its
	// original weight if it is drawn at least once.
	cum := make([]float64, m)
	var acc float64
	for e, v := range energies {
		acc += v / total
		cum[e] = acc
	}
	hit := make([]bool, m)
	for s := 0; s < numSample; s++ {
		e := sort.SearchFloat64s(cum, rng.Float64())
		if e >= m {
			e = m - 1
		}
		hit[e] = true
	}
	var kept []Edge
	for e, ed := range edges {
		if hit[e] {
			kept = append(kept, ed)
		}
	}
	return kept
}

func laplacian(n int, edges []Edge) *mat.Dense {
	l := mat.NewDense(n, n, nil)
	for _, e := range edges {
		l.Set(e.U, e.U, l.At(e.U, e.U)+e.W)
		l.Set(e.V, e.V, l.At(e.V, e.V)+e.W)
		l.Set(e.U, e.V, l.At(e.U, e.V)-e.W)
		l.Set(e.V, e.U, l.At(e.V, e.U)-e.W)
	}
	return l
}

// pseudoInverse is the Moore-Penrose inverse through a thin SVD, with
// singular values below a relative tolerance treated as zero (graph
// Laplacians are always rank deficient by the all-ones kernel).
func pseudoInverse(a *mat.Dense) *mat.Dense {
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		panic("ecc: laplacian SVD failed to converge")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	s := svd.Values(nil)

	n, _ := a.Dims()
	tol := float64(n) * s[0] * (math.Nextafter(1, 2) - 1)
	for j, sv := range s {
		inv := 0.0
		if sv > tol {
			inv = 1 / sv
		}
		for i := 0; i < n; i++ {
			v.Set(i, j, v.At(i, j)*inv)
		}
	}
	var p mat.Dense
	p.Mul(&v, u.T())
	out := mat.NewDense(n, n, nil)
	out.Copy(&p)
	return out
}
