// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qap

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Round extracts an integral assignment from a fractional solver
// estimate. x is an l²-length vector over the flattened assignment
// variable (typically the dominant eigenvector of the primal iterate,
// or its diagonal); it is reshaped to an l×l score table and rounded
// greedily: the largest remaining entry fixes one facility-location
// pair, its row and column are retired, repeat. Returns the permutation
// perm (perm[i] is the location of facility i) and the assignment
// objective Σᵢⱼ 𝐖ᵢⱼ·𝐃[perm[i],perm[j]].
func Round(inst *Instance, x []float64) (perm []int, score float64) {
	l := inst.L
	if len(x) != l*l {
		panic("qap: estimate length does not match instance size")
	}

	perm = make([]int, l)
	rowDone := make([]bool, l)
	colDone := make([]bool, l)
	for n := 0; n < l; n++ {
		best, bi, bj := math.Inf(-1), -1, -1
		for i := 0; i < l; i++ {
			if rowDone[i] {
				continue
			}
			for j := 0; j < l; j++ {
				if colDone[j] {
					continue
				}
				if v := math.Abs(x[i*l+j]); v > best {
					best, bi, bj = v, i, j
				}
			}
		}
		perm[bi] = bj
		rowDone[bi] = true
		colDone[bj] = true
	}
	return perm, Score(inst, perm)
}

// Score evaluates the assignment objective of a permutation.
func Score(inst *Instance, perm []int) float64 {
	l := inst.L
	var s float64
	for i := 0; i < l; i++ {
		for j := 0; j < l; j++ {
			s += inst.W.At(i, j) * inst.D.At(perm[i], perm[j])
		}
	}
	return s
}

// PermMatrix materializes a permutation as a dense 0/1 assignment
// matrix, convenient for feeding a rounded solution back in as a
// warm-start embedding.
func PermMatrix(perm []int) *mat.Dense {
	l := len(perm)
	p := mat.NewDense(l, l, nil)
	for i, j := range perm {
		p.Set(i, j, 1)
	}
	return p
}
