// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sdp

import (
	"errors"
	"fmt"
)

// ErrNumDrop reports an unsupported drop count: dropping more than one
// node is not a validated configuration of the re-indexing scheme.
var ErrNumDrop = errors.New("sdp: only numDrop = 1 is supported")

// Reindexer returns the index remapping for a program whose variables
// were generated on a (l-numDrop)-stride grid and must be embedded into
// the full l-stride grid:
//
//	a ↦ a + numDrop·⌊a/(l-numDrop)⌋
//
// The block-structure assumption behind this formula is only validated
// for numDrop = 1; larger values are rejected.
func Reindexer(l, numDrop int) (func(int) int, error) {
	if numDrop != 1 {
		return nil, ErrNumDrop
	}
	stride := l - numDrop
	return func(a int) int { return a + numDrop*(a/stride) }, nil
}

// ConstraintIndexMap builds the old-constraint → new-constraint id map by
// scanning the two triple lists in lockstep. Both operators must visit
// their shared constraint blocks in the same relative order (the package
// ordering invariant); old must already be re-indexed into new's variable
// index space. Every old constraint must be matched — a leftover is a
// mismatched index map and panics.
func ConstraintIndexMap(old, new_ *Operator) []int {
	idxMap := make([]int, old.M)
	for i := range idxMap {
		idxMap[i] = -1
	}
	oldIdx := 0
	for t := 0; t < new_.NNZ() && oldIdx < old.NNZ(); t++ {
		if new_.Rows[t] == old.Rows[oldIdx] && new_.Cols[t] == old.Cols[oldIdx] {
			idxMap[old.Con[oldIdx]] = new_.Con[t]
			oldIdx++
		}
	}
	if oldIdx != old.NNZ() {
		panic(fmt.Sprintf("sdp: constraint index map matched %d of %d old triples", oldIdx, old.NNZ()))
	}
	return idxMap
}

// Scatter places src[c] at position idxMap[c] of a zero-initialized
// vector of length m. Unmapped (newly added) positions stay zero.
func Scatter(m int, idxMap []int, src []float64) []float64 {
	dst := make([]float64, m)
	for c, v := range src {
		if idxMap[c] < 0 || idxMap[c] >= m {
			panic("sdp: scatter target out of range")
		}
		dst[idxMap[c]] = v
	}
	return dst
}
