// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sdp

import (
	"errors"
	"testing"
)

func TestReindexer(t *testing.T) {
	f, err := Reindexer(3, 1)
	if err != nil {
		t.Fatal(err)
	}
	// 2×2 grid embedded into a 3×3 grid, skipping the last column.
	want := []int{0, 1, 3, 4}
	for a, w := range want {
		if f(a) != w {
			t.Fatalf("f(%d) = %d, want %d", a, f(a), w)
		}
	}

	if _, err := Reindexer(4, 2); !errors.Is(err, ErrNumDrop) {
		t.Fatalf("numDrop=2 returned %v, want ErrNumDrop", err)
	}
}

func TestConstraintIndexMapGrowth(t *testing.T) {
	// A 3-variable program grown to 4 variables: the cost support is
	// unchanged, so the entry inequalities keep their relative order and
	// only the new diagonal row is inserted between the blocks.
	c3 := NewCost(3,
		[]int{0, 1, 2, 0, 1, 1, 2},
		[]int{0, 1, 2, 1, 0, 2, 1},
		[]float64{1, 1, 1, -2, -2, 0.5, 0.5})
	old := Assemble(c3)

	c4 := c3.Grow(4)
	grown := Assemble(c4)
	grown.A.Validate()

	idxMap := ConstraintIndexMap(old.A, grown.A)
	want := []int{0, 1, 2, 4, 5}
	if len(idxMap) != len(want) {
		t.Fatalf("index map has %d entries, want %d", len(idxMap), len(want))
	}
	for c, w := range want {
		if idxMap[c] != w {
			t.Fatalf("idxMap[%d] = %d, want %d", c, idxMap[c], w)
		}
	}

	// Scattering duals reproduces the old values at the mapped rows and
	// zero at the new row.
	y := []float64{1.5, -2, 3, 0.25, -7}
	scattered := Scatter(grown.M(), idxMap, y)
	wantY := []float64{1.5, -2, 3, 0, 0.25, -7}
	for c, w := range wantY {
		if scattered[c] != w {
			t.Fatalf("scattered[%d] = %g, want %g", c, scattered[c], w)
		}
	}
}

func TestConstraintIndexMapReindexed(t *testing.T) {
	// A dropped-node program mapped through the grid reindexer must find
	// all of its constraints inside the full program.
	c2 := NewCost(4,
		[]int{0, 1, 2, 3, 0, 1},
		[]int{0, 1, 2, 3, 1, 0},
		[]float64{1, 1, 1, 1, -1, -1})
	small := Assemble(c2)

	// Full instance on the 3×3 grid: same structure at the mapped
	// variable positions plus extra rows for the third grid column.
	var rows, cols []int
	var data []float64
	for i := 0; i < 9; i++ {
		rows = append(rows, i)
		cols = append(cols, i)
		data = append(data, 1)
	}
	rows = append(rows, 0, 1)
	cols = append(cols, 1, 0)
	data = append(data, -1, -1)
	full := Assemble(NewCost(9, rows, cols, data))

	f, err := Reindexer(3, 1)
	if err != nil {
		t.Fatal(err)
	}
	idxMap := ConstraintIndexMap(small.A.Reindexed(f), full.A)

	// Diagonal rows land on the mapped grid positions, the entry
	// inequality keeps its place after the full diagonal block.
	want := []int{0, 1, 3, 4, 9}
	for c, w := range want {
		if idxMap[c] != w {
			t.Fatalf("idxMap[%d] = %d, want %d", c, idxMap[c], w)
		}
	}
}
