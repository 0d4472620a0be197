// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/curioloop/specbm/qap"
	"github.com/curioloop/specbm/sdp"
)

func TestTransferFullWidth(t *testing.T) {
	// A 3-node instance whose 2-node head carries off-diagonal cost
	// support, so both constraint systems have inequality rows.
	path := filepath.Join(t.TempDir(), "tiny.dat")
	data := "3\n" +
		"0 2 1\n2 0 1\n1 1 0\n" +
		"0 1 2\n1 0 3\n2 3 0\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	small, err := qap.Load(path, 1)
	if err != nil {
		t.Fatal(err)
	}
	full, err := qap.Load(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	smallProb := sdp.Assemble(small.C)
	fullProb := sdp.Assemble(full.C)

	oldDrop, oldSketch, oldSeed := argNumDrop, argSketchDim, argSeed
	argNumDrop, argSketchDim, argSeed = 1, sdp.DenseMode, 7
	defer func() { argNumDrop, argSketchDim, argSeed = oldDrop, oldSketch, oldSeed }()

	st, err := sdp.NewState(smallProb.N(), smallProb.M(), sdp.DenseMode, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatal(err)
	}
	for c := range st.Y {
		st.Y[c] = float64(c + 1)
	}
	st.X.Set(0, 0, 2.5)
	st.X.Set(2, 2, 1.5)
	st.TrX = 4
	st.PrimalObj = -3

	// The reindexer wants the full grid width, not the dropped one.
	next, err := transfer(smallProb, st, fullProb, full.L)
	if err != nil {
		t.Fatal(err)
	}

	// Diagonal rows of the 2-node head land on full rows 0, 1, 3, 4:
	// grid index (i,j) of the dropped instance becomes i·L+j.
	for i, c := range []int{0, 1, 3, 4} {
		if next.Y[c] != float64(i+1) {
			t.Fatalf("full row %d carries dual %g, want %d", c, next.Y[c], i+1)
		}
	}
	if got := next.X.At(0, 0); got != 2.5 {
		t.Fatalf("X[0,0] = %g after transfer, want 2.5", got)
	}
	if got := next.X.At(3, 3); got != 1.5 {
		t.Fatalf("X[3,3] = %g after transfer, want 1.5", got)
	}
	if next.TrX != 4 || next.PrimalObj != -3 {
		t.Fatalf("trace/objective not carried: trX=%g obj=%g", next.TrX, next.PrimalObj)
	}
}
