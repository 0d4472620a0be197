// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ecc

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/specbm/sdp"
)

func clusterProblem(n int, rng *rand.Rand) *sdp.Problem {
	var rows, cols []int
	var data []float64
	for i := 0; i < n; i++ {
		rows = append(rows, i)
		cols = append(cols, i)
		data = append(data, 1)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if rng.Float64() < 0.5 {
				v := rng.NormFloat64()
				rows = append(rows, i, j)
				cols = append(cols, j, i)
				data = append(data, v, v)
			}
		}
	}
	return sdp.Assemble(sdp.NewCost(n, rows, cols, data))
}

func TestGrow(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	p := clusterProblem(4, rng)
	oldN, oldM := p.N(), p.M()

	c := Constraint{
		OrthoPairs: [][2]int{{1, 4}},
		SumGTOne: [][][2]int{
			{{4, 0}},         // singleton group, no mixed rows
			{{4, 2}, {4, 3}}, // two candidate pairs
		},
	}
	mixed := Grow(p, c)
	p.A.Validate()

	assert.Equal(t, oldN+1, p.N())
	// One diagonal row, one ortho row, two hyperplane rows, two mixed rows.
	assert.Equal(t, oldM+6, p.M())

	require.Len(t, mixed, 1)
	require.Len(t, mixed[1], 2)
	assert.Equal(t, p.M()-2, mixed[1][0])
	assert.Equal(t, p.M()-1, mixed[1][1])

	// The new rows carry the expected senses and bounds.
	assert.False(t, p.IneqMask[oldM])
	assert.Equal(t, 1.0, p.B[oldM])
	assert.True(t, p.IneqMask[oldM+1])
	assert.Equal(t, -1.0, p.B[oldM+2])
	assert.Equal(t, -1.0, p.B[oldM+3])
	assert.Equal(t, 0.0, p.B[p.M()-1])
}

func TestColdStart(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	p := clusterProblem(3, rng)
	st, mixed, err := ColdStart(p, Constraint{
		SumGTOne: [][][2]int{{{3, 0}, {3, 1}}},
	}, sdp.DenseMode, rng)
	require.NoError(t, err)

	assert.Equal(t, 4, p.N())
	assert.False(t, st.Sketched())
	assert.Zero(t, st.TrX)
	assert.Len(t, st.Y, p.M())
	assert.Len(t, mixed[0], 2)
}

func TestWarmStartDense(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	p := clusterProblem(3, rng)
	oldM := p.M()

	// Previous solution: two clusters, points {0,1} together and {2} alone.
	old, err := sdp.NewState(3, oldM, sdp.DenseMode, rng)
	require.NoError(t, err)
	old.X.Set(0, 0, 1)
	old.X.Set(1, 1, 1)
	old.X.Set(0, 1, 1)
	old.X.Set(1, 0, 1)
	old.X.Set(2, 2, 1)
	old.TrX = 3
	for i := range old.Y {
		old.Y[i] = float64(i + 1)
	}

	c := Constraint{
		OrthoPairs: [][2]int{{2, 3}},
		SumGTOne:   [][][2]int{{{3, 0}}, {{3, 1}}},
	}
	st, _, err := WarmStart(p, c, old, 2, sdp.DenseMode, rng)
	require.NoError(t, err)

	assert.Equal(t, 4, p.N())
	require.False(t, st.Sketched())

	// Point 2 was negated: its embedding row is zero, so its primal row
	// vanishes and the trace counts the three unit rows.
	for j := 0; j < 4; j++ {
		assert.InDelta(t, 0, st.X.At(2, j), 1e-12)
	}
	assert.InDelta(t, 3, st.TrX, 1e-9)

	// The new point's embedding averages the satisfying points 0 and 1,
	// which share a cluster, so it correlates fully with both.
	assert.InDelta(t, 1, st.X.At(3, 0), 1e-9)
	assert.InDelta(t, 1, st.X.At(3, 1), 1e-9)

	// Old duals carry over on the surviving rows; new rows start at zero.
	for i := 0; i < oldM; i++ {
		assert.Equal(t, float64(i+1), st.Y[i])
	}
	for i := oldM; i < p.M(); i++ {
		assert.Zero(t, st.Y[i])
	}

	// z is consistent with the transferred primal.
	z := make([]float64, p.M())
	p.A.Apply(z, st.X)
	for i := range z {
		assert.InDelta(t, z[i], st.Z[i], 1e-9)
	}
}

func TestWarmStartSketched(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	p := clusterProblem(3, rng)

	// Sketch of the identity primal.
	old, err := sdp.NewState(3, p.M(), 3, rng)
	require.NoError(t, err)
	old.P.Copy(old.Omega)
	old.TrX = 3

	st, _, err := WarmStart(p, Constraint{
		SumGTOne: [][][2]int{{{3, 0}}},
	}, old, 2, 3, rng)
	require.NoError(t, err)

	require.True(t, st.Sketched())
	r, c := st.P.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 3, c)
	assert.InDelta(t, 4, st.TrX, 1e-6)
}

func TestSparseLaplacianExact(t *testing.T) {
	// Below the sampling threshold the result is the exact signed
	// Laplacian of the positive and negative edge sets.
	edges := []Edge{
		{0, 1, 2},
		{1, 2, -3},
		{0, 2, 1},
	}
	c := SparseLaplacian(3, edges, 0.5, rand.New(rand.NewSource(1)))
	require.Equal(t, 3, c.N)

	dense := c.Dense()
	want := mat.NewDense(3, 3, []float64{
		3, -2, -1,
		-2, -1, 3,
		-1, 3, -2,
	})
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.InDelta(t, want.At(i, j), dense.At(i, j), 1e-12, "entry (%d,%d)", i, j)
		}
	}

	// Row sums of a signed Laplacian vanish.
	for i := 0; i < 3; i++ {
		var sum float64
		for j := 0; j < 3; j++ {
			sum += dense.At(i, j)
		}
		assert.InDelta(t, 0, sum, 1e-12)
	}
}

func TestSparseLaplacianSampled(t *testing.T) {
	// A large dense positive graph gets sparsified; the result must stay
	// a symmetric Laplacian (zero row sums) over the same node set.
	const n = 20
	rng := rand.New(rand.NewSource(3))
	var edges []Edge
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			edges = append(edges, Edge{i, j, 0.5 + rng.Float64()})
		}
	}
	c := SparseLaplacian(n, edges, 1.0, rng)
	require.Equal(t, n, c.N)

	dense := c.Dense()
	for i := 0; i < n; i++ {
		var sum float64
		for j := 0; j < n; j++ {
			assert.InDelta(t, dense.At(i, j), dense.At(j, i), 1e-12)
			sum += dense.At(i, j)
		}
		assert.InDelta(t, 0, sum, 1e-9)
	}
}

func TestWarmStartTraceMath(t *testing.T) {
	// rowGram of unit rows counts the rows.
	m := mat.NewDense(3, 2, []float64{1, 0, 0, 1, 0, 0})
	assert.InDelta(t, 2, rowGram(m), 1e-12)
	normalizeRows(m)
	assert.InDelta(t, 2, rowGram(m), 1e-12)
	zeroRow(m, 0)
	assert.InDelta(t, 1, rowGram(m), 1e-12)
	assert.InDelta(t, 0, math.Abs(m.At(0, 0)), 0)
}
