// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sdp

// Problem is the canonical SDP data triple plus the inequality mask.
type Problem struct {
	C        *Cost
	A        *Operator
	B        []float64
	IneqMask []bool // true for 𝓐(𝐗)ᵢ ≤ 𝐛ᵢ rows, false for equality rows
}

// N is the primal dimension.
func (p *Problem) N() int { return p.C.N }

// M is the number of constraints.
func (p *Problem) M() int { return p.A.M }

// Assemble builds the constraint system for a clustering-style SDP over
// the sparse symmetric cost matrix c:
//
//   - one equality constraint 𝐗ᵢᵢ = 1 per variable;
//   - one inequality constraint -½𝐗ᵢⱼ - ½𝐗ⱼᵢ ≤ 0 per strict-upper-triangular
//     nonzero of c, enforcing non-negativity of the objective-relevant entries.
//
// Diagonal nonzeros of c emit no inequality (𝐗ᵢᵢ = 1 already pins them).
func Assemble(c *Cost) *Problem {
	n := c.N
	a := &Operator{}
	var b []float64
	var ineq []bool

	for i := 0; i < n; i++ {
		a.append(i, i, i, 1.0)
		b = append(b, 1.0)
		ineq = append(ineq, false)
	}
	a.M = n

	for t := range c.Data {
		i, j := c.Rows[t], c.Cols[t]
		if i >= j {
			continue // one constraint per mirrored pair
		}
		a.appendSym(a.M, i, j, -0.5)
		b = append(b, 0.0)
		ineq = append(ineq, true)
		a.M++
	}

	return &Problem{C: c, A: a, B: b, IneqMask: ineq}
}

// AddVariable grows the program by one variable with its diagonal
// equality constraint 𝐗ₙₙ = 1. The cost entries are unchanged.
func (p *Problem) AddVariable() {
	n := p.C.N + 1
	p.C = p.C.Grow(n)
	p.A.appendSym(p.A.M, n-1, n-1, 1.0)
	p.A.M++
	p.B = append(p.B, 1.0)
	p.IneqMask = append(p.IneqMask, false)
}

// AddOrthoConstraints adds one inequality 𝐗ᵤᵥ + 𝐗ᵥᵤ ≤ 0 per designated
// index pair, forcing the two embeddings to be orthogonal.
func (p *Problem) AddOrthoConstraints(pairs [][2]int) {
	for _, uv := range pairs {
		p.A.appendSym(p.A.M, uv[0], uv[1], 1.0)
		p.A.M++
		p.B = append(p.B, 0.0)
		p.IneqMask = append(p.IneqMask, true)
	}
}

// AddSumGTOne adds one "sum greater than one" hyperplane inequality per
// grouping: Σ -½(𝐗ᵤᵥ + 𝐗ᵥᵤ) ≤ -1 over the group's index pairs.
func (p *Problem) AddSumGTOne(groups [][][2]int) {
	for _, pairs := range groups {
		for _, uv := range pairs {
			p.A.appendSym(p.A.M, uv[0], uv[1], -0.5)
		}
		p.A.M++
		p.B = append(p.B, -1.0)
		p.IneqMask = append(p.IneqMask, true)
	}
}

// AddMixed adds one auxiliary inequality -½(𝐗ᵤᵥ + 𝐗ᵥᵤ) ≤ 0 per pair of
// every multi-element grouping, and returns the map from group index to
// the ids of its auxiliary constraints.
func (p *Problem) AddMixed(groups [][][2]int) map[int][]int {
	mixed := make(map[int][]int)
	for g, pairs := range groups {
		if len(pairs) <= 1 {
			continue
		}
		for _, uv := range pairs {
			mixed[g] = append(mixed[g], p.A.M)
			p.A.appendSym(p.A.M, uv[0], uv[1], -0.5)
			p.A.M++
			p.B = append(p.B, 0.0)
			p.IneqMask = append(p.IneqMask, true)
		}
	}
	return mixed
}

// ProjK projects v onto the feasible image set K: equality rows are pinned
// to 𝐛ᶜ, inequality rows are clipped from above at 𝐛ᶜ.
func (p *Problem) ProjK(dst, v []float64) {
	if len(dst) != p.M() || len(v) != p.M() {
		panic("sdp: projection dimension mismatch")
	}
	for c, bc := range p.B {
		if p.IneqMask[c] && v[c] < bc {
			dst[c] = v[c]
		} else {
			dst[c] = bc
		}
	}
}
