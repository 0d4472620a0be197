// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sdp holds the data model shared by the solvers in this module:
// a semidefinite program in primal standard form
//
//	minimize   ⟨𝐂,𝐗⟩ subject to
//	  - 𝓐(𝐗)ᵢ = 𝐛ᵢ  (equality rows)
//	  - 𝓐(𝐗)ᵢ ≤ 𝐛ᵢ  (inequality rows)
//	  - 𝐭𝐫(𝐗) ≤ τ, 𝐗 ⪰ 0
//
// where 𝐂 is a sparse symmetric cost matrix and 𝓐 is a linear constraint
// operator stored as (constraint, row, col, coefficient) triples.
//
// The package provides the operator and its adjoint in dense, slim
// (single-vector) and low-rank-factor forms, constraint assembly for
// clustering-style programs, numerical rescaling with an exact inverse,
// the warm-start re-indexing used when a solved program grows by a
// variable or constraint, and the randomized primal sketch (Ω, P = 𝐗Ω)
// with its Nyström reconstruction.
//
// Every quantity lives either in scaled or unscaled space. Conversion
// happens only through Scale.ScaleProblem and
// Scale.ScaleState/UnscaleState; mixing the two spaces anywhere else
// is a bug.
package sdp
