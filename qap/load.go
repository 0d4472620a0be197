// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package qap loads quadratic-assignment benchmark instances (QAPLIB
// .dat files and TSPLIB .tsp files) and builds the SDP cost matrix of
// their semidefinite relaxation. It is a collaborator of the solver
// packages with a narrow contract: a target-rank hint l, the distance
// and flow matrices, and the sparse symmetric cost 𝐂 = ½(𝐖⊗𝐃 + (𝐖⊗𝐃)ᵀ).
package qap

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/specbm/sdp"
)

// ErrFileType is returned for a data file extension that is neither
// .dat (QAPLIB) nor .tsp (TSPLIB).
var ErrFileType = errors.New("qap: unrecognized data file extension")

// Instance is a loaded assignment problem.
type Instance struct {
	// L is the instance size after dropping (the target rank hint).
	L int
	// D and W are the L×L distance and flow matrices.
	D, W *mat.Dense
	// C is the L²×L² sparse symmetric SDP cost matrix.
	C *sdp.Cost
}

// Load reads a benchmark file, dispatching on extension. numDrop nodes
// are removed from the tail of the instance; a later full-size load plus
// sdp.Reindexer recovers the correspondence for warm starts.
func Load(path string, numDrop int) (*Instance, error) {
	switch {
	case strings.HasSuffix(path, ".dat"):
		return LoadQAP(path, numDrop)
	case strings.HasSuffix(path, ".tsp"):
		return LoadTSP(path, numDrop)
	}
	return nil, fmt.Errorf("%w: %s", ErrFileType, path)
}

// LoadQAP parses a QAPLIB .dat file: the size n followed by the n×n flow
// matrix 𝐖 and the n×n distance matrix 𝐃, whitespace separated.
func LoadQAP(path string, numDrop int) (*Instance, error) {
	fields, err := readFields(path)
	if err != nil {
		return nil, err
	}
	if len(fields) < 1 {
		return nil, fmt.Errorf("qap: %s: empty data file", path)
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("qap: %s: bad instance size %q", path, fields[0])
	}
	if len(fields) < 1+2*n*n {
		return nil, fmt.Errorf("qap: %s: expected %d matrix entries, found %d", path, 2*n*n, len(fields)-1)
	}
	parse := func(off int) (*mat.Dense, error) {
		d := mat.NewDense(n, n, nil)
		for i := 0; i < n*n; i++ {
			v, err := strconv.ParseFloat(fields[off+i], 64)
			if err != nil {
				return nil, fmt.Errorf("qap: %s: bad matrix entry %q", path, fields[off+i])
			}
			d.Set(i/n, i%n, v)
		}
		return d, nil
	}
	w, err := parse(1)
	if err != nil {
		return nil, err
	}
	d, err := parse(1 + n*n)
	if err != nil {
		return nil, err
	}
	return newInstance(d, w, numDrop)
}

// LoadTSP parses a TSPLIB .tsp file (EUC_2D, ATT or explicit full-matrix
// edge weights) and casts the tour problem as a QAP: the flow matrix is
// the adjacency matrix of the n-cycle, so ⟨𝐖⊗𝐃⟩ prices consecutive
// tour stops by their distance.
func LoadTSP(path string, numDrop int) (*Instance, error) {
	d, err := readTSPMatrix(path)
	if err != nil {
		return nil, err
	}
	n, _ := d.Dims()
	w := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		w.Set(i, j, 1)
		w.Set(j, i, 1)
	}
	return newInstance(d, w, numDrop)
}

// newInstance drops the trailing numDrop nodes and assembles the cost.
func newInstance(d, w *mat.Dense, numDrop int) (*Instance, error) {
	n, _ := d.Dims()
	if numDrop < 0 || numDrop >= n {
		return nil, fmt.Errorf("qap: cannot drop %d of %d nodes", numDrop, n)
	}
	l := n - numDrop
	if numDrop > 0 {
		d = d.Slice(0, l, 0, l).(*mat.Dense)
		w = w.Slice(0, l, 0, l).(*mat.Dense)
	}
	return &Instance{L: l, D: d, W: w, C: CostMatrix(d, w)}, nil
}

// CostMatrix builds the sparse symmetric SDP cost ½(𝐖⊗𝐃 + (𝐖⊗𝐃)ᵀ)
// over the l²-dimensional assignment variable, flattened with stride l:
// entry ((i,k),(j,m)) carries ½(𝐖ᵢⱼ𝐃ₖₘ + 𝐖ⱼᵢ𝐃ₘₖ).
func CostMatrix(d, w *mat.Dense) *sdp.Cost {
	l, _ := d.Dims()
	var rows, cols []int
	var data []float64
	for i := 0; i < l; i++ {
		for j := 0; j < l; j++ {
			wij := w.At(i, j)
			wji := w.At(j, i)
			if wij == 0 && wji == 0 {
				continue
			}
			for k := 0; k < l; k++ {
				for m := 0; m < l; m++ {
					v := 0.5 * (wij*d.At(k, m) + wji*d.At(m, k))
					if v == 0 {
						continue
					}
					rows = append(rows, i*l+k)
					cols = append(cols, j*l+m)
					data = append(data, v)
				}
			}
		}
	}
	return sdp.NewCost(l*l, rows, cols, data)
}

// readFields splits a whitespace-separated numeric file.
func readFields(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var fields []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1<<20), 1<<20)
	for sc.Scan() {
		fields = append(fields, strings.Fields(sc.Text())...)
	}
	return fields, sc.Err()
}

// readTSPMatrix parses the TSPLIB header and returns the distance matrix.
func readTSPMatrix(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var (
		dim        int
		weightType string
		section    string
		coords     [][2]float64
		weights    []float64
	)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1<<20), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line == "EOF" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "DIMENSION"):
			v := strings.TrimSpace(line[strings.LastIndex(line, ":")+1:])
			if dim, err = strconv.Atoi(v); err != nil {
				return nil, fmt.Errorf("qap: %s: bad DIMENSION %q", path, v)
			}
		case strings.HasPrefix(line, "EDGE_WEIGHT_TYPE"):
			weightType = strings.TrimSpace(line[strings.LastIndex(line, ":")+1:])
		case line == "NODE_COORD_SECTION" || line == "EDGE_WEIGHT_SECTION" || line == "DISPLAY_DATA_SECTION":
			section = line
		case strings.Contains(line, ":"): // other header fields
		default:
			fields := strings.Fields(line)
			switch section {
			case "NODE_COORD_SECTION":
				if len(fields) < 3 {
					return nil, fmt.Errorf("qap: %s: bad coordinate line %q", path, line)
				}
				x, err1 := strconv.ParseFloat(fields[1], 64)
				y, err2 := strconv.ParseFloat(fields[2], 64)
				if err1 != nil || err2 != nil {
					return nil, fmt.Errorf("qap: %s: bad coordinate line %q", path, line)
				}
				coords = append(coords, [2]float64{x, y})
			case "EDGE_WEIGHT_SECTION":
				for _, fv := range fields {
					v, err := strconv.ParseFloat(fv, 64)
					if err != nil {
						return nil, fmt.Errorf("qap: %s: bad edge weight %q", path, fv)
					}
					weights = append(weights, v)
				}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if dim <= 0 {
		return nil, fmt.Errorf("qap: %s: missing DIMENSION", path)
	}

	d := mat.NewDense(dim, dim, nil)
	switch {
	case len(coords) == dim:
		for i := 0; i < dim; i++ {
			for j := 0; j < dim; j++ {
				dx := coords[i][0] - coords[j][0]
				dy := coords[i][1] - coords[j][1]
				dist := math.Hypot(dx, dy)
				if weightType == "ATT" {
					dist = math.Ceil(math.Sqrt((dx*dx + dy*dy) / 10))
				} else {
					dist = math.Round(dist)
				}
				d.Set(i, j, dist)
			}
		}
	case len(weights) == dim*dim:
		for i := 0; i < dim*dim; i++ {
			d.Set(i/dim, i%dim, weights[i])
		}
	default:
		return nil, fmt.Errorf("qap: %s: unsupported %s layout", path, weightType)
	}
	return d, nil
}
