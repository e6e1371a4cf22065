// Package ensemble represents per-source posterior distributions as a
// parametric ensemble: one Gaussian per row plus named ancillary
// vectors (derived summary statistics such as the posterior mode).
package ensemble

import (
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"
)

// Ensemble is a row-aligned collection of Gaussian posteriors.
type Ensemble struct {
	locs   []float64
	scales []float64
	ancil  map[string][]float64
}

// NewNormal builds an ensemble of Gaussians with the given locations
// and scales (standard deviations). Scales must be positive and the
// two slices equal length.
func NewNormal(locs, scales []float64) (*Ensemble, error) {
	if len(locs) == 0 {
		return nil, fmt.Errorf("ensemble: no distributions")
	}
	if len(scales) != len(locs) {
		return nil, fmt.Errorf("ensemble: %d scales for %d locations", len(scales), len(locs))
	}
	for i, s := range scales {
		if !(s > 0) {
			return nil, fmt.Errorf("ensemble: non-positive scale %v at row %d", s, i)
		}
	}
	return &Ensemble{
		locs:   append([]float64(nil), locs...),
		scales: append([]float64(nil), scales...),
		ancil:  make(map[string][]float64),
	}, nil
}

// Len returns the number of distributions.
func (e *Ensemble) Len() int {
	return len(e.locs)
}

// Loc returns row i's location parameter.
func (e *Ensemble) Loc(i int) float64 { return e.locs[i] }

// Scale returns row i's scale parameter.
func (e *Ensemble) Scale(i int) float64 { return e.scales[i] }

// PDF evaluates row i's density at x.
func (e *Ensemble) PDF(i int, x float64) float64 {
	return distuv.Normal{Mu: e.locs[i], Sigma: e.scales[i]}.Prob(x)
}

// Mode returns, per row, the grid point of maximum density. Ties keep
// the first (lowest) grid point. The argmax is evaluated numerically
// rather than taken from the distribution parameters, so the contract
// holds for any future distribution family.
func (e *Ensemble) Mode(grid []float64) ([]float64, error) {
	if len(grid) == 0 {
		return nil, fmt.Errorf("ensemble: empty evaluation grid")
	}
	modes := make([]float64, len(e.locs))
	for i := range e.locs {
		dist := distuv.Normal{Mu: e.locs[i], Sigma: e.scales[i]}
		best := grid[0]
		bestDensity := dist.Prob(grid[0])
		for _, z := range grid[1:] {
			if d := dist.Prob(z); d > bestDensity {
				best = z
				bestDensity = d
			}
		}
		modes[i] = best
	}
	return modes, nil
}

// SetAncil attaches a named ancillary vector, one value per row.
func (e *Ensemble) SetAncil(name string, values []float64) error {
	if len(values) != len(e.locs) {
		return fmt.Errorf("ensemble: ancil %q has %d values for %d rows", name, len(values), len(e.locs))
	}
	e.ancil[name] = append([]float64(nil), values...)
	return nil
}

// Ancil returns the named ancillary vector.
func (e *Ensemble) Ancil(name string) ([]float64, bool) {
	v, ok := e.ancil[name]
	return v, ok
}

// Append concatenates another ensemble's rows after this one's,
// preserving row order. Both ensembles must carry the same ancillary
// keys so the merged vectors stay row-aligned.
func (e *Ensemble) Append(other *Ensemble) error {
	if len(e.ancil) != len(other.ancil) {
		return fmt.Errorf("ensemble: ancil key mismatch on append")
	}
	for name := range e.ancil {
		if _, ok := other.ancil[name]; !ok {
			return fmt.Errorf("ensemble: appended ensemble missing ancil %q", name)
		}
	}
	e.locs = append(e.locs, other.locs...)
	e.scales = append(e.scales, other.scales...)
	for name, v := range other.ancil {
		e.ancil[name] = append(e.ancil[name], v...)
	}
	return nil
}

// Linspace returns n evenly spaced points from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n == 1 {
		return []float64{lo}
	}
	grid := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range grid {
		grid[i] = lo + float64(i)*step
	}
	grid[n-1] = hi
	return grid
}
