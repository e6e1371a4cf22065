package gpz

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// snapshot is the flat, gob-friendly form of a trained GP. Matrices
// are stored row-major with explicit dimensions so the decode side can
// rebuild the gonum types.
type snapshot struct {
	Hyperparams Hyperparams

	Mean    []float64
	Std     []float64
	Rot     []float64 // d x RotCols, empty when no decorrelation
	Dim     int
	RotCols int

	Centers    []float64 // NumCenters x CenterDim
	NumCenters int
	CenterDim  int

	Ell     []float64
	Weights []float64
	AInv    []float64 // p x p
	Sigma2  float64

	NoiseWeights []float64 // empty when homoscedastic
}

// MarshalBinary serializes a trained model. Untrained models cannot be
// persisted.
func (g *GP) MarshalBinary() ([]byte, error) {
	if !g.trained {
		return nil, fmt.Errorf("gpz: cannot serialize an untrained model")
	}
	k, cd := g.centers.Dims()
	p := g.weights.Len()
	snap := snapshot{
		Hyperparams: g.hp,
		Mean:        g.mean,
		Std:         g.std,
		Dim:         len(g.mean),
		Centers:     denseData(g.centers),
		NumCenters:  k,
		CenterDim:   cd,
		Ell:         g.ell,
		Weights:     vecData(g.weights),
		Sigma2:      g.sigma2,
	}
	if g.rot != nil {
		_, rc := g.rot.Dims()
		snap.Rot = denseData(g.rot)
		snap.RotCols = rc
	}
	snap.AInv = make([]float64, p*p)
	for i := 0; i < p; i++ {
		for j := 0; j < p; j++ {
			snap.AInv[i*p+j] = g.ainv.At(i, j)
		}
	}
	if g.noiseWeights != nil {
		snap.NoiseWeights = vecData(g.noiseWeights)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, fmt.Errorf("gpz: encode model: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary restores a trained model serialized by
// MarshalBinary.
func (g *GP) UnmarshalBinary(data []byte) error {
	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return fmt.Errorf("gpz: decode model: %w", err)
	}
	if _, err := New(snap.Hyperparams); err != nil {
		return err
	}

	g.hp = snap.Hyperparams
	g.mean = snap.Mean
	g.std = snap.Std
	g.rot = nil
	if len(snap.Rot) > 0 {
		g.rot = mat.NewDense(snap.Dim, snap.RotCols, snap.Rot)
	}
	g.centers = mat.NewDense(snap.NumCenters, snap.CenterDim, snap.Centers)
	g.ell = snap.Ell
	g.weights = mat.NewVecDense(len(snap.Weights), snap.Weights)

	p := len(snap.Weights)
	if len(snap.AInv) != p*p {
		return fmt.Errorf("gpz: decode model: covariance block is %d values, want %d", len(snap.AInv), p*p)
	}
	ainv := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			ainv.SetSym(i, j, snap.AInv[i*p+j])
		}
	}
	g.ainv = ainv
	g.sigma2 = snap.Sigma2

	g.noiseWeights = nil
	if len(snap.NoiseWeights) > 0 {
		g.noiseWeights = mat.NewVecDense(len(snap.NoiseWeights), snap.NoiseWeights)
	}
	g.trained = true
	return nil
}

// Load restores a trained GP from its serialized form.
func Load(data []byte) (*GP, error) {
	g := &GP{}
	if err := g.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return g, nil
}

func denseData(m *mat.Dense) []float64 {
	r, c := m.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out = append(out, m.At(i, j))
		}
	}
	return out
}

func vecData(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}
