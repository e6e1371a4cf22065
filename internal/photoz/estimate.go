package photoz

import (
	"fmt"
	"log"
	"math"

	"github.com/banshee-data/photoz/internal/ensemble"
)

// ZModeAncil is the ancillary key carrying the per-row posterior mode.
const ZModeAncil = "zmode"

// Estimator streams an unlabeled photometry table through a trained
// regressor in row chunks and assembles the posterior ensemble. The
// model is shared read-only; each chunk owns its feature matrix and
// partial ensemble, so results are identical for any chunking.
type Estimator struct {
	cfg   EstimateConfig
	model Regressor
	grid  []float64
}

// NewEstimator validates the configuration and binds the trained model.
func NewEstimator(cfg EstimateConfig, model Regressor) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if model == nil {
		return nil, fmt.Errorf("estimate: no trained model")
	}
	return &Estimator{
		cfg:   cfg,
		model: model,
		grid:  ensemble.Linspace(cfg.ZMin, cfg.ZMax, cfg.NZBins),
	}, nil
}

// Run estimates posteriors for every row of the table, iterating in
// chunks of cfg.ChunkSize. Chunk outputs are concatenated in input row
// order.
func (e *Estimator) Run(tbl *Table) (*ensemble.Ensemble, error) {
	n := tbl.NumRows()
	if n == 0 {
		return nil, fmt.Errorf("estimate: empty table")
	}
	var out *ensemble.Ensemble
	for start := 0; start < n; start += e.cfg.ChunkSize {
		end := start + e.cfg.ChunkSize
		if end > n {
			end = n
		}
		chunk, err := e.EstimateChunk(tbl, start, end)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = chunk
		} else if err := out.Append(chunk); err != nil {
			return nil, fmt.Errorf("estimate: rows %d-%d: %w", start, end, err)
		}
	}
	return out, nil
}

// EstimateChunk runs inference on rows [start, end): encode features,
// predict, build one Gaussian posterior per row from the predicted
// mean and total variance, and attach the grid-evaluated mode as the
// zmode ancillary vector.
func (e *Estimator) EstimateChunk(tbl *Table, start, end int) (*ensemble.Ensemble, error) {
	log.Printf("estimate: rows %d - %d", start, end)

	chunk, err := tbl.Slice(start, end)
	if err != nil {
		return nil, fmt.Errorf("estimate: %w", err)
	}
	features, err := EncodeFeatures(chunk, e.cfg.Bands)
	if err != nil {
		return nil, fmt.Errorf("estimate: rows %d-%d: %w", start, end, err)
	}

	pred, err := e.model.Predict(features)
	if err != nil {
		return nil, fmt.Errorf("estimate: rows %d-%d: prediction failed: %w", start, end, err)
	}
	if len(pred.Mu) != end-start || len(pred.TotalVar) != end-start {
		return nil, fmt.Errorf("estimate: rows %d-%d: model returned %d predictions for %d rows",
			start, end, len(pred.Mu), end-start)
	}

	scales := make([]float64, len(pred.TotalVar))
	for i, v := range pred.TotalVar {
		scales[i] = math.Sqrt(v)
	}
	ens, err := ensemble.NewNormal(pred.Mu, scales)
	if err != nil {
		return nil, fmt.Errorf("estimate: rows %d-%d: %w", start, end, err)
	}

	modes, err := ens.Mode(e.grid)
	if err != nil {
		return nil, fmt.Errorf("estimate: rows %d-%d: %w", start, end, err)
	}
	if err := ens.SetAncil(ZModeAncil, modes); err != nil {
		return nil, fmt.Errorf("estimate: rows %d-%d: %w", start, end, err)
	}
	return ens, nil
}

// Grid returns the redshift evaluation grid.
func (e *Estimator) Grid() []float64 {
	return e.grid
}
