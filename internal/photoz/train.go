package photoz

import (
	"fmt"
	"log"
)

// Trainer assembles encoded features, targets, partition masks, and
// sample weights, and drives the regressor's training entry point. It
// owns the trained model until the caller persists it.
type Trainer struct {
	cfg      TrainConfig
	model    Regressor
	weightFn WeightFunc
}

// NewTrainer validates the configuration and binds the regressor and
// the external weighting routine.
func NewTrainer(cfg TrainConfig, model Regressor, weightFn WeightFunc) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if model == nil {
		return nil, fmt.Errorf("train: no regressor configured")
	}
	if weightFn == nil {
		return nil, fmt.Errorf("train: no weighting function configured")
	}
	return &Trainer{cfg: cfg, model: model, weightFn: weightFn}, nil
}

// Run trains the model on a labeled photometry table. Failures from
// the regressor (ill-conditioned input, non-convergence) propagate
// unrecovered; no retry happens at this layer.
func (t *Trainer) Run(tbl *Table) error {
	features, err := EncodeFeatures(tbl, t.cfg.Bands)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}
	targets, err := tbl.Column(t.cfg.RedshiftCol)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}

	ngal := tbl.NumRows()
	log.Printf("train: ngal=%d bands=%d", ngal, len(t.cfg.Bands.Bands))

	trainMask, valMask, err := SplitTrainValidation(ngal, t.cfg.TrainFrac, t.cfg.Seed)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}

	weights, err := SampleWeights(targets, t.cfg.CSLMethod, t.cfg.CSLBinWidth, t.weightFn)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}

	log.Printf("train: fitting model (max_iter=%d, max_attempt=%d)", t.cfg.MaxIter, t.cfg.MaxAttempts)
	err = t.model.Train(features, targets, TrainOptions{
		Weights:        weights,
		TrainingMask:   trainMask,
		ValidationMask: valMask,
		MaxIter:        t.cfg.MaxIter,
		MaxAttempts:    t.cfg.MaxAttempts,
	})
	if err != nil {
		return fmt.Errorf("train: model fit failed: %w", err)
	}
	return nil
}

// Model returns the trained regressor. Only meaningful after a
// successful Run.
func (t *Trainer) Model() Regressor {
	return t.model
}
