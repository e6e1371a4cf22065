package photoz

import "gonum.org/v1/gonum/mat"

// Prediction holds the per-row outputs of a trained regressor. TotalVar
// decomposes into ModelVar (posterior uncertainty of the fit) plus
// NoiseVar (measurement noise process).
type Prediction struct {
	Mu       []float64
	TotalVar []float64
	ModelVar []float64
	NoiseVar []float64
}

// TrainOptions carries the prepared training arrays and iteration
// budgets into a regressor's fitting routine. Early stopping on the
// validation set is the regressor's responsibility; the pipeline only
// supplies the budgets.
type TrainOptions struct {
	// Weights is one cost-sensitive weight per row.
	Weights []float64

	// TrainingMask and ValidationMask are disjoint, exhaustive row
	// masks produced by SplitTrainValidation.
	TrainingMask   []bool
	ValidationMask []bool

	// MaxIter caps optimizer iterations; MaxAttempts caps consecutive
	// iterations without validation improvement.
	MaxIter     int
	MaxAttempts int
}

// Regressor is the capability boundary to the regression model. The
// pipeline never inspects the model's internals; it trains once and
// thereafter treats the model as read-only, shared across inference
// chunks and workers.
type Regressor interface {
	Train(features *mat.Dense, targets []float64, opts TrainOptions) error
	Predict(features *mat.Dense) (*Prediction, error)
}
