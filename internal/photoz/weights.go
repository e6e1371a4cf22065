package photoz

import "fmt"

// WeightMethod selects the cost-sensitive learning scheme applied to
// training targets.
type WeightMethod string

const (
	// WeightNormal gives every row unit weight.
	WeightNormal WeightMethod = "normal"

	// WeightBalanced weights rows by inverse redshift-bin frequency,
	// using the configured bin width.
	WeightBalanced WeightMethod = "balanced"

	// WeightNormalized is the balanced scheme rescaled so the largest
	// weight is 1.
	WeightNormalized WeightMethod = "normalized"
)

// Validate checks the method tag and, for the balanced scheme, the bin
// width.
func (m WeightMethod) Validate(binWidth float64) error {
	switch m {
	case WeightNormal, WeightNormalized:
		return nil
	case WeightBalanced:
		if binWidth <= 0 {
			return fmt.Errorf("weights: balanced method needs a positive bin width, got %v", binWidth)
		}
		return nil
	default:
		return fmt.Errorf("weights: unknown method %q (want balanced, normalized, or normal)", string(m))
	}
}

// WeightFunc computes one weight per target value. The concrete
// implementation lives with the regression model; the pipeline only
// validates the method tag and passes arguments through.
type WeightFunc func(targets []float64, method string, binWidth float64) ([]float64, error)

// SampleWeights validates the method selection and delegates to fn.
// Errors from fn (unknown method, empty targets) propagate unchanged.
func SampleWeights(targets []float64, method WeightMethod, binWidth float64, fn WeightFunc) ([]float64, error) {
	if fn == nil {
		return nil, fmt.Errorf("weights: no weighting function configured")
	}
	if err := method.Validate(binWidth); err != nil {
		return nil, err
	}
	return fn(targets, string(method), binWidth)
}
