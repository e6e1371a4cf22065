package photoz

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

// Tolerances for matching a magnitude against the non-detection
// sentinel, matching numpy's isclose defaults.
const (
	nondetectAbsTol = 1e-8
	nondetectRelTol = 1e-5
)

// maskedErrValue replaces the error entry of a non-detected
// measurement regardless of the log-errors setting. The reference test
// vectors depend on this exact value.
const maskedErrValue = 1.0

// EncodeFeatures builds the N x 2B design matrix the regressor
// consumes. Column i holds band i's magnitudes with non-detections
// replaced by the band's configured limit; column B+i holds the
// matching errors, log-transformed when cfg.LogErrors is set, with
// non-detected entries forced to 1.0.
//
// Masking is per band, per row: a source can be detected in one band
// and not another. Degenerate error values on detected rows (zero or
// negative with LogErrors) propagate as -Inf/NaN for the regressor to
// deal with.
func EncodeFeatures(t *Table, cfg BandConfig) (*mat.Dense, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rows := t.NumRows()
	if rows == 0 {
		return nil, fmt.Errorf("encode: empty table")
	}
	numBands := len(cfg.Bands)
	data := mat.NewDense(rows, 2*numBands, nil)

	for i, band := range cfg.Bands {
		mags, err := t.Column(band)
		if err != nil {
			return nil, fmt.Errorf("encode: %w", err)
		}
		errs, err := t.Column(cfg.ErrBands[i])
		if err != nil {
			return nil, fmt.Errorf("encode: %w", err)
		}
		limit := cfg.MagLimits[band]
		for r := 0; r < rows; r++ {
			magOut, errOut := encodeBandEntry(mags[r], errs[r], cfg.NondetectVal, limit, cfg.LogErrors)
			data.Set(r, i, magOut)
			data.Set(r, numBands+i, errOut)
		}
	}
	return data, nil
}

// encodeBandEntry is the stateless per-row, per-band transform behind
// EncodeFeatures.
func encodeBandEntry(magVal, errVal, sentinel, limit float64, logErr bool) (float64, float64) {
	if isNondetect(magVal, sentinel) {
		return limit, maskedErrValue
	}
	if logErr {
		return magVal, math.Log(errVal)
	}
	return magVal, errVal
}

// isNondetect reports whether a magnitude is numerically close to the
// sentinel or NaN.
func isNondetect(magVal, sentinel float64) bool {
	if math.IsNaN(magVal) {
		return true
	}
	return scalar.EqualWithinAbsOrRel(magVal, sentinel, nondetectAbsTol, nondetectRelTol)
}
