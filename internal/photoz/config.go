package photoz

import "fmt"

// BandConfig fixes the column layout of the encoded feature matrix.
// Band order is significant: band i fills feature column i and its
// error fills column numBands+i.
type BandConfig struct {
	// Bands is the ordered list of magnitude column identifiers.
	Bands []string `json:"bands"`

	// ErrBands is the ordered list of magnitude-error column
	// identifiers, parallel to Bands.
	ErrBands []string `json:"err_bands"`

	// MagLimits maps each band to the faint replacement magnitude
	// used for non-detections.
	MagLimits map[string]float64 `json:"mag_limits"`

	// NondetectVal is the sentinel marking a non-detected magnitude.
	// NaN magnitudes are treated the same way.
	NondetectVal float64 `json:"nondetect_val"`

	// LogErrors takes the natural log of the magnitude errors.
	LogErrors bool `json:"log_errors"`
}

// DefaultBandConfig returns the LSST ugrizy layout used across the
// survey catalogs.
func DefaultBandConfig() BandConfig {
	bands := []string{"u", "g", "r", "i", "z", "y"}
	cfg := BandConfig{
		MagLimits: map[string]float64{
			"mag_u_lsst": 27.79,
			"mag_g_lsst": 29.04,
			"mag_r_lsst": 29.06,
			"mag_i_lsst": 28.62,
			"mag_z_lsst": 27.98,
			"mag_y_lsst": 27.05,
		},
		NondetectVal: 99.0,
		LogErrors:    true,
	}
	for _, b := range bands {
		cfg.Bands = append(cfg.Bands, "mag_"+b+"_lsst")
		cfg.ErrBands = append(cfg.ErrBands, "mag_err_"+b+"_lsst")
	}
	return cfg
}

// Validate checks the band layout before any encoding happens.
func (c BandConfig) Validate() error {
	if len(c.Bands) == 0 {
		return fmt.Errorf("band config: no bands configured")
	}
	if len(c.ErrBands) != len(c.Bands) {
		return fmt.Errorf("band config: %d error bands for %d bands", len(c.ErrBands), len(c.Bands))
	}
	for _, b := range c.Bands {
		if _, ok := c.MagLimits[b]; !ok {
			return fmt.Errorf("band config: no magnitude limit for band %q", b)
		}
	}
	return nil
}

// TrainConfig holds everything the training orchestrator needs.
type TrainConfig struct {
	Bands       BandConfig `json:"bands"`
	RedshiftCol string     `json:"redshift_col"`

	// TrainFrac is the fraction of rows used for training; the rest
	// form the validation set used for early stopping.
	TrainFrac float64 `json:"trainfrac"`
	Seed      int64   `json:"seed"`

	// Model hyperparameters, passed through to the regressor factory.
	Method       string `json:"gpz_method"`
	NumBasis     int    `json:"n_basis"`
	LearnJointly bool   `json:"learn_jointly"`
	HeteroNoise  bool   `json:"hetero_noise"`
	Decorrelate  bool   `json:"pca_decorrelate"`

	// Cost-sensitive learning.
	CSLMethod   WeightMethod `json:"csl_method"`
	CSLBinWidth float64      `json:"csl_binwidth"`

	// Iteration budgets for the model's optimizer.
	MaxIter     int `json:"max_iter"`
	MaxAttempts int `json:"max_attempt"`
}

// DefaultTrainConfig returns the standard training setup.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Bands:        DefaultBandConfig(),
		RedshiftCol:  "redshift",
		TrainFrac:    0.75,
		Seed:         87,
		Method:       "VC",
		NumBasis:     50,
		LearnJointly: true,
		HeteroNoise:  true,
		Decorrelate:  true,
		CSLMethod:    WeightNormal,
		CSLBinWidth:  0.1,
		MaxIter:      200,
		MaxAttempts:  100,
	}
}

// Validate rejects malformed training configurations up front.
func (c TrainConfig) Validate() error {
	if err := c.Bands.Validate(); err != nil {
		return err
	}
	if c.RedshiftCol == "" {
		return fmt.Errorf("train config: redshift column not set")
	}
	if c.TrainFrac <= 0 || c.TrainFrac >= 1 {
		return fmt.Errorf("train config: trainfrac %v outside (0,1)", c.TrainFrac)
	}
	if c.NumBasis <= 0 {
		return fmt.Errorf("train config: n_basis must be positive, got %d", c.NumBasis)
	}
	if c.MaxIter <= 0 || c.MaxAttempts <= 0 {
		return fmt.Errorf("train config: iteration budgets must be positive (max_iter=%d, max_attempt=%d)",
			c.MaxIter, c.MaxAttempts)
	}
	if err := c.CSLMethod.Validate(c.CSLBinWidth); err != nil {
		return fmt.Errorf("train config: %w", err)
	}
	return nil
}

// EstimateConfig holds everything the chunked inference engine needs.
type EstimateConfig struct {
	Bands BandConfig `json:"bands"`

	// RefBand is the reference magnitude column used to identify rows
	// in logs and reports.
	RefBand string `json:"ref_band"`

	// Evaluation grid for the posterior mode.
	ZMin   float64 `json:"zmin"`
	ZMax   float64 `json:"zmax"`
	NZBins int     `json:"nzbins"`

	// ChunkSize bounds peak memory; results are identical for any
	// chunking of the same input.
	ChunkSize int `json:"chunk_size"`
}

// DefaultEstimateConfig returns the standard inference setup.
func DefaultEstimateConfig() EstimateConfig {
	return EstimateConfig{
		Bands:     DefaultBandConfig(),
		RefBand:   "mag_i_lsst",
		ZMin:      0.0,
		ZMax:      3.0,
		NZBins:    301,
		ChunkSize: 10000,
	}
}

// Validate rejects malformed inference configurations up front.
func (c EstimateConfig) Validate() error {
	if err := c.Bands.Validate(); err != nil {
		return err
	}
	if c.NZBins < 2 {
		return fmt.Errorf("estimate config: nzbins must be at least 2, got %d", c.NZBins)
	}
	if !(c.ZMax > c.ZMin) {
		return fmt.Errorf("estimate config: zmax %v must exceed zmin %v", c.ZMax, c.ZMin)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("estimate config: chunk size must be positive, got %d", c.ChunkSize)
	}
	return nil
}
