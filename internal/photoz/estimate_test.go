package photoz

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/mat"
)

// stubRegressor derives a deterministic prediction from the first
// feature column, so chunked and unchunked runs can be compared
// exactly.
type stubRegressor struct {
	trainCalls int
	lastOpts   TrainOptions
	trainErr   error
}

func (s *stubRegressor) Train(features *mat.Dense, targets []float64, opts TrainOptions) error {
	s.trainCalls++
	s.lastOpts = opts
	return s.trainErr
}

func (s *stubRegressor) Predict(features *mat.Dense) (*Prediction, error) {
	n, _ := features.Dims()
	pred := &Prediction{
		Mu:       make([]float64, n),
		TotalVar: make([]float64, n),
		ModelVar: make([]float64, n),
		NoiseVar: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		pred.Mu[i] = 0.1 * (features.At(i, 0) - 20.0)
		pred.ModelVar[i] = 0.01
		pred.NoiseVar[i] = 0.03
		pred.TotalVar[i] = pred.ModelVar[i] + pred.NoiseVar[i]
	}
	return pred, nil
}

func estimateTestTable(t *testing.T, n int) *Table {
	t.Helper()
	cols := map[string][]float64{}
	for _, name := range []string{"mag_g", "mag_r", "mag_err_g", "mag_err_r"} {
		cols[name] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		cols["mag_g"][i] = 20.0 + 0.07*float64(i)
		cols["mag_r"][i] = 19.5 + 0.06*float64(i)
		cols["mag_err_g"][i] = 0.05 + 0.001*float64(i)
		cols["mag_err_r"][i] = 0.04 + 0.001*float64(i)
	}
	// A couple of non-detections so chunking crosses masked rows too.
	if n > 5 {
		cols["mag_g"][3] = 99.0
		cols["mag_r"][5] = math.NaN()
	}
	return buildTable(t, cols)
}

func estimateTestConfig(chunkSize int) EstimateConfig {
	cfg := DefaultEstimateConfig()
	cfg.Bands = twoBandConfig(true)
	cfg.RefBand = "mag_g"
	cfg.ZMin = 0
	cfg.ZMax = 3
	cfg.NZBins = 301
	cfg.ChunkSize = chunkSize
	return cfg
}

func TestEstimator_ChunkSizeInvariance(t *testing.T) {
	tbl := estimateTestTable(t, 37)

	var outputs [][]float64
	var locs [][]float64
	for _, chunkSize := range []int{10, 37, 100} {
		est, err := NewEstimator(estimateTestConfig(chunkSize), &stubRegressor{})
		if err != nil {
			t.Fatalf("NewEstimator(chunk=%d) failed: %v", chunkSize, err)
		}
		ens, err := est.Run(tbl)
		if err != nil {
			t.Fatalf("Run(chunk=%d) failed: %v", chunkSize, err)
		}
		if ens.Len() != 37 {
			t.Fatalf("chunk=%d: %d posteriors, want 37", chunkSize, ens.Len())
		}
		zmode, ok := ens.Ancil(ZModeAncil)
		if !ok {
			t.Fatalf("chunk=%d: missing zmode ancil", chunkSize)
		}
		outputs = append(outputs, zmode)
		l := make([]float64, ens.Len())
		for i := range l {
			l[i] = ens.Loc(i)
		}
		locs = append(locs, l)
	}

	for i := 1; i < len(outputs); i++ {
		if diff := cmp.Diff(outputs[0], outputs[i]); diff != "" {
			t.Errorf("zmode differs between chunkings (-first +other):\n%s", diff)
		}
		if diff := cmp.Diff(locs[0], locs[i]); diff != "" {
			t.Errorf("means differ between chunkings (-first +other):\n%s", diff)
		}
	}
}

func TestEstimator_ModeConsistency(t *testing.T) {
	tbl := estimateTestTable(t, 20)
	est, err := NewEstimator(estimateTestConfig(7), &stubRegressor{})
	if err != nil {
		t.Fatalf("NewEstimator failed: %v", err)
	}

	first, err := est.Run(tbl)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	second, err := est.Run(tbl)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	z1, _ := first.Ancil(ZModeAncil)
	z2, _ := second.Ancil(ZModeAncil)
	if diff := cmp.Diff(z1, z2); diff != "" {
		t.Errorf("zmode differs between reruns (-first +second):\n%s", diff)
	}
}

func TestEstimator_ModeNearMean(t *testing.T) {
	// For a Gaussian posterior the grid mode sits within one grid step
	// of the predictive mean (when the mean is inside the grid).
	tbl := estimateTestTable(t, 15)
	cfg := estimateTestConfig(15)
	est, err := NewEstimator(cfg, &stubRegressor{})
	if err != nil {
		t.Fatalf("NewEstimator failed: %v", err)
	}
	ens, err := est.Run(tbl)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	zmode, _ := ens.Ancil(ZModeAncil)
	step := (cfg.ZMax - cfg.ZMin) / float64(cfg.NZBins-1)
	for i := 0; i < ens.Len(); i++ {
		mu := ens.Loc(i)
		if mu < cfg.ZMin || mu > cfg.ZMax {
			continue
		}
		if math.Abs(zmode[i]-mu) > step {
			t.Errorf("row %d: zmode %v more than one grid step from mean %v", i, zmode[i], mu)
		}
	}
}

func TestEstimator_PredictionLengthMismatch(t *testing.T) {
	est, err := NewEstimator(estimateTestConfig(10), badLengthRegressor{})
	if err != nil {
		t.Fatalf("NewEstimator failed: %v", err)
	}
	if _, err := est.Run(estimateTestTable(t, 12)); err == nil {
		t.Error("expected error for short prediction, got nil")
	}
}

type badLengthRegressor struct{}

func (badLengthRegressor) Train(*mat.Dense, []float64, TrainOptions) error { return nil }

func (badLengthRegressor) Predict(features *mat.Dense) (*Prediction, error) {
	return &Prediction{Mu: []float64{1}, TotalVar: []float64{0.1}}, nil
}

func TestEstimator_PredictErrorCarriesRowRange(t *testing.T) {
	est, err := NewEstimator(estimateTestConfig(10), failingRegressor{})
	if err != nil {
		t.Fatalf("NewEstimator failed: %v", err)
	}
	_, err = est.Run(estimateTestTable(t, 12))
	if err == nil {
		t.Fatal("expected prediction error, got nil")
	}
	if want := "rows 0-10"; !strings.Contains(err.Error(), want) {
		t.Errorf("error %q does not name the failing row range %q", err, want)
	}
}

type failingRegressor struct{}

func (failingRegressor) Train(*mat.Dense, []float64, TrainOptions) error { return nil }

func (failingRegressor) Predict(*mat.Dense) (*Prediction, error) {
	return nil, fmt.Errorf("ill-conditioned input")
}
