package gpz

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/photoz/internal/photoz"
)

func TestNew_Validation(t *testing.T) {
	if _, err := New(Hyperparams{NumBasis: 0, Method: "VC"}); err == nil {
		t.Error("zero basis count: expected error, got nil")
	}
	if _, err := New(Hyperparams{NumBasis: 10, Method: "XX"}); err == nil {
		t.Error("unknown method: expected error, got nil")
	}
	for _, m := range []string{"GL", "VL", "GD", "VD", "GC", "VC"} {
		if _, err := New(Hyperparams{NumBasis: 10, Method: m}); err != nil {
			t.Errorf("method %s: unexpected error %v", m, err)
		}
	}
}

// linearDataset builds features where the target is a clean linear
// function of the first two columns.
func linearDataset(n int) (*mat.Dense, []float64) {
	x := mat.NewDense(n, 4, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		z := 2.0 * float64(i) / float64(n-1)
		x.Set(i, 0, 21.0+1.2*z)
		x.Set(i, 1, 20.5+1.4*z)
		x.Set(i, 2, math.Log(0.05))
		x.Set(i, 3, math.Log(0.04))
		y[i] = z
	}
	return x, y
}

func splitMasks(n int) ([]bool, []bool) {
	trainMask := make([]bool, n)
	valMask := make([]bool, n)
	for i := 0; i < n; i++ {
		if i%4 == 3 {
			valMask[i] = true
		} else {
			trainMask[i] = true
		}
	}
	return trainMask, valMask
}

func trainedOnLinear(t *testing.T, hp Hyperparams) (*GP, *mat.Dense, []float64) {
	t.Helper()
	x, y := linearDataset(120)
	trainMask, valMask := splitMasks(120)

	g, err := New(hp)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	err = g.Train(x, y, photoz.TrainOptions{
		TrainingMask:   trainMask,
		ValidationMask: valMask,
		MaxIter:        30,
		MaxAttempts:    25,
	})
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	return g, x, y
}

func defaultHyperparams() Hyperparams {
	return Hyperparams{
		NumBasis:        25,
		Method:          "VC",
		JointMean:       true,
		Heteroscedastic: true,
		Decorrelate:     true,
		Seed:            87,
	}
}

func TestGP_TrainPredict(t *testing.T) {
	g, x, y := trainedOnLinear(t, defaultHyperparams())

	pred, err := g.Predict(x)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	n, _ := x.Dims()
	if len(pred.Mu) != n || len(pred.TotalVar) != n || len(pred.ModelVar) != n || len(pred.NoiseVar) != n {
		t.Fatalf("prediction lengths = (%d, %d, %d, %d), want %d each",
			len(pred.Mu), len(pred.TotalVar), len(pred.ModelVar), len(pred.NoiseVar), n)
	}

	var sse float64
	for i := 0; i < n; i++ {
		if math.IsNaN(pred.Mu[i]) || math.IsInf(pred.Mu[i], 0) {
			t.Fatalf("row %d: non-finite mean %v", i, pred.Mu[i])
		}
		if !(pred.TotalVar[i] > 0) {
			t.Errorf("row %d: non-positive total variance %v", i, pred.TotalVar[i])
		}
		if diff := pred.TotalVar[i] - pred.ModelVar[i] - pred.NoiseVar[i]; math.Abs(diff) > 1e-12 {
			t.Errorf("row %d: variance decomposition off by %v", i, diff)
		}
		r := pred.Mu[i] - y[i]
		sse += r * r
	}
	// The joint linear mean alone can represent this target exactly,
	// so the fit should track it closely.
	if rmse := math.Sqrt(sse / float64(n)); rmse > 0.3 {
		t.Errorf("rmse = %v, want < 0.3 on a linear target", rmse)
	}
}

func TestGP_DeterministicPerSeed(t *testing.T) {
	g1, x, _ := trainedOnLinear(t, defaultHyperparams())
	g2, _, _ := trainedOnLinear(t, defaultHyperparams())

	p1, err := g1.Predict(x)
	if err != nil {
		t.Fatalf("first Predict failed: %v", err)
	}
	p2, err := g2.Predict(x)
	if err != nil {
		t.Fatalf("second Predict failed: %v", err)
	}
	if diff := cmp.Diff(p1.Mu, p2.Mu); diff != "" {
		t.Errorf("means differ for same seed (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(p1.TotalVar, p2.TotalVar); diff != "" {
		t.Errorf("variances differ for same seed (-first +second):\n%s", diff)
	}
}

func TestGP_UntrainedPredict(t *testing.T) {
	g, err := New(defaultHyperparams())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := g.Predict(mat.NewDense(1, 4, nil)); err == nil {
		t.Error("untrained Predict: expected error, got nil")
	}
}

func TestGP_TrainValidation(t *testing.T) {
	x, y := linearDataset(20)
	g, err := New(defaultHyperparams())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	short := make([]bool, 5)
	if err := g.Train(x, y, photoz.TrainOptions{
		TrainingMask:   short,
		ValidationMask: short,
		MaxIter:        5,
		MaxAttempts:    5,
	}); err == nil {
		t.Error("short masks: expected error, got nil")
	}

	empty := make([]bool, 20)
	if err := g.Train(x, y, photoz.TrainOptions{
		TrainingMask:   empty,
		ValidationMask: empty,
		MaxIter:        5,
		MaxAttempts:    5,
	}); err == nil {
		t.Error("empty training mask: expected error, got nil")
	}
}

func TestGP_PredictDimensionMismatch(t *testing.T) {
	g, _, _ := trainedOnLinear(t, defaultHyperparams())
	if _, err := g.Predict(mat.NewDense(3, 2, nil)); err == nil {
		t.Error("wrong feature width: expected error, got nil")
	}
}

func TestGP_SnapshotRoundTrip(t *testing.T) {
	g, x, _ := trainedOnLinear(t, defaultHyperparams())

	blob, err := g.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}
	restored, err := Load(blob)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want, err := g.Predict(x)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	got, err := restored.Predict(x)
	if err != nil {
		t.Fatalf("restored Predict failed: %v", err)
	}
	if diff := cmp.Diff(want.Mu, got.Mu); diff != "" {
		t.Errorf("means differ after round trip (-orig +restored):\n%s", diff)
	}
	if diff := cmp.Diff(want.TotalVar, got.TotalVar); diff != "" {
		t.Errorf("variances differ after round trip (-orig +restored):\n%s", diff)
	}
}

func TestGP_MarshalUntrained(t *testing.T) {
	g, err := New(defaultHyperparams())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := g.MarshalBinary(); err == nil {
		t.Error("untrained MarshalBinary: expected error, got nil")
	}
}
