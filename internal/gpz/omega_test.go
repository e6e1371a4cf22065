package gpz

import (
	"math"
	"testing"
)

func TestOmega_Normal(t *testing.T) {
	w, err := Omega([]float64{0.1, 0.5, 1.2}, "normal", 0)
	if err != nil {
		t.Fatalf("Omega failed: %v", err)
	}
	for i, v := range w {
		if v != 1 {
			t.Errorf("w[%d] = %v, want 1", i, v)
		}
	}
}

func TestOmega_Balanced(t *testing.T) {
	// Three targets in one bin, one in another: the lone target gets
	// three times the weight of the crowded ones.
	targets := []float64{0.11, 0.12, 0.13, 0.51}
	w, err := Omega(targets, "balanced", 0.1)
	if err != nil {
		t.Fatalf("Omega failed: %v", err)
	}
	if math.Abs(w[3]/w[0]-3.0) > 1e-12 {
		t.Errorf("weight ratio = %v, want 3", w[3]/w[0])
	}
	var sum float64
	for _, v := range w {
		sum += v
	}
	if mean := sum / float64(len(w)); math.Abs(mean-1) > 1e-12 {
		t.Errorf("mean weight = %v, want 1", mean)
	}
}

func TestOmega_Normalized(t *testing.T) {
	targets := []float64{0.11, 0.12, 0.13, 0.51}
	w, err := Omega(targets, "normalized", 0)
	if err != nil {
		t.Fatalf("Omega failed: %v", err)
	}
	max := w[0]
	for _, v := range w[1:] {
		if v > max {
			max = v
		}
	}
	if math.Abs(max-1) > 1e-12 {
		t.Errorf("max weight = %v, want 1", max)
	}
	if w[3] != 1 {
		t.Errorf("rare-bin weight = %v, want 1", w[3])
	}
}

func TestOmega_Errors(t *testing.T) {
	if _, err := Omega(nil, "normal", 0); err == nil {
		t.Error("empty targets: expected error, got nil")
	}
	if _, err := Omega([]float64{0.1}, "bogus", 0); err == nil {
		t.Error("unknown method: expected error, got nil")
	}
	if _, err := Omega([]float64{0.1}, "balanced", 0); err == nil {
		t.Error("balanced without bin width: expected error, got nil")
	}
}

func TestOmega_NaNTargets(t *testing.T) {
	w, err := Omega([]float64{0.1, math.NaN(), 0.5}, "balanced", 0.1)
	if err != nil {
		t.Fatalf("Omega failed: %v", err)
	}
	if len(w) != 3 {
		t.Fatalf("len = %d, want 3", len(w))
	}
	for i, v := range w {
		if math.IsNaN(v) || v <= 0 {
			t.Errorf("w[%d] = %v, want positive finite", i, v)
		}
	}
}
