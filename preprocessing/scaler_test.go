package preprocessing_test

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/jrmsu/ojtinsight/preprocessing"
	ojtErrors "github.com/jrmsu/ojtinsight/pkg/errors"
)

const epsilon = 1e-10 // Tolerance for floating-point comparisons

func TestStandardScaler_BasicFunctionality(t *testing.T) {
	// Feature 1: [1, 2, 3] -> mean=2, std=0.816
	// Feature 2: [4, 5, 6] -> mean=5, std=0.816
	X := mat.NewDense(3, 2, []float64{
		1.0, 4.0,
		2.0, 5.0,
		3.0, 6.0,
	})

	scaler := preprocessing.NewStandardScalerDefault()
	if err := scaler.Fit(X); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	expectedMean := []float64{2.0, 5.0}
	expectedStd := []float64{0.816496580927726, 0.816496580927726}
	for i := range expectedMean {
		if math.Abs(scaler.Mean[i]-expectedMean[i]) > epsilon {
			t.Errorf("Mean[%d]: expected %f, got %f", i, expectedMean[i], scaler.Mean[i])
		}
		if math.Abs(scaler.Scale[i]-expectedStd[i]) > epsilon {
			t.Errorf("Scale[%d]: expected %f, got %f", i, expectedStd[i], scaler.Scale[i])
		}
	}

	XScaled, err := scaler.Transform(X)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	expectedScaled := []float64{
		-1.224744871391589, -1.224744871391589,
		0.0, 0.0,
		1.224744871391589, 1.224744871391589,
	}
	r, c := XScaled.Dims()
	if r != 3 || c != 2 {
		t.Fatalf("Expected 3x2 matrix, got %dx%d", r, c)
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.Abs(XScaled.At(i, j)-expectedScaled[i*c+j]) > epsilon {
				t.Errorf("XScaled[%d][%d]: expected %f, got %f", i, j, expectedScaled[i*c+j], XScaled.At(i, j))
			}
		}
	}
}

func TestStandardScaler_InverseTransform(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		70, 20,
		85, 22,
		90, 25,
		60, 18,
	})
	scaler := preprocessing.NewStandardScalerDefault()
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}
	back, err := scaler.InverseTransform(scaled)
	if err != nil {
		t.Fatalf("InverseTransform failed: %v", err)
	}
	if !mat.EqualApprox(X, back, 1e-9) {
		t.Errorf("InverseTransform did not recover input:\n%v", mat.Formatted(back))
	}
}

func TestStandardScaler_Options(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{2, 4, 6})

	tests := []struct {
		name      string
		withMean  bool
		withStd   bool
		wantMean  float64
		wantScale float64
	}{
		{"both", true, true, 4, math.Sqrt(8.0 / 3.0)},
		{"no mean", false, true, 0, math.Sqrt(8.0 / 3.0)},
		{"no std", true, false, 4, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := preprocessing.NewStandardScaler(tt.withMean, tt.withStd)
			if err := s.Fit(X); err != nil {
				t.Fatalf("Fit failed: %v", err)
			}
			if math.Abs(s.Mean[0]-tt.wantMean) > epsilon {
				t.Errorf("Mean: expected %f, got %f", tt.wantMean, s.Mean[0])
			}
			if math.Abs(s.Scale[0]-tt.wantScale) > epsilon {
				t.Errorf("Scale: expected %f, got %f", tt.wantScale, s.Scale[0])
			}
		})
	}
}

func TestStandardScaler_ConstantFeature(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		5, 1,
		5, 2,
		5, 3,
	})
	s := preprocessing.NewStandardScalerDefault()
	out, err := s.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}
	if s.Scale[0] != 1.0 {
		t.Errorf("constant feature scale: expected 1, got %f", s.Scale[0])
	}
	for i := 0; i < 3; i++ {
		if out.At(i, 0) != 0 {
			t.Errorf("constant feature row %d: expected 0, got %f", i, out.At(i, 0))
		}
	}
}

func TestStandardScaler_ErrorCases(t *testing.T) {
	s := preprocessing.NewStandardScalerDefault()

	_, err := s.Transform(mat.NewDense(1, 2, nil))
	if !errors.Is(err, ojtErrors.ErrNotFitted) {
		t.Errorf("expected NotFittedError, got %v", err)
	}

	if err := s.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4})); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	_, err = s.Transform(mat.NewDense(1, 3, nil))
	var dimErr *ojtErrors.DimensionError
	if !errors.As(err, &dimErr) {
		t.Errorf("expected DimensionError, got %v", err)
	}
}

func TestStandardScaler_Restore(t *testing.T) {
	s := &preprocessing.StandardScaler{Mean: []float64{1}, Scale: []float64{2}, NFeatures: 1, WithMean: true, WithStd: true}
	if err := s.Restore(); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	out, err := s.Transform(mat.NewDense(1, 1, []float64{5}))
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if out.At(0, 0) != 2 {
		t.Errorf("expected 2, got %f", out.At(0, 0))
	}

	bad := &preprocessing.StandardScaler{Mean: []float64{1}, Scale: []float64{0}, NFeatures: 1}
	if err := bad.Restore(); err == nil {
		t.Error("expected error for zero scale")
	}
}

func TestStandardScaler_String(t *testing.T) {
	s := preprocessing.NewStandardScalerDefault()
	if got := s.String(); got != "StandardScaler(with_mean=true, with_std=true)" {
		t.Errorf("unexpected String(): %s", got)
	}
	_ = s.Fit(mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6}))
	if got := s.String(); got != "StandardScaler(with_mean=true, with_std=true, n_features=3)" {
		t.Errorf("unexpected String(): %s", got)
	}
}
