package insight

import (
	"math"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/jrmsu/ojtinsight/ensemble"
	"github.com/jrmsu/ojtinsight/features"
	ojtErrors "github.com/jrmsu/ojtinsight/pkg/errors"
	"github.com/jrmsu/ojtinsight/pkg/log"
)

// Prediction is the record returned to callers.
type Prediction struct {
	PredictedLabel     string             `json:"predicted_label"`
	Probability        float64            `json:"probability"`
	ClassProbabilities map[string]float64 `json:"class_probabilities"`
	RiskLevel          RiskLevel          `json:"risk_level"`
	Defaulted          []string           `json:"defaulted,omitempty"`
}

// TrainedEnsemble is a loaded model ready for inference. It is immutable and
// safe for concurrent use.
type TrainedEnsemble struct {
	model    *ensemble.Model
	engineer *features.Engineer
	logger   log.Logger
}

// NewTrainedEnsemble wraps a fitted model. The engineer used to refresh
// derived features is rebuilt from the model's feature set.
func NewTrainedEnsemble(m *ensemble.Model) (*TrainedEnsemble, error) {
	if m == nil || !m.IsFitted() {
		return nil, ojtErrors.NewNotFittedError("EnsembleModel", "NewTrainedEnsemble")
	}
	return &TrainedEnsemble{
		model:    m,
		engineer: features.EngineerFromFeatureSet(m.FeatureNames()),
		logger:   log.GetLoggerWithName("insight"),
	}, nil
}

// Load reads the ensemble artifacts from dir. When preprocessor.json is
// present its engineer is used, otherwise one is rebuilt from the feature
// set.
func Load(dir string) (*TrainedEnsemble, error) {
	m, err := ensemble.Load(dir)
	if err != nil {
		return nil, ojtErrors.Wrapf(ojtErrors.ErrModelsNotLoaded, "%v", err)
	}
	te, err := NewTrainedEnsemble(m)
	if err != nil {
		return nil, err
	}

	if _, statErr := os.Stat(filepath.Join(dir, features.ArtifactFile)); statErr == nil {
		p, err := features.LoadPreprocessor(dir)
		if err != nil {
			return nil, err
		}
		if !slices.Equal(p.FeatureNames(), m.FeatureNames()) {
			return nil, ojtErrors.NewValueError("insight.Load",
				"preprocessor feature set does not match the model")
		}
		te.engineer = p.Engineer()
	}

	te.logger.Info("Models loaded",
		log.OperationKey, log.OperationLoad,
		log.FeaturesKey, len(m.FeatureNames()),
		log.ClassesKey, len(m.Classes()),
		"dir", dir,
	)
	return te, nil
}

// Model returns the wrapped ensemble.
func (te *TrainedEnsemble) Model() *ensemble.Model { return te.model }

// FeatureNames returns the trained feature set.
func (te *TrainedEnsemble) FeatureNames() []string { return te.model.FeatureNames() }

// Classes returns the labels the model can predict.
func (te *TrainedEnsemble) Classes() []string { return te.model.Classes() }

// PredictPerformance predicts from a feature mapping. Every trained feature
// name must be present; NaN and infinite values count as 0 and are reported
// in Defaulted.
func (te *TrainedEnsemble) PredictPerformance(values map[string]float64) (*Prediction, error) {
	clean := make(map[string]float64, len(values))
	var defaulted []string
	for k, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
			defaulted = append(defaulted, k)
		}
		clean[k] = v
	}
	sort.Strings(defaulted)

	single, err := te.model.PredictSingle(clean)
	if err != nil {
		return nil, err
	}

	p := &Prediction{
		PredictedLabel:     single.Label,
		Probability:        single.Confidence,
		ClassProbabilities: single.Probabilities,
		RiskLevel:          ClassifyRisk(single.Label),
		Defaulted:          defaulted,
	}
	te.logger.Debug("Prediction completed",
		log.OperationKey, log.OperationPredict,
		log.PhaseKey, log.PhaseInference,
		"label", p.PredictedLabel,
		"risk_level", string(p.RiskLevel),
	)
	return p, nil
}

// PredictSnapshot maps a runtime snapshot onto the feature set, recomputes
// the derived features from the mapped base scores and predicts.
func (te *TrainedEnsemble) PredictSnapshot(snapshot map[string]any) (*Prediction, error) {
	names := te.model.FeatureNames()
	mapping := BuildFeaturesFromSnapshot(names, snapshot)

	values := mapping.Values
	defaulted := mapping.Defaulted
	if len(te.engineer.Derived) > 0 {
		refreshed, err := features.RefreshRow(te.engineer, values)
		if err != nil {
			return nil, err
		}
		values = refreshed
		defaulted = withoutDerived(defaulted)
	}

	p, err := te.PredictPerformance(values)
	if err != nil {
		return nil, err
	}
	if len(defaulted) > 0 {
		p.Defaulted = defaulted
	}
	return p, nil
}

func withoutDerived(names []string) []string {
	var out []string
	for _, n := range names {
		if !features.IsDerived(n) {
			out = append(out, n)
		}
	}
	return out
}
