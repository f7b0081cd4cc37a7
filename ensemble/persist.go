package ensemble

import (
	"os"
	"path/filepath"

	"github.com/jrmsu/ojtinsight/core/model"
	ojtErrors "github.com/jrmsu/ojtinsight/pkg/errors"
	"github.com/jrmsu/ojtinsight/pkg/log"
	"github.com/jrmsu/ojtinsight/preprocessing"
	skensemble "github.com/jrmsu/ojtinsight/sklearn/ensemble"
	"github.com/jrmsu/ojtinsight/sklearn/linear_model"
	"github.com/jrmsu/ojtinsight/sklearn/naive_bayes"
)

// Artifact file names written by Save.
const (
	LogisticRegressionFile = "logistic_regression.json"
	RandomForestFile       = "random_forest.json"
	NaiveBayesFile         = "naive_bayes.json"
	ScalerFile             = "scaler.json"
	LabelEncoderFile       = "label_encoder.json"
	FeatureNamesFile       = "feature_names.json"
	EnsembleFile           = "ensemble.json"
)

// Artifact names recorded in each envelope's model_spec.
const (
	lrArtifact       = "LogisticRegression"
	rfArtifact       = "RandomForestClassifier"
	nbArtifact       = "GaussianNB"
	scalerArtifact   = "StandardScaler"
	encoderArtifact  = "LabelEncoder"
	featuresArtifact = "FeatureNames"
	ensembleArtifact = "Ensemble"
)

// Params is the content of ensemble.json.
type Params struct {
	Weights     Weights  `json:"weights"`
	Classes     []string `json:"classes"`
	NFeatures   int      `json:"n_features"`
	RandomState int64    `json:"random_state"`
}

// Save writes every artifact of the fitted model into dir, creating it if
// needed. Each file is replaced atomically.
func (m *Model) Save(dir string) (err error) {
	defer ojtErrors.Recover(&err, "EnsembleModel.Save")
	if !m.state.IsFitted() {
		return ojtErrors.NewNotFittedError("EnsembleModel", "Save")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ojtErrors.Wrapf(err, "create %s", dir)
	}

	lrParams, err := m.lr.Export()
	if err != nil {
		return err
	}
	rfParams, err := m.rf.Export()
	if err != nil {
		return err
	}
	nbParams, err := m.nb.Export()
	if err != nil {
		return err
	}

	artifacts := []struct {
		file, name string
		params     interface{}
	}{
		{LogisticRegressionFile, lrArtifact, lrParams},
		{RandomForestFile, rfArtifact, rfParams},
		{NaiveBayesFile, nbArtifact, nbParams},
		{ScalerFile, scalerArtifact, m.scaler},
		{LabelEncoderFile, encoderArtifact, m.encoder},
		{FeatureNamesFile, featuresArtifact, m.featureNames},
		{EnsembleFile, ensembleArtifact, Params{
			Weights:     m.weights,
			Classes:     m.Classes(),
			NFeatures:   len(m.featureNames),
			RandomState: m.randomState,
		}},
	}
	for _, a := range artifacts {
		if err := model.WriteArtifact(filepath.Join(dir, a.file), a.name, a.params); err != nil {
			return err
		}
	}

	m.logger.Info("Model saved",
		log.OperationKey, log.OperationSave,
		"dir", dir,
	)
	return nil
}

// Load reads a model written by Save. Every artifact must be present and
// consistent with the others.
func Load(dir string) (_ *Model, err error) {
	defer ojtErrors.Recover(&err, "ensemble.Load")

	var (
		lrParams linear_model.LogisticRegressionParams
		rfParams skensemble.RandomForestParams
		nbParams naive_bayes.GaussianNBParams
		scaler   = preprocessing.NewStandardScalerDefault()
		encoder  = preprocessing.NewLabelEncoder()
		names    []string
		params   Params
	)
	reads := []struct {
		file, name string
		out        interface{}
	}{
		{LogisticRegressionFile, lrArtifact, &lrParams},
		{RandomForestFile, rfArtifact, &rfParams},
		{NaiveBayesFile, nbArtifact, &nbParams},
		{ScalerFile, scalerArtifact, scaler},
		{LabelEncoderFile, encoderArtifact, encoder},
		{FeatureNamesFile, featuresArtifact, &names},
		{EnsembleFile, ensembleArtifact, &params},
	}
	for _, r := range reads {
		if err := model.ReadArtifact(filepath.Join(dir, r.file), r.name, r.out); err != nil {
			return nil, ojtErrors.Wrapf(err, "load %s", r.file)
		}
	}

	if err := scaler.Restore(); err != nil {
		return nil, err
	}
	if err := encoder.Restore(); err != nil {
		return nil, err
	}
	if err := params.Weights.Validate(); err != nil {
		return nil, err
	}

	n := len(names)
	k := encoder.NClasses()
	for _, got := range []int{params.NFeatures, scaler.NFeatures, lrParams.NFeatures, rfParams.NFeatures, nbParams.NFeatures} {
		if got != n {
			return nil, ojtErrors.NewDimensionError("ensemble.Load", n, got, 1)
		}
	}
	for _, got := range []int{len(lrParams.Classes), len(rfParams.Classes), len(nbParams.Classes)} {
		if got != k {
			return nil, ojtErrors.NewValueError("ensemble.Load", "sub-model classes do not match the label encoder")
		}
	}

	m := New(func(m *Model) {
		m.weights = params.Weights
		m.randomState = params.RandomState
	})
	m.lr = linear_model.NewLogisticRegression()
	if err := m.lr.Import(&lrParams); err != nil {
		return nil, err
	}
	m.rf = skensemble.NewRandomForestClassifier()
	if err := m.rf.Import(&rfParams); err != nil {
		return nil, err
	}
	m.nb = naive_bayes.NewGaussianNB()
	if err := m.nb.Import(&nbParams); err != nil {
		return nil, err
	}
	m.scaler = scaler
	m.encoder = encoder
	m.featureNames = names
	m.nEstimators = rfParams.NEstimators
	m.state.SetDimensions(n, 0)
	m.state.SetFitted()

	m.logger.Info("Model loaded",
		log.OperationKey, log.OperationLoad,
		log.FeaturesKey, n,
		log.ClassesKey, k,
		"dir", dir,
	)
	return m, nil
}
