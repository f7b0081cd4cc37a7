package features

import (
	"fmt"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/jrmsu/ojtinsight/core/model"
	"github.com/jrmsu/ojtinsight/dataset"
	ojtErrors "github.com/jrmsu/ojtinsight/pkg/errors"
	"github.com/jrmsu/ojtinsight/pkg/log"
	"github.com/jrmsu/ojtinsight/preprocessing"
)

// ArtifactFile is the file name Save writes in the models directory.
const ArtifactFile = "preprocessor.json"

const artifactName = "OJTPreprocessor"

var globalProvider log.LoggerProvider

// Result is what Fit produces: the cleaned data and everything needed to
// train on it.
type Result struct {
	// Cleaned holds the feature set columns followed by the target column
	Cleaned      *dataset.Dataset
	FeatureNames []string
	Target       string
	Mapping      CategoricalMapping
	// X is the validated, unscaled feature matrix in FeatureNames order
	X      *mat.Dense
	Labels []string
	Report CleanReport
}

// Preprocessor runs detection, imputation, categorical conversion, feature
// engineering and validation, and replays them on new data.
type Preprocessor struct {
	state   *model.StateManager
	logger  log.Logger
	opts    *options
	optList []Option

	target      string
	cleaner     *Cleaner
	mapping     CategoricalMapping
	engineer    *Engineer
	finiteMeans []float64
	labels      *preprocessing.LabelEncoder
}

// NewPreprocessor returns an unfitted Preprocessor.
func NewPreprocessor(opts ...Option) *Preprocessor {
	if globalProvider == nil {
		globalProvider = log.NewZerologProvider(log.ToLogLevel("info"))
	}
	return &Preprocessor{
		state:   model.NewStateManager(),
		opts:    newOptions(opts),
		optList: opts,
		logger:  globalProvider.GetLoggerWithName("features").With(log.ModelNameKey, "Preprocessor"),
	}
}

// Fit learns the preprocessing from ds and returns the cleaned training
// data. ds itself is not modified.
func (p *Preprocessor) Fit(ds *dataset.Dataset) (_ *Result, err error) {
	defer ojtErrors.Recover(&err, "Preprocessor.Fit")
	if p.state.IsFitted() {
		return nil, ojtErrors.NewModelError("Preprocessor.Fit", "already fitted", nil)
	}
	if ds == nil || ds.NRows() == 0 || len(ds.Columns) == 0 {
		return nil, ojtErrors.NewModelError("Preprocessor.Fit", "empty dataset", ojtErrors.ErrEmptyData)
	}

	start := time.Now()
	work := ds.Clone()

	target := p.opts.target
	if target == "" {
		if target, err = DetectTarget(work); err != nil {
			return nil, err
		}
	} else if work.Index(target) < 0 {
		return nil, ojtErrors.Wrapf(ojtErrors.ErrTargetUndetectable, "column %q", target)
	}
	base := p.opts.features
	if len(base) == 0 {
		if base, err = DetectFeatures(work, target); err != nil {
			return nil, err
		}
	}

	p.logger.Info("Preprocessing started",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhasePreprocessing,
		log.SamplesKey, work.NRows(),
		"target", target,
		"base_features", base,
	)

	var rep CleanReport
	cleaner, err := FitCleaner(work, base)
	if err != nil {
		return nil, err
	}
	if rep.Imputed, err = cleaner.Impute(work); err != nil {
		return nil, err
	}
	if rep.Dropped, err = DropMissingTarget(work, target); err != nil {
		return nil, err
	}
	if work.NRows() == 0 {
		return nil, ojtErrors.NewModelError("Preprocessor.Fit", "no rows with a target value", ojtErrors.ErrEmptyData)
	}

	mapping, err := ConvertCategorical(work, base, p.optList...)
	if err != nil {
		return nil, err
	}
	if err := mapping.Apply(work); err != nil {
		return nil, err
	}

	eng := NewEngineer(base)
	X, err := eng.matrix(work)
	if err != nil {
		return nil, err
	}
	means := FiniteMeans(X)
	Validate(X, means, &rep)

	labels, err := textColumn(work, target)
	if err != nil {
		return nil, err
	}
	enc := preprocessing.NewLabelEncoder()
	if err := enc.Fit(labels); err != nil {
		return nil, err
	}

	p.target = target
	p.cleaner = cleaner
	p.mapping = mapping
	p.engineer = eng
	p.finiteMeans = means
	p.labels = enc
	p.state.SetDimensions(len(eng.Names()), work.NRows())
	p.state.SetFitted()

	p.logger.Info("Preprocessing completed",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhasePreprocessing,
		log.SamplesKey, work.NRows(),
		log.FeaturesKey, len(eng.Names()),
		log.ClassesKey, enc.NClasses(),
		"imputed", rep.Imputed,
		"dropped", rep.Dropped,
		"infinite", rep.Infinite,
		"clipped_low", rep.ClippedLow,
		"clipped_high", rep.ClippedHigh,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)

	return &Result{
		Cleaned:      cleanedDataset(eng.Names(), target, X, labels),
		FeatureNames: eng.Names(),
		Target:       target,
		Mapping:      mapping,
		X:            X,
		Labels:       labels,
		Report:       rep,
	}, nil
}

// Transform replays the fitted preprocessing on ds. labels is nil when ds
// has no target column. Rows with a missing target are dropped when the
// target column is present.
func (p *Preprocessor) Transform(ds *dataset.Dataset) (X *mat.Dense, labels []string, err error) {
	defer ojtErrors.Recover(&err, "Preprocessor.Transform")
	if !p.state.IsFitted() {
		return nil, nil, ojtErrors.NewNotFittedError("Preprocessor", "Transform")
	}

	work := ds.Clone()
	if err := p.restoreText(work); err != nil {
		return nil, nil, err
	}
	if _, err := p.cleaner.Impute(work); err != nil {
		return nil, nil, err
	}
	hasTarget := work.Index(p.target) >= 0
	if hasTarget {
		if _, err := DropMissingTarget(work, p.target); err != nil {
			return nil, nil, err
		}
	}
	if err := p.mapping.Apply(work); err != nil {
		return nil, nil, err
	}

	X, err = p.engineer.matrix(work)
	if err != nil {
		return nil, nil, err
	}
	var rep CleanReport
	Validate(X, p.finiteMeans, &rep)

	if hasTarget {
		if labels, err = textColumn(work, p.target); err != nil {
			return nil, nil, err
		}
	}
	p.logger.Debug("Transform completed",
		log.OperationKey, log.OperationTransform,
		log.SamplesKey, work.NRows(),
	)
	return X, labels, nil
}

// restoreText turns numeric cells of categorical columns back into text so
// that a value like "3" is scored through the mapping even when the new
// file's column happened to parse as numeric.
func (p *Preprocessor) restoreText(ds *dataset.Dataset) error {
	for name := range p.mapping {
		j := ds.Index(name)
		if j < 0 {
			return ojtErrors.Wrapf(ojtErrors.ErrMissingFeature, "column %q", name)
		}
		for _, r := range ds.Rows {
			if r[j].Kind == dataset.Number {
				r[j] = dataset.Str(r[j].Text())
			}
		}
	}
	return nil
}

// TransformLabels encodes labels with the encoder fitted on the training
// target. When a label was never seen it logs a warning and returns
// encoded=false; callers then keep the raw labels.
func (p *Preprocessor) TransformLabels(labels []string) (codes []int, encoded bool) {
	if !p.state.IsFitted() {
		return nil, false
	}
	codes, err := p.labels.Transform(labels)
	if err != nil {
		ojtErrors.Warn(ojtErrors.NewDataWarning("Preprocessor.TransformLabels",
			fmt.Sprintf("using original values: %v", err)))
		return nil, false
	}
	return codes, true
}

// Row refreshes the derived features of a single feature mapping and clips
// every trained feature into the score range. Names outside the feature set
// are dropped.
func (p *Preprocessor) Row(values map[string]float64) (map[string]float64, error) {
	if !p.state.IsFitted() {
		return nil, ojtErrors.NewNotFittedError("Preprocessor", "Row")
	}
	return RefreshRow(p.engineer, values)
}

// RefreshRow is Row for callers that only have an Engineer.
func RefreshRow(e *Engineer, values map[string]float64) (map[string]float64, error) {
	clipped := make(map[string]float64, len(e.Base))
	for _, name := range e.Base {
		v, ok := values[name]
		if !ok {
			return nil, ojtErrors.Wrapf(ojtErrors.ErrMissingFeature, "base feature %q", name)
		}
		clipped[name] = Clip(v)
	}
	full, err := e.Row(clipped)
	if err != nil {
		return nil, err
	}
	for _, name := range e.Derived {
		full[name] = Clip(full[name])
	}
	return full, nil
}

// FeatureNames returns a copy of the fitted feature set.
func (p *Preprocessor) FeatureNames() []string {
	if p.engineer == nil {
		return nil
	}
	return p.engineer.Names()
}

// Target returns the fitted target column name.
func (p *Preprocessor) Target() string { return p.target }

// Engineer returns the fitted feature engineer.
func (p *Preprocessor) Engineer() *Engineer { return p.engineer }

// IsFitted reports whether Fit or Load completed.
func (p *Preprocessor) IsFitted() bool { return p.state.IsFitted() }

// PreprocessorParams is the persisted form of a fitted Preprocessor.
type PreprocessorParams struct {
	Target         string             `json:"target"`
	SortedOrdinals bool               `json:"sorted_ordinals"`
	Cleaner        *Cleaner           `json:"cleaner"`
	Mapping        CategoricalMapping `json:"mapping"`
	Engineer       *Engineer          `json:"engineer"`
	FiniteMeans    []float64          `json:"finite_means"`
	LabelClasses   []string           `json:"label_classes"`
}

// Save writes preprocessor.json into dir.
func (p *Preprocessor) Save(dir string) error {
	if !p.state.IsFitted() {
		return ojtErrors.NewNotFittedError("Preprocessor", "Save")
	}
	params := PreprocessorParams{
		Target:         p.target,
		SortedOrdinals: p.opts.sortedOrdinals,
		Cleaner:        p.cleaner,
		Mapping:        p.mapping,
		Engineer:       p.engineer,
		FiniteMeans:    p.finiteMeans,
		LabelClasses:   p.labels.Classes,
	}
	return model.WriteArtifact(filepath.Join(dir, ArtifactFile), artifactName, params)
}

// LoadPreprocessor reads preprocessor.json from dir.
func LoadPreprocessor(dir string) (*Preprocessor, error) {
	var params PreprocessorParams
	if err := model.ReadArtifact(filepath.Join(dir, ArtifactFile), artifactName, &params); err != nil {
		return nil, err
	}
	if params.Engineer == nil || params.Cleaner == nil || params.Target == "" {
		return nil, ojtErrors.NewValueError("LoadPreprocessor", "incomplete preprocessor artifact")
	}
	if len(params.FiniteMeans) != len(params.Engineer.Names()) {
		return nil, ojtErrors.NewDimensionError("LoadPreprocessor",
			len(params.Engineer.Names()), len(params.FiniteMeans), 0)
	}

	enc := preprocessing.NewLabelEncoder()
	enc.Classes = params.LabelClasses
	if err := enc.Restore(); err != nil {
		return nil, err
	}
	if params.Mapping == nil {
		params.Mapping = CategoricalMapping{}
	}

	var opts []Option
	if params.SortedOrdinals {
		opts = append(opts, WithSortedOrdinals())
	}
	p := NewPreprocessor(opts...)
	p.target = params.Target
	p.cleaner = params.Cleaner
	p.mapping = params.Mapping
	p.engineer = params.Engineer
	p.finiteMeans = params.FiniteMeans
	p.labels = enc
	p.state.SetDimensions(len(params.Engineer.Names()), 0)
	p.state.SetFitted()
	return p, nil
}

// matrix builds the base columns of ds and appends the derived features.
// Every base cell must be a number by now.
func (e *Engineer) matrix(ds *dataset.Dataset) (*mat.Dense, error) {
	idx := make([]int, len(e.Base))
	for i, name := range e.Base {
		if idx[i] = ds.Index(name); idx[i] < 0 {
			return nil, ojtErrors.Wrapf(ojtErrors.ErrMissingFeature, "column %q", name)
		}
	}

	if ds.NRows() == 0 {
		return nil, ojtErrors.NewModelError("Engineer.matrix", "no rows", ojtErrors.ErrEmptyData)
	}

	X := mat.NewDense(ds.NRows(), len(e.Base)+len(e.Derived), nil)
	base := make([]float64, len(e.Base))
	for i, r := range ds.Rows {
		for k, j := range idx {
			if r[j].Kind != dataset.Number {
				return nil, ojtErrors.NewValueError("Engineer.matrix",
					fmt.Sprintf("row %d: column %q is not numeric: %v", i, e.Base[k], r[j]))
			}
			base[k] = r[j].Num
		}
		X.SetRow(i, e.Extend(base))
	}
	return X, nil
}

func textColumn(ds *dataset.Dataset, name string) ([]string, error) {
	col, err := ds.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(col))
	for i, v := range col {
		out[i] = v.Text()
	}
	return out, nil
}

func cleanedDataset(names []string, target string, X *mat.Dense, labels []string) *dataset.Dataset {
	cols := append(append([]string(nil), names...), target)
	rows := make([][]dataset.Value, len(labels))
	for i := range rows {
		row := make([]dataset.Value, 0, len(cols))
		for _, v := range X.RawRowView(i) {
			row = append(row, dataset.Num(v))
		}
		rows[i] = append(row, dataset.Str(labels[i]))
	}
	return &dataset.Dataset{Columns: cols, Rows: rows}
}
