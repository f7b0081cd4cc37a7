// Package ensemble provides RandomForestClassifier, a bagged collection of
// CART trees from the tree package.
package ensemble

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/jrmsu/ojtinsight/core/model"
	"github.com/jrmsu/ojtinsight/core/parallel"
	"github.com/jrmsu/ojtinsight/pkg/errors"
	"github.com/jrmsu/ojtinsight/pkg/log"
	"github.com/jrmsu/ojtinsight/sklearn/tree"
)

var globalProvider log.LoggerProvider

// RandomForestClassifier averages the class probabilities of nEstimators
// trees, each grown on a bootstrap sample with per-split feature sampling.
//
// Tree i draws from its own rand.Rand seeded with randomState+i, so the
// fitted forest does not depend on goroutine scheduling.
type RandomForestClassifier struct {
	state  *model.StateManager
	logger log.Logger

	nEstimators     int
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string
	bootstrap       bool
	randomState     int64
	nJobs           int

	trees_              []*tree.DecisionTreeClassifier
	classes_            []int
	nFeatures_          int
	featureImportances_ []float64
}

var _ model.ProbabilisticClassifier = (*RandomForestClassifier)(nil)

// RandomForestOption is a functional option for RandomForestClassifier.
type RandomForestOption func(*RandomForestClassifier)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.nEstimators = n }
}

// WithMaxDepth limits the depth of every tree (0 = unlimited).
func WithMaxDepth(d int) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.maxDepth = d }
}

// WithMinSamplesSplit sets the minimum samples required to split a node.
func WithMinSamplesSplit(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum samples in a leaf.
func WithMinSamplesLeaf(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.minSamplesLeaf = n }
}

// WithMaxFeatures sets features considered per split ("sqrt", "log2", "all" or an integer).
func WithMaxFeatures(s string) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.maxFeatures = s }
}

// WithBootstrap toggles bootstrap sampling.
func WithBootstrap(b bool) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.bootstrap = b }
}

// WithRandomState sets the base seed.
func WithRandomState(seed int64) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.randomState = seed }
}

// WithNJobs bounds the number of trees grown concurrently (<= 0 means GOMAXPROCS).
func WithNJobs(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.nJobs = n }
}

// NewRandomForestClassifier returns a forest of 100 unlimited-depth trees with
// sqrt feature sampling, bootstrap and seed 0.
func NewRandomForestClassifier(opts ...RandomForestOption) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		state:           model.NewStateManager(),
		nEstimators:     100,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     tree.MaxFeaturesSqrt,
		bootstrap:       true,
	}
	for _, o := range opts {
		o(rf)
	}

	if globalProvider == nil {
		globalProvider = log.NewZerologProvider(log.ToLogLevel("info"))
	}
	rf.logger = globalProvider.GetLoggerWithName("RandomForestClassifier").With(
		log.ModelNameKey, "RandomForestClassifier",
	)
	return rf
}

// Fit grows the trees concurrently.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestClassifier.Fit")

	start := time.Now()
	n, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if n == 0 || nFeatures == 0 {
		return errors.NewModelError("RandomForestClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if n != yRows {
		return errors.NewDimensionError("RandomForestClassifier.Fit", n, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError("RandomForestClassifier.Fit", "y must be a column vector")
	}
	if rf.nEstimators < 1 {
		return errors.NewValueError("RandomForestClassifier.Fit",
			fmt.Sprintf("n_estimators must be >= 1, got %d", rf.nEstimators))
	}

	classSet := make(map[int]bool)
	for i := 0; i < n; i++ {
		classSet[int(y.At(i, 0))] = true
	}
	classes := make([]int, 0, len(classSet))
	for c := range classSet {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	if len(classes) < 2 {
		return errors.NewModelError("RandomForestClassifier.Fit",
			fmt.Sprintf("got %d class", len(classes)), errors.ErrSingleClass)
	}
	index := make(map[int]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	codes := make([]int, n)
	for i := 0; i < n; i++ {
		codes[i] = index[int(y.At(i, 0))]
	}

	rf.logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, n,
		log.FeaturesKey, nFeatures,
		"n_estimators", rf.nEstimators,
	)

	xD := mat.DenseCopyOf(X)
	trees := make([]*tree.DecisionTreeClassifier, rf.nEstimators)

	limit := rf.nJobs
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(limit)
	for i := 0; i < rf.nEstimators; i++ {
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			treeRand := rand.New(rand.NewSource(rf.randomState + int64(i)))

			samples := make([]int, n)
			for j := range samples {
				if rf.bootstrap {
					samples[j] = treeRand.Intn(n)
				} else {
					samples[j] = j
				}
			}

			t := tree.NewDecisionTreeClassifier(
				tree.WithMaxDepth(rf.maxDepth),
				tree.WithMinSamplesSplit(rf.minSamplesSplit),
				tree.WithMinSamplesLeaf(rf.minSamplesLeaf),
				tree.WithMaxFeatures(rf.maxFeatures),
				tree.WithDTRandomState(rf.randomState+int64(i)),
			)
			if err := t.FitIndexed(xD, codes, classes, samples, treeRand); err != nil {
				return errors.Wrapf(err, "tree %d", i)
			}
			trees[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errors.NewModelError("RandomForestClassifier.Fit", "tree training failed", err)
	}

	rf.trees_ = trees
	rf.classes_ = classes
	rf.nFeatures_ = nFeatures
	rf.computeImportances()
	rf.state.SetFitted()
	rf.state.SetDimensions(nFeatures, n)

	rf.logger.Info("Training completed",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.DurationMsKey, time.Since(start).Milliseconds(),
		log.ClassesKey, len(classes),
	)
	return nil
}

// computeImportances averages the normalized per-tree importances.
func (rf *RandomForestClassifier) computeImportances() {
	imp := make([]float64, rf.nFeatures_)
	for _, t := range rf.trees_ {
		floats.Add(imp, t.GetFeatureImportances())
	}
	if sum := floats.Sum(imp); sum > 0 {
		floats.Scale(1/sum, imp)
	}
	rf.featureImportances_ = imp
}

// PredictProba returns the mean of the tree probabilities.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (_ *mat.Dense, err error) {
	defer errors.Recover(&err, "RandomForestClassifier.PredictProba")
	if !rf.state.IsFitted() {
		return nil, errors.NewNotFittedError("RandomForestClassifier", "PredictProba")
	}
	n, c := X.Dims()
	if c != rf.nFeatures_ {
		return nil, errors.NewDimensionError("RandomForestClassifier.PredictProba", rf.nFeatures_, c, 1)
	}

	xD := mat.DenseCopyOf(X)
	proba := mat.NewDense(n, len(rf.classes_), nil)
	scale := 1.0 / float64(len(rf.trees_))
	parallel.ParallelizeWithThreshold(n, parallel.DefaultThreshold/10, func(start, end int) {
		for i := start; i < end; i++ {
			row := xD.RawRowView(i)
			dst := proba.RawRowView(i)
			for _, t := range rf.trees_ {
				t.AddProba(row, dst, scale)
			}
		}
	})

	rf.logger.Debug("Prediction completed",
		log.OperationKey, log.OperationPredict,
		log.PredsKey, n,
	)
	return proba, nil
}

// Predict returns the class with the highest mean probability.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "RandomForestClassifier.Predict")
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, _ := proba.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, float64(rf.classes_[floats.MaxIdx(proba.RawRowView(i))]))
	}
	return out, nil
}

// IsFitted reports whether Fit or Import completed.
func (rf *RandomForestClassifier) IsFitted() bool {
	return rf.state.IsFitted()
}

// Classes returns the sorted class codes.
func (rf *RandomForestClassifier) Classes() []int {
	return append([]int(nil), rf.classes_...)
}

// FeatureImportances returns the mean decrease in impurity per feature,
// normalized to sum to 1.
func (rf *RandomForestClassifier) FeatureImportances() []float64 {
	return append([]float64(nil), rf.featureImportances_...)
}

// NEstimators returns the number of fitted trees.
func (rf *RandomForestClassifier) NEstimators() int {
	return len(rf.trees_)
}

// RandomForestParams is the persisted form of a fitted forest.
type RandomForestParams struct {
	NEstimators     int                        `json:"n_estimators"`
	MaxDepth        int                        `json:"max_depth"`
	MinSamplesSplit int                        `json:"min_samples_split"`
	MinSamplesLeaf  int                        `json:"min_samples_leaf"`
	MaxFeatures     string                     `json:"max_features"`
	Bootstrap       bool                       `json:"bootstrap"`
	RandomState     int64                      `json:"random_state"`
	Classes         []int                      `json:"classes"`
	NFeatures       int                        `json:"n_features"`
	Trees           []*tree.DecisionTreeParams `json:"trees"`
}

// Export returns the fitted forest.
func (rf *RandomForestClassifier) Export() (*RandomForestParams, error) {
	if !rf.state.IsFitted() {
		return nil, errors.NewNotFittedError("RandomForestClassifier", "Export")
	}
	p := &RandomForestParams{
		NEstimators:     rf.nEstimators,
		MaxDepth:        rf.maxDepth,
		MinSamplesSplit: rf.minSamplesSplit,
		MinSamplesLeaf:  rf.minSamplesLeaf,
		MaxFeatures:     rf.maxFeatures,
		Bootstrap:       rf.bootstrap,
		RandomState:     rf.randomState,
		Classes:         rf.Classes(),
		NFeatures:       rf.nFeatures_,
		Trees:           make([]*tree.DecisionTreeParams, len(rf.trees_)),
	}
	for i, t := range rf.trees_ {
		tp, err := t.Export()
		if err != nil {
			return nil, err
		}
		p.Trees[i] = tp
	}
	return p, nil
}

// Import restores a forest exported by Export.
func (rf *RandomForestClassifier) Import(p *RandomForestParams) error {
	if p == nil || len(p.Trees) == 0 {
		return errors.NewValueError("RandomForestClassifier.Import", "forest has no trees")
	}
	trees := make([]*tree.DecisionTreeClassifier, len(p.Trees))
	for i, tp := range p.Trees {
		if tp == nil || tp.NFeatures != p.NFeatures || len(tp.Classes) != len(p.Classes) {
			return errors.NewValueError("RandomForestClassifier.Import",
				fmt.Sprintf("tree %d does not match the forest shape", i))
		}
		t := tree.NewDecisionTreeClassifier()
		if err := t.Import(tp); err != nil {
			return errors.Wrapf(err, "tree %d", i)
		}
		trees[i] = t
	}

	rf.nEstimators = p.NEstimators
	rf.maxDepth = p.MaxDepth
	rf.minSamplesSplit = p.MinSamplesSplit
	rf.minSamplesLeaf = p.MinSamplesLeaf
	rf.maxFeatures = p.MaxFeatures
	rf.bootstrap = p.Bootstrap
	rf.randomState = p.RandomState
	rf.trees_ = trees
	rf.classes_ = append([]int(nil), p.Classes...)
	rf.nFeatures_ = p.NFeatures
	rf.computeImportances()
	rf.state.SetDimensions(p.NFeatures, 0)
	rf.state.SetFitted()
	return nil
}
