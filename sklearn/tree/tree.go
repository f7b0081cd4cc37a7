// Package tree provides a CART decision tree classifier. It is used directly
// and as the base learner of ensemble.RandomForestClassifier.
package tree

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/jrmsu/ojtinsight/core/model"
	"github.com/jrmsu/ojtinsight/pkg/errors"
)

// MaxFeatures values understood by WithMaxFeatures.
const (
	MaxFeaturesAll  = "all"
	MaxFeaturesSqrt = "sqrt"
	MaxFeaturesLog2 = "log2"
)

// TreeNode represents a node in the decision tree
type TreeNode struct {
	IsLeaf       bool      `json:"is_leaf"`
	Feature      int       `json:"feature,omitempty"`   // split feature (internal nodes)
	Threshold    float64   `json:"threshold,omitempty"` // go left when x[Feature] <= Threshold
	Left         *TreeNode `json:"left,omitempty"`
	Right        *TreeNode `json:"right,omitempty"`
	ClassCounts  []int     `json:"class_counts"`
	PredictClass int       `json:"predict_class"` // index into classes
	Impurity     float64   `json:"impurity"`
	NSamples     int       `json:"n_samples"`
	Depth        int       `json:"depth"`
}

// DecisionTreeClassifier implements a decision tree for classification
type DecisionTreeClassifier struct {
	state *model.StateManager

	// Hyperparameters
	criterion           string  // "gini" or "entropy"
	maxDepth            int     // 0 = unlimited
	minSamplesSplit     int     // minimum samples to split a node
	minSamplesLeaf      int     // minimum samples in a leaf
	maxFeatures         string  // "all", "sqrt", "log2" or a positive integer
	minImpurityDecrease float64 // minimum impurity decrease for a split
	randomState         int64   // seed used when maxFeatures samples features

	// Tree structure
	tree_      *TreeNode
	nClasses_  int
	nFeatures_ int
	classes_   []int

	featureImportances_ []float64

	// fit-time scratch
	x   *mat.Dense
	y   []int
	rng *rand.Rand
}

var _ model.ProbabilisticClassifier = (*DecisionTreeClassifier)(nil)

// DecisionTreeClassifierOption is a functional option
type DecisionTreeClassifierOption func(*DecisionTreeClassifier)

// NewDecisionTreeClassifier creates a new decision tree classifier
func NewDecisionTreeClassifier(opts ...DecisionTreeClassifierOption) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       "gini",
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     MaxFeaturesAll,
		randomState:     0,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

// WithCriterion sets the splitting criterion
func WithCriterion(criterion string) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) {
		dt.criterion = criterion
	}
}

// WithMaxDepth sets the maximum tree depth
func WithMaxDepth(depth int) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) {
		dt.maxDepth = depth
	}
}

// WithMinSamplesSplit sets minimum samples to split
func WithMinSamplesSplit(n int) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) {
		dt.minSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets minimum samples in leaf
func WithMinSamplesLeaf(n int) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) {
		dt.minSamplesLeaf = n
	}
}

// WithMaxFeatures sets how many features are considered per split.
func WithMaxFeatures(maxFeatures string) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) {
		dt.maxFeatures = maxFeatures
	}
}

// WithDTRandomState sets the random seed
func WithDTRandomState(seed int64) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) {
		dt.randomState = seed
	}
}

// Fit trains the decision tree on X and integer labels y (n_samples x 1).
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.Fit")
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()

	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("DecisionTreeClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if nSamples != yRows {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", "y must be a column vector")
	}

	classes := extractClasses(y)
	index := make(map[int]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	codes := make([]int, nSamples)
	samples := make([]int, nSamples)
	for i := 0; i < nSamples; i++ {
		codes[i] = index[int(y.At(i, 0))]
		samples[i] = i
	}

	return dt.FitIndexed(mat.DenseCopyOf(X), codes, classes, samples,
		rand.New(rand.NewSource(dt.randomState)))
}

// FitIndexed grows the tree on the rows of X listed in samples, which may
// contain duplicates (bootstrap draws). codes holds the class index of every
// row of X and classes the label of each index, so a tree grown on a subset
// still reports probabilities for every class. rng drives feature sampling.
func (dt *DecisionTreeClassifier) FitIndexed(X *mat.Dense, codes []int, classes []int, samples []int, rng *rand.Rand) (err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.FitIndexed")
	_, nFeatures := X.Dims()
	if len(samples) == 0 {
		return errors.NewModelError("DecisionTreeClassifier.FitIndexed", "no samples", errors.ErrEmptyData)
	}
	if dt.minSamplesSplit < 2 {
		return errors.NewValueError("DecisionTreeClassifier.Fit",
			fmt.Sprintf("min_samples_split must be >= 2, got %d", dt.minSamplesSplit))
	}
	if dt.criterion != "gini" && dt.criterion != "entropy" {
		return errors.Wrapf(errors.ErrNotImplemented, "criterion %q", dt.criterion)
	}

	dt.state.Reset()
	dt.classes_ = append([]int(nil), classes...)
	dt.nClasses_ = len(classes)
	dt.nFeatures_ = nFeatures
	dt.featureImportances_ = make([]float64, nFeatures)
	dt.x, dt.y, dt.rng = X, codes, rng
	defer func() { dt.x, dt.y, dt.rng = nil, nil, nil }()

	work := append([]int(nil), samples...)
	dt.tree_ = dt.buildTree(work, 0)
	dt.normalizeFeatureImportances()

	dt.state.SetFitted()
	dt.state.SetDimensions(nFeatures, len(samples))
	return nil
}

func extractClasses(y mat.Matrix) []int {
	rows, _ := y.Dims()
	classMap := make(map[int]bool)
	for i := 0; i < rows; i++ {
		classMap[int(y.At(i, 0))] = true
	}
	classes := make([]int, 0, len(classMap))
	for class := range classMap {
		classes = append(classes, class)
	}
	sort.Ints(classes)
	return classes
}

// buildTree recursively builds the decision tree over the sample indices.
// It reorders samples in place.
func (dt *DecisionTreeClassifier) buildTree(samples []int, depth int) *TreeNode {
	classCounts := make([]int, dt.nClasses_)
	for _, s := range samples {
		classCounts[dt.y[s]]++
	}

	// Majority class, lowest index on ties.
	predictClass := 0
	for i, count := range classCounts {
		if count > classCounts[predictClass] {
			predictClass = i
		}
	}

	impurity := dt.calculateImpurity(classCounts, len(samples))
	node := &TreeNode{
		ClassCounts:  classCounts,
		PredictClass: predictClass,
		Impurity:     impurity,
		NSamples:     len(samples),
		Depth:        depth,
	}

	if dt.shouldStop(len(samples), impurity, depth) {
		node.IsLeaf = true
		return node
	}

	bestFeature, bestThreshold, bestImpurityDecrease := dt.findBestSplit(samples, classCounts, impurity)
	if bestFeature == -1 || bestImpurityDecrease < dt.minImpurityDecrease {
		node.IsLeaf = true
		return node
	}

	// Partition samples: left part holds x <= threshold.
	nLeft := 0
	for i, s := range samples {
		if dt.x.At(s, bestFeature) <= bestThreshold {
			samples[i], samples[nLeft] = samples[nLeft], samples[i]
			nLeft++
		}
	}

	node.Feature = bestFeature
	node.Threshold = bestThreshold
	dt.featureImportances_[bestFeature] += bestImpurityDecrease * float64(len(samples))

	node.Left = dt.buildTree(samples[:nLeft], depth+1)
	node.Right = dt.buildTree(samples[nLeft:], depth+1)
	return node
}

// shouldStop checks stopping criteria
func (dt *DecisionTreeClassifier) shouldStop(nSamples int, impurity float64, depth int) bool {
	if dt.maxDepth > 0 && depth >= dt.maxDepth {
		return true
	}
	if nSamples < dt.minSamplesSplit || nSamples < 2*dt.minSamplesLeaf {
		return true
	}
	return impurity <= 0.0
}

// calculateImpurity calculates node impurity using Gini or Entropy
func (dt *DecisionTreeClassifier) calculateImpurity(classCounts []int, total int) float64 {
	if total == 0 {
		return 0.0
	}

	impurity := 0.0
	if dt.criterion == "entropy" {
		for _, count := range classCounts {
			if count > 0 {
				p := float64(count) / float64(total)
				impurity -= p * math.Log2(p)
			}
		}
		return impurity
	}

	// Gini impurity: 1 - sum(p_i^2)
	sumSquared := 0.0
	for _, count := range classCounts {
		if count > 0 {
			p := float64(count) / float64(total)
			sumSquared += p * p
		}
	}
	return 1.0 - sumSquared
}

// nFeaturesPerSplit resolves maxFeatures against the fitted feature count.
func (dt *DecisionTreeClassifier) nFeaturesPerSplit() int {
	n := dt.nFeatures_
	k := n
	switch dt.maxFeatures {
	case "", MaxFeaturesAll, "auto":
	case MaxFeaturesSqrt:
		k = int(math.Sqrt(float64(n)))
	case MaxFeaturesLog2:
		k = int(math.Log2(float64(n)))
	default:
		if _, err := fmt.Sscanf(dt.maxFeatures, "%d", &k); err != nil {
			k = n
		}
	}
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	return k
}

// findBestSplit scans candidate features with a sorted sweep. Features are
// visited in a random order; after the first maxFeatures the search only
// continues while no valid split has been found.
func (dt *DecisionTreeClassifier) findBestSplit(samples []int, parentCounts []int, parentImpurity float64) (int, float64, float64) {
	n := len(samples)
	bestFeature := -1
	bestThreshold := 0.0
	bestImpurityDecrease := 0.0

	features := make([]int, dt.nFeatures_)
	for i := range features {
		features[i] = i
	}
	k := dt.nFeaturesPerSplit()
	if k < dt.nFeatures_ && dt.rng != nil {
		dt.rng.Shuffle(len(features), func(i, j int) { features[i], features[j] = features[j], features[i] })
	}

	order := make([]int, n)
	leftCounts := make([]int, dt.nClasses_)
	rightCounts := make([]int, dt.nClasses_)

	for visited, feature := range features {
		if visited >= k && bestFeature != -1 {
			break
		}

		copy(order, samples)
		sort.SliceStable(order, func(a, b int) bool {
			return dt.x.At(order[a], feature) < dt.x.At(order[b], feature)
		})

		for c := range leftCounts {
			leftCounts[c] = 0
			rightCounts[c] = parentCounts[c]
		}

		for i := 0; i < n-1; i++ {
			cls := dt.y[order[i]]
			leftCounts[cls]++
			rightCounts[cls]--

			v1 := dt.x.At(order[i], feature)
			v2 := dt.x.At(order[i+1], feature)
			if v1 == v2 {
				continue
			}

			nLeft := i + 1
			nRight := n - nLeft
			if nLeft < dt.minSamplesLeaf || nRight < dt.minSamplesLeaf {
				continue
			}

			leftImpurity := dt.calculateImpurity(leftCounts, nLeft)
			rightImpurity := dt.calculateImpurity(rightCounts, nRight)
			weighted := (float64(nLeft)*leftImpurity + float64(nRight)*rightImpurity) / float64(n)
			decrease := parentImpurity - weighted

			if decrease > bestImpurityDecrease {
				bestImpurityDecrease = decrease
				bestFeature = feature
				bestThreshold = (v1 + v2) / 2.0
				// Guard against the midpoint rounding up to v2.
				if bestThreshold >= v2 {
					bestThreshold = v1
				}
			}
		}
	}

	return bestFeature, bestThreshold, bestImpurityDecrease
}

// normalizeFeatureImportances normalizes feature importance scores
func (dt *DecisionTreeClassifier) normalizeFeatureImportances() {
	sum := 0.0
	for _, imp := range dt.featureImportances_ {
		sum += imp
	}
	if sum > 0 {
		for i := range dt.featureImportances_ {
			dt.featureImportances_[i] /= sum
		}
	}
}

func (dt *DecisionTreeClassifier) leaf(row []float64) *TreeNode {
	node := dt.tree_
	for !node.IsLeaf {
		if row[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node
}

func (dt *DecisionTreeClassifier) checkPredict(X mat.Matrix, op string) error {
	if !dt.state.IsFitted() {
		return errors.NewNotFittedError("DecisionTreeClassifier", op)
	}
	if _, c := X.Dims(); c != dt.nFeatures_ {
		return errors.NewDimensionError("DecisionTreeClassifier."+op, dt.nFeatures_, c, 1)
	}
	return nil
}

// Predict makes predictions for input data
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.Predict")
	if err := dt.checkPredict(X, "Predict"); err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	row := make([]float64, dt.nFeatures_)
	for i := 0; i < nSamples; i++ {
		mat.Row(row, i, X)
		predictions.Set(i, 0, float64(dt.classes_[dt.leaf(row).PredictClass]))
	}
	return predictions, nil
}

// PredictProba returns the class fractions of the leaf each row falls into.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (_ *mat.Dense, err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.PredictProba")
	if err := dt.checkPredict(X, "PredictProba"); err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	probas := mat.NewDense(nSamples, dt.nClasses_, nil)
	row := make([]float64, dt.nFeatures_)
	for i := 0; i < nSamples; i++ {
		mat.Row(row, i, X)
		dt.AddProba(row, probas.RawRowView(i), 1.0)
	}
	return probas, nil
}

// AddProba adds scale times the leaf class fractions for row into dst.
// The forest uses it to accumulate votes without allocating per tree.
func (dt *DecisionTreeClassifier) AddProba(row, dst []float64, scale float64) {
	node := dt.leaf(row)
	if node.NSamples == 0 {
		return
	}
	inv := scale / float64(node.NSamples)
	for j, count := range node.ClassCounts {
		dst[j] += float64(count) * inv
	}
}

// Score returns the mean accuracy on the given test data
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	predictions, err := dt.Predict(X)
	if err != nil {
		return 0.0
	}

	nSamples, _ := X.Dims()
	correct := 0
	for i := 0; i < nSamples; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(nSamples)
}

// IsFitted reports whether the tree was grown or imported.
func (dt *DecisionTreeClassifier) IsFitted() bool {
	return dt.state.IsFitted()
}

// Classes returns the class labels in column order.
func (dt *DecisionTreeClassifier) Classes() []int {
	return append([]int(nil), dt.classes_...)
}

// GetFeatureImportances returns normalized impurity-decrease importances.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	if dt.featureImportances_ == nil {
		return nil
	}
	return append([]float64(nil), dt.featureImportances_...)
}

// GetDepth returns the depth of the tree
func (dt *DecisionTreeClassifier) GetDepth() int {
	if dt.tree_ == nil {
		return 0
	}
	return maxDepth(dt.tree_)
}

func maxDepth(node *TreeNode) int {
	if node.IsLeaf {
		return node.Depth
	}
	return max(maxDepth(node.Left), maxDepth(node.Right))
}

// GetNLeaves returns the number of leaf nodes
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	if dt.tree_ == nil {
		return 0
	}
	return countLeaves(dt.tree_)
}

func countLeaves(node *TreeNode) int {
	if node == nil {
		return 0
	}
	if node.IsLeaf {
		return 1
	}
	return countLeaves(node.Left) + countLeaves(node.Right)
}

// DecisionTreeParams is the persisted form of a fitted tree.
type DecisionTreeParams struct {
	Criterion          string    `json:"criterion"`
	MaxDepth           int       `json:"max_depth"`
	MinSamplesSplit    int       `json:"min_samples_split"`
	MinSamplesLeaf     int       `json:"min_samples_leaf"`
	MaxFeatures        string    `json:"max_features"`
	Classes            []int     `json:"classes"`
	NFeatures          int       `json:"n_features"`
	FeatureImportances []float64 `json:"feature_importances"`
	Root               *TreeNode `json:"root"`
}

// Export returns the fitted tree.
func (dt *DecisionTreeClassifier) Export() (*DecisionTreeParams, error) {
	if !dt.state.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeClassifier", "Export")
	}
	return &DecisionTreeParams{
		Criterion:          dt.criterion,
		MaxDepth:           dt.maxDepth,
		MinSamplesSplit:    dt.minSamplesSplit,
		MinSamplesLeaf:     dt.minSamplesLeaf,
		MaxFeatures:        dt.maxFeatures,
		Classes:            dt.Classes(),
		NFeatures:          dt.nFeatures_,
		FeatureImportances: dt.GetFeatureImportances(),
		Root:               dt.tree_,
	}, nil
}

// Import restores a tree exported by Export.
func (dt *DecisionTreeClassifier) Import(p *DecisionTreeParams) error {
	if p == nil || p.Root == nil {
		return errors.NewValueError("DecisionTreeClassifier.Import", "tree cannot be empty")
	}
	if err := validateNode(p.Root, len(p.Classes), p.NFeatures); err != nil {
		return err
	}

	dt.criterion = p.Criterion
	dt.maxDepth = p.MaxDepth
	dt.minSamplesSplit = p.MinSamplesSplit
	dt.minSamplesLeaf = p.MinSamplesLeaf
	dt.maxFeatures = p.MaxFeatures
	dt.classes_ = append([]int(nil), p.Classes...)
	dt.nClasses_ = len(p.Classes)
	dt.nFeatures_ = p.NFeatures
	dt.featureImportances_ = append([]float64(nil), p.FeatureImportances...)
	dt.tree_ = p.Root
	dt.state.SetDimensions(p.NFeatures, p.Root.NSamples)
	dt.state.SetFitted()
	return nil
}

func validateNode(node *TreeNode, nClasses, nFeatures int) error {
	if node.IsLeaf {
		if len(node.ClassCounts) != nClasses {
			return errors.NewDimensionError("DecisionTreeClassifier.Import", nClasses, len(node.ClassCounts), 1)
		}
		return nil
	}
	if node.Left == nil || node.Right == nil || node.Feature < 0 || node.Feature >= nFeatures {
		return errors.NewValueError("DecisionTreeClassifier.Import", "malformed internal node")
	}
	if err := validateNode(node.Left, nClasses, nFeatures); err != nil {
		return err
	}
	return validateNode(node.Right, nClasses, nFeatures)
}
