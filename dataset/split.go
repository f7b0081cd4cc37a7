package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	ojtErrors "github.com/jrmsu/ojtinsight/pkg/errors"
)

// StratifiedSplit returns train and test row indices such that every label
// keeps roughly its share of rows in both parts. Each label contributes
// round(count*testSize) rows to the test part, but never all of its rows.
// Indices are returned in ascending order and depend only on labels,
// testSize and seed.
func StratifiedSplit(labels []string, testSize float64, seed int64) (train, test []int, err error) {
	if len(labels) == 0 {
		return nil, nil, ojtErrors.NewModelError("dataset.StratifiedSplit", "no labels", ojtErrors.ErrEmptyData)
	}
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, ojtErrors.NewValueError("dataset.StratifiedSplit",
			fmt.Sprintf("test size must be in (0, 1), got %v", testSize))
	}

	groups := make(map[string][]int)
	for i, l := range labels {
		groups[l] = append(groups[l], i)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rng := rand.New(rand.NewSource(seed))
	for _, k := range keys {
		idx := groups[k]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

		nTest := int(math.Round(float64(len(idx)) * testSize))
		if nTest >= len(idx) {
			nTest = len(idx) - 1
		}
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}

	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}
