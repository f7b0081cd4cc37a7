package features

type options struct {
	sortedOrdinals bool
	target         string
	features       []string
}

// Option configures ConvertCategorical and Preprocessor.
type Option func(*options)

// WithSortedOrdinals orders a column's distinct values lexicographically
// before assigning ordinal fallback scores, instead of first-seen order.
func WithSortedOrdinals() Option {
	return func(o *options) { o.sortedOrdinals = true }
}

// WithTarget skips target detection.
func WithTarget(name string) Option {
	return func(o *options) { o.target = name }
}

// WithFeatures skips feature detection.
func WithFeatures(names ...string) Option {
	return func(o *options) { o.features = append([]string(nil), names...) }
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
