// Package dataset holds the tabular training data: ordered columns of
// cells that are either missing, numeric or text.
package dataset

import (
	"fmt"
	"math"
	"strconv"

	ojtErrors "github.com/jrmsu/ojtinsight/pkg/errors"
)

// Kind is the type of a cell.
type Kind uint8

const (
	Missing Kind = iota
	Number
	String
)

func (k Kind) String() string {
	switch k {
	case Number:
		return "number"
	case String:
		return "string"
	default:
		return "missing"
	}
}

// Value is a single cell.
type Value struct {
	Kind Kind
	Num  float64
	Str  string
}

// NA returns a missing cell.
func NA() Value { return Value{} }

// Num returns a numeric cell. NaN is stored as missing.
func Num(f float64) Value {
	if math.IsNaN(f) {
		return Value{}
	}
	return Value{Kind: Number, Num: f}
}

// Str returns a text cell.
func Str(s string) Value { return Value{Kind: String, Str: s} }

// IsMissing reports whether the cell holds no value.
func (v Value) IsMissing() bool { return v.Kind == Missing }

// Text renders the cell the way it would appear in a CSV file. Missing cells
// render as the empty string.
func (v Value) Text() string {
	switch v.Kind {
	case Number:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case String:
		return v.Str
	default:
		return ""
	}
}

func (v Value) String() string {
	if v.Kind == Missing {
		return "NA"
	}
	return v.Text()
}

// Dataset is an ordered set of named columns over ordered rows. Every row has
// exactly len(Columns) cells.
type Dataset struct {
	Columns []string
	Rows    [][]Value
}

// New builds a Dataset, checking that column names are distinct and that
// every row has one cell per column.
func New(columns []string, rows [][]Value) (*Dataset, error) {
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if seen[c] {
			return nil, ojtErrors.NewValueError("dataset.New", fmt.Sprintf("duplicate column %q", c))
		}
		seen[c] = true
	}
	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, ojtErrors.NewDimensionError(fmt.Sprintf("dataset.New(row %d)", i), len(columns), len(r), 1)
		}
	}
	return &Dataset{Columns: columns, Rows: rows}, nil
}

// NRows returns the number of rows.
func (d *Dataset) NRows() int { return len(d.Rows) }

// Index returns the position of the named column, or -1.
func (d *Dataset) Index(name string) int {
	for i, c := range d.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of the named column's cells.
func (d *Dataset) Column(name string) ([]Value, error) {
	j := d.Index(name)
	if j < 0 {
		return nil, ojtErrors.Wrapf(ojtErrors.ErrMissingFeature, "column %q", name)
	}
	out := make([]Value, len(d.Rows))
	for i, r := range d.Rows {
		out[i] = r[j]
	}
	return out, nil
}

// IsNumeric reports whether every present cell of column j is a number. A
// column with no present cells counts as numeric.
func (d *Dataset) IsNumeric(j int) bool {
	for _, r := range d.Rows {
		if r[j].Kind == String {
			return false
		}
	}
	return true
}

// Distinct returns the distinct present values of column j in first-seen
// order, rendered as text.
func (d *Dataset) Distinct(j int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range d.Rows {
		if r[j].IsMissing() {
			continue
		}
		s := r[j].Text()
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Clone returns a deep copy.
func (d *Dataset) Clone() *Dataset {
	rows := make([][]Value, len(d.Rows))
	for i, r := range d.Rows {
		rows[i] = append([]Value(nil), r...)
	}
	return &Dataset{Columns: append([]string(nil), d.Columns...), Rows: rows}
}

// Subset returns a new Dataset holding the given rows in the given order.
// Rows are copied.
func (d *Dataset) Subset(indices []int) *Dataset {
	rows := make([][]Value, len(indices))
	for i, idx := range indices {
		rows[i] = append([]Value(nil), d.Rows[idx]...)
	}
	return &Dataset{Columns: append([]string(nil), d.Columns...), Rows: rows}
}
