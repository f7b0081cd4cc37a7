package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	ojtErrors "github.com/jrmsu/ojtinsight/pkg/errors"
)

// naTokens are the cell texts read as missing values.
var naTokens = map[string]bool{
	"": true, "#N/A": true, "#N/A N/A": true, "#NA": true, "-1.#IND": true,
	"-1.#QNAN": true, "-NaN": true, "-nan": true, "1.#IND": true, "1.#QNAN": true,
	"<NA>": true, "N/A": true, "NA": true, "NULL": true, "NaN": true,
	"None": true, "n/a": true, "nan": true, "null": true,
}

// ReadCSVFile reads a CSV file with a header row.
func ReadCSVFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ojtErrors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses CSV with a header row. Column types are inferred: a column
// is numeric when every non-missing cell parses as a float, otherwise all of
// its present cells are kept as text. So "3" stays the string "3" in a column
// that also holds "Good".
func ReadCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ojtErrors.NewModelError("dataset.ReadCSV", "no header row", ojtErrors.ErrEmptyData)
	}
	if err != nil {
		return nil, ojtErrors.Wrap(err, "read header")
	}
	if len(header) > 0 {
		// Excel writes a UTF-8 byte order mark.
		header[0] = trimBOM(header[0])
	}

	var raw [][]string
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ojtErrors.Wrapf(err, "read line %d", line)
		}
		if len(rec) != len(header) {
			return nil, ojtErrors.NewDimensionError("dataset.ReadCSV", len(header), len(rec), 1)
		}
		raw = append(raw, rec)
	}

	numeric := make([]bool, len(header))
	for j := range header {
		numeric[j] = true
		for _, rec := range raw {
			s := rec[j]
			if naTokens[s] {
				continue
			}
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				numeric[j] = false
				break
			}
		}
	}

	rows := make([][]Value, len(raw))
	for i, rec := range raw {
		row := make([]Value, len(header))
		for j, s := range rec {
			switch {
			case naTokens[s]:
				row[j] = NA()
			case numeric[j]:
				f, _ := strconv.ParseFloat(s, 64)
				row[j] = Num(f)
			default:
				row[j] = Str(s)
			}
		}
		rows[i] = row
	}
	return New(header, rows)
}

// WriteCSV writes d with a header row. Missing cells are written empty.
func WriteCSV(w io.Writer, d *Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(d.Columns); err != nil {
		return err
	}
	rec := make([]string, len(d.Columns))
	for _, r := range d.Rows {
		for j, v := range r {
			rec[j] = v.Text()
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func trimBOM(s string) string {
	const bom = "\ufeff"
	if len(s) >= len(bom) && s[:len(bom)] == bom {
		return s[len(bom):]
	}
	return s
}
