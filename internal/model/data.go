package model

import (
	"fmt"
	"sort"

	"go-der-dashboard/pkg/utils"
)

// GenericRecord is a schema-agnostic row, e.g. one interval of a scenario report
type GenericRecord map[string]interface{}

// PaginationSet is one page of a server listing, normalized for the dashboard
type PaginationSet[T any] struct {
	Count       int  `json:"count"`
	HasNext     bool `json:"hasNext"`
	HasPrevious bool `json:"hasPrevious"`
	Data        []T  `json:"data"`
}

// RawColumnFrame is the server's column-oriented ("pandas") shape:
// column name -> stringified numeric row index -> value. Indices may be sparse.
type RawColumnFrame map[string]map[string]interface{}

// ColumnFrame is a parsed frame: column name -> values ordered by row index
type ColumnFrame map[string][]interface{}

// Columns returns the column names in lexical order
func (f ColumnFrame) Columns() []string {
	cols := make([]string, 0, len(f))
	for c := range f {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// Len returns the row count, or an error when columns disagree on it
func (f ColumnFrame) Len() (int, error) {
	n := -1
	for _, col := range f.Columns() {
		if n == -1 {
			n = len(f[col])
			continue
		}
		if len(f[col]) != n {
			return 0, fmt.Errorf("%w: column %q has %d rows, expected %d", ErrMalformedFrame, col, len(f[col]), n)
		}
	}
	if n == -1 {
		return 0, nil
	}
	return n, nil
}

// Floats coerces a column to float64; non-numeric cells become 0
func (f ColumnFrame) Floats(col string) []float64 {
	values := f[col]
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = utils.Numeric(v)
	}
	return out
}

// Records turns the frame into rows; row i holds the i-th value of every column
func (f ColumnFrame) Records() ([]GenericRecord, error) {
	n, err := f.Len()
	if err != nil {
		return nil, err
	}
	records := make([]GenericRecord, n)
	for i := range records {
		rec := make(GenericRecord, len(f))
		for col, values := range f {
			rec[col] = values[i]
		}
		records[i] = rec
	}
	return records, nil
}
