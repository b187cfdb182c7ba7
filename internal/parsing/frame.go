package parsing

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"go-der-dashboard/internal/model"
)

type indexedValue struct {
	index float64
	value interface{}
}

// Row keys are plain decimals: an optional sign, digits, an optional fraction.
var indexKey = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

func parseIndex(key string) (float64, bool) {
	if !indexKey.MatchString(key) {
		return 0, false
	}
	idx, err := strconv.ParseFloat(key, 64)
	return idx, err == nil
}

// Transpose turns a raw column frame into ordered columns.
// Each column is ordered by the numeric value of its row keys, so "2" comes before "10".
// Gaps in the index are allowed and only affect order. A key that is not a plain
// decimal, or two keys naming the same row ("1" and "01"), fail the whole frame.
func Transpose(raw model.RawColumnFrame) (model.ColumnFrame, error) {
	out := make(model.ColumnFrame, len(raw))
	for col, cells := range raw {
		indexed := make([]indexedValue, 0, len(cells))
		seen := make(map[float64]string, len(cells))
		for key, v := range cells {
			idx, ok := parseIndex(key)
			if !ok {
				return nil, fmt.Errorf("%w: column %q has non-numeric index %q", model.ErrMalformedFrame, col, key)
			}
			if other, dup := seen[idx]; dup {
				return nil, fmt.Errorf("%w: column %q has indices %q and %q for the same row", model.ErrMalformedFrame, col, other, key)
			}
			seen[idx] = key
			indexed = append(indexed, indexedValue{index: idx, value: v})
		}
		sort.Slice(indexed, func(i, j int) bool {
			return indexed[i].index < indexed[j].index
		})

		values := make([]interface{}, len(indexed))
		for i, iv := range indexed {
			values[i] = iv.value
		}
		out[col] = values
	}
	return out, nil
}
