package parsing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-der-dashboard/internal/model"
)

func TestTransposeNumericOrder(t *testing.T) {
	raw := model.RawColumnFrame{
		"col": {"10": "x", "2": "y", "0": "z"},
	}

	frame, err := Transpose(raw)
	require.NoError(t, err)
	assert.Equal(t, model.ColumnFrame{"col": {"z", "y", "x"}}, frame)
}

func TestTransposeEmpty(t *testing.T) {
	frame, err := Transpose(model.RawColumnFrame{})
	require.NoError(t, err)
	assert.Empty(t, frame)
}

func TestTransposeSparseAndAligned(t *testing.T) {
	raw := model.RawColumnFrame{
		"start":         {"7": "2020-01-01T02:00", "3": "2020-01-01T01:00", "100": "2020-01-01T03:00"},
		"kw":            {"100": 3.0, "3": 1.0, "7": 2.0},
		"battery_state": {"3": 0.1, "7": 0.2, "100": 0.3},
	}

	frame, err := Transpose(raw)
	require.NoError(t, err)

	n, err := frame.Len()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []float64{1, 2, 3}, frame.Floats("kw"))

	records, err := frame.Records()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "2020-01-01T01:00", records[0]["start"])
	assert.Equal(t, 0.3, records[2]["battery_state"])
}

func TestTransposeFractionalAndNegativeKeys(t *testing.T) {
	raw := model.RawColumnFrame{"c": {"1.5": "b", "-1": "a", "2": "c"}}

	frame, err := Transpose(raw)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a", "b", "c"}, frame["c"])
}

func TestTransposeMalformedKey(t *testing.T) {
	for _, key := range []string{"abc", "", "NaN", "1a", "Inf", "-Inf", "1e2", "0x10", "+3", ".5"} {
		raw := model.RawColumnFrame{"c": {"0": 1, key: 2}}

		_, err := Transpose(raw)
		assert.ErrorIs(t, err, model.ErrMalformedFrame, "key %q", key)
	}
}

func TestTransposeDuplicateRowIndex(t *testing.T) {
	for _, pair := range [][2]string{{"1", "01"}, {"1", "1.0"}, {"0", "-0"}} {
		raw := model.RawColumnFrame{"c": {pair[0]: "a", pair[1]: "b", "2": "c"}}

		_, err := Transpose(raw)
		assert.ErrorIs(t, err, model.ErrMalformedFrame, "keys %q", pair)
	}
}

func TestRecordsRaggedFrame(t *testing.T) {
	frame := model.ColumnFrame{"a": {1, 2}, "b": {1}}

	_, err := frame.Records()
	assert.ErrorIs(t, err, model.ErrMalformedFrame)
}
