package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go-der-dashboard/internal/model"
)

// Group is one bucket of report rows sharing the same GroupBy value
type Group struct {
	GroupKey    string             `json:"groupKey"`
	GroupValue  interface{}        `json:"groupValue"`
	Metrics     map[string]float64 `json:"metrics"`
	RecordCount int                `json:"recordCount"`
}

// Aggregation selects how report rows are bucketed and what is computed per bucket.
// Metrics are any of sum, avg, min, max; count is always reported as RecordCount.
type Aggregation struct {
	GroupBy string
	Metrics []string
}

var knownMetrics = map[string]bool{"sum": true, "avg": true, "average": true, "min": true, "max": true, "count": true}

// Aggregate buckets the rows of frame by GroupBy and computes the requested metrics over every
// other numeric column. An empty GroupBy puts all rows in one bucket.
func Aggregate(frame model.ColumnFrame, agg Aggregation) ([]Group, error) {
	for _, m := range agg.Metrics {
		if !knownMetrics[strings.ToLower(m)] {
			return nil, fmt.Errorf("%w: unknown metric %q", model.ErrInvalidArgument, m)
		}
	}
	if agg.GroupBy != "" {
		if _, ok := frame[agg.GroupBy]; !ok {
			return nil, fmt.Errorf("%w: report has no column %q", model.ErrInvalidArgument, agg.GroupBy)
		}
	}

	records, err := frame.Records()
	if err != nil {
		return nil, err
	}

	groups := make(map[string]*accumulator)
	for _, rec := range records {
		var groupValue interface{} = "all"
		if agg.GroupBy != "" {
			groupValue = rec[agg.GroupBy]
		}
		key := fmt.Sprintf("%v", groupValue)
		acc, ok := groups[key]
		if !ok {
			acc = newAccumulator(agg.GroupBy, groupValue)
			groups[key] = acc
		}
		acc.add(rec)
	}

	out := make([]Group, 0, len(groups))
	for _, acc := range groups {
		out = append(out, acc.result(agg.Metrics))
	}
	SortGroups(out, "group_value", true)
	return out, nil
}

type columnStats struct {
	sum, min, max float64
	count         int
}

type accumulator struct {
	groupBy    string
	groupValue interface{}
	records    int
	columns    map[string]*columnStats
}

func newAccumulator(groupBy string, value interface{}) *accumulator {
	return &accumulator{groupBy: groupBy, groupValue: value, columns: make(map[string]*columnStats)}
}

func (a *accumulator) add(rec model.GenericRecord) {
	a.records++
	for col, v := range rec {
		if col == a.groupBy {
			continue
		}
		num, ok := convertToFloat(v)
		if !ok {
			continue
		}
		st, exists := a.columns[col]
		if !exists {
			a.columns[col] = &columnStats{sum: num, min: num, max: num, count: 1}
			continue
		}
		st.sum += num
		st.count++
		if num < st.min {
			st.min = num
		}
		if num > st.max {
			st.max = num
		}
	}
}

func (a *accumulator) result(metrics []string) Group {
	g := Group{
		GroupKey:    a.groupBy,
		GroupValue:  a.groupValue,
		Metrics:     make(map[string]float64),
		RecordCount: a.records,
	}
	for col, st := range a.columns {
		for _, m := range metrics {
			switch strings.ToLower(m) {
			case "sum":
				g.Metrics["sum_"+col] = st.sum
			case "avg", "average":
				g.Metrics["avg_"+col] = st.sum / float64(st.count)
			case "min":
				g.Metrics["min_"+col] = st.min
			case "max":
				g.Metrics["max_"+col] = st.max
			}
		}
	}
	return g
}

func convertToFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// SortGroups sorts groups by group value, record count or a metric name
func SortGroups(groups []Group, sortBy string, ascending bool) {
	value := func(g Group) interface{} {
		switch sortBy {
		case "group_value":
			return g.GroupValue
		case "record_count":
			return g.RecordCount
		default:
			if m, ok := g.Metrics[sortBy]; ok {
				return m
			}
			return g.GroupValue
		}
	}
	sort.SliceStable(groups, func(i, j int) bool {
		iVal, jVal := value(groups[i]), value(groups[j])
		iFloat, iOk := convertToFloat(iVal)
		jFloat, jOk := convertToFloat(jVal)
		if iOk && jOk {
			if ascending {
				return iFloat < jFloat
			}
			return iFloat > jFloat
		}
		iStr, jStr := fmt.Sprintf("%v", iVal), fmt.Sprintf("%v", jVal)
		if ascending {
			return iStr < jStr
		}
		return iStr > jStr
	})
}
