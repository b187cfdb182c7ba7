package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"go-der-dashboard/internal/model"
)

// WriteFrameCSV writes frame as CSV with an "index" column followed by the frame's columns in lexical order
func WriteFrameCSV(w io.Writer, frame model.ColumnFrame) (int, error) {
	n, err := frame.Len()
	if err != nil {
		return 0, err
	}
	writer := csv.NewWriter(w)

	columns := frame.Columns()
	header := append([]string{"index"}, columns...)
	if err := writer.Write(header); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	for i := 0; i < n; i++ {
		row := make([]string, 0, len(header))
		row = append(row, fmt.Sprintf("%d", i))
		for _, col := range columns {
			row = append(row, formatCell(frame[col][i]))
		}
		if err := writer.Write(row); err != nil {
			return i, fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()
	return n, writer.Error()
}

// WriteGroupsCSV writes aggregated groups, one row per group and one column per metric
func WriteGroupsCSV(w io.Writer, groups []Group) (int, error) {
	writer := csv.NewWriter(w)

	metricKeys := make(map[string]bool)
	for _, g := range groups {
		for key := range g.Metrics {
			metricKeys[key] = true
		}
	}
	metrics := make([]string, 0, len(metricKeys))
	for key := range metricKeys {
		metrics = append(metrics, key)
	}
	sort.Strings(metrics)

	header := append([]string{"group_key", "group_value", "record_count"}, metrics...)
	if err := writer.Write(header); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	for i, g := range groups {
		row := []string{g.GroupKey, formatCell(g.GroupValue), fmt.Sprintf("%d", g.RecordCount)}
		for _, key := range metrics {
			if value, ok := g.Metrics[key]; ok {
				row = append(row, formatCell(value))
			} else {
				row = append(row, "")
			}
		}
		if err := writer.Write(row); err != nil {
			return i, fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()
	return len(groups), writer.Error()
}

func formatCell(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
