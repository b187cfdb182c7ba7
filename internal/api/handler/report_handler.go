package handler

import (
	"fmt"
	"net/http"

	"go-der-dashboard/internal/model"
	"go-der-dashboard/internal/parsing"
	"go-der-dashboard/internal/report"
	"go-der-dashboard/pkg/router"
	"go-der-dashboard/pkg/utils"
)

// fetchReport loads a scenario with its report from the BEO and keeps it in the store
func (h *Handler) fetchReport(r *http.Request) (*model.Scenario, error) {
	id := router.Param(r, 0)
	if id == "" {
		return nil, fmt.Errorf("%w: scenario id is required", model.ErrInvalidArgument)
	}
	s, err := h.BEO.ScenarioReport(beoContext(r), id)
	if err != nil {
		return nil, err
	}
	if err := h.Store.UpsertOne(s); err != nil {
		return nil, err
	}
	return s, nil
}

func aggregationFrom(r *http.Request) (report.Aggregation, bool) {
	q := r.URL.Query()
	agg := report.Aggregation{
		GroupBy: q.Get("group_by"),
		Metrics: utils.SplitList(q.Get("metrics")),
	}
	return agg, agg.GroupBy != "" || len(agg.Metrics) > 0
}

// GetScenarioReport returns a scenario's report as rows, or aggregated when asked to
// @Summary Get scenario report
// @Description Fetch the scenario report from the BEO. With group_by or metrics the rows are aggregated.
// @Tags reports
// @Produce json
// @Param id path string true "Scenario ID"
// @Param group_by query string false "Column to group rows by"
// @Param metrics query string false "Comma separated metrics: sum, avg, min, max"
// @Param transform query string false "Comma separated row transformations: camelizeKeys, trimStrings, removeNulls"
// @Success 200 {object} map[string]interface{} "Report"
// @Failure 400 {object} map[string]interface{} "Malformed report or invalid aggregation"
// @Failure 404 {object} map[string]interface{} "Scenario not found"
// @Failure 502 {object} map[string]interface{} "BEO unavailable"
// @Router /scenarios/{id}/report [get]
func (h *Handler) GetScenarioReport(w http.ResponseWriter, r *http.Request) {
	s, err := h.fetchReport(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if agg, ok := aggregationFrom(r); ok {
		groups, err := report.Aggregate(s.Report, agg)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id":      s.ID,
			"groups":  groups,
			"count":   len(groups),
			"summary": s.ReportSummary,
		})
		return
	}

	rows, err := s.Report.Records()
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %v", model.ErrInvalidArgument, err))
		return
	}
	if transforms := utils.SplitList(r.URL.Query().Get("transform")); len(transforms) > 0 {
		for i, row := range rows {
			if rows[i], err = parsing.ApplyTransformations(row, transforms...); err != nil {
				h.writeError(w, r, err)
				return
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":      s.ID,
		"columns": s.Report.Columns(),
		"rows":    rows,
		"count":   len(rows),
		"summary": s.ReportSummary,
	})
}

// DownloadScenarioReport serves a scenario's report as CSV
// @Summary Download scenario report
// @Tags reports
// @Produce text/csv
// @Param id path string true "Scenario ID"
// @Param group_by query string false "Column to group rows by"
// @Param metrics query string false "Comma separated metrics: sum, avg, min, max"
// @Success 200 {file} file "CSV report"
// @Failure 404 {object} map[string]interface{} "Scenario not found"
// @Router /scenarios/{id}/report.csv [get]
func (h *Handler) DownloadScenarioReport(w http.ResponseWriter, r *http.Request) {
	s, err := h.fetchReport(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var groups []report.Group
	if agg, ok := aggregationFrom(r); ok {
		if groups, err = report.Aggregate(s.Report, agg); err != nil {
			h.writeError(w, r, err)
			return
		}
	} else if _, err := s.Report.Len(); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %v", model.ErrInvalidArgument, err))
		return
	}

	fileName := fmt.Sprintf("scenario_%s_report.csv", s.ID)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", fileName))
	w.Header().Set("Content-Type", "text/csv")

	if groups != nil {
		_, err = report.WriteGroupsCSV(w, groups)
	} else {
		_, err = report.WriteFrameCSV(w, s.Report)
	}
	if err != nil {
		h.logger().Warnw("Writing CSV report failed", "scenario", s.ID, "error", err)
	}
}
