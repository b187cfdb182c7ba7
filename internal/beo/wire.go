package beo

import (
	"time"

	"go-der-dashboard/internal/model"
	"go-der-dashboard/internal/parsing"
)

// Wire shapes of BEO resources. Field names follow the server's snake_case.

type progressWire struct {
	IsComplete      bool    `json:"is_complete"`
	PercentComplete float64 `json:"percent_complete"`
}

func (p progressWire) model() model.Progress {
	pct := p.PercentComplete
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return model.Progress{IsComplete: p.IsComplete, PercentComplete: pct}
}

type scenarioWire struct {
	ID                 string                 `json:"id"`
	Name               string                 `json:"name"`
	CreatedAt          time.Time              `json:"created_at"`
	DERConfiguration   string                 `json:"der_configuration,omitempty"`
	DERStrategy        string                 `json:"der_strategy,omitempty"`
	MeterGroup         string                 `json:"meter_group,omitempty"`
	MeterCount         int                    `json:"meter_count"`
	ExpectedMeterCount int                    `json:"expected_meter_count"`
	Progress           progressWire           `json:"progress"`
	Report             model.RawColumnFrame   `json:"report,omitempty"`
	ReportSummary      map[string]interface{} `json:"report_summary,omitempty"`
}

func (w scenarioWire) toModel() ([]*model.Scenario, error) {
	s := &model.Scenario{
		ID:                 w.ID,
		Name:               w.Name,
		CreatedAt:          w.CreatedAt,
		DERConfigurationID: w.DERConfiguration,
		DERStrategyID:      w.DERStrategy,
		MeterGroupID:       w.MeterGroup,
		MeterCount:         w.MeterCount,
		ExpectedMeterCount: w.ExpectedMeterCount,
		Progress:           w.Progress.model(),
		ReportSummary:      parsing.CamelizeMap(w.ReportSummary),
	}
	if w.Report != nil {
		frame, err := parsing.Transpose(w.Report)
		if err != nil {
			return nil, err
		}
		s.Report = frame
	}
	return []*model.Scenario{s}, nil
}

type meterGroupWire struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	ObjectType string                 `json:"object_type"`
	CreatedAt  time.Time              `json:"created_at"`
	MeterCount int                    `json:"meter_count"`
	DateRange  []string               `json:"date_range,omitempty"`
	Progress   *progressWire          `json:"progress,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

func (w meterGroupWire) toModel() ([]*model.MeterGroup, error) {
	g := &model.MeterGroup{
		ID:         w.ID,
		Name:       w.Name,
		ObjectType: w.ObjectType,
		CreatedAt:  w.CreatedAt,
		MeterCount: w.MeterCount,
		DateRange:  w.DateRange,
		Metadata:   parsing.CamelizeMap(w.Metadata),
	}
	if w.Progress != nil {
		p := w.Progress.model()
		g.Progress = &p
	}
	return []*model.MeterGroup{g}, nil
}

type ratePlanWire struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Sector      string  `json:"sector"`
	DemandMin   float64 `json:"demand_min"`
	DemandMax   float64 `json:"demand_max"`
	Utility     string  `json:"utility"`
}

func (w ratePlanWire) toModel() ([]*model.RatePlan, error) {
	return []*model.RatePlan{{
		ID:          w.ID,
		Name:        w.Name,
		Description: w.Description,
		Sector:      w.Sector,
		DemandMin:   w.DemandMin,
		DemandMax:   w.DemandMax,
		Utility:     w.Utility,
	}}, nil
}

type derConfigurationWire struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	DERType   string                 `json:"der_type"`
	CreatedAt time.Time              `json:"created_at"`
	Data      map[string]interface{} `json:"data"`
}

func (w derConfigurationWire) toModel() ([]*model.DERConfiguration, error) {
	return []*model.DERConfiguration{{
		ID:        w.ID,
		Name:      w.Name,
		DERType:   w.DERType,
		CreatedAt: w.CreatedAt,
		Data:      parsing.CamelizeMap(w.Data),
	}}, nil
}

type derStrategyWire struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	DERType     string                 `json:"der_type"`
	Description string                 `json:"description"`
	Objective   string                 `json:"objective"`
	CreatedAt   time.Time              `json:"created_at"`
	Data        map[string]interface{} `json:"data"`
}

func (w derStrategyWire) toModel() ([]*model.DERStrategy, error) {
	return []*model.DERStrategy{{
		ID:          w.ID,
		Name:        w.Name,
		DERType:     w.DERType,
		Description: w.Description,
		Objective:   w.Objective,
		CreatedAt:   w.CreatedAt,
		Data:        parsing.CamelizeMap(w.Data),
	}}, nil
}
