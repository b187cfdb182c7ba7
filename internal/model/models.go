package model

import "time"

// Scenario is a DER simulation study run by the BEO against a meter group
type Scenario struct {
	ID                 string                 `json:"id"`
	Name               string                 `json:"name"`
	CreatedAt          time.Time              `json:"createdAt"`
	DERConfigurationID string                 `json:"derConfigurationId,omitempty"`
	DERStrategyID      string                 `json:"derStrategyId,omitempty"`
	MeterGroupID       string                 `json:"meterGroupId,omitempty"`
	MeterCount         int                    `json:"meterCount"`
	ExpectedMeterCount int                    `json:"expectedMeterCount"`
	Progress           Progress               `json:"progress"`
	Report             ColumnFrame            `json:"report,omitempty"`
	ReportSummary      map[string]interface{} `json:"reportSummary,omitempty"`
}

func (s *Scenario) EntityID() string        { return s.ID }
func (s *Scenario) EntityType() Type        { return TypeScenario }
func (s *Scenario) ProgressState() Progress { return s.Progress }
func (s *Scenario) SetProgress(p Progress)  { s.Progress = p }

// MeterGroup is a set of meters, either an uploaded origin file or a derived cluster.
// Only origin files carry ingestion progress.
type MeterGroup struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	ObjectType string                 `json:"objectType"` // "OriginFile" or "CustomerCluster"
	CreatedAt  time.Time              `json:"createdAt"`
	MeterCount int                    `json:"meterCount"`
	DateRange  []string               `json:"dateRange,omitempty"`
	Progress   *Progress              `json:"progress,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

func (m *MeterGroup) EntityID() string { return m.ID }
func (m *MeterGroup) EntityType() Type { return TypeMeterGroup }

// ProgressState treats groups without ingestion progress as complete
func (m *MeterGroup) ProgressState() Progress {
	if m.Progress == nil {
		return Progress{IsComplete: true, PercentComplete: 100}
	}
	return *m.Progress
}

func (m *MeterGroup) SetProgress(p Progress) { m.Progress = &p }

// RatePlan is a utility tariff used to cost a scenario
type RatePlan struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Sector      string  `json:"sector,omitempty"`
	DemandMin   float64 `json:"demandMin,omitempty"`
	DemandMax   float64 `json:"demandMax,omitempty"`
	Utility     string  `json:"utility,omitempty"`
}

func (r *RatePlan) EntityID() string { return r.ID }
func (r *RatePlan) EntityType() Type { return TypeRatePlan }

// DERConfiguration describes the hardware of a DER (battery size, PV capacity, ...)
type DERConfiguration struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	DERType   string                 `json:"derType"`
	CreatedAt time.Time              `json:"createdAt"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

func (c *DERConfiguration) EntityID() string { return c.ID }
func (c *DERConfiguration) EntityType() Type { return TypeDERConfiguration }

// DERStrategy describes how a DER is operated (charge/discharge schedule, objective)
type DERStrategy struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	DERType     string                 `json:"derType"`
	Description string                 `json:"description,omitempty"`
	Objective   string                 `json:"objective,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

func (s *DERStrategy) EntityID() string { return s.ID }
func (s *DERStrategy) EntityType() Type { return TypeDERStrategy }

// Renamable is implemented by entities the dashboard lets users rename
type Renamable interface {
	Entity
	SetName(name string)
	GetName() string
}

func (s *Scenario) SetName(name string)   { s.Name = name }
func (s *Scenario) GetName() string       { return s.Name }
func (m *MeterGroup) SetName(name string) { m.Name = name }
func (m *MeterGroup) GetName() string     { return m.Name }
