package workflows

import "omrflow/internal/ingest"

type CycleInput struct {
	// Archive moves committed sheets to the processed folder.
	Archive bool `json:"archive"`
}

type MonitorInput struct {
	IntervalMinutes int  `json:"interval_minutes"`
	Archive         bool `json:"archive"`

	// MaxCycles stops the monitor after that many cycles; 0 runs until
	// cancelled. Cycles is carried across continue-as-new.
	MaxCycles int `json:"max_cycles,omitempty"`
	Cycles    int `json:"cycles,omitempty"`
}

type CycleProgress struct {
	RunID     string            `json:"run_id"`
	Total     int               `json:"total"`
	Done      int               `json:"done"`
	Failed    int               `json:"failed"`
	Current   string            `json:"current,omitempty"`
	PerSheet  map[string]string `json:"per_sheet"`
	LastError string            `json:"last_error,omitempty"`
}

type MonitorProgress struct {
	Cycles     int                `json:"cycles"`
	LastReport ingest.CycleReport `json:"last_report"`
	LastError  string             `json:"last_error,omitempty"`
}
