package dto

// CheckInfoDTO описание зарегистрированной проверки для `kpimon list` и API
type CheckInfoDTO struct {
	Name         string   `json:"name"`
	Dimension    string   `json:"dimension"`
	Threshold    string   `json:"threshold"`
	Limit        float64  `json:"limit"`
	WarningBound float64  `json:"warning_bound"`
	Direction    string   `json:"direction"`
	Unit         string   `json:"unit"`
	Statistic    string   `json:"statistic"`
	Ticks        int      `json:"ticks"`
	IntervalMS   int64    `json:"interval_ms"`
	Modes        []string `json:"modes,omitempty"`
}
