package valueobject

import "fmt"

// Status классификация результата проверки относительно порога
type Status string

const (
	StatusMet      Status = "met"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
	// StatusNoData нет ни одного успешного наблюдения
	StatusNoData Status = "no_data"
	// StatusErrored проверка упала до получения результата
	StatusErrored Status = "errored"
)

func (s Status) String() string {
	return string(s)
}

// IsMet учитывается ли статус как выполненный KPI
func (s Status) IsMet() bool {
	return s == StatusMet
}

// ParseStatus разбирает статус из хранилища
func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusMet, StatusWarning, StatusCritical, StatusNoData, StatusErrored:
		return s, nil
	default:
		return "", fmt.Errorf("unknown check status %q", raw)
	}
}

// OverallStatus итоговое состояние прогона набора проверок
type OverallStatus string

const (
	Healthy         OverallStatus = "healthy"
	OverallWarning  OverallStatus = "warning"
	OverallCritical OverallStatus = "critical"
)

const (
	healthyMetPercent = 80.0
	warningMetPercent = 60.0
)

func (s OverallStatus) String() string {
	return string(s)
}

// OverallFromMetPercent вычисляет итоговое состояние по доле выполненных проверок.
// Границы строгие: ровно 80% это Warning, ровно 60% это Critical.
func OverallFromMetPercent(metPercent float64) OverallStatus {
	switch {
	case metPercent > healthyMetPercent:
		return Healthy
	case metPercent > warningMetPercent:
		return OverallWarning
	default:
		return OverallCritical
	}
}

// ParseOverallStatus разбирает итоговое состояние из хранилища
func ParseOverallStatus(raw string) (OverallStatus, error) {
	switch s := OverallStatus(raw); s {
	case Healthy, OverallWarning, OverallCritical:
		return s, nil
	default:
		return "", fmt.Errorf("unknown overall status %q", raw)
	}
}
