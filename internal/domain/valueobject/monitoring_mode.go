package valueobject

import (
	"fmt"
	"strings"
)

// MonitoringMode именованный набор проверок
type MonitoringMode string

const (
	ModeQuick       MonitoringMode = "quick"
	ModePerformance MonitoringMode = "performance"
	ModeNetwork     MonitoringMode = "network"
	ModeCompliance  MonitoringMode = "compliance"
	ModeFull        MonitoringMode = "full"
	// ModeCustom набор, собранный вручную из имен проверок
	ModeCustom MonitoringMode = "custom"
)

// ParseMonitoringMode разбирает имя режима. Неизвестные значения отклоняются.
func ParseMonitoringMode(raw string) (MonitoringMode, error) {
	switch m := MonitoringMode(strings.ToLower(strings.TrimSpace(raw))); m {
	case ModeQuick, ModePerformance, ModeNetwork, ModeCompliance, ModeFull, ModeCustom:
		return m, nil
	default:
		return "", fmt.Errorf("unknown monitoring mode %q", raw)
	}
}

// PredefinedModes режимы с фиксированным набором проверок
func PredefinedModes() []MonitoringMode {
	return []MonitoringMode{ModeQuick, ModePerformance, ModeNetwork, ModeCompliance, ModeFull}
}

func (m MonitoringMode) String() string {
	return string(m)
}
