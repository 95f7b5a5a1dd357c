package valueobject

import (
	"errors"
	"fmt"
)

// Unit единица измерения порога и наблюдений
type Unit string

const (
	Milliseconds   Unit = "ms"
	Percent        Unit = "%"
	Megabytes      Unit = "MB"
	MegabytesPerS  Unit = "MB/s"
	MegabitsPerS   Unit = "Mbps"
	Count          Unit = "count"
	UnitUnassigned Unit = ""
)

// Validate проверяет, что единица измерения известна
func (u Unit) Validate() error {
	switch u {
	case Milliseconds, Percent, Megabytes, MegabytesPerS, MegabitsPerS, Count:
		return nil
	default:
		return fmt.Errorf("unknown unit %q", string(u))
	}
}

// Format форматирует значение вместе с единицей измерения
func (u Unit) Format(v float64) string {
	if u == Percent {
		return fmt.Sprintf("%.2f%%", v)
	}
	return fmt.Sprintf("%.2f %s", v, string(u))
}

// ParseUnit разбирает единицу измерения из конфигурации
func ParseUnit(raw string) (Unit, error) {
	u := Unit(raw)
	if err := u.Validate(); err != nil {
		return UnitUnassigned, errors.New("invalid unit: " + raw)
	}
	return u, nil
}
