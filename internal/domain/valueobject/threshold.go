package valueobject

import (
	"errors"
	"fmt"
)

const (
	// DefaultWarningMultiplier граница Warning/Critical для LessThanIsGood
	DefaultWarningMultiplier = 2.0
	// GreaterThanWarningRatio граница Warning/Critical для GreaterThanIsGood
	GreaterThanWarningRatio = 0.8
)

// Threshold именованное правило сравнения (Value Object)
// Иммутабельный объект, создается один раз при старте процесса
type Threshold struct {
	name              string
	limit             float64
	direction         Direction
	warningMultiplier float64
	unit              Unit
}

// NewThreshold создает порог с валидацией. warningMultiplier <= 0 заменяется значением по умолчанию.
func NewThreshold(name string, limit float64, direction Direction, warningMultiplier float64, unit Unit) (Threshold, error) {
	if name == "" {
		return Threshold{}, errors.New("threshold name cannot be empty")
	}
	if limit <= 0 {
		return Threshold{}, fmt.Errorf("threshold %s: limit must be positive, got %v", name, limit)
	}
	if direction != LessThanIsGood && direction != GreaterThanIsGood {
		return Threshold{}, fmt.Errorf("threshold %s: unknown direction %q", name, direction)
	}
	if warningMultiplier <= 0 {
		warningMultiplier = DefaultWarningMultiplier
	}
	if direction == LessThanIsGood && warningMultiplier <= 1 {
		return Threshold{}, fmt.Errorf("threshold %s: warning multiplier must be greater than 1", name)
	}

	return Threshold{
		name:              name,
		limit:             limit,
		direction:         direction,
		warningMultiplier: warningMultiplier,
		unit:              unit,
	}, nil
}

// MustThreshold используется для встроенной таблицы порогов
func MustThreshold(name string, limit float64, direction Direction, unit Unit) Threshold {
	t, err := NewThreshold(name, limit, direction, DefaultWarningMultiplier, unit)
	if err != nil {
		panic(err)
	}
	return t
}

func (t Threshold) Name() string {
	return t.name
}

func (t Threshold) Limit() float64 {
	return t.limit
}

func (t Threshold) Direction() Direction {
	return t.direction
}

func (t Threshold) WarningMultiplier() float64 {
	return t.warningMultiplier
}

func (t Threshold) Unit() Unit {
	return t.unit
}

// WarningBoundary граница между Warning и Critical
func (t Threshold) WarningBoundary() float64 {
	if t.direction == GreaterThanIsGood {
		return t.limit * GreaterThanWarningRatio
	}
	return t.limit * t.warningMultiplier
}

// IsZero true для неинициализированного порога
func (t Threshold) IsZero() bool {
	return t.name == ""
}

// String возвращает строковое представление
func (t Threshold) String() string {
	op := "<"
	if t.direction == GreaterThanIsGood {
		op = ">"
	}
	return fmt.Sprintf("%s %s %s", t.name, op, t.unit.Format(t.limit))
}
