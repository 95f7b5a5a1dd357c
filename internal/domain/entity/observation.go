package entity

import (
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
)

// Observation одно измерение пробы на конкретном тике (Value Object)
// Иммутабельно. Неуспешное наблюдение не содержит значения.
type Observation struct {
	tick      int
	timestamp time.Time
	value     float64
	outcome   valueobject.Outcome
	err       string
}

// NewSuccessObservation создает успешное наблюдение
func NewSuccessObservation(tick int, ts time.Time, value float64) Observation {
	return Observation{
		tick:      tick,
		timestamp: ts,
		value:     value,
		outcome:   valueobject.Success,
	}
}

// NewFailureObservation создает наблюдение о сбое пробы
func NewFailureObservation(tick int, ts time.Time, err error) Observation {
	o := Observation{
		tick:      tick,
		timestamp: ts,
		outcome:   valueobject.Failure,
	}
	if err != nil {
		o.err = err.Error()
	}
	return o
}

// Tick порядковый номер тика, начиная с 1
func (o Observation) Tick() int {
	return o.tick
}

func (o Observation) Timestamp() time.Time {
	return o.timestamp
}

// Value возвращает значение и признак его наличия
func (o Observation) Value() (float64, bool) {
	if o.outcome != valueobject.Success {
		return 0, false
	}
	return o.value, true
}

func (o Observation) Outcome() valueobject.Outcome {
	return o.outcome
}

// Err текст ошибки пробы, пустой для успешных наблюдений
func (o Observation) Err() string {
	return o.err
}

// IsSuccess проверяет исход наблюдения
func (o Observation) IsSuccess() bool {
	return o.outcome == valueobject.Success
}
