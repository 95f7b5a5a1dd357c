package service

import (
	"errors"
	"fmt"

	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
)

// ThresholdValidator проверяет таблицу порогов при старте процесса (Domain Service)
type ThresholdValidator struct{}

// NewThresholdValidator создает новый ThresholdValidator
func NewThresholdValidator() *ThresholdValidator {
	return &ThresholdValidator{}
}

// Validate выполняет полную валидацию порога для заданного направления
func (v *ThresholdValidator) Validate(dim valueobject.Dimension, t valueobject.Threshold) error {
	if t.IsZero() {
		return errors.New("threshold cannot be empty")
	}

	if err := dim.Validate(); err != nil {
		return fmt.Errorf("threshold %s: %w", t.Name(), err)
	}

	// Процентные пороги не могут быть больше 100
	if t.Unit() == valueobject.Percent && t.Limit() > 100 {
		return fmt.Errorf("threshold %s: percent limit above 100", t.Name())
	}

	return v.ValidateUnit(dim, t.Unit())
}

// ValidateUnit проверяет, соответствует ли единица измерения направлению
func (v *ThresholdValidator) ValidateUnit(dim valueobject.Dimension, unit valueobject.Unit) error {
	validUnits := map[valueobject.Dimension][]valueobject.Unit{
		valueobject.CPU:         {valueobject.Percent},
		valueobject.Memory:      {valueobject.Percent, valueobject.Megabytes},
		valueobject.Disk:        {valueobject.Percent, valueobject.MegabytesPerS},
		valueobject.Network:     {valueobject.Milliseconds, valueobject.MegabitsPerS, valueobject.Percent},
		valueobject.FileLatency: {valueobject.Milliseconds},
		valueobject.Policy:      {valueobject.Percent, valueobject.Count},
		valueobject.EventLog:    {valueobject.Percent, valueobject.Count},
	}

	allowed, exists := validUnits[dim]
	if !exists {
		return fmt.Errorf("unknown dimension %q", dim)
	}

	for _, u := range allowed {
		if unit == u {
			return nil
		}
	}

	return fmt.Errorf("unit %q is not valid for dimension %s", unit, dim)
}

// ThresholdBinding порог вместе с направлением, к которому он привязан
type ThresholdBinding struct {
	Dimension valueobject.Dimension
	Threshold valueobject.Threshold
}

// ValidateBatch валидирует таблицу порогов и возвращает все найденные ошибки
func (v *ThresholdValidator) ValidateBatch(bindings []ThresholdBinding) []error {
	var errs []error
	seen := make(map[string]struct{}, len(bindings))

	for i, b := range bindings {
		if err := v.Validate(b.Dimension, b.Threshold); err != nil {
			errs = append(errs, fmt.Errorf("threshold #%d: %w", i+1, err))
			continue
		}
		if _, dup := seen[b.Threshold.Name()]; dup {
			errs = append(errs, fmt.Errorf("threshold #%d: duplicate name %s", i+1, b.Threshold.Name()))
		}
		seen[b.Threshold.Name()] = struct{}{}
	}

	return errs
}
