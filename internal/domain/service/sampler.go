package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/entity"
)

// ProbeFunc одно измерение внешнего источника (файл, процесс, сеть, API)
type ProbeFunc func(ctx context.Context) (float64, error)

// Sampler выполняет ограниченную серию наблюдений с фиксированным интервалом (Domain Service)
// Тики выполняются строго последовательно. Отмена контекста учитывается только между тиками.
type Sampler struct {
	probeTimeout time.Duration
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) bool
}

// SamplerOption настраивает Sampler
type SamplerOption func(*Sampler)

// WithProbeTimeout ограничивает время одного вызова пробы
func WithProbeTimeout(d time.Duration) SamplerOption {
	return func(s *Sampler) {
		s.probeTimeout = d
	}
}

// NewSampler создает новый Sampler
func NewSampler(opts ...SamplerOption) *Sampler {
	s := &Sampler{
		now:   time.Now,
		sleep: sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sample вызывает probe tickCount раз с паузой interval между тиками.
// Ошибка пробы превращается в неуспешное наблюдение и не прерывает серию.
// Исключение: ErrAccessDenied прерывает серию с ошибкой ErrCheckFailure.
// При отмене контекста возвращаются уже собранные наблюдения без ошибки.
func (s *Sampler) Sample(ctx context.Context, probe ProbeFunc, tickCount int, interval time.Duration) ([]entity.Observation, error) {
	if probe == nil {
		return nil, fmt.Errorf("%w: probe is nil", ErrInvalidInput)
	}
	if tickCount < 0 {
		return nil, fmt.Errorf("%w: tick count must not be negative, got %d", ErrInvalidInput, tickCount)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("%w: tick interval must be positive, got %s", ErrInvalidInput, interval)
	}

	observations := make([]entity.Observation, 0, tickCount)

	for tick := 1; tick <= tickCount; tick++ {
		if tick > 1 && !s.sleep(ctx, interval) {
			break
		}
		if ctx.Err() != nil {
			break
		}

		obs, fatal := s.observe(ctx, probe, tick)
		observations = append(observations, obs)
		if fatal != nil {
			return observations, fmt.Errorf("%w: tick %d: %w", ErrCheckFailure, tick, fatal)
		}
	}

	return observations, nil
}

// observe возвращает наблюдение и, если источник отказал в доступе, ошибку пробы.
func (s *Sampler) observe(ctx context.Context, probe ProbeFunc, tick int) (entity.Observation, error) {
	// Проба не прерывается отменой прогона, только собственным таймаутом
	probeCtx := context.WithoutCancel(ctx)
	if s.probeTimeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(probeCtx, s.probeTimeout)
		defer cancel()
	}

	ts := s.now()
	value, err := safeProbe(probeCtx, probe)
	if err != nil {
		failure := entity.NewFailureObservation(tick, ts, fmt.Errorf("%w: %v", ErrProbeFailure, err))
		if errors.Is(err, ErrAccessDenied) {
			return failure, err
		}
		return failure, nil
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return entity.NewFailureObservation(tick, ts, fmt.Errorf("%w: non-finite value %v", ErrProbeFailure, value)), nil
	}

	return entity.NewSuccessObservation(tick, ts, value), nil
}

func safeProbe(ctx context.Context, probe ProbeFunc) (value float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("probe panic: %v", r)
		}
	}()
	return probe(ctx)
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
