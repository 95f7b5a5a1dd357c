package port

import "context"

// Probe одно измерение внешнего источника (Port)
// Реализации в Infrastructure слое: процессы, файлы, сеть, журнал событий, compliance API
type Probe interface {
	// Name короткое имя источника для логов
	Name() string

	// Measure выполняет одно измерение и возвращает значение в единицах порога
	Measure(ctx context.Context) (float64, error)
}

// Preflighter проба, которая умеет заранее проверить доступность источника.
// Ошибка Preflight означает, что проверка целиком не может быть выполнена.
type Preflighter interface {
	Preflight(ctx context.Context) error
}

// ProbeFunc адаптер функции к интерфейсу Probe
type ProbeFunc struct {
	ProbeName string
	Fn        func(ctx context.Context) (float64, error)
}

func (p ProbeFunc) Name() string {
	return p.ProbeName
}

func (p ProbeFunc) Measure(ctx context.Context) (float64, error) {
	return p.Fn(ctx)
}
