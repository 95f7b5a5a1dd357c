package usecase

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/dto"
	"github.com/dreschagin/dlp-kpi-monitor/internal/application/port"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/service"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
)

// CheckDefinition описание именованной проверки: проба, порог и параметры выборки
type CheckDefinition struct {
	Name      string
	Dimension valueobject.Dimension
	Threshold valueobject.Threshold
	Statistic valueobject.Statistic
	Ticks     int
	Interval  time.Duration
	Probe     port.Probe
	// MissingParams обязательные параметры, которых нет в конфигурации
	MissingParams []string
}

// CheckCatalog реестр проверок и предопределенных режимов.
// Заполняется один раз при старте и далее только читается.
type CheckCatalog struct {
	order       []string
	definitions map[string]CheckDefinition
	modes       map[valueobject.MonitoringMode][]string
}

// NewCheckCatalog создает пустой реестр
func NewCheckCatalog() *CheckCatalog {
	return &CheckCatalog{
		definitions: make(map[string]CheckDefinition),
		modes:       make(map[valueobject.MonitoringMode][]string),
	}
}

// Register добавляет проверку. Повторная регистрация имени запрещена.
func (c *CheckCatalog) Register(def CheckDefinition) error {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return fmt.Errorf("check name is required")
	}
	if _, exists := c.definitions[name]; exists {
		return fmt.Errorf("check %s is already registered", name)
	}
	if def.Threshold.IsZero() {
		return fmt.Errorf("check %s has no threshold", name)
	}
	if def.Statistic == "" {
		def.Statistic = valueobject.StatMean
	}

	def.Name = name
	c.definitions[name] = def
	c.order = append(c.order, name)
	return nil
}

// SetMode задает упорядоченный список проверок режима
func (c *CheckCatalog) SetMode(mode valueobject.MonitoringMode, checks []string) error {
	if mode == valueobject.ModeCustom || mode == valueobject.ModeFull {
		return fmt.Errorf("mode %s cannot be redefined", mode)
	}
	for _, name := range checks {
		if _, ok := c.definitions[name]; !ok {
			return fmt.Errorf("mode %s references unknown check %q", mode, name)
		}
	}
	c.modes[mode] = append([]string(nil), checks...)
	return nil
}

// Lookup возвращает проверку по имени
func (c *CheckCatalog) Lookup(name string) (CheckDefinition, bool) {
	def, ok := c.definitions[name]
	return def, ok
}

// Names возвращает имена проверок в порядке регистрации
func (c *CheckCatalog) Names() []string {
	return append([]string(nil), c.order...)
}

// ModeChecks возвращает проверки режима; full это все зарегистрированные проверки
func (c *CheckCatalog) ModeChecks(mode valueobject.MonitoringMode) ([]string, bool) {
	if mode == valueobject.ModeFull {
		return c.Names(), true
	}
	checks, ok := c.modes[mode]
	if !ok {
		return nil, false
	}
	return append([]string(nil), checks...), true
}

// Resolve превращает режим или явный список имен в упорядоченный набор проверок.
// Явный список имеет приоритет и дает режим custom.
func (c *CheckCatalog) Resolve(rawMode string, names []string) (valueobject.MonitoringMode, []CheckDefinition, error) {
	mode := valueobject.ModeCustom

	if len(names) == 0 {
		parsed, err := valueobject.ParseMonitoringMode(rawMode)
		if err != nil || parsed == valueobject.ModeCustom {
			return "", nil, service.NewOrchestrationError(service.ErrUnknownMode, "%q", rawMode)
		}
		checks, ok := c.ModeChecks(parsed)
		if !ok {
			return "", nil, service.NewOrchestrationError(service.ErrUnknownMode, "%s has no checks configured", parsed)
		}
		mode = parsed
		names = checks
	}

	if len(names) == 0 {
		return "", nil, service.NewOrchestrationError(service.ErrNoChecks, "mode %s", mode)
	}

	defs := make([]CheckDefinition, 0, len(names))
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		def, ok := c.definitions[name]
		if !ok {
			return "", nil, service.NewOrchestrationError(service.ErrUnknownCheck, "%q", name)
		}
		if len(def.MissingParams) > 0 {
			return "", nil, service.NewOrchestrationError(service.ErrMissingParameter,
				"check %s requires %s", name, strings.Join(def.MissingParams, ", "))
		}
		if def.Probe == nil {
			return "", nil, service.NewOrchestrationError(service.ErrMissingParameter, "check %s has no probe", name)
		}
		defs = append(defs, def)
	}

	return mode, defs, nil
}

// Describe возвращает описание проверок для `kpimon list` и API
func (c *CheckCatalog) Describe() []*dto.CheckInfoDTO {
	modesByCheck := make(map[string][]string)
	for mode, checks := range c.modes {
		for _, name := range checks {
			modesByCheck[name] = append(modesByCheck[name], mode.String())
		}
	}

	out := make([]*dto.CheckInfoDTO, 0, len(c.order))
	for _, name := range c.order {
		def := c.definitions[name]
		modes := modesByCheck[name]
		sort.Strings(modes)
		modes = append(modes, valueobject.ModeFull.String())

		out = append(out, &dto.CheckInfoDTO{
			Name:         def.Name,
			Dimension:    def.Dimension.String(),
			Threshold:    def.Threshold.Name(),
			Limit:        def.Threshold.Limit(),
			WarningBound: def.Threshold.WarningBoundary(),
			Direction:    def.Threshold.Direction().String(),
			Unit:         string(def.Threshold.Unit()),
			Statistic:    string(def.Statistic),
			Ticks:        def.Ticks,
			IntervalMS:   def.Interval.Milliseconds(),
			Modes:        modes,
		})
	}
	return out
}
