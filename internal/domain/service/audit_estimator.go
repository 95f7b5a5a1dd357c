package service

import (
	"fmt"
	"math"
	"sort"

	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/entity"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
)

// Оценка активности аудита по конфигурации правил, когда поиск в журнале аудита недоступен.
// Результат это эвристика, а не измерение, и в конвейер Sampler не попадает.

// Базовое число операций на пользователя в день для каждого места применения
var workloadDailyOpsPerUser = map[entity.Workload]float64{
	entity.WorkloadExchange:   25,
	entity.WorkloadSharePoint: 8,
	entity.WorkloadOneDrive:   6,
	entity.WorkloadTeams:      40,
	entity.WorkloadEndpoint:   60,
}

const unknownWorkloadOpsPerUser = 3

// Доля операций, попадающих в аудит, по режиму политики
var modeAuditFactor = map[valueobject.PolicyMode]float64{
	valueobject.PolicyEnable:                   1.0,
	valueobject.PolicyTestWithNotifications:    0.8,
	valueobject.PolicyTest:                     0.6,
	valueobject.PolicyTestWithoutNotifications: 0.6,
	valueobject.PolicyDisable:                  0,
}

const (
	// базовая доля срабатываний правила на проверенную операцию
	baseMatchRate = 0.02
	// прибавка к доле срабатываний за каждый тип конфиденциальных данных
	perSensitiveTypeMatchRate = 0.005
	maxRuleMatchRate          = 0.10
)

// Confidence уровень доверия к оценке
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
)

// AuditEstimateInput входные данные оценки
type AuditEstimateInput struct {
	Policies  []entity.DLPPolicy
	Rules     []entity.DLPRule
	UserCount int
}

// PolicyEstimate оценка по одной политике
type PolicyEstimate struct {
	Policy          string
	Mode            valueobject.PolicyMode
	ActiveRules     int
	DailyOperations float64
	DailyMatches    float64
}

// AuditEstimate результат оценки. IsEstimate всегда true.
type AuditEstimate struct {
	IsEstimate      bool
	Confidence      Confidence
	DailyOperations float64
	DailyMatches    float64
	MatchPercent    float64
	Policies        []PolicyEstimate
}

// AuditActivityEstimator изолированная эвристика с документированными весами
type AuditActivityEstimator struct{}

// NewAuditActivityEstimator создает новый AuditActivityEstimator
func NewAuditActivityEstimator() *AuditActivityEstimator {
	return &AuditActivityEstimator{}
}

// Estimate оценивает дневное число проверенных операций и срабатываний
func (e *AuditActivityEstimator) Estimate(in AuditEstimateInput) (AuditEstimate, error) {
	if in.UserCount <= 0 {
		return AuditEstimate{}, fmt.Errorf("%w: user count must be positive", ErrInvalidInput)
	}

	rulesByPolicy := make(map[string][]entity.DLPRule)
	for _, r := range in.Rules {
		if r.Disabled {
			continue
		}
		rulesByPolicy[r.Policy] = append(rulesByPolicy[r.Policy], r)
	}

	est := AuditEstimate{IsEstimate: true, Confidence: ConfidenceLow}
	users := float64(in.UserCount)

	for _, p := range in.Policies {
		if !p.IsActive() {
			continue
		}
		rules := rulesByPolicy[p.Name]
		if len(rules) == 0 {
			continue
		}

		var opsPerUser float64
		for _, w := range p.Workloads {
			if v, ok := workloadDailyOpsPerUser[w]; ok {
				opsPerUser += v
			} else {
				opsPerUser += unknownWorkloadOpsPerUser
			}
		}

		ops := opsPerUser * users * modeAuditFactor[p.Mode]
		var matches float64
		for _, r := range rules {
			rate := math.Min(baseMatchRate+perSensitiveTypeMatchRate*float64(r.SensitiveInfoTypes), maxRuleMatchRate)
			matches += ops * rate
		}
		// срабатывание нескольких правил одной политики на одну операцию не превышает числа операций
		matches = math.Min(matches, ops)

		est.Policies = append(est.Policies, PolicyEstimate{
			Policy:          p.Name,
			Mode:            p.Mode,
			ActiveRules:     len(rules),
			DailyOperations: ops,
			DailyMatches:    matches,
		})
		est.DailyOperations += ops
		est.DailyMatches += matches
	}

	if est.DailyOperations > 0 {
		est.MatchPercent = est.DailyMatches / est.DailyOperations * 100
	}
	if len(est.Policies) >= 3 {
		est.Confidence = ConfidenceMedium
	}

	sort.Slice(est.Policies, func(i, j int) bool {
		return est.Policies[i].DailyOperations > est.Policies[j].DailyOperations
	})

	return est, nil
}
