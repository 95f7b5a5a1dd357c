package valueobject

import (
	"fmt"
	"strings"
)

// PolicyMode режим работы DLP политики или правила (закрытое перечисление)
type PolicyMode string

const (
	PolicyEnable                   PolicyMode = "Enable"
	PolicyTestWithNotifications    PolicyMode = "TestWithNotifications"
	PolicyTest                     PolicyMode = "Test"
	PolicyTestWithoutNotifications PolicyMode = "TestWithoutNotifications"
	PolicyDisable                  PolicyMode = "Disable"
)

// ParsePolicyMode разбирает режим политики. Неизвестные значения отклоняются.
func ParsePolicyMode(raw string) (PolicyMode, error) {
	for _, m := range AllPolicyModes() {
		if strings.EqualFold(strings.TrimSpace(raw), string(m)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown policy mode %q", raw)
}

// AllPolicyModes возвращает все режимы
func AllPolicyModes() []PolicyMode {
	return []PolicyMode{
		PolicyEnable,
		PolicyTestWithNotifications,
		PolicyTest,
		PolicyTestWithoutNotifications,
		PolicyDisable,
	}
}

// IsActive политика в этом режиме обрабатывает операции
func (m PolicyMode) IsActive() bool {
	return m != PolicyDisable
}

// IsEnforcing политика применяет действия, а не только аудит
func (m PolicyMode) IsEnforcing() bool {
	return m == PolicyEnable
}

func (m PolicyMode) String() string {
	return string(m)
}
