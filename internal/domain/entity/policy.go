package entity

import (
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
)

// Workload место применения DLP политики
type Workload string

const (
	WorkloadExchange   Workload = "Exchange"
	WorkloadSharePoint Workload = "SharePoint"
	WorkloadOneDrive   Workload = "OneDriveForBusiness"
	WorkloadTeams      Workload = "Teams"
	WorkloadEndpoint   Workload = "EndpointDevices"
)

// DLPPolicy политика из compliance API
type DLPPolicy struct {
	Name      string
	Mode      valueobject.PolicyMode
	Enabled   bool
	Workloads []Workload
}

// DLPRule правило политики
type DLPRule struct {
	Name                   string
	Policy                 string
	Disabled               bool
	SensitiveInfoTypes     int
	BlockAccess            bool
	NotifyUser             bool
	GenerateIncidentReport bool
}

// AuditRecord запись журнала аудита о срабатывании или операции
type AuditRecord struct {
	ID           string
	Operation    string
	Workload     string
	UserID       string
	PolicyName   string
	CreationTime time.Time
}

// IsActive политика включена и не находится в режиме Disable
func (p DLPPolicy) IsActive() bool {
	return p.Enabled && p.Mode.IsActive()
}

// CoversEndpoint применяется ли политика к конечным устройствам
func (p DLPPolicy) CoversEndpoint() bool {
	for _, w := range p.Workloads {
		if w == WorkloadEndpoint {
			return true
		}
	}
	return false
}
