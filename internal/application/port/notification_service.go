package port

import "github.com/dreschagin/dlp-kpi-monitor/internal/application/dto"

// NotificationService определяет интерфейс для отправки уведомлений (Port)
// Реализация будет в Infrastructure слое (WebSocket Hub)
type NotificationService interface {
	// BroadcastCheckResult отправляет результат проверки по мере готовности
	BroadcastCheckResult(result *dto.CheckResultDTO)

	// BroadcastSuiteRun отправляет итог прогона
	BroadcastSuiteRun(run *dto.SuiteRunDTO)

	// ClientCount возвращает количество подключенных клиентов
	ClientCount() int
}
