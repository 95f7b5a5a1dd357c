package http

import (
	"github.com/dreschagin/dlp-kpi-monitor/internal/interfaces/http/middleware"
	"github.com/dreschagin/dlp-kpi-monitor/pkg/config"
)

func middlewareAuth(security config.SecurityConfig) middleware.AuthConfig {
	return middleware.AuthConfig{
		Enabled:     security.AuthEnabled,
		BearerToken: security.AuthToken,
	}
}
