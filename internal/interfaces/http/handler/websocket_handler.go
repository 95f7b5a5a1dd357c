package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/usecase"
	wsInfra "github.com/dreschagin/dlp-kpi-monitor/internal/infrastructure/notification/websocket"
	"github.com/dreschagin/dlp-kpi-monitor/internal/interfaces/http/middleware"
	"github.com/dreschagin/dlp-kpi-monitor/pkg/logger"
	"github.com/gorilla/websocket"
)

const snapshotTimeout = 2 * time.Second

// CheckLookup проверяет имена проверок из подписки
type CheckLookup interface {
	Lookup(name string) (usecase.CheckDefinition, bool)
}

// WebSocketHandler подключает клиентов живой ленты результатов.
// GET /ws?checks=agent-cpu,system-cpu&status=critical,warning
type WebSocketHandler struct {
	hub      *wsInfra.Hub
	checks   CheckLookup
	history  RunHistoryReader
	origins  originPolicy
	auth     middleware.AuthConfig
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

// NewWebSocketHandler создает новый handler. history может быть nil (без БД).
func NewWebSocketHandler(
	hub *wsInfra.Hub,
	checks CheckLookup,
	history RunHistoryReader,
	allowedOrigins []string,
	auth middleware.AuthConfig,
	logger *logger.Logger,
) *WebSocketHandler {
	h := &WebSocketHandler{
		hub:     hub,
		checks:  checks,
		history: history,
		origins: newOriginPolicy(allowedOrigins),
		auth:    auth,
		logger:  logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.origins.allow,
	}
	return h
}

// HandleConnection проверяет доступ и подписку, затем переключает протокол
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	if err := middleware.ValidateRequestAuth(r, h.auth); err != nil {
		h.logger.Warn("WebSocket unauthorized", "remote_addr", r.RemoteAddr)
		middleware.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	// 1. Подписка проверяется до upgrade, чтобы ответить обычным 400
	sub, err := h.subscription(r.URL.Query())
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrader уже записал ответ
		h.logger.Warn("WebSocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	client, err := wsInfra.NewClient(h.hub, conn, sub, h.logger)
	if err != nil {
		_ = conn.Close()
		return
	}
	h.hub.Register(client)
	h.logger.Debug("WebSocket client connected",
		"remote_addr", r.RemoteAddr,
		"checks", sub.Checks,
		"statuses", sub.Statuses,
	)

	// 2. Последний прогон, чтобы дашборд не ждал следующего расписания
	h.sendSnapshot(r.Context(), client)

	go client.WritePump()
	go client.ReadPump()
}

func (h *WebSocketHandler) subscription(q url.Values) (wsInfra.Subscription, error) {
	sub, err := wsInfra.ParseSubscription(q.Get("checks"), q.Get("status"))
	if err != nil {
		return sub, err
	}
	if h.checks == nil {
		return sub, nil
	}
	for _, name := range sub.Checks {
		if _, ok := h.checks.Lookup(name); !ok {
			return sub, fmt.Errorf("unknown check %q", name)
		}
	}
	return sub, nil
}

func (h *WebSocketHandler) sendSnapshot(ctx context.Context, client *wsInfra.Client) {
	if h.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snapshotTimeout)
	defer cancel()

	latest, err := h.history.Latest(ctx)
	if err != nil || latest == nil {
		return
	}
	h.hub.Reply(client, wsInfra.Message{Type: wsInfra.MessageSuiteRun, Data: latest})
}

// originPolicy допускает клиентов без Origin (CLI, скрипты) и браузеры из списка
type originPolicy struct {
	any     bool
	allowed map[string]struct{}
}

func newOriginPolicy(origins []string) originPolicy {
	p := originPolicy{allowed: make(map[string]struct{}, len(origins))}
	for _, origin := range origins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		switch origin {
		case "":
		case "*":
			p.any = true
		default:
			p.allowed[origin] = struct{}{}
		}
	}
	return p
}

func (p originPolicy) allow(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" || p.any {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	_, ok := p.allowed[parsed.Scheme+"://"+parsed.Host]
	return ok
}
