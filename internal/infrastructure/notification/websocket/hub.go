package websocket

import (
	"context"
	"sync"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/dto"
	"github.com/dreschagin/dlp-kpi-monitor/pkg/logger"
)

// Типы сообщений
const (
	MessageCheckResult = "check_result"
	MessageSuiteRun    = "suite_run"
	MessageSubscribed  = "subscribed"
	MessageError       = "error"
)

// Message представляет сообщение для отправки клиенту
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type direct struct {
	client *Client
	msg    Message
}

type resubscribe struct {
	client *Client
	filter filter
	sub    Subscription
}

// Hub рассылает результаты проверок с учетом подписки каждого клиента.
// Реализует интерфейс port.NotificationService
type Hub struct {
	clients     map[*Client]bool
	broadcast   chan Message
	register    chan *Client
	unregister  chan *Client
	direct      chan direct
	resubscribe chan resubscribe
	done        chan struct{}

	mu     sync.RWMutex
	logger *logger.Logger
}

// NewHub создает новый WebSocket hub
func NewHub(logger *logger.Logger) *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		broadcast:   make(chan Message, 256),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		direct:      make(chan direct, 16),
		resubscribe: make(chan resubscribe),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Run обслуживает регистрацию и рассылку до отмены ctx.
// Все изменения подписок выполняются здесь, поэтому filter клиента не требует блокировки.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("WebSocket hub started")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.drop(client)
			}
			h.mu.Unlock()
			h.logger.Info("WebSocket hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("Client registered", "total_clients", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if h.clients[client] {
				h.drop(client)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("Client unregistered", "total_clients", total)

		case req := <-h.resubscribe:
			h.mu.Lock()
			if h.clients[req.client] {
				req.client.filter = req.filter
				h.deliver(req.client, Message{Type: MessageSubscribed, Data: req.sub})
			}
			h.mu.Unlock()

		case d := <-h.direct:
			h.mu.Lock()
			if h.clients[d.client] {
				h.deliver(d.client, d.msg)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				h.deliver(client, msg)
			}
			h.mu.Unlock()
		}
	}
}

// deliver отправляет клиенту его представление сообщения. Вызывается под h.mu.
func (h *Hub) deliver(client *Client, msg Message) {
	view, ok := client.filter.view(msg)
	if !ok {
		return
	}
	select {
	case client.send <- view:
	default:
		// Клиент не успевает читать, отключаем
		h.drop(client)
		h.logger.Warn("Client channel full, disconnected", "type", msg.Type)
	}
}

func (h *Hub) drop(client *Client) {
	close(client.send)
	delete(h.clients, client)
}

// Register регистрирует нового клиента
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister удаляет клиента
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Reply отправляет сообщение одному клиенту с учетом его подписки
func (h *Hub) Reply(client *Client, msg Message) {
	select {
	case h.direct <- direct{client: client, msg: msg}:
	case <-h.done:
	}
}

// Resubscribe заменяет подписку клиента и подтверждает ее
func (h *Hub) Resubscribe(client *Client, f filter, sub Subscription) {
	select {
	case h.resubscribe <- resubscribe{client: client, filter: f, sub: sub}:
	case <-h.done:
	}
}

// BroadcastCheckResult отправляет результат проверки подписанным клиентам
func (h *Hub) BroadcastCheckResult(result *dto.CheckResultDTO) {
	h.enqueue(Message{Type: MessageCheckResult, Data: result})
}

// BroadcastSuiteRun отправляет итог прогона всем клиентам
func (h *Hub) BroadcastSuiteRun(run *dto.SuiteRunDTO) {
	h.enqueue(Message{Type: MessageSuiteRun, Data: run})
}

func (h *Hub) enqueue(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("Broadcast channel full, dropping message", "type", msg.Type)
	}
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
