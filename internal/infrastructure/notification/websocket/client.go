package websocket

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/dto"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
	"github.com/dreschagin/dlp-kpi-monitor/pkg/logger"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	// Входящие сообщения только подписки, большие кадры не нужны
	maxMessageSize = 4096

	sendBuffer = 64
)

// Subscription какие результаты получает клиент. Пустой список означает "все".
type Subscription struct {
	Checks   []string `json:"checks,omitempty"`
	Statuses []string `json:"statuses,omitempty"`
}

// ParseSubscription разбирает списки через запятую (параметры запроса ?checks=&status=)
func ParseSubscription(checks, statuses string) (Subscription, error) {
	sub := Subscription{Checks: splitList(checks), Statuses: splitList(statuses)}
	if _, err := newFilter(sub); err != nil {
		return Subscription{}, err
	}
	return sub, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// filter скомпилированная подписка. Меняется только в goroutine хаба.
type filter struct {
	checks   map[string]struct{}
	statuses map[valueobject.Status]struct{}
}

func newFilter(sub Subscription) (filter, error) {
	f := filter{}
	if len(sub.Checks) > 0 {
		f.checks = make(map[string]struct{}, len(sub.Checks))
		for _, name := range sub.Checks {
			f.checks[name] = struct{}{}
		}
	}
	if len(sub.Statuses) > 0 {
		f.statuses = make(map[valueobject.Status]struct{}, len(sub.Statuses))
		for _, raw := range sub.Statuses {
			status, err := valueobject.ParseStatus(raw)
			if err != nil {
				return filter{}, fmt.Errorf("subscription: %w", err)
			}
			f.statuses[status] = struct{}{}
		}
	}
	return f, nil
}

func (f filter) all() bool {
	return f.checks == nil && f.statuses == nil
}

func (f filter) matches(r *dto.CheckResultDTO) bool {
	if f.checks != nil {
		if _, ok := f.checks[r.CheckName]; !ok {
			return false
		}
	}
	if f.statuses != nil {
		if _, ok := f.statuses[valueobject.Status(r.Status)]; !ok {
			return false
		}
	}
	return true
}

// view возвращает сообщение в том виде, в каком его должен увидеть клиент.
// Итог прогона отправляется всегда, но только с подходящими результатами.
func (f filter) view(msg Message) (Message, bool) {
	if f.all() {
		return msg, true
	}
	switch data := msg.Data.(type) {
	case *dto.CheckResultDTO:
		return msg, f.matches(data)
	case *dto.SuiteRunDTO:
		trimmed := *data
		trimmed.Results = make([]*dto.CheckResultDTO, 0, len(data.Results))
		for _, r := range data.Results {
			if f.matches(r) {
				trimmed.Results = append(trimmed.Results, r)
			}
		}
		return Message{Type: msg.Type, Data: &trimmed}, true
	default:
		return msg, true
	}
}

// clientRequest входящее сообщение клиента
type clientRequest struct {
	Action string `json:"action"`
	Subscription
}

// Client одно WebSocket соединение дашборда или скрипта
type Client struct {
	conn   *websocket.Conn
	hub    *Hub
	send   chan Message
	filter filter
	logger *logger.Logger
}

// NewClient создает клиента с начальной подпиской
func NewClient(hub *Hub, conn *websocket.Conn, sub Subscription, logger *logger.Logger) (*Client, error) {
	f, err := newFilter(sub)
	if err != nil {
		return nil, err
	}
	return &Client{
		conn:   conn,
		hub:    hub,
		send:   make(chan Message, sendBuffer),
		filter: f,
		logger: logger,
	}, nil
}

// ReadPump принимает запросы подписки до закрытия соединения
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket read failed", "error", err)
			}
			return
		}
		c.handleRequest(raw)
	}
}

func (c *Client) handleRequest(raw []byte) {
	var req clientRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		c.hub.Reply(c, Message{Type: MessageError, Data: "malformed request"})
		return
	}

	switch req.Action {
	case "subscribe":
		f, err := newFilter(req.Subscription)
		if err != nil {
			c.hub.Reply(c, Message{Type: MessageError, Data: err.Error()})
			return
		}
		c.hub.Resubscribe(c, f, req.Subscription)
	case "unsubscribe":
		c.hub.Resubscribe(c, filter{}, Subscription{})
	default:
		c.hub.Reply(c, Message{Type: MessageError, Data: fmt.Sprintf("unknown action %q", req.Action)})
	}
}

// WritePump пишет очередь клиента и пингует соединение
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				// Хаб остановлен или клиент отключен как медленный
				_ = c.write(websocket.CloseMessage, []byte{})
				return
			}
			payload, err := json.Marshal(msg)
			if err != nil {
				c.logger.Error("WebSocket encode failed", err, "type", msg.Type)
				continue
			}
			if err := c.write(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(messageType int, payload []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, payload)
}
