package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/dto"
	"github.com/dreschagin/dlp-kpi-monitor/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)
	return h
}

func TestHubBroadcastsToRegisteredClients(t *testing.T) {
	h := newTestHub(t)

	c := &Client{hub: h, send: make(chan Message, sendBuffer), logger: logger.NewNop()}
	h.Register(c)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	h.BroadcastCheckResult(&dto.CheckResultDTO{CheckName: "FileOpen", Status: "met"})
	h.BroadcastSuiteRun(&dto.SuiteRunDTO{ID: "run-1"})

	first := <-c.send
	second := <-c.send
	assert.Equal(t, MessageCheckResult, first.Type)
	assert.Equal(t, MessageSuiteRun, second.Type)
	assert.Equal(t, "run-1", second.Data.(*dto.SuiteRunDTO).ID)

	h.Unregister(c)
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHubDisconnectsSlowClient(t *testing.T) {
	h := newTestHub(t)

	slow := &Client{hub: h, send: make(chan Message), logger: logger.NewNop()}
	h.Register(slow)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	h.BroadcastSuiteRun(&dto.SuiteRunDTO{ID: "run-2"})
	assert.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func subscribedClient(t *testing.T, h *Hub, sub Subscription) *Client {
	t.Helper()
	f, err := newFilter(sub)
	require.NoError(t, err)
	c := &Client{hub: h, send: make(chan Message, sendBuffer), filter: f, logger: logger.NewNop()}
	h.Register(c)
	return c
}

func TestHubDeliversOnlySubscribedResults(t *testing.T) {
	h := newTestHub(t)
	critical := subscribedClient(t, h, Subscription{Statuses: []string{"critical"}})
	everything := subscribedClient(t, h, Subscription{})
	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	h.BroadcastCheckResult(&dto.CheckResultDTO{CheckName: "agent-cpu", Status: "met"})
	h.BroadcastCheckResult(&dto.CheckResultDTO{CheckName: "system-cpu", Status: "critical"})
	h.BroadcastSuiteRun(&dto.SuiteRunDTO{ID: "run-3", Results: []*dto.CheckResultDTO{
		{CheckName: "agent-cpu", Status: "met"},
		{CheckName: "system-cpu", Status: "critical"},
	}})

	first := <-critical.send
	assert.Equal(t, "system-cpu", first.Data.(*dto.CheckResultDTO).CheckName)
	run := (<-critical.send).Data.(*dto.SuiteRunDTO)
	require.Len(t, run.Results, 1)
	assert.Equal(t, "critical", run.Results[0].Status)

	for i := 0; i < 2; i++ {
		assert.Equal(t, MessageCheckResult, (<-everything.send).Type)
	}
	assert.Len(t, (<-everything.send).Data.(*dto.SuiteRunDTO).Results, 2, "broadcast payload must not be trimmed for others")
}

func TestHubResubscribeAcknowledges(t *testing.T) {
	h := newTestHub(t)
	c := subscribedClient(t, h, Subscription{Checks: []string{"agent-cpu"}})
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	sub := Subscription{Checks: []string{"system-cpu"}}
	f, err := newFilter(sub)
	require.NoError(t, err)
	h.Resubscribe(c, f, sub)

	ack := <-c.send
	assert.Equal(t, MessageSubscribed, ack.Type)
	assert.Equal(t, sub, ack.Data)

	h.BroadcastCheckResult(&dto.CheckResultDTO{CheckName: "agent-cpu", Status: "met"})
	h.BroadcastCheckResult(&dto.CheckResultDTO{CheckName: "system-cpu", Status: "met"})
	assert.Equal(t, "system-cpu", (<-c.send).Data.(*dto.CheckResultDTO).CheckName)
}

func TestParseSubscription(t *testing.T) {
	sub, err := ParseSubscription(" agent-cpu, ,system-cpu", "critical,no_data")
	require.NoError(t, err)
	assert.Equal(t, []string{"agent-cpu", "system-cpu"}, sub.Checks)
	assert.Equal(t, []string{"critical", "no_data"}, sub.Statuses)

	_, err = ParseSubscription("", "fine")
	assert.Error(t, err)
}

func TestHubCallsReturnAfterStop(t *testing.T) {
	h := NewHub(logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	c := &Client{hub: h, send: make(chan Message, 1), logger: logger.NewNop()}
	done := make(chan struct{})
	go func() {
		h.Register(c)
		h.Reply(c, Message{Type: MessageError})
		h.Unregister(c)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub calls blocked after Run returned")
	}
}
