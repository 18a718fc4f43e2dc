package stream

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"note-lifecycle-lab/internal/calendar"
	"note-lifecycle-lab/internal/domain"
	"note-lifecycle-lab/internal/orchestrator"
)

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.ClientCount() == n },
		2*time.Second, 10*time.Millisecond, "expected %d clients", n)
}

func TestHub_BroadcastsOutcomes(t *testing.T) {
	hub := NewHub(nil, nil)
	defer hub.Close()
	server := httptest.NewServer(hub)
	defer server.Close()

	a := dial(t, server)
	b := dial(t, server)
	waitForClients(t, hub, 2)

	redemption := 100.0
	hub.Notify(context.Background(), orchestrator.Outcome{
		RunID:             "run-1",
		ISIN:              "XS0000000001",
		AsOf:              calendar.MustParse("2024-08-01"),
		Status:            domain.StatusAutocalled,
		AutocallDate:      calendar.MustParse("2024-07-02"),
		CumulativeCoupon:  4,
		CapitalRedemption: &redemption,
	})

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var got orchestrator.Outcome
		require.NoError(t, conn.ReadJSON(&got))
		assert.Equal(t, "XS0000000001", got.ISIN)
		assert.Equal(t, domain.StatusAutocalled, got.Status)
		assert.Equal(t, "2024-07-02", got.AutocallDate.String())
		require.NotNil(t, got.CapitalRedemption)
		assert.Equal(t, 100.0, *got.CapitalRedemption)
		assert.Nil(t, got.PnL)
	}
}

func TestHub_RemovesDisconnectedClients(t *testing.T) {
	hub := NewHub(nil, nil)
	defer hub.Close()
	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dial(t, server)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	hub := NewHub(nil, nil)
	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dial(t, server)
	waitForClients(t, hub, 1)

	require.NoError(t, hub.Close())
	assert.Equal(t, 0, hub.ClientCount())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "expected normal closure, got %v", err)

	// Notify after close is a no-op
	hub.Notify(context.Background(), orchestrator.Outcome{ISIN: "XS0000000001"})
	assert.NoError(t, hub.Close())
}

func TestHub_DropsForSlowClients(t *testing.T) {
	cfg := DefaultHubConfig()
	cfg.SendBuffer = 1
	hub := NewHub(&cfg, nil)
	defer hub.Close()
	server := httptest.NewServer(hub)
	defer server.Close()

	dial(t, server) // never reads
	waitForClients(t, hub, 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Notify(context.Background(), orchestrator.Outcome{ISIN: "XS0000000001"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked on a slow client")
	}
}

func TestHub_PartialConfigUsesDefaults(t *testing.T) {
	hub := NewHub(&HubConfig{SendBuffer: 4}, nil)
	defer hub.Close()
	assert.Equal(t, DefaultHubConfig().PingInterval, hub.config.PingInterval)
	assert.Equal(t, DefaultHubConfig().ReadTimeout, hub.config.ReadTimeout)
	assert.Equal(t, DefaultHubConfig().WriteTimeout, hub.config.WriteTimeout)

	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dial(t, server)
	waitForClients(t, hub, 1)

	hub.Notify(context.Background(), orchestrator.Outcome{ISIN: "XS0000000001"})
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got orchestrator.Outcome
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "XS0000000001", got.ISIN)
}

func TestHub_CloseWhileClientsConnect(t *testing.T) {
	hub := NewHub(nil, nil)
	server := httptest.NewServer(hub)
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
			if err != nil {
				return // rejected after close
			}
			defer conn.Close()
			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, hub.Close())
	assert.Equal(t, 0, hub.ClientCount())
	wg.Wait()
}
