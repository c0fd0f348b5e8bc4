package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/entity"
)

func startHub(t *testing.T, origins []string, onCount func(int)) (*Hub, *httptest.Server) {
	t.Helper()

	hub := NewHub(origins, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if onCount != nil {
		hub.OnClientCount(onCount)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHub_PublishLookup(t *testing.T) {
	counts := make(chan int, 8)
	hub, srv := startHub(t, nil, func(n int) { counts <- n })

	conn := dial(t, srv, nil)
	hello := readMessage(t, conn)
	assert.Equal(t, MessageConnection, hello.Type)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, <-counts)

	require.NoError(t, hub.PublishLookup(context.Background(), &entity.LookupRecord{
		Query:     "8.8.8.8",
		Type:      entity.KindIP,
		RiskLevel: "Clean",
	}))

	msg := readMessage(t, conn)
	assert.Equal(t, MessageLookup, msg.Type)
	assert.Equal(t, TopicLookups, msg.Topic)

	payload, ok := msg.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "8.8.8.8", payload["query"])
	assert.Equal(t, "Clean", payload["riskLevel"])
}

func TestHub_HighRiskSubscription(t *testing.T) {
	hub, srv := startHub(t, nil, nil)

	conn := dial(t, srv, nil)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "unsubscribe", "topic": TopicLookups}))
	require.NoError(t, conn.WriteJSON(map[string]string{"action": "subscribe", "topic": TopicHighRisk}))

	client := func() *Client {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		for c := range hub.clients {
			return c
		}
		return nil
	}()
	require.NotNil(t, client)
	require.Eventually(t, func() bool {
		return client.isSubscribed(TopicHighRisk) && !client.isSubscribed(TopicLookups)
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.PublishLookup(context.Background(), &entity.LookupRecord{Query: "low.example.com", RiskLevel: "Low"}))
	require.NoError(t, hub.PublishLookup(context.Background(), &entity.LookupRecord{Query: "bad.example.com", RiskLevel: "High"}))

	msg := readMessage(t, conn)
	assert.Equal(t, TopicHighRisk, msg.Topic)
	assert.Equal(t, "bad.example.com", msg.Payload.(map[string]any)["query"])
}

func TestHub_RejectsUnknownOrigin(t *testing.T) {
	_, srv := startHub(t, []string{"http://localhost:5173"}, nil)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example"}})

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn := dial(t, srv, http.Header{"Origin": []string{"http://localhost:5173"}})
	assert.Equal(t, MessageConnection, readMessage(t, conn).Type)
}

func TestHub_UnregisterOnClose(t *testing.T) {
	hub, srv := startHub(t, nil, nil)

	conn := dial(t, srv, nil)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
