package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/worker-safety/internal/events"
)

// startHub 启动挂载 hub 的测试服务器，返回 ws:// 地址
func startHub(t *testing.T) (string, *Hub) {
	t.Helper()
	hub := NewHub(8, nil, nil)
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http"), hub
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitCount(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Count() == n }, 2*time.Second, 5*time.Millisecond)
}

func TestHub_BroadcastsEnvelope(t *testing.T) {
	url, hub := startHub(t)
	a := dial(t, url)
	b := dial(t, url)
	waitCount(t, hub, 2)

	ev := events.New(events.EmergencyAlert, "D1", time.Now(), map[string]any{"id": 5})
	hub.Publish(context.Background(), ev)

	for _, conn := range []*websocket.Conn{a, b} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)

		var m map[string]any
		require.NoError(t, json.Unmarshal(msg, &m))
		assert.Equal(t, "emergency_alert", m["event"])
		assert.Equal(t, ev.ID, m["id"])
	}
}

func TestHub_CountDecreasesOnDisconnect(t *testing.T) {
	url, hub := startHub(t)
	conn := dial(t, url)
	waitCount(t, hub, 1)

	conn.Close()
	waitCount(t, hub, 0)
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub := NewHub(1, nil, nil)
	c := &client{send: make(chan []byte, 1), remote: "test"}
	require.True(t, hub.register(c))

	hub.Publish(context.Background(), events.New(events.SensorUpdate, "D1", time.Now(), nil))
	assert.Equal(t, 1, hub.Count())

	// 缓冲已满，第二条触发断开
	hub.Publish(context.Background(), events.New(events.SensorUpdate, "D1", time.Now(), nil))
	assert.Equal(t, 0, hub.Count())

	_, ok := <-c.send
	assert.True(t, ok, "已入队的消息仍可读出")
	_, ok = <-c.send
	assert.False(t, ok, "发送通道已关闭")
}

func TestHub_CloseRejectsNewClients(t *testing.T) {
	hub := NewHub(0, nil, nil)
	hub.Close()
	assert.False(t, hub.register(&client{send: make(chan []byte, 1)}))

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "服务端立即关闭连接")
}
