package relay

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fastygo/algorithm/domain"
)

func startHub(t *testing.T, bus Broadcaster) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(bus, zaptest.NewLogger(t))
	srv := httptest.NewServer(hub.Handler())
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.Run(ctx) }()
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/socket"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if resp != nil {
		t.Cleanup(func() { resp.Body.Close() })
	}
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) domain.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	ev, err := domain.DecodeEvent(payload)
	require.NoError(t, err)
	return ev
}

func send(t *testing.T, conn *websocket.Conn, ev domain.Event) {
	t.Helper()
	payload, err := domain.EncodeEvent(ev)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))
}

func TestHealth(t *testing.T) {
	_, srv := startHub(t, nil)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))

	resp, err = http.Get(srv.URL + "/subscriber")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestControllerAssignmentAndTransfer(t *testing.T) {
	hub, srv := startHub(t, nil)

	first := dial(t, srv)
	assert.Equal(t, domain.ControllerEvent{Controller: true}, readEvent(t, first))

	second := dial(t, srv)
	assert.Equal(t, domain.ControllerEvent{Controller: true}, readEvent(t, first))
	assert.Equal(t, domain.ControllerEvent{Controller: false}, readEvent(t, second))
	assert.Equal(t, 2, hub.Clients())

	send(t, second, domain.RequestControlEvent{})
	assert.Equal(t, domain.ControllerEvent{Controller: false}, readEvent(t, first))
	assert.Equal(t, domain.ControllerEvent{Controller: true}, readEvent(t, second))

	require.NoError(t, second.Close())
	assert.Equal(t, domain.ControllerEvent{Controller: true}, readEvent(t, first), "role falls back to the oldest client")
}

func TestUpdateIsRebroadcastToEveryClient(t *testing.T) {
	_, srv := startHub(t, nil)

	producer := dial(t, srv)
	readEvent(t, producer)
	viewer := dial(t, srv)
	readEvent(t, producer)
	readEvent(t, viewer)

	send(t, producer, domain.UpdateDataEvent{Game: &domain.Game{UUID: "g1", Updated: 7}})

	for _, conn := range []*websocket.Conn{producer, viewer} {
		ev := readEvent(t, conn)
		update, ok := ev.(domain.GameUpdateEvent)
		require.True(t, ok, "got %T", ev)
		assert.Equal(t, "g1", update.Game.UUID)
		assert.Equal(t, int64(7), update.Game.Updated)
	}
}

type loopbackBus struct {
	mu        sync.Mutex
	published int
	ch        chan []byte
}

func (b *loopbackBus) Publish(_ context.Context, payload []byte) error {
	b.mu.Lock()
	b.published++
	b.mu.Unlock()
	b.ch <- payload
	return nil
}

func (b *loopbackBus) Subscribe(ctx context.Context, handle func([]byte)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case p := <-b.ch:
			handle(p)
		}
	}
}

func TestUpdatesGoThroughTheBus(t *testing.T) {
	bus := &loopbackBus{ch: make(chan []byte, 4)}
	_, srv := startHub(t, bus)

	conn := dial(t, srv)
	readEvent(t, conn)

	send(t, conn, domain.UpdateDataEvent{Game: &domain.Game{UUID: "g2", Updated: 1}})
	ev := readEvent(t, conn)
	require.IsType(t, domain.GameUpdateEvent{}, ev)

	bus.mu.Lock()
	defer bus.mu.Unlock()
	assert.Equal(t, 1, bus.published)
}

func TestMalformedMessagesAreIgnored(t *testing.T) {
	_, srv := startHub(t, nil)

	conn := dial(t, srv)
	readEvent(t, conn)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("garbage")))
	send(t, conn, domain.MessageEvent{Text: "hello"})
	send(t, conn, domain.UpdateDataEvent{Game: &domain.Game{UUID: "g3"}})

	update, ok := readEvent(t, conn).(domain.GameUpdateEvent)
	require.True(t, ok)
	assert.Equal(t, "g3", update.Game.UUID)
}
