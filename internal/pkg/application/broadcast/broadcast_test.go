package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/diwise/space-monitor/pkg/types"
	"github.com/gorilla/websocket"
	"github.com/matryer/is"
	"github.com/rs/zerolog"
)

func TestConnectedClientReceivesLatestValues(t *testing.T) {
	is := is.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	v := 21.5
	reader := &readerMock{values: []types.LatestValue{{ID: 1, LatestValue: &v}, {ID: 2}}}

	hub := NewHub()
	go hub.Run(ctx)

	server := httptest.NewServer(NewWebSocketHandler(ctx, zerolog.Nop(), hub, nil))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server), nil)
	is.NoErr(err)
	defer conn.Close()

	waitForClients(t, hub, 1)

	NewBroadcaster(hub, reader, time.Second).Tick(ctx)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, message, err := conn.ReadMessage()
	is.NoErr(err)

	values := []types.LatestValue{}
	is.NoErr(json.Unmarshal(message, &values))
	is.Equal(2, len(values))
	is.Equal(21.5, *values[0].LatestValue)
	is.True(values[1].LatestValue == nil)
	is.True(strings.Contains(string(message), `"latest_value":null`))
}

func TestDisconnectedClientIsRemoved(t *testing.T) {
	is := is.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	go hub.Run(ctx)

	server := httptest.NewServer(NewWebSocketHandler(ctx, zerolog.Nop(), hub, nil))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server), nil)
	is.NoErr(err)

	waitForClients(t, hub, 1)
	conn.Close()
	waitForClients(t, hub, 0)
}

func TestDisallowedOriginIsRejected(t *testing.T) {
	is := is.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	go hub.Run(ctx)

	server := httptest.NewServer(NewWebSocketHandler(ctx, zerolog.Nop(), hub, []string{"http://localhost:5173"}))
	defer server.Close()

	header := http.Header{}
	header.Set("Origin", "http://evil.example.com")

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server), header)
	is.True(err != nil)
	is.Equal(http.StatusForbidden, resp.StatusCode)
}

func TestSlowClientIsDropped(t *testing.T) {
	is := is.New(t)

	hub := NewHub()
	slow := &Client{id: 1, hub: hub, send: make(chan []byte, 1)}
	fast := &Client{id: 2, hub: hub, send: make(chan []byte, 2)}
	hub.clients[slow] = struct{}{}
	hub.clients[fast] = struct{}{}

	hub.fanOut([]byte("[]"))
	hub.fanOut([]byte("[]"))

	is.Equal(1, hub.ClientCount())
	_, ok := hub.clients[fast]
	is.True(ok)

	is.Equal(1, len(slow.send))
}

func TestFailedReadSkipsTick(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	hub := NewHub()
	c := &Client{id: 1, hub: hub, send: make(chan []byte, 1)}
	hub.clients[c] = struct{}{}

	b := NewBroadcaster(hub, &readerMock{err: errors.New("database is locked")}, 0)
	is.Equal(DefaultInterval, b.interval)

	b.Tick(ctx)
	is.Equal(0, len(hub.broadcast))
}

func TestNoClientsSkipsTick(t *testing.T) {
	is := is.New(t)

	reader := &readerMock{}
	NewBroadcaster(NewHub(), reader, time.Second).Tick(context.Background())

	is.Equal(0, reader.calls)
}

type readerMock struct {
	values []types.LatestValue
	err    error
	calls  int
}

func (r *readerMock) LatestValues(ctx context.Context) ([]types.LatestValue, error) {
	r.calls++
	return r.values, r.err
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func waitForClients(t *testing.T, hub *Hub, count int) {
	deadline := time.Now().Add(5 * time.Second)
	for hub.ClientCount() != count {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d connected clients, found %d", count, hub.ClientCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
