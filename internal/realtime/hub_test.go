package realtime

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePubSub struct {
	mu        sync.Mutex
	published []string
	handler   func(event string, payload []byte)
	cancelled bool
}

func (f *fakePubSub) PublishEvent(event string, payload []byte) error {
	f.mu.Lock()
	f.published = append(f.published, event)
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(event, payload)
	}
	return nil
}

func (f *fakePubSub) Subscribe(handler func(event string, payload []byte)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.cancelled = true
		f.handler = nil
	}, nil
}

func newTestClient(hub *Hub) *Client {
	return &Client{ID: "c1", hub: hub, send: make(chan WSMessage, 4)}
}

func TestHubPublishLocal(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	c := newTestClient(hub)
	hub.Register(c)
	assert.Equal(t, 1, hub.ClientCount())

	hub.Publish(EventCheckIn, map[string]string{"serial": "MN-2025-0A1B2C3D"})

	select {
	case msg := <-c.send:
		assert.Equal(t, EventCheckIn, msg.Event)
		assert.JSONEq(t, `{"serial":"MN-2025-0A1B2C3D"}`, string(msg.Data))
	default:
		t.Fatal("expected a message")
	}

	hub.Unregister(c)
	assert.Zero(t, hub.ClientCount())
}

func TestHubPublishThroughRedis(t *testing.T) {
	ps := &fakePubSub{}
	hub := NewHub(nil, ps, ps)
	c := newTestClient(hub)
	hub.Register(c)

	hub.Publish(EventRegistrationDeleted, map[string]string{"serial": "MN-2025-0A1B2C3D"})

	require.Len(t, c.send, 1, "delivered once, through the subscription")
	assert.Equal(t, []string{EventRegistrationDeleted}, ps.published)

	hub.Unregister(c)
	assert.True(t, ps.cancelled)
}

// slowSubscriber blocks in Subscribe until released, like a Redis round trip.
type slowSubscriber struct {
	entered   chan struct{}
	release   chan struct{}
	mu        sync.Mutex
	cancelled int
}

func (s *slowSubscriber) Subscribe(func(event string, payload []byte)) (func(), error) {
	close(s.entered)
	<-s.release
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.cancelled++
	}, nil
}

func (s *slowSubscriber) cancelCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

func TestHubUsableWhileSubscribing(t *testing.T) {
	sub := &slowSubscriber{entered: make(chan struct{}), release: make(chan struct{})}
	hub := NewHub(nil, nil, sub)
	c := newTestClient(hub)

	registered := make(chan struct{})
	go func() {
		hub.Register(c)
		close(registered)
	}()
	<-sub.entered

	finished := make(chan struct{})
	go func() {
		hub.Broadcast(EventCheckIn, []byte(`{}`))
		_ = hub.ClientCount()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("hub blocked while the subscription was starting")
	}
	assert.Len(t, c.send, 1)

	close(sub.release)
	<-registered
	hub.Unregister(c)
	assert.Equal(t, 1, sub.cancelCount())
}

func TestHubCancelsSubscriptionWhenClientLeavesEarly(t *testing.T) {
	sub := &slowSubscriber{entered: make(chan struct{}), release: make(chan struct{})}
	hub := NewHub(nil, nil, sub)
	c := newTestClient(hub)

	registered := make(chan struct{})
	go func() {
		hub.Register(c)
		close(registered)
	}()
	<-sub.entered
	hub.Unregister(c)
	close(sub.release)
	<-registered

	assert.Equal(t, 1, sub.cancelCount())
	assert.Zero(t, hub.ClientCount())
}

func TestServeWsStreamsEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(nil, nil, nil)
	r := gin.New()
	r.GET("/ws/checkins", ServeWs(hub, nil))
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/checkins"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	hub.Publish(EventCheckIn, map[string]any{"serial": "MN-2025-0A1B2C3D", "hasVip": true})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, EventCheckIn, msg.Event)

	var data map[string]any
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, true, data["hasVip"])
}
