package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helixdesk/internal/event"
	"helixdesk/internal/model"
)

func TestCanSee(t *testing.T) {
	own := event.Event{Type: event.TypeTicketMessage, TicketID: 1, RequesterID: 7}
	note := event.Event{Type: event.TypeTicketMessage, TicketID: 1, RequesterID: 7, Internal: true}
	other := event.Event{Type: event.TypeTicketCreated, TicketID: 2, RequesterID: 8}

	endUser := model.AuthClaims{UserID: 7, Role: model.RoleEndUser}
	agent := model.AuthClaims{UserID: 2, Role: model.RoleAgent}
	admin := model.AuthClaims{UserID: 1, Role: model.RoleAdmin}

	assert.True(t, CanSee(endUser, own))
	assert.False(t, CanSee(endUser, note))
	assert.False(t, CanSee(endUser, other))

	for _, staff := range []model.AuthClaims{agent, admin} {
		assert.True(t, CanSee(staff, own))
		assert.True(t, CanSee(staff, note))
		assert.True(t, CanSee(staff, other))
	}

	assert.False(t, CanSee(model.AuthClaims{UserID: 7}, own))
}

type hubFixture struct {
	bus        *event.InMemoryBus
	server     *httptest.Server
	registered chan struct{}
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	bus := event.NewBus()
	hub := NewHub(bus, nil)
	go hub.Run(ctx)

	f := &hubFixture{bus: bus, registered: make(chan struct{}, 4)}
	upgrader := NewUpgrader([]string{"http://localhost:5173"})

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		viewer := model.AuthClaims{UserID: 7, Role: model.RoleEndUser}
		switch r.URL.Query().Get("role") {
		case "agent":
			viewer = model.AuthClaims{UserID: 2, Role: model.RoleAgent}
		case "expiring-agent":
			viewer = model.AuthClaims{UserID: 2, Role: model.RoleAgent, ExpiresAt: time.Now().Add(500 * time.Millisecond)}
		}
		if err := hub.Serve(upgrader, w, r, viewer); err == nil {
			f.registered <- struct{}{}
		}
	}))
	t.Cleanup(f.server.Close)

	return f
}

func (f *hubFixture) dial(t *testing.T, role string) *gws.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/?role=" + role
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	select {
	case <-f.registered:
	case <-time.After(2 * time.Second):
		t.Fatal("client was not registered")
	}
	return conn
}

func readEvent(t *testing.T, conn *gws.Conn) map[string]any {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	return got
}

func TestHubFiltersByViewer(t *testing.T) {
	f := newHubFixture(t)
	agent := f.dial(t, "agent")
	endUser := f.dial(t, "user")

	f.bus.Publish(event.Event{Type: event.TypeTicketCreated, TicketID: 10, RequesterID: 8})
	f.bus.Publish(event.Event{Type: event.TypeTicketMessage, TicketID: 11, RequesterID: 7, Internal: true})
	f.bus.Publish(event.Event{Type: event.TypeTicketStatusChanged, TicketID: 11, RequesterID: 7})

	for _, want := range []float64{10, 11, 11} {
		assert.Equal(t, want, readEvent(t, agent)["ticket_id"])
	}

	got := readEvent(t, endUser)
	assert.Equal(t, string(event.TypeTicketStatusChanged), got["type"])
	assert.NotContains(t, got, "RequesterID")
}

func TestHubClosesConnectionWhenSessionExpires(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t, "expiring-agent")

	f.bus.Publish(event.Event{Type: event.TypeTicketMessage, TicketID: 12, RequesterID: 7, Internal: true})
	assert.Equal(t, float64(12), readEvent(t, conn)["ticket_id"])

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, gws.IsCloseError(err, gws.ClosePolicyViolation), "got %v", err)

	f.bus.Publish(event.Event{Type: event.TypeTicketMessage, TicketID: 13, RequesterID: 7, Internal: true})
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestUpgraderRejectsForeignOrigin(t *testing.T) {
	f := newHubFixture(t)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	header := http.Header{"Origin": []string{"https://evil.test"}}
	_, resp, err := gws.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header = http.Header{"Origin": []string{"http://localhost:5173"}}
	conn, _, err := gws.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	_ = conn.Close()
}
