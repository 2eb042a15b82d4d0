package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ernie/sessions-tracker/internal/domain"
	"github.com/ernie/sessions-tracker/internal/tracker"
)

// nopGateway satisfies storage.Gateway for handlers that never touch it
type nopGateway struct{}

func (nopGateway) GetServer(context.Context, string, uint16) (*domain.Server, error) { return nil, nil }
func (nopGateway) GetMap(ctx context.Context, name string) (*domain.Map, error) {
	return &domain.Map{ID: 1, Name: name}, nil
}
func (nopGateway) GetPlayer(context.Context, uint64) (*domain.Player, error) { return nil, nil }
func (nopGateway) GetSession(context.Context, int64, int64, int64, string) (*domain.Session, error) {
	return nil, nil
}
func (nopGateway) GetAlias(context.Context, int64) (*domain.Alias, error)           { return nil, nil }
func (nopGateway) InsertAlias(context.Context, int64, int64, int64, int64, string) error {
	return nil
}
func (nopGateway) InsertMessage(context.Context, int64, int64, int64, domain.MessageKind, string) error {
	return nil
}
func (nopGateway) UpdateSessionsBulk(context.Context, []int64, []int64) error { return nil }
func (nopGateway) UpdateSeen(context.Context, int64) error                    { return nil }
func (nopGateway) CreateSchema(context.Context) error                         { return nil }
func (nopGateway) Close() error                                               { return nil }

func TestStatusEndpoint(t *testing.T) {
	tr := tracker.New(zap.NewNop(), nopGateway{}, &domain.Server{ID: 42}, time.Second)
	tr.HandleMapStart(context.Background(), "de_dust2")
	tr.Registry().Bind(3, &domain.Player{ID: 10, Session: &domain.Session{ID: 100}})
	tr.Registry().Bind(5, &domain.Player{ID: 20})

	router := NewRouter(tr, zap.NewNop())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/status", nil))
	require.Equal(t, 200, rec.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(42), resp.ServerID)
	assert.Equal(t, "de_dust2", resp.Map)
	assert.Equal(t, 2, resp.PlayerCount)
	assert.Len(t, resp.Players, 2)
}

func TestStatusEndpointEmptyRegistry(t *testing.T) {
	tr := tracker.New(zap.NewNop(), nopGateway{}, &domain.Server{ID: 1}, time.Second)
	router := NewRouter(tr, zap.NewNop())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/status", nil))
	require.Equal(t, 200, rec.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.PlayerCount)
	assert.Empty(t, resp.Map)
}

func TestHubBroadcastWithoutSubscribersDoesNotBlock(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()

	for i := 0; i < 10; i++ {
		hub.Broadcast(domain.Event{Type: domain.EventChat, Timestamp: time.Now()})
	}
	assert.Equal(t, 0, hub.SubscriberCount())
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()

	// No buffer and no reader: the first broadcast cannot be delivered
	client := &Client{hub: hub, send: make(chan []byte)}
	hub.register <- client
	require.Eventually(t, func() bool {
		return hub.SubscriberCount() == 1
	}, time.Second, 10*time.Millisecond)

	hub.Broadcast(domain.Event{Type: domain.EventChat, Timestamp: time.Now()})
	require.Eventually(t, func() bool {
		return hub.SubscriberCount() == 0
	}, time.Second, 10*time.Millisecond)

	// The dropped subscriber's channel is closed
	_, open := <-client.send
	assert.False(t, open)
}
