package tracker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ernie/sessions-tracker/internal/domain"
	"github.com/ernie/sessions-tracker/internal/metrics"
	"github.com/ernie/sessions-tracker/internal/storage"
)

// unknownMapName is used for connects that arrive before the first map
// load event so every session still references a valid map row.
const unknownMapName = "unknown"

// Tracker keeps the session registry consistent with the persistence
// gateway across connect/disconnect churn and drives the periodic bulk
// heartbeat. Gateway failures are logged and dropped; nothing here aborts
// the process or surfaces errors to the game.
type Tracker struct {
	log       *zap.Logger
	store     storage.Gateway
	registry  *Registry
	heartbeat time.Duration
	events    chan domain.Event
	broadcast func(domain.Event)

	mu     sync.RWMutex // guards server.Map
	server *domain.Server

	wg sync.WaitGroup // in-flight connect resolutions
}

// New creates a tracker for an already-resolved server record.
func New(log *zap.Logger, store storage.Gateway, server *domain.Server, heartbeat time.Duration) *Tracker {
	return &Tracker{
		log:       log,
		store:     store,
		registry:  NewRegistry(),
		heartbeat: heartbeat,
		events:    make(chan domain.Event, 256),
		server:    server,
	}
}

// Registry exposes the slot registry for status reporting
func (t *Tracker) Registry() *Registry {
	return t.registry
}

// Server returns the tracked server record and its current map
func (t *Tracker) Server() (int64, *domain.Map) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.server.ID, t.server.Map
}

// SetBroadcast installs an optional fan-out for incoming events
func (t *Tracker) SetBroadcast(fn func(domain.Event)) {
	t.broadcast = fn
}

// Submit enqueues an engine event. When the queue is full the event is
// dropped and counted rather than blocking the source.
func (t *Tracker) Submit(ev domain.Event) bool {
	select {
	case t.events <- ev:
		return true
	default:
		metrics.EventsDroppedTotal.Inc()
		return false
	}
}

// Run consumes events and drives the heartbeat until ctx is cancelled,
// then waits for in-flight connect resolutions to finish.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.wg.Wait()
			return
		case ev := <-t.events:
			t.dispatch(ctx, ev)
		case <-ticker.C:
			t.heartbeatTick(ctx)
		}
	}
}

func (t *Tracker) dispatch(ctx context.Context, ev domain.Event) {
	metrics.EventsReceivedTotal.WithLabelValues(ev.Type).Inc()
	if t.broadcast != nil {
		t.broadcast(ev)
	}

	switch data := ev.Data.(type) {
	case domain.MapStartData:
		t.HandleMapStart(ctx, data.Name)
	case domain.ClientAuthorizedData:
		// Resolution is a slow gateway round trip; run it off the event
		// loop so a stalled database does not block disconnects. A
		// disconnect for this slot arriving while resolution is in
		// flight is a no-op and the bind still lands afterwards.
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.HandleClientAuthorized(ctx, data.Slot, data.SteamID, data.IP, data.Name)
		}()
	case domain.ClientDisconnectData:
		t.HandleClientDisconnect(ctx, data.Slot)
	case domain.ChatData:
		t.HandleChat(ctx, data.Slot, data.Text, data.TeamOnly)
	}
}

// HandleMapStart resolves the named map and makes it current
func (t *Tracker) HandleMapStart(ctx context.Context, name string) {
	m, err := t.store.GetMap(ctx, name)
	if err != nil {
		metrics.GatewayErrorsTotal.WithLabelValues("get_map").Inc()
		t.log.Warn("failed to resolve map", zap.String("map", name), zap.Error(err))
		return
	}
	t.mu.Lock()
	t.server.Map = m
	t.mu.Unlock()
	t.log.Info("map changed", zap.String("map", name), zap.Int64("map_id", m.ID))
}

// currentMap returns the active map, lazily resolving the "unknown" map
// for connects that arrive before the first map load.
func (t *Tracker) currentMap(ctx context.Context) (*domain.Map, error) {
	t.mu.RLock()
	m := t.server.Map
	t.mu.RUnlock()
	if m != nil {
		return m, nil
	}

	m, err := t.store.GetMap(ctx, unknownMapName)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	if t.server.Map == nil {
		t.server.Map = m
	} else {
		m = t.server.Map
	}
	t.mu.Unlock()
	return m, nil
}

// HandleClientAuthorized resolves or creates the durable player and a
// fresh session for a connecting client, binds the slot, then records the
// client's alias. Any gateway failure leaves the slot unbound; no retry
// is scheduled.
func (t *Tracker) HandleClientAuthorized(ctx context.Context, slot int, steamID uint64, ip, name string) {
	m, err := t.currentMap(ctx)
	if err != nil {
		metrics.GatewayErrorsTotal.WithLabelValues("get_map").Inc()
		t.log.Warn("failed to resolve current map", zap.Int("slot", slot), zap.Error(err))
		return
	}

	player, err := t.store.GetPlayer(ctx, steamID)
	if err != nil {
		metrics.GatewayErrorsTotal.WithLabelValues("get_player").Inc()
		t.log.Warn("failed to resolve player", zap.Int("slot", slot), zap.Uint64("steam_id", steamID), zap.Error(err))
		return
	}

	session, err := t.store.GetSession(ctx, player.ID, t.server.ID, m.ID, ip)
	if err != nil {
		metrics.GatewayErrorsTotal.WithLabelValues("get_session").Inc()
		t.log.Warn("failed to create session", zap.Int("slot", slot), zap.Int64("player_id", player.ID), zap.Error(err))
		return
	}
	player.Session = session

	t.registry.Bind(slot, player)
	metrics.ConnectsResolvedTotal.Inc()
	metrics.BoundPlayers.Set(float64(t.registry.Len()))
	t.log.Info("player connected",
		zap.Int("slot", slot),
		zap.Int64("player_id", player.ID),
		zap.Int64("session_id", session.ID))

	// Alias check runs after resolution completes; ordering within a
	// slot between these two steps is guaranteed.
	t.CheckAlias(ctx, slot, name)
}

// CheckAlias records the client's display name when it differs from the
// most recently recorded alias for that player.
func (t *Tracker) CheckAlias(ctx context.Context, slot int, rawAlias string) {
	player, ok := t.registry.Get(slot)
	if !ok || player.Session == nil {
		return
	}

	alias := domain.NormalizeAlias(rawAlias)

	recent, err := t.store.GetAlias(ctx, player.ID)
	if err != nil {
		metrics.GatewayErrorsTotal.WithLabelValues("get_alias").Inc()
		t.log.Warn("failed to fetch recent alias", zap.Int64("player_id", player.ID), zap.Error(err))
		return
	}
	if recent != nil && recent.Name == alias {
		return
	}

	m, err := t.currentMap(ctx)
	if err != nil {
		metrics.GatewayErrorsTotal.WithLabelValues("get_map").Inc()
		return
	}
	if err := t.store.InsertAlias(ctx, player.Session.ID, player.ID, t.server.ID, m.ID, alias); err != nil {
		metrics.GatewayErrorsTotal.WithLabelValues("insert_alias").Inc()
		t.log.Warn("failed to record alias", zap.Int64("player_id", player.ID), zap.Error(err))
		return
	}
	metrics.AliasesRecordedTotal.Inc()
}

// HandleClientDisconnect removes the slot binding and touches the
// player's last-seen. An unbound slot is a silent no-op.
func (t *Tracker) HandleClientDisconnect(ctx context.Context, slot int) {
	player, ok := t.registry.Unbind(slot)
	if !ok {
		return
	}
	metrics.BoundPlayers.Set(float64(t.registry.Len()))

	if err := t.store.UpdateSeen(ctx, player.ID); err != nil {
		metrics.GatewayErrorsTotal.WithLabelValues("update_seen").Inc()
		t.log.Warn("failed to update last seen", zap.Int64("player_id", player.ID), zap.Error(err))
	}
	t.log.Info("player disconnected", zap.Int("slot", slot), zap.Int64("player_id", player.ID))
}

// HandleChat persists one chat message for a bound slot. Unbound slots,
// missing sessions and a missing map are silent no-ops.
func (t *Tracker) HandleChat(ctx context.Context, slot int, text string, teamOnly bool) {
	player, ok := t.registry.Get(slot)
	if !ok || player.Session == nil || text == "" {
		return
	}

	t.mu.RLock()
	m := t.server.Map
	t.mu.RUnlock()
	if m == nil {
		return
	}

	kind := domain.KindChat
	if teamOnly {
		kind = domain.KindTeamChat
	}
	if err := t.store.InsertMessage(ctx, player.Session.ID, player.ID, m.ID, kind, text); err != nil {
		metrics.GatewayErrorsTotal.WithLabelValues("insert_message").Inc()
		t.log.Warn("failed to record message", zap.Int64("player_id", player.ID), zap.Error(err))
		return
	}
	metrics.MessagesRecordedTotal.Inc()
}

// heartbeatTick issues exactly one bulk touch for the current snapshot.
// All bound players contribute a player id; only those with a session
// contribute a session id.
func (t *Tracker) heartbeatTick(ctx context.Context) {
	players := t.registry.Snapshot()
	if len(players) == 0 {
		return
	}

	playerIDs := make([]int64, 0, len(players))
	sessionIDs := make([]int64, 0, len(players))
	for _, p := range players {
		playerIDs = append(playerIDs, p.ID)
		if p.Session != nil {
			sessionIDs = append(sessionIDs, p.Session.ID)
		}
	}

	if err := t.store.UpdateSessionsBulk(ctx, playerIDs, sessionIDs); err != nil {
		metrics.GatewayErrorsTotal.WithLabelValues("update_sessions_bulk").Inc()
		t.log.Warn("heartbeat batch failed", zap.Int("players", len(playerIDs)), zap.Error(err))
		return
	}
	metrics.HeartbeatBatchesTotal.Inc()
}
