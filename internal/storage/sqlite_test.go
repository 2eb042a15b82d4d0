package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ernie/sessions-tracker/internal/config"
	"github.com/ernie/sessions-tracker/internal/domain"
)

func newTestGateway(t *testing.T) Gateway {
	t.Helper()
	gw, err := New(config.DatabaseConfig{
		Backend: config.BackendSQLite,
		Path:    filepath.Join(t.TempDir(), "sessions.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { gw.Close() })
	require.NoError(t, gw.CreateSchema(context.Background()))
	return gw
}

func TestNewUnsupportedBackend(t *testing.T) {
	_, err := New(config.DatabaseConfig{Backend: "mongodb"}, zap.NewNop())
	assert.ErrorContains(t, err, "unsupported database backend")
}

func TestGetServerFetchOrCreate(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	first, err := gw.GetServer(ctx, "203.0.113.7", 27015)
	require.NoError(t, err)
	again, err := gw.GetServer(ctx, "203.0.113.7", 27015)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	other, err := gw.GetServer(ctx, "203.0.113.7", 27016)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestGetMapFetchOrCreate(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	dust, err := gw.GetMap(ctx, "de_dust2")
	require.NoError(t, err)
	assert.Equal(t, "de_dust2", dust.Name)

	again, err := gw.GetMap(ctx, "de_dust2")
	require.NoError(t, err)
	assert.Equal(t, dust.ID, again.ID)

	inferno, err := gw.GetMap(ctx, "de_inferno")
	require.NoError(t, err)
	assert.NotEqual(t, dust.ID, inferno.ID)
}

func TestGetPlayerStableAcrossReconnects(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	p1, err := gw.GetPlayer(ctx, 76561198000000001)
	require.NoError(t, err)
	assert.False(t, p1.FirstSeen.IsZero())
	assert.WithinDuration(t, time.Now(), p1.FirstSeen, 5*time.Second)

	p2, err := gw.GetPlayer(ctx, 76561198000000001)
	require.NoError(t, err)
	assert.Equal(t, p1.ID, p2.ID)
	// Stored timestamps scan back at second precision
	assert.WithinDuration(t, p1.FirstSeen, p2.FirstSeen, time.Second)
}

func TestGetMapConcurrentSameName(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	const workers = 8
	ids := make([]int64, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := gw.GetMap(ctx, "de_train")
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = m.ID
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
}

func TestGetSessionAlwaysCreates(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	srv, err := gw.GetServer(ctx, "203.0.113.7", 27015)
	require.NoError(t, err)
	m, err := gw.GetMap(ctx, "de_dust2")
	require.NoError(t, err)
	p, err := gw.GetPlayer(ctx, 76561198000000001)
	require.NoError(t, err)

	s1, err := gw.GetSession(ctx, p.ID, srv.ID, m.ID, "198.51.100.9")
	require.NoError(t, err)
	s2, err := gw.GetSession(ctx, p.ID, srv.ID, m.ID, "198.51.100.9")
	require.NoError(t, err)
	assert.NotEqual(t, s1.ID, s2.ID)
}

func TestGetAliasReturnsMostRecent(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	srv, _ := gw.GetServer(ctx, "203.0.113.7", 27015)
	m, _ := gw.GetMap(ctx, "de_dust2")
	p, _ := gw.GetPlayer(ctx, 76561198000000001)
	s, _ := gw.GetSession(ctx, p.ID, srv.ID, m.ID, "198.51.100.9")

	alias, err := gw.GetAlias(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, alias)

	require.NoError(t, gw.InsertAlias(ctx, s.ID, p.ID, srv.ID, m.ID, "Bob"))
	require.NoError(t, gw.InsertAlias(ctx, s.ID, p.ID, srv.ID, m.ID, "Rob"))

	alias, err = gw.GetAlias(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, alias)
	assert.Equal(t, "Rob", alias.Name)
	assert.Equal(t, p.ID, alias.PlayerID)
}

func TestUpdateSessionsBulk(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	srv, _ := gw.GetServer(ctx, "203.0.113.7", 27015)
	m, _ := gw.GetMap(ctx, "de_dust2")
	p1, _ := gw.GetPlayer(ctx, 76561198000000001)
	p2, _ := gw.GetPlayer(ctx, 76561198000000002)
	s1, _ := gw.GetSession(ctx, p1.ID, srv.ID, m.ID, "198.51.100.9")

	// Length mismatch is legal: every bound player is touched, only the
	// subset with sessions contributes session ids.
	err := gw.UpdateSessionsBulk(ctx, []int64{p1.ID, p2.ID}, []int64{s1.ID})
	assert.NoError(t, err)

	// Empty snapshot issues no write and no error
	assert.NoError(t, gw.UpdateSessionsBulk(ctx, nil, nil))
}

func TestInsertMessageAndUpdateSeen(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	srv, _ := gw.GetServer(ctx, "203.0.113.7", 27015)
	m, _ := gw.GetMap(ctx, "de_dust2")
	p, _ := gw.GetPlayer(ctx, 76561198000000001)
	s, _ := gw.GetSession(ctx, p.ID, srv.ID, m.ID, "198.51.100.9")

	assert.NoError(t, gw.InsertMessage(ctx, s.ID, p.ID, m.ID, domain.KindChat, "hello"))
	assert.NoError(t, gw.InsertMessage(ctx, s.ID, p.ID, m.ID, domain.KindTeamChat, "rush b"))
	assert.NoError(t, gw.UpdateSeen(ctx, p.ID))
}
