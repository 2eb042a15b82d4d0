package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ernie/sessions-tracker/internal/config"
	"github.com/ernie/sessions-tracker/internal/domain"
)

// Gateway is the sole storage-facing boundary of the tracker. All Get
// operations are fetch-or-create and return durable identifiers usable
// immediately, except GetSession which creates a fresh row per call.
type Gateway interface {
	GetServer(ctx context.Context, ip string, port uint16) (*domain.Server, error)
	GetMap(ctx context.Context, name string) (*domain.Map, error)
	GetPlayer(ctx context.Context, steamID uint64) (*domain.Player, error)
	GetSession(ctx context.Context, playerID, serverID, mapID int64, ip string) (*domain.Session, error)

	// GetAlias returns the most recently recorded alias for a player,
	// or (nil, nil) when none exists yet.
	GetAlias(ctx context.Context, playerID int64) (*domain.Alias, error)

	InsertAlias(ctx context.Context, sessionID, playerID, serverID, mapID int64, name string) error
	InsertMessage(ctx context.Context, sessionID, playerID, mapID int64, kind domain.MessageKind, text string) error

	// UpdateSessionsBulk touches last-seen for all given players and
	// sessions in a single batched write. The two id lists are
	// independent sets and may differ in length.
	UpdateSessionsBulk(ctx context.Context, playerIDs, sessionIDs []int64) error
	UpdateSeen(ctx context.Context, playerID int64) error

	CreateSchema(ctx context.Context) error
	Close() error
}

// New selects a Gateway backend from configuration. Unsupported backends
// fail here, before any event handler is registered.
func New(cfg config.DatabaseConfig, log *zap.Logger) (Gateway, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		return newSQLite(cfg.Path, log)
	case config.BackendPostgres:
		return newPostgres(cfg, log)
	default:
		return nil, fmt.Errorf("unsupported database backend %q", cfg.Backend)
	}
}
