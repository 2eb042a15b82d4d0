package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ernie/sessions-tracker/internal/config"
	"github.com/ernie/sessions-tracker/internal/domain"
)

//go:embed schema_postgres.sql
var postgresSchema string

// postgresGateway implements Gateway over a pgx connection pool.
type postgresGateway struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func newPostgres(cfg config.DatabaseConfig, log *zap.Logger) (*postgresGateway, error) {
	uri := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)

	poolCfg, err := pgxpool.ParseConfig(uri)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	poolCfg.MaxConns = 4
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &postgresGateway{pool: pool, log: log}, nil
}

func (g *postgresGateway) CreateSchema(ctx context.Context) error {
	if _, err := g.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

func (g *postgresGateway) Close() error {
	g.pool.Close()
	return nil
}

func (g *postgresGateway) GetServer(ctx context.Context, ip string, port uint16) (*domain.Server, error) {
	// Upsert then re-query so concurrent fetch-or-creates for the same
	// key cannot trip the unique constraint
	if _, err := g.pool.Exec(ctx,
		"INSERT INTO servers (ip, port) VALUES ($1, $2) ON CONFLICT (ip, port) DO NOTHING", ip, int(port)); err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	var srv domain.Server
	if err := g.pool.QueryRow(ctx,
		"SELECT id FROM servers WHERE ip = $1 AND port = $2", ip, int(port)).Scan(&srv.ID); err != nil {
		return nil, err
	}
	return &srv, nil
}

func (g *postgresGateway) GetMap(ctx context.Context, name string) (*domain.Map, error) {
	if _, err := g.pool.Exec(ctx,
		"INSERT INTO maps (name) VALUES ($1) ON CONFLICT (name) DO NOTHING", name); err != nil {
		return nil, fmt.Errorf("creating map: %w", err)
	}
	m := domain.Map{Name: name}
	if err := g.pool.QueryRow(ctx, "SELECT id FROM maps WHERE name = $1", name).Scan(&m.ID); err != nil {
		return nil, err
	}
	return &m, nil
}

func (g *postgresGateway) GetPlayer(ctx context.Context, steamID uint64) (*domain.Player, error) {
	now := time.Now().UTC()
	if _, err := g.pool.Exec(ctx, `
		INSERT INTO players (steam_id, first_seen, last_seen) VALUES ($1, $2, $3)
		ON CONFLICT (steam_id) DO NOTHING
	`, int64(steamID), now, now); err != nil {
		return nil, fmt.Errorf("creating player: %w", err)
	}
	var p domain.Player
	if err := g.pool.QueryRow(ctx, `
		SELECT id, first_seen, last_seen FROM players WHERE steam_id = $1
	`, int64(steamID)).Scan(&p.ID, &p.FirstSeen, &p.LastSeen); err != nil {
		return nil, err
	}
	return &p, nil
}

func (g *postgresGateway) GetSession(ctx context.Context, playerID, serverID, mapID int64, ip string) (*domain.Session, error) {
	now := time.Now().UTC()
	var s domain.Session
	err := g.pool.QueryRow(ctx, `
		INSERT INTO sessions (player_id, server_id, map_id, ip, started_at, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id
	`, playerID, serverID, mapID, ip, now, now).Scan(&s.ID)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return &s, nil
}

func (g *postgresGateway) GetAlias(ctx context.Context, playerID int64) (*domain.Alias, error) {
	var a domain.Alias
	err := g.pool.QueryRow(ctx, `
		SELECT session_id, player_id, name, created_at FROM aliases
		WHERE player_id = $1 ORDER BY id DESC LIMIT 1
	`, playerID).Scan(&a.SessionID, &a.PlayerID, &a.Name, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (g *postgresGateway) InsertAlias(ctx context.Context, sessionID, playerID, serverID, mapID int64, name string) error {
	_, err := g.pool.Exec(ctx, `
		INSERT INTO aliases (session_id, player_id, server_id, map_id, name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, sessionID, playerID, serverID, mapID, name, time.Now().UTC())
	return err
}

func (g *postgresGateway) InsertMessage(ctx context.Context, sessionID, playerID, mapID int64, kind domain.MessageKind, text string) error {
	_, err := g.pool.Exec(ctx, `
		INSERT INTO messages (session_id, player_id, map_id, kind, text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, sessionID, playerID, mapID, int(kind), text, time.Now().UTC())
	return err
}

func (g *postgresGateway) UpdateSessionsBulk(ctx context.Context, playerIDs, sessionIDs []int64) error {
	if len(playerIDs) == 0 && len(sessionIDs) == 0 {
		return nil
	}
	now := time.Now().UTC()

	batch := &pgx.Batch{}
	if len(playerIDs) > 0 {
		batch.Queue("UPDATE players SET last_seen = $1 WHERE id = ANY($2)", now, playerIDs)
	}
	if len(sessionIDs) > 0 {
		batch.Queue("UPDATE sessions SET last_seen = $1 WHERE id = ANY($2)", now, sessionIDs)
	}

	results := g.pool.SendBatch(ctx, batch)
	defer results.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("touching sessions: %w", err)
		}
	}
	return nil
}

func (g *postgresGateway) UpdateSeen(ctx context.Context, playerID int64) error {
	_, err := g.pool.Exec(ctx, `
		UPDATE players SET last_seen = $1 WHERE id = $2
	`, time.Now().UTC(), playerID)
	return err
}
