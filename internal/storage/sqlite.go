package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ernie/sessions-tracker/internal/domain"
	_ "modernc.org/sqlite"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

// formatTimestamp converts time.Time to SQLite-compatible UTC ISO8601 string.
// The Z suffix ensures the driver parses it back as UTC.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// sqliteGateway implements Gateway over a local SQLite file.
type sqliteGateway struct {
	db  *sql.DB
	log *zap.Logger
}

func newSQLite(path string, log *zap.Logger) (*sqliteGateway, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting pragmas: %w", err)
	}

	return &sqliteGateway{db: db, log: log}, nil
}

func (g *sqliteGateway) CreateSchema(ctx context.Context) error {
	if _, err := g.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

func (g *sqliteGateway) Close() error {
	return g.db.Close()
}

func (g *sqliteGateway) GetServer(ctx context.Context, ip string, port uint16) (*domain.Server, error) {
	// Insert-or-ignore then re-query so concurrent fetch-or-creates for
	// the same key cannot trip the unique constraint
	if _, err := g.db.ExecContext(ctx, "INSERT OR IGNORE INTO servers (ip, port) VALUES (?, ?)", ip, port); err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	var srv domain.Server
	if err := g.db.QueryRowContext(ctx, "SELECT id FROM servers WHERE ip = ? AND port = ?", ip, port).Scan(&srv.ID); err != nil {
		return nil, err
	}
	return &srv, nil
}

func (g *sqliteGateway) GetMap(ctx context.Context, name string) (*domain.Map, error) {
	if _, err := g.db.ExecContext(ctx, "INSERT OR IGNORE INTO maps (name) VALUES (?)", name); err != nil {
		return nil, fmt.Errorf("creating map: %w", err)
	}
	m := domain.Map{Name: name}
	if err := g.db.QueryRowContext(ctx, "SELECT id FROM maps WHERE name = ?", name).Scan(&m.ID); err != nil {
		return nil, err
	}
	return &m, nil
}

func (g *sqliteGateway) GetPlayer(ctx context.Context, steamID uint64) (*domain.Player, error) {
	now := time.Now().UTC()
	if _, err := g.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO players (steam_id, first_seen, last_seen) VALUES (?, ?, ?)
	`, int64(steamID), formatTimestamp(now), formatTimestamp(now)); err != nil {
		return nil, fmt.Errorf("creating player: %w", err)
	}
	var p domain.Player
	if err := g.db.QueryRowContext(ctx, `
		SELECT id, first_seen, last_seen FROM players WHERE steam_id = ?
	`, int64(steamID)).Scan(&p.ID, &p.FirstSeen, &p.LastSeen); err != nil {
		return nil, err
	}
	return &p, nil
}

func (g *sqliteGateway) GetSession(ctx context.Context, playerID, serverID, mapID int64, ip string) (*domain.Session, error) {
	now := formatTimestamp(time.Now().UTC())
	result, err := g.db.ExecContext(ctx, `
		INSERT INTO sessions (player_id, server_id, map_id, ip, started_at, last_seen)
		VALUES (?, ?, ?, ?, ?, ?)
	`, playerID, serverID, mapID, ip, now, now)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	var s domain.Session
	if s.ID, err = result.LastInsertId(); err != nil {
		return nil, fmt.Errorf("reading session id: %w", err)
	}
	return &s, nil
}

func (g *sqliteGateway) GetAlias(ctx context.Context, playerID int64) (*domain.Alias, error) {
	var a domain.Alias
	err := g.db.QueryRowContext(ctx, `
		SELECT session_id, player_id, name, created_at FROM aliases
		WHERE player_id = ? ORDER BY id DESC LIMIT 1
	`, playerID).Scan(&a.SessionID, &a.PlayerID, &a.Name, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (g *sqliteGateway) InsertAlias(ctx context.Context, sessionID, playerID, serverID, mapID int64, name string) error {
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO aliases (session_id, player_id, server_id, map_id, name, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sessionID, playerID, serverID, mapID, name, formatTimestamp(time.Now().UTC()))
	return err
}

func (g *sqliteGateway) InsertMessage(ctx context.Context, sessionID, playerID, mapID int64, kind domain.MessageKind, text string) error {
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO messages (session_id, player_id, map_id, kind, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sessionID, playerID, mapID, int(kind), text, formatTimestamp(time.Now().UTC()))
	return err
}

func (g *sqliteGateway) UpdateSessionsBulk(ctx context.Context, playerIDs, sessionIDs []int64) error {
	if len(playerIDs) == 0 && len(sessionIDs) == 0 {
		return nil
	}
	now := formatTimestamp(time.Now().UTC())

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if len(playerIDs) > 0 {
		query := fmt.Sprintf("UPDATE players SET last_seen = ? WHERE id IN (%s)", placeholders(len(playerIDs)))
		if _, err := tx.ExecContext(ctx, query, idArgs(now, playerIDs)...); err != nil {
			return fmt.Errorf("touching players: %w", err)
		}
	}
	if len(sessionIDs) > 0 {
		query := fmt.Sprintf("UPDATE sessions SET last_seen = ? WHERE id IN (%s)", placeholders(len(sessionIDs)))
		if _, err := tx.ExecContext(ctx, query, idArgs(now, sessionIDs)...); err != nil {
			return fmt.Errorf("touching sessions: %w", err)
		}
	}

	return tx.Commit()
}

func (g *sqliteGateway) UpdateSeen(ctx context.Context, playerID int64) error {
	_, err := g.db.ExecContext(ctx, `
		UPDATE players SET last_seen = ? WHERE id = ?
	`, formatTimestamp(time.Now().UTC()), playerID)
	return err
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func idArgs(now string, ids []int64) []interface{} {
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, now)
	for _, id := range ids {
		args = append(args, id)
	}
	return args
}
