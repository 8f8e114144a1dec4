// Package history keeps a rolling record of game server status samples in
// SQLite so the dashboard can chart player counts and outages.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/norelabs/dashsrv/internal/minecraft"
)

const schema = `
CREATE TABLE IF NOT EXISTS status_samples (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    server         TEXT NOT NULL,
    online         INTEGER NOT NULL,
    players_online INTEGER NOT NULL DEFAULT 0,
    players_max    INTEGER NOT NULL DEFAULT 0,
    ping_ms        INTEGER NOT NULL DEFAULT 0,
    error          TEXT NOT NULL DEFAULT '',
    sampled_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_status_samples_server ON status_samples(server, sampled_at);
`

// DefaultLimit caps Recent when the caller asks for zero or fewer rows.
const DefaultLimit = 100

// Sample is one recorded status query.
type Sample struct {
	ID            int64     `json:"id"`
	Server        string    `json:"server"`
	Online        bool      `json:"online"`
	PlayersOnline int       `json:"playersOnline"`
	PlayersMax    int       `json:"playersMax"`
	PingMS        uint64    `json:"ping"`
	Error         string    `json:"error,omitempty"`
	SampledAt     time.Time `json:"sampledAt"`
}

// Store provides SQLite-backed storage for status samples.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the history database at dbPath and runs migrations.
func OpenStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Record stores the outcome of one fresh query.
func (s *Store) Record(ctx context.Context, server string, st minecraft.ServerStatus, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO status_samples (
			server, online, players_online, players_max, ping_ms, error, sampled_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		server, st.Online, st.Players.Online, st.Players.Max, int64(st.PingMS), st.Error, at.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert status sample: %w", err)
	}
	return nil
}

// Recent returns up to limit samples for server, newest first.
func (s *Store) Recent(ctx context.Context, server string, limit int) ([]Sample, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, server, online, players_online, players_max, ping_ms, error, sampled_at
		FROM status_samples
		WHERE server = ?
		ORDER BY sampled_at DESC, id DESC
		LIMIT ?`, server, limit)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	samples := []Sample{}
	for rows.Next() {
		var sm Sample
		var ping, sampledAt int64
		if err := rows.Scan(
			&sm.ID, &sm.Server, &sm.Online, &sm.PlayersOnline, &sm.PlayersMax,
			&ping, &sm.Error, &sampledAt,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if ping > 0 {
			sm.PingMS = uint64(ping)
		}
		sm.SampledAt = time.UnixMilli(sampledAt).UTC()
		samples = append(samples, sm)
	}
	return samples, rows.Err()
}

// Prune deletes samples taken before cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM status_samples WHERE sampled_at < ?", cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune samples: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
