package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // database/sql driver "sqlite3"

	"github.com/kailas-cloud/polyqa/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS turns (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	session_id TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	original   TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, seq);
`

// addOriginalColumn upgrades databases created before turns carried the typed query.
const addOriginalColumn = `ALTER TABLE turns ADD COLUMN original TEXT NOT NULL DEFAULT ''`

type turnRow struct {
	ID        string    `db:"id"`
	SessionID string    `db:"session_id"`
	Role      string    `db:"role"`
	Content   string    `db:"content"`
	Original  string    `db:"original"`
	CreatedAt time.Time `db:"created_at"`
}

// SQLiteStore keeps turns in a local SQLite file. Meant for development and the CLI.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLite opens (or creates) the database at path and applies the schema.
// ":memory:" gives a throwaway database.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open %s: %w", path, err)
	}
	// One writer; also keeps ":memory:" on a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	if _, err := db.Exec(addOriginalColumn); err != nil && !strings.Contains(err.Error(), "duplicate column name") {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Driver returns the configured driver name.
func (s *SQLiteStore) Driver() string { return DriverSQLite }

// Append inserts turns in one transaction.
func (s *SQLiteStore) Append(ctx context.Context, turns ...domain.Turn) (err error) {
	defer func() { observe(DriverSQLite, "append", err) }()

	if len(turns) == 0 {
		return nil
	}
	prepared, err := prepare(turns)
	if err != nil {
		return fmt.Errorf("prepare turns: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, t := range prepared {
		row := turnRow{
			ID:        t.ID,
			SessionID: t.SessionID,
			Role:      string(t.Role),
			Content:   t.Content,
			Original:  t.Original,
			CreatedAt: t.CreatedAt,
		}
		_, err := tx.NamedExecContext(ctx,
			`INSERT INTO turns (id, session_id, role, content, original, created_at)
			 VALUES (:id, :session_id, :role, :content, :original, :created_at)`, row)
		if err != nil {
			return fmt.Errorf("insert turn: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// History returns the last limit turns of a session, oldest first. limit <= 0 returns all.
func (s *SQLiteStore) History(ctx context.Context, sessionID string, limit int) (_ []domain.Turn, err error) {
	defer func() { observe(DriverSQLite, "history", err) }()

	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	var rows []turnRow
	err = s.db.SelectContext(ctx, &rows,
		`SELECT id, session_id, role, content, original, created_at
		 FROM turns WHERE session_id = ? ORDER BY seq DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("select turns: %w", err)
	}

	turns := make([]domain.Turn, len(rows))
	for i, r := range rows {
		turns[i] = domain.Turn{
			ID:        r.ID,
			SessionID: r.SessionID,
			Role:      domain.Role(r.Role),
			Content:   r.Content,
			Original:  r.Original,
			CreatedAt: r.CreatedAt.UTC(),
		}
	}
	slices.Reverse(turns)
	return turns, nil
}

// Ping checks the database handle.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close(_ context.Context) error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("sqlite close: %w", err)
	}
	return nil
}
