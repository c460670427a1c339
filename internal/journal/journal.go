// Package journal persists the outcome of repository operations (fetch,
// update, commit, checkout) in a local SQLite database so the daemon can
// serve operation history across restarts.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const schemaVersion = 1

// Entry is one recorded operation.
type Entry struct {
	ID         string    `json:"id"`
	RepoID     string    `json:"repo_id"`
	Operation  string    `json:"operation"` // fetch, update, commit, checkout, stage, unstage
	Outcome    string    `json:"outcome,omitempty"`
	Detail     string    `json:"detail,omitempty"` // JSON payload, operation specific
	Success    bool      `json:"success"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Journal is a SQLite-backed operation log.
type Journal struct {
	db     *sql.DB
	dbPath string

	stmtInsert *sql.Stmt
	stmtRecent *sql.Stmt
	stmtByRepo *sql.Stmt
}

// Open opens (or creates) the journal database at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			log.Warn().Err(err).Str("pragma", pragma).Msg("failed to set pragma")
		}
	}

	j := &Journal{db: db, dbPath: path}

	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init journal schema: %w", err)
	}
	if err := j.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare journal statements: %w", err)
	}

	log.Debug().Str("db", path).Msg("operation journal opened")
	return j, nil
}

func (j *Journal) initSchema() error {
	var currentVersion int
	err := j.db.QueryRow("SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&currentVersion)
	if err != nil && err != sql.ErrNoRows {
		currentVersion = 0
	}
	if currentVersion >= schemaVersion {
		return nil
	}

	schema := `
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT
		);

		CREATE TABLE IF NOT EXISTS operations (
			id TEXT PRIMARY KEY,
			repo_id TEXT NOT NULL,
			operation TEXT NOT NULL,
			outcome TEXT,
			detail TEXT,
			success INTEGER NOT NULL DEFAULT 0,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_operations_repo ON operations(repo_id, finished_at DESC);
		CREATE INDEX IF NOT EXISTS idx_operations_finished ON operations(finished_at DESC);
	`
	if _, err := j.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	_, err = j.db.Exec("INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)", schemaVersion)
	return err
}

func (j *Journal) prepareStatements() error {
	var err error

	j.stmtInsert, err = j.db.Prepare(`
		INSERT INTO operations (id, repo_id, operation, outcome, detail, success, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}

	j.stmtRecent, err = j.db.Prepare(`
		SELECT id, repo_id, operation, outcome, detail, success, started_at, finished_at
		FROM operations
		ORDER BY finished_at DESC, id
		LIMIT ?
	`)
	if err != nil {
		return err
	}

	j.stmtByRepo, err = j.db.Prepare(`
		SELECT id, repo_id, operation, outcome, detail, success, started_at, finished_at
		FROM operations
		WHERE repo_id = ?
		ORDER BY finished_at DESC, id
		LIMIT ?
	`)
	return err
}

// Record persists one entry. A missing ID gets a generated one; the ID is
// returned either way.
func (j *Journal) Record(ctx context.Context, e Entry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.FinishedAt.IsZero() {
		e.FinishedAt = time.Now().UTC()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = e.FinishedAt
	}

	_, err := j.stmtInsert.ExecContext(ctx,
		e.ID,
		e.RepoID,
		e.Operation,
		e.Outcome,
		e.Detail,
		boolToInt(e.Success),
		e.StartedAt.UnixMilli(),
		e.FinishedAt.UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to record operation: %w", err)
	}
	return e.ID, nil
}

// Recent returns the latest entries across all repositories.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := j.stmtRecent.QueryContext(ctx, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ByRepo returns the latest entries for one repository.
func (j *Journal) ByRepo(ctx context.Context, repoID string, limit int) ([]Entry, error) {
	rows, err := j.stmtByRepo.QueryContext(ctx, repoID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Prune deletes entries finished before the cutoff and returns how many
// were removed.
func (j *Journal) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).UnixMilli()
	res, err := j.db.ExecContext(ctx, "DELETE FROM operations WHERE finished_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		log.Debug().Int64("pruned", n).Msg("journal entries pruned")
	}
	return n, nil
}

// Close closes the prepared statements and the database.
func (j *Journal) Close() error {
	for _, stmt := range []*sql.Stmt{j.stmtInsert, j.stmtRecent, j.stmtByRepo} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return j.db.Close()
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		var success int
		var started, finished int64
		var outcome, detail sql.NullString

		if err := rows.Scan(&e.ID, &e.RepoID, &e.Operation, &outcome, &detail, &success, &started, &finished); err != nil {
			return nil, err
		}
		e.Outcome = outcome.String
		e.Detail = detail.String
		e.Success = success != 0
		e.StartedAt = time.UnixMilli(started).UTC()
		e.FinishedAt = time.UnixMilli(finished).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
