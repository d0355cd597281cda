package cache

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/raysh454/miru/internal/assert"
	"github.com/raysh454/miru/internal/logging"
)

//go:embed schema.sql
var schemaFS embed.FS

// SQLiteStore is the persistent verdict cache variant. It lets verdicts for
// unchanged page states survive across process runs, which matters when a
// whole suite is re-run after an unrelated change.
type SQLiteStore struct {
	db     *sql.DB
	logger logging.Logger
}

var _ assert.VerdictCache = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a verdict cache database at dir/verdicts.db.
func NewSQLiteStore(dir string, logger logging.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = logging.NoopLogger{}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dbPath := filepath.Join(dir, "verdicts.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply cache schema: %w", err)
	}

	logger.Info("persistent verdict cache opened", logging.Field{Key: "path", Value: dbPath})
	return &SQLiteStore{db: db, logger: logger}, nil
}

// applySchema applies the SQLite schema and sets appropriate pragmas.
func applySchema(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",   // Write-Ahead Logging for better concurrency
		"PRAGMA synchronous=NORMAL", // Balance between safety and performance
		"PRAGMA busy_timeout=5000",  // Wait up to 5 seconds on locked database
		"PRAGMA temp_store=MEMORY",  // Store temp tables in memory
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema.sql: %w", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(key assert.Key) (*assert.Verdict, bool, error) {
	var raw string
	err := s.db.QueryRow(
		`SELECT verdict_json FROM verdicts WHERE capture_hash = ? AND prompt_hash = ? AND model_tag = ?`,
		key.CaptureHash, key.PromptHash, key.ModelTag,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	var v assert.Verdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		// A corrupt row is treated as a miss; the cache is never authoritative.
		s.logger.Warn("dropping corrupt cache row", logging.Field{Key: "key", Value: key.String()})
		return nil, false, nil
	}
	return &v, true, nil
}

func (s *SQLiteStore) Put(key assert.Key, v *assert.Verdict) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache put: marshal verdict: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO verdicts (capture_hash, prompt_hash, model_tag, verdict_json, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		key.CaptureHash, key.PromptHash, key.ModelTag, string(raw), v.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM verdicts`); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
