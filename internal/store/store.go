package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store owns the single durable SQLite database behind the tracker: the
// pattern registry rows, today's live counts, the daily rollups, and the
// message archive used for history replay. Opened once at process start.
type Store struct {
	db *sql.DB
}

// TypeRow is a persisted egg type.
type TypeRow struct {
	Name    string
	Pattern string
	Emoji   string
}

// ArchivedMessage is one ingested event retained for history replay. Text is
// the already-extracted classification surface, not the raw platform payload.
type ArchivedMessage struct {
	ID         int64
	Channel    string
	SenderID   string
	ChatID     string
	Timestamp  time.Time
	Text       string
	Automation bool
}

func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS egg_types (
			name TEXT PRIMARY KEY,
			pattern TEXT NOT NULL,
			emoji TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS live_counts (
			name TEXT PRIMARY KEY,
			count INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS daily_rollups (
			date TEXT NOT NULL,
			name TEXT NOT NULL,
			count INTEGER NOT NULL,
			PRIMARY KEY(date, name)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rollups_date ON daily_rollups(date)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			channel TEXT NOT NULL,
			sender_id TEXT NOT NULL DEFAULT '',
			chat_id TEXT NOT NULL DEFAULT '',
			ts TEXT NOT NULL,
			text TEXT NOT NULL,
			automation INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_ts ON messages(ts)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- egg types ----

func (s *Store) SaveType(row TypeRow) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO egg_types(name, pattern, emoji) VALUES(?, ?, ?)`,
		row.Name, row.Pattern, row.Emoji,
	)
	if err != nil {
		return fmt.Errorf("save type %q: %w", row.Name, err)
	}
	return nil
}

// DeleteType removes a type and cascades to its live count and rollup rows.
func (s *Store) DeleteType(name string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("delete type %q: %w", name, err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM egg_types WHERE name = ?`,
		`DELETE FROM live_counts WHERE name = ?`,
		`DELETE FROM daily_rollups WHERE name = ?`,
	} {
		if _, err := tx.Exec(q, name); err != nil {
			return fmt.Errorf("delete type %q: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete type %q: %w", name, err)
	}
	return nil
}

func (s *Store) ListTypes() ([]TypeRow, error) {
	rows, err := s.db.Query(`SELECT name, pattern, COALESCE(emoji, '') FROM egg_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list types: %w", err)
	}
	defer rows.Close()

	var out []TypeRow
	for rows.Next() {
		var r TypeRow
		if err := rows.Scan(&r.Name, &r.Pattern, &r.Emoji); err != nil {
			return nil, fmt.Errorf("scan type: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate types: %w", err)
	}
	return out, nil
}

// ---- live counts ----

func (s *Store) SaveLiveCount(name string, count int) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO live_counts(name, count) VALUES(?, ?)`,
		name, count,
	)
	if err != nil {
		return fmt.Errorf("save live count %q: %w", name, err)
	}
	return nil
}

func (s *Store) LoadLiveCounts() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT name, count FROM live_counts`)
	if err != nil {
		return nil, fmt.Errorf("load live counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("scan live count: %w", err)
		}
		counts[name] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate live counts: %w", err)
	}
	return counts, nil
}

func (s *Store) ClearLiveCounts() error {
	if _, err := s.db.Exec(`DELETE FROM live_counts`); err != nil {
		return fmt.Errorf("clear live counts: %w", err)
	}
	return nil
}

// ---- daily rollups ----

func (s *Store) UpsertRollup(date, name string, count int) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO daily_rollups(date, name, count) VALUES(?, ?, ?)`,
		date, name, count,
	)
	if err != nil {
		return fmt.Errorf("upsert rollup %s/%s: %w", date, name, err)
	}
	return nil
}

// SumRollups returns the all-time total per type from the rollup table.
func (s *Store) SumRollups() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT name, SUM(count) FROM daily_rollups GROUP BY name`)
	if err != nil {
		return nil, fmt.Errorf("sum rollups: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]int)
	for rows.Next() {
		var name string
		var total sql.NullInt64
		if err := rows.Scan(&name, &total); err != nil {
			return nil, fmt.Errorf("scan rollup sum: %w", err)
		}
		totals[name] = int(total.Int64)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rollup sums: %w", err)
	}
	return totals, nil
}

// RollupSpan reports the oldest and newest rollup dates and the row count.
func (s *Store) RollupSpan() (oldest, newest string, n int, err error) {
	row := s.db.QueryRow(`SELECT COALESCE(MIN(date), ''), COALESCE(MAX(date), ''), COUNT(*) FROM daily_rollups`)
	if err := row.Scan(&oldest, &newest, &n); err != nil {
		return "", "", 0, fmt.Errorf("rollup span: %w", err)
	}
	return oldest, newest, n, nil
}

// PruneRollups deletes rollup rows dated before cutoff and compacts the file.
func (s *Store) PruneRollups(cutoff string) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM daily_rollups WHERE date < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune rollups: %w", err)
	}
	deleted, _ := res.RowsAffected()
	if _, err := s.db.Exec(`VACUUM`); err != nil {
		return deleted, fmt.Errorf("vacuum after prune: %w", err)
	}
	return deleted, nil
}

// ---- message archive ----

func (s *Store) AppendMessage(msg ArchivedMessage) error {
	automation := 0
	if msg.Automation {
		automation = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO messages(channel, sender_id, chat_id, ts, text, automation) VALUES(?, ?, ?, ?, ?, ?)`,
		msg.Channel, msg.SenderID, msg.ChatID, msg.Timestamp.UTC().Format(time.RFC3339), msg.Text, automation,
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// ReplayMessages streams archived messages with since <= ts < before to fn in
// timestamp order. A zero before means "up to now". fn errors abort the scan,
// as does ctx cancellation.
func (s *Store) ReplayMessages(ctx context.Context, since, before time.Time, fn func(ArchivedMessage) error) error {
	if before.IsZero() {
		before = time.Now()
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, channel, sender_id, chat_id, ts, text, automation
		 FROM messages WHERE ts >= ? AND ts < ? ORDER BY ts`,
		since.UTC().Format(time.RFC3339), before.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("replay messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var m ArchivedMessage
		var ts string
		var automation int
		if err := rows.Scan(&m.ID, &m.Channel, &m.SenderID, &m.ChatID, &ts, &m.Text, &automation); err != nil {
			return fmt.Errorf("scan message: %w", err)
		}
		m.Timestamp, _ = time.Parse(time.RFC3339, ts)
		m.Automation = automation == 1
		if err := fn(m); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate messages: %w", err)
	}
	return nil
}
