package analytics

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cpunion/replybot/pkg/types"
)

//go:embed schema.sql
var schemaSQL string

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// schemaVersion is bumped whenever schema.sql changes incompatibly.
const schemaVersion = 1

// ErrSchemaMismatch means the database was created by an incompatible version.
var ErrSchemaMismatch = errors.New("analytics schema version mismatch")

// Store persists post analysis, reply performance and API call counts in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the database at path. Use ":memory:" in tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create analytics dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// Each connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database location.
func (s *Store) Path() string { return s.path }

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// RecordPostAnalysis stores the scoring and verdict for a candidate post.
func (s *Store) RecordPostAnalysis(ctx context.Context, runID string, post *types.Post, engagementScore float64, verdict *types.QualityVerdict, at time.Time) error {
	var accepted, rationale any
	if verdict != nil {
		accepted = boolInt(verdict.Accepted)
		rationale = verdict.Rationale
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO post_analysis (
            post_id, run_id, author, text, created_at, likes, reposts, replies,
            engagement_score, accepted, rationale, analyzed_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		post.ID,
		runID,
		string(post.Author),
		post.Text,
		formatTime(post.CreatedAt),
		post.Engagement.Likes,
		post.Engagement.Reposts,
		post.Engagement.Replies,
		engagementScore,
		accepted,
		rationale,
		formatTime(at),
	)
	if err != nil {
		return fmt.Errorf("insert post analysis: %w", err)
	}
	return nil
}

// Reply is a posted reply tracked for engagement.
type Reply struct {
	ReplyID     string
	PostID      string
	Persona     types.PersonaTag
	Text        string
	Score       float64
	PostedAt    time.Time
	Engagement  types.Engagement
	LastChecked time.Time
}

// RecordReply stores a newly posted reply.
func (s *Store) RecordReply(ctx context.Context, r Reply) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO reply_performance (
            reply_id, post_id, persona, reply_text, score, posted_at
        ) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ReplyID,
		r.PostID,
		string(r.Persona),
		r.Text,
		r.Score,
		formatTime(r.PostedAt),
	)
	if err != nil {
		return fmt.Errorf("insert reply: %w", err)
	}
	return nil
}

// DueForRefresh lists replies posted more than minAge ago that have not been
// checked within the last minAge.
func (s *Store) DueForRefresh(ctx context.Context, now time.Time, minAge time.Duration) ([]Reply, error) {
	cutoff := formatTime(now.Add(-minAge))
	rows, err := s.db.QueryContext(ctx,
		`SELECT reply_id, post_id, persona, reply_text, score, posted_at, likes, reposts, replies, last_checked
         FROM reply_performance
         WHERE posted_at < ? AND (last_checked IS NULL OR last_checked < ?)
         ORDER BY posted_at DESC`,
		cutoff, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("query replies: %w", err)
	}
	defer rows.Close()

	var out []Reply
	for rows.Next() {
		var (
			r           Reply
			persona     string
			postedAt    string
			lastChecked sql.NullString
		)
		if err := rows.Scan(&r.ReplyID, &r.PostID, &persona, &r.Text, &r.Score, &postedAt,
			&r.Engagement.Likes, &r.Engagement.Reposts, &r.Engagement.Replies, &lastChecked); err != nil {
			return nil, fmt.Errorf("scan reply: %w", err)
		}
		r.Persona = types.PersonaTag(persona)
		r.PostedAt = parseTime(postedAt)
		if lastChecked.Valid {
			r.LastChecked = parseTime(lastChecked.String)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateEngagement stores freshly observed counters for a reply.
func (s *Store) UpdateEngagement(ctx context.Context, replyID string, e types.Engagement, checkedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reply_performance SET likes = ?, reposts = ?, replies = ?, last_checked = ? WHERE reply_id = ?`,
		e.Likes, e.Reposts, e.Replies, formatTime(checkedAt), replyID,
	)
	if err != nil {
		return fmt.Errorf("update engagement: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update engagement: unknown reply %s", replyID)
	}
	return nil
}

// PersonaStats aggregates reply_performance per persona, best average first.
func (s *Store) PersonaStats(ctx context.Context) ([]types.PersonaStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT persona, COUNT(*), SUM(likes), SUM(reposts), SUM(replies),
                SUM(likes + reposts * 2 + replies * 3)
         FROM reply_performance
         GROUP BY persona
         ORDER BY CAST(SUM(likes + reposts * 2 + replies * 3) AS REAL) / COUNT(*) DESC, persona`,
	)
	if err != nil {
		return nil, fmt.Errorf("query persona stats: %w", err)
	}
	defer rows.Close()

	var out []types.PersonaStats
	for rows.Next() {
		var (
			st      types.PersonaStats
			persona string
		)
		if err := rows.Scan(&persona, &st.RepliesPosted, &st.Likes, &st.Reposts, &st.Replies, &st.EngagementTotal); err != nil {
			return nil, fmt.Errorf("scan persona stats: %w", err)
		}
		st.Persona = types.PersonaTag(persona)
		out = append(out, st)
	}
	return out, rows.Err()
}

// KeyUsage is the call count of one AI key on one day.
type KeyUsage struct {
	Day      string
	KeyIndex int
	Calls    int
	Failures int
}

// RecordAPICall counts one AI request against key keyIndex.
func (s *Store) RecordAPICall(ctx context.Context, keyIndex int, at time.Time, failed bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_calls (day, key_index, calls, failures) VALUES (?, ?, 1, ?)
         ON CONFLICT(day, key_index) DO UPDATE SET
            calls = calls + 1,
            failures = failures + excluded.failures`,
		at.UTC().Format(time.DateOnly), keyIndex, boolInt(failed),
	)
	if err != nil {
		return fmt.Errorf("record api call: %w", err)
	}
	return nil
}

// APICalls returns per-key usage for the given day.
func (s *Store) APICalls(ctx context.Context, day time.Time) ([]KeyUsage, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT day, key_index, calls, failures FROM api_calls WHERE day = ? ORDER BY key_index",
		day.UTC().Format(time.DateOnly),
	)
	if err != nil {
		return nil, fmt.Errorf("query api calls: %w", err)
	}
	defer rows.Close()

	var out []KeyUsage
	for rows.Next() {
		var u KeyUsage
		if err := rows.Scan(&u.Day, &u.KeyIndex, &u.Calls, &u.Failures); err != nil {
			return nil, fmt.Errorf("scan api calls: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
