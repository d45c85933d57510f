package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/kbcarlson3/meal-match/models"

	"github.com/mattn/go-sqlite3"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

// SQLite is a Store backed by a single SQLite file
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
// Safe to call repeatedly on the same file.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}

	// one writer; avoids SQLITE_BUSY under concurrent swipes
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close implements Store
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func isSQLiteUnique(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// fixed-width so lexical order is time order
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(sqliteTimeLayout) }

func parseTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }

// CreateGroup implements Groups
func (s *SQLite) CreateGroup(ctx context.Context, g models.Group) (models.Group, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Group{}, unavailable("create group: begin tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO groups (group_id, first_actor, created_at) VALUES (?, ?, ?)`,
		g.GroupID, g.First, formatTime(g.CreatedAt),
	); err != nil {
		if isSQLiteUnique(err) {
			return models.Group{}, models.ErrGroupExists
		}
		return models.Group{}, unavailable("create group: insert", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO group_members (actor_id, group_id) VALUES (?, ?)`, g.First, g.GroupID,
	); err != nil {
		if isSQLiteUnique(err) {
			return models.Group{}, models.ErrActorInGroup
		}
		return models.Group{}, unavailable("create group: member", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Group{}, unavailable("create group: commit", err)
	}
	g.Second = ""
	return g, nil
}

// JoinGroup implements Groups
func (s *SQLite) JoinGroup(ctx context.Context, groupID, actorID string) (models.Group, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Group{}, unavailable("join group: begin tx", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE groups SET second_actor = ? WHERE group_id = ? AND second_actor IS NULL`, actorID, groupID)
	if err != nil {
		return models.Group{}, unavailable("join group: update", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Group{}, unavailable("join group: rows affected", err)
	}
	if n == 0 {
		if _, err := s.getGroup(ctx, tx, groupID); err != nil {
			return models.Group{}, err
		}
		return models.Group{}, models.ErrGroupComplete
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO group_members (actor_id, group_id) VALUES (?, ?)`, actorID, groupID,
	); err != nil {
		if isSQLiteUnique(err) {
			return models.Group{}, models.ErrActorInGroup
		}
		return models.Group{}, unavailable("join group: member", err)
	}
	g, err := s.getGroup(ctx, tx, groupID)
	if err != nil {
		return models.Group{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Group{}, unavailable("join group: commit", err)
	}
	return g, nil
}

type rowQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLite) getGroup(ctx context.Context, q rowQueryer, groupID string) (models.Group, error) {
	var (
		g       models.Group
		second  sql.NullString
		created string
	)
	err := q.QueryRowContext(ctx,
		`SELECT group_id, first_actor, second_actor, created_at FROM groups WHERE group_id = ?`, groupID,
	).Scan(&g.GroupID, &g.First, &second, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Group{}, models.ErrGroupNotFound
	}
	if err != nil {
		return models.Group{}, unavailable("get group", err)
	}
	g.Second = second.String
	if g.CreatedAt, err = parseTime(created); err != nil {
		return models.Group{}, fmt.Errorf("get group: created_at: %w", err)
	}
	return g, nil
}

// GetGroup implements Groups
func (s *SQLite) GetGroup(ctx context.Context, groupID string) (models.Group, error) {
	return s.getGroup(ctx, s.db, groupID)
}

// GroupForActor implements Groups
func (s *SQLite) GroupForActor(ctx context.Context, actorID string) (models.Group, error) {
	var groupID string
	err := s.db.QueryRowContext(ctx,
		`SELECT group_id FROM group_members WHERE actor_id = ?`, actorID).Scan(&groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Group{}, models.ErrGroupNotFound
	}
	if err != nil {
		return models.Group{}, unavailable("group for actor", err)
	}
	return s.getGroup(ctx, s.db, groupID)
}

// InsertPreference implements Ledger
func (s *SQLite) InsertPreference(ctx context.Context, e models.PreferenceEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (event_id, actor_id, item_id, group_id, direction, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.EventID, e.ActorID, e.ItemID, e.GroupID, string(e.Direction), formatTime(e.CreatedAt),
	)
	if err != nil {
		if isSQLiteUnique(err) {
			return models.ErrDuplicatePreference
		}
		return unavailable("insert preference", err)
	}
	return nil
}

// GetPreference implements Ledger
func (s *SQLite) GetPreference(ctx context.Context, key models.PreferenceKey) (models.PreferenceEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT event_id, actor_id, item_id, group_id, direction, created_at
		FROM preferences
		WHERE actor_id = ? AND item_id = ? AND group_id = ?`,
		key.ActorID, key.ItemID, key.GroupID,
	)
	e, err := scanPreference(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PreferenceEvent{}, models.ErrPreferenceNotFound
	}
	if err != nil {
		return models.PreferenceEvent{}, unavailable("get preference", err)
	}
	return e, nil
}

// ListPreferences implements Ledger
func (s *SQLite) ListPreferences(ctx context.Context, groupID, actorID string) ([]models.PreferenceEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, actor_id, item_id, group_id, direction, created_at
		FROM preferences
		WHERE group_id = ? AND actor_id = ?
		ORDER BY created_at, item_id`,
		groupID, actorID,
	)
	if err != nil {
		return nil, unavailable("list preferences", err)
	}
	defer rows.Close()

	out := []models.PreferenceEvent{}
	for rows.Next() {
		e, err := scanPreference(rows)
		if err != nil {
			return nil, unavailable("list preferences: scan", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list preferences: rows", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPreference(sc scanner) (models.PreferenceEvent, error) {
	var (
		e         models.PreferenceEvent
		direction string
		created   string
	)
	if err := sc.Scan(&e.EventID, &e.ActorID, &e.ItemID, &e.GroupID, &direction, &created); err != nil {
		return models.PreferenceEvent{}, err
	}
	e.Direction = models.Direction(direction)
	t, err := parseTime(created)
	if err != nil {
		return models.PreferenceEvent{}, err
	}
	e.CreatedAt = t
	return e, nil
}

const sqliteMatchColumns = `match_id, group_id, item_id, is_favorite, matched_at, trigger_event_id`

func scanMatch(sc scanner) (models.MatchRecord, error) {
	var (
		m       models.MatchRecord
		matched string
	)
	if err := sc.Scan(&m.MatchID, &m.GroupID, &m.ItemID, &m.IsFavorite, &matched, &m.TriggerEventID); err != nil {
		return models.MatchRecord{}, err
	}
	t, err := parseTime(matched)
	if err != nil {
		return models.MatchRecord{}, err
	}
	m.MatchedAt = t
	return m, nil
}

// InsertMatchIfAbsent implements Matches. The UNIQUE (group_id, item_id)
// constraint decides the winner; RowsAffected tells this caller whether it won.
func (s *SQLite) InsertMatchIfAbsent(ctx context.Context, m models.MatchRecord) (models.MatchRecord, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.MatchRecord{}, false, unavailable("insert match: begin tx", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO matches (`+sqliteMatchColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (group_id, item_id) DO NOTHING`,
		m.MatchID, m.GroupID, m.ItemID, m.IsFavorite, formatTime(m.MatchedAt), m.TriggerEventID,
	)
	if err != nil {
		return models.MatchRecord{}, false, unavailable("insert match", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.MatchRecord{}, false, unavailable("insert match: rows affected", err)
	}

	stored, err := scanMatch(tx.QueryRowContext(ctx,
		`SELECT `+sqliteMatchColumns+` FROM matches WHERE group_id = ? AND item_id = ?`, m.GroupID, m.ItemID))
	if err != nil {
		return models.MatchRecord{}, false, unavailable("insert match: select", err)
	}
	if err := tx.Commit(); err != nil {
		return models.MatchRecord{}, false, unavailable("insert match: commit", err)
	}
	return stored, n > 0, nil
}

// ListMatches implements Matches
func (s *SQLite) ListMatches(ctx context.Context, groupID string) ([]models.MatchRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteMatchColumns+` FROM matches WHERE group_id = ? ORDER BY matched_at, item_id`, groupID)
	if err != nil {
		return nil, unavailable("list matches", err)
	}
	defer rows.Close()

	out := []models.MatchRecord{}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, unavailable("list matches: scan", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list matches: rows", err)
	}
	return out, nil
}

// GetMatch implements Matches
func (s *SQLite) GetMatch(ctx context.Context, matchID string) (models.MatchRecord, error) {
	m, err := scanMatch(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteMatchColumns+` FROM matches WHERE match_id = ?`, matchID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.MatchRecord{}, models.ErrMatchNotFound
	}
	if err != nil {
		return models.MatchRecord{}, unavailable("get match", err)
	}
	return m, nil
}

// SetFavorite implements Matches
func (s *SQLite) SetFavorite(ctx context.Context, matchID string, favorite bool) (models.MatchRecord, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE matches SET is_favorite = ? WHERE match_id = ?`, favorite, matchID)
	if err != nil {
		return models.MatchRecord{}, unavailable("set favorite", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return models.MatchRecord{}, unavailable("set favorite: rows affected", err)
	} else if n == 0 {
		return models.MatchRecord{}, models.ErrMatchNotFound
	}
	return s.GetMatch(ctx, matchID)
}

// PutPushToken implements Endpoints
func (s *SQLite) PutPushToken(ctx context.Context, t models.PushToken) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO push_tokens (actor_id, token, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (actor_id) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at`,
		t.ActorID, t.Token, formatTime(t.UpdatedAt),
	)
	if err != nil {
		return unavailable("put push token", err)
	}
	return nil
}

// GetPushToken implements Endpoints
func (s *SQLite) GetPushToken(ctx context.Context, actorID string) (models.PushToken, error) {
	var (
		t       models.PushToken
		updated string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT actor_id, token, updated_at FROM push_tokens WHERE actor_id = ?`, actorID,
	).Scan(&t.ActorID, &t.Token, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PushToken{}, models.ErrNoEndpoint
	}
	if err != nil {
		return models.PushToken{}, unavailable("get push token", err)
	}
	if t.Token == "" {
		return models.PushToken{}, models.ErrNoEndpoint
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return models.PushToken{}, fmt.Errorf("get push token: updated_at: %w", err)
	}
	return t, nil
}
