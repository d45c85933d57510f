package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/kbcarlson3/meal-match/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema_postgres.sql
var postgresSchema string

const pgUniqueViolation = "23505"

// PostgresConfig configures the pgx pool
type PostgresConfig struct {
	URL      string
	MaxConns int32
}

// Postgres is a Store backed by a pgx connection pool
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects the pool. Call Migrate to apply the schema.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, unavailable("ping postgres", err)
	}
	return &Postgres{pool: pool}, nil
}

// Migrate applies the schema; idempotent
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("apply postgres schema: %w", err)
	}
	return nil
}

// Close implements Store
func (p *Postgres) Close() error {
	if p != nil && p.pool != nil {
		p.pool.Close()
	}
	return nil
}

func isPgUnique(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// CreateGroup implements Groups
func (p *Postgres) CreateGroup(ctx context.Context, g models.Group) (models.Group, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return models.Group{}, unavailable("create group: begin tx", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO groups (group_id, first_actor, created_at) VALUES ($1, $2, $3)`,
		g.GroupID, g.First, g.CreatedAt,
	); err != nil {
		if isPgUnique(err) {
			return models.Group{}, models.ErrGroupExists
		}
		return models.Group{}, unavailable("create group: insert", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO group_members (actor_id, group_id) VALUES ($1, $2)`, g.First, g.GroupID,
	); err != nil {
		if isPgUnique(err) {
			return models.Group{}, models.ErrActorInGroup
		}
		return models.Group{}, unavailable("create group: member", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return models.Group{}, unavailable("create group: commit", err)
	}
	g.Second = ""
	return g, nil
}

// JoinGroup implements Groups
func (p *Postgres) JoinGroup(ctx context.Context, groupID, actorID string) (models.Group, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return models.Group{}, unavailable("join group: begin tx", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE groups SET second_actor = $1 WHERE group_id = $2 AND second_actor IS NULL`, actorID, groupID)
	if err != nil {
		return models.Group{}, unavailable("join group: update", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := p.getGroup(ctx, tx, groupID); err != nil {
			return models.Group{}, err
		}
		return models.Group{}, models.ErrGroupComplete
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO group_members (actor_id, group_id) VALUES ($1, $2)`, actorID, groupID,
	); err != nil {
		if isPgUnique(err) {
			return models.Group{}, models.ErrActorInGroup
		}
		return models.Group{}, unavailable("join group: member", err)
	}
	g, err := p.getGroup(ctx, tx, groupID)
	if err != nil {
		return models.Group{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return models.Group{}, unavailable("join group: commit", err)
	}
	return g, nil
}

type pgQueryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (p *Postgres) getGroup(ctx context.Context, q pgQueryer, groupID string) (models.Group, error) {
	var (
		g      models.Group
		second *string
	)
	err := q.QueryRow(ctx,
		`SELECT group_id, first_actor, second_actor, created_at FROM groups WHERE group_id = $1`, groupID,
	).Scan(&g.GroupID, &g.First, &second, &g.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Group{}, models.ErrGroupNotFound
	}
	if err != nil {
		return models.Group{}, unavailable("get group", err)
	}
	if second != nil {
		g.Second = *second
	}
	return g, nil
}

// GetGroup implements Groups
func (p *Postgres) GetGroup(ctx context.Context, groupID string) (models.Group, error) {
	return p.getGroup(ctx, p.pool, groupID)
}

// GroupForActor implements Groups
func (p *Postgres) GroupForActor(ctx context.Context, actorID string) (models.Group, error) {
	var groupID string
	err := p.pool.QueryRow(ctx, `SELECT group_id FROM group_members WHERE actor_id = $1`, actorID).Scan(&groupID)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Group{}, models.ErrGroupNotFound
	}
	if err != nil {
		return models.Group{}, unavailable("group for actor", err)
	}
	return p.getGroup(ctx, p.pool, groupID)
}

// InsertPreference implements Ledger
func (p *Postgres) InsertPreference(ctx context.Context, e models.PreferenceEvent) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO preferences (event_id, actor_id, item_id, group_id, direction, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.EventID, e.ActorID, e.ItemID, e.GroupID, string(e.Direction), e.CreatedAt,
	)
	if err != nil {
		if isPgUnique(err) {
			return models.ErrDuplicatePreference
		}
		return unavailable("insert preference", err)
	}
	return nil
}

const pgPreferenceColumns = `event_id, actor_id, item_id, group_id, direction, created_at`

func scanPgPreference(row pgx.Row) (models.PreferenceEvent, error) {
	var (
		e         models.PreferenceEvent
		direction string
	)
	if err := row.Scan(&e.EventID, &e.ActorID, &e.ItemID, &e.GroupID, &direction, &e.CreatedAt); err != nil {
		return models.PreferenceEvent{}, err
	}
	e.Direction = models.Direction(direction)
	return e, nil
}

// GetPreference implements Ledger
func (p *Postgres) GetPreference(ctx context.Context, key models.PreferenceKey) (models.PreferenceEvent, error) {
	e, err := scanPgPreference(p.pool.QueryRow(ctx,
		`SELECT `+pgPreferenceColumns+` FROM preferences WHERE actor_id = $1 AND item_id = $2 AND group_id = $3`,
		key.ActorID, key.ItemID, key.GroupID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.PreferenceEvent{}, models.ErrPreferenceNotFound
	}
	if err != nil {
		return models.PreferenceEvent{}, unavailable("get preference", err)
	}
	return e, nil
}

// ListPreferences implements Ledger
func (p *Postgres) ListPreferences(ctx context.Context, groupID, actorID string) ([]models.PreferenceEvent, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+pgPreferenceColumns+` FROM preferences WHERE group_id = $1 AND actor_id = $2 ORDER BY created_at, item_id`,
		groupID, actorID)
	if err != nil {
		return nil, unavailable("list preferences", err)
	}
	defer rows.Close()

	out := []models.PreferenceEvent{}
	for rows.Next() {
		e, err := scanPgPreference(rows)
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

const pgMatchColumns = `match_id, group_id, item_id, is_favorite, matched_at, trigger_event_id`

func scanPgMatch(row pgx.Row) (models.MatchRecord, error) {
	var m models.MatchRecord
	err := row.Scan(&m.MatchID, &m.GroupID, &m.ItemID, &m.IsFavorite, &m.MatchedAt, &m.TriggerEventID)
	return m, err
}

// InsertMatchIfAbsent implements Matches. ON CONFLICT DO NOTHING RETURNING
// yields a row only for the insert that won; the loser reads the winner's row
// in a fresh statement so it sees the committed conflict.
func (p *Postgres) InsertMatchIfAbsent(ctx context.Context, m models.MatchRecord) (models.MatchRecord, bool, error) {
	stored, err := scanPgMatch(p.pool.QueryRow(ctx, `
		INSERT INTO matches (match_id, group_id, item_id, is_favorite, matched_at, trigger_event_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (group_id, item_id) DO NOTHING
		RETURNING `+pgMatchColumns,
		m.MatchID, m.GroupID, m.ItemID, m.IsFavorite, m.MatchedAt, m.TriggerEventID,
	))
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.MatchRecord{}, false, unavailable("insert match", err)
	}

	stored, err = scanPgMatch(p.pool.QueryRow(ctx,
		`SELECT `+pgMatchColumns+` FROM matches WHERE group_id = $1 AND item_id = $2`, m.GroupID, m.ItemID))
	if err != nil {
		return models.MatchRecord{}, false, unavailable("insert match: select existing", err)
	}
	return stored, false, nil
}

// ListMatches implements Matches
func (p *Postgres) ListMatches(ctx context.Context, groupID string) ([]models.MatchRecord, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+pgMatchColumns+` FROM matches WHERE group_id = $1 ORDER BY matched_at, item_id`, groupID)
	if err != nil {
		return nil, unavailable("list matches", err)
	}
	defer rows.Close()

	out := []models.MatchRecord{}
	for rows.Next() {
		m, err := scanPgMatch(rows)
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
func (p *Postgres) GetMatch(ctx context.Context, matchID string) (models.MatchRecord, error) {
	m, err := scanPgMatch(p.pool.QueryRow(ctx,
		`SELECT `+pgMatchColumns+` FROM matches WHERE match_id = $1`, matchID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.MatchRecord{}, models.ErrMatchNotFound
	}
	if err != nil {
		return models.MatchRecord{}, unavailable("get match", err)
	}
	return m, nil
}

// SetFavorite implements Matches
func (p *Postgres) SetFavorite(ctx context.Context, matchID string, favorite bool) (models.MatchRecord, error) {
	m, err := scanPgMatch(p.pool.QueryRow(ctx,
		`UPDATE matches SET is_favorite = $2 WHERE match_id = $1 RETURNING `+pgMatchColumns,
		matchID, favorite))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.MatchRecord{}, models.ErrMatchNotFound
	}
	if err != nil {
		return models.MatchRecord{}, unavailable("set favorite", err)
	}
	return m, nil
}

// PutPushToken implements Endpoints
func (p *Postgres) PutPushToken(ctx context.Context, t models.PushToken) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO push_tokens (actor_id, token, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (actor_id) DO UPDATE SET token = EXCLUDED.token, updated_at = EXCLUDED.updated_at`,
		t.ActorID, t.Token, t.UpdatedAt)
	if err != nil {
		return unavailable("put push token", err)
	}
	return nil
}

// GetPushToken implements Endpoints
func (p *Postgres) GetPushToken(ctx context.Context, actorID string) (models.PushToken, error) {
	var t models.PushToken
	err := p.pool.QueryRow(ctx,
		`SELECT actor_id, token, updated_at FROM push_tokens WHERE actor_id = $1`, actorID,
	).Scan(&t.ActorID, &t.Token, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.PushToken{}, models.ErrNoEndpoint
	}
	if err != nil {
		return models.PushToken{}, unavailable("get push token", err)
	}
	if t.Token == "" {
		return models.PushToken{}, models.ErrNoEndpoint
	}
	return t, nil
}
