package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres keeps the backup object in a single-row-per-name table, another
// self-hosted target for deployments that already run a database.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, wrapPg(err)
	}

	p := &Postgres{pool: pool}
	if err := p.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS backup_objects (
			name        TEXT PRIMARY KEY,
			payload     JSONB NOT NULL,
			modified_at TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return wrapPg(err)
	}
	return nil
}

func (p *Postgres) Name() string { return "postgres" }

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) Find(ctx context.Context, name string) (*ObjectInfo, error) {
	var modified time.Time
	err := p.pool.QueryRow(ctx,
		`SELECT modified_at FROM backup_objects WHERE name = $1`, name,
	).Scan(&modified)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrapPg(err)
	}
	return &ObjectInfo{ID: name, ModifiedAt: modified}, nil
}

func (p *Postgres) Upload(ctx context.Context, id string, name string, payload []byte) (*ObjectInfo, error) {
	key := id
	if key == "" {
		key = name
	}
	now := time.Now().UTC()

	_, err := p.pool.Exec(ctx, `
		INSERT INTO backup_objects (name, payload, modified_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE
		SET payload = EXCLUDED.payload, modified_at = EXCLUDED.modified_at`,
		key, payload, now)
	if err != nil {
		return nil, wrapPg(err)
	}

	return &ObjectInfo{ID: key, ModifiedAt: now}, nil
}

func (p *Postgres) Download(ctx context.Context, id string) ([]byte, error) {
	var payload []byte
	err := p.pool.QueryRow(ctx,
		`SELECT payload FROM backup_objects WHERE name = $1`, id,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrapPg(err)
	}
	return payload, nil
}

func wrapPg(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 28xxx: invalid authorization, 42501: insufficient privilege.
		if len(pgErr.Code) == 5 && (pgErr.Code[:2] == "28" || pgErr.Code == "42501") {
			return fmt.Errorf("%w: %v", ErrAuth, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
