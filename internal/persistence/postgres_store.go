package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MimeLyc/srs-generator/internal/jobs"
	"github.com/MimeLyc/srs-generator/pkg/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgJobColumns = `id::text, owner, name, description, status, pdf_ref, word_ref, rating, annotations, created_at, updated_at`

// PostgresConfig tunes the connection pool.
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

func DefaultPostgresConfig(dsn string) PostgresConfig {
	return PostgresConfig{
		DSN:             dsn,
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
		DialTimeout:     5 * time.Second,
	}
}

// PostgresStore is a jobs.Store for deployments that share one database
// between several service instances.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ jobs.Store = (*PostgresStore)(nil)

func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("database url is required")
	}
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.MinConns = cfg.MinConns
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "srs-generator"

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresStore{pool: pool, now: time.Now}
	if err := store.init(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	log.Info("Connected to postgres job store")
	return store, nil
}

func (s *PostgresStore) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *PostgresStore) init(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	migrations, err := loadMigrations("postgres")
	if err != nil {
		return err
	}
	for _, m := range migrations {
		var exists int
		if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = $1`, m.version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", m.name, err)
		}
		if exists > 0 {
			continue
		}
		if _, err := s.pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
		if _, err := s.pool.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT DO NOTHING`, m.version); err != nil {
			return fmt.Errorf("record migration %s: %w", m.name, err)
		}
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, job *jobs.Job) (string, error) {
	if job == nil {
		return "", fmt.Errorf("job is nil")
	}
	now := s.now().UTC()
	createdAt := job.CreatedAt.UTC()
	if job.CreatedAt.IsZero() {
		createdAt = now
	}
	status := job.Status
	if status == "" {
		status = jobs.StatusPending
	}

	var owner *string
	if v := jobs.NormalizeOwner(job.Owner); v != "" {
		owner = &v
	}

	id := uuid.NewString()
	_, err := s.pool.Exec(
		ctx,
		`INSERT INTO srs_jobs (id, owner, name, description, status, pdf_ref, word_ref, rating, annotations, created_at, updated_at)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id,
		owner,
		job.Name,
		job.Description,
		string(status),
		job.PdfRef,
		job.WordRef,
		job.Rating,
		nonNil(job.Annotations),
		createdAt,
		now,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, u jobs.Update) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, jobs.ErrInvalidID
	}
	if err := u.Validate(); err != nil {
		return false, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	job, err := scanPgJob(tx.QueryRow(ctx, `SELECT `+pgJobColumns+` FROM srs_jobs WHERE id = $1::uuid FOR UPDATE`, id))
	if errors.Is(err, jobs.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := u.Apply(job, s.now().UTC()); err != nil {
		return false, err
	}

	tag, err := tx.Exec(
		ctx,
		`UPDATE srs_jobs SET name = $1, status = $2, pdf_ref = $3, word_ref = $4, updated_at = $5 WHERE id = $6::uuid`,
		job.Name,
		string(job.Status),
		job.PdfRef,
		job.WordRef,
		job.UpdatedAt,
		id,
	)
	if err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) SaveFeedback(ctx context.Context, id string, f jobs.Feedback) (*jobs.Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, jobs.ErrInvalidID
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	job, err := scanPgJob(tx.QueryRow(ctx, `SELECT `+pgJobColumns+` FROM srs_jobs WHERE id = $1::uuid FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if err := f.Apply(job, s.now().UTC()); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(
		ctx,
		`UPDATE srs_jobs SET rating = $1, annotations = $2, updated_at = $3 WHERE id = $4::uuid`,
		job.Rating,
		nonNil(job.Annotations),
		job.UpdatedAt,
		id,
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*jobs.Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, jobs.ErrInvalidID
	}
	return scanPgJob(s.pool.QueryRow(ctx, `SELECT `+pgJobColumns+` FROM srs_jobs WHERE id = $1::uuid`, id))
}

func (s *PostgresStore) FindByOwner(ctx context.Context, owner string) ([]*jobs.Job, error) {
	return s.query(
		ctx,
		`SELECT `+pgJobColumns+` FROM srs_jobs WHERE owner = $1 ORDER BY created_at DESC, id DESC`,
		jobs.NormalizeOwner(owner),
	)
}

func (s *PostgresStore) FindLatestByOwner(ctx context.Context, owner string) (*jobs.Job, error) {
	return scanPgJob(s.pool.QueryRow(
		ctx,
		`SELECT `+pgJobColumns+` FROM srs_jobs WHERE owner = $1 ORDER BY created_at DESC, id DESC LIMIT 1`,
		jobs.NormalizeOwner(owner),
	))
}

func (s *PostgresStore) FindStale(ctx context.Context, status jobs.Status, before time.Time) ([]*jobs.Job, error) {
	return s.query(
		ctx,
		`SELECT `+pgJobColumns+` FROM srs_jobs WHERE status = $1 AND updated_at < $2 ORDER BY created_at DESC, id DESC`,
		string(status),
		before.UTC(),
	)
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*jobs.Job, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*jobs.Job, 0)
	for rows.Next() {
		job, err := scanPgJob(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func scanPgJob(row pgx.Row) (*jobs.Job, error) {
	var (
		job    jobs.Job
		owner  *string
		status string
		rating *int32
	)
	err := row.Scan(
		&job.ID,
		&owner,
		&job.Name,
		&job.Description,
		&status,
		&job.PdfRef,
		&job.WordRef,
		&rating,
		&job.Annotations,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, jobs.ErrNotFound
		}
		return nil, err
	}
	if owner != nil {
		job.Owner = *owner
	}
	job.Status = jobs.Status(status)
	if rating != nil {
		v := int(*rating)
		job.Rating = &v
	}
	job.Annotations = nonNil(job.Annotations)
	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
	return &job, nil
}
