package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MimeLyc/srs-generator/internal/jobs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const jobColumns = `id, owner, name, description, status, pdf_ref, word_ref, rating, annotations_json, created_at, updated_at`

// SQLiteStore is the default jobs.Store backed by a single SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ jobs.Store = (*SQLiteStore)(nil)

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	migrations, err := loadMigrations("sqlite")
	if err != nil {
		return err
	}
	for _, m := range migrations {
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, m.version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", m.name, err)
		}
		if exists > 0 {
			continue
		}
		if _, err := s.db.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, m.version); err != nil {
			return fmt.Errorf("record migration %s: %w", m.name, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Create(ctx context.Context, job *jobs.Job) (string, error) {
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
	annotations, err := json.Marshal(nonNil(job.Annotations))
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO srs_jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		nullString(jobs.NormalizeOwner(job.Owner)),
		job.Name,
		job.Description,
		string(status),
		job.PdfRef,
		job.WordRef,
		nullInt(job.Rating),
		string(annotations),
		createdAt,
		now,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLiteStore) Update(ctx context.Context, id string, u jobs.Update) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, jobs.ErrInvalidID
	}
	if err := u.Validate(); err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	job, err := scanJob(tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM srs_jobs WHERE id = ?`, id))
	if errors.Is(err, jobs.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := u.Apply(job, s.now().UTC()); err != nil {
		return false, err
	}

	res, err := tx.ExecContext(
		ctx,
		`UPDATE srs_jobs SET name = ?, status = ?, pdf_ref = ?, word_ref = ?, updated_at = ? WHERE id = ?`,
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
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) SaveFeedback(ctx context.Context, id string, f jobs.Feedback) (*jobs.Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, jobs.ErrInvalidID
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	job, err := scanJob(tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM srs_jobs WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if err := f.Apply(job, s.now().UTC()); err != nil {
		return nil, err
	}
	annotations, err := json.Marshal(nonNil(job.Annotations))
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE srs_jobs SET rating = ?, annotations_json = ?, updated_at = ? WHERE id = ?`,
		nullInt(job.Rating),
		string(annotations),
		job.UpdatedAt,
		id,
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *SQLiteStore) FindByID(ctx context.Context, id string) (*jobs.Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, jobs.ErrInvalidID
	}
	return scanJob(s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM srs_jobs WHERE id = ?`, id))
}

func (s *SQLiteStore) FindByOwner(ctx context.Context, owner string) ([]*jobs.Job, error) {
	return s.query(
		ctx,
		`SELECT `+jobColumns+` FROM srs_jobs WHERE owner = ? ORDER BY created_at DESC, id DESC`,
		jobs.NormalizeOwner(owner),
	)
}

func (s *SQLiteStore) FindLatestByOwner(ctx context.Context, owner string) (*jobs.Job, error) {
	return scanJob(s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM srs_jobs WHERE owner = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		jobs.NormalizeOwner(owner),
	))
}

func (s *SQLiteStore) FindStale(ctx context.Context, status jobs.Status, before time.Time) ([]*jobs.Job, error) {
	return s.query(
		ctx,
		`SELECT `+jobColumns+` FROM srs_jobs WHERE status = ? AND updated_at < ? ORDER BY created_at DESC, id DESC`,
		string(status),
		before.UTC(),
	)
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]*jobs.Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*jobs.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*jobs.Job, error) {
	var (
		job         jobs.Job
		owner       sql.NullString
		status      string
		rating      sql.NullInt64
		annotations string
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
		&annotations,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, jobs.ErrNotFound
		}
		return nil, err
	}
	job.Owner = owner.String
	job.Status = jobs.Status(status)
	if rating.Valid {
		v := int(rating.Int64)
		job.Rating = &v
	}
	if err := json.Unmarshal([]byte(annotations), &job.Annotations); err != nil {
		return nil, fmt.Errorf("decode annotations of job %s: %w", job.ID, err)
	}
	job.Annotations = nonNil(job.Annotations)
	return &job, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
