// Package photo accepts image uploads and hands them to object storage.
package photo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Photo is one uploaded image.
type Photo struct {
	ID           string    `json:"id"`
	Owner        string    `json:"owner,omitempty"`
	Bucket       string    `json:"bucket"`
	Key          string    `json:"key"`
	ContentType  string    `json:"contentType"`
	Size         int64     `json:"size"`
	OriginalName string    `json:"originalName,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ErrAlreadyRecorded is returned when the bucket/key pair is already stored.
var ErrAlreadyRecorded = errors.New("photo already recorded")

// Repository persists upload records in Postgres.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Record inserts an upload record.
func (r *Repository) Record(ctx context.Context, p *Photo) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO photos (id, owner, bucket, object_key, content_type, size_bytes, original_name, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.Owner, p.Bucket, p.Key, p.ContentType, p.Size, p.OriginalName, p.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyRecorded
		}
		return fmt.Errorf("record photo: %w", err)
	}
	return nil
}

// Recent returns the newest upload records for owner, newest first.
func (r *Repository) Recent(ctx context.Context, owner string, limit int) ([]Photo, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id::text, owner, bucket, object_key, content_type, size_bytes, original_name, created_at
		 FROM photos WHERE owner = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		owner, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent photos: %w", err)
	}

	photos, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Photo, error) {
		var p Photo
		err := row.Scan(&p.ID, &p.Owner, &p.Bucket, &p.Key, &p.ContentType, &p.Size, &p.OriginalName, &p.CreatedAt)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan recent photos: %w", err)
	}
	return photos, nil
}

// isUniqueViolation checks whether an error is a PostgreSQL unique_violation (code 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
