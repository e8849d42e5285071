package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"memberdir/internal/announcement/models"
	"memberdir/internal/platform/postgres"
	"memberdir/pkg/platform/sentinel"
)

// PostgresStore persists announcements; recipients are a TEXT[] column.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, a *models.Announcement) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO announcements (id, owner_id, title, body, recipients, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.OwnerID, a.Title, a.Body, pq.Array(a.Recipients), a.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert announcement: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Announcement, error) {
	var a models.Announcement
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, title, body, recipients, created_at
		FROM announcements WHERE id = $1`, id,
	).Scan(&a.ID, &a.OwnerID, &a.Title, &a.Body, pq.Array(&a.Recipients), &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find announcement: %w", err)
	}
	return &a, nil
}
