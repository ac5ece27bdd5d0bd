package repository

import (
	"context"
	"errors"
	"fmt"

	"santa-tracker-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GuideRepository handles database operations for tour guides
type GuideRepository struct {
	db *pgxpool.Pool
}

// NewGuideRepository creates a new guide repository
func NewGuideRepository(db *pgxpool.Pool) *GuideRepository {
	return &GuideRepository{db: db}
}

// Create creates a new tour guide
func (r *GuideRepository) Create(ctx context.Context, guide *models.TourGuide) error {
	query := `
		INSERT INTO tour_guides (id, email, name, password_hash, push_token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query,
		guide.ID, guide.Email, guide.Name, guide.PasswordHash, guide.PushToken, guide.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("email already registered: %w", models.ErrConflict)
		}
		return fmt.Errorf("failed to create tour guide: %w", err)
	}
	return nil
}

// GetByID retrieves a tour guide by ID
func (r *GuideRepository) GetByID(ctx context.Context, id string) (*models.TourGuide, error) {
	query := `
		SELECT id, email, name, password_hash, push_token, created_at
		FROM tour_guides
		WHERE id = $1
	`
	return r.scanOne(ctx, query, id)
}

// GetByEmail retrieves a tour guide by email
func (r *GuideRepository) GetByEmail(ctx context.Context, email string) (*models.TourGuide, error) {
	query := `
		SELECT id, email, name, password_hash, push_token, created_at
		FROM tour_guides
		WHERE email = $1
	`
	return r.scanOne(ctx, query, email)
}

func (r *GuideRepository) scanOne(ctx context.Context, query string, arg any) (*models.TourGuide, error) {
	var guide models.TourGuide
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&guide.ID, &guide.Email, &guide.Name, &guide.PasswordHash, &guide.PushToken, &guide.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("tour guide not found: %w", models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get tour guide: %w", err)
	}
	return &guide, nil
}

// UpdatePushToken updates the push token for a guide
func (r *GuideRepository) UpdatePushToken(ctx context.Context, guideID string, pushToken *string) error {
	query := `UPDATE tour_guides SET push_token = $1 WHERE id = $2`
	result, err := r.db.Exec(ctx, query, pushToken, guideID)
	if err != nil {
		return fmt.Errorf("failed to update push token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("tour guide not found: %w", models.ErrNotFound)
	}
	return nil
}
