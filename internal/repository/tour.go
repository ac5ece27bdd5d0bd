package repository

import (
	"context"
	"errors"
	"fmt"

	"santa-tracker-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint failure
const uniqueViolation = "23505"

const tourColumns = `id, tour_guide_id, name, city, state, zip_code, status, invite_code,
	started_at, completed_at, created_at`

// TourRepository handles database operations for tours
type TourRepository struct {
	db *pgxpool.Pool
}

// NewTourRepository creates a new tour repository
func NewTourRepository(db *pgxpool.Pool) *TourRepository {
	return &TourRepository{db: db}
}

func scanTour(row pgx.Row) (*models.Tour, error) {
	var t models.Tour
	err := row.Scan(
		&t.ID, &t.GuideID, &t.Name, &t.City, &t.State, &t.ZipCode, &t.Status, &t.InviteCode,
		&t.StartedAt, &t.CompletedAt, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create creates a new tour
func (r *TourRepository) Create(ctx context.Context, tour *models.Tour) error {
	query := `
		INSERT INTO tours (` + tourColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Exec(ctx, query,
		tour.ID, tour.GuideID, tour.Name, tour.City, tour.State, tour.ZipCode, tour.Status,
		tour.InviteCode, tour.StartedAt, tour.CompletedAt, tour.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create tour: %w", err)
	}
	return nil
}

// GetByID retrieves a tour by ID
func (r *TourRepository) GetByID(ctx context.Context, id string) (*models.Tour, error) {
	query := `SELECT ` + tourColumns + ` FROM tours WHERE id = $1`
	tour, err := scanTour(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("tour not found: %w", models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get tour: %w", err)
	}
	return tour, nil
}

// GetByInviteCode retrieves a tour by its public invite code
func (r *TourRepository) GetByInviteCode(ctx context.Context, code string) (*models.Tour, error) {
	query := `SELECT ` + tourColumns + ` FROM tours WHERE invite_code = $1`
	tour, err := scanTour(r.db.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("tour not found: %w", models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get tour by invite code: %w", err)
	}
	return tour, nil
}

// ListByGuide retrieves all tours of a guide, newest first
func (r *TourRepository) ListByGuide(ctx context.Context, guideID string) ([]*models.Tour, error) {
	query := `SELECT ` + tourColumns + ` FROM tours WHERE tour_guide_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, guideID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tours: %w", err)
	}
	defer rows.Close()

	var tours []*models.Tour
	for rows.Next() {
		tour, err := scanTour(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tour: %w", err)
		}
		tours = append(tours, tour)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tours: %w", err)
	}
	return tours, nil
}

// InviteCodeExists checks if an invite code is already taken
func (r *TourRepository) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM tours WHERE invite_code = $1)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check invite code existence: %w", err)
	}
	return exists, nil
}

// UpdateStatus persists status and lifecycle timestamps of a tour
func (r *TourRepository) UpdateStatus(ctx context.Context, tour *models.Tour) error {
	query := `UPDATE tours SET status = $1, started_at = $2, completed_at = $3 WHERE id = $4`
	result, err := r.db.Exec(ctx, query, tour.Status, tour.StartedAt, tour.CompletedAt, tour.ID)
	if err != nil {
		return fmt.Errorf("failed to update tour status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("tour not found: %w", models.ErrNotFound)
	}
	return nil
}

// Delete deletes a tour; families, children and visits cascade
func (r *TourRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM tours WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tour: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("tour not found: %w", models.ErrNotFound)
	}
	return nil
}
