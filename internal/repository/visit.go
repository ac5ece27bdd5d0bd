package repository

import (
	"context"
	"errors"
	"fmt"

	"santa-tracker-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const visitColumns = `id, tour_id, family_id, sort_order, status, started_at, completed_at,
	sms_response, sms_response_at, created_at`

// VisitRepository handles database operations for visits
type VisitRepository struct {
	db *pgxpool.Pool
}

// NewVisitRepository creates a new visit repository
func NewVisitRepository(db *pgxpool.Pool) *VisitRepository {
	return &VisitRepository{db: db}
}

func scanVisit(row pgx.Row) (*models.Visit, error) {
	var v models.Visit
	err := row.Scan(
		&v.ID, &v.TourID, &v.FamilyID, &v.Order, &v.Status, &v.StartedAt, &v.CompletedAt,
		&v.SMSResponse, &v.SMSResponseAt, &v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ReplaceForTour deletes every visit of a tour and inserts the given ones in one transaction
func (r *VisitRepository) ReplaceForTour(ctx context.Context, tourID string, visits []*models.Visit) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM visits WHERE tour_id = $1`, tourID); err != nil {
		return fmt.Errorf("failed to clear visits: %w", err)
	}

	if len(visits) > 0 {
		batch := &pgx.Batch{}
		for _, v := range visits {
			batch.Queue(`
				INSERT INTO visits (`+visitColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			`, v.ID, v.TourID, v.FamilyID, v.Order, v.Status, v.StartedAt, v.CompletedAt,
				v.SMSResponse, v.SMSResponseAt, v.CreatedAt)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to create visits: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit visits: %w", err)
	}
	return nil
}

// GetByID retrieves a visit by ID
func (r *VisitRepository) GetByID(ctx context.Context, id string) (*models.Visit, error) {
	query := `SELECT ` + visitColumns + ` FROM visits WHERE id = $1`
	visit, err := scanVisit(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("visit not found: %w", models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get visit: %w", err)
	}
	return visit, nil
}

// ListByTour retrieves the visits of a tour in queue order
func (r *VisitRepository) ListByTour(ctx context.Context, tourID string) ([]*models.Visit, error) {
	query := `SELECT ` + visitColumns + ` FROM visits WHERE tour_id = $1 ORDER BY sort_order ASC, created_at ASC`
	return r.list(ctx, query, tourID)
}

// ListActive retrieves the ON_WAY or VISITING visits of a tour
func (r *VisitRepository) ListActive(ctx context.Context, tourID string) ([]*models.Visit, error) {
	query := `
		SELECT ` + visitColumns + ` FROM visits
		WHERE tour_id = $1 AND status IN ('ON_WAY', 'VISITING')
		ORDER BY sort_order ASC
	`
	return r.list(ctx, query, tourID)
}

func (r *VisitRepository) list(ctx context.Context, query string, args ...any) ([]*models.Visit, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list visits: %w", err)
	}
	defer rows.Close()

	visits := []*models.Visit{}
	for rows.Next() {
		visit, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		visits = append(visits, visit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating visits: %w", err)
	}
	return visits, nil
}

// Update persists the mutable fields of a visit
func (r *VisitRepository) Update(ctx context.Context, visit *models.Visit) error {
	query := `
		UPDATE visits
		SET sort_order = $1, status = $2, started_at = $3, completed_at = $4,
			sms_response = $5, sms_response_at = $6
		WHERE id = $7
	`
	result, err := r.db.Exec(ctx, query,
		visit.Order, visit.Status, visit.StartedAt, visit.CompletedAt,
		visit.SMSResponse, visit.SMSResponseAt, visit.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update visit: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("visit not found: %w", models.ErrNotFound)
	}
	return nil
}

// Requeue persists a requeued visit and moves its family to the same order in one transaction
func (r *VisitRepository) Requeue(ctx context.Context, visit *models.Visit) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
		UPDATE visits
		SET sort_order = $1, status = $2, started_at = NULL, completed_at = NULL
		WHERE id = $3
	`, visit.Order, visit.Status, visit.ID)
	if err != nil {
		return fmt.Errorf("failed to requeue visit: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("visit not found: %w", models.ErrNotFound)
	}

	if _, err := tx.Exec(ctx, `UPDATE families SET sort_order = $1 WHERE id = $2`, visit.Order, visit.FamilyID); err != nil {
		return fmt.Errorf("failed to move family: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit requeue: %w", err)
	}
	return nil
}

// NextPending returns the lowest-ordered PENDING visit with an order greater
// than after, or nil when there is none.
func (r *VisitRepository) NextPending(ctx context.Context, tourID string, after int) (*models.Visit, error) {
	query := `
		SELECT ` + visitColumns + ` FROM visits
		WHERE tour_id = $1 AND status = 'PENDING' AND sort_order > $2
		ORDER BY sort_order ASC, created_at ASC
		LIMIT 1
	`
	visit, err := scanVisit(r.db.QueryRow(ctx, query, tourID, after))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get next pending visit: %w", err)
	}
	return visit, nil
}

// MaxOrder returns the highest visit order in a tour; ok is false when the tour has no visits
func (r *VisitRepository) MaxOrder(ctx context.Context, tourID string) (max int, ok bool, err error) {
	var v *int
	if err := r.db.QueryRow(ctx, `SELECT MAX(sort_order) FROM visits WHERE tour_id = $1`, tourID).Scan(&v); err != nil {
		return 0, false, fmt.Errorf("failed to get max visit order: %w", err)
	}
	if v == nil {
		return 0, false, nil
	}
	return *v, true, nil
}

// EarliestOpenForFamily returns the lowest-ordered PENDING or ON_WAY visit of a
// family, or nil when the family has none.
func (r *VisitRepository) EarliestOpenForFamily(ctx context.Context, familyID string) (*models.Visit, error) {
	query := `
		SELECT ` + visitColumns + ` FROM visits
		WHERE family_id = $1 AND status IN ('PENDING', 'ON_WAY')
		ORDER BY sort_order ASC
		LIMIT 1
	`
	visit, err := scanVisit(r.db.QueryRow(ctx, query, familyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get open visit for family: %w", err)
	}
	return visit, nil
}
