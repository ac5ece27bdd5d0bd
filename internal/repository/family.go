package repository

import (
	"context"
	"errors"
	"fmt"

	"santa-tracker-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const familyColumns = `id, tour_id, street_number, street_name, family_name, sort_order,
	phone_number_1, phone_number_2, sms_opt_in, latitude, longitude, created_at`

// FamilyRepository handles database operations for families and their children
type FamilyRepository struct {
	db *pgxpool.Pool
}

// NewFamilyRepository creates a new family repository
func NewFamilyRepository(db *pgxpool.Pool) *FamilyRepository {
	return &FamilyRepository{db: db}
}

func scanFamily(row pgx.Row) (*models.Family, error) {
	var f models.Family
	err := row.Scan(
		&f.ID, &f.TourID, &f.StreetNumber, &f.StreetName, &f.FamilyName, &f.Order,
		&f.PhoneNumber1, &f.PhoneNumber2, &f.SMSOptIn, &f.Latitude, &f.Longitude, &f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	f.Children = []*models.Child{}
	return &f, nil
}

// Create inserts a family together with its children
func (r *FamilyRepository) Create(ctx context.Context, family *models.Family) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO families (` + familyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = tx.Exec(ctx, query,
		family.ID, family.TourID, family.StreetNumber, family.StreetName, family.FamilyName,
		family.Order, family.PhoneNumber1, family.PhoneNumber2, family.SMSOptIn,
		family.Latitude, family.Longitude, family.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create family: %w", err)
	}

	if err := insertChildren(ctx, tx, family.Children); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit family: %w", err)
	}
	return nil
}

// Update rewrites the family fields and replaces its children wholesale
func (r *FamilyRepository) Update(ctx context.Context, family *models.Family) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE families
		SET street_number = $1, street_name = $2, family_name = $3, phone_number_1 = $4,
			phone_number_2 = $5, sms_opt_in = $6, latitude = $7, longitude = $8
		WHERE id = $9
	`
	result, err := tx.Exec(ctx, query,
		family.StreetNumber, family.StreetName, family.FamilyName, family.PhoneNumber1,
		family.PhoneNumber2, family.SMSOptIn, family.Latitude, family.Longitude, family.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update family: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("family not found: %w", models.ErrNotFound)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM children WHERE family_id = $1`, family.ID); err != nil {
		return fmt.Errorf("failed to delete children: %w", err)
	}
	if err := insertChildren(ctx, tx, family.Children); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit family: %w", err)
	}
	return nil
}

func insertChildren(ctx context.Context, tx pgx.Tx, children []*models.Child) error {
	if len(children) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, c := range children {
		batch.Queue(
			`INSERT INTO children (id, family_id, first_name, special_instructions) VALUES ($1, $2, $3, $4)`,
			c.ID, c.FamilyID, c.FirstName, c.SpecialInstructions,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to create children: %w", err)
	}
	return nil
}

// UpdateCoordinates stores geocoded coordinates (nil clears them)
func (r *FamilyRepository) UpdateCoordinates(ctx context.Context, familyID string, coords *models.Coordinates) error {
	var lat, lon *float64
	if coords != nil {
		lat, lon = &coords.Latitude, &coords.Longitude
	}
	result, err := r.db.Exec(ctx, `UPDATE families SET latitude = $1, longitude = $2 WHERE id = $3`, lat, lon, familyID)
	if err != nil {
		return fmt.Errorf("failed to update family coordinates: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("family not found: %w", models.ErrNotFound)
	}
	return nil
}

// GetByID retrieves a family with its children
func (r *FamilyRepository) GetByID(ctx context.Context, id string) (*models.Family, error) {
	query := `SELECT ` + familyColumns + ` FROM families WHERE id = $1`
	family, err := scanFamily(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("family not found: %w", models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get family: %w", err)
	}
	if err := r.attachChildren(ctx, []*models.Family{family}); err != nil {
		return nil, err
	}
	return family, nil
}

// FindByNameAddress looks up the upsert key of a family within a tour.
// It returns nil without error when no family matches.
func (r *FamilyRepository) FindByNameAddress(ctx context.Context, tourID, familyName, streetNumber, streetName string) (*models.Family, error) {
	query := `
		SELECT ` + familyColumns + ` FROM families
		WHERE tour_id = $1 AND family_name = $2 AND street_number = $3 AND street_name = $4
		LIMIT 1
	`
	family, err := scanFamily(r.db.QueryRow(ctx, query, tourID, familyName, streetNumber, streetName))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find family: %w", err)
	}
	if err := r.attachChildren(ctx, []*models.Family{family}); err != nil {
		return nil, err
	}
	return family, nil
}

// ListByTour retrieves the families of a tour in queue order, with children
func (r *FamilyRepository) ListByTour(ctx context.Context, tourID string) ([]*models.Family, error) {
	query := `SELECT ` + familyColumns + ` FROM families WHERE tour_id = $1 ORDER BY sort_order ASC, created_at ASC`
	return r.list(ctx, query, tourID)
}

// ListOptedIn retrieves families of a tour that accept SMS and have a phone number
func (r *FamilyRepository) ListOptedIn(ctx context.Context, tourID string) ([]*models.Family, error) {
	query := `
		SELECT ` + familyColumns + ` FROM families
		WHERE tour_id = $1 AND sms_opt_in
			AND (phone_number_1 IS NOT NULL OR phone_number_2 IS NOT NULL)
		ORDER BY sort_order ASC
	`
	return r.list(ctx, query, tourID)
}

func (r *FamilyRepository) list(ctx context.Context, query string, args ...any) ([]*models.Family, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list families: %w", err)
	}
	defer rows.Close()

	families := []*models.Family{}
	for rows.Next() {
		family, err := scanFamily(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan family: %w", err)
		}
		families = append(families, family)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating families: %w", err)
	}

	if err := r.attachChildren(ctx, families); err != nil {
		return nil, err
	}
	return families, nil
}

func (r *FamilyRepository) attachChildren(ctx context.Context, families []*models.Family) error {
	if len(families) == 0 {
		return nil
	}
	byID := make(map[string]*models.Family, len(families))
	ids := make([]string, 0, len(families))
	for _, f := range families {
		byID[f.ID] = f
		ids = append(ids, f.ID)
	}

	query := `
		SELECT id, family_id, first_name, special_instructions
		FROM children
		WHERE family_id = ANY($1::uuid[])
		ORDER BY first_name
	`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("failed to get children: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c models.Child
		if err := rows.Scan(&c.ID, &c.FamilyID, &c.FirstName, &c.SpecialInstructions); err != nil {
			return fmt.Errorf("failed to scan child: %w", err)
		}
		if f, ok := byID[c.FamilyID]; ok {
			f.Children = append(f.Children, &c)
		}
	}
	return rows.Err()
}

// FindOptedInByPhone finds the first SMS opted-in family using the phone number.
// It returns nil without error when no family matches.
func (r *FamilyRepository) FindOptedInByPhone(ctx context.Context, phone string) (*models.Family, error) {
	query := `
		SELECT ` + familyColumns + ` FROM families
		WHERE sms_opt_in AND (phone_number_1 = $1 OR phone_number_2 = $1)
		ORDER BY created_at DESC
		LIMIT 1
	`
	family, err := scanFamily(r.db.QueryRow(ctx, query, phone))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find family by phone: %w", err)
	}
	return family, nil
}

// MaxOrder returns the highest family order in a tour; ok is false when the tour has no families
func (r *FamilyRepository) MaxOrder(ctx context.Context, tourID string) (max int, ok bool, err error) {
	var v *int
	if err := r.db.QueryRow(ctx, `SELECT MAX(sort_order) FROM families WHERE tour_id = $1`, tourID).Scan(&v); err != nil {
		return 0, false, fmt.Errorf("failed to get max family order: %w", err)
	}
	if v == nil {
		return 0, false, nil
	}
	return *v, true, nil
}

// Reorder assigns new orders to families of a tour in one transaction. When
// includeOpenVisits is set, visits of those families that are not COMPLETED
// or SKIPPED get the same order. Family ids outside the tour are ignored.
func (r *FamilyRepository) Reorder(ctx context.Context, tourID string, orders []models.FamilyOrder, includeOpenVisits bool) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, o := range orders {
		batch.Queue(`UPDATE families SET sort_order = $1 WHERE id = $2 AND tour_id = $3`, o.Order, o.FamilyID, tourID)
		if includeOpenVisits {
			batch.Queue(`
				UPDATE visits SET sort_order = $1
				WHERE family_id = $2 AND tour_id = $3 AND status NOT IN ('COMPLETED', 'SKIPPED')
			`, o.Order, o.FamilyID, tourID)
		}
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to reorder families: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit reorder: %w", err)
	}
	return nil
}

// Delete deletes a family; children and visits cascade
func (r *FamilyRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM families WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete family: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("family not found: %w", models.ErrNotFound)
	}
	return nil
}
