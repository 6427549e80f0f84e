package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"spacebook/internal/models"
)

const spaceColumns = `id, name, location, capacity, amenities, ratecard, image, booked, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSpace(row rowScanner) (*models.Space, error) {
	var (
		space models.Space
		image sql.NullString
	)
	err := row.Scan(
		&space.ID, &space.Name, &space.Location, &space.Capacity, &space.Amenities,
		&space.Ratecard, &image, &space.Booked, &space.CreatedAt, &space.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	space.Image = image.String
	return &space, nil
}

func (db *DB) CreateSpace(ctx context.Context, space *models.Space) error {
	query := `INSERT INTO spaces (name, location, capacity, amenities, ratecard, image, booked, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		space.Name,
		space.Location,
		space.Capacity,
		space.Amenities,
		space.Ratecard,
		nullString(space.Image),
		space.Booked,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create space: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	space.ID = id
	space.CreatedAt = now
	space.UpdatedAt = now
	return nil
}

func (db *DB) GetSpace(ctx context.Context, id int64) (*models.Space, error) {
	row := db.QueryRowContext(ctx, `SELECT `+spaceColumns+` FROM spaces WHERE id = ?`, id)
	space, err := scanSpace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get space: %w", err)
	}
	return space, nil
}

func (db *DB) ListSpaces(ctx context.Context) ([]*models.Space, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+spaceColumns+` FROM spaces ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list spaces: %w", err)
	}
	defer rows.Close()

	spaces := make([]*models.Space, 0)
	for rows.Next() {
		space, err := scanSpace(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan space: %w", err)
		}
		spaces = append(spaces, space)
	}
	return spaces, rows.Err()
}

// UpdateSpace overwrites every mutable column of the space row.
func (db *DB) UpdateSpace(ctx context.Context, space *models.Space) error {
	query := `UPDATE spaces SET name = ?, location = ?, capacity = ?, amenities = ?, ratecard = ?,
              image = ?, booked = ?, updated_at = ? WHERE id = ?`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		space.Name,
		space.Location,
		space.Capacity,
		space.Amenities,
		space.Ratecard,
		nullString(space.Image),
		space.Booked,
		now,
		space.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update space: %w", err)
	}
	if err := expectAffected(result); err != nil {
		return err
	}
	space.UpdatedAt = now
	return nil
}

func (db *DB) DeleteSpace(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM spaces WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete space: %w", err)
	}
	return expectAffected(result)
}
