package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"stayhub/internal/models"

	"github.com/shopspring/decimal"
)

const propertyColumns = `p.id, p.host_id, p.title, p.description, p.property_type,
                 p.price_per_night, p.location, p.bedrooms, p.bathrooms, p.max_guests,
                 p.amenities, p.is_available, p.rating, p.is_popular, p.booking_count,
                 p.created_at, p.updated_at, COALESCE(u.username, '')`

const propertyFrom = ` FROM properties p LEFT JOIN users u ON u.id = p.host_id`

func (db *DB) CreateProperty(ctx context.Context, p *models.Property) error {
	amenities, err := encodeAmenities(p.Amenities)
	if err != nil {
		return err
	}

	query := `INSERT INTO properties (
				host_id, title, description, property_type, price_per_night, location,
				bedrooms, bathrooms, max_guests, amenities, is_available, rating,
				is_popular, booking_count, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		p.HostID,
		p.Title,
		p.Description,
		p.PropertyType,
		p.PricePerNight.StringFixed(2),
		p.Location,
		p.Bedrooms,
		p.Bathrooms,
		p.MaxGuests,
		amenities,
		p.IsAvailable,
		p.Rating,
		p.IsPopular,
		p.BookingCount,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create property: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	p.ID = id
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// UpdateProperty overwrites the mutable listing fields.
func (db *DB) UpdateProperty(ctx context.Context, p *models.Property) error {
	amenities, err := encodeAmenities(p.Amenities)
	if err != nil {
		return err
	}

	query := `UPDATE properties SET
				title = ?, description = ?, property_type = ?, price_per_night = ?,
				location = ?, bedrooms = ?, bathrooms = ?, max_guests = ?, amenities = ?,
				is_available = ?, updated_at = ?
              WHERE id = ?`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		p.Title,
		p.Description,
		p.PropertyType,
		p.PricePerNight.StringFixed(2),
		p.Location,
		p.Bedrooms,
		p.Bathrooms,
		p.MaxGuests,
		amenities,
		p.IsAvailable,
		now,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update property: %w", err)
	}
	if err := requireAffected(result); err != nil {
		return err
	}
	p.UpdatedAt = now
	return nil
}

// SetPropertyRating updates the aggregate rating and popularity flag.
func (db *DB) SetPropertyRating(ctx context.Context, id int64, rating float64, popular bool) error {
	query := `UPDATE properties SET rating = ?, is_popular = ?, updated_at = ? WHERE id = ?`
	result, err := db.ExecContext(ctx, query, rating, popular, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update property rating: %w", err)
	}
	return requireAffected(result)
}

func (db *DB) GetProperty(ctx context.Context, id int64) (*models.Property, error) {
	query := `SELECT ` + propertyColumns + propertyFrom + ` WHERE p.id = ?`
	p, err := scanProperty(db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get property %d: %w", id, notFoundOr(err))
	}
	return p, nil
}

func (db *DB) ListProperties(ctx context.Context, filter models.PropertyFilter) ([]*models.Property, error) {
	var (
		where []string
		args  []interface{}
	)

	if filter.PropertyType != "" {
		where = append(where, "p.property_type = ?")
		args = append(args, filter.PropertyType)
	}
	if filter.MinPrice != nil {
		where = append(where, "CAST(p.price_per_night AS REAL) >= ?")
		args = append(args, filter.MinPrice.InexactFloat64())
	}
	if filter.MaxPrice != nil {
		where = append(where, "CAST(p.price_per_night AS REAL) <= ?")
		args = append(args, filter.MaxPrice.InexactFloat64())
	}
	if filter.Location != "" {
		where = append(where, "p.location LIKE ?")
		args = append(args, "%"+filter.Location+"%")
	}
	if filter.IsAvailable != nil {
		where = append(where, "p.is_available = ?")
		args = append(args, *filter.IsAvailable)
	}
	if filter.HostID != 0 {
		where = append(where, "p.host_id = ?")
		args = append(args, filter.HostID)
	}

	query := `SELECT ` + propertyColumns + propertyFrom
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?"
	args = append(args, clampLimit(filter.Limit), max(filter.Offset, 0))

	return db.queryProperties(ctx, query, args...)
}

// GetPopularProperties returns flagged or highly rated listings.
func (db *DB) GetPopularProperties(ctx context.Context, minRating float64, limit int) ([]*models.Property, error) {
	query := `SELECT ` + propertyColumns + propertyFrom + `
              WHERE p.is_popular = 1 OR p.rating >= ?
              ORDER BY p.rating DESC, p.booking_count DESC, p.id ASC
              LIMIT ?`
	return db.queryProperties(ctx, query, minRating, clampLimit(limit))
}

// SearchProperties is a substring search used when no search engine is configured.
func (db *DB) SearchProperties(ctx context.Context, text string, limit int) ([]*models.Property, error) {
	pattern := "%" + strings.TrimSpace(text) + "%"
	query := `SELECT ` + propertyColumns + propertyFrom + `
              WHERE p.title LIKE ? OR p.description LIKE ? OR p.location LIKE ? OR p.property_type LIKE ?
              ORDER BY p.rating DESC, p.id ASC
              LIMIT ?`
	return db.queryProperties(ctx, query, pattern, pattern, pattern, pattern, clampLimit(limit))
}

// GetPropertiesByIDs loads listings preserving the order of ids; unknown ids are skipped.
func (db *DB) GetPropertiesByIDs(ctx context.Context, ids []int64) ([]*models.Property, error) {
	if len(ids) == 0 {
		return []*models.Property{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := `SELECT ` + propertyColumns + propertyFrom +
		` WHERE p.id IN (` + strings.Join(placeholders, ",") + `)`
	found, err := db.queryProperties(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*models.Property, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	ordered := make([]*models.Property, 0, len(found))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered, nil
}

// AllProperties returns every listing, used for reindexing.
func (db *DB) AllProperties(ctx context.Context) ([]*models.Property, error) {
	query := `SELECT ` + propertyColumns + propertyFrom + ` ORDER BY p.id ASC`
	return db.queryProperties(ctx, query)
}

func (db *DB) queryProperties(ctx context.Context, query string, args ...interface{}) ([]*models.Property, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query properties: %w", err)
	}
	defer rows.Close()

	properties := make([]*models.Property, 0)
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan property: %w", err)
		}
		properties = append(properties, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate properties: %w", err)
	}
	return properties, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProperty(row rowScanner) (*models.Property, error) {
	var (
		p         models.Property
		price     string
		amenities string
	)
	err := row.Scan(
		&p.ID, &p.HostID, &p.Title, &p.Description, &p.PropertyType,
		&price, &p.Location, &p.Bedrooms, &p.Bathrooms, &p.MaxGuests,
		&amenities, &p.IsAvailable, &p.Rating, &p.IsPopular, &p.BookingCount,
		&p.CreatedAt, &p.UpdatedAt, &p.HostUsername,
	)
	if err != nil {
		return nil, err
	}

	p.PricePerNight, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse price_per_night %q: %w", price, err)
	}
	if p.Amenities, err = decodeAmenities(amenities); err != nil {
		return nil, err
	}
	return &p, nil
}

func encodeAmenities(amenities []string) (string, error) {
	if amenities == nil {
		amenities = []string{}
	}
	raw, err := json.Marshal(amenities)
	if err != nil {
		return "", fmt.Errorf("encode amenities: %w", err)
	}
	return string(raw), nil
}

func decodeAmenities(raw string) ([]string, error) {
	amenities := []string{}
	if raw == "" {
		return amenities, nil
	}
	if err := json.Unmarshal([]byte(raw), &amenities); err != nil {
		return nil, fmt.Errorf("decode amenities: %w", err)
	}
	return amenities, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return models.DefaultListLimit
	}
	if limit > models.MaxListLimit {
		return models.MaxListLimit
	}
	return limit
}

var _ rowScanner = (*sql.Row)(nil)
