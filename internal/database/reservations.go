package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"stayhub/internal/models"

	"github.com/shopspring/decimal"
)

// stayLayout sorts lexically in time order, so range predicates run on TEXT.
const stayLayout = "2006-01-02T15:04:05Z"

const reservationColumns = `r.id, r.guest_id, r.property_id, r.check_in, r.check_out, r.total_price,
	                 r.guests_count, COALESCE(r.special_requests, ''), r.status, r.created_at, r.updated_at,
	                 r.version, COALESCE(p.host_id, 0), COALESCE(p.title, ''), COALESCE(p.location, ''),
	                 COALESCE(u.username, '')`

const reservationFrom = ` FROM reservations r
              LEFT JOIN properties p ON p.id = r.property_id
              LEFT JOIN users u ON u.id = r.guest_id`

func formatStay(t time.Time) string {
	return t.UTC().Format(stayLayout)
}

func parseStay(value string) (time.Time, error) {
	t, err := time.ParseInLocation(stayLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stay date %q: %w", value, err)
	}
	return t, nil
}

// HasOverlap reports whether an active reservation intersects [checkIn, checkOut).
func (db *DB) HasOverlap(ctx context.Context, propertyID int64, checkIn, checkOut time.Time) (bool, error) {
	return countOverlaps(ctx, db.DB, propertyID, checkIn, checkOut)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func countOverlaps(ctx context.Context, q queryRower, propertyID int64, checkIn, checkOut time.Time) (bool, error) {
	query := `SELECT COUNT(*) FROM reservations
              WHERE property_id = ?
              AND status IN (?, ?)
              AND check_in < ? AND ? < check_out`
	var count int
	err := q.QueryRowContext(ctx, query,
		propertyID,
		models.StatusPending,
		models.StatusConfirmed,
		formatStay(checkOut),
		formatStay(checkIn),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check overlap: %w", err)
	}
	return count > 0, nil
}

// CreateReservationWithLock checks for overlap and inserts in one write transaction.
// The connection string opens transactions with BEGIN IMMEDIATE, so a second
// writer waits until this one commits and then sees its row.
func (db *DB) CreateReservationWithLock(ctx context.Context, r *models.Reservation) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			db.logger.Error().Err(err).Msg("failed to rollback transaction")
		}
	}()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM properties WHERE id = ?`, r.PropertyID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check property: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}

	overlap, err := countOverlaps(ctx, tx, r.PropertyID, r.CheckIn, r.CheckOut)
	if err != nil {
		return err
	}
	if overlap {
		return ErrOverlap
	}

	if r.Status == "" {
		r.Status = models.StatusPending
	}
	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, `INSERT INTO reservations (
				guest_id, property_id, check_in, check_out, total_price, guests_count,
				special_requests, status, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		r.GuestID,
		r.PropertyID,
		formatStay(r.CheckIn),
		formatStay(r.CheckOut),
		r.TotalPrice.StringFixed(2),
		r.GuestsCount,
		r.SpecialRequests,
		r.Status,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reservation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE properties SET booking_count = booking_count + 1 WHERE id = ?`, r.PropertyID); err != nil {
		return fmt.Errorf("failed to update booking count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.ID = id
	r.CreatedAt = now
	r.UpdatedAt = now
	r.Version = 1
	return nil
}

func (db *DB) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + reservationFrom + ` WHERE r.id = ?`
	r, err := scanReservation(db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation %d: %w", id, notFoundOr(err))
	}
	return r, nil
}

// UpdateReservationStatusWithVersion applies a status change only if the row
// still carries the expected version.
func (db *DB) UpdateReservationStatusWithVersion(ctx context.Context, id, version int64, status string) error {
	query := `UPDATE reservations SET status = ?, updated_at = ?, version = version + 1
              WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now().UTC(), id, version)
	if err != nil {
		return fmt.Errorf("failed to update reservation status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations WHERE id = ?`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check reservation: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}
	return ErrConcurrentModification
}

func (db *DB) ListReservations(ctx context.Context, filter models.ReservationFilter) ([]*models.Reservation, error) {
	var (
		where []string
		args  []interface{}
	)

	if filter.GuestID != 0 {
		where = append(where, "r.guest_id = ?")
		args = append(args, filter.GuestID)
	}
	if filter.HostID != 0 {
		where = append(where, "p.host_id = ?")
		args = append(args, filter.HostID)
	}
	if filter.PropertyID != 0 {
		where = append(where, "r.property_id = ?")
		args = append(args, filter.PropertyID)
	}
	if filter.Status != "" {
		where = append(where, "r.status = ?")
		args = append(args, filter.Status)
	}
	if !filter.From.IsZero() {
		where = append(where, "r.check_out > ?")
		args = append(args, formatStay(filter.From))
	}
	if !filter.To.IsZero() {
		where = append(where, "r.check_in < ?")
		args = append(args, formatStay(filter.To))
	}

	query := `SELECT ` + reservationColumns + reservationFrom
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY r.created_at DESC, r.id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, max(filter.Offset, 0))
	}

	return db.queryReservations(ctx, query, args...)
}

func (db *DB) queryReservations(ctx context.Context, query string, args ...interface{}) ([]*models.Reservation, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	defer rows.Close()

	reservations := make([]*models.Reservation, 0)
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reservations: %w", err)
	}
	return reservations, nil
}

func scanReservation(row rowScanner) (*models.Reservation, error) {
	var (
		r                 models.Reservation
		checkIn, checkOut string
		total             string
	)
	err := row.Scan(
		&r.ID, &r.GuestID, &r.PropertyID, &checkIn, &checkOut, &total,
		&r.GuestsCount, &r.SpecialRequests, &r.Status, &r.CreatedAt, &r.UpdatedAt,
		&r.Version, &r.HostID, &r.PropertyTitle, &r.PropertyLocation, &r.GuestUsername,
	)
	if err != nil {
		return nil, err
	}

	if r.CheckIn, err = parseStay(checkIn); err != nil {
		return nil, err
	}
	if r.CheckOut, err = parseStay(checkOut); err != nil {
		return nil, err
	}
	if r.TotalPrice, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse total_price %q: %w", total, err)
	}
	return &r, nil
}
