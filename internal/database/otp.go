package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stayhub/internal/models"
)

func (db *DB) CreateOTP(ctx context.Context, otp *models.OTP) error {
	query := `INSERT INTO otp_verification (email, otp_code, expires_at, is_used, created_at)
              VALUES (?, ?, ?, 0, ?)`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query, strings.ToLower(otp.Email), otp.Code, otp.ExpiresAt.UTC(), now)
	if err != nil {
		return fmt.Errorf("failed to create otp: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	otp.ID = id
	otp.CreatedAt = now
	return nil
}

// GetValidOTP returns an unused, unexpired code for the email or ErrNotFound.
func (db *DB) GetValidOTP(ctx context.Context, email, code string, now time.Time) (*models.OTP, error) {
	query := `SELECT id, email, otp_code, expires_at, is_used, created_at
              FROM otp_verification
              WHERE email = ? AND otp_code = ? AND is_used = 0 AND expires_at > ?
              ORDER BY id DESC LIMIT 1`
	var otp models.OTP
	err := db.QueryRowContext(ctx, query, strings.ToLower(email), code, now.UTC()).Scan(
		&otp.ID, &otp.Email, &otp.Code, &otp.ExpiresAt, &otp.IsUsed, &otp.CreatedAt,
	)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &otp, nil
}

// MarkOTPUsed consumes a code once; a second call returns ErrNotFound.
func (db *DB) MarkOTPUsed(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `UPDATE otp_verification SET is_used = 1 WHERE id = ? AND is_used = 0`, id)
	if err != nil {
		return fmt.Errorf("failed to mark otp used: %w", err)
	}
	return requireAffected(result)
}

// InvalidateOTPs retires every outstanding code for the email.
func (db *DB) InvalidateOTPs(ctx context.Context, email string) error {
	_, err := db.ExecContext(ctx, `UPDATE otp_verification SET is_used = 1 WHERE email = ? AND is_used = 0`,
		strings.ToLower(email))
	if err != nil {
		return fmt.Errorf("failed to invalidate otps: %w", err)
	}
	return nil
}

func (db *DB) DeleteExpiredOTPs(ctx context.Context, now time.Time) (int64, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM otp_verification WHERE expires_at <= ? OR is_used = 1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired otps: %w", err)
	}
	return result.RowsAffected()
}
