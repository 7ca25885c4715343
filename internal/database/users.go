package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stayhub/internal/models"
)

const userColumns = `id, username, email, password_hash, first_name, last_name, phone,
	                 role, is_verified, telegram_chat_id, created_at, updated_at`

// CreateUser inserts a new account. Username and email are unique.
func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (
				username, email, password_hash, first_name, last_name, phone,
				role, is_verified, telegram_chat_id, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		user.Username,
		strings.ToLower(user.Email),
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.Role,
		user.IsVerified,
		user.TelegramChatID,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	user.ID = id
	user.Email = strings.ToLower(user.Email)
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return db.queryUser(ctx, query, id)
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	return db.queryUser(ctx, query, strings.ToLower(email))
}

func (db *DB) queryUser(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	var user models.User
	err := db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName,
		&user.Phone, &user.Role, &user.IsVerified, &user.TelegramChatID, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &user, nil
}

func (db *DB) MarkUserVerified(ctx context.Context, email string) error {
	query := `UPDATE users SET is_verified = 1, updated_at = ? WHERE email = ?`
	result, err := db.ExecContext(ctx, query, time.Now().UTC(), strings.ToLower(email))
	if err != nil {
		return fmt.Errorf("failed to verify user: %w", err)
	}
	return requireAffected(result)
}

// UpdateUserProfile changes the editable contact fields of an account.
func (db *DB) UpdateUserProfile(ctx context.Context, user *models.User) error {
	query := `UPDATE users SET first_name = ?, last_name = ?, phone = ?, telegram_chat_id = ?, updated_at = ?
              WHERE id = ?`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		user.FirstName, user.LastName, user.Phone, user.TelegramChatID, now, user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user profile: %w", err)
	}
	if err := requireAffected(result); err != nil {
		return err
	}
	user.UpdatedAt = now
	return nil
}
