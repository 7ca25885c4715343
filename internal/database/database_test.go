package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"stayhub/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	logger := zerolog.New(os.Stdout)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	return db
}

func createTestUser(t *testing.T, db *DB, username, role string) *models.User {
	t.Helper()
	u := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
		FirstName:    username,
		Role:         role,
		IsVerified:   true,
	}
	require.NoError(t, db.CreateUser(context.Background(), u))
	return u
}

func createTestProperty(t *testing.T, db *DB, hostID int64, price string) *models.Property {
	t.Helper()
	p := &models.Property{
		HostID:        hostID,
		Title:         "Sea View Flat",
		Description:   "Two rooms near the beach",
		PropertyType:  "apartment",
		PricePerNight: decimal.RequireFromString(price),
		Location:      "Lisbon",
		Bedrooms:      2,
		Bathrooms:     1,
		MaxGuests:     4,
		Amenities:     []string{"wifi", "kitchen"},
		IsAvailable:   true,
	}
	require.NoError(t, db.CreateProperty(context.Background(), p))
	return p
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := models.ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
	assert.Equal(t, dbPath, db.Path())
}

func TestNewDB_NilLogger(t *testing.T) {
	db, err := NewDB(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, db.PingContext(context.Background()))
}

func TestCreateTables_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	assert.NoError(t, db.createTables(context.Background()))
}

func TestBuildDSN(t *testing.T) {
	assert.Contains(t, buildDSN(":memory:", true), "_txlock=immediate")
	assert.NotContains(t, buildDSN(":memory:", true), "_journal_mode")
	assert.Contains(t, buildDSN("data/app.db", false), "_journal_mode=WAL")
	assert.True(t, isMemoryPath("file:test?mode=memory"))
	assert.False(t, isMemoryPath("data/app.db"))
}

func TestClosedDBErrors(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Close())
	ctx := context.Background()

	_, err := db.GetProperty(ctx, 1)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = db.ListReservations(ctx, models.ReservationFilter{})
	assert.Error(t, err)

	_, err = db.HasOverlap(ctx, 1, time.Now(), time.Now().Add(time.Hour))
	assert.Error(t, err)

	err = db.CreateReservationWithLock(ctx, &models.Reservation{PropertyID: 1})
	assert.Error(t, err)

	_, err = db.GetPendingSyncTasks(ctx, 10)
	assert.Error(t, err)
}

type stubResult struct {
	rows int64
	err  error
}

func (r stubResult) LastInsertId() (int64, error) { return 0, nil }
func (r stubResult) RowsAffected() (int64, error) { return r.rows, r.err }

func TestRequireAffected(t *testing.T) {
	assert.NoError(t, requireAffected(stubResult{rows: 1}))
	assert.ErrorIs(t, requireAffected(stubResult{}), ErrNotFound)

	driverErr := errors.New("rows affected unsupported")
	err := requireAffected(stubResult{err: driverErr})
	assert.ErrorIs(t, err, driverErr)
	assert.NotErrorIs(t, err, ErrNotFound)
}
