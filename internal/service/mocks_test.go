package service

import (
	"context"
	"io"
	"time"

	"stayhub/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
)

func testLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

type mockReservationRepo struct {
	mock.Mock
}

func (m *mockReservationRepo) GetProperty(ctx context.Context, id int64) (*models.Property, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Property), args.Error(1)
}
func (m *mockReservationRepo) HasOverlap(ctx context.Context, id int64, in, out time.Time) (bool, error) {
	args := m.Called(ctx, id, in, out)
	return args.Bool(0), args.Error(1)
}
func (m *mockReservationRepo) CreateReservationWithLock(ctx context.Context, r *models.Reservation) error {
	return m.Called(ctx, r).Error(0)
}
func (m *mockReservationRepo) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}
func (m *mockReservationRepo) UpdateReservationStatusWithVersion(ctx context.Context, id, v int64, s string) error {
	return m.Called(ctx, id, v, s).Error(0)
}
func (m *mockReservationRepo) ListReservations(ctx context.Context, f models.ReservationFilter) ([]*models.Reservation, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Reservation), args.Error(1)
}

type mockPropertyRepo struct {
	mock.Mock
}

func (m *mockPropertyRepo) CreateProperty(ctx context.Context, p *models.Property) error {
	return m.Called(ctx, p).Error(0)
}
func (m *mockPropertyRepo) UpdateProperty(ctx context.Context, p *models.Property) error {
	return m.Called(ctx, p).Error(0)
}
func (m *mockPropertyRepo) GetProperty(ctx context.Context, id int64) (*models.Property, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Property), args.Error(1)
}
func (m *mockPropertyRepo) ListProperties(ctx context.Context, f models.PropertyFilter) ([]*models.Property, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Property), args.Error(1)
}
func (m *mockPropertyRepo) GetPopularProperties(ctx context.Context, r float64, l int) ([]*models.Property, error) {
	args := m.Called(ctx, r, l)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Property), args.Error(1)
}
func (m *mockPropertyRepo) SearchProperties(ctx context.Context, q string, l int) ([]*models.Property, error) {
	args := m.Called(ctx, q, l)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Property), args.Error(1)
}
func (m *mockPropertyRepo) GetPropertiesByIDs(ctx context.Context, ids []int64) ([]*models.Property, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Property), args.Error(1)
}
func (m *mockPropertyRepo) AllProperties(ctx context.Context) ([]*models.Property, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Property), args.Error(1)
}

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) CreateUser(ctx context.Context, u *models.User) error {
	return m.Called(ctx, u).Error(0)
}
func (m *mockUserRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *mockUserRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *mockUserRepo) MarkUserVerified(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}
func (m *mockUserRepo) UpdateUserProfile(ctx context.Context, u *models.User) error {
	return m.Called(ctx, u).Error(0)
}

type mockOTPRepo struct {
	mock.Mock
}

func (m *mockOTPRepo) CreateOTP(ctx context.Context, o *models.OTP) error {
	return m.Called(ctx, o).Error(0)
}
func (m *mockOTPRepo) GetValidOTP(ctx context.Context, email, code string, now time.Time) (*models.OTP, error) {
	args := m.Called(ctx, email, code, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OTP), args.Error(1)
}
func (m *mockOTPRepo) MarkOTPUsed(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockOTPRepo) InvalidateOTPs(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}
func (m *mockOTPRepo) DeleteExpiredOTPs(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) PublishJSON(et string, p interface{}) error { return m.Called(et, p).Error(0) }

type mockSyncWorker struct {
	mock.Mock
}

func (m *mockSyncWorker) EnqueueTask(ctx context.Context, tt string, r *models.Reservation) error {
	return m.Called(ctx, tt, r).Error(0)
}

type mockIndex struct {
	mock.Mock
}

func (m *mockIndex) IndexProperty(ctx context.Context, p *models.Property) error {
	return m.Called(ctx, p).Error(0)
}
func (m *mockIndex) IndexProperties(ctx context.Context, ps []*models.Property) error {
	return m.Called(ctx, ps).Error(0)
}
func (m *mockIndex) Search(ctx context.Context, q string, l int) ([]int64, error) {
	args := m.Called(ctx, q, l)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) SendOTP(ctx context.Context, email, code string) error {
	return m.Called(ctx, email, code).Error(0)
}
