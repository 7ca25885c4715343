package domain

import (
	"context"
	"time"

	"stayhub/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type PropertyRepository interface {
	CreateProperty(ctx context.Context, p *models.Property) error
	UpdateProperty(ctx context.Context, p *models.Property) error
	GetProperty(ctx context.Context, id int64) (*models.Property, error)
	ListProperties(ctx context.Context, filter models.PropertyFilter) ([]*models.Property, error)
	GetPopularProperties(ctx context.Context, minRating float64, limit int) ([]*models.Property, error)
	SearchProperties(ctx context.Context, text string, limit int) ([]*models.Property, error)
	GetPropertiesByIDs(ctx context.Context, ids []int64) ([]*models.Property, error)
	AllProperties(ctx context.Context) ([]*models.Property, error)
}

type ReservationRepository interface {
	GetProperty(ctx context.Context, id int64) (*models.Property, error)
	HasOverlap(ctx context.Context, propertyID int64, checkIn, checkOut time.Time) (bool, error)
	CreateReservationWithLock(ctx context.Context, r *models.Reservation) error
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	UpdateReservationStatusWithVersion(ctx context.Context, id, version int64, status string) error
	ListReservations(ctx context.Context, filter models.ReservationFilter) ([]*models.Reservation, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	MarkUserVerified(ctx context.Context, email string) error
	UpdateUserProfile(ctx context.Context, user *models.User) error
}

type OTPRepository interface {
	CreateOTP(ctx context.Context, otp *models.OTP) error
	GetValidOTP(ctx context.Context, email, code string, now time.Time) (*models.OTP, error)
	MarkOTPUsed(ctx context.Context, id int64) error
	InvalidateOTPs(ctx context.Context, email string) error
	DeleteExpiredOTPs(ctx context.Context, now time.Time) (int64, error)
}

type SyncQueueRepository interface {
	CreateSyncTask(ctx context.Context, task *models.SyncTask) error
	GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error)
	UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

// LockRepository holds short-lived advisory locks and fixed-window counters.
type LockRepository interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// PropertyIndex is a full-text index over listings.
type PropertyIndex interface {
	IndexProperty(ctx context.Context, p *models.Property) error
	IndexProperties(ctx context.Context, properties []*models.Property) error
	Search(ctx context.Context, query string, limit int) ([]int64, error)
}

type Mailer interface {
	SendOTP(ctx context.Context, email, code string) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type SheetsWriter interface {
	AppendReservation(ctx context.Context, r *models.Reservation) error
	UpsertReservation(ctx context.Context, r *models.Reservation) error
	UpdateReservationStatus(ctx context.Context, reservationID int64, status string) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, r *models.Reservation) error
}
