package models

import "time"

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

const (
	RoleGuest = "guest"
	RoleHost  = "host"
	RoleAdmin = "admin"
)

const (
	// DateLayout is the wire and storage format of reservation dates.
	DateLayout = "2006-01-02"

	// TimestampLayout is used for human-readable exports.
	TimestampLayout = "2006-01-02 15:04:05"
)

const (
	// OTPLength number of digits in a verification code
	OTPLength = 6

	// DefaultOTPTTL lifetime of a verification code
	DefaultOTPTTL = 10 * time.Minute

	// DefaultOTPResendLimit codes that may be requested per window
	DefaultOTPResendLimit = 3

	// DefaultOTPResendWindow throttle window for code requests
	DefaultOTPResendWindow = 10 * time.Minute

	// DefaultTokenTTL lifetime of an access token
	DefaultTokenTTL = 7 * 24 * time.Hour

	// BcryptCost work factor for password hashes
	BcryptCost = 10

	// PopularRatingThreshold rating from which a listing counts as popular
	PopularRatingThreshold = 4.0

	// PopularLimit size of the popular listings page
	PopularLimit = 10

	// DefaultListLimit page size when none is requested
	DefaultListLimit = 50

	// MaxListLimit upper bound for a requested page size
	MaxListLimit = 200

	// DefaultLockTTL lifetime of a per-property booking lock
	DefaultLockTTL = 10 * time.Second

	// DefaultLockRetries attempts to take a busy booking lock
	DefaultLockRetries = 20
)
