package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"stayhub/internal/database"
	"stayhub/internal/domain"
	"stayhub/internal/events"
	"stayhub/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

var validate = validator.New()

// Claims are carried by access tokens.
type Claims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) Actor() models.Actor {
	return models.Actor{UserID: c.UserID, Role: c.Role}
}

type RegisterInput struct {
	Username  string `validate:"required,min=3,max=32,alphanum"`
	Email     string `validate:"required,email"`
	Password  string `validate:"required,min=6,max=72"`
	FirstName string `validate:"required,max=64"`
	LastName  string `validate:"required,max=64"`
	Phone     string `validate:"omitempty,max=32"`
	Role      string `validate:"omitempty,oneof=guest host"`
}

type ProfileInput struct {
	FirstName      string `validate:"required,max=64"`
	LastName       string `validate:"required,max=64"`
	Phone          string `validate:"omitempty,max=32"`
	TelegramChatID int64
}

type AuthOptions struct {
	JWTSecret    string
	TokenTTL     time.Duration
	OTPTTL       time.Duration
	ResendLimit  int
	ResendWindow time.Duration
}

type AuthService struct {
	users    domain.UserRepository
	otps     domain.OTPRepository
	limiter  domain.LockRepository
	mailer   domain.Mailer
	eventBus domain.EventPublisher
	opts     AuthOptions
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewAuthService(
	users domain.UserRepository,
	otps domain.OTPRepository,
	limiter domain.LockRepository,
	mailer domain.Mailer,
	eventBus domain.EventPublisher,
	opts AuthOptions,
	logger *zerolog.Logger,
) *AuthService {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = models.DefaultTokenTTL
	}
	if opts.OTPTTL <= 0 {
		opts.OTPTTL = models.DefaultOTPTTL
	}
	if opts.ResendLimit <= 0 {
		opts.ResendLimit = models.DefaultOTPResendLimit
	}
	if opts.ResendWindow <= 0 {
		opts.ResendWindow = models.DefaultOTPResendWindow
	}
	return &AuthService{
		users:    users,
		otps:     otps,
		limiter:  limiter,
		mailer:   mailer,
		eventBus: eventBus,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// validateStruct reports the first failing field as ErrValidation.
func validateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return validationError("%s failed on %s", strings.ToLower(fe.Field()), fe.Tag())
	}
	return validationError("%v", err)
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if in.Role == "" {
		in.Role = models.RoleGuest
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), models.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Phone:        in.Phone,
		Role:         in.Role,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, mapStoreError(err, ErrUserNotFound)
	}

	s.logger.Info().Int64("user_id", user.ID).Str("role", user.Role).Msg("user registered")

	if err := s.issueOTP(ctx, user.Email); err != nil {
		// The account exists; the code can be requested again.
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("failed to issue verification code")
	}

	if s.eventBus != nil {
		payload := events.UserEventPayload{UserID: user.ID, Email: user.Email, Role: user.Role}
		if err := s.eventBus.PublishJSON(events.EventUserRegistered, payload); err != nil {
			s.logger.Error().Err(err).Msg("publish event error")
		}
	}

	return user, nil
}

func (s *AuthService) issueOTP(ctx context.Context, email string) error {
	if err := s.otps.InvalidateOTPs(ctx, email); err != nil {
		return err
	}

	code, err := generateOTP()
	if err != nil {
		return err
	}

	otp := &models.OTP{Email: email, Code: code, ExpiresAt: s.now().Add(s.opts.OTPTTL)}
	if err := s.otps.CreateOTP(ctx, otp); err != nil {
		return err
	}

	if s.mailer == nil {
		return nil
	}
	if err := s.mailer.SendOTP(ctx, email, code); err != nil {
		return fmt.Errorf("send otp: %w", err)
	}
	return nil
}

func generateOTP() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < models.OTPLength; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", models.OTPLength, n.Int64()), nil
}

func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	code = strings.TrimSpace(code)
	if email == "" || len(code) != models.OTPLength {
		return ErrInvalidOTP
	}

	otp, err := s.otps.GetValidOTP(ctx, email, code, s.now())
	if err != nil {
		return mapStoreError(err, ErrInvalidOTP)
	}
	if err := s.otps.MarkOTPUsed(ctx, otp.ID); err != nil {
		return mapStoreError(err, ErrInvalidOTP)
	}
	if err := s.users.MarkUserVerified(ctx, email); err != nil {
		return mapStoreError(err, ErrUserNotFound)
	}

	s.logger.Info().Str("email", email).Msg("email verified")
	return nil
}

func (s *AuthService) ResendOTP(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return mapStoreError(err, ErrUserNotFound)
	}
	if user.IsVerified {
		return validationError("email is already verified")
	}

	if s.limiter != nil {
		allowed, err := s.limiter.CheckRateLimit(ctx, "otp:"+email, s.opts.ResendLimit, s.opts.ResendWindow)
		if err != nil {
			return fmt.Errorf("check otp throttle: %w", err)
		}
		if !allowed {
			return ErrOTPThrottled
		}
	}

	return s.issueOTP(ctx, email)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if !user.IsVerified {
		return "", nil, ErrEmailNotVerified
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *AuthService) IssueToken(user *models.User) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.opts.TokenTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.opts.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *AuthService) ParseToken(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.opts.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	return claims, nil
}

func (s *AuthService) Profile(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, mapStoreError(err, ErrUserNotFound)
	}
	return user, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID int64, in ProfileInput) (*models.User, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.FirstName = in.FirstName
	user.LastName = in.LastName
	user.Phone = in.Phone
	user.TelegramChatID = in.TelegramChatID
	if err := s.users.UpdateUserProfile(ctx, user); err != nil {
		return nil, mapStoreError(err, ErrUserNotFound)
	}
	return user, nil
}

// PurgeExpiredOTPs removes used and expired codes.
func (s *AuthService) PurgeExpiredOTPs(ctx context.Context) (int64, error) {
	return s.otps.DeleteExpiredOTPs(ctx, s.now())
}
