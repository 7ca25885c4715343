package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"stayhub/internal/database"
	"stayhub/internal/events"
	"stayhub/internal/models"
	"stayhub/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type authFixture struct {
	users  *mockUserRepo
	otps   *mockOTPRepo
	mailer *mockMailer
	bus    *mockEventBus
	svc    *AuthService
}

func newAuthFixture() *authFixture {
	f := &authFixture{
		users:  new(mockUserRepo),
		otps:   new(mockOTPRepo),
		mailer: new(mockMailer),
		bus:    new(mockEventBus),
	}
	f.svc = NewAuthService(f.users, f.otps, repository.NewMemoryLockRepository(), f.mailer, f.bus,
		AuthOptions{JWTSecret: "test-secret"}, testLogger())
	return f
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	input := RegisterInput{
		Username:  "alice",
		Email:     " Alice@Example.com ",
		Password:  "secret123",
		FirstName: "Alice",
		LastName:  "Smith",
	}

	t.Run("Success", func(t *testing.T) {
		f := newAuthFixture()
		var sentCode string
		f.users.On("CreateUser", ctx, mock.AnythingOfType("*models.User")).
			Run(func(args mock.Arguments) { args.Get(1).(*models.User).ID = 5 }).
			Return(nil).Once()
		f.otps.On("InvalidateOTPs", ctx, "alice@example.com").Return(nil).Once()
		f.otps.On("CreateOTP", ctx, mock.AnythingOfType("*models.OTP")).Return(nil).Once()
		f.mailer.On("SendOTP", ctx, "alice@example.com", mock.AnythingOfType("string")).
			Run(func(args mock.Arguments) { sentCode = args.String(2) }).
			Return(nil).Once()
		f.bus.On("PublishJSON", events.EventUserRegistered, mock.Anything).Return(nil).Once()

		user, err := f.svc.Register(ctx, input)
		require.NoError(t, err)
		assert.Equal(t, int64(5), user.ID)
		assert.Equal(t, "alice@example.com", user.Email)
		assert.Equal(t, models.RoleGuest, user.Role)
		assert.False(t, user.IsVerified)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret123")))
		assert.Len(t, sentCode, models.OTPLength)

		f.users.AssertExpectations(t)
		f.otps.AssertExpectations(t)
		f.mailer.AssertExpectations(t)
	})

	t.Run("MailFailureKeepsAccount", func(t *testing.T) {
		f := newAuthFixture()
		f.users.On("CreateUser", ctx, mock.Anything).Return(nil).Once()
		f.otps.On("InvalidateOTPs", ctx, mock.Anything).Return(nil).Once()
		f.otps.On("CreateOTP", ctx, mock.Anything).Return(nil).Once()
		f.mailer.On("SendOTP", ctx, mock.Anything, mock.Anything).Return(errors.New("smtp down")).Once()
		f.bus.On("PublishJSON", mock.Anything, mock.Anything).Return(nil).Once()

		_, err := f.svc.Register(ctx, input)
		assert.NoError(t, err)
	})

	t.Run("Duplicate", func(t *testing.T) {
		f := newAuthFixture()
		f.users.On("CreateUser", ctx, mock.Anything).Return(database.ErrDuplicate).Once()

		_, err := f.svc.Register(ctx, input)
		assert.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("Validation", func(t *testing.T) {
		f := newAuthFixture()
		cases := []func(in *RegisterInput){
			func(in *RegisterInput) { in.Email = "not-an-email" },
			func(in *RegisterInput) { in.Password = "123" },
			func(in *RegisterInput) { in.Username = "a!" },
			func(in *RegisterInput) { in.Role = models.RoleAdmin },
		}
		for _, mutate := range cases {
			in := input
			mutate(&in)
			_, err := f.svc.Register(ctx, in)
			assert.ErrorIs(t, err, ErrValidation)
		}
		f.users.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
	})
}

func TestVerifyOTP(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newAuthFixture()
		f.otps.On("GetValidOTP", ctx, "bob@example.com", "123456", mock.AnythingOfType("time.Time")).
			Return(&models.OTP{ID: 9}, nil).Once()
		f.otps.On("MarkOTPUsed", ctx, int64(9)).Return(nil).Once()
		f.users.On("MarkUserVerified", ctx, "bob@example.com").Return(nil).Once()

		require.NoError(t, f.svc.VerifyOTP(ctx, "Bob@example.com", "123456"))
		f.otps.AssertExpectations(t)
		f.users.AssertExpectations(t)
	})

	t.Run("WrongOrExpired", func(t *testing.T) {
		f := newAuthFixture()
		f.otps.On("GetValidOTP", ctx, "bob@example.com", "000000", mock.Anything).
			Return(nil, database.ErrNotFound).Once()

		assert.ErrorIs(t, f.svc.VerifyOTP(ctx, "bob@example.com", "000000"), ErrInvalidOTP)
	})

	t.Run("Malformed", func(t *testing.T) {
		f := newAuthFixture()
		assert.ErrorIs(t, f.svc.VerifyOTP(ctx, "bob@example.com", "12"), ErrInvalidOTP)
	})

	t.Run("AlreadyUsed", func(t *testing.T) {
		f := newAuthFixture()
		f.otps.On("GetValidOTP", ctx, mock.Anything, mock.Anything, mock.Anything).Return(&models.OTP{ID: 9}, nil).Once()
		f.otps.On("MarkOTPUsed", ctx, int64(9)).Return(database.ErrNotFound).Once()

		assert.ErrorIs(t, f.svc.VerifyOTP(ctx, "bob@example.com", "123456"), ErrInvalidOTP)
	})
}

func TestResendOTP(t *testing.T) {
	ctx := context.Background()

	t.Run("Throttled", func(t *testing.T) {
		f := newAuthFixture()
		f.users.On("GetUserByEmail", ctx, "carol@example.com").Return(&models.User{ID: 2, Email: "carol@example.com"}, nil)
		f.otps.On("InvalidateOTPs", ctx, "carol@example.com").Return(nil)
		f.otps.On("CreateOTP", ctx, mock.Anything).Return(nil)
		f.mailer.On("SendOTP", ctx, "carol@example.com", mock.Anything).Return(nil)

		for i := 0; i < models.DefaultOTPResendLimit; i++ {
			require.NoError(t, f.svc.ResendOTP(ctx, "carol@example.com"))
		}
		assert.ErrorIs(t, f.svc.ResendOTP(ctx, "carol@example.com"), ErrOTPThrottled)
		f.mailer.AssertNumberOfCalls(t, "SendOTP", models.DefaultOTPResendLimit)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		f := newAuthFixture()
		f.users.On("GetUserByEmail", ctx, "nobody@example.com").Return(nil, database.ErrNotFound).Once()
		assert.ErrorIs(t, f.svc.ResendOTP(ctx, "nobody@example.com"), ErrUserNotFound)
	})

	t.Run("AlreadyVerified", func(t *testing.T) {
		f := newAuthFixture()
		f.users.On("GetUserByEmail", ctx, "dan@example.com").Return(&models.User{ID: 3, IsVerified: true}, nil).Once()
		assert.ErrorIs(t, f.svc.ResendOTP(ctx, "dan@example.com"), ErrValidation)
	})
}

func TestLoginAndTokens(t *testing.T) {
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)

	verified := &models.User{ID: 4, Email: "erin@example.com", Role: models.RoleHost, PasswordHash: string(hash), IsVerified: true}
	unverified := &models.User{ID: 5, Email: "finn@example.com", Role: models.RoleGuest, PasswordHash: string(hash)}

	f := newAuthFixture()
	f.users.On("GetUserByEmail", ctx, "erin@example.com").Return(verified, nil)
	f.users.On("GetUserByEmail", ctx, "finn@example.com").Return(unverified, nil)
	f.users.On("GetUserByEmail", ctx, "ghost@example.com").Return(nil, database.ErrNotFound)

	t.Run("Success", func(t *testing.T) {
		token, user, err := f.svc.Login(ctx, "Erin@example.com", "secret123")
		require.NoError(t, err)
		assert.Equal(t, verified.ID, user.ID)

		claims, err := f.svc.ParseToken(token)
		require.NoError(t, err)
		assert.Equal(t, int64(4), claims.UserID)
		assert.Equal(t, "erin@example.com", claims.Email)
		assert.Equal(t, models.RoleHost, claims.Role)
		assert.Equal(t, models.Actor{UserID: 4, Role: models.RoleHost}, claims.Actor())
		assert.WithinDuration(t, time.Now().Add(models.DefaultTokenTTL), claims.ExpiresAt.Time, time.Minute)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		_, _, err := f.svc.Login(ctx, "erin@example.com", "nope")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("UnknownEmail", func(t *testing.T) {
		_, _, err := f.svc.Login(ctx, "ghost@example.com", "secret123")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("NotVerified", func(t *testing.T) {
		_, _, err := f.svc.Login(ctx, "finn@example.com", "secret123")
		assert.ErrorIs(t, err, ErrEmailNotVerified)
	})

	t.Run("ForeignSecret", func(t *testing.T) {
		other := NewAuthService(nil, nil, nil, nil, nil, AuthOptions{JWTSecret: "other"}, testLogger())
		token, err := other.IssueToken(verified)
		require.NoError(t, err)

		_, err = f.svc.ParseToken(token)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("Expired", func(t *testing.T) {
		old := NewAuthService(nil, nil, nil, nil, nil, AuthOptions{JWTSecret: "test-secret"}, testLogger())
		old.now = func() time.Time { return time.Now().Add(-8 * 24 * time.Hour) }
		token, err := old.IssueToken(verified)
		require.NoError(t, err)

		_, err = f.svc.ParseToken(token)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestProfile(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()
	f.users.On("GetUserByID", ctx, int64(4)).Return(&models.User{ID: 4, FirstName: "Erin"}, nil)
	f.users.On("GetUserByID", ctx, int64(6)).Return(nil, database.ErrNotFound)
	f.users.On("UpdateUserProfile", ctx, mock.Anything).Return(nil).Once()

	u, err := f.svc.Profile(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "Erin", u.FirstName)

	_, err = f.svc.Profile(ctx, 6)
	assert.ErrorIs(t, err, ErrUserNotFound)

	u, err = f.svc.UpdateProfile(ctx, 4, ProfileInput{FirstName: "Erin", LastName: "Lee", TelegramChatID: 77})
	require.NoError(t, err)
	assert.Equal(t, int64(77), u.TelegramChatID)

	_, err = f.svc.UpdateProfile(ctx, 4, ProfileInput{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPurgeExpiredOTPs(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()
	f.otps.On("DeleteExpiredOTPs", ctx, mock.AnythingOfType("time.Time")).Return(int64(3), nil).Once()

	n, err := f.svc.PurgeExpiredOTPs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestGenerateOTP(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := generateOTP()
		require.NoError(t, err)
		assert.Len(t, code, models.OTPLength)
		assert.Regexp(t, `^[0-9]+$`, code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 1)
}
