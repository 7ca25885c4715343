package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"stayhub/internal/database"
	"stayhub/internal/domain"
	"stayhub/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

type SeedUser struct {
	Username       string `yaml:"username"`
	Email          string `yaml:"email"`
	Password       string `yaml:"password"`
	FirstName      string `yaml:"first_name"`
	LastName       string `yaml:"last_name"`
	Phone          string `yaml:"phone"`
	Role           string `yaml:"role"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`
}

type SeedProperty struct {
	HostEmail     string   `yaml:"host_email"`
	Title         string   `yaml:"title"`
	Description   string   `yaml:"description"`
	PropertyType  string   `yaml:"property_type"`
	PricePerNight string   `yaml:"price_per_night"`
	Location      string   `yaml:"location"`
	Bedrooms      int      `yaml:"bedrooms"`
	Bathrooms     int      `yaml:"bathrooms"`
	MaxGuests     int      `yaml:"max_guests"`
	Amenities     []string `yaml:"amenities"`
	Rating        float64  `yaml:"rating"`
	IsPopular     bool     `yaml:"is_popular"`
}

type SeedData struct {
	Users      []SeedUser     `yaml:"users"`
	Properties []SeedProperty `yaml:"properties"`
}

type seedRepository interface {
	domain.UserRepository
	domain.PropertyRepository
	SetPropertyRating(ctx context.Context, id int64, rating float64, popular bool) error
}

// Seeder loads fixture accounts and listings. Applying the same data twice
// changes nothing.
type Seeder struct {
	repo   seedRepository
	logger *zerolog.Logger
}

func NewSeeder(repo seedRepository, logger *zerolog.Logger) *Seeder {
	return &Seeder{repo: repo, logger: logger}
}

func (s *Seeder) Apply(ctx context.Context, data SeedData) error {
	hosts := make(map[string]int64, len(data.Users))

	for _, su := range data.Users {
		id, err := s.ensureUser(ctx, su)
		if err != nil {
			return fmt.Errorf("seed user %s: %w", su.Email, err)
		}
		hosts[strings.ToLower(su.Email)] = id
	}

	created := 0
	for _, sp := range data.Properties {
		ok, err := s.ensureProperty(ctx, sp, hosts)
		if err != nil {
			return fmt.Errorf("seed property %q: %w", sp.Title, err)
		}
		if ok {
			created++
		}
	}

	s.logger.Info().Int("users", len(data.Users)).Int("properties_created", created).Msg("seed data applied")
	return nil
}

func (s *Seeder) ensureUser(ctx context.Context, su SeedUser) (int64, error) {
	email := strings.ToLower(strings.TrimSpace(su.Email))
	existing, err := s.repo.GetUserByEmail(ctx, email)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return 0, err
	}

	role := su.Role
	if role == "" {
		role = models.RoleGuest
	}
	if !models.IsValidRole(role) {
		return 0, fmt.Errorf("unknown role %q", role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(su.Password), models.BcryptCost)
	if err != nil {
		return 0, err
	}

	user := &models.User{
		Username:       su.Username,
		Email:          email,
		PasswordHash:   string(hash),
		FirstName:      su.FirstName,
		LastName:       su.LastName,
		Phone:          su.Phone,
		Role:           role,
		IsVerified:     true,
		TelegramChatID: su.TelegramChatID,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return 0, err
	}
	return user.ID, nil
}

func (s *Seeder) ensureProperty(ctx context.Context, sp SeedProperty, hosts map[string]int64) (bool, error) {
	hostID, ok := hosts[strings.ToLower(sp.HostEmail)]
	if !ok {
		host, err := s.repo.GetUserByEmail(ctx, strings.ToLower(sp.HostEmail))
		if err != nil {
			return false, fmt.Errorf("host %s: %w", sp.HostEmail, err)
		}
		hostID = host.ID
	}

	existing, err := s.repo.ListProperties(ctx, models.PropertyFilter{HostID: hostID, Limit: models.MaxListLimit})
	if err != nil {
		return false, err
	}
	for _, p := range existing {
		if p.Title == sp.Title {
			return false, nil
		}
	}

	price, err := decimal.NewFromString(sp.PricePerNight)
	if err != nil {
		return false, fmt.Errorf("price_per_night: %w", err)
	}

	p := &models.Property{
		HostID:        hostID,
		Title:         sp.Title,
		Description:   sp.Description,
		PropertyType:  sp.PropertyType,
		PricePerNight: price,
		Location:      sp.Location,
		Bedrooms:      sp.Bedrooms,
		Bathrooms:     sp.Bathrooms,
		MaxGuests:     sp.MaxGuests,
		Amenities:     normalizeAmenities(sp.Amenities),
		IsAvailable:   true,
	}
	if err := s.repo.CreateProperty(ctx, p); err != nil {
		return false, err
	}

	if sp.Rating > 0 || sp.IsPopular {
		if err := s.repo.SetPropertyRating(ctx, p.ID, sp.Rating, sp.IsPopular); err != nil {
			return false, err
		}
	}
	return true, nil
}
