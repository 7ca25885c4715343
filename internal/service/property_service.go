package service

import (
	"context"
	"strings"

	"stayhub/internal/domain"
	"stayhub/internal/events"
	"stayhub/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PropertyInput carries the editable fields of a listing.
type PropertyInput struct {
	Title         string
	Description   string
	PropertyType  string
	PricePerNight decimal.Decimal
	Location      string
	Bedrooms      int
	Bathrooms     int
	MaxGuests     int
	Amenities     []string
	IsAvailable   bool
}

func (in PropertyInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return validationError("title is required")
	}
	if strings.TrimSpace(in.Location) == "" {
		return validationError("location is required")
	}
	if err := validatePrice(in.PricePerNight); err != nil {
		return err
	}
	if in.Bedrooms < 0 || in.Bathrooms < 0 || in.MaxGuests < 0 {
		return validationError("room and guest counts must not be negative")
	}
	return nil
}

// validatePrice rejects negative prices and fractions of a cent.
func validatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return validationError("price_per_night must not be negative")
	}
	if !price.Equal(price.Round(2)) {
		return validationError("price_per_night must have at most 2 decimal places")
	}
	return nil
}

func (in PropertyInput) apply(p *models.Property) {
	p.Title = strings.TrimSpace(in.Title)
	p.Description = in.Description
	p.PropertyType = strings.ToLower(strings.TrimSpace(in.PropertyType))
	p.PricePerNight = in.PricePerNight
	p.Location = strings.TrimSpace(in.Location)
	p.Bedrooms = in.Bedrooms
	p.Bathrooms = in.Bathrooms
	p.MaxGuests = in.MaxGuests
	p.Amenities = normalizeAmenities(in.Amenities)
	p.IsAvailable = in.IsAvailable
}

// PropertyUpdate is a partial edit: nil fields keep the stored value.
type PropertyUpdate struct {
	Title         *string
	Description   *string
	PropertyType  *string
	PricePerNight *decimal.Decimal
	Location      *string
	Bedrooms      *int
	Bathrooms     *int
	MaxGuests     *int
	Amenities     []string
	IsAvailable   *bool
}

func (u PropertyUpdate) validate() error {
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return validationError("title must not be empty")
	}
	if u.Location != nil && strings.TrimSpace(*u.Location) == "" {
		return validationError("location must not be empty")
	}
	if u.PropertyType != nil && strings.TrimSpace(*u.PropertyType) == "" {
		return validationError("property_type must not be empty")
	}
	if u.PricePerNight != nil {
		if err := validatePrice(*u.PricePerNight); err != nil {
			return err
		}
	}
	for _, n := range []*int{u.Bedrooms, u.Bathrooms, u.MaxGuests} {
		if n != nil && *n < 0 {
			return validationError("room and guest counts must not be negative")
		}
	}
	return nil
}

// apply merges the present fields into p. A non-nil Amenities replaces the list.
func (u PropertyUpdate) apply(p *models.Property) {
	if u.Title != nil {
		p.Title = strings.TrimSpace(*u.Title)
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.PropertyType != nil {
		p.PropertyType = strings.ToLower(strings.TrimSpace(*u.PropertyType))
	}
	if u.PricePerNight != nil {
		p.PricePerNight = *u.PricePerNight
	}
	if u.Location != nil {
		p.Location = strings.TrimSpace(*u.Location)
	}
	if u.Bedrooms != nil {
		p.Bedrooms = *u.Bedrooms
	}
	if u.Bathrooms != nil {
		p.Bathrooms = *u.Bathrooms
	}
	if u.MaxGuests != nil {
		p.MaxGuests = *u.MaxGuests
	}
	if u.Amenities != nil {
		p.Amenities = normalizeAmenities(u.Amenities)
	}
	if u.IsAvailable != nil {
		p.IsAvailable = *u.IsAvailable
	}
}

// normalizeAmenities trims, lowercases and de-duplicates, keeping first-seen order.
func normalizeAmenities(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, a := range in {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}

type PropertyService struct {
	repo     domain.PropertyRepository
	index    domain.PropertyIndex
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewPropertyService(repo domain.PropertyRepository, index domain.PropertyIndex, eventBus domain.EventPublisher, logger *zerolog.Logger) *PropertyService {
	return &PropertyService{
		repo:     repo,
		index:    index,
		eventBus: eventBus,
		logger:   logger,
	}
}

func (s *PropertyService) List(ctx context.Context, filter models.PropertyFilter) ([]*models.Property, error) {
	if filter.MinPrice != nil && filter.MaxPrice != nil && filter.MinPrice.GreaterThan(*filter.MaxPrice) {
		return nil, validationError("min_price is greater than max_price")
	}
	return s.repo.ListProperties(ctx, filter)
}

func (s *PropertyService) Popular(ctx context.Context) ([]*models.Property, error) {
	return s.repo.GetPopularProperties(ctx, models.PopularRatingThreshold, models.PopularLimit)
}

func (s *PropertyService) Get(ctx context.Context, id int64) (*models.Property, error) {
	p, err := s.repo.GetProperty(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, ErrPropertyNotFound)
	}
	return p, nil
}

func (s *PropertyService) Create(ctx context.Context, actor models.Actor, in PropertyInput) (*models.Property, error) {
	if !actor.CanHost() {
		return nil, ErrForbidden
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	p := &models.Property{HostID: actor.UserID}
	in.apply(p)
	if err := s.repo.CreateProperty(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("property_id", p.ID).Int64("host_id", p.HostID).Msg("property created")
	s.reindex(ctx, p)
	s.publish(events.EventPropertyCreated, p)
	return p, nil
}

// Update changes only the fields present in in.
func (s *PropertyService) Update(ctx context.Context, actor models.Actor, id int64, in PropertyUpdate) (*models.Property, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !p.OwnedBy(actor.UserID) {
		return nil, ErrForbidden
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	in.apply(p)
	if err := s.repo.UpdateProperty(ctx, p); err != nil {
		return nil, mapStoreError(err, ErrPropertyNotFound)
	}

	s.logger.Info().Int64("property_id", p.ID).Int64("actor_id", actor.UserID).Msg("property updated")
	s.reindex(ctx, p)
	s.publish(events.EventPropertyUpdated, p)
	return p, nil
}

// Search queries the full-text index and falls back to the store when the
// index is missing or failing.
func (s *PropertyService) Search(ctx context.Context, query string, limit int) ([]*models.Property, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, validationError("query is required")
	}
	if limit <= 0 || limit > models.MaxListLimit {
		limit = models.DefaultListLimit
	}

	if s.index != nil {
		ids, err := s.index.Search(ctx, query, limit)
		if err == nil {
			return s.repo.GetPropertiesByIDs(ctx, ids)
		}
		s.logger.Warn().Err(err).Str("query", query).Msg("search index failed, falling back to store")
	}

	return s.repo.SearchProperties(ctx, query, limit)
}

// Reindex pushes every listing to the search index.
func (s *PropertyService) Reindex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, nil
	}
	all, err := s.repo.AllProperties(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.index.IndexProperties(ctx, all); err != nil {
		return 0, err
	}
	return len(all), nil
}

func (s *PropertyService) reindex(ctx context.Context, p *models.Property) {
	if s.index == nil {
		return
	}
	if err := s.index.IndexProperty(ctx, p); err != nil {
		s.logger.Error().Err(err).Int64("property_id", p.ID).Msg("index property error")
	}
}

func (s *PropertyService) publish(eventType string, p *models.Property) {
	if s.eventBus == nil {
		return
	}
	payload := events.PropertyEventPayload{PropertyID: p.ID, HostID: p.HostID, Title: p.Title}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("property_id", p.ID).Msg("publish event error")
	}
}
