package service

import (
	"context"
	"errors"
	"time"

	"stayhub/internal/domain"
	"stayhub/internal/events"
	"stayhub/internal/export"
	"stayhub/internal/metrics"
	"stayhub/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	TaskUpsert       = models.SyncTaskUpsert
	TaskUpdateStatus = models.SyncTaskUpdateStatus
)

// Quote is the priced result of a stay request.
type Quote struct {
	PropertyID    int64
	CheckIn       time.Time
	CheckOut      time.Time
	Nights        int
	PricePerNight decimal.Decimal
	Total         decimal.Decimal
}

// ReservationOptions bounds what a guest may request.
type ReservationOptions struct {
	MaxStayNights      int
	MaxAdvanceDays     int
	ExportMaxRangeDays int
}

type ReservationService struct {
	repo       domain.ReservationRepository
	locker     *PropertyLocker
	eventBus   domain.EventPublisher
	syncWorker domain.SyncWorker
	opts       ReservationOptions
	logger     *zerolog.Logger
	now        func() time.Time
}

func NewReservationService(
	repo domain.ReservationRepository,
	locker *PropertyLocker,
	eventBus domain.EventPublisher,
	syncWorker domain.SyncWorker,
	opts ReservationOptions,
	logger *zerolog.Logger,
) *ReservationService {
	return &ReservationService{
		repo:       repo,
		locker:     locker,
		eventBus:   eventBus,
		syncWorker: syncWorker,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

func validateRange(checkIn, checkOut time.Time) error {
	if checkIn.IsZero() || checkOut.IsZero() || !checkOut.After(checkIn) {
		return ErrInvalidRange
	}
	return nil
}

func (s *ReservationService) getProperty(ctx context.Context, id int64) (*models.Property, error) {
	p, err := s.repo.GetProperty(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, ErrPropertyNotFound)
	}
	return p, nil
}

// CheckAvailability reports whether no active reservation overlaps [checkIn, checkOut).
func (s *ReservationService) CheckAvailability(ctx context.Context, propertyID int64, checkIn, checkOut time.Time) (bool, error) {
	if err := validateRange(checkIn, checkOut); err != nil {
		return false, err
	}
	if _, err := s.getProperty(ctx, propertyID); err != nil {
		return false, err
	}

	overlap, err := s.repo.HasOverlap(ctx, propertyID, checkIn, checkOut)
	if err != nil {
		return false, err
	}
	return !overlap, nil
}

// CalculatePrice quotes a flat nightly rate; guestsCount is validated, not priced.
func (s *ReservationService) CalculatePrice(ctx context.Context, propertyID int64, checkIn, checkOut time.Time, guestsCount int) (*Quote, error) {
	if err := validateRange(checkIn, checkOut); err != nil {
		return nil, err
	}
	p, err := s.getProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if err := validateGuests(p, guestsCount); err != nil {
		return nil, err
	}
	return quoteFor(p, checkIn, checkOut), nil
}

func quoteFor(p *models.Property, checkIn, checkOut time.Time) *Quote {
	nights := models.Nights(checkIn, checkOut)
	return &Quote{
		PropertyID:    p.ID,
		CheckIn:       checkIn,
		CheckOut:      checkOut,
		Nights:        nights,
		PricePerNight: p.PricePerNight,
		Total:         p.PriceFor(nights).Round(2),
	}
}

func validateGuests(p *models.Property, guestsCount int) error {
	if guestsCount < 1 {
		return validationError("guests_count must be at least 1")
	}
	if p.MaxGuests > 0 && guestsCount > p.MaxGuests {
		return validationError("guests_count exceeds max_guests of %d", p.MaxGuests)
	}
	return nil
}

func (s *ReservationService) validateStay(checkIn, checkOut time.Time) error {
	if s.opts.MaxStayNights > 0 && models.Nights(checkIn, checkOut) > s.opts.MaxStayNights {
		return validationError("stay exceeds %d nights", s.opts.MaxStayNights)
	}
	if s.opts.MaxAdvanceDays > 0 && checkIn.After(s.now().AddDate(0, 0, s.opts.MaxAdvanceDays)) {
		return validationError("check_in is more than %d days ahead", s.opts.MaxAdvanceDays)
	}
	return nil
}

type CreateReservationInput struct {
	GuestID         int64
	PropertyID      int64
	CheckIn         time.Time
	CheckOut        time.Time
	GuestsCount     int
	SpecialRequests string
}

func (s *ReservationService) CreateReservation(ctx context.Context, in CreateReservationInput) (*models.Reservation, error) {
	if err := validateRange(in.CheckIn, in.CheckOut); err != nil {
		metrics.IncReservationRejected("invalid_range")
		return nil, err
	}
	if err := s.validateStay(in.CheckIn, in.CheckOut); err != nil {
		metrics.IncReservationRejected("validation")
		return nil, err
	}

	p, err := s.getProperty(ctx, in.PropertyID)
	if err != nil {
		return nil, err
	}
	if !p.IsAvailable {
		metrics.IncReservationRejected("unlisted")
		return nil, ErrUnavailable
	}
	if err := validateGuests(p, in.GuestsCount); err != nil {
		metrics.IncReservationRejected("validation")
		return nil, err
	}

	quote := quoteFor(p, in.CheckIn, in.CheckOut)
	reservation := &models.Reservation{
		GuestID:         in.GuestID,
		PropertyID:      p.ID,
		CheckIn:         in.CheckIn,
		CheckOut:        in.CheckOut,
		TotalPrice:      quote.Total,
		GuestsCount:     in.GuestsCount,
		SpecialRequests: in.SpecialRequests,
		Status:          models.StatusPending,
		HostID:          p.HostID,
		PropertyTitle:   p.Title,
	}

	err = s.locker.WithLock(ctx, p.ID, func() error {
		return s.repo.CreateReservationWithLock(ctx, reservation)
	})
	if err != nil {
		err = mapStoreError(err, ErrPropertyNotFound)
		switch {
		case errors.Is(err, ErrUnavailable):
			metrics.IncReservationRejected("overlap")
		case errors.Is(err, ErrLockBusy):
			metrics.IncReservationRejected("lock_busy")
		}
		return nil, err
	}

	metrics.IncReservationCreated()
	s.logger.Info().
		Int64("reservation_id", reservation.ID).
		Int64("property_id", p.ID).
		Int64("guest_id", in.GuestID).
		Str("total", reservation.TotalPrice.StringFixed(2)).
		Msg("reservation created")

	s.publishEvent(events.EventReservationCreated, reservation, in.GuestID)
	s.enqueueSync(ctx, reservation, TaskUpsert)

	return reservation, nil
}

// UpdateReservationStatus moves a reservation along the lifecycle.
// Hosts of the property and admins may make any allowed move; a guest may
// only cancel their own pending reservation.
func (s *ReservationService) UpdateReservationStatus(ctx context.Context, reservationID int64, actor models.Actor, newStatus string) (*models.Reservation, error) {
	if !models.IsValidStatus(newStatus) {
		return nil, validationError("unknown status %q", newStatus)
	}

	r, err := s.repo.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, mapStoreError(err, ErrReservationNotFound)
	}

	if !canChangeStatus(r, actor, newStatus) {
		return nil, ErrForbidden
	}
	if !models.CanTransition(r.Status, newStatus) {
		return nil, ErrInvalidTransition
	}

	if err := s.repo.UpdateReservationStatusWithVersion(ctx, r.ID, r.Version, newStatus); err != nil {
		return nil, mapStoreError(err, ErrReservationNotFound)
	}

	r.Status = newStatus
	r.Version++
	r.UpdatedAt = s.now().UTC()

	metrics.IncStatusChange(newStatus)
	s.logger.Info().
		Int64("reservation_id", r.ID).
		Int64("actor_id", actor.UserID).
		Str("status", newStatus).
		Msg("reservation status changed")

	s.publishEvent(events.ReservationStatusEvent(newStatus), r, actor.UserID)
	s.enqueueSync(ctx, r, TaskUpdateStatus)

	return r, nil
}

func canChangeStatus(r *models.Reservation, actor models.Actor, newStatus string) bool {
	if actor.IsAdmin() || r.HostID == actor.UserID {
		return true
	}
	return r.GuestID == actor.UserID &&
		r.Status == models.StatusPending &&
		newStatus == models.StatusCancelled
}

func canView(r *models.Reservation, actor models.Actor) bool {
	return actor.IsAdmin() || r.GuestID == actor.UserID || r.HostID == actor.UserID
}

func (s *ReservationService) Get(ctx context.Context, actor models.Actor, id int64) (*models.Reservation, error) {
	r, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, ErrReservationNotFound)
	}
	if !canView(r, actor) {
		return nil, ErrForbidden
	}
	return r, nil
}

// ListForActor returns the reservations the actor can see.
func (s *ReservationService) ListForActor(ctx context.Context, actor models.Actor) ([]*models.Reservation, error) {
	return s.repo.ListReservations(ctx, filterFor(actor, models.ReservationFilter{}))
}

func filterFor(actor models.Actor, filter models.ReservationFilter) models.ReservationFilter {
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleHost:
		filter.HostID = actor.UserID
	default:
		filter.GuestID = actor.UserID
	}
	return filter
}

// Export renders the actor's reservations touching [from, to) as a workbook.
func (s *ReservationService) Export(ctx context.Context, actor models.Actor, from, to time.Time) ([]byte, error) {
	if !actor.CanHost() {
		return nil, ErrForbidden
	}
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	if s.opts.ExportMaxRangeDays > 0 && to.Sub(from) > time.Duration(s.opts.ExportMaxRangeDays)*24*time.Hour {
		return nil, validationError("export range exceeds %d days", s.opts.ExportMaxRangeDays)
	}

	reservations, err := s.repo.ListReservations(ctx, filterFor(actor, models.ReservationFilter{From: from, To: to}))
	if err != nil {
		return nil, err
	}
	return export.ReservationsWorkbook(reservations, s.now())
}

func (s *ReservationService) publishEvent(eventType string, r *models.Reservation, changedByID int64) {
	if s.eventBus == nil {
		return
	}

	payload := events.ReservationEventPayload{
		ReservationID: r.ID,
		PropertyID:    r.PropertyID,
		PropertyTitle: r.PropertyTitle,
		HostID:        r.HostID,
		GuestID:       r.GuestID,
		CheckIn:       r.CheckIn.Format(models.DateLayout),
		CheckOut:      r.CheckOut.Format(models.DateLayout),
		TotalPrice:    r.TotalPrice,
		Status:        r.Status,
		ChangedByID:   changedByID,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("reservation_id", r.ID).Msg("publish event error")
	}
}

func (s *ReservationService) enqueueSync(ctx context.Context, r *models.Reservation, taskType string) {
	if s.syncWorker == nil {
		return
	}

	if err := s.syncWorker.EnqueueTask(ctx, taskType, r); err != nil {
		s.logger.Error().Err(err).Int64("reservation_id", r.ID).Str("task", taskType).Msg("sheets enqueue error")
	}
}
