package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"stayhub/internal/apperr"
	"stayhub/internal/models"
	"stayhub/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads a request body into dst and runs its validate tags.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) *apperr.AppError {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.BadRequest("Request body is required")
		}
		return apperr.BadRequest("Invalid JSON body")
	}

	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			details := make(map[string]any, len(fieldErrs))
			for _, fe := range fieldErrs {
				details[fe.Field()] = fe.Tag()
			}
			return apperr.Validation("Validation failed", details)
		}
		return apperr.BadRequest("Invalid request")
	}
	return nil
}

func parseDateParam(name, value string) (time.Time, *apperr.AppError) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, apperr.BadRequest(name + " is required")
	}
	t, err := models.ParseDate(strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, apperr.BadRequest(name + " must be a YYYY-MM-DD date")
	}
	return t, nil
}

type messageResponse struct {
	Message string `json:"message"`
}

// Auth

type RegisterRequest struct {
	Username  string `json:"username" validate:"required"`
	Email     string `json:"email" validate:"required"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
}

func (r RegisterRequest) toInput() service.RegisterInput {
	return service.RegisterInput{
		Username:  r.Username,
		Email:     r.Email,
		Password:  r.Password,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Phone:     r.Phone,
		Role:      r.Role,
	}
}

type VerifyOTPRequest struct {
	Email   string `json:"email" validate:"required,email"`
	OTPCode string `json:"otp_code" validate:"required,numeric"`
}

type ResendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	User      UserResponse `json:"user"`
}

type ProfileRequest struct {
	FirstName      string `json:"first_name" validate:"required"`
	LastName       string `json:"last_name" validate:"required"`
	Phone          string `json:"phone"`
	TelegramChatID int64  `json:"telegram_chat_id"`
}

type UserResponse struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Phone      string    `json:"phone,omitempty"`
	Role       string    `json:"role"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
}

func newUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Phone:      u.Phone,
		Role:       u.Role,
		IsVerified: u.IsVerified,
		CreatedAt:  u.CreatedAt,
	}
}

type RegisterResponse struct {
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

// Properties

type PropertyRequest struct {
	Title         string   `json:"title" validate:"required,max=200"`
	Description   string   `json:"description" validate:"max=5000"`
	PropertyType  string   `json:"property_type" validate:"required,max=50"`
	PricePerNight string   `json:"price_per_night" validate:"required"`
	Location      string   `json:"location" validate:"required,max=200"`
	Bedrooms      int      `json:"bedrooms" validate:"gte=0"`
	Bathrooms     int      `json:"bathrooms" validate:"gte=0"`
	MaxGuests     int      `json:"max_guests" validate:"gte=0"`
	Amenities     []string `json:"amenities" validate:"max=50,dive,max=50"`
	IsAvailable   *bool    `json:"is_available"`
}

func (r PropertyRequest) toInput() (service.PropertyInput, *apperr.AppError) {
	price, err := decimal.NewFromString(strings.TrimSpace(r.PricePerNight))
	if err != nil {
		return service.PropertyInput{}, apperr.Validation("Validation failed", map[string]any{"price_per_night": "decimal"})
	}
	available := true
	if r.IsAvailable != nil {
		available = *r.IsAvailable
	}
	return service.PropertyInput{
		Title:         r.Title,
		Description:   r.Description,
		PropertyType:  r.PropertyType,
		PricePerNight: price,
		Location:      r.Location,
		Bedrooms:      r.Bedrooms,
		Bathrooms:     r.Bathrooms,
		MaxGuests:     r.MaxGuests,
		Amenities:     r.Amenities,
		IsAvailable:   available,
	}, nil
}

// PropertyUpdateRequest is a partial edit; omitted fields keep their stored value.
type PropertyUpdateRequest struct {
	Title         *string  `json:"title" validate:"omitempty,max=200"`
	Description   *string  `json:"description" validate:"omitempty,max=5000"`
	PropertyType  *string  `json:"property_type" validate:"omitempty,max=50"`
	PricePerNight *string  `json:"price_per_night"`
	Location      *string  `json:"location" validate:"omitempty,max=200"`
	Bedrooms      *int     `json:"bedrooms" validate:"omitempty,gte=0"`
	Bathrooms     *int     `json:"bathrooms" validate:"omitempty,gte=0"`
	MaxGuests     *int     `json:"max_guests" validate:"omitempty,gte=0"`
	Amenities     []string `json:"amenities" validate:"omitempty,max=50,dive,max=50"`
	IsAvailable   *bool    `json:"is_available"`
}

func (r PropertyUpdateRequest) toUpdate() (service.PropertyUpdate, *apperr.AppError) {
	upd := service.PropertyUpdate{
		Title:        r.Title,
		Description:  r.Description,
		PropertyType: r.PropertyType,
		Location:     r.Location,
		Bedrooms:     r.Bedrooms,
		Bathrooms:    r.Bathrooms,
		MaxGuests:    r.MaxGuests,
		Amenities:    r.Amenities,
		IsAvailable:  r.IsAvailable,
	}
	if r.PricePerNight != nil {
		price, err := decimal.NewFromString(strings.TrimSpace(*r.PricePerNight))
		if err != nil {
			return service.PropertyUpdate{}, apperr.Validation("Validation failed", map[string]any{"price_per_night": "decimal"})
		}
		upd.PricePerNight = &price
	}
	return upd, nil
}

type PropertyResponse struct {
	ID            int64     `json:"id"`
	HostID        int64     `json:"host_id"`
	HostUsername  string    `json:"host_username,omitempty"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	PropertyType  string    `json:"property_type"`
	PricePerNight string    `json:"price_per_night"`
	Location      string    `json:"location"`
	Bedrooms      int       `json:"bedrooms"`
	Bathrooms     int       `json:"bathrooms"`
	MaxGuests     int       `json:"max_guests"`
	Amenities     []string  `json:"amenities"`
	IsAvailable   bool      `json:"is_available"`
	Rating        float64   `json:"rating"`
	IsPopular     bool      `json:"is_popular"`
	BookingCount  int64     `json:"booking_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func newPropertyResponse(p *models.Property) PropertyResponse {
	amenities := p.Amenities
	if amenities == nil {
		amenities = []string{}
	}
	return PropertyResponse{
		ID:            p.ID,
		HostID:        p.HostID,
		HostUsername:  p.HostUsername,
		Title:         p.Title,
		Description:   p.Description,
		PropertyType:  p.PropertyType,
		PricePerNight: p.PricePerNight.StringFixed(2),
		Location:      p.Location,
		Bedrooms:      p.Bedrooms,
		Bathrooms:     p.Bathrooms,
		MaxGuests:     p.MaxGuests,
		Amenities:     amenities,
		IsAvailable:   p.IsAvailable,
		Rating:        p.Rating,
		IsPopular:     p.IsPopular,
		BookingCount:  p.BookingCount,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

type PropertyListResponse struct {
	Properties []PropertyResponse `json:"properties"`
	Count      int                `json:"count"`
}

func newPropertyList(props []*models.Property) PropertyListResponse {
	out := PropertyListResponse{Properties: make([]PropertyResponse, 0, len(props))}
	for _, p := range props {
		out.Properties = append(out.Properties, newPropertyResponse(p))
	}
	out.Count = len(out.Properties)
	return out
}

type AvailabilityResponse struct {
	PropertyID int64  `json:"property_id"`
	CheckIn    string `json:"check_in"`
	CheckOut   string `json:"check_out"`
	Available  bool   `json:"available"`
}

// Reservations

type PriceRequest struct {
	PropertyID  int64  `json:"property_id" validate:"required,gt=0"`
	CheckIn     string `json:"check_in" validate:"required"`
	CheckOut    string `json:"check_out" validate:"required"`
	GuestsCount int    `json:"guests_count" validate:"gte=0"`
}

type QuoteResponse struct {
	PropertyID    int64  `json:"property_id"`
	CheckIn       string `json:"check_in"`
	CheckOut      string `json:"check_out"`
	Nights        int    `json:"nights"`
	PricePerNight string `json:"price_per_night"`
	TotalPrice    string `json:"total_price"`
}

func newQuoteResponse(q *service.Quote) QuoteResponse {
	return QuoteResponse{
		PropertyID:    q.PropertyID,
		CheckIn:       q.CheckIn.Format(models.DateLayout),
		CheckOut:      q.CheckOut.Format(models.DateLayout),
		Nights:        q.Nights,
		PricePerNight: q.PricePerNight.StringFixed(2),
		TotalPrice:    q.Total.StringFixed(2),
	}
}

type CreateReservationRequest struct {
	PropertyID      int64  `json:"property_id" validate:"required,gt=0"`
	CheckIn         string `json:"check_in" validate:"required"`
	CheckOut        string `json:"check_out" validate:"required"`
	GuestsCount     int    `json:"guests_count" validate:"required,gt=0"`
	SpecialRequests string `json:"special_requests" validate:"max=1000"`
}

type StatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type ReservationResponse struct {
	ID               int64     `json:"id"`
	PropertyID       int64     `json:"property_id"`
	PropertyTitle    string    `json:"property_title,omitempty"`
	PropertyLocation string    `json:"property_location,omitempty"`
	HostID           int64     `json:"host_id,omitempty"`
	GuestID          int64     `json:"guest_id"`
	GuestUsername    string    `json:"guest_username,omitempty"`
	CheckIn          string    `json:"check_in"`
	CheckOut         string    `json:"check_out"`
	Nights           int       `json:"nights"`
	TotalPrice       string    `json:"total_price"`
	GuestsCount      int       `json:"guests_count"`
	SpecialRequests  string    `json:"special_requests,omitempty"`
	Status           string    `json:"status"`
	Version          int64     `json:"version"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func newReservationResponse(r *models.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:               r.ID,
		PropertyID:       r.PropertyID,
		PropertyTitle:    r.PropertyTitle,
		PropertyLocation: r.PropertyLocation,
		HostID:           r.HostID,
		GuestID:          r.GuestID,
		GuestUsername:    r.GuestUsername,
		CheckIn:          r.CheckIn.UTC().Format(models.DateLayout),
		CheckOut:         r.CheckOut.UTC().Format(models.DateLayout),
		Nights:           r.Nights(),
		TotalPrice:       r.TotalPrice.StringFixed(2),
		GuestsCount:      r.GuestsCount,
		SpecialRequests:  r.SpecialRequests,
		Status:           r.Status,
		Version:          r.Version,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

type ReservationListResponse struct {
	Reservations []ReservationResponse `json:"reservations"`
	Count        int                   `json:"count"`
}

func newReservationList(items []*models.Reservation) ReservationListResponse {
	out := ReservationListResponse{Reservations: make([]ReservationResponse, 0, len(items))}
	for _, r := range items {
		out.Reservations = append(out.Reservations, newReservationResponse(r))
	}
	out.Count = len(out.Reservations)
	return out
}
