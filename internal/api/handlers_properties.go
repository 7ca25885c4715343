package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"stayhub/internal/apperr"
	"stayhub/internal/models"
	"stayhub/internal/service"

	"github.com/julienschmidt/httprouter"
	"github.com/shopspring/decimal"
)

func parseID(ps httprouter.Params) (int64, *apperr.AppError) {
	id, err := strconv.ParseInt(ps.ByName("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.BadRequest("id must be a positive integer")
	}
	return id, nil
}

func parseIntParam(q url.Values, name string) (int, *apperr.AppError) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.BadRequest(name + " must be a non-negative integer")
	}
	return n, nil
}

func parseDecimalParam(q url.Values, name string) (*decimal.Decimal, *apperr.AppError) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, apperr.BadRequest(name + " must be a decimal number")
	}
	return &d, nil
}

func propertyFilterFromQuery(q url.Values) (models.PropertyFilter, *apperr.AppError) {
	filter := models.PropertyFilter{
		PropertyType: strings.TrimSpace(q.Get("property_type")),
		Location:     strings.TrimSpace(q.Get("location")),
	}

	var appErr *apperr.AppError
	if filter.MinPrice, appErr = parseDecimalParam(q, "min_price"); appErr != nil {
		return filter, appErr
	}
	if filter.MaxPrice, appErr = parseDecimalParam(q, "max_price"); appErr != nil {
		return filter, appErr
	}
	if filter.Limit, appErr = parseIntParam(q, "limit"); appErr != nil {
		return filter, appErr
	}
	if filter.Offset, appErr = parseIntParam(q, "offset"); appErr != nil {
		return filter, appErr
	}
	hostID, appErr := parseIntParam(q, "host_id")
	if appErr != nil {
		return filter, appErr
	}
	filter.HostID = int64(hostID)

	if raw := strings.TrimSpace(q.Get("is_available")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, apperr.BadRequest("is_available must be true or false")
		}
		filter.IsAvailable = &v
	}
	return filter, nil
}

func (s *HTTPServer) listProperties(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	filter, appErr := propertyFilterFromQuery(r.URL.Query())
	if appErr != nil {
		s.writeError(w, r, appErr)
		return
	}

	props, err := s.svc.Properties.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newPropertyList(props))
}

func (s *HTTPServer) propertyByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	switch ps.ByName("id") {
	case "popular":
		s.popularProperties(w, r)
		return
	case "search":
		s.searchProperties(w, r)
		return
	}

	id, appErr := parseID(ps)
	if appErr != nil {
		s.writeError(w, r, appErr)
		return
	}
	p, err := s.svc.Properties.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newPropertyResponse(p))
}

func (s *HTTPServer) popularProperties(w http.ResponseWriter, r *http.Request) {
	props, err := s.svc.Properties.Popular(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newPropertyList(props))
}

func (s *HTTPServer) searchProperties(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		s.writeError(w, r, apperr.BadRequest("q is required"))
		return
	}
	limit, appErr := parseIntParam(q, "limit")
	if appErr != nil {
		s.writeError(w, r, appErr)
		return
	}

	props, err := s.svc.Properties.Search(r.Context(), query, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newPropertyList(props))
}

func (s *HTTPServer) checkAvailability(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, appErr := parseID(ps)
	if appErr != nil {
		s.writeError(w, r, appErr)
		return
	}
	q := r.URL.Query()
	checkIn, appErr := parseDateParam("check_in", q.Get("check_in"))
	if appErr != nil {
		s.writeError(w, r, appErr)
		return
	}
	checkOut, appErr := parseDateParam("check_out", q.Get("check_out"))
	if appErr != nil {
		s.writeError(w, r, appErr)
		return
	}

	available, err := s.svc.Reservations.CheckAvailability(r.Context(), id, checkIn, checkOut)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, AvailabilityResponse{
		PropertyID: id,
		CheckIn:    checkIn.Format(models.DateLayout),
		CheckOut:   checkOut.Format(models.DateLayout),
		Available:  available,
	})
}

func (s *HTTPServer) createProperty(w http.ResponseWriter, r *http.Request, _ httprouter.Params, claims *service.Claims) {
	in, appErr := s.decodePropertyRequest(w, r)
	if appErr != nil {
		s.writeError(w, r, appErr)
		return
	}

	p, err := s.svc.Properties.Create(r.Context(), claims.Actor(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, newPropertyResponse(p))
}

func (s *HTTPServer) updateProperty(w http.ResponseWriter, r *http.Request, ps httprouter.Params, claims *service.Claims) {
	id, appErr := parseID(ps)
	if appErr != nil {
		s.writeError(w, r, appErr)
		return
	}
	var req PropertyUpdateRequest
	if appErr := decodeJSON(w, r, &req); appErr != nil {
		s.writeError(w, r, appErr)
		return
	}
	upd, appErr := req.toUpdate()
	if appErr != nil {
		s.writeError(w, r, appErr)
		return
	}

	p, err := s.svc.Properties.Update(r.Context(), claims.Actor(), id, upd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newPropertyResponse(p))
}

func (s *HTTPServer) decodePropertyRequest(w http.ResponseWriter, r *http.Request) (service.PropertyInput, *apperr.AppError) {
	var req PropertyRequest
	if appErr := decodeJSON(w, r, &req); appErr != nil {
		return service.PropertyInput{}, appErr
	}
	return req.toInput()
}
