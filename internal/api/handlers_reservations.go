package api

import (
	"fmt"
	"net/http"
	"strconv"

	"stayhub/internal/models"
	"stayhub/internal/service"

	"github.com/julienschmidt/httprouter"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *HTTPServer) calculatePrice(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req PriceRequest
	if appErr := decodeJSON(w, r, &req); appErr != nil {
		s.writeError(w, r, appErr)
		return
	}
	checkIn, appErr := parseDateParam("check_in", req.CheckIn)
	if appErr != nil {
		s.writeError(w, r, appErr)
		return
	}
	checkOut, appErr := parseDateParam("check_out", req.CheckOut)
	if appErr != nil {
		s.writeError(w, r, appErr)
		return
	}
	guests := req.GuestsCount
	if guests == 0 {
		guests = 1
	}

	quote, err := s.svc.Reservations.CalculatePrice(r.Context(), req.PropertyID, checkIn, checkOut, guests)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newQuoteResponse(quote))
}

func (s *HTTPServer) createReservation(w http.ResponseWriter, r *http.Request, _ httprouter.Params, claims *service.Claims) {
	var req CreateReservationRequest
	if appErr := decodeJSON(w, r, &req); appErr != nil {
		s.writeError(w, r, appErr)
		return
	}
	checkIn, appErr := parseDateParam("check_in", req.CheckIn)
	if appErr != nil {
		s.writeError(w, r, appErr)
		return
	}
	checkOut, appErr := parseDateParam("check_out", req.CheckOut)
	if appErr != nil {
		s.writeError(w, r, appErr)
		return
	}

	reservation, err := s.svc.Reservations.CreateReservation(r.Context(), service.CreateReservationInput{
		GuestID:         claims.UserID,
		PropertyID:      req.PropertyID,
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		GuestsCount:     req.GuestsCount,
		SpecialRequests: req.SpecialRequests,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, newReservationResponse(reservation))
}

func (s *HTTPServer) listReservations(w http.ResponseWriter, r *http.Request, _ httprouter.Params, claims *service.Claims) {
	items, err := s.svc.Reservations.ListForActor(r.Context(), claims.Actor())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newReservationList(items))
}

func (s *HTTPServer) reservationByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params, claims *service.Claims) {
	if ps.ByName("id") == "export" {
		s.exportReservations(w, r, claims)
		return
	}

	id, appErr := parseID(ps)
	if appErr != nil {
		s.writeError(w, r, appErr)
		return
	}
	reservation, err := s.svc.Reservations.Get(r.Context(), claims.Actor(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newReservationResponse(reservation))
}

func (s *HTTPServer) exportReservations(w http.ResponseWriter, r *http.Request, claims *service.Claims) {
	q := r.URL.Query()
	from, appErr := parseDateParam("from", q.Get("from"))
	if appErr != nil {
		s.writeError(w, r, appErr)
		return
	}
	to, appErr := parseDateParam("to", q.Get("to"))
	if appErr != nil {
		s.writeError(w, r, appErr)
		return
	}

	data, err := s.svc.Reservations.Export(r.Context(), claims.Actor(), from, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	filename := fmt.Sprintf("reservations_%s_%s.xlsx", from.Format(models.DateLayout), to.Format(models.DateLayout))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.log.Warn().Err(err).Msg("failed to write export")
	}
}

func (s *HTTPServer) updateReservationStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params, claims *service.Claims) {
	id, appErr := parseID(ps)
	if appErr != nil {
		s.writeError(w, r, appErr)
		return
	}
	var req StatusRequest
	if appErr := decodeJSON(w, r, &req); appErr != nil {
		s.writeError(w, r, appErr)
		return
	}

	reservation, err := s.svc.Reservations.UpdateReservationStatus(r.Context(), id, claims.Actor(), req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newReservationResponse(reservation))
}
