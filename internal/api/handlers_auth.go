package api

import (
	"net/http"

	"stayhub/internal/service"

	"github.com/julienschmidt/httprouter"
)

func (s *HTTPServer) register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req RegisterRequest
	if appErr := decodeJSON(w, r, &req); appErr != nil {
		s.writeError(w, r, appErr)
		return
	}

	user, err := s.svc.Auth.Register(r.Context(), req.toInput())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, RegisterResponse{
		Message: "Registration successful. Check your email for the verification code.",
		User:    newUserResponse(user),
	})
}

func (s *HTTPServer) verifyOTP(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req VerifyOTPRequest
	if appErr := decodeJSON(w, r, &req); appErr != nil {
		s.writeError(w, r, appErr)
		return
	}
	if err := s.svc.Auth.VerifyOTP(r.Context(), req.Email, req.OTPCode); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, messageResponse{Message: "Email verified"})
}

func (s *HTTPServer) resendOTP(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req ResendOTPRequest
	if appErr := decodeJSON(w, r, &req); appErr != nil {
		s.writeError(w, r, appErr)
		return
	}
	if err := s.svc.Auth.ResendOTP(r.Context(), req.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, messageResponse{Message: "Verification code sent"})
}

func (s *HTTPServer) login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req LoginRequest
	if appErr := decodeJSON(w, r, &req); appErr != nil {
		s.writeError(w, r, appErr)
		return
	}

	token, user, err := s.svc.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, LoginResponse{Token: token, TokenType: "Bearer", User: newUserResponse(user)})
}

func (s *HTTPServer) profile(w http.ResponseWriter, r *http.Request, _ httprouter.Params, claims *service.Claims) {
	user, err := s.svc.Auth.Profile(r.Context(), claims.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newUserResponse(user))
}

func (s *HTTPServer) updateProfile(w http.ResponseWriter, r *http.Request, _ httprouter.Params, claims *service.Claims) {
	var req ProfileRequest
	if appErr := decodeJSON(w, r, &req); appErr != nil {
		s.writeError(w, r, appErr)
		return
	}

	user, err := s.svc.Auth.UpdateProfile(r.Context(), claims.UserID, service.ProfileInput{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Phone:          req.Phone,
		TelegramChatID: req.TelegramChatID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newUserResponse(user))
}
