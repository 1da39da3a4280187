package user

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/auth"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/pkg/utilities"
)

// Handler exposes HTTP endpoints for user operations (signup / login / lookup).
type Handler struct {
	svc    *UserService
	tokens *auth.TokenService
	logger *zap.SugaredLogger
}

func NewHandler(svc *UserService, tokens *auth.TokenService, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, tokens: tokens, logger: logger}
}

// SignupRequest request body for signup endpoint.
type SignupRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	City      string `json:"city"`
	Phone     string `json:"phone"`
}

// SignupResponse response body containing new user id.
type SignupResponse struct {
	ID int64 `json:"id"`
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := utilities.DecodeJSON(r, &req); err != nil {
		h.logger.Debugw("invalid signup payload", "err", err)
		utilities.WriteError(w, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}
	u, err := h.svc.Signup(r.Context(), SignupInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		City:      req.City,
		Phone:     req.Phone,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrUsernameRequired), errors.Is(err, ErrPasswordTooShort):
			utilities.WriteError(w, http.StatusBadRequest, "invalid_payload", err.Error())
		case errors.Is(err, ErrUsernameTaken):
			utilities.WriteError(w, http.StatusConflict, "username_taken", err.Error())
		case errors.Is(err, ErrEmailTaken):
			utilities.WriteError(w, http.StatusConflict, "email_taken", err.Error())
		default:
			h.logger.Warnw("signup failed", "err", err)
			utilities.WriteError(w, http.StatusInternalServerError, "internal", "signup failed")
		}
		return
	}
	h.logger.Infow("user signed up", "user_id", u.ID)
	utilities.WriteJSON(w, http.StatusCreated, SignupResponse{ID: u.ID})
}

// LoginRequest login payload.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer token for subsequent calls.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      int64     `json:"user_id"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := utilities.DecodeJSON(r, &req); err != nil {
		h.logger.Debugw("invalid login payload", "err", err)
		utilities.WriteError(w, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}
	u, err := h.svc.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.logger.Debugw("login failed", "err", err)
		if errors.Is(err, ErrBadCredentials) {
			utilities.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
			return
		}
		utilities.WriteError(w, http.StatusInternalServerError, "internal", "login failed")
		return
	}
	token, exp, err := h.tokens.Issue(u.ID, u.Username)
	if err != nil {
		h.logger.Errorw("issue token failed", "user_id", u.ID, "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "internal", "login failed")
		return
	}
	utilities.WriteJSON(w, http.StatusOK, LoginResponse{AccessToken: token, TokenType: "Bearer", ExpiresAt: exp, UserID: u.ID})
}

// Get returns the public view of a user, including quota counters.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		utilities.WriteError(w, http.StatusBadRequest, "invalid_id", "invalid id")
		return
	}
	u, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			utilities.WriteError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		h.logger.Warnw("get user failed", "user_id", id, "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "internal", "lookup failed")
		return
	}
	utilities.WriteJSON(w, http.StatusOK, u.Public())
}
