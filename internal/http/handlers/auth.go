package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/hongminglow/todo-api/internal/apierr"
	"github.com/hongminglow/todo-api/internal/auth"
	"github.com/hongminglow/todo-api/internal/config"
	"github.com/hongminglow/todo-api/internal/credentials"
	"github.com/hongminglow/todo-api/internal/http/respond"
	"github.com/hongminglow/todo-api/internal/models"
	"github.com/hongminglow/todo-api/internal/models/dto"
	"github.com/hongminglow/todo-api/internal/storage"
	"github.com/hongminglow/todo-api/internal/telemetry"
	"github.com/hongminglow/todo-api/internal/upload"
)

// AuthHandler owns the register/login/logout/refresh endpoints.
type AuthHandler struct {
	creds    *credentials.Service
	tokens   *auth.TokenManager
	uploader upload.Uploader
	cfg      config.Config
	metrics  *telemetry.Metrics
}

// NewAuthHandler constructs the handler. metrics may be nil.
func NewAuthHandler(creds *credentials.Service, tokens *auth.TokenManager, uploader upload.Uploader, cfg config.Config, metrics *telemetry.Metrics) *AuthHandler {
	if uploader == nil {
		uploader = upload.Disabled{}
	}
	return &AuthHandler{creds: creds, tokens: tokens, uploader: uploader, cfg: cfg, metrics: metrics}
}

// Register attaches the auth routes. requireUser guards the routes that act
// on the current session.
func (h *AuthHandler) Register(r chi.Router, requireUser func(http.Handler) http.Handler) {
	r.Method(http.MethodPost, "/register", handlerFunc(h.handleRegister))
	r.Method(http.MethodPost, "/login", handlerFunc(h.handleLogin))
	r.Method(http.MethodPost, "/refresh-access-token", handlerFunc(h.handleRefresh))
	r.Method(http.MethodPost, "/refresh-token", handlerFunc(h.handleRefresh))

	r.Group(func(r chi.Router) {
		r.Use(requireUser)
		r.Method(http.MethodGet, "/logout", handlerFunc(h.handleLogout))
		r.Method(http.MethodGet, "/me", handlerFunc(h.handleMe))
	})
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) error {
	var req dto.RegisterRequest
	if isMultipart(r) {
		if err := parseMultipart(w, r, h.cfg.Upload.MaxBytes); err != nil {
			return err
		}
		req = dto.RegisterRequest{
			FirstName: r.FormValue("firstName"),
			LastName:  r.FormValue("lastName"),
			Username:  r.FormValue("username"),
			Email:     r.FormValue("email"),
			Phone:     r.FormValue("phone"),
			Password:  r.FormValue("password"),
		}
	} else if err := decodeJSON(w, r, &req, h.cfg.Upload.MaxBytes); err != nil {
		return err
	}

	reg := credentials.Registration{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Username:  req.Username,
		Email:     req.Email,
		Phone:     req.Phone,
		Password:  req.Password,
	}.Normalize()
	if err := reg.Validate(); err != nil {
		return apierr.BadRequest(err.Error())
	}
	if err := h.creds.CheckAvailable(r.Context(), reg); err != nil {
		return h.registerError(err)
	}

	reg.Profile = stageImage(r, "profile", h.cfg.Upload.Dir, h.uploader)

	created, err := h.creds.Create(r.Context(), reg)
	if err != nil {
		return h.registerError(err)
	}

	h.metrics.AuthEvent("register", "success")
	respond.JSON(w, http.StatusCreated, "user registered successfully", created)
	return nil
}

func (h *AuthHandler) registerError(err error) error {
	switch {
	case errors.Is(err, storage.ErrAlreadyExists):
		h.metrics.AuthEvent("register", "conflict")
		return apierr.Conflict("user already exists")
	case errors.Is(err, credentials.ErrMissingFields), errors.Is(err, credentials.ErrPasswordTooLong):
		return apierr.BadRequest(err.Error())
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		return apierr.BadRequest(credentials.ErrPasswordTooLong.Error())
	default:
		return apierr.Internal("failed to create user", err)
	}
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) error {
	var req dto.LoginRequest
	if err := decodeJSON(w, r, &req, h.cfg.Upload.MaxBytes); err != nil {
		return err
	}
	identifier := firstNonEmpty(req.Identifier, req.Username, req.Email)
	if identifier == "" || strings.TrimSpace(req.Password) == "" {
		return apierr.BadRequest("identifier and password are required")
	}

	user, err := h.creds.FindByIdentifier(r.Context(), identifier)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.metrics.AuthEvent("login", "unknown_user")
			return apierr.NotFound("user not found")
		}
		return apierr.Internal("failed to fetch user", err)
	}
	if !h.creds.VerifySecret(user, req.Password) {
		h.metrics.AuthEvent("login", "invalid_password")
		return apierr.Unauthorized("invalid credentials")
	}

	resp, err := h.startSession(w, r, user)
	if err != nil {
		return err
	}
	h.metrics.AuthEvent("login", "success")
	respond.JSON(w, http.StatusOK, "login successful", resp)
	return nil
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) error {
	user, err := currentUser(r)
	if err != nil {
		return err
	}
	if _, err = h.creds.SetRefreshToken(r.Context(), user, ""); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apierr.NotFound("user not found")
		}
		return apierr.Internal("failed to end session", err)
	}

	clearSessionCookies(w)
	h.metrics.AuthEvent("logout", "success")
	respond.JSON(w, http.StatusOK, "user logged out successfully", dto.LogoutResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
	})
	return nil
}

func (h *AuthHandler) handleRefresh(w http.ResponseWriter, r *http.Request) error {
	presented := ""
	if c, err := r.Cookie(RefreshTokenCookie); err == nil {
		presented = c.Value
	}
	if presented == "" {
		// An unreadable body carries no token.
		var req dto.RefreshRequest
		if err := decodeJSON(w, r, &req, h.cfg.Upload.MaxBytes); err == nil {
			presented = strings.TrimSpace(req.RefreshToken)
		}
	}
	if presented == "" {
		h.metrics.AuthEvent("refresh", "missing")
		return apierr.Unauthorized("refresh token is required")
	}

	claims, err := h.tokens.Verify(presented, auth.RefreshToken)
	if err != nil {
		h.metrics.AuthEvent("refresh", "invalid")
		return apierr.Unauthorized("invalid or expired refresh token")
	}

	user, err := h.creds.FindByID(r.Context(), claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrInvalidID):
			return apierr.BadRequest("invalid user id")
		case errors.Is(err, storage.ErrNotFound):
			return apierr.NotFound("user not found")
		default:
			return apierr.Internal("failed to fetch user", err)
		}
	}

	if !h.matchesStoredSession(user, presented) {
		h.metrics.AuthEvent("refresh", "revoked")
		return apierr.Unauthorized("refresh token is expired or used")
	}

	resp, err := h.startSession(w, r, user)
	if err != nil {
		return err
	}
	h.metrics.AuthEvent("refresh", "success")
	respond.JSON(w, http.StatusOK, "access token refreshed", resp)
	return nil
}

// matchesStoredSession reports whether presented is the user's live refresh
// token and that stored copy still names the same user.
func (h *AuthHandler) matchesStoredSession(user models.User, presented string) bool {
	if user.RefreshToken == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(user.RefreshToken), []byte(presented)) != 1 {
		return false
	}
	stored, err := h.tokens.Verify(user.RefreshToken, auth.RefreshToken)
	return err == nil && stored.UserID == user.ID
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) error {
	user, err := currentUser(r)
	if err != nil {
		return err
	}
	respond.JSON(w, http.StatusOK, "current user", user)
	return nil
}

// startSession issues a token pair, stores the refresh token as the user's
// only session and sets both cookies.
func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, user models.User) (dto.TokenResponse, error) {
	pair, err := h.tokens.IssuePair(user)
	if err != nil {
		return dto.TokenResponse{}, apierr.Internal("failed to generate tokens", err)
	}
	user, err = h.creds.SetRefreshToken(r.Context(), user, pair.RefreshToken)
	if err != nil {
		return dto.TokenResponse{}, apierr.Internal("failed to store session", err)
	}
	setSessionCookies(w, pair, h.cfg.Tokens.AccessTTL, h.cfg.Tokens.RefreshTTL)
	return dto.TokenResponse{User: user, AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
