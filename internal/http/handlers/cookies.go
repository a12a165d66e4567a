package handlers

import (
	"net/http"
	"time"

	"github.com/hongminglow/todo-api/internal/auth"
	"github.com/hongminglow/todo-api/internal/middleware"
)

// RefreshTokenCookie is the cookie the refresh token travels in.
const RefreshTokenCookie = "refreshToken"

func sessionCookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

func setSessionCookies(w http.ResponseWriter, pair auth.TokenPair, accessTTL, refreshTTL time.Duration) {
	http.SetCookie(w, sessionCookie(middleware.AccessTokenCookie, pair.AccessToken, accessTTL))
	http.SetCookie(w, sessionCookie(RefreshTokenCookie, pair.RefreshToken, refreshTTL))
}

func clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{middleware.AccessTokenCookie, RefreshTokenCookie} {
		c := sessionCookie(name, "", 0)
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}
