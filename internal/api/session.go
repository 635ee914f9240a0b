package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionCookie is the cookie carrying the signed session token.
const SessionCookie = "sid"

const sessionTTL = 7 * 24 * time.Hour

type sessionClaims struct {
	Username string `json:"name"`
	jwt.RegisteredClaims
}

// mintSession signs a session token for a user.
func (s *Server) mintSession(userID, username string) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.JWTSecret)
}

// verifySession validates a token and returns (userID, username).
func (s *Server) verifySession(token string) (string, string, error) {
	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.JWTSecret, nil
	})
	if err != nil {
		return "", "", err
	}
	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid {
		return "", "", errors.New("invalid session token")
	}
	return claims.Subject, claims.Username, nil
}

// sessionFromRequest resolves the caller's identity from the session cookie
// or, for websocket clients that cannot set cookies, a token query param.
func (s *Server) sessionFromRequest(r *http.Request) (string, string, error) {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return s.verifySession(c.Value)
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return s.verifySession(token)
	}
	return "", "", errors.New("no session")
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name: SessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true,
	})
}
