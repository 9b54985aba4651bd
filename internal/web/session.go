package web

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	sessionCookie = "review_queue_session"
	sessionTTL    = 24 * time.Hour
)

// sessionClaims is the signed session payload. The GitHub token rides in the
// cookie rather than server-side state, so sessions survive restarts; the
// cookie is signed against tampering and the token came from the client in
// the first place.
type sessionClaims struct {
	Username string `json:"username"`
	Token    string `json:"token"`
	jwt.RegisteredClaims
}

type sessionCodec struct {
	secret []byte
}

func (c sessionCodec) issue(username, token string) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Username: username,
		Token:    token,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

func (c sessionCodec) verify(raw string) (*sessionClaims, error) {
	tok, err := jwt.ParseWithClaims(raw, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse session token: %w", err)
	}
	claims, ok := tok.Claims.(*sessionClaims)
	if !ok || !tok.Valid || claims.Username == "" {
		return nil, errors.New("invalid session token")
	}
	return claims, nil
}

// session returns the verified session for a request, or nil when there is
// no valid session cookie.
func (s *Server) session(r *http.Request) *sessionClaims {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil
	}
	claims, err := s.codec.verify(cookie.Value)
	if err != nil {
		return nil
	}
	return claims
}

func setSessionCookie(w http.ResponseWriter, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
