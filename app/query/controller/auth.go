package controller

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Auth accepts either the static API token as a Bearer header (automation,
// curl) or a cr_session JWT cookie issued by HandleLogin (the dashboard).

const (
	sessionCookie = "cr_session"
	sessionTTL    = 8 * time.Hour
)

// ValidateToken reports whether the Authorization header carries the API token.
func (c *Controller) ValidateToken(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && token == c.APIToken
}

// parseSession returns the claims of a valid session cookie.
func (c *Controller) parseSession(r *http.Request) (jwt.MapClaims, bool) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil, false
	}
	tok, err := jwt.Parse(cookie.Value, func(*jwt.Token) (any, error) { return c.JWTSecret, nil })
	if err != nil || !tok.Valid {
		return nil, false
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	return claims, ok
}

// ValidateSessionCookie reports whether the request carries a valid session.
func (c *Controller) ValidateSessionCookie(r *http.Request) bool {
	_, ok := c.parseSession(r)
	return ok
}

// RequireAuth guards a handler behind the API token or a session.
func (c *Controller) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.ValidateToken(r) && !c.ValidateSessionCookie(r) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IssueSession sets a signed session cookie for username. MaxAge keeps the
// cookie alive across browser restarts for as long as the JWT itself lasts.
func (c *Controller) IssueSession(w http.ResponseWriter, username string) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  username,
		"role": "admin",
		"exp":  now.Add(sessionTTL).Unix(),
		"iat":  now.Unix(),
	})
	signed, _ := token.SignedString(c.JWTSecret)

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		Secure:   os.Getenv("ENVIRONMENT") == "production",
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(sessionTTL.Seconds()),
	})
}

// currentUser names the caller for the ops audit logs: the session subject,
// the fixed "api-token" for token auth, or "unknown".
func (c *Controller) currentUser(r *http.Request) string {
	if c.ValidateToken(r) {
		return "api-token"
	}
	if claims, ok := c.parseSession(r); ok {
		if sub, _ := claims["sub"].(string); sub != "" {
			return sub
		}
	}
	return "unknown"
}

// HandleLogin checks a username/password pair against the configured users
// and starts a session.
func (c *Controller) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	u, ok := c.Users[in.Username]
	if !ok || bcrypt.CompareHashAndPassword(u.Hash, []byte(in.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	c.IssueSession(w, in.Username)
	writeJSON(w, http.StatusOK, map[string]string{"ok": "1"})
}

// HandleLogout clears the session cookie.
func (c *Controller) HandleLogout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
	w.WriteHeader(http.StatusNoContent)
}
