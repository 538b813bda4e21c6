package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"

	"checklist/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

const (
	sessionName      = "checklist_session"
	sessionUserIDKey = "user_id"
	sessionCSRFKey   = "csrf_token"

	// CSRFHeader carries the token issued by GET /api/csrf on unsafe requests.
	CSRFHeader = "X-CSRFToken"
	// CSRFCookie mirrors the token for clients that read it from a cookie.
	CSRFCookie = "csrftoken"

	sessionMaxAge = 14 * 24 * 60 * 60
)

// Sessions wraps the signed cookie store that holds the logged-in user and
// the CSRF token.
type Sessions struct {
	store  *sessions.CookieStore
	secure bool
}

func NewSessions(secret string, secure bool) *Sessions {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Sessions{store: store, secure: secure}
}

func (s *Sessions) get(c *gin.Context) (*sessions.Session, error) {
	// A cookie signed with an old key yields a fresh session and an error; the
	// fresh session is still usable.
	session, err := s.store.Get(c.Request, sessionName)
	if session == nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return session, nil
}

// Login binds the session to user and rotates the CSRF token.
func (s *Sessions) Login(c *gin.Context, user *models.User) error {
	session, err := s.get(c)
	if err != nil {
		return err
	}
	token, err := newToken()
	if err != nil {
		return err
	}
	session.Values[sessionUserIDKey] = user.ID
	session.Values[sessionCSRFKey] = token
	if err := session.Save(c.Request, c.Writer); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	s.setCSRFCookie(c, token)
	return nil
}

// Logout expires the session cookie.
func (s *Sessions) Logout(c *gin.Context) error {
	session, err := s.get(c)
	if err != nil {
		return err
	}
	session.Values = map[interface{}]interface{}{}
	session.Options.MaxAge = -1
	return session.Save(c.Request, c.Writer)
}

// UserID returns the id of the logged-in user, if any.
func (s *Sessions) UserID(c *gin.Context) (int64, bool) {
	session, err := s.get(c)
	if err != nil {
		return 0, false
	}
	id, ok := session.Values[sessionUserIDKey].(int64)
	return id, ok && id > 0
}

// CSRFToken returns the session's token, issuing one first if needed.
func (s *Sessions) CSRFToken(c *gin.Context) (string, error) {
	session, err := s.get(c)
	if err != nil {
		return "", err
	}
	if token, ok := session.Values[sessionCSRFKey].(string); ok && token != "" {
		s.setCSRFCookie(c, token)
		return token, nil
	}

	token, err := newToken()
	if err != nil {
		return "", err
	}
	session.Values[sessionCSRFKey] = token
	if err := session.Save(c.Request, c.Writer); err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}
	s.setCSRFCookie(c, token)
	return token, nil
}

// checkCSRF compares the request header against the session token in constant time.
func (s *Sessions) checkCSRF(c *gin.Context) bool {
	session, err := s.get(c)
	if err != nil {
		return false
	}
	want, _ := session.Values[sessionCSRFKey].(string)
	got := c.GetHeader(CSRFHeader)
	return want != "" && subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

func (s *Sessions) setCSRFCookie(c *gin.Context, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CSRFCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   sessionMaxAge,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
