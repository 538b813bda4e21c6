package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"checklist/apierr"
	"checklist/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeUsers map[int64]*models.User

func (f fakeUsers) GetUser(_ context.Context, id int64) (*models.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, apierr.NotFoundf("user %d not found", id)
}

func init() {
	gin.SetMode(gin.TestMode)
}

// testRouter exposes a login route for user id 1 and protected routes behind
// AuthRequired and CSRFProtect.
func testRouter(users fakeUsers) (*gin.Engine, *Sessions) {
	s := NewSessions(testSecret, false)
	r := gin.New()
	r.Use(Recovery())

	r.POST("/login/:id", func(c *gin.Context) {
		var id int64 = 1
		if c.Param("id") == "2" {
			id = 2
		}
		if err := s.Login(c, users[id]); err != nil {
			Abort(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
	r.GET("/csrf", func(c *gin.Context) {
		token, err := s.CSRFToken(c)
		if err != nil {
			Abort(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"csrfToken": token})
	})
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	api := r.Group("/api")
	api.Use(AuthRequired(users, s), CSRFProtect(s))
	api.GET("/me", func(c *gin.Context) { c.JSON(http.StatusOK, CurrentUser(c)) })
	api.POST("/things", func(c *gin.Context) { c.JSON(http.StatusCreated, gin.H{"actor": ActorID(c)}) })
	api.GET("/admin", StaffRequired(), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r, s
}

func do(r http.Handler, req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, r http.Handler, id string) []*http.Cookie {
	t.Helper()
	w := do(r, httptest.NewRequest(http.MethodPost, "/login/"+id, nil), nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	return w.Result().Cookies()
}

func csrfToken(cookies []*http.Cookie) string {
	for _, c := range cookies {
		if c.Name == CSRFCookie {
			return c.Value
		}
	}
	return ""
}

func TestAuthRequired(t *testing.T) {
	users := fakeUsers{1: {ID: 1, Username: "1234"}}
	r, _ := testRouter(users)

	w := do(r, httptest.NewRequest(http.MethodGet, "/api/me", nil), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var env apierr.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, apierr.CodeUnauthenticated, env.Error.Code)

	cookies := login(t, r, "1")
	w = do(r, httptest.NewRequest(http.MethodGet, "/api/me", nil), cookies)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"1234"`)
}

func TestAuthRequired_DeletedUser(t *testing.T) {
	users := fakeUsers{1: {ID: 1}}
	r, _ := testRouter(users)
	cookies := login(t, r, "1")

	delete(users, 1)
	w := do(r, httptest.NewRequest(http.MethodGet, "/api/me", nil), cookies)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCSRFProtect(t *testing.T) {
	r, _ := testRouter(fakeUsers{1: {ID: 1}})
	cookies := login(t, r, "1")
	token := csrfToken(cookies)
	require.NotEmpty(t, token)

	w := do(r, httptest.NewRequest(http.MethodPost, "/api/things", nil), cookies)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/things", nil)
	req.Header.Set(CSRFHeader, "wrong")
	assert.Equal(t, http.StatusForbidden, do(r, req, cookies).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/things", nil)
	req.Header.Set(CSRFHeader, token)
	w = do(r, req, cookies)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"actor": 1}`, w.Body.String())
}

func TestCSRFProtect_Exempt(t *testing.T) {
	s := NewSessions(testSecret, false)
	r := gin.New()
	r.Use(CSRFProtect(s, "/api/auth/login"))
	r.POST("/api/auth/login", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/other", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, do(r, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil), nil).Code)
	assert.Equal(t, http.StatusForbidden, do(r, httptest.NewRequest(http.MethodPost, "/api/other", nil), nil).Code)
}

func TestCSRFToken_Stable(t *testing.T) {
	r, _ := testRouter(fakeUsers{})

	w := do(r, httptest.NewRequest(http.MethodGet, "/csrf", nil), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	first := body["csrfToken"]
	require.NotEmpty(t, first)

	w = do(r, httptest.NewRequest(http.MethodGet, "/csrf", nil), w.Result().Cookies())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, first, body["csrfToken"])
}

func TestStaffRequired(t *testing.T) {
	users := fakeUsers{1: {ID: 1}, 2: {ID: 2, IsStaff: true}}
	r, _ := testRouter(users)

	w := do(r, httptest.NewRequest(http.MethodGet, "/api/admin", nil), login(t, r, "1"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, httptest.NewRequest(http.MethodGet, "/api/admin", nil), login(t, r, "2"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecovery(t *testing.T) {
	r, _ := testRouter(fakeUsers{})

	w := do(r, httptest.NewRequest(http.MethodGet, "/panic", nil), nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var env apierr.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, apierr.CodeInternal, env.Error.Code)
	assert.Contains(t, env.Details, "boom")
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:5173"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := do(r, req, nil)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = do(r, req, nil)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
