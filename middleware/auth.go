package middleware

import (
	"context"
	"errors"
	"net/http"

	"checklist/apierr"
	"checklist/models"

	"github.com/gin-gonic/gin"
)

const (
	contextUserKey   = "user"
	contextUserIDKey = "user_id"
)

// UserLoader resolves the session's user id. *database.DB satisfies it.
type UserLoader interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

// AuthRequired rejects requests without a logged-in session user and stores
// the user in the context for handlers to use.
func AuthRequired(users UserLoader, s *Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := s.UserID(c)
		if !ok {
			Abort(c, apierr.Unauthenticated(errors.New("authentication required")))
			return
		}

		user, err := users.GetUser(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, apierr.ErrNotFound) {
				Abort(c, apierr.Unauthenticated(errors.New("session user no longer exists")))
				return
			}
			Abort(c, err)
			return
		}

		c.Set(contextUserKey, user)
		c.Set(contextUserIDKey, user.ID)
		c.Next()
	}
}

// StaffRequired must run after AuthRequired.
func StaffRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !(user.IsStaff || user.IsSuperuser) {
			Abort(c, apierr.Forbidden(errors.New("staff permission required")))
			return
		}
		c.Next()
	}
}

// CurrentUser returns the user stored by AuthRequired, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(contextUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// ActorID is the id recorded on audit entries; 0 when nobody is logged in.
func ActorID(c *gin.Context) int64 {
	return c.GetInt64(contextUserIDKey)
}

// Abort writes the error envelope and stops the handler chain.
func Abort(c *gin.Context, err error) {
	apiErr := apierr.From(err)
	if apiErr.Status >= http.StatusInternalServerError {
		LoggerFrom(c).Error("Request failed", "error", err, "path", c.FullPath())
	}
	c.AbortWithStatusJSON(apiErr.Status, apiErr.Envelope())
}
