package handlers

import (
	"net/http"

	"checklist/database"
	"checklist/middleware"
	"checklist/models"

	"github.com/gin-gonic/gin"
)

func Login(db *database.DB, s *middleware.Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.LoginRequest
		if err := bindJSON(c, &req); err != nil {
			fail(c, err)
			return
		}

		user, err := db.Authenticate(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			middleware.LoggerFrom(c).Warn("Login failed", "username", req.Username)
			fail(c, err)
			return
		}
		if err := s.Login(c, user); err != nil {
			fail(c, err)
			return
		}

		middleware.LoggerFrom(c).Info("User logged in", "user_id", user.ID)
		c.JSON(http.StatusOK, gin.H{"message": "logged in", "user": user})
	}
}

func Logout(s *middleware.Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.Logout(c); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
	}
}

// Register creates a regular (non-staff) account and logs it in.
func Register(db *database.DB, s *middleware.Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.RegisterRequest
		if err := bindJSON(c, &req); err != nil {
			fail(c, err)
			return
		}

		user, err := db.CreateUser(c.Request.Context(), models.UserRequest{
			Username:  req.Username,
			Password:  req.Password,
			Email:     req.Email,
			FirstName: req.FirstName,
			LastName:  req.LastName,
		}, 0)
		if err != nil {
			fail(c, err)
			return
		}
		if err := s.Login(c, user); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "registered", "user": user})
	}
}

func ChangePassword(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ChangePasswordRequest
		if err := bindJSON(c, &req); err != nil {
			fail(c, err)
			return
		}
		if err := db.ChangePassword(c.Request.Context(), middleware.ActorID(c), req.OldPassword, req.NewPassword); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "password changed"})
	}
}

// CSRF issues the token clients echo in the X-CSRFToken header.
func CSRF(s *middleware.Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := s.CSRFToken(c)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"csrfToken": token})
	}
}
