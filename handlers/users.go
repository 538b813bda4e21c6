package handlers

import (
	"errors"
	"net/http"

	"checklist/apierr"
	"checklist/database"
	"checklist/middleware"
	"checklist/models"

	"github.com/gin-gonic/gin"
)

func ListUsers(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := db.ListUsers(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, users)
	}
}

func GetUser(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := int64Param(c, "id")
		if err != nil {
			fail(c, err)
			return
		}
		user, err := db.GetUser(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func CreateUser(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.UserRequest
		if err := bindJSON(c, &req); err != nil {
			fail(c, err)
			return
		}
		if err := checkGrant(c, req); err != nil {
			fail(c, err)
			return
		}
		user, err := db.CreateUser(c.Request.Context(), req, middleware.ActorID(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}

func UpdateUser(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := int64Param(c, "id")
		if err != nil {
			fail(c, err)
			return
		}
		var req models.UserRequest
		if err := bindJSON(c, &req); err != nil {
			fail(c, err)
			return
		}
		if err := checkGrant(c, req); err != nil {
			fail(c, err)
			return
		}
		user, err := db.UpdateUser(c.Request.Context(), id, req, middleware.ActorID(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func DeleteUser(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := int64Param(c, "id")
		if err != nil {
			fail(c, err)
			return
		}
		if err := db.DeleteUser(c.Request.Context(), id, middleware.ActorID(c)); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "user deleted"})
	}
}

// Me returns the logged-in user.
func Me(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.CurrentUser(c))
}

// checkGrant keeps staff members from handing out superuser rights.
func checkGrant(c *gin.Context, req models.UserRequest) error {
	if !req.IsSuperuser {
		return nil
	}
	if u := middleware.CurrentUser(c); u == nil || !u.IsSuperuser {
		return apierr.Forbidden(errors.New("only superusers can grant superuser rights"))
	}
	return nil
}
