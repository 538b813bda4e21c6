package handlers

import (
	"net/http"

	"checklist/database"
	"checklist/models"

	"github.com/gin-gonic/gin"
)

func ListProfiles(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		profiles, err := db.ListProfiles(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, profiles)
	}
}

func GetProfile(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := int64Param(c, "id")
		if err != nil {
			fail(c, err)
			return
		}
		profile, err := db.GetProfile(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, profile)
	}
}

func UpdateProfile(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := int64Param(c, "id")
		if err != nil {
			fail(c, err)
			return
		}
		var req models.ProfileRequest
		if err := bindJSON(c, &req); err != nil {
			fail(c, err)
			return
		}
		profile, err := db.UpdateProfile(c.Request.Context(), id, req)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, profile)
	}
}
