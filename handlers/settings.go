package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"checklist/apierr"
	"checklist/database"
	"checklist/models"

	"github.com/gin-gonic/gin"
)

const maxSettingKeyLen = 100

// ListSettings returns all settings as one key/value object.
func ListSettings(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		settings, err := db.ListSettings(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}
		out := make(map[string]json.RawMessage, len(settings))
		for _, s := range settings {
			out[s.Key] = s.Value
		}
		c.JSON(http.StatusOK, out)
	}
}

// PutSettings upserts every key of the body object in one transaction.
func PutSettings(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var values map[string]json.RawMessage
		if err := json.NewDecoder(c.Request.Body).Decode(&values); err != nil {
			fail(c, apierr.Invalidf("request body must be a JSON object: %v", err))
			return
		}
		for key := range values {
			if err := validateSettingKey(key); err != nil {
				fail(c, err)
				return
			}
		}
		if err := db.PutSettings(c.Request.Context(), values); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "settings saved", "count": len(values)})
	}
}

func GetSetting(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		setting, err := db.GetSetting(c.Request.Context(), c.Param("key"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, setting)
	}
}

func PutSetting(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")
		if err := validateSettingKey(key); err != nil {
			fail(c, err)
			return
		}
		var req models.SettingRequest
		if err := bindJSON(c, &req); err != nil {
			fail(c, err)
			return
		}
		setting, err := db.PutSetting(c.Request.Context(), key, req.Value)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, setting)
	}
}

func DeleteSetting(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.DeleteSetting(c.Request.Context(), c.Param("key")); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "setting deleted"})
	}
}

func validateSettingKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return apierr.Invalidf("setting key is empty")
	}
	if len(key) > maxSettingKeyLen {
		return apierr.Invalidf("setting key %q is longer than %d characters", key, maxSettingKeyLen)
	}
	return nil
}
