package handlers

import (
	"net/http"

	"checklist/database"
	"checklist/middleware"
	"checklist/models"

	"github.com/gin-gonic/gin"
)

func ListSerialNumbers(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		typeID, err := optionalInt64(c, "type_id")
		if err != nil {
			fail(c, err)
			return
		}
		serials, err := db.ListSerialNumbers(c.Request.Context(), models.SerialNumberFilter{
			ProjectID: optionalString(c, "project_id"),
			TypeID:    typeID,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, serials)
	}
}

func GetSerialNumber(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuidParam(c, "id")
		if err != nil {
			fail(c, err)
			return
		}
		serial, err := db.GetSerialNumber(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, serial)
	}
}

func UpdateSerialNumber(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuidParam(c, "id")
		if err != nil {
			fail(c, err)
			return
		}
		var req models.UpdateSerialNumberRequest
		if err := bindJSON(c, &req); err != nil {
			fail(c, err)
			return
		}
		serial, err := db.UpdateSerialNumber(c.Request.Context(), id, req, middleware.ActorID(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, serial)
	}
}

func DeleteSerialNumber(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuidParam(c, "id")
		if err != nil {
			fail(c, err)
			return
		}
		if err := db.DeleteSerialNumber(c.Request.Context(), id, middleware.ActorID(c)); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "serial number deleted"})
	}
}

func SerialNumberAnswers(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuidParam(c, "id")
		if err != nil {
			fail(c, err)
			return
		}
		if _, err := db.GetSerialNumber(c.Request.Context(), id); err != nil {
			fail(c, err)
			return
		}
		answers, err := db.ListAnswers(c.Request.Context(), models.AnswerFilter{SerialNumberID: &id})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, answers)
	}
}
