package handlers

import (
	"net/http"

	"checklist/database"
	"checklist/models"

	"github.com/gin-gonic/gin"
)

// ListSegments narrows by ?type_id and ?project_id when given.
func ListSegments(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		typeID, err := optionalInt64(c, "type_id")
		if err != nil {
			fail(c, err)
			return
		}
		segments, err := db.ListSegments(c.Request.Context(), models.SegmentFilter{
			TypeID:    typeID,
			ProjectID: optionalString(c, "project_id"),
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, segments)
	}
}

func GetSegment(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := int64Param(c, "id")
		if err != nil {
			fail(c, err)
			return
		}
		segment, err := db.GetSegment(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, segment)
	}
}

func CreateSegment(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SegmentRequest
		if err := bindJSON(c, &req); err != nil {
			fail(c, err)
			return
		}
		segment, err := db.CreateSegment(c.Request.Context(), req)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, segment)
	}
}

func UpdateSegment(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := int64Param(c, "id")
		if err != nil {
			fail(c, err)
			return
		}
		var req models.SegmentRequest
		if err := bindJSON(c, &req); err != nil {
			fail(c, err)
			return
		}
		segment, err := db.UpdateSegment(c.Request.Context(), id, req)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, segment)
	}
}

func DeleteSegment(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := int64Param(c, "id")
		if err != nil {
			fail(c, err)
			return
		}
		if err := db.DeleteSegment(c.Request.Context(), id); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "segment deleted"})
	}
}

func SegmentQuestions(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := int64Param(c, "id")
		if err != nil {
			fail(c, err)
			return
		}
		if _, err := db.GetSegment(c.Request.Context(), id); err != nil {
			fail(c, err)
			return
		}
		questions, err := db.ListQuestions(c.Request.Context(), models.QuestionFilter{SegmentID: &id})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, questions)
	}
}
