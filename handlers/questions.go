package handlers

import (
	"net/http"

	"checklist/database"
	"checklist/models"

	"github.com/gin-gonic/gin"
)

func ListQuestions(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		typeID, err := optionalInt64(c, "type_id")
		if err != nil {
			fail(c, err)
			return
		}
		segmentID, err := optionalInt64(c, "segment_id")
		if err != nil {
			fail(c, err)
			return
		}
		questions, err := db.ListQuestions(c.Request.Context(), models.QuestionFilter{
			TypeID:    typeID,
			ProjectID: optionalString(c, "project_id"),
			SegmentID: segmentID,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, questions)
	}
}

func GetQuestion(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := int64Param(c, "id")
		if err != nil {
			fail(c, err)
			return
		}
		question, err := db.GetQuestion(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, question)
	}
}

func CreateQuestion(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.QuestionRequest
		if err := bindJSON(c, &req); err != nil {
			fail(c, err)
			return
		}
		question, err := db.CreateQuestion(c.Request.Context(), req)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, question)
	}
}

func UpdateQuestion(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := int64Param(c, "id")
		if err != nil {
			fail(c, err)
			return
		}
		var req models.QuestionRequest
		if err := bindJSON(c, &req); err != nil {
			fail(c, err)
			return
		}
		question, err := db.UpdateQuestion(c.Request.Context(), id, req)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, question)
	}
}

func DeleteQuestion(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := int64Param(c, "id")
		if err != nil {
			fail(c, err)
			return
		}
		if err := db.DeleteQuestion(c.Request.Context(), id); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "question deleted"})
	}
}

// QuestionAnswers lists the answers given to one question, optionally within
// one project (?project_id) or type (?type_id).
func QuestionAnswers(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := int64Param(c, "id")
		if err != nil {
			fail(c, err)
			return
		}
		typeID, err := optionalInt64(c, "type_id")
		if err != nil {
			fail(c, err)
			return
		}
		if _, err := db.GetQuestion(c.Request.Context(), id); err != nil {
			fail(c, err)
			return
		}
		answers, err := db.ListAnswers(c.Request.Context(), models.AnswerFilter{
			QuestionID: &id,
			ProjectID:  optionalString(c, "project_id"),
			TypeID:     typeID,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, answers)
	}
}
