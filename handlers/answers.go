package handlers

import (
	"encoding/json"
	"net/http"

	"checklist/apierr"
	"checklist/database"
	"checklist/middleware"
	"checklist/models"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

const maxAnswerBatch = 5000

// ListAnswers narrows by ?serial_number, ?question_id, ?project_id and ?type_id.
func ListAnswers(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		serialID, err := optionalUUID(c, "serial_number")
		if err != nil {
			fail(c, err)
			return
		}
		questionID, err := optionalInt64(c, "question_id")
		if err != nil {
			fail(c, err)
			return
		}
		typeID, err := optionalInt64(c, "type_id")
		if err != nil {
			fail(c, err)
			return
		}

		answers, err := db.ListAnswers(c.Request.Context(), models.AnswerFilter{
			SerialNumberID: serialID,
			QuestionID:     questionID,
			ProjectID:      optionalString(c, "project_id"),
			TypeID:         typeID,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, answers)
	}
}

func GetAnswer(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuidParam(c, "id")
		if err != nil {
			fail(c, err)
			return
		}
		answer, err := db.GetAnswer(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, answer)
	}
}

// SaveAnswer creates the answer or overwrites the existing one for the same
// question and serial number.
func SaveAnswer(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.AnswerRequest
		if err := bindJSON(c, &req); err != nil {
			fail(c, err)
			return
		}
		answer, created, err := db.SaveAnswer(c.Request.Context(), req, middleware.ActorID(c))
		if err != nil {
			fail(c, err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		c.JSON(status, answer)
	}
}

// SaveAnswers takes an ordered array of answers. Every entry is validated
// before any is written; the first bad entry is reported by index.
func SaveAnswers(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var reqs []models.AnswerRequest
		if err := json.NewDecoder(c.Request.Body).Decode(&reqs); err != nil {
			fail(c, apierr.Invalidf("request body must be a JSON array of answers: %v", err))
			return
		}
		if len(reqs) == 0 {
			fail(c, apierr.Invalidf("no answers given"))
			return
		}
		if len(reqs) > maxAnswerBatch {
			fail(c, apierr.Invalidf("batch of %d answers exceeds the limit of %d", len(reqs), maxAnswerBatch))
			return
		}
		for i := range reqs {
			if err := binding.Validator.ValidateStruct(&reqs[i]); err != nil {
				fail(c, apierr.Invalidf("answer %d: %v", i, err))
				return
			}
		}

		answers, err := db.SaveAnswers(c.Request.Context(), reqs, middleware.ActorID(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"count":   len(answers),
			"answers": answers,
		})
	}
}

func UpdateAnswer(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuidParam(c, "id")
		if err != nil {
			fail(c, err)
			return
		}
		var req models.UpdateAnswerRequest
		if err := bindJSON(c, &req); err != nil {
			fail(c, err)
			return
		}
		answer, err := db.UpdateAnswer(c.Request.Context(), id, req.Value, middleware.ActorID(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, answer)
	}
}

func DeleteAnswer(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuidParam(c, "id")
		if err != nil {
			fail(c, err)
			return
		}
		if err := db.DeleteAnswer(c.Request.Context(), id, middleware.ActorID(c)); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "answer deleted"})
	}
}
