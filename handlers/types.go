package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"checklist/apierr"
	"checklist/database"
	"checklist/middleware"
	"checklist/models"
	"checklist/report"
	"checklist/templatesheet"

	"github.com/gin-gonic/gin"
)

func ListTypes(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		types, err := db.ListTypes(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, types)
	}
}

func GetType(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := int64Param(c, "id")
		if err != nil {
			fail(c, err)
			return
		}
		t, err := db.GetType(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

func CreateType(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.TypeRequest
		if err := bindJSON(c, &req); err != nil {
			fail(c, err)
			return
		}
		t, err := db.CreateType(c.Request.Context(), req.Name)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, t)
	}
}

func UpdateType(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := int64Param(c, "id")
		if err != nil {
			fail(c, err)
			return
		}
		var req models.TypeRequest
		if err := bindJSON(c, &req); err != nil {
			fail(c, err)
			return
		}
		t, err := db.UpdateType(c.Request.Context(), id, req.Name)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

func DeleteType(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := int64Param(c, "id")
		if err != nil {
			fail(c, err)
			return
		}
		if err := db.DeleteType(c.Request.Context(), id); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "type deleted"})
	}
}

// TypeSegments returns the type's template: segments with their questions.
func TypeSegments(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := int64Param(c, "id")
		if err != nil {
			fail(c, err)
			return
		}
		segments, err := db.TypeTemplate(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, segments)
	}
}

// UploadTemplate replaces the type's segments and questions with the rows of
// the uploaded workbook. Nothing changes unless every row is valid.
func UploadTemplate(db *database.DB, maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := int64Param(c, "id")
		if err != nil {
			fail(c, err)
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		fh, err := c.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				fail(c, apierr.Invalidf("file exceeds the %d MB upload limit", maxBytes>>20))
				return
			}
			fail(c, apierr.Invalidf("no file uploaded"))
			return
		}
		if !strings.EqualFold(filepath.Ext(fh.Filename), ".xlsx") {
			fail(c, apierr.Invalidf("file %q is not an .xlsx workbook", fh.Filename))
			return
		}

		f, err := fh.Open()
		if err != nil {
			fail(c, fmt.Errorf("failed to open upload: %w", err))
			return
		}
		defer f.Close()

		rows, err := templatesheet.Parse(f)
		if err != nil {
			fail(c, err)
			return
		}

		segments, questions, err := db.ReplaceTypeTemplate(c.Request.Context(), id, rows, middleware.ActorID(c))
		if err != nil {
			fail(c, err)
			return
		}

		middleware.LoggerFrom(c).Info("Template uploaded",
			"type_id", id, "rows", len(rows), "segments", segments, "questions", questions)
		c.JSON(http.StatusOK, gin.H{
			"message":   fmt.Sprintf("Successfully imported %d rows", len(rows)),
			"rows":      len(rows),
			"segments":  segments,
			"questions": questions,
		})
	}
}

// DownloadTemplate serves the sample workbook describing the upload format.
func DownloadTemplate(c *gin.Context) {
	var buf bytes.Buffer
	if err := templatesheet.WriteSample(&buf); err != nil {
		fail(c, err)
		return
	}
	attachment(c, report.XLSXContentType, "checklist_template.xlsx", &buf)
}
