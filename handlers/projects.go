package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"checklist/apierr"
	"checklist/archive"
	"checklist/database"
	"checklist/middleware"
	"checklist/models"
	"checklist/report"

	"github.com/gin-gonic/gin"
)

func CreateProject(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CreateProjectRequest
		if err := bindJSON(c, &req); err != nil {
			fail(c, err)
			return
		}

		project, created, err := db.CreateOrExtendProject(c.Request.Context(), req, middleware.ActorID(c))
		if err != nil {
			fail(c, err)
			return
		}

		log := middleware.LoggerFrom(c)
		if created {
			log.Info("Project created", "project_id", project.ID, "type_id", req.TypeID)
		} else {
			log.Info("Type added to project", "project_id", project.ID, "type_id", req.TypeID)
		}
		c.JSON(http.StatusCreated, project)
	}
}

func ListProjects(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		projects, err := db.ListProjects(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}

		c.JSON(http.StatusOK, models.ProjectsResponse{
			Projects: projects,
			Total:    len(projects),
		})
	}
}

func GetProject(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		project, err := db.GetProject(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, project)
	}
}

func UpdateProject(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.UpdateProjectRequest
		if err := bindJSON(c, &req); err != nil {
			fail(c, err)
			return
		}
		project, err := db.UpdateProject(c.Request.Context(), c.Param("id"), req, middleware.ActorID(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, project)
	}
}

func DeleteProject(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.DeleteProject(c.Request.Context(), c.Param("id"), middleware.ActorID(c)); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "project deleted"})
	}
}

func ProjectTypes(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		types, err := db.ListProjectTypes(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, models.ProjectTypesResponse{ProjectID: id, Types: types})
	}
}

func ProjectSegments(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if _, err := db.GetProject(c.Request.Context(), id); err != nil {
			fail(c, err)
			return
		}
		segments, err := db.ListSegments(c.Request.Context(), models.SegmentFilter{ProjectID: &id})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, segments)
	}
}

// ExportArchive downloads the project's full closure as a versioned JSON archive.
func ExportArchive(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		graph, err := db.LoadProjectGraph(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}

		now := time.Now()
		var buf bytes.Buffer
		if err := archive.Build(graph, now).Encode(&buf); err != nil {
			fail(c, err)
			return
		}

		middleware.LoggerFrom(c).Info("Project archive exported",
			"project_id", graph.Project.ID,
			"serial_numbers", len(graph.SerialNumbers),
			"answers", len(graph.Answers))
		attachment(c, "application/json", archive.Filename(graph.Project.ID, now), &buf)
	}
}

// ExportXLSX and ExportPDF render the project's checklist; ?type_id narrows
// the report to one of its types.
func ExportXLSX(db *database.DB) gin.HandlerFunc {
	return exportReport(db, report.XLSXContentType, ".xlsx", report.WriteXLSX)
}

func ExportPDF(db *database.DB) gin.HandlerFunc {
	return exportReport(db, report.PDFContentType, ".pdf", report.WritePDF)
}

func exportReport(db *database.DB, contentType, ext string, write func(io.Writer, *report.Report) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		typeID, err := optionalInt64(c, "type_id")
		if err != nil {
			fail(c, err)
			return
		}

		graph, err := db.LoadProjectGraph(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		rep, err := report.Build(graph, typeID)
		if err != nil {
			fail(c, err)
			return
		}

		var buf bytes.Buffer
		if err := write(&buf, rep); err != nil {
			fail(c, fmt.Errorf("failed to render report: %w", err))
			return
		}
		attachment(c, contentType, report.SanitizeFilename("Checklist_"+rep.ProjectID)+ext, &buf)
	}
}

// ExportProjectsJSON downloads the list of all projects with their types.
func ExportProjectsJSON(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		projects, err := db.ListProjects(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}

		now := time.Now()
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(gin.H{
			"exported_at": now.UTC().Format(time.RFC3339),
			"projects":    projects,
		}); err != nil {
			fail(c, fmt.Errorf("failed to encode projects: %w", err))
			return
		}
		attachment(c, "application/json", "projects_export_"+now.Format("20060102_150405")+".json", &buf)
	}
}

// ImportArchive accepts an archive as multipart field "file" or as the raw
// request body and recreates the project in one transaction.
func ImportArchive(db *database.DB, maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)

		var body io.Reader = c.Request.Body
		if strings.HasPrefix(c.ContentType(), "multipart/") {
			fh, err := c.FormFile("file")
			if err != nil {
				fail(c, apierr.Invalidf("no file uploaded"))
				return
			}
			f, err := fh.Open()
			if err != nil {
				fail(c, fmt.Errorf("failed to open upload: %w", err))
				return
			}
			defer f.Close()
			body = f
		}

		doc, err := archive.Decode(body)
		if err != nil {
			fail(c, err)
			return
		}
		if err := doc.Validate(); err != nil {
			fail(c, err)
			return
		}

		result, err := db.ImportArchive(c.Request.Context(), doc, middleware.ActorID(c))
		if err != nil {
			fail(c, err)
			return
		}

		middleware.LoggerFrom(c).Info("Project archive imported",
			"project_id", result.ProjectID,
			"answers", result.Answers,
			"restored_types", result.RestoredTypes,
			"remapped_ids", result.RemappedIDs)
		c.JSON(http.StatusCreated, gin.H{
			"message": fmt.Sprintf("Project %s imported", result.ProjectID),
			"result":  result,
		})
	}
}
