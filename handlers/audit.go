package handlers

import (
	"net/http"
	"time"

	"checklist/apierr"
	"checklist/database"
	"checklist/models"

	"github.com/gin-gonic/gin"
)

func GetAuditLog(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var params models.AuditQueryParams
		if err := c.ShouldBindQuery(&params); err != nil {
			fail(c, apierr.Invalidf("invalid query: %v", err))
			return
		}
		params.Limit, params.Offset = database.NormalizePage(params.Limit, params.Offset)

		start := time.Now()
		entries, total, err := db.QueryAuditLog(c.Request.Context(), params)
		if err != nil {
			fail(c, err)
			return
		}
		elapsed := time.Since(start).Milliseconds()

		c.JSON(http.StatusOK, models.AuditLogResponse{
			Entries:     entries,
			Total:       total,
			Limit:       params.Limit,
			Offset:      params.Offset,
			HasMore:     int64(params.Offset+params.Limit) < total,
			QueryTimeMs: &elapsed,
		})
	}
}

func GetAuditEntry(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuidParam(c, "id")
		if err != nil {
			fail(c, err)
			return
		}
		entry, err := db.GetAuditEntry(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}
