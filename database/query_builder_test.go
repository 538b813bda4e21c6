package database

import (
	"fmt"
	"testing"

	"checklist/apierr"
	"checklist/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryBuilder_AddCondition(t *testing.T) {
	qb := NewQueryBuilder()

	qb.AddCondition("sn.project_id", "P7")

	assert.Equal(t, "WHERE sn.project_id = $1", qb.WhereClause())
	assert.Equal(t, []interface{}{"P7"}, qb.Args())
	assert.Equal(t, 2, qb.NextArgNum())
}

func TestQueryBuilder_NarrowsProgressively(t *testing.T) {
	qb := NewQueryBuilder()

	qb.AddCondition("a.serial_number_id", "sn-1")
	qb.AddCondition("sn.project_id", "P7")
	qb.AddCondition("pt.type_id", int64(2))

	assert.Equal(t, "WHERE a.serial_number_id = $1 AND sn.project_id = $2 AND pt.type_id = $3", qb.WhereClause())
	assert.Equal(t, []interface{}{"sn-1", "P7", int64(2)}, qb.Args())
	assert.Equal(t, 4, qb.NextArgNum())
}

func TestQueryBuilder_AddExpr(t *testing.T) {
	qb := NewQueryBuilder()

	qb.AddCondition("type_id", int64(3))
	qb.AddExpr(fmt.Sprintf(projectTypesExpr, "type_id"), "P7")

	assert.Equal(t,
		"WHERE type_id = $1 AND type_id IN (SELECT type_id FROM project_types WHERE project_id = $2)",
		qb.WhereClause())
	assert.Equal(t, []interface{}{int64(3), "P7"}, qb.Args())
}

func TestQueryBuilder_AddTimeRange(t *testing.T) {
	tests := []struct {
		name           string
		startTime      string
		endTime        string
		wantConditions int
		wantErr        bool
	}{
		{"both start and end", "2024-11-01T00:00:00Z", "2024-11-22T23:59:59Z", 2, false},
		{"only start", "2024-11-01T00:00:00Z", "", 1, false},
		{"only end", "", "2024-11-22T23:59:59+01:00", 1, false},
		{"neither", "", "", 0, false},
		{"invalid start time", "yesterday", "", 0, true},
		{"date without time", "", "2024-11-22", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qb := NewQueryBuilder()
			err := qb.AddTimeRange(columnAuditTimestamp, tt.startTime, tt.endTime)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Len(t, qb.Args(), tt.wantConditions)
		})
	}
}

func TestQueryBuilder_AuditQuery(t *testing.T) {
	qb := NewQueryBuilder()

	qb.AddCondition(columnAuditProjectID, "P7")
	qb.AddCondition(columnAuditSubjectKind, "answer")
	require.NoError(t, qb.AddTimeRange(columnAuditTimestamp, "2024-11-01T00:00:00Z", "2024-11-22T23:59:59Z"))
	qb.AddFullTextSearch(columnAuditDescription, "answer & updated")

	where := qb.WhereClause()
	assert.Contains(t, where, "a.project_id = $1")
	assert.Contains(t, where, "a.subject_kind = $2")
	assert.Contains(t, where, "a.timestamp >= $3")
	assert.Contains(t, where, "a.timestamp <= $4")
	assert.Contains(t, where, "to_tsvector('english', a.change_description) @@ to_tsquery('english', $5)")
	assert.Len(t, qb.Args(), 5)
}

func TestQueryBuilder_WhereClause_Empty(t *testing.T) {
	qb := NewQueryBuilder()

	assert.Equal(t, "", qb.WhereClause())
	assert.Empty(t, qb.Args())
}

func TestApplyAuditFilters(t *testing.T) {
	qb := NewQueryBuilder()
	err := applyAuditFilters(qb, models.AuditQueryParams{
		SubjectKind: "serial_number",
		ProjectID:   "P7",
		StartTime:   "not-a-time",
	})
	assert.Error(t, err)
	assert.ErrorIs(t, err, apierr.ErrInvalid)
	assert.Contains(t, err.Error(), "invalid start_time")
}

func TestValidateLimit(t *testing.T) {
	tests := []struct {
		name     string
		limit    int
		expected int
	}{
		{"use provided limit", 10, 10},
		{"use default when zero", 0, defaultLimit},
		{"use default when negative", -10, defaultLimit},
		{"cap at max", 5000, maxLimit},
		{"exactly at max", maxLimit, maxLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, validateLimit(tt.limit, defaultLimit, maxLimit))
		})
	}
}

func TestValidateOffset(t *testing.T) {
	assert.Equal(t, 0, validateOffset(-5))
	assert.Equal(t, 0, validateOffset(0))
	assert.Equal(t, 40, validateOffset(40))
}
