package database

import (
	"context"
	"testing"
	"time"

	"checklist/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerActors_SameTimestampPicksHighestID(t *testing.T) {
	db := requireTestDB(t)
	ctx := context.Background()
	project, serials, _ := seedProject(t, db)

	ana, err := db.CreateUser(ctx, models.UserRequest{Username: "1001", Password: "password1", FirstName: "Ana"}, 0)
	require.NoError(t, err)
	ben, err := db.CreateUser(ctx, models.UserRequest{Username: "1002", Password: "password1", FirstName: "Ben"}, 0)
	require.NoError(t, err)

	answers, err := db.ListAnswers(ctx, models.AnswerFilter{SerialNumberID: &serials[0].ID})
	require.NoError(t, err)
	require.NotEmpty(t, answers)
	answerID := answers[0].ID

	at := time.Now().Add(time.Hour).UTC().Truncate(time.Microsecond)
	low := newAuditEntry(models.SubjectAnswer, answerID.String(), project.ID, ben.ID, "answer updated", "true", "false")
	low.ID = uuid.MustParse("00000000-0000-4000-8000-000000000001")
	low.Timestamp = at
	high := newAuditEntry(models.SubjectAnswer, answerID.String(), project.ID, ana.ID, "answer updated", "false", "true")
	high.ID = uuid.MustParse("ffffffff-ffff-4fff-bfff-ffffffffffff")
	high.Timestamp = at

	require.NoError(t, db.InsertAuditEntries(ctx, []models.AuditEntry{high, low}))

	actors, err := answerActors(ctx, db.Pool, []uuid.UUID{answerID})
	require.NoError(t, err)
	require.Contains(t, actors, answerID)
	assert.Equal(t, "1001", actors[answerID].Username)
	assert.Equal(t, "Ana", actors[answerID].FirstName)
}
