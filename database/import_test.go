package database

import (
	"context"
	"testing"
	"time"

	"checklist/apierr"
	"checklist/archive"
	"checklist/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedProject builds project P7 with two serials and answers on the first one.
func seedProject(t *testing.T, db *DB) (*models.Project, []models.SerialNumber, []models.Question) {
	t.Helper()
	ctx := context.Background()

	typ := seedType(t, db, "Switchboard", "Labels present", "Earth connected")
	project, _, err := db.CreateOrExtendProject(ctx, models.CreateProjectRequest{
		ID: "P7", OwnerID: "1234", Date: "2024-11-05", TypeID: typ.ID, RepetitionCount: 2,
	}, 0)
	require.NoError(t, err)

	serials, err := db.ListSerialNumbers(ctx, models.SerialNumberFilter{ProjectID: &project.ID})
	require.NoError(t, err)
	questions, err := db.ListQuestions(ctx, models.QuestionFilter{TypeID: &typ.ID})
	require.NoError(t, err)

	_, err = db.SaveAnswers(ctx, []models.AnswerRequest{
		{QuestionID: questions[0].ID, SerialNumberID: serials[0].ID, Value: "true"},
		{QuestionID: questions[1].ID, SerialNumberID: serials[0].ID, Value: "false"},
	}, 0)
	require.NoError(t, err)
	return project, serials, questions
}

func TestSaveAnswer_Upserts(t *testing.T) {
	db := requireTestDB(t)
	ctx := context.Background()
	_, serials, questions := seedProject(t, db)

	first, created, err := db.SaveAnswer(ctx, models.AnswerRequest{
		QuestionID: questions[0].ID, SerialNumberID: serials[1].ID, Value: "true",
	}, 0)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := db.SaveAnswer(ctx, models.AnswerRequest{
		QuestionID: questions[0].ID, SerialNumberID: serials[1].ID, Value: "false",
	}, 0)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "false", second.Value)

	answers, err := db.ListAnswers(ctx, models.AnswerFilter{SerialNumberID: &serials[1].ID})
	require.NoError(t, err)
	assert.Len(t, answers, 1)
}

func TestSaveAnswers_ValidatesWholeBatch(t *testing.T) {
	db := requireTestDB(t)
	ctx := context.Background()
	_, serials, questions := seedProject(t, db)

	_, err := db.SaveAnswers(ctx, []models.AnswerRequest{
		{QuestionID: questions[0].ID, SerialNumberID: serials[1].ID, Value: "true"},
		{QuestionID: 99999, SerialNumberID: serials[1].ID, Value: "true"},
	}, 0)
	assert.ErrorIs(t, err, apierr.ErrInvalid)
	assert.Contains(t, err.Error(), "answer 1")

	answers, err := db.ListAnswers(ctx, models.AnswerFilter{SerialNumberID: &serials[1].ID})
	require.NoError(t, err)
	assert.Empty(t, answers)
}

func TestArchiveRoundTrip(t *testing.T) {
	db := requireTestDB(t)
	ctx := context.Background()
	project, serials, _ := seedProject(t, db)

	graph, err := db.LoadProjectGraph(ctx, project.ID)
	require.NoError(t, err)
	doc := archive.Build(graph, time.Now())
	require.Len(t, doc.SerialNumbers, 2)
	require.Len(t, doc.Answers, 2)
	assert.NotEmpty(t, doc.Changes)

	require.NoError(t, db.DeleteProject(ctx, project.ID, 0))

	result, err := db.ImportArchive(ctx, doc, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, result.RemappedIDs)
	assert.Equal(t, 0, result.RestoredTypes)

	again, err := db.LoadProjectGraph(ctx, project.ID)
	require.NoError(t, err)
	assert.True(t, graph.Project.CreatedAt.Equal(again.Project.CreatedAt))
	assert.True(t, graph.Project.UpdatedAt.Equal(again.Project.UpdatedAt))
	assert.Equal(t, graph.Project.OwnerID, again.Project.OwnerID)
	require.Len(t, again.Types, 1)
	assert.Equal(t, graph.Types[0].ID, again.Types[0].ID)
	assert.Equal(t, graph.Types[0].RepetitionCount, again.Types[0].RepetitionCount)

	require.Len(t, again.SerialNumbers, len(serials))
	for i := range serials {
		assert.Equal(t, serials[i].ID, again.SerialNumbers[i].ID)
		assert.Equal(t, serials[i].Value, again.SerialNumbers[i].Value)
		assert.True(t, serials[i].CreatedAt.Equal(again.SerialNumbers[i].CreatedAt))
	}
	require.Len(t, again.Answers, 2)
	for i := range graph.Answers {
		assert.Equal(t, graph.Answers[i].ID, again.Answers[i].ID)
		assert.Equal(t, graph.Answers[i].Value, again.Answers[i].Value)
		assert.True(t, graph.Answers[i].UpdatedAt.Equal(again.Answers[i].UpdatedAt))
	}
}

func TestImportArchive_RejectsSecondImport(t *testing.T) {
	db := requireTestDB(t)
	ctx := context.Background()
	project, _, _ := seedProject(t, db)

	graph, err := db.LoadProjectGraph(ctx, project.ID)
	require.NoError(t, err)
	doc := archive.Build(graph, time.Now())
	require.NoError(t, db.DeleteProject(ctx, project.ID, 0))

	_, err = db.ImportArchive(ctx, doc, 0)
	require.NoError(t, err)

	_, err = db.ImportArchive(ctx, doc, 0)
	assert.ErrorIs(t, err, apierr.ErrConflict)

	serials, err := db.ListSerialNumbers(ctx, models.SerialNumberFilter{ProjectID: &project.ID})
	require.NoError(t, err)
	assert.Len(t, serials, 2)
}

func TestImportArchive_AtomicOnDanglingAnswer(t *testing.T) {
	db := requireTestDB(t)
	ctx := context.Background()
	project, _, _ := seedProject(t, db)

	graph, err := db.LoadProjectGraph(ctx, project.ID)
	require.NoError(t, err)
	doc := archive.Build(graph, time.Now())
	require.NoError(t, db.DeleteProject(ctx, project.ID, 0))

	doc.Answers[1].SerialNumberID = uuid.New()

	_, err = db.ImportArchive(ctx, doc, 0)
	assert.ErrorIs(t, err, apierr.ErrInvalid)

	_, err = db.GetProject(ctx, project.ID)
	assert.ErrorIs(t, err, apierr.ErrNotFound)
}

func TestImportArchive_RestoresMissingTemplate(t *testing.T) {
	db := requireTestDB(t)
	ctx := context.Background()
	project, _, _ := seedProject(t, db)

	graph, err := db.LoadProjectGraph(ctx, project.ID)
	require.NoError(t, err)
	doc := archive.Build(graph, time.Now())
	require.NoError(t, db.DeleteProject(ctx, project.ID, 0))
	require.NoError(t, db.DeleteType(ctx, graph.Types[0].TypeID))

	result, err := db.ImportArchive(ctx, doc, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.RestoredTypes)
	assert.Equal(t, 2, result.Answers)

	template, err := db.TypeTemplate(ctx, graph.Types[0].TypeID)
	require.NoError(t, err)
	require.Len(t, template, 1)
	assert.Len(t, template[0].Questions, 2)

	fresh, err := db.CreateType(ctx, "After restore")
	require.NoError(t, err)
	assert.Greater(t, fresh.ID, graph.Types[0].TypeID)
}

func TestImportArchive_RejectsQuestionOfAnotherType(t *testing.T) {
	db := requireTestDB(t)
	ctx := context.Background()
	project, _, questions := seedProject(t, db)
	other := seedType(t, db, "Panel", "Door closes")
	foreign, err := db.ListQuestions(ctx, models.QuestionFilter{TypeID: &other.ID})
	require.NoError(t, err)
	require.Len(t, foreign, 1)

	graph, err := db.LoadProjectGraph(ctx, project.ID)
	require.NoError(t, err)
	doc := archive.Build(graph, time.Now())
	require.NoError(t, db.DeleteProject(ctx, project.ID, 0))

	// the archive claims the Panel question for Switchboard
	for i := range doc.Segments {
		for j := range doc.Segments[i].Questions {
			if doc.Segments[i].Questions[j].ID == questions[0].ID {
				doc.Segments[i].Questions[j].ID = foreign[0].ID
			}
		}
	}
	for i := range doc.Answers {
		if doc.Answers[i].QuestionID == questions[0].ID {
			doc.Answers[i].QuestionID = foreign[0].ID
		}
	}
	require.NoError(t, doc.Validate())

	_, err = db.ImportArchive(ctx, doc, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, apierr.ErrInvalid)
	assert.Contains(t, err.Error(), "does not belong to the type")

	_, err = db.GetProject(ctx, project.ID)
	assert.ErrorIs(t, err, apierr.ErrNotFound)
}

func TestImportArchive_ConflictsOnRenamedType(t *testing.T) {
	db := requireTestDB(t)
	ctx := context.Background()
	project, _, _ := seedProject(t, db)

	graph, err := db.LoadProjectGraph(ctx, project.ID)
	require.NoError(t, err)
	doc := archive.Build(graph, time.Now())
	require.NoError(t, db.DeleteProject(ctx, project.ID, 0))

	doc.Types[0].Name = "Transformer"

	_, err = db.ImportArchive(ctx, doc, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, apierr.ErrConflict)
	assert.Contains(t, err.Error(), `"Switchboard"`)

	_, err = db.GetProject(ctx, project.ID)
	assert.ErrorIs(t, err, apierr.ErrNotFound)
}
