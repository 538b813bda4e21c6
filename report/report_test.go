package report

import (
	"bytes"
	"testing"
	"time"

	"checklist/apierr"
	"checklist/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func testGraph() *models.ProjectGraph {
	ptA := uuid.New()
	ptB := uuid.New()
	sn1 := models.SerialNumber{ID: uuid.New(), Value: "P7-1-1", ProjectTypeID: ptA, TypeID: 1, Position: 1}
	sn2 := models.SerialNumber{ID: uuid.New(), Value: "P7-1-2", ProjectTypeID: ptA, TypeID: 1, Position: 2}
	sn3 := models.SerialNumber{ID: uuid.New(), Value: "P7-2-1", ProjectTypeID: ptB, TypeID: 2, Position: 1}

	answeredAt := time.Date(2024, 11, 5, 9, 30, 0, 0, time.UTC)
	return &models.ProjectGraph{
		Project: models.Project{ID: "P7", OwnerID: "1234", Date: time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC)},
		Types: []models.ProjectType{
			{ID: ptA, TypeID: 1, TypeName: "Switchboard", RepetitionCount: 2},
			{ID: ptB, TypeID: 2, TypeName: "Cabinet", RepetitionCount: 1},
		},
		Segments: []models.Segment{
			{ID: 11, TypeID: 1, Name: "B", Position: 1, Questions: []models.Question{{ID: 103, Text: "q3"}}},
			{ID: 10, TypeID: 1, Name: "A", Position: 0, Questions: []models.Question{
				{ID: 102, Text: "q2", Position: 1},
				{ID: 101, Text: "q1", Position: 0},
			}},
			{ID: 20, TypeID: 2, Name: "Doors", Questions: []models.Question{{ID: 201, Text: "closes"}}},
		},
		SerialNumbers: []models.SerialNumber{sn2, sn1, sn3},
		Answers: []models.Answer{
			{QuestionID: 101, SerialNumberID: sn1.ID, Value: "true", UpdatedAt: answeredAt},
			{QuestionID: 103, SerialNumberID: sn2.ID, Value: "n/a", UpdatedAt: answeredAt},
		},
	}
}

func TestBuild_GroupsAndRunLengthLabels(t *testing.T) {
	rep, err := Build(testGraph(), nil)
	require.NoError(t, err)

	assert.Equal(t, "P7", rep.ProjectID)
	assert.Equal(t, "2024-11-05", rep.Date)
	require.Len(t, rep.Sections, 2)

	section := rep.Sections[0]
	assert.Equal(t, "Switchboard", section.TypeName)
	require.Len(t, section.Serials, 2)
	assert.Equal(t, "P7-1-1", section.Serials[0].SerialNumber)
	assert.Equal(t, "P7-1-2", section.Serials[1].SerialNumber)

	assert.Equal(t, []Row{
		{Segment: "A", Question: "q1", Answer: "true", AnsweredAt: "2024-11-05 09:30"},
		{Segment: "", Question: "q2"},
		{Segment: "B", Question: "q3"},
	}, section.Serials[0].Rows)
	assert.Equal(t, "n/a", section.Serials[1].Rows[2].Answer)
	assert.Equal(t, "", section.Serials[1].Rows[0].Answer)

	assert.Equal(t, "Cabinet", rep.Sections[1].TypeName)
	assert.Len(t, rep.Sections[1].Serials[0].Rows, 1)
}

func TestBuild_TypeFilter(t *testing.T) {
	typeID := int64(2)
	rep, err := Build(testGraph(), &typeID)
	require.NoError(t, err)
	require.Len(t, rep.Sections, 1)
	assert.Equal(t, "Cabinet", rep.Sections[0].TypeName)

	missing := int64(9)
	_, err = Build(testGraph(), &missing)
	assert.ErrorIs(t, err, apierr.ErrInvalid)
}

func TestBuild_NoTypes(t *testing.T) {
	_, err := Build(&models.ProjectGraph{Project: models.Project{ID: "P1"}}, nil)
	assert.ErrorIs(t, err, apierr.ErrInvalid)
	assert.Contains(t, err.Error(), "has no type")
}

func TestBuild_TypeWithoutSegments(t *testing.T) {
	g := testGraph()
	g.Segments = nil

	rep, err := Build(g, nil)
	require.NoError(t, err)
	assert.Empty(t, rep.Sections[0].Serials[0].Rows)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Project_P7_archive_20241105_093000.json", "Project_P7_archive_20241105_093000.json"},
		{"Checklist P7/../x.pdf", "Checklist P7..x.pdf"},
		{`a"b;c.xlsx`, "abc.xlsx"},
		{"Poročilo.pdf", "Poroilo.pdf"},
		{"///", "export"},
		{"..", "export"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in), tt.in)
	}
}

func TestSegmentGroups(t *testing.T) {
	groups := segmentGroups([]Row{
		{Segment: "A", Question: "q1"},
		{Question: "q2"},
		{Segment: "B", Question: "q3"},
	})
	require.Len(t, groups, 2)
	assert.Equal(t, "A", groups[0].name)
	assert.Len(t, groups[0].rows, 2)
	assert.Equal(t, "B", groups[1].name)
}

func TestWriteXLSX(t *testing.T) {
	rep, err := Build(testGraph(), nil)
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	require.NoError(t, WriteXLSX(buf, rep))

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(xlsxSheet)
	require.NoError(t, err)
	assert.Equal(t, "Checklist P7", rows[0][0])
	assert.Equal(t, []string{"Project", "P7"}, rows[2])

	var serialRows int
	for _, r := range rows {
		if len(r) > 0 && len(r[0]) > 14 && r[0][:14] == "Serial number:" {
			serialRows++
		}
	}
	assert.Equal(t, 3, serialRows)
}

func TestWritePDF(t *testing.T) {
	rep, err := Build(testGraph(), nil)
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	require.NoError(t, WritePDF(buf, rep))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}
