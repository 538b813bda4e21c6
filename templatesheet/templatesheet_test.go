package templatesheet

import (
	"bytes"
	"strings"
	"testing"

	"checklist/apierr"
	"checklist/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, rows ...[]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		row := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf := &bytes.Buffer{}
	_, err := f.WriteTo(buf)
	require.NoError(t, err)
	return buf
}

func TestParse(t *testing.T) {
	buf := workbook(t,
		[]interface{}{"Segment", "Question", "Type", "Required", "Description", "Options", "Repeatable"},
		[]interface{}{"A", "q1", "boolean", "TRUE", "help", "", "no"},
		[]interface{}{"A", "q2", "text", "false"},
		[]interface{}{},
		[]interface{}{"B", "q3", "multiple_choice", "True", "", "x,y", "true"},
	)

	rows, err := Parse(buf)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, models.TemplateRow{
		Segment: "A", Question: "q1", Kind: models.KindBoolean, Required: true, Description: "help",
	}, rows[0])
	assert.Equal(t, models.TemplateRow{Segment: "A", Question: "q2", Kind: models.KindText}, rows[1])
	assert.Equal(t, "x,y", rows[2].Options)
	assert.True(t, rows[2].Required)
	assert.True(t, rows[2].Repeatable)
}

func TestParse_HeaderOrderAndDefaults(t *testing.T) {
	buf := workbook(t,
		[]interface{}{"question", "segment"},
		[]interface{}{"Door closes", "Cabinet"},
	)

	rows, err := Parse(buf)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Cabinet", rows[0].Segment)
	assert.Equal(t, "Door closes", rows[0].Question)
	assert.Equal(t, models.KindBoolean, rows[0].Kind)
	assert.False(t, rows[0].Required)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  *bytes.Buffer
		errMsg string
	}{
		{
			name:   "not a workbook",
			input:  bytes.NewBufferString("segment,question\nA,q1\n"),
			errMsg: "not a readable XLSX",
		},
		{
			name:   "missing question column",
			input:  workbook(t, []interface{}{"segment", "type"}, []interface{}{"A", "text"}),
			errMsg: `missing the "question" column`,
		},
		{
			name:   "unknown kind",
			input:  workbook(t, []interface{}{"segment", "question", "type"}, []interface{}{"A", "q", "slider"}),
			errMsg: `row 2: unknown type "slider"`,
		},
		{
			name:   "empty segment",
			input:  workbook(t, []interface{}{"segment", "question"}, []interface{}{"", "q"}),
			errMsg: "row 2: segment is empty",
		},
		{
			name:   "header only",
			input:  workbook(t, []interface{}{"segment", "question"}),
			errMsg: "no question rows",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, apierr.ErrInvalid)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestWriteSample_ParsesBack(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteSample(buf))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []string{sampleSheet, instructionsSheet}, f.GetSheetList())
	header, err := f.GetRows(sampleSheet)
	require.NoError(t, err)
	assert.Equal(t, Columns, lower(header[0]))
	require.NoError(t, f.Close())

	rows, err := Parse(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Len(t, rows, 4)
	assert.Equal(t, models.KindMultipleChoice, rows[3].Kind)
}

func lower(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
