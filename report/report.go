// Package report projects a project graph into the grouped checklist table
// rendered as XLSX and PDF. Nothing here touches the store.
package report

import (
	"sort"
	"strings"
	"unicode"

	"checklist/apierr"
	"checklist/models"

	"github.com/google/uuid"
)

// AnsweredAtLayout formats Row.AnsweredAt.
const AnsweredAtLayout = "2006-01-02 15:04"

type Report struct {
	ProjectID string
	OwnerID   string
	Date      string
	Sections  []Section
}

// Section is one project type of the report.
type Section struct {
	TypeID          int64
	TypeName        string
	RepetitionCount int
	Serials         []SerialBlock
}

type SerialBlock struct {
	SerialNumber string
	Rows         []Row
}

// Row is one (serial number, question) pair. Segment is only set on the
// first row of a run of rows from the same segment.
type Row struct {
	Segment    string
	Question   string
	Answer     string
	AnsweredAt string
}

type answerKey struct {
	questionID int64
	serialID   uuid.UUID
}

// Build groups graph by project type, then serial number, then segment.
// typeID narrows the report to one linked type; nil renders every type.
// Questions without an answer produce rows with empty answer cells.
func Build(graph *models.ProjectGraph, typeID *int64) (*Report, error) {
	if len(graph.Types) == 0 {
		return nil, apierr.Invalidf("project %s has no type", graph.Project.ID)
	}

	rep := &Report{
		ProjectID: graph.Project.ID,
		OwnerID:   graph.Project.OwnerID,
		Date:      graph.Project.Date.Format(models.DateLayout),
	}

	segmentsByType := map[int64][]models.Segment{}
	for _, s := range graph.Segments {
		segmentsByType[s.TypeID] = append(segmentsByType[s.TypeID], s)
	}
	for _, segs := range segmentsByType {
		sortSegments(segs)
	}

	serialsByLink := map[uuid.UUID][]models.SerialNumber{}
	for _, sn := range graph.SerialNumbers {
		serialsByLink[sn.ProjectTypeID] = append(serialsByLink[sn.ProjectTypeID], sn)
	}

	answers := make(map[answerKey]models.Answer, len(graph.Answers))
	for _, a := range graph.Answers {
		answers[answerKey{a.QuestionID, a.SerialNumberID}] = a
	}

	for _, pt := range graph.Types {
		if typeID != nil && pt.TypeID != *typeID {
			continue
		}

		section := Section{
			TypeID:          pt.TypeID,
			TypeName:        pt.TypeName,
			RepetitionCount: pt.RepetitionCount,
			Serials:         []SerialBlock{},
		}

		serials := serialsByLink[pt.ID]
		sort.SliceStable(serials, func(i, j int) bool { return serials[i].Position < serials[j].Position })

		for _, sn := range serials {
			block := SerialBlock{SerialNumber: sn.Value, Rows: []Row{}}
			for _, seg := range segmentsByType[pt.TypeID] {
				for i, q := range sortedQuestions(seg.Questions) {
					row := Row{Question: q.Text}
					if i == 0 {
						row.Segment = seg.Name
					}
					if a, ok := answers[answerKey{q.ID, sn.ID}]; ok {
						row.Answer = a.Value
						row.AnsweredAt = a.UpdatedAt.Format(AnsweredAtLayout)
					}
					block.Rows = append(block.Rows, row)
				}
			}
			section.Serials = append(section.Serials, block)
		}
		rep.Sections = append(rep.Sections, section)
	}

	if len(rep.Sections) == 0 {
		return nil, apierr.Invalidf("type %d is not linked to project %s", *typeID, graph.Project.ID)
	}
	return rep, nil
}

// Title is the document title used by both renderers.
func (r *Report) Title() string {
	return "Checklist " + r.ProjectID
}

// SanitizeFilename keeps letters, digits, space, '-', '_' and '.'; every
// other rune is dropped.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune(" -_.", r)) {
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" || strings.Trim(out, ".") == "" {
		return "export"
	}
	return out
}

func sortSegments(segs []models.Segment) {
	sort.SliceStable(segs, func(i, j int) bool {
		if segs[i].Position != segs[j].Position {
			return segs[i].Position < segs[j].Position
		}
		return segs[i].ID < segs[j].ID
	})
}

func sortedQuestions(in []models.Question) []models.Question {
	out := append([]models.Question(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out
}
