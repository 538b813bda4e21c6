package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"checklist/apierr"
	"checklist/archive"
	"checklist/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ImportResult summarises one archive import.
type ImportResult struct {
	ProjectID     string `json:"project_id"`
	Types         int    `json:"types"`
	SerialNumbers int    `json:"serial_numbers"`
	Answers       int    `json:"answers"`
	RestoredTypes int    `json:"restored_types"`
	RemappedIDs   int    `json:"remapped_ids"`
}

// importState carries the old-id to new-id tables of one import.
type importState struct {
	questions   map[int64]int64
	serials     map[uuid.UUID]uuid.UUID
	serialTypes map[uuid.UUID]int64 // archived serial number id to template type
	remapped    int
}

// ImportArchive recreates the project described by doc in one transaction.
// Original ids and timestamps are kept; an id already used by another row is
// replaced by a fresh one and recorded in the remap tables so that references
// still resolve. Types missing from the store are restored with their
// segments and questions. Any failure rolls the whole import back.
func (db *DB) ImportArchive(ctx context.Context, doc *archive.Document, actorID int64) (*ImportResult, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	projectID := doc.Project.ID
	result := &ImportResult{ProjectID: projectID}
	state := &importState{
		questions: map[int64]int64{},
		serials:     map[uuid.UUID]uuid.UUID{},
		serialTypes: map[uuid.UUID]int64{},
	}

	err := db.WithTx(ctx, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1)`, projectID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check project: %w", err)
		}
		if exists {
			return apierr.Conflictf("project %s already exists", projectID)
		}

		date, err := parseProjectDate(doc.ProjectDate())
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO projects (id, owner_id, date, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)
		`, projectID, doc.Project.OwnerID, date, doc.Project.CreatedAt, doc.Project.UpdatedAt)
		if err != nil {
			return classify(err, "project %s", projectID)
		}

		restored, err := restoreTemplates(ctx, tx, doc, state)
		if err != nil {
			return err
		}
		result.RestoredTypes = restored

		serialCount := 0
		for _, t := range doc.Types {
			pt, err := importProjectType(ctx, tx, projectID, t, state)
			if err != nil {
				return err
			}

			serials := []models.SerialNumber{}
			for _, sn := range doc.SerialNumbers {
				if sn.TypeID != t.ID {
					continue
				}
				id, err := freeUUID(ctx, tx, "serial_numbers", sn.ID, state)
				if err != nil {
					return err
				}
				state.serials[sn.ID] = id
				state.serialTypes[sn.ID] = t.ID
				position := sn.Position
				if position == 0 {
					position = len(serials) + 1
				}
				serials = append(serials, models.SerialNumber{
					ID:            id,
					Value:         sn.Value,
					ProjectID:     projectID,
					ProjectTypeID: pt,
					Position:      position,
					CreatedAt:     sn.CreatedAt,
				})
			}
			if err := writeSerialNumbers(ctx, tx, serials); err != nil {
				return err
			}
			serialCount += len(serials)
		}
		result.Types = len(doc.Types)
		result.SerialNumbers = serialCount

		if err := importAnswers(ctx, tx, doc.Answers, state); err != nil {
			return err
		}
		result.Answers = len(doc.Answers)
		result.RemappedIDs = state.remapped

		entry := newAuditEntry(models.SubjectProject, projectID, projectID, actorID, "project imported", "",
			fmt.Sprintf("imported from archive %s exported %s", doc.Meta.Version, doc.Meta.ExportedAt.Format(time.RFC3339)))
		return insertAuditEntries(ctx, tx, []models.AuditEntry{entry})
	})
	if err != nil {
		return nil, err
	}

	db.log.Info("Imported project archive",
		"project_id", projectID,
		"types", result.Types,
		"serial_numbers", result.SerialNumbers,
		"answers", result.Answers,
		"restored_types", result.RestoredTypes,
		"remapped_ids", result.RemappedIDs,
		"duration", time.Since(start))
	return result, nil
}

// restoreTemplates inserts every archive type absent from the store together
// with its segments and questions, then moves the sequences past the
// restored ids. An existing type is reused untouched when its name matches
// the archive's, otherwise the import conflicts.
func restoreTemplates(ctx context.Context, tx pgx.Tx, doc *archive.Document, state *importState) (int, error) {
	restored := 0
	for _, t := range doc.Types {
		var name string
		err := tx.QueryRow(ctx, `SELECT name FROM types WHERE id = $1`, t.ID).Scan(&name)
		switch {
		case err == nil:
			if name != t.Name {
				return 0, apierr.Conflictf("type %d is %q in the archive but %q in the store", t.ID, t.Name, name)
			}
			continue
		case !errors.Is(err, pgx.ErrNoRows):
			return 0, fmt.Errorf("failed to check type %d: %w", t.ID, err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO types (id, name, created_at, updated_at) VALUES ($1, $2, $3, $3)
		`, t.ID, t.Name, t.CreatedAt)
		if err != nil {
			return 0, classify(err, "type %d", t.ID)
		}

		for _, s := range doc.Segments {
			if s.TypeID != t.ID {
				continue
			}
			segmentID, err := insertWithID(ctx, tx, "segments", s.ID, state,
				`INSERT INTO segments (id, type_id, name, position) VALUES ($1, $2, $3, $4) RETURNING id`,
				`INSERT INTO segments (type_id, name, position) VALUES ($1, $2, $3) RETURNING id`,
				t.ID, s.Name, s.Position)
			if err != nil {
				return 0, classify(err, "segment %d", s.ID)
			}

			for _, q := range s.Questions {
				questionID, err := insertWithID(ctx, tx, "questions", q.ID, state,
					`INSERT INTO questions (id, segment_id, text, kind, required, description, options, repeatable, position)
					 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
					`INSERT INTO questions (segment_id, text, kind, required, description, options, repeatable, position)
					 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
					segmentID, q.Text, q.Kind, q.Required, q.Description, q.Options, q.Repeatable, q.Position)
				if err != nil {
					return 0, classify(err, "question %d", q.ID)
				}
				if questionID != q.ID {
					state.questions[q.ID] = questionID
				}
			}
		}
		restored++
	}

	if restored > 0 {
		for _, table := range []string{"types", "segments", "questions"} {
			_, err := tx.Exec(ctx, fmt.Sprintf(
				`SELECT setval(pg_get_serial_sequence('%s', 'id'), GREATEST((SELECT MAX(id) FROM %s), 1))`, table, table))
			if err != nil {
				return 0, fmt.Errorf("failed to advance %s sequence: %w", table, err)
			}
		}
	}
	return restored, nil
}

// insertWithID runs withID when id is free in table, otherwise withoutID,
// which lets the sequence pick. args exclude the id.
func insertWithID(ctx context.Context, tx pgx.Tx, table string, id int64, state *importState, withID, withoutID string, args ...interface{}) (int64, error) {
	var taken bool
	if err := tx.QueryRow(ctx, fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, table), id).Scan(&taken); err != nil {
		return 0, err
	}

	var newID int64
	if taken || id <= 0 {
		state.remapped++
		err := tx.QueryRow(ctx, withoutID, args...).Scan(&newID)
		return newID, err
	}
	err := tx.QueryRow(ctx, withID, append([]interface{}{id}, args...)...).Scan(&newID)
	return newID, err
}

func importProjectType(ctx context.Context, tx pgx.Tx, projectID string, t archive.Type, state *importState) (uuid.UUID, error) {
	want := uuid.Nil
	if t.ProjectTypeID != nil {
		want = *t.ProjectTypeID
	}
	id, err := freeUUID(ctx, tx, "project_types", want, state)
	if err != nil {
		return uuid.Nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO project_types (id, project_id, type_id, repetition_count, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, id, projectID, t.ID, t.RepetitionCount, t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return uuid.Nil, apierr.Conflictf("type %d is listed twice for project %s", t.ID, projectID)
		}
		return uuid.Nil, classify(err, "project type for type %d", t.ID)
	}
	return id, nil
}

func importAnswers(ctx context.Context, tx pgx.Tx, answers []archive.Answer, state *importState) error {
	if len(answers) == 0 {
		return nil
	}

	query := `
		INSERT INTO answers (id, question_id, serial_number_id, value, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	questionIDs := make([]int64, 0, len(answers))
	for _, a := range answers {
		questionIDs = append(questionIDs, mappedQuestion(a.QuestionID, state))
	}
	questionTypes, err := questionTypeIDs(ctx, tx, questionIDs)
	if err != nil {
		return err
	}

	rows := make([][]interface{}, 0, len(answers))
	for i, a := range answers {
		serialID, ok := state.serials[a.SerialNumberID]
		if !ok {
			return apierr.Invalidf("answers[%d]: serial number %s was not imported", i, a.SerialNumberID)
		}
		questionID := questionIDs[i]
		typeID, ok := questionTypes[questionID]
		if !ok {
			return apierr.Invalidf("answers[%d]: question %d does not exist", i, a.QuestionID)
		}
		if typeID != state.serialTypes[a.SerialNumberID] {
			return apierr.Invalidf("answers[%d]: question %d does not belong to the type of serial number %s",
				i, a.QuestionID, a.SerialNumberID)
		}
		id, err := freeUUID(ctx, tx, "answers", a.ID, state)
		if err != nil {
			return err
		}
		rows = append(rows, []interface{}{id, questionID, serialID, a.Value, a.CreatedAt, a.UpdatedAt})
	}

	batch := &pgx.Batch{}
	for _, args := range rows {
		batch.Queue(query, args...)
	}
	results := tx.SendBatch(ctx, batch)
	defer func() {
		_ = results.Close()
	}()

	for i := range rows {
		if _, err := results.Exec(); err != nil {
			return &BatchInsertError{FailedIndex: i, Total: len(rows), Err: classify(err, "answers[%d]", i)}
		}
	}
	return nil
}

func mappedQuestion(id int64, state *importState) int64 {
	if mapped, ok := state.questions[id]; ok {
		return mapped
	}
	return id
}

// freeUUID returns want when it is set and unused in table, otherwise a new id.
func freeUUID(ctx context.Context, tx pgx.Tx, table string, want uuid.UUID, state *importState) (uuid.UUID, error) {
	if want == uuid.Nil {
		return uuid.New(), nil
	}
	var taken bool
	if err := tx.QueryRow(ctx, fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, table), want).Scan(&taken); err != nil {
		return uuid.Nil, fmt.Errorf("failed to check %s id: %w", table, err)
	}
	if taken {
		state.remapped++
		return uuid.New(), nil
	}
	return want, nil
}
