package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"checklist/apierr"
	"checklist/models"

	"github.com/jackc/pgx/v5"
)

const typeColumns = `id, name, created_at, updated_at`

func (db *DB) ListTypes(ctx context.Context) ([]models.Type, error) {
	rows, err := db.Pool.Query(ctx, `SELECT `+typeColumns+` FROM types ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list types: %w", err)
	}
	defer rows.Close()

	types, err := scanAll(rows, scanType)
	if err != nil {
		return nil, fmt.Errorf("failed to scan types: %w", err)
	}
	return types, nil
}

func (db *DB) GetType(ctx context.Context, id int64) (*models.Type, error) {
	t, err := getType(ctx, db.Pool, id)
	if err != nil {
		return nil, classify(err, "type %d", id)
	}
	return t, nil
}

func (db *DB) CreateType(ctx context.Context, name string) (*models.Type, error) {
	t, err := scanType(db.Pool.QueryRow(ctx, `
		INSERT INTO types (name) VALUES ($1)
		RETURNING `+typeColumns, name))
	if err != nil {
		return nil, classify(err, "type %q", name)
	}
	db.log.Info("Created type", "type_id", t.ID, "name", t.Name)
	return t, nil
}

func (db *DB) UpdateType(ctx context.Context, id int64, name string) (*models.Type, error) {
	t, err := scanType(db.Pool.QueryRow(ctx, `
		UPDATE types SET name = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+typeColumns, id, name))
	if err != nil {
		return nil, classify(err, "type %d", id)
	}
	return t, nil
}

// DeleteType removes a type and, by cascade, its segments and questions.
// A type still linked to a project cannot be deleted.
func (db *DB) DeleteType(ctx context.Context, id int64) error {
	result, err := db.Pool.Exec(ctx, `DELETE FROM types WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apierr.Conflictf("type %d is still used by a project", id)
		}
		return classify(err, "type %d", id)
	}
	if result.RowsAffected() == 0 {
		return apierr.NotFoundf("type %d not found", id)
	}
	db.log.Info("Deleted type", "type_id", id)
	return nil
}

// TypeTemplate returns the segments of a type with their questions populated.
func (db *DB) TypeTemplate(ctx context.Context, typeID int64) ([]models.Segment, error) {
	if _, err := db.GetType(ctx, typeID); err != nil {
		return nil, err
	}
	return loadTemplates(ctx, db.Pool, []int64{typeID})
}

// ReplaceTypeTemplate deletes every segment of the type (cascading to the
// questions) and re-creates segments and questions from rows, all in one
// transaction. Segments are deduplicated by name; the first occurrence fixes
// its position. Questions keep file order.
func (db *DB) ReplaceTypeTemplate(ctx context.Context, typeID int64, rows []models.TemplateRow, actorID int64) (int, int, error) {
	start := time.Now()
	var segmentCount int

	err := db.WithTx(ctx, func(tx pgx.Tx) error {
		var locked int64
		if err := tx.QueryRow(ctx, `SELECT id FROM types WHERE id = $1 FOR UPDATE`, typeID).Scan(&locked); err != nil {
			return classify(err, "type %d", typeID)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM segments WHERE type_id = $1`, typeID); err != nil {
			return fmt.Errorf("failed to clear segments: %w", err)
		}

		segmentIDs := map[string]int64{}
		for i, row := range rows {
			segmentID, ok := segmentIDs[row.Segment]
			if !ok {
				err := tx.QueryRow(ctx, `
					INSERT INTO segments (type_id, name, position)
					VALUES ($1, $2, $3)
					RETURNING id
				`, typeID, row.Segment, len(segmentIDs)).Scan(&segmentID)
				if err != nil {
					return classify(err, "row %d: segment %q", i+1, row.Segment)
				}
				segmentIDs[row.Segment] = segmentID
			}

			_, err := tx.Exec(ctx, `
				INSERT INTO questions (segment_id, text, kind, required, description, options, repeatable, position)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, segmentID, row.Question, row.Kind, row.Required, row.Description, row.Options, row.Repeatable, i)
			if err != nil {
				return classify(err, "row %d: question %q", i+1, row.Question)
			}
		}
		segmentCount = len(segmentIDs)

		if _, err := tx.Exec(ctx, `UPDATE types SET updated_at = NOW() WHERE id = $1`, typeID); err != nil {
			return fmt.Errorf("failed to touch type: %w", err)
		}

		entry := newAuditEntry(models.SubjectType, strconv.FormatInt(typeID, 10), "", actorID,
			"template uploaded", "", fmt.Sprintf("%d segments, %d questions", len(segmentIDs), len(rows)))
		return insertAuditEntries(ctx, tx, []models.AuditEntry{entry})
	})
	if err != nil {
		return 0, 0, err
	}

	db.log.Info("Replaced type template",
		"type_id", typeID, "segments", segmentCount, "questions", len(rows), "duration", time.Since(start))
	return segmentCount, len(rows), nil
}

// loadTemplates returns the segments of the given types ordered by type,
// position and id, each with its questions.
func loadTemplates(ctx context.Context, q querier, typeIDs []int64) ([]models.Segment, error) {
	segments := []models.Segment{}
	if len(typeIDs) == 0 {
		return segments, nil
	}

	rows, err := q.Query(ctx, `
		SELECT `+segmentColumns+`
		FROM segments
		WHERE type_id = ANY($1)
		ORDER BY type_id, position, id
	`, typeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load segments: %w", err)
	}
	segments, err = scanAll(rows, scanSegment)
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to scan segments: %w", err)
	}

	qrows, err := q.Query(ctx, `
		SELECT `+questionColumnsQualified+`
		FROM questions q
		JOIN segments s ON s.id = q.segment_id
		WHERE s.type_id = ANY($1)
		ORDER BY q.position, q.id
	`, typeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	questions, err := scanAll(qrows, scanQuestion)
	qrows.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to scan questions: %w", err)
	}

	index := make(map[int64]int, len(segments))
	for i := range segments {
		segments[i].Questions = []models.Question{}
		index[segments[i].ID] = i
	}
	for _, question := range questions {
		if i, ok := index[question.SegmentID]; ok {
			segments[i].Questions = append(segments[i].Questions, question)
		}
	}
	return segments, nil
}

func getType(ctx context.Context, q querier, id int64) (*models.Type, error) {
	return scanType(q.QueryRow(ctx, `SELECT `+typeColumns+` FROM types WHERE id = $1`, id))
}

func scanType(row rowScanner) (*models.Type, error) {
	var t models.Type
	if err := row.Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}
