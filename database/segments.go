package database

import (
	"context"
	"fmt"

	"checklist/apierr"
	"checklist/models"
)

const segmentColumns = `id, type_id, name, position`

// projectTypesExpr narrows a type_id column to the types linked to one project.
const projectTypesExpr = `%s IN (SELECT type_id FROM project_types WHERE project_id = $%%d)`

func (db *DB) ListSegments(ctx context.Context, filter models.SegmentFilter) ([]models.Segment, error) {
	qb := NewQueryBuilder()
	if filter.TypeID != nil {
		qb.AddCondition("type_id", *filter.TypeID)
	}
	if filter.ProjectID != nil {
		qb.AddExpr(fmt.Sprintf(projectTypesExpr, "type_id"), *filter.ProjectID)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM segments
		%s
		ORDER BY type_id, position, id
	`, segmentColumns, qb.WhereClause())

	rows, err := db.Pool.Query(ctx, query, qb.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}
	defer rows.Close()

	segments, err := scanAll(rows, scanSegment)
	if err != nil {
		return nil, fmt.Errorf("failed to scan segments: %w", err)
	}
	return segments, nil
}

func (db *DB) GetSegment(ctx context.Context, id int64) (*models.Segment, error) {
	s, err := scanSegment(db.Pool.QueryRow(ctx, `SELECT `+segmentColumns+` FROM segments WHERE id = $1`, id))
	if err != nil {
		return nil, classify(err, "segment %d", id)
	}
	return s, nil
}

func (db *DB) CreateSegment(ctx context.Context, req models.SegmentRequest) (*models.Segment, error) {
	s, err := scanSegment(db.Pool.QueryRow(ctx, `
		INSERT INTO segments (type_id, name, position)
		VALUES ($1, $2, $3)
		RETURNING `+segmentColumns, req.TypeID, req.Name, req.Position))
	if err != nil {
		return nil, classify(err, "segment %q", req.Name)
	}
	return s, nil
}

func (db *DB) UpdateSegment(ctx context.Context, id int64, req models.SegmentRequest) (*models.Segment, error) {
	s, err := scanSegment(db.Pool.QueryRow(ctx, `
		UPDATE segments SET type_id = $2, name = $3, position = $4
		WHERE id = $1
		RETURNING `+segmentColumns, id, req.TypeID, req.Name, req.Position))
	if err != nil {
		return nil, classify(err, "segment %d", id)
	}
	return s, nil
}

func (db *DB) DeleteSegment(ctx context.Context, id int64) error {
	result, err := db.Pool.Exec(ctx, `DELETE FROM segments WHERE id = $1`, id)
	if err != nil {
		return classify(err, "segment %d", id)
	}
	if result.RowsAffected() == 0 {
		return apierr.NotFoundf("segment %d not found", id)
	}
	return nil
}

func scanSegment(row rowScanner) (*models.Segment, error) {
	var s models.Segment
	if err := row.Scan(&s.ID, &s.TypeID, &s.Name, &s.Position); err != nil {
		return nil, err
	}
	return &s, nil
}
