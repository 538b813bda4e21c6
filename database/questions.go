package database

import (
	"context"
	"fmt"

	"checklist/apierr"
	"checklist/models"
)

const questionColumns = `id, segment_id, text, kind, required, description, options, repeatable, position`

const questionColumnsQualified = `q.id, q.segment_id, q.text, q.kind, q.required, q.description, q.options, q.repeatable, q.position`

// ListQuestions returns questions in template order: segment position first,
// then question position.
func (db *DB) ListQuestions(ctx context.Context, filter models.QuestionFilter) ([]models.Question, error) {
	qb := NewQueryBuilder()
	if filter.SegmentID != nil {
		qb.AddCondition("q.segment_id", *filter.SegmentID)
	}
	if filter.TypeID != nil {
		qb.AddCondition("s.type_id", *filter.TypeID)
	}
	if filter.ProjectID != nil {
		qb.AddExpr(fmt.Sprintf(projectTypesExpr, "s.type_id"), *filter.ProjectID)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM questions q
		JOIN segments s ON s.id = q.segment_id
		%s
		ORDER BY s.type_id, s.position, s.id, q.position, q.id
	`, questionColumnsQualified, qb.WhereClause())

	rows, err := db.Pool.Query(ctx, query, qb.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	questions, err := scanAll(rows, scanQuestion)
	if err != nil {
		return nil, fmt.Errorf("failed to scan questions: %w", err)
	}
	return questions, nil
}

func (db *DB) GetQuestion(ctx context.Context, id int64) (*models.Question, error) {
	q, err := scanQuestion(db.Pool.QueryRow(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1`, id))
	if err != nil {
		return nil, classify(err, "question %d", id)
	}
	return q, nil
}

func (db *DB) CreateQuestion(ctx context.Context, req models.QuestionRequest) (*models.Question, error) {
	if !req.Kind.Valid() {
		return nil, apierr.Invalidf("unknown question kind %q", req.Kind)
	}
	q, err := scanQuestion(db.Pool.QueryRow(ctx, `
		INSERT INTO questions (segment_id, text, kind, required, description, options, repeatable, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+questionColumns,
		req.SegmentID, req.Text, req.Kind, req.Required, req.Description, req.Options, req.Repeatable, req.Position))
	if err != nil {
		return nil, classify(err, "question")
	}
	return q, nil
}

func (db *DB) UpdateQuestion(ctx context.Context, id int64, req models.QuestionRequest) (*models.Question, error) {
	if !req.Kind.Valid() {
		return nil, apierr.Invalidf("unknown question kind %q", req.Kind)
	}
	q, err := scanQuestion(db.Pool.QueryRow(ctx, `
		UPDATE questions
		SET segment_id = $2, text = $3, kind = $4, required = $5,
			description = $6, options = $7, repeatable = $8, position = $9
		WHERE id = $1
		RETURNING `+questionColumns,
		id, req.SegmentID, req.Text, req.Kind, req.Required, req.Description, req.Options, req.Repeatable, req.Position))
	if err != nil {
		return nil, classify(err, "question %d", id)
	}
	return q, nil
}

func (db *DB) DeleteQuestion(ctx context.Context, id int64) error {
	result, err := db.Pool.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return classify(err, "question %d", id)
	}
	if result.RowsAffected() == 0 {
		return apierr.NotFoundf("question %d not found", id)
	}
	return nil
}

func scanQuestion(row rowScanner) (*models.Question, error) {
	var q models.Question
	err := row.Scan(&q.ID, &q.SegmentID, &q.Text, &q.Kind, &q.Required,
		&q.Description, &q.Options, &q.Repeatable, &q.Position)
	if err != nil {
		return nil, err
	}
	return &q, nil
}
