package database

import (
	"context"
	"fmt"
	"time"

	"checklist/apierr"
	"checklist/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const answerSelect = `a.id, a.question_id, a.serial_number_id, a.value, a.created_at, a.updated_at`

// Answers are only visible for questions of the serial number's own type.
const answerFrom = `
	answers a
	JOIN serial_numbers sn ON sn.id = a.serial_number_id
	JOIN project_types pt ON pt.id = sn.project_type_id
	JOIN questions q ON q.id = a.question_id
	JOIN segments s ON s.id = q.segment_id AND s.type_id = pt.type_id`

// upsertAnswerQuery writes one answer per (question, serial number). The CTE
// reads the previous value from the statement's snapshot for the audit entry.
const upsertAnswerQuery = `
	WITH prev AS (
		SELECT value FROM answers WHERE question_id = $2 AND serial_number_id = $3
	)
	INSERT INTO answers (id, question_id, serial_number_id, value)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (question_id, serial_number_id)
	DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	RETURNING id, question_id, serial_number_id, value, created_at, updated_at,
		COALESCE((SELECT value FROM prev), ''), (SELECT COUNT(*) FROM prev) > 0
`

// answerTarget is what a payload's question and serial number resolve to.
type answerTarget struct {
	projectID string
}

func (db *DB) ListAnswers(ctx context.Context, filter models.AnswerFilter) ([]models.Answer, error) {
	answers, err := listAnswers(ctx, db.Pool, filter)
	if err != nil {
		return nil, err
	}
	if err := attachActors(ctx, db.Pool, answers); err != nil {
		return nil, err
	}
	return answers, nil
}

func (db *DB) GetAnswer(ctx context.Context, id uuid.UUID) (*models.Answer, error) {
	answer, err := getAnswer(ctx, db.Pool, id)
	if err != nil {
		return nil, classify(err, "answer %s", id)
	}
	one := []models.Answer{*answer}
	if err := attachActors(ctx, db.Pool, one); err != nil {
		return nil, err
	}
	return &one[0], nil
}

// SaveAnswer upserts a single answer. created is false when an existing
// answer for the same question and serial number was overwritten.
func (db *DB) SaveAnswer(ctx context.Context, req models.AnswerRequest, actorID int64) (*models.Answer, bool, error) {
	var saved models.Answer
	var created bool
	err := db.WithTx(ctx, func(tx pgx.Tx) error {
		targets, err := resolveAnswerTargets(ctx, tx, []models.AnswerRequest{req})
		if err != nil {
			return err
		}
		answers, flags, err := upsertAnswers(ctx, tx, []models.AnswerRequest{req}, targets, actorID)
		if err != nil {
			return err
		}
		saved, created = answers[0], flags[0]
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &saved, created, nil
}

// SaveAnswers validates every payload before writing any of them, then
// upserts them all in one transaction.
func (db *DB) SaveAnswers(ctx context.Context, reqs []models.AnswerRequest, actorID int64) ([]models.Answer, error) {
	if len(reqs) == 0 {
		return []models.Answer{}, nil
	}
	start := time.Now()

	var saved []models.Answer
	err := db.WithTx(ctx, func(tx pgx.Tx) error {
		targets, err := resolveAnswerTargets(ctx, tx, reqs)
		if err != nil {
			return err
		}
		saved, _, err = upsertAnswers(ctx, tx, reqs, targets, actorID)
		return err
	})
	if err != nil {
		return nil, err
	}

	db.log.Info("Saved answer batch", "count", len(saved), "duration", time.Since(start))
	return saved, nil
}

func (db *DB) UpdateAnswer(ctx context.Context, id uuid.UUID, value string, actorID int64) (*models.Answer, error) {
	var updated *models.Answer
	err := db.WithTx(ctx, func(tx pgx.Tx) error {
		old, projectID, err := lockAnswer(ctx, tx, id)
		if err != nil {
			return err
		}

		updated, err = scanAnswer(tx.QueryRow(ctx, `
			UPDATE answers a SET value = $2, updated_at = NOW()
			WHERE a.id = $1
			RETURNING `+answerSelect, id, value))
		if err != nil {
			return classify(err, "answer %s", id)
		}

		entry := newAuditEntry(models.SubjectAnswer, id.String(), projectID, actorID,
			"answer updated", old.Value, value)
		return insertAuditEntries(ctx, tx, []models.AuditEntry{entry})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (db *DB) DeleteAnswer(ctx context.Context, id uuid.UUID, actorID int64) error {
	return db.WithTx(ctx, func(tx pgx.Tx) error {
		old, projectID, err := lockAnswer(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM answers WHERE id = $1`, id); err != nil {
			return classify(err, "answer %s", id)
		}
		entry := newAuditEntry(models.SubjectAnswer, id.String(), projectID, actorID,
			"answer deleted", old.Value, "")
		return insertAuditEntries(ctx, tx, []models.AuditEntry{entry})
	})
}

// resolveAnswerTargets checks every payload against the store: the question
// and serial number must exist and the question must belong to the serial
// number's type. The returned slice is parallel to reqs.
func resolveAnswerTargets(ctx context.Context, q querier, reqs []models.AnswerRequest) ([]answerTarget, error) {
	questionIDs := make([]int64, 0, len(reqs))
	serialIDs := make([]uuid.UUID, 0, len(reqs))
	for _, r := range reqs {
		questionIDs = append(questionIDs, r.QuestionID)
		serialIDs = append(serialIDs, r.SerialNumberID)
	}

	questionTypes, err := questionTypeIDs(ctx, q, questionIDs)
	if err != nil {
		return nil, err
	}

	type serialInfo struct {
		typeID    int64
		projectID string
	}
	serials := map[uuid.UUID]serialInfo{}
	srows, err := q.Query(ctx, `
		SELECT sn.id, pt.type_id, sn.project_id
		FROM `+serialFrom+`
		WHERE sn.id = ANY($1)
	`, serialIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve serial numbers: %w", err)
	}
	for srows.Next() {
		var id uuid.UUID
		var info serialInfo
		if err := srows.Scan(&id, &info.typeID, &info.projectID); err != nil {
			srows.Close()
			return nil, fmt.Errorf("failed to scan serial number: %w", err)
		}
		serials[id] = info
	}
	srows.Close()
	if err := srows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating serial numbers: %w", err)
	}

	targets := make([]answerTarget, len(reqs))
	for i, r := range reqs {
		typeID, ok := questionTypes[r.QuestionID]
		if !ok {
			return nil, apierr.Invalidf("answer %d: question %d does not exist", i, r.QuestionID)
		}
		info, ok := serials[r.SerialNumberID]
		if !ok {
			return nil, apierr.Invalidf("answer %d: serial number %s does not exist", i, r.SerialNumberID)
		}
		if info.typeID != typeID {
			return nil, apierr.Invalidf("answer %d: question %d does not belong to the type of serial number %s",
				i, r.QuestionID, r.SerialNumberID)
		}
		targets[i] = answerTarget{projectID: info.projectID}
	}
	return targets, nil
}

// upsertAnswers writes reqs in one batch and queues an audit entry per row.
// If any row fails, returns BatchInsertError indicating which one.
func upsertAnswers(ctx context.Context, q querier, reqs []models.AnswerRequest, targets []answerTarget, actorID int64) ([]models.Answer, []bool, error) {
	batch := &pgx.Batch{}
	for _, r := range reqs {
		batch.Queue(upsertAnswerQuery, uuid.New(), r.QuestionID, r.SerialNumberID, r.Value)
	}

	results := q.SendBatch(ctx, batch)
	answers := make([]models.Answer, 0, len(reqs))
	created := make([]bool, 0, len(reqs))
	entries := make([]models.AuditEntry, 0, len(reqs))

	for i := range reqs {
		var a models.Answer
		var oldValue string
		var existed bool
		err := results.QueryRow().Scan(&a.ID, &a.QuestionID, &a.SerialNumberID, &a.Value,
			&a.CreatedAt, &a.UpdatedAt, &oldValue, &existed)
		if err != nil {
			_ = results.Close()
			return nil, nil, &BatchInsertError{FailedIndex: i, Total: len(reqs), Err: classify(err, "answer %d", i)}
		}
		answers = append(answers, a)
		created = append(created, !existed)

		description := "answer recorded"
		if existed {
			description = "answer updated"
		}
		entries = append(entries, newAuditEntry(models.SubjectAnswer, a.ID.String(), targets[i].projectID, actorID,
			description, oldValue, a.Value))
	}
	if err := results.Close(); err != nil {
		return nil, nil, fmt.Errorf("failed to close answer batch: %w", err)
	}

	if err := insertAuditEntries(ctx, q, entries); err != nil {
		return nil, nil, err
	}
	return answers, created, nil
}

func lockAnswer(ctx context.Context, q querier, id uuid.UUID) (*models.Answer, string, error) {
	var a models.Answer
	var projectID string
	err := q.QueryRow(ctx, `
		SELECT `+answerSelect+`, sn.project_id
		FROM answers a JOIN serial_numbers sn ON sn.id = a.serial_number_id
		WHERE a.id = $1
		FOR UPDATE OF a
	`, id).Scan(&a.ID, &a.QuestionID, &a.SerialNumberID, &a.Value, &a.CreatedAt, &a.UpdatedAt, &projectID)
	if err != nil {
		return nil, "", classify(err, "answer %s", id)
	}
	return &a, projectID, nil
}

func listAnswers(ctx context.Context, q querier, filter models.AnswerFilter) ([]models.Answer, error) {
	qb := NewQueryBuilder()
	if filter.SerialNumberID != nil {
		qb.AddCondition("a.serial_number_id", *filter.SerialNumberID)
	}
	if filter.QuestionID != nil {
		qb.AddCondition("a.question_id", *filter.QuestionID)
	}
	if filter.ProjectID != nil {
		qb.AddCondition("sn.project_id", *filter.ProjectID)
	}
	if filter.TypeID != nil {
		qb.AddCondition("pt.type_id", *filter.TypeID)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		%s
		ORDER BY a.created_at, a.id
	`, answerSelect, answerFrom, qb.WhereClause())

	rows, err := q.Query(ctx, query, qb.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	defer rows.Close()

	answers, err := scanAll(rows, scanAnswer)
	if err != nil {
		return nil, fmt.Errorf("failed to scan answers: %w", err)
	}
	return answers, nil
}

func getAnswer(ctx context.Context, q querier, id uuid.UUID) (*models.Answer, error) {
	return scanAnswer(q.QueryRow(ctx, `SELECT `+answerSelect+` FROM answers a WHERE a.id = $1`, id))
}

// attachActors fills Actor from the most recent audit entry of each answer.
func attachActors(ctx context.Context, q querier, answers []models.Answer) error {
	ids := make([]uuid.UUID, 0, len(answers))
	for _, a := range answers {
		ids = append(ids, a.ID)
	}
	actors, err := answerActors(ctx, q, ids)
	if err != nil {
		return err
	}
	for i := range answers {
		answers[i].Actor = actors[answers[i].ID]
	}
	return nil
}

func scanAnswer(row rowScanner) (*models.Answer, error) {
	var a models.Answer
	if err := row.Scan(&a.ID, &a.QuestionID, &a.SerialNumberID, &a.Value, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// questionTypeIDs maps each existing question in ids to the type of its segment.
func questionTypeIDs(ctx context.Context, q querier, ids []int64) (map[int64]int64, error) {
	questionTypes := map[int64]int64{}
	rows, err := q.Query(ctx, `
		SELECT q.id, s.type_id
		FROM questions q JOIN segments s ON s.id = q.segment_id
		WHERE q.id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, typeID int64
		if err := rows.Scan(&id, &typeID); err != nil {
			return nil, fmt.Errorf("failed to scan question type: %w", err)
		}
		questionTypes[id] = typeID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating question types: %w", err)
	}
	return questionTypes, nil
}
