package database

import (
	"context"
	"fmt"
	"time"

	"checklist/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const serialSelect = `
	sn.id, sn.value, sn.project_id, sn.project_type_id, pt.type_id, sn.position, sn.created_at`

const serialFrom = `serial_numbers sn JOIN project_types pt ON pt.id = sn.project_type_id`

// GenerateSerialValues returns count values of the form
// {projectID}-{typeID}-{index} with a 1-based index.
func GenerateSerialValues(projectID string, typeID int64, count int) []string {
	values := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		values = append(values, fmt.Sprintf("%s-%d-%d", projectID, typeID, i))
	}
	return values
}

func (db *DB) ListSerialNumbers(ctx context.Context, filter models.SerialNumberFilter) ([]models.SerialNumber, error) {
	return listSerialNumbers(ctx, db.Pool, filter)
}

func (db *DB) GetSerialNumber(ctx context.Context, id uuid.UUID) (*models.SerialNumber, error) {
	sn, err := getSerialNumber(ctx, db.Pool, id)
	if err != nil {
		return nil, classify(err, "serial number %s", id)
	}
	return sn, nil
}

func (db *DB) UpdateSerialNumber(ctx context.Context, id uuid.UUID, req models.UpdateSerialNumberRequest, actorID int64) (*models.SerialNumber, error) {
	var updated *models.SerialNumber
	err := db.WithTx(ctx, func(tx pgx.Tx) error {
		old, err := getSerialNumber(ctx, tx, id)
		if err != nil {
			return classify(err, "serial number %s", id)
		}

		if _, err := tx.Exec(ctx, `UPDATE serial_numbers SET value = $2 WHERE id = $1`, id, req.Value); err != nil {
			return classify(err, "serial number %s", id)
		}
		updated = old
		updated.Value = req.Value

		entry := newAuditEntry(models.SubjectSerialNumber, id.String(), old.ProjectID, actorID,
			"serial number renamed", old.Value, req.Value)
		return insertAuditEntries(ctx, tx, []models.AuditEntry{entry})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteSerialNumber removes one serial number and its answers.
func (db *DB) DeleteSerialNumber(ctx context.Context, id uuid.UUID, actorID int64) error {
	return db.WithTx(ctx, func(tx pgx.Tx) error {
		old, err := getSerialNumber(ctx, tx, id)
		if err != nil {
			return classify(err, "serial number %s", id)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM serial_numbers WHERE id = $1`, id); err != nil {
			return classify(err, "serial number %s", id)
		}
		entry := newAuditEntry(models.SubjectSerialNumber, id.String(), old.ProjectID, actorID,
			"serial number deleted", old.Value, "")
		return insertAuditEntries(ctx, tx, []models.AuditEntry{entry})
	})
}

// insertSerialNumbers creates one serial number per value under pt, with
// positions starting at 1.
func insertSerialNumbers(ctx context.Context, q querier, pt models.ProjectType, values []string) ([]models.SerialNumber, error) {
	serials := make([]models.SerialNumber, 0, len(values))
	now := time.Now().UTC().Truncate(time.Microsecond)
	for i, value := range values {
		serials = append(serials, models.SerialNumber{
			ID:            uuid.New(),
			Value:         value,
			ProjectID:     pt.ProjectID,
			ProjectTypeID: pt.ID,
			TypeID:        pt.TypeID,
			Position:      i + 1,
			CreatedAt:     now,
		})
	}
	if err := writeSerialNumbers(ctx, q, serials); err != nil {
		return nil, err
	}
	return serials, nil
}

// writeSerialNumbers inserts fully populated rows in one batch.
// If any row fails, returns BatchInsertError indicating which one.
func writeSerialNumbers(ctx context.Context, q querier, serials []models.SerialNumber) error {
	if len(serials) == 0 {
		return nil
	}

	query := `
		INSERT INTO serial_numbers (id, value, project_id, project_type_id, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	batch := &pgx.Batch{}
	for _, sn := range serials {
		batch.Queue(query, sn.ID, sn.Value, sn.ProjectID, sn.ProjectTypeID, sn.Position, sn.CreatedAt)
	}

	results := q.SendBatch(ctx, batch)
	defer func() {
		_ = results.Close()
	}()

	for i := range serials {
		if _, err := results.Exec(); err != nil {
			return &BatchInsertError{FailedIndex: i, Total: len(serials), Err: classify(err, "serial number %s", serials[i].Value)}
		}
	}
	return nil
}

func listSerialNumbers(ctx context.Context, q querier, filter models.SerialNumberFilter) ([]models.SerialNumber, error) {
	qb := NewQueryBuilder()
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
		ORDER BY sn.project_id, pt.created_at, pt.id, sn.position, sn.id
	`, serialSelect, serialFrom, qb.WhereClause())

	rows, err := q.Query(ctx, query, qb.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to list serial numbers: %w", err)
	}
	defer rows.Close()

	serials, err := scanAll(rows, scanSerialNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to scan serial numbers: %w", err)
	}
	return serials, nil
}

func getSerialNumber(ctx context.Context, q querier, id uuid.UUID) (*models.SerialNumber, error) {
	return scanSerialNumber(q.QueryRow(ctx, `SELECT `+serialSelect+` FROM `+serialFrom+` WHERE sn.id = $1`, id))
}

func scanSerialNumber(row rowScanner) (*models.SerialNumber, error) {
	var sn models.SerialNumber
	err := row.Scan(&sn.ID, &sn.Value, &sn.ProjectID, &sn.ProjectTypeID, &sn.TypeID, &sn.Position, &sn.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sn, nil
}
