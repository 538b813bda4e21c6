package database

import (
	"context"
	"fmt"
	"time"

	"checklist/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	defaultLimit = 50
	maxLimit     = 1000
)

const (
	columnAuditTimestamp   = "a.timestamp"
	columnAuditSubjectKind = "a.subject_kind"
	columnAuditSubjectID   = "a.subject_id"
	columnAuditProjectID   = "a.project_id"
	columnAuditActorID     = "a.actor_id"
	columnAuditDescription = "a.change_description"
)

const auditSelect = `
	a.id, a.timestamp, a.subject_kind, a.subject_id, a.project_id,
	a.change_description, a.old_value, a.new_value, a.actor_id,
	u.username, u.first_name, u.last_name`

const auditFrom = `audit_log a LEFT JOIN users u ON u.id = a.actor_id`

// BatchInsertError indicates which row failed during a batch write.
// Contains the index of the failed row and the total batch size for debugging.
type BatchInsertError struct {
	FailedIndex int
	Total       int
	Err         error
}

func (e *BatchInsertError) Error() string {
	return fmt.Sprintf("failed to write row at index %d/%d: %v", e.FailedIndex, e.Total, e.Err)
}

func (e *BatchInsertError) Unwrap() error { return e.Err }

// newAuditEntry builds an entry for subject kind:id. projectID may be empty
// for changes that are not scoped to a project; actorID 0 means "system".
func newAuditEntry(kind models.SubjectKind, subjectID, projectID string, actorID int64, description, oldValue, newValue string) models.AuditEntry {
	entry := models.AuditEntry{
		ID:                uuid.New(),
		Timestamp:         time.Now().UTC(),
		SubjectKind:       kind,
		SubjectID:         subjectID,
		ChangeDescription: description,
		OldValue:          oldValue,
		NewValue:          newValue,
	}
	if projectID != "" {
		entry.ProjectID = &projectID
	}
	if actorID != 0 {
		entry.ActorID = &actorID
	}
	return entry
}

// InsertAuditEntries writes entries in a single round-trip outside any transaction.
func (db *DB) InsertAuditEntries(ctx context.Context, entries []models.AuditEntry) error {
	return insertAuditEntries(ctx, db.Pool, entries)
}

// insertAuditEntries queues every entry in one pgx batch. Empty input is a no-op.
// If any row fails, returns BatchInsertError indicating which one.
func insertAuditEntries(ctx context.Context, q querier, entries []models.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}

	query := `
		INSERT INTO audit_log (id, timestamp, subject_kind, subject_id, project_id,
			change_description, old_value, new_value, actor_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(query, e.ID, e.Timestamp, e.SubjectKind, e.SubjectID, e.ProjectID,
			e.ChangeDescription, e.OldValue, e.NewValue, e.ActorID)
	}

	results := q.SendBatch(ctx, batch)
	defer func() {
		_ = results.Close()
	}()

	for i := 0; i < len(entries); i++ {
		if _, err := results.Exec(); err != nil {
			return &BatchInsertError{FailedIndex: i, Total: len(entries), Err: err}
		}
	}

	return nil
}

// QueryAuditLog retrieves audit entries with optional filtering and pagination.
// If params.Search is provided, delegates to SearchAuditLog for full-text search.
// Uses COUNT(*) OVER() window function to get total count in single query.
// Returns entries newest first; an empty slice (not nil) if nothing matches.
func (db *DB) QueryAuditLog(ctx context.Context, params models.AuditQueryParams) ([]models.AuditEntry, int64, error) {
	start := time.Now()
	defer func() {
		db.log.Debug("QueryAuditLog",
			"duration", time.Since(start),
			"subject_kind", params.SubjectKind,
			"project_id", params.ProjectID,
			"search", params.Search)
	}()

	if params.Search != "" {
		return db.SearchAuditLog(ctx, params)
	}

	limit := validateLimit(params.Limit, defaultLimit, maxLimit)
	offset := validateOffset(params.Offset)

	qb := NewQueryBuilder()
	if err := applyAuditFilters(qb, params); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) OVER() AS total_count
		FROM %s
		%s
		ORDER BY %s DESC, a.id
		LIMIT $%d OFFSET $%d
	`, auditSelect, auditFrom, qb.WhereClause(), columnAuditTimestamp, qb.NextArgNum(), qb.NextArgNum()+1)

	args := append(qb.Args(), limit, offset)

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	return scanAuditEntries(rows, false)
}

func (db *DB) GetAuditEntry(ctx context.Context, id uuid.UUID) (*models.AuditEntry, error) {
	query := fmt.Sprintf(`SELECT %s, 0 FROM %s WHERE a.id = $1`, auditSelect, auditFrom)

	entry, _, err := scanAuditEntry(db.Pool.QueryRow(ctx, query, id), false)
	if err != nil {
		return nil, classify(err, "audit entry %s", id)
	}
	return entry, nil
}

// projectChanges returns every entry scoped to the project, directly or
// through one of its serial numbers, oldest first.
func projectChanges(ctx context.Context, q querier, projectID string, serialIDs []uuid.UUID) ([]models.AuditEntry, error) {
	serialKeys := make([]string, 0, len(serialIDs))
	for _, id := range serialIDs {
		serialKeys = append(serialKeys, id.String())
	}

	query := fmt.Sprintf(`
		SELECT %s, 0
		FROM %s
		WHERE a.project_id = $1
		   OR (a.subject_kind = $2 AND a.subject_id = ANY($3))
		ORDER BY a.timestamp, a.id
	`, auditSelect, auditFrom)

	rows, err := q.Query(ctx, query, projectID, models.SubjectSerialNumber, serialKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to query project changes: %w", err)
	}
	defer rows.Close()

	entries, _, err := scanAuditEntries(rows, false)
	return entries, err
}

// answerActors resolves, for each answer, the actor of the most recent audit
// entry whose subject is that answer.
func answerActors(ctx context.Context, q querier, answerIDs []uuid.UUID) (map[uuid.UUID]*models.UserRef, error) {
	out := map[uuid.UUID]*models.UserRef{}
	if len(answerIDs) == 0 {
		return out, nil
	}

	keys := make([]string, 0, len(answerIDs))
	for _, id := range answerIDs {
		keys = append(keys, id.String())
	}

	rows, err := q.Query(ctx, `
		SELECT DISTINCT ON (a.subject_id) a.subject_id, u.username, u.first_name, u.last_name
		FROM audit_log a
		JOIN users u ON u.id = a.actor_id
		WHERE a.subject_kind = $1 AND a.subject_id = ANY($2)
		ORDER BY a.subject_id, a.timestamp DESC, a.id DESC
	`, models.SubjectAnswer, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve answer actors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var subject string
		var ref models.UserRef
		if err := rows.Scan(&subject, &ref.Username, &ref.FirstName, &ref.LastName); err != nil {
			return nil, fmt.Errorf("failed to scan answer actor: %w", err)
		}
		id, err := uuid.Parse(subject)
		if err != nil {
			continue
		}
		out[id] = &ref
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating answer actors: %w", err)
	}
	return out, nil
}

func applyAuditFilters(qb *QueryBuilder, params models.AuditQueryParams) error {
	if params.SubjectKind != "" {
		qb.AddCondition(columnAuditSubjectKind, params.SubjectKind)
	}
	if params.SubjectID != "" {
		qb.AddCondition(columnAuditSubjectID, params.SubjectID)
	}
	if params.ProjectID != "" {
		qb.AddCondition(columnAuditProjectID, params.ProjectID)
	}
	if params.ActorID != 0 {
		qb.AddCondition(columnAuditActorID, params.ActorID)
	}
	return qb.AddTimeRange(columnAuditTimestamp, params.StartTime, params.EndTime)
}

func scanAuditEntry(row rowScanner, includeRank bool) (*models.AuditEntry, int64, error) {
	var e models.AuditEntry
	var total int64
	var rank float64
	var username, firstName, lastName *string

	dest := []interface{}{
		&e.ID, &e.Timestamp, &e.SubjectKind, &e.SubjectID, &e.ProjectID,
		&e.ChangeDescription, &e.OldValue, &e.NewValue, &e.ActorID,
		&username, &firstName, &lastName,
	}
	if includeRank {
		dest = append(dest, &rank)
	}
	dest = append(dest, &total)

	if err := row.Scan(dest...); err != nil {
		return nil, 0, err
	}

	if includeRank {
		e.Rank = &rank
	}
	if username != nil {
		e.Actor = &models.UserRef{Username: *username, FirstName: deref(firstName), LastName: deref(lastName)}
	}
	return &e, total, nil
}

func scanAuditEntries(rows rowsScanner, includeRank bool) ([]models.AuditEntry, int64, error) {
	entries := []models.AuditEntry{}
	var total int64

	for rows.Next() {
		e, t, err := scanAuditEntry(rows, includeRank)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		total = t
		entries = append(entries, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, total, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
