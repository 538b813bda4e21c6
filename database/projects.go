package database

import (
	"context"
	"fmt"
	"time"

	"checklist/apierr"
	"checklist/models"

	"github.com/jackc/pgx/v5"
)

const projectColumns = `id, owner_id, date, created_at, updated_at`

// ListProjects returns every project, newest first, with its types populated.
func (db *DB) ListProjects(ctx context.Context) ([]models.Project, error) {
	rows, err := db.Pool.Query(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	projects, err := scanAll(rows, scanProject)
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to scan projects: %w", err)
	}

	ids := make([]string, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID)
	}
	types, err := loadProjectTypes(ctx, db.Pool, ids)
	if err != nil {
		return nil, err
	}
	byProject := map[string][]models.ProjectType{}
	for _, pt := range types {
		byProject[pt.ProjectID] = append(byProject[pt.ProjectID], pt)
	}
	for i := range projects {
		projects[i].Types = byProject[projects[i].ID]
		if projects[i].Types == nil {
			projects[i].Types = []models.ProjectType{}
		}
	}
	return projects, nil
}

func (db *DB) GetProject(ctx context.Context, id string) (*models.Project, error) {
	p, err := getProject(ctx, db.Pool, id)
	if err != nil {
		return nil, classify(err, "project %s", id)
	}
	types, err := loadProjectTypes(ctx, db.Pool, []string{id})
	if err != nil {
		return nil, err
	}
	p.Types = types
	return p, nil
}

// ListProjectTypes returns the project's type links with their serial values.
func (db *DB) ListProjectTypes(ctx context.Context, projectID string) ([]models.ProjectType, error) {
	if _, err := getProject(ctx, db.Pool, projectID); err != nil {
		return nil, classify(err, "project %s", projectID)
	}
	return loadProjectTypes(ctx, db.Pool, []string{projectID})
}

// CreateOrExtendProject creates the project with one type link and its serial
// numbers, or, when the id is taken, adds the type to the existing project.
// Linking a type twice is a conflict. Everything happens in one transaction;
// created reports whether the project row was new.
func (db *DB) CreateOrExtendProject(ctx context.Context, req models.CreateProjectRequest, actorID int64) (*models.Project, bool, error) {
	start := time.Now()

	date, err := parseProjectDate(req.Date)
	if err != nil {
		return nil, false, err
	}
	repetitions := req.RepetitionCount
	if repetitions == 0 {
		repetitions = 1
	}

	var created bool
	err = db.WithTx(ctx, func(tx pgx.Tx) error {
		// ON CONFLICT turns a lost creation race into "add type".
		tag, err := tx.Exec(ctx, `
			INSERT INTO projects (id, owner_id, date)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO NOTHING
		`, req.ID, req.OwnerID, date)
		if err != nil {
			return classify(err, "project %s", req.ID)
		}
		created = tag.RowsAffected() == 1

		typ, err := getType(ctx, tx, req.TypeID)
		if err != nil {
			return classify(err, "type %d", req.TypeID)
		}

		pt, err := insertProjectType(ctx, tx, req.ID, typ.ID, repetitions)
		if err != nil {
			if isUniqueViolation(err) {
				return apierr.Conflictf("type %d is already linked to project %s", typ.ID, req.ID)
			}
			return classify(err, "project type")
		}

		serials, err := insertSerialNumbers(ctx, tx, pt, GenerateSerialValues(req.ID, typ.ID, repetitions))
		if err != nil {
			return err
		}

		entries := []models.AuditEntry{}
		if created {
			entries = append(entries, newAuditEntry(models.SubjectProject, req.ID, req.ID, actorID,
				"project created", "", fmt.Sprintf("owner=%s date=%s", req.OwnerID, date.Format(models.DateLayout))))
		}
		entries = append(entries, newAuditEntry(models.SubjectProjectType, pt.ID.String(), req.ID, actorID,
			"type added to project", "", fmt.Sprintf("%s x%d", typ.Name, len(serials))))
		return insertAuditEntries(ctx, tx, entries)
	})
	if err != nil {
		return nil, false, err
	}

	db.log.Info("Project type linked",
		"project_id", req.ID, "type_id", req.TypeID, "repetitions", repetitions,
		"created", created, "duration", time.Since(start))

	project, err := db.GetProject(ctx, req.ID)
	return project, created, err
}

func (db *DB) UpdateProject(ctx context.Context, id string, req models.UpdateProjectRequest, actorID int64) (*models.Project, error) {
	date, err := parseProjectDate(req.Date)
	if err != nil {
		return nil, err
	}

	err = db.WithTx(ctx, func(tx pgx.Tx) error {
		old, err := scanProject(tx.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return classify(err, "project %s", id)
		}

		_, err = tx.Exec(ctx, `
			UPDATE projects SET owner_id = $2, date = $3, updated_at = NOW()
			WHERE id = $1
		`, id, req.OwnerID, date)
		if err != nil {
			return classify(err, "project %s", id)
		}

		entry := newAuditEntry(models.SubjectProject, id, id, actorID, "project updated",
			fmt.Sprintf("owner=%s date=%s", old.OwnerID, old.Date.Format(models.DateLayout)),
			fmt.Sprintf("owner=%s date=%s", req.OwnerID, date.Format(models.DateLayout)))
		return insertAuditEntries(ctx, tx, []models.AuditEntry{entry})
	})
	if err != nil {
		return nil, err
	}
	return db.GetProject(ctx, id)
}

// DeleteProject removes the project and, by cascade, its type links, serial
// numbers and answers. Audit entries survive with project_id cleared.
func (db *DB) DeleteProject(ctx context.Context, id string, actorID int64) error {
	return db.WithTx(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
		if err != nil {
			return classify(err, "project %s", id)
		}
		if result.RowsAffected() == 0 {
			return apierr.NotFoundf("project %s not found", id)
		}

		entry := newAuditEntry(models.SubjectProject, id, "", actorID, "project deleted", id, "")
		if err := insertAuditEntries(ctx, tx, []models.AuditEntry{entry}); err != nil {
			return err
		}
		db.log.Info("Deleted project", "project_id", id)
		return nil
	})
}

func parseProjectDate(s string) (time.Time, error) {
	if s == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	// Archive documents and some clients send a full timestamp.
	if len(s) > len(models.DateLayout) && s[len(models.DateLayout)] == 'T' {
		s = s[:len(models.DateLayout)]
	}
	date, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return time.Time{}, apierr.Invalidf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return date, nil
}

func insertProjectType(ctx context.Context, q querier, projectID string, typeID int64, repetitions int) (models.ProjectType, error) {
	var pt models.ProjectType
	err := q.QueryRow(ctx, `
		WITH inserted AS (
			INSERT INTO project_types (project_id, type_id, repetition_count)
			VALUES ($1, $2, $3)
			RETURNING id, project_id, type_id, repetition_count, created_at
		)
		SELECT i.id, i.project_id, i.type_id, t.name, i.repetition_count, i.created_at
		FROM inserted i JOIN types t ON t.id = i.type_id
	`, projectID, typeID, repetitions).Scan(
		&pt.ID, &pt.ProjectID, &pt.TypeID, &pt.TypeName, &pt.RepetitionCount, &pt.CreatedAt)
	return pt, err
}

// loadProjectTypes returns the type links of the given projects in link order,
// each with its serial values in position order.
func loadProjectTypes(ctx context.Context, q querier, projectIDs []string) ([]models.ProjectType, error) {
	types := []models.ProjectType{}
	if len(projectIDs) == 0 {
		return types, nil
	}

	rows, err := q.Query(ctx, `
		SELECT pt.id, pt.project_id, pt.type_id, t.name, pt.repetition_count, pt.created_at
		FROM project_types pt
		JOIN types t ON t.id = pt.type_id
		WHERE pt.project_id = ANY($1)
		ORDER BY pt.project_id, pt.created_at, pt.id
	`, projectIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load project types: %w", err)
	}
	types, err = scanAll(rows, scanProjectType)
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to scan project types: %w", err)
	}

	srows, err := q.Query(ctx, `
		SELECT project_type_id::text, value
		FROM serial_numbers
		WHERE project_id = ANY($1)
		ORDER BY position, id
	`, projectIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load serial values: %w", err)
	}
	defer srows.Close()

	index := make(map[string]int, len(types))
	for i := range types {
		types[i].SerialNumbers = []string{}
		index[types[i].ID.String()] = i
	}
	for srows.Next() {
		var ptID, value string
		if err := srows.Scan(&ptID, &value); err != nil {
			return nil, fmt.Errorf("failed to scan serial value: %w", err)
		}
		if i, ok := index[ptID]; ok {
			types[i].SerialNumbers = append(types[i].SerialNumbers, value)
		}
	}
	if err := srows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating serial values: %w", err)
	}
	return types, nil
}

func getProject(ctx context.Context, q querier, id string) (*models.Project, error) {
	return scanProject(q.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
}

func scanProject(row rowScanner) (*models.Project, error) {
	var p models.Project
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Date, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanProjectType(row rowScanner) (*models.ProjectType, error) {
	var pt models.ProjectType
	if err := row.Scan(&pt.ID, &pt.ProjectID, &pt.TypeID, &pt.TypeName, &pt.RepetitionCount, &pt.CreatedAt); err != nil {
		return nil, err
	}
	return &pt, nil
}
