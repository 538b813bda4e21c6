package database

import (
	"context"
	"time"

	"checklist/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LoadProjectGraph reads the full closure of one project inside a single
// read-only snapshot. It never writes.
func (db *DB) LoadProjectGraph(ctx context.Context, projectID string) (*models.ProjectGraph, error) {
	start := time.Now()
	graph := &models.ProjectGraph{}

	err := db.withSnapshot(ctx, func(tx pgx.Tx) error {
		project, err := getProject(ctx, tx, projectID)
		if err != nil {
			return classify(err, "project %s", projectID)
		}
		graph.Project = *project

		if graph.Types, err = loadProjectTypes(ctx, tx, []string{projectID}); err != nil {
			return err
		}
		graph.Project.Types = graph.Types

		typeIDs := make([]int64, 0, len(graph.Types))
		for _, pt := range graph.Types {
			typeIDs = append(typeIDs, pt.TypeID)
		}
		if graph.Segments, err = loadTemplates(ctx, tx, typeIDs); err != nil {
			return err
		}

		if graph.SerialNumbers, err = listSerialNumbers(ctx, tx, models.SerialNumberFilter{ProjectID: &projectID}); err != nil {
			return err
		}
		serialIDs := make([]uuid.UUID, 0, len(graph.SerialNumbers))
		for _, sn := range graph.SerialNumbers {
			serialIDs = append(serialIDs, sn.ID)
		}

		if graph.Answers, err = listAnswers(ctx, tx, models.AnswerFilter{ProjectID: &projectID}); err != nil {
			return err
		}
		if err := attachActors(ctx, tx, graph.Answers); err != nil {
			return err
		}

		graph.Changes, err = projectChanges(ctx, tx, projectID, serialIDs)
		return err
	})
	if err != nil {
		return nil, err
	}

	db.log.Debug("Loaded project graph",
		"project_id", projectID,
		"types", len(graph.Types),
		"serial_numbers", len(graph.SerialNumbers),
		"answers", len(graph.Answers),
		"changes", len(graph.Changes),
		"duration", time.Since(start))
	return graph, nil
}
