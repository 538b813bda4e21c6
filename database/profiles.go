package database

import (
	"context"
	"fmt"

	"checklist/models"
)

// EnsureDefaultProfile installs models.DefaultProfile when the profiles table
// is empty. It runs once at startup; reads never create profiles.
func (db *DB) EnsureDefaultProfile(ctx context.Context) (bool, error) {
	def := models.DefaultProfile()
	tag, err := db.Pool.Exec(ctx, `
		INSERT INTO profiles (name, settings)
		SELECT $1, $2
		WHERE NOT EXISTS (SELECT 1 FROM profiles)
	`, def.Name, def.Settings)
	if err != nil {
		return false, fmt.Errorf("failed to ensure default profile: %w", err)
	}
	created := tag.RowsAffected() == 1
	if created {
		db.log.Info("Created default profile", "name", def.Name)
	}
	return created, nil
}

func (db *DB) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	rows, err := db.Pool.Query(ctx, `SELECT id, name, settings FROM profiles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	profiles, err := scanAll(rows, scanProfile)
	if err != nil {
		return nil, fmt.Errorf("failed to scan profiles: %w", err)
	}
	return profiles, nil
}

func (db *DB) GetProfile(ctx context.Context, id int64) (*models.Profile, error) {
	p, err := scanProfile(db.Pool.QueryRow(ctx, `SELECT id, name, settings FROM profiles WHERE id = $1`, id))
	if err != nil {
		return nil, classify(err, "profile %d", id)
	}
	return p, nil
}

func (db *DB) UpdateProfile(ctx context.Context, id int64, req models.ProfileRequest) (*models.Profile, error) {
	settings := req.Settings
	if settings == nil {
		settings = map[string]interface{}{}
	}
	p, err := scanProfile(db.Pool.QueryRow(ctx, `
		UPDATE profiles SET name = $2, settings = $3
		WHERE id = $1
		RETURNING id, name, settings
	`, id, req.Name, settings))
	if err != nil {
		return nil, classify(err, "profile %d", id)
	}
	return p, nil
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	var p models.Profile
	if err := row.Scan(&p.ID, &p.Name, &p.Settings); err != nil {
		return nil, err
	}
	if p.Settings == nil {
		p.Settings = map[string]interface{}{}
	}
	return &p, nil
}
