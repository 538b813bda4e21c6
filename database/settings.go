package database

import (
	"context"
	"encoding/json"
	"fmt"

	"checklist/apierr"
	"checklist/models"

	"github.com/jackc/pgx/v5"
)

func (db *DB) ListSettings(ctx context.Context) ([]models.Setting, error) {
	rows, err := db.Pool.Query(ctx, `SELECT key, value, updated_at FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	settings, err := scanAll(rows, scanSetting)
	if err != nil {
		return nil, fmt.Errorf("failed to scan settings: %w", err)
	}
	return settings, nil
}

func (db *DB) GetSetting(ctx context.Context, key string) (*models.Setting, error) {
	s, err := scanSetting(db.Pool.QueryRow(ctx, `SELECT key, value, updated_at FROM settings WHERE key = $1`, key))
	if err != nil {
		return nil, classify(err, "setting %q", key)
	}
	return s, nil
}

func (db *DB) PutSetting(ctx context.Context, key string, value json.RawMessage) (*models.Setting, error) {
	if !json.Valid(value) {
		return nil, apierr.Invalidf("setting %q: value is not valid JSON", key)
	}
	s, err := scanSetting(db.Pool.QueryRow(ctx, `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
		RETURNING key, value, updated_at
	`, key, []byte(value)))
	if err != nil {
		return nil, classify(err, "setting %q", key)
	}
	return s, nil
}

// PutSettings writes every key of values in one transaction.
func (db *DB) PutSettings(ctx context.Context, values map[string]json.RawMessage) error {
	for key, value := range values {
		if !json.Valid(value) {
			return apierr.Invalidf("setting %q: value is not valid JSON", key)
		}
	}
	return db.WithTx(ctx, func(tx pgx.Tx) error {
		for key, value := range values {
			_, err := tx.Exec(ctx, `
				INSERT INTO settings (key, value) VALUES ($1, $2)
				ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
			`, key, []byte(value))
			if err != nil {
				return classify(err, "setting %q", key)
			}
		}
		return nil
	})
}

func (db *DB) DeleteSetting(ctx context.Context, key string) error {
	result, err := db.Pool.Exec(ctx, `DELETE FROM settings WHERE key = $1`, key)
	if err != nil {
		return classify(err, "setting %q", key)
	}
	if result.RowsAffected() == 0 {
		return apierr.NotFoundf("setting %q not found", key)
	}
	return nil
}

func scanSetting(row rowScanner) (*models.Setting, error) {
	var s models.Setting
	var raw []byte
	if err := row.Scan(&s.Key, &raw, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Value = json.RawMessage(raw)
	return &s, nil
}
