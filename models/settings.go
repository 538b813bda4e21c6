package models

import (
	"encoding/json"
	"time"
)

// Setting is one key of the application settings bag. Value is arbitrary JSON.
type Setting struct {
	Key       string          `json:"key" db:"key"`
	Value     json.RawMessage `json:"value" db:"value"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

type SettingRequest struct {
	Value json.RawMessage `json:"value" binding:"required"`
}

// Profile is a named bag of UI preferences.
type Profile struct {
	ID       int64                  `json:"id" db:"id"`
	Name     string                 `json:"name" db:"name"`
	Settings map[string]interface{} `json:"settings" db:"settings"`
}

type ProfileRequest struct {
	Name     string                 `json:"name" binding:"required,max=255"`
	Settings map[string]interface{} `json:"settings"`
}

// DefaultProfile is installed at startup when no profile exists.
func DefaultProfile() Profile {
	return Profile{
		Name: "Default profile",
		Settings: map[string]interface{}{
			"theme":         "light",
			"language":      "sl",
			"notifications": true,
			"auto_logout":   false,
		},
	}
}
