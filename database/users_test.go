package database

import (
	"context"
	"encoding/json"
	"testing"

	"checklist/apierr"
	"checklist/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticate(t *testing.T) {
	db := requireTestDB(t)
	ctx := context.Background()

	created, err := db.CreateUser(ctx, models.UserRequest{
		Username:  "4711",
		Password:  "correct horse",
		FirstName: "Ana",
		LastName:  "Novak",
	}, 0)
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", created.PasswordHash)

	user, err := db.Authenticate(ctx, "4711", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)

	_, err = db.Authenticate(ctx, "4711", "wrong")
	assert.ErrorIs(t, err, apierr.ErrUnauthenticated)

	_, err = db.Authenticate(ctx, "nobody", "correct horse")
	assert.ErrorIs(t, err, apierr.ErrUnauthenticated)
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	db := requireTestDB(t)
	ctx := context.Background()

	req := models.UserRequest{Username: "4711", Password: "password1"}
	_, err := db.CreateUser(ctx, req, 0)
	require.NoError(t, err)

	_, err = db.CreateUser(ctx, req, 0)
	assert.ErrorIs(t, err, apierr.ErrConflict)
}

func TestChangePassword(t *testing.T) {
	db := requireTestDB(t)
	ctx := context.Background()

	user, err := db.CreateUser(ctx, models.UserRequest{Username: "4711", Password: "old-password"}, 0)
	require.NoError(t, err)

	err = db.ChangePassword(ctx, user.ID, "not-it", "new-password")
	assert.ErrorIs(t, err, apierr.ErrInvalid)

	require.NoError(t, db.ChangePassword(ctx, user.ID, "old-password", "new-password"))
	_, err = db.Authenticate(ctx, "4711", "new-password")
	assert.NoError(t, err)
}

func TestUpdateUser_KeepsPasswordWhenEmpty(t *testing.T) {
	db := requireTestDB(t)
	ctx := context.Background()

	user, err := db.CreateUser(ctx, models.UserRequest{Username: "4711", Password: "password1"}, 0)
	require.NoError(t, err)

	updated, err := db.UpdateUser(ctx, user.ID, models.UserRequest{Username: "4711", FirstName: "Ana", IsStaff: true}, user.ID)
	require.NoError(t, err)
	assert.True(t, updated.IsStaff)
	assert.Equal(t, "Ana", updated.FirstName)

	_, err = db.Authenticate(ctx, "4711", "password1")
	assert.NoError(t, err)
}

func TestSettings(t *testing.T) {
	db := requireTestDB(t)
	ctx := context.Background()

	_, err := db.PutSetting(ctx, "theme", json.RawMessage(`{bad`))
	assert.ErrorIs(t, err, apierr.ErrInvalid)

	require.NoError(t, db.PutSettings(ctx, map[string]json.RawMessage{
		"theme":    json.RawMessage(`"dark"`),
		"pageSize": json.RawMessage(`25`),
	}))
	s, err := db.PutSetting(ctx, "theme", json.RawMessage(`"light"`))
	require.NoError(t, err)
	assert.JSONEq(t, `"light"`, string(s.Value))

	all, err := db.ListSettings(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, db.DeleteSetting(ctx, "theme"))
	_, err = db.GetSetting(ctx, "theme")
	assert.ErrorIs(t, err, apierr.ErrNotFound)
}

func TestEnsureDefaultProfile(t *testing.T) {
	db := requireTestDB(t)
	ctx := context.Background()

	created, err := db.EnsureDefaultProfile(ctx)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = db.EnsureDefaultProfile(ctx)
	require.NoError(t, err)
	assert.False(t, created)

	profiles, err := db.ListProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "light", profiles[0].Settings["theme"])
}
