package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"checklist/apierr"
	"checklist/models"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

const userColumns = `id, username, password_hash, email, first_name, last_name, is_staff, is_superuser, created_at, updated_at`

// ErrBadCredentials is returned by Authenticate for an unknown user or a wrong password.
var ErrBadCredentials = apierr.Unauthenticatedf("invalid username or password")

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func (db *DB) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := db.Pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users, err := scanAll(rows, scanUser)
	if err != nil {
		return nil, fmt.Errorf("failed to scan users: %w", err)
	}
	return users, nil
}

func (db *DB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u, err := scanUser(db.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, classify(err, "user %d", id)
	}
	return u, nil
}

func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	u, err := scanUser(db.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		return nil, classify(err, "user %q", username)
	}
	return u, nil
}

// CreateUser hashes req.Password and inserts the user. A taken username is a conflict.
func (db *DB) CreateUser(ctx context.Context, req models.UserRequest, actorID int64) (*models.User, error) {
	if req.Password == "" {
		return nil, apierr.Invalidf("password is required")
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	var u *models.User
	err = db.WithTx(ctx, func(tx pgx.Tx) error {
		u, err = scanUser(tx.QueryRow(ctx, `
			INSERT INTO users (username, password_hash, email, first_name, last_name, is_staff, is_superuser)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING `+userColumns,
			req.Username, hash, req.Email, req.FirstName, req.LastName, req.IsStaff, req.IsSuperuser))
		if err != nil {
			return classify(err, "user %q", req.Username)
		}
		entry := newAuditEntry(models.SubjectUser, strconv.FormatInt(u.ID, 10), "", actorID,
			"user created", "", u.Username)
		return insertAuditEntries(ctx, tx, []models.AuditEntry{entry})
	})
	if err != nil {
		return nil, err
	}
	db.log.Info("Created user", "user_id", u.ID, "username", u.Username, "is_staff", u.IsStaff)
	return u, nil
}

// UpdateUser rewrites the profile fields; the password changes only when req.Password is set.
func (db *DB) UpdateUser(ctx context.Context, id int64, req models.UserRequest, actorID int64) (*models.User, error) {
	var hash *string
	if req.Password != "" {
		h, err := HashPassword(req.Password)
		if err != nil {
			return nil, err
		}
		hash = &h
	}

	var u *models.User
	err := db.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		u, err = scanUser(tx.QueryRow(ctx, `
			UPDATE users
			SET username = $2, email = $3, first_name = $4, last_name = $5,
				is_staff = $6, is_superuser = $7,
				password_hash = COALESCE($8, password_hash), updated_at = NOW()
			WHERE id = $1
			RETURNING `+userColumns,
			id, req.Username, req.Email, req.FirstName, req.LastName, req.IsStaff, req.IsSuperuser, hash))
		if err != nil {
			return classify(err, "user %d", id)
		}
		entry := newAuditEntry(models.SubjectUser, strconv.FormatInt(id, 10), "", actorID,
			"user updated", "", u.Username)
		return insertAuditEntries(ctx, tx, []models.AuditEntry{entry})
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (db *DB) DeleteUser(ctx context.Context, id int64, actorID int64) error {
	return db.WithTx(ctx, func(tx pgx.Tx) error {
		var username string
		err := tx.QueryRow(ctx, `DELETE FROM users WHERE id = $1 RETURNING username`, id).Scan(&username)
		if err != nil {
			return classify(err, "user %d", id)
		}
		// The actor may be the deleted user; their entries keep a NULL actor.
		if actorID == id {
			actorID = 0
		}
		entry := newAuditEntry(models.SubjectUser, strconv.FormatInt(id, 10), "", actorID,
			"user deleted", username, "")
		return insertAuditEntries(ctx, tx, []models.AuditEntry{entry})
	})
}

// Authenticate returns the user when password matches, ErrBadCredentials otherwise.
func (db *DB) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	u, err := db.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apierr.ErrNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrBadCredentials
	}
	return u, nil
}

func (db *DB) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	u, err := db.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(oldPassword)); err != nil {
		return apierr.Invalidf("old password is incorrect")
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	return db.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, userID, hash); err != nil {
			return classify(err, "user %d", userID)
		}
		entry := newAuditEntry(models.SubjectUser, strconv.FormatInt(userID, 10), "", userID,
			"password changed", "", "")
		return insertAuditEntries(ctx, tx, []models.AuditEntry{entry})
	})
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Email, &u.FirstName, &u.LastName,
		&u.IsStaff, &u.IsSuperuser, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
