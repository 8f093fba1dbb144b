package sqlstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"sprintboard/internal/apperr"
	"sprintboard/internal/models"
)

const userColumns = `id, name, email, password_hash, role, created_at`

// CreateUser persists u, assigning id and creation time when missing.
func (q *Queries) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now()
	}
	_, err := q.exec(ctx, `INSERT INTO users(id, name, email, password_hash, role, created_at) VALUES(?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.CreatedAt)
	if err != nil {
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// GetUser fetches a single user by id.
func (q *Queries) GetUser(ctx context.Context, id string) (models.User, error) {
	var u models.User
	if err := q.get(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = ?`, id); err != nil {
		return models.User{}, notFound(err, "user", "get user")
	}
	return u, nil
}

// GetUserByEmail expects an already normalized address.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	if err := q.get(ctx, &u, `SELECT `+userColumns+` FROM users WHERE email = ?`, email); err != nil {
		return models.User{}, notFound(err, "user", "get user by email")
	}
	return u, nil
}

// ListUsers returns every user ordered by name.
func (q *Queries) ListUsers(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := q.selectAll(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY name ASC, email ASC`); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// CountUsers is used by the seed command to detect a populated database.
func (q *Queries) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := q.get(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// UpdateUser overwrites the mutable columns of u.
func (q *Queries) UpdateUser(ctx context.Context, u models.User) error {
	res, err := q.exec(ctx, `UPDATE users SET name = ?, email = ?, password_hash = ?, role = ? WHERE id = ?`,
		u.Name, u.Email, u.PasswordHash, u.Role, u.ID)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return requireAffected(res, "user")
}

// DeleteUser unassigns the user everywhere, clears the references other rows
// hold to it and removes the row. Callers run it inside Tx.
func (q *Queries) DeleteUser(ctx context.Context, id string) error {
	stmts := []string{
		`DELETE FROM task_assignees WHERE user_id = ?`,
		`UPDATE tasks SET reporter_id = NULL WHERE reporter_id = ?`,
		`UPDATE comments SET author_id = NULL WHERE author_id = ?`,
		`UPDATE attachments SET uploaded_by_id = NULL WHERE uploaded_by_id = ?`,
		`UPDATE status_events SET actor_id = NULL WHERE actor_id = ?`,
	}
	for _, stmt := range stmts {
		if _, err := q.exec(ctx, stmt, id); err != nil {
			return fmt.Errorf("detach user: %w", err)
		}
	}

	res, err := q.exec(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireAffected(res, "user")
}

// UserRefs resolves ids into compact user summaries keyed by id.
func (q *Queries) UserRefs(ctx context.Context, ids []string) (map[string]models.UserRef, error) {
	ids = dedupe(ids)
	out := make(map[string]models.UserRef, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var refs []models.UserRef
	if err := q.selectIn(ctx, &refs, `SELECT id, name, email FROM users WHERE id IN (?)`, ids); err != nil {
		return nil, fmt.Errorf("resolve users: %w", err)
	}
	for _, r := range refs {
		out[r.ID] = r
	}
	return out, nil
}

// EnsureUsers fails with NotFound unless every id names an existing user.
func (q *Queries) EnsureUsers(ctx context.Context, ids []string) error {
	refs, err := q.UserRefs(ctx, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := refs[id]; !ok {
			return apperr.NotFound("user")
		}
	}
	return nil
}
