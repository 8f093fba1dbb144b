package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprintboard/internal/access"
	"sprintboard/internal/apperr"
	"sprintboard/internal/models"
)

func TestLoginAndAuthenticate(t *testing.T) {
	h := newTestHelpers(t)
	member := h.member("alice")

	res, err := h.svc.Users.Login(h.ctx, " Alice@Example.com ", testPassword)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, member.ID, res.User.ID)

	p, err := h.svc.Users.Authenticate(h.ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, *member, p)

	_, err = h.svc.Users.Login(h.ctx, "alice@example.com", "wrong-password")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	_, err = h.svc.Users.Login(h.ctx, "nobody@example.com", testPassword)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	assert.Equal(t, "invalid email or password", apperr.PublicMessage(err))

	_, err = h.svc.Users.Authenticate(h.ctx, "not-a-token")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestAuthenticateReadsCurrentRole(t *testing.T) {
	h := newTestHelpers(t)
	admin := h.admin()
	member := h.member("alice")

	res, err := h.svc.Users.Login(h.ctx, "alice@example.com", testPassword)
	require.NoError(t, err)

	_, err = h.svc.Users.Update(h.ctx, admin, member.ID, UpdateUserInput{Role: models.Some(models.RoleAdmin)})
	require.NoError(t, err)
	p, err := h.svc.Users.Authenticate(h.ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, p.Role)

	require.NoError(t, h.svc.Users.Delete(h.ctx, admin, member.ID))
	_, err = h.svc.Users.Authenticate(h.ctx, res.Token)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestCreateUser(t *testing.T) {
	h := newTestHelpers(t)
	admin := h.admin()
	member := h.member("alice")

	_, err := h.svc.Users.Create(h.ctx, member, CreateUserInput{Name: "x", Email: "x@example.com", Password: testPassword, Role: models.RoleMember})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	tests := []struct {
		name string
		in   CreateUserInput
	}{
		{"missing name", CreateUserInput{Email: "n@example.com", Password: testPassword, Role: models.RoleMember}},
		{"bad email", CreateUserInput{Name: "n", Email: "nope", Password: testPassword, Role: models.RoleMember}},
		{"short password", CreateUserInput{Name: "n", Email: "n@example.com", Password: "short", Role: models.RoleMember}},
		{"bad role", CreateUserInput{Name: "n", Email: "n@example.com", Password: testPassword, Role: "OWNER"}},
		{"duplicate email", CreateUserInput{Name: "n", Email: "ALICE@example.com", Password: testPassword, Role: models.RoleMember}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.Users.Create(h.ctx, admin, tt.in)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}

	created, err := h.svc.Users.Create(h.ctx, admin, CreateUserInput{Name: "Bob", Email: "Bob@Example.com", Password: testPassword, Role: models.RoleMember})
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", created.Email)
	assert.NotEqual(t, testPassword, created.PasswordHash)

	users, err := h.svc.Users.List(h.ctx, admin)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.ElementsMatch(t, []string{"Admin", "alice", "Bob"}, []string{users[0].Name, users[1].Name, users[2].Name})

	_, err = h.svc.Users.List(h.ctx, member)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestUpdateUser(t *testing.T) {
	h := newTestHelpers(t)
	admin := h.admin()
	member := h.member("alice")

	updated, err := h.svc.Users.Update(h.ctx, admin, member.ID, UpdateUserInput{Name: models.Some("Alice B"), Password: models.Some("NewPassword1")})
	require.NoError(t, err)
	assert.Equal(t, "Alice B", updated.Name)
	assert.Equal(t, models.RoleMember, updated.Role)

	_, err = h.svc.Users.Login(h.ctx, "alice@example.com", "NewPassword1")
	require.NoError(t, err)

	_, err = h.svc.Users.Update(h.ctx, admin, member.ID, UpdateUserInput{Password: models.Some("short")})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = h.svc.Users.Update(h.ctx, admin, "missing", UpdateUserInput{Name: models.Some("x")})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = h.svc.Users.Update(h.ctx, member, member.ID, UpdateUserInput{Role: models.Some(models.RoleAdmin)})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestDeleteUser(t *testing.T) {
	h := newTestHelpers(t)
	admin := h.admin()
	member := h.member("alice")
	other := h.member("bob")

	task := h.task(member, CreateTaskInput{Title: "T", AssigneeIDs: []string{member.ID, other.ID}})
	_, err := h.svc.Collab.AddComment(h.ctx, member, task.ID, "mine")
	require.NoError(t, err)

	assert.ErrorIs(t, h.svc.Users.Delete(h.ctx, admin, admin.ID), apperr.ErrValidation)
	assert.ErrorIs(t, h.svc.Users.Delete(h.ctx, other, member.ID), apperr.ErrForbidden)
	assert.ErrorIs(t, h.svc.Users.Delete(h.ctx, admin, "missing"), apperr.ErrNotFound)

	require.NoError(t, h.svc.Users.Delete(h.ctx, admin, member.ID))

	detail, err := h.svc.Tasks.Get(h.ctx, admin, task.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{other.ID}, detail.AssigneeIDs)
	assert.Nil(t, detail.Reporter)
	require.Len(t, detail.Comments, 1)
	assert.Nil(t, detail.Comments[0].Author)
}

func TestAccount(t *testing.T) {
	h := newTestHelpers(t)
	member := h.member("alice")

	profile, err := h.svc.Users.Profile(h.ctx, member)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", profile.Email)

	_, err = h.svc.Users.Profile(h.ctx, &access.Principal{})
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	err = h.svc.Users.ChangePassword(h.ctx, member, ChangePasswordInput{CurrentPassword: "wrong-one", NewPassword: "Another123"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	err = h.svc.Users.ChangePassword(h.ctx, member, ChangePasswordInput{CurrentPassword: testPassword, NewPassword: "short"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	require.NoError(t, h.svc.Users.ChangePassword(h.ctx, member, ChangePasswordInput{CurrentPassword: testPassword, NewPassword: "Another123"}))
	_, err = h.svc.Users.Login(h.ctx, "alice@example.com", "Another123")
	assert.NoError(t, err)
	_, err = h.svc.Users.Login(h.ctx, "alice@example.com", testPassword)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}
