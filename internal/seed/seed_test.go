package seed

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"sprintboard/internal/access"
	"sprintboard/internal/auth"
	"sprintboard/internal/models"
	"sprintboard/internal/service"
	"sprintboard/internal/storage/sqlstore"
)

func newLoader(t *testing.T) (*Loader, *service.Services) {
	t.Helper()
	store, err := sqlstore.Open(sqlstore.DriverSQLite, filepath.Join(t.TempDir(), "seed.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc := service.New(service.Deps{
		Store:     store,
		Tokens:    auth.NewTokenManager("test-secret", time.Hour),
		Passwords: auth.NewPasswordManagerWithCost(bcrypt.MinCost),
	})
	return NewLoader(store, svc, nil), svc
}

func TestDefaultFixture(t *testing.T) {
	ctx := context.Background()
	loader, svc := newLoader(t)

	f, err := Default()
	require.NoError(t, err)
	res, err := loader.Apply(ctx, f, false)
	require.NoError(t, err)
	assert.Equal(t, Result{Users: 3, Sprints: 1, Tasks: 12, Comments: 2}, res)

	login, err := svc.Users.Login(ctx, "pm@sprintboard.local", "Password123!")
	require.NoError(t, err)
	admin := &access.Principal{ID: login.User.ID, Role: login.User.Role}
	assert.Equal(t, models.RoleAdmin, admin.Role)

	sprints, err := svc.Sprints.List(ctx, admin)
	require.NoError(t, err)
	require.Len(t, sprints, 1)
	assert.True(t, sprints[0].Contains(time.Now()))
	assert.Equal(t, 8, sprints[0].TaskCount)

	detail, err := svc.Sprints.Get(ctx, admin, sprints[0].ID)
	require.NoError(t, err)
	require.Len(t, detail.Tasks, 6)
	statuses := map[models.TaskStatus]bool{}
	for _, task := range detail.Tasks {
		statuses[task.Status] = true
	}
	assert.Len(t, statuses, len(models.ValidTaskStatuses))

	general := models.TypeGeneralTask
	generalTasks, err := svc.Tasks.List(ctx, admin, models.TaskFilter{Type: &general, Parent: models.ParentNone})
	require.NoError(t, err)
	assert.Len(t, generalTasks, 4)
}

func TestApplyRefusesPopulatedDatabase(t *testing.T) {
	ctx := context.Background()
	loader, svc := newLoader(t)
	f, err := Default()
	require.NoError(t, err)

	_, err = loader.Apply(ctx, f, false)
	require.NoError(t, err)

	_, err = loader.Apply(ctx, f, false)
	assert.ErrorIs(t, err, ErrNotEmpty)

	res, err := loader.Apply(ctx, f, true)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Users)

	login, err := svc.Users.Login(ctx, "pm@sprintboard.local", "Password123!")
	require.NoError(t, err)
	users, err := svc.Users.List(ctx, &access.Principal{ID: login.User.ID, Role: login.User.Role})
	require.NoError(t, err)
	assert.Len(t, users, 3)
}

func TestApplyRejectsDanglingReferences(t *testing.T) {
	loader, _ := newLoader(t)
	f, err := Parse([]byte(`
password: Password123!
users:
  - {key: a, name: A, email: a@example.com, role: ADMIN}
tasks:
  - {title: Child, parent: missing, reporter: a}
`))
	require.NoError(t, err)

	_, err = loader.Apply(context.Background(), f, false)
	assert.ErrorContains(t, err, `parent "missing"`)
}
