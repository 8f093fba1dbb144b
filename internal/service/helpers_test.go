package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"sprintboard/internal/access"
	"sprintboard/internal/auth"
	"sprintboard/internal/models"
	"sprintboard/internal/storage/sqlstore"
)

const testPassword = "Password123!"

// fakeBlobs records calls and can be told to fail.
type fakeBlobs struct {
	mu        sync.Mutex
	puts      []string
	deletes   []string
	putErr    error
	deleteErr error
}

func (f *fakeBlobs) Put(_ context.Context, name string, r io.Reader) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return "", f.putErr
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	f.puts = append(f.puts, name)
	return "https://blobs.test/" + name, nil
}

func (f *fakeBlobs) Delete(_ context.Context, locator string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, locator)
	return f.deleteErr
}

// testHelpers provides a fresh database and fixture builders.
type testHelpers struct {
	t     *testing.T
	ctx   context.Context
	store *sqlstore.Store
	blobs *fakeBlobs
	svc   *Services
	now   time.Time
}

func newTestHelpers(t *testing.T) *testHelpers {
	t.Helper()
	store, err := sqlstore.Open(sqlstore.DriverSQLite, filepath.Join(t.TempDir(), "service.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	h := &testHelpers{
		t:     t,
		ctx:   context.Background(),
		store: store,
		blobs: &fakeBlobs{},
		now:   time.Now().UTC(),
	}
	h.svc = New(Deps{
		Store:     store,
		Blobs:     h.blobs,
		Tokens:    auth.NewTokenManager("test-secret", time.Hour),
		Passwords: auth.NewPasswordManagerWithCost(bcrypt.MinCost),
		Now:       func() time.Time { return h.now },
	})
	return h
}

func (h *testHelpers) user(name, email string, role models.Role) *access.Principal {
	h.t.Helper()
	u, err := h.svc.Users.Register(h.ctx, CreateUserInput{Name: name, Email: email, Password: testPassword, Role: role})
	require.NoError(h.t, err)
	return &access.Principal{ID: u.ID, Role: u.Role}
}

func (h *testHelpers) admin() *access.Principal {
	return h.user("Admin", "admin@example.com", models.RoleAdmin)
}

func (h *testHelpers) member(name string) *access.Principal {
	return h.user(name, name+"@example.com", models.RoleMember)
}

func (h *testHelpers) sprint(admin *access.Principal, name string, start, end time.Time) models.Sprint {
	h.t.Helper()
	sp, err := h.svc.Sprints.Create(h.ctx, admin, CreateSprintInput{
		Name:      name,
		StartDate: start.Format(time.RFC3339),
		EndDate:   end.Format(time.RFC3339),
	})
	require.NoError(h.t, err)
	return sp
}

func (h *testHelpers) task(actor *access.Principal, in CreateTaskInput) models.TaskSummary {
	h.t.Helper()
	if in.Type == "" {
		in.Type = models.TypeGeneralTask
	}
	created, err := h.svc.Tasks.Create(h.ctx, actor, in)
	require.NoError(h.t, err)
	return created
}

func (h *testHelpers) statusLog(taskID string) []models.StatusEvent {
	h.t.Helper()
	log, err := h.store.StatusLog(h.ctx, taskID)
	require.NoError(h.t, err)
	return log
}

func ptr[T any](v T) *T { return &v }

var errBlobDown = errors.New("blob store unavailable")
