package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprintboard/internal/apperr"
	"sprintboard/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func mustUser(t *testing.T, s *Store, name, email string, role models.Role) models.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), models.User{Name: name, Email: email, PasswordHash: "x", Role: role})
	require.NoError(t, err)
	return u
}

func mustTask(t *testing.T, s *Store, task models.Task, assignees ...string) models.Task {
	t.Helper()
	if task.Type == "" {
		task.Type = models.TypeGeneralTask
	}
	if task.Status == "" {
		task.Status = models.StatusBacklog
	}
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}
	created, err := s.CreateTask(context.Background(), task, assignees)
	require.NoError(t, err)
	return created
}

func TestOpenMigratesIdempotently(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Ping(context.Background()))
	assert.Equal(t, DriverSQLite, s.Driver())

	_, err := Open("mysql", "whatever", nil)
	assert.Error(t, err)
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	zoe := mustUser(t, s, "Zoe", "zoe@example.com", models.RoleMember)
	adam := mustUser(t, s, "Adam", "adam@example.com", models.RoleAdmin)

	got, err := s.GetUserByEmail(ctx, "zoe@example.com")
	require.NoError(t, err)
	assert.Equal(t, zoe.ID, got.ID)

	_, err = s.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, adam.ID, users[0].ID)

	_, err = s.CreateUser(ctx, models.User{Name: "Dup", Email: "zoe@example.com", PasswordHash: "x", Role: models.RoleMember})
	assert.Error(t, err)

	assert.NoError(t, s.EnsureUsers(ctx, []string{zoe.ID, adam.ID}))
	assert.ErrorIs(t, s.EnsureUsers(ctx, []string{zoe.ID, "ghost"}), apperr.ErrNotFound)
}

func TestDeleteUserDetachesReferences(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	admin := mustUser(t, s, "Admin", "admin@example.com", models.RoleAdmin)
	member := mustUser(t, s, "Member", "member@example.com", models.RoleMember)

	task := mustTask(t, s, models.Task{Title: "Owned", ReporterID: &member.ID}, member.ID, admin.ID)
	_, err := s.CreateComment(ctx, models.Comment{TaskID: task.ID, AuthorID: &member.ID, Body: "hi"})
	require.NoError(t, err)
	_, err = s.AppendStatusEvent(ctx, models.StatusEvent{TaskID: task.ID, ActorID: &member.ID, From: models.StatusBacklog, To: models.StatusTodo})
	require.NoError(t, err)

	require.NoError(t, s.Tx(ctx, func(q *Queries) error { return q.DeleteUser(ctx, member.ID) }))

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ReporterID)

	assignees, err := s.AssigneeIDs(ctx, []string{task.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{admin.ID}, assignees[task.ID])

	comments, err := s.ListComments(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Nil(t, comments[0].AuthorID)

	log, err := s.StatusLog(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Nil(t, log[0].Actor)

	assert.ErrorIs(t, s.DeleteUser(ctx, member.ID), apperr.ErrNotFound)
}

func TestSprintsOrderAndCounts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	older, err := s.CreateSprint(ctx, models.Sprint{Name: "Sprint 1", StartDate: base, EndDate: base.AddDate(0, 0, 14)})
	require.NoError(t, err)
	newer, err := s.CreateSprint(ctx, models.Sprint{Name: "Sprint 2", StartDate: base.AddDate(0, 0, 14), EndDate: base.AddDate(0, 0, 28)})
	require.NoError(t, err)

	mustTask(t, s, models.Task{Title: "a", Type: models.TypeSprintTask, SprintID: &older.ID})
	mustTask(t, s, models.Task{Title: "b", Type: models.TypeSprintTask, SprintID: &older.ID})

	sprints, err := s.ListSprints(ctx)
	require.NoError(t, err)
	require.Len(t, sprints, 2)
	assert.Equal(t, newer.ID, sprints[0].ID)
	assert.Equal(t, 0, sprints[0].TaskCount)
	assert.Equal(t, 2, sprints[1].TaskCount)
	assert.True(t, sprints[1].StartDate.Equal(base))

	n, err := s.CountSprintTasks(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.DeleteSprint(ctx, newer.ID))
	_, err = s.GetSprint(ctx, newer.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListTasksFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	alice := mustUser(t, s, "Alice", "alice@example.com", models.RoleMember)
	sprint, err := s.CreateSprint(ctx, models.Sprint{Name: "S", StartDate: time.Now(), EndDate: time.Now().AddDate(0, 0, 7)})
	require.NoError(t, err)

	login := mustTask(t, s, models.Task{Title: "Build LOGIN page", Type: models.TypeSprintTask, SprintID: &sprint.ID, Status: models.StatusInProgress}, alice.ID)
	mustTask(t, s, models.Task{Title: "Write docs"})
	mustTask(t, s, models.Task{Title: "100% coverage"})
	sub := mustTask(t, s, models.Task{Title: "login tests", ParentID: &login.ID})
	mustTask(t, s, models.Task{Title: "École planning", ParentID: &login.ID})
	mustTask(t, s, models.Task{Title: "ÜBER task", ParentID: &login.ID})

	sprintType := models.TypeSprintTask
	inProgress := models.StatusInProgress

	tests := []struct {
		name   string
		filter models.TaskFilter
		want   int
	}{
		{"all", models.TaskFilter{}, 6},
		{"type", models.TaskFilter{Type: &sprintType}, 1},
		{"sprint", models.TaskFilter{SprintID: &sprint.ID}, 1},
		{"assignee", models.TaskFilter{AssigneeID: &alice.ID}, 1},
		{"status", models.TaskFilter{Status: &inProgress}, 1},
		{"title case-insensitive", models.TaskFilter{Query: "login"}, 2},
		{"non-ascii lower term", models.TaskFilter{Query: "école"}, 1},
		{"non-ascii upper term", models.TaskFilter{Query: "ÉCOLE"}, 1},
		{"non-ascii capital in title", models.TaskFilter{Query: "über"}, 1},
		{"percent is literal", models.TaskFilter{Query: "100%"}, 1},
		{"top level", models.TaskFilter{Parent: models.ParentNone}, 3},
		{"children", models.TaskFilter{Parent: models.ParentIs, ParentID: login.ID}, 3},
		{"conjunctive", models.TaskFilter{Query: "login", Parent: models.ParentNone}, 1},
		{"limit", models.TaskFilter{Limit: 2}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks, err := s.ListTasks(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, tasks, tt.want)
		})
	}

	all, err := s.ListTasks(ctx, models.TaskFilter{Query: "tests"})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, sub.ID, all[0].ID)

	all, err = s.ListTasks(ctx, models.TaskFilter{})
	require.NoError(t, err)
	assert.Equal(t, login.ID, all[len(all)-1].ID, "newest first")
}

func TestSummariesResolveReferences(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	alice := mustUser(t, s, "Alice", "alice@example.com", models.RoleMember)
	bob := mustUser(t, s, "Bob", "bob@example.com", models.RoleMember)
	sprint, err := s.CreateSprint(ctx, models.Sprint{Name: "S", StartDate: time.Now(), EndDate: time.Now()})
	require.NoError(t, err)

	parent := mustTask(t, s, models.Task{Title: "Parent", Type: models.TypeSprintTask, SprintID: &sprint.ID, ReporterID: &bob.ID}, alice.ID, bob.ID)
	mustTask(t, s, models.Task{Title: "Child", ParentID: &parent.ID})
	_, err = s.CreateComment(ctx, models.Comment{TaskID: parent.ID, AuthorID: &alice.ID, Body: "first"})
	require.NoError(t, err)
	_, err = s.CreateAttachment(ctx, models.Attachment{TaskID: parent.ID, OriginalName: "a.pdf", StoredName: "/blobs/a.pdf", MimeType: "application/pdf", SizeBytes: 10, UploadedByID: &bob.ID})
	require.NoError(t, err)

	summary, err := s.Summary(ctx, parent)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{alice.ID, bob.ID}, summary.AssigneeIDs)
	assert.Len(t, summary.Assignees, 2)
	require.NotNil(t, summary.Reporter)
	assert.Equal(t, "Bob", summary.Reporter.Name)
	require.NotNil(t, summary.Sprint)
	assert.Equal(t, "S", summary.Sprint.Name)
	assert.Equal(t, models.TaskCounts{Subtasks: 1, Comments: 1, Attachments: 1}, summary.Counts)

	detail, err := s.TaskDetail(ctx, parent.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Subtasks, 1)
	require.Len(t, detail.Comments, 1)
	assert.Equal(t, "Alice", detail.Comments[0].Author.Name)
	require.Len(t, detail.Attachments, 1)
	assert.Equal(t, "Bob", detail.Attachments[0].UploadedBy.Name)
}

func TestSubtreeDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := mustUser(t, s, "U", "u@example.com", models.RoleMember)

	root := mustTask(t, s, models.Task{Title: "root"}, u.ID)
	child := mustTask(t, s, models.Task{Title: "child", ParentID: &root.ID}, u.ID)
	grandchild := mustTask(t, s, models.Task{Title: "grandchild", ParentID: &child.ID})
	other := mustTask(t, s, models.Task{Title: "other"})

	for _, id := range []string{root.ID, child.ID, grandchild.ID} {
		_, err := s.CreateComment(ctx, models.Comment{TaskID: id, AuthorID: &u.ID, Body: "c"})
		require.NoError(t, err)
		_, err = s.AppendStatusEvent(ctx, models.StatusEvent{TaskID: id, From: models.StatusBacklog, To: models.StatusTodo})
		require.NoError(t, err)
		_, err = s.CreateAttachment(ctx, models.Attachment{TaskID: id, OriginalName: "f.txt", StoredName: "/blobs/" + id, MimeType: "text/plain", SizeBytes: 1})
		require.NoError(t, err)
	}

	ids, err := s.Subtree(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{root.ID, child.ID, grandchild.ID}, ids)

	locators, err := s.AttachmentLocators(ctx, ids)
	require.NoError(t, err)
	assert.Len(t, locators, 3)

	require.NoError(t, s.Tx(ctx, func(q *Queries) error { return q.DeleteTasks(ctx, ids) }))

	remaining, err := s.ListTasks(ctx, models.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, other.ID, remaining[0].ID)

	for _, table := range []string{"comments", "status_events", "attachments", "task_assignees"} {
		var n int
		require.NoError(t, s.get(ctx, &n, "SELECT COUNT(*) FROM "+table))
		assert.Zero(t, n, table)
	}
}

func TestTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	boom := errors.New("boom")

	err := s.Tx(ctx, func(q *Queries) error {
		if _, err := q.CreateSprint(ctx, models.Sprint{Name: "gone", StartDate: time.Now(), EndDate: time.Now()}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	sprints, err := s.ListSprints(ctx)
	require.NoError(t, err)
	assert.Empty(t, sprints)
}

func TestStatusLogNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	task := mustTask(t, s, models.Task{Title: "t"})
	base := time.Now().UTC()

	_, err := s.AppendStatusEvent(ctx, models.StatusEvent{TaskID: task.ID, From: models.StatusBacklog, To: models.StatusTodo, At: base})
	require.NoError(t, err)
	_, err = s.AppendStatusEvent(ctx, models.StatusEvent{TaskID: task.ID, From: models.StatusTodo, To: models.StatusDone, At: base.Add(time.Minute)})
	require.NoError(t, err)

	log, err := s.StatusLog(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, models.StatusDone, log[0].To)
	assert.Equal(t, models.StatusTodo, log[1].To)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%\_off\\`, escapeLike(`50%_off\`))
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := mustUser(t, s, "Ann", "ann@example.com", models.RoleMember)
	parent := mustTask(t, s, models.Task{Title: "parent", ReporterID: &u.ID}, u.ID)
	mustTask(t, s, models.Task{Title: "child", ParentID: &parent.ID})

	require.NoError(t, s.Reset(ctx))

	n, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	tasks, err := s.ListTasks(ctx, models.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}
