package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"sprintboard/internal/models"
)

const taskColumns = `id, title, description, status, type, priority, start_date, due_date,
    sprint_id, reporter_id, parent_id, created_at, updated_at`

// CreateTask inserts t together with its assignee set.
func (q *Queries) CreateTask(ctx context.Context, t models.Task, assigneeIDs []string) (models.Task, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	ts := now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = ts
	}
	t.UpdatedAt = t.CreatedAt

	_, err := q.exec(ctx, `INSERT INTO tasks(id, title, description, status, type, priority, start_date, due_date,
            sprint_id, reporter_id, parent_id, created_at, updated_at)
        VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Description, t.Status, t.Type, t.Priority, utcPtr(t.StartDate), utcPtr(t.DueDate),
		t.SprintID, t.ReporterID, t.ParentID, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return models.Task{}, fmt.Errorf("insert task: %w", err)
	}
	if err := q.ReplaceAssignees(ctx, t.ID, assigneeIDs); err != nil {
		return models.Task{}, err
	}
	return q.GetTask(ctx, t.ID)
}

// GetTask retrieves a task row by id.
func (q *Queries) GetTask(ctx context.Context, id string) (models.Task, error) {
	var t models.Task
	if err := q.get(ctx, &t, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id); err != nil {
		return models.Task{}, notFound(err, "task", "get task")
	}
	return t, nil
}

// ListTasks returns the rows matching f, newest first unless f.OldestFirst.
func (q *Queries) ListTasks(ctx context.Context, f models.TaskFilter) ([]models.Task, error) {
	var (
		where []string
		args  []any
	)
	if f.Type != nil {
		where = append(where, "type = ?")
		args = append(args, *f.Type)
	}
	if f.SprintID != nil {
		where = append(where, "sprint_id = ?")
		args = append(args, *f.SprintID)
	}
	if f.Status != nil {
		where = append(where, "status = ?")
		args = append(args, *f.Status)
	}
	if f.AssigneeID != nil {
		where = append(where, "id IN (SELECT task_id FROM task_assignees WHERE user_id = ?)")
		args = append(args, *f.AssigneeID)
	}
	if term := strings.TrimSpace(f.Query); term != "" {
		where = append(where, q.lower("title")+` LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(term))+"%")
	}
	switch f.Parent {
	case models.ParentNone:
		where = append(where, "parent_id IS NULL")
	case models.ParentIs:
		where = append(where, "parent_id = ?")
		args = append(args, f.ParentID)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if f.OldestFirst {
		query += " ORDER BY created_at ASC"
	} else {
		query += " ORDER BY created_at DESC"
	}
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	tasks := []models.Task{}
	if err := q.selectAll(ctx, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// UpdateTask overwrites the mutable columns of t and bumps updated_at.
func (q *Queries) UpdateTask(ctx context.Context, t models.Task) (models.Task, error) {
	res, err := q.exec(ctx, `UPDATE tasks SET title = ?, description = ?, status = ?, type = ?, priority = ?,
            start_date = ?, due_date = ?, sprint_id = ?, updated_at = ?
        WHERE id = ?`,
		t.Title, t.Description, t.Status, t.Type, t.Priority, utcPtr(t.StartDate), utcPtr(t.DueDate),
		t.SprintID, now(), t.ID)
	if err != nil {
		return models.Task{}, fmt.Errorf("update task: %w", err)
	}
	if err := requireAffected(res, "task"); err != nil {
		return models.Task{}, err
	}
	return q.GetTask(ctx, t.ID)
}

// ReplaceAssignees makes userIDs the complete assignee set of the task.
func (q *Queries) ReplaceAssignees(ctx context.Context, taskID string, userIDs []string) error {
	if _, err := q.exec(ctx, `DELETE FROM task_assignees WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("clear assignees: %w", err)
	}
	for _, userID := range dedupe(userIDs) {
		if _, err := q.exec(ctx, `INSERT INTO task_assignees(task_id, user_id) VALUES(?, ?)`, taskID, userID); err != nil {
			return fmt.Errorf("assign user: %w", err)
		}
	}
	return nil
}

// AssigneeIDs returns the assignee set of every task in taskIDs.
func (q *Queries) AssigneeIDs(ctx context.Context, taskIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(taskIDs))
	taskIDs = dedupe(taskIDs)
	if len(taskIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		TaskID string `db:"task_id"`
		UserID string `db:"user_id"`
	}
	if err := q.selectIn(ctx, &rows, `SELECT task_id, user_id FROM task_assignees WHERE task_id IN (?) ORDER BY user_id`, taskIDs); err != nil {
		return nil, fmt.Errorf("list assignees: %w", err)
	}
	for _, r := range rows {
		out[r.TaskID] = append(out[r.TaskID], r.UserID)
	}
	return out, nil
}

// ChildCounts counts subtasks, comments and attachments per task.
func (q *Queries) ChildCounts(ctx context.Context, taskIDs []string) (map[string]models.TaskCounts, error) {
	out := make(map[string]models.TaskCounts, len(taskIDs))
	taskIDs = dedupe(taskIDs)
	if len(taskIDs) == 0 {
		return out, nil
	}

	type countRow struct {
		TaskID string `db:"task_id"`
		N      int    `db:"n"`
	}
	count := func(query string, apply func(c *models.TaskCounts, n int)) error {
		var rows []countRow
		if err := q.selectIn(ctx, &rows, query, taskIDs); err != nil {
			return err
		}
		for _, r := range rows {
			c := out[r.TaskID]
			apply(&c, r.N)
			out[r.TaskID] = c
		}
		return nil
	}

	if err := count(`SELECT parent_id AS task_id, COUNT(*) AS n FROM tasks WHERE parent_id IN (?) GROUP BY parent_id`,
		func(c *models.TaskCounts, n int) { c.Subtasks = n }); err != nil {
		return nil, fmt.Errorf("count subtasks: %w", err)
	}
	if err := count(`SELECT task_id, COUNT(*) AS n FROM comments WHERE task_id IN (?) GROUP BY task_id`,
		func(c *models.TaskCounts, n int) { c.Comments = n }); err != nil {
		return nil, fmt.Errorf("count comments: %w", err)
	}
	if err := count(`SELECT task_id, COUNT(*) AS n FROM attachments WHERE task_id IN (?) GROUP BY task_id`,
		func(c *models.TaskCounts, n int) { c.Attachments = n }); err != nil {
		return nil, fmt.Errorf("count attachments: %w", err)
	}
	return out, nil
}

// Subtree returns id followed by all of its descendants, parents before children.
func (q *Queries) Subtree(ctx context.Context, id string) ([]string, error) {
	ids := []string{id}
	seen := map[string]struct{}{id: {}}
	frontier := []string{id}
	for len(frontier) > 0 {
		var children []string
		if err := q.selectIn(ctx, &children, `SELECT id FROM tasks WHERE parent_id IN (?) ORDER BY created_at`, frontier); err != nil {
			return nil, fmt.Errorf("list descendants: %w", err)
		}
		frontier = nil
		for _, child := range children {
			if _, ok := seen[child]; ok {
				continue
			}
			seen[child] = struct{}{}
			ids = append(ids, child)
			frontier = append(frontier, child)
		}
	}
	return ids, nil
}

// DeleteTasks removes the tasks in ids and everything they own. ids must list
// parents before children, as Subtree does; rows go deepest first.
func (q *Queries) DeleteTasks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	owned := []struct{ table, query string }{
		{"assignees", `DELETE FROM task_assignees WHERE task_id IN (?)`},
		{"status events", `DELETE FROM status_events WHERE task_id IN (?)`},
		{"comments", `DELETE FROM comments WHERE task_id IN (?)`},
		{"attachments", `DELETE FROM attachments WHERE task_id IN (?)`},
	}
	for _, o := range owned {
		if _, err := q.execIn(ctx, o.query, ids); err != nil {
			return fmt.Errorf("delete task %s: %w", o.table, err)
		}
	}

	for i := len(ids) - 1; i >= 0; i-- {
		res, err := q.exec(ctx, `DELETE FROM tasks WHERE id = ?`, ids[i])
		if err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		if err := requireAffected(res, "task"); err != nil {
			return err
		}
	}
	return nil
}

// AttachmentLocators lists the blob locators held by the given tasks.
func (q *Queries) AttachmentLocators(ctx context.Context, taskIDs []string) ([]string, error) {
	if len(taskIDs) == 0 {
		return nil, nil
	}
	var locators []string
	if err := q.selectIn(ctx, &locators, `SELECT stored_name FROM attachments WHERE task_id IN (?)`, taskIDs); err != nil {
		return nil, fmt.Errorf("list attachment locators: %w", err)
	}
	return locators, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
