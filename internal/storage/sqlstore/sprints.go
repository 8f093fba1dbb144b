package sqlstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"sprintboard/internal/models"
)

const sprintSelect = `SELECT s.id, s.name, s.start_date, s.end_date, s.created_at,
        (SELECT COUNT(*) FROM tasks t WHERE t.sprint_id = s.id) AS task_count
    FROM sprints s`

// CreateSprint persists a new sprint.
func (q *Queries) CreateSprint(ctx context.Context, sp models.Sprint) (models.Sprint, error) {
	if sp.ID == "" {
		sp.ID = uuid.NewString()
	}
	if sp.CreatedAt.IsZero() {
		sp.CreatedAt = now()
	}
	_, err := q.exec(ctx, `INSERT INTO sprints(id, name, start_date, end_date, created_at) VALUES(?, ?, ?, ?, ?)`,
		sp.ID, sp.Name, sp.StartDate.UTC(), sp.EndDate.UTC(), sp.CreatedAt)
	if err != nil {
		return models.Sprint{}, fmt.Errorf("insert sprint: %w", err)
	}
	return q.GetSprint(ctx, sp.ID)
}

// GetSprint fetches a sprint with its task count.
func (q *Queries) GetSprint(ctx context.Context, id string) (models.Sprint, error) {
	var sp models.Sprint
	if err := q.get(ctx, &sp, sprintSelect+` WHERE s.id = ?`, id); err != nil {
		return models.Sprint{}, notFound(err, "sprint", "get sprint")
	}
	return sp, nil
}

// ListSprints returns every sprint, latest start first.
func (q *Queries) ListSprints(ctx context.Context) ([]models.Sprint, error) {
	sprints := []models.Sprint{}
	if err := q.selectAll(ctx, &sprints, sprintSelect+` ORDER BY s.start_date DESC, s.created_at DESC`); err != nil {
		return nil, fmt.Errorf("list sprints: %w", err)
	}
	return sprints, nil
}

// UpdateSprint overwrites name and dates.
func (q *Queries) UpdateSprint(ctx context.Context, sp models.Sprint) error {
	res, err := q.exec(ctx, `UPDATE sprints SET name = ?, start_date = ?, end_date = ? WHERE id = ?`,
		sp.Name, sp.StartDate.UTC(), sp.EndDate.UTC(), sp.ID)
	if err != nil {
		return fmt.Errorf("update sprint: %w", err)
	}
	return requireAffected(res, "sprint")
}

// CountSprintTasks counts the tasks still referencing the sprint.
func (q *Queries) CountSprintTasks(ctx context.Context, id string) (int, error) {
	var n int
	if err := q.get(ctx, &n, `SELECT COUNT(*) FROM tasks WHERE sprint_id = ?`, id); err != nil {
		return 0, fmt.Errorf("count sprint tasks: %w", err)
	}
	return n, nil
}

// DeleteSprint removes the row only; callers check CountSprintTasks first.
func (q *Queries) DeleteSprint(ctx context.Context, id string) error {
	res, err := q.exec(ctx, `DELETE FROM sprints WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete sprint: %w", err)
	}
	return requireAffected(res, "sprint")
}

// SprintRefs resolves ids into compact sprint summaries keyed by id.
func (q *Queries) SprintRefs(ctx context.Context, ids []string) (map[string]models.SprintRef, error) {
	ids = dedupe(ids)
	out := make(map[string]models.SprintRef, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var refs []models.SprintRef
	if err := q.selectIn(ctx, &refs, `SELECT id, name FROM sprints WHERE id IN (?)`, ids); err != nil {
		return nil, fmt.Errorf("resolve sprints: %w", err)
	}
	for _, r := range refs {
		out[r.ID] = r
	}
	return out, nil
}
