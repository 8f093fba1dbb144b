package sqlstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"sprintboard/internal/models"
)

// AppendStatusEvent records a status change. There is no update or single-row
// delete for events; they only go away with their task.
func (q *Queries) AppendStatusEvent(ctx context.Context, e models.StatusEvent) (models.StatusEvent, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = now()
	}
	_, err := q.exec(ctx, `INSERT INTO status_events(id, task_id, actor_id, from_status, to_status, at) VALUES(?, ?, ?, ?, ?, ?)`,
		e.ID, e.TaskID, e.ActorID, e.From, e.To, e.At)
	if err != nil {
		return models.StatusEvent{}, fmt.Errorf("insert status event: %w", err)
	}
	return e, nil
}

// StatusLog returns the events of a task, most recent first.
func (q *Queries) StatusLog(ctx context.Context, taskID string) ([]models.StatusEvent, error) {
	events := []models.StatusEvent{}
	err := q.selectAll(ctx, &events, `SELECT id, task_id, actor_id, from_status, to_status, at
        FROM status_events WHERE task_id = ? ORDER BY at DESC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list status events: %w", err)
	}

	refs, err := q.UserRefs(ctx, actorIDs(events))
	if err != nil {
		return nil, err
	}
	for i := range events {
		events[i].Actor = refFor(refs, events[i].ActorID)
	}
	return events, nil
}

func actorIDs(events []models.StatusEvent) []string {
	var ids []string
	for _, e := range events {
		if e.ActorID != nil {
			ids = append(ids, *e.ActorID)
		}
	}
	return ids
}

func refFor(refs map[string]models.UserRef, id *string) *models.UserRef {
	if id == nil {
		return nil
	}
	ref, ok := refs[*id]
	if !ok {
		return nil
	}
	return &ref
}
