package sqlstore

import (
	"context"

	"sprintboard/internal/models"
)

// Summaries attaches assignees, reporter, sprint and child counts to tasks,
// preserving their order.
func (q *Queries) Summaries(ctx context.Context, tasks []models.Task) ([]models.TaskSummary, error) {
	out := make([]models.TaskSummary, 0, len(tasks))
	if len(tasks) == 0 {
		return out, nil
	}

	taskIDs := make([]string, 0, len(tasks))
	var sprintIDs, userIDs []string
	for _, t := range tasks {
		taskIDs = append(taskIDs, t.ID)
		if t.SprintID != nil {
			sprintIDs = append(sprintIDs, *t.SprintID)
		}
		if t.ReporterID != nil {
			userIDs = append(userIDs, *t.ReporterID)
		}
	}

	assignees, err := q.AssigneeIDs(ctx, taskIDs)
	if err != nil {
		return nil, err
	}
	for _, ids := range assignees {
		userIDs = append(userIDs, ids...)
	}
	users, err := q.UserRefs(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	sprints, err := q.SprintRefs(ctx, sprintIDs)
	if err != nil {
		return nil, err
	}
	counts, err := q.ChildCounts(ctx, taskIDs)
	if err != nil {
		return nil, err
	}

	for _, t := range tasks {
		s := models.TaskSummary{
			Task:        t,
			AssigneeIDs: []string{},
			Assignees:   []models.UserRef{},
			Reporter:    refFor(users, t.ReporterID),
			Counts:      counts[t.ID],
		}
		for _, id := range assignees[t.ID] {
			s.AssigneeIDs = append(s.AssigneeIDs, id)
			if ref, ok := users[id]; ok {
				s.Assignees = append(s.Assignees, ref)
			}
		}
		if t.SprintID != nil {
			if ref, ok := sprints[*t.SprintID]; ok {
				s.Sprint = &ref
			}
		}
		out = append(out, s)
	}
	return out, nil
}

// Summary is Summaries for a single task.
func (q *Queries) Summary(ctx context.Context, t models.Task) (models.TaskSummary, error) {
	summaries, err := q.Summaries(ctx, []models.Task{t})
	if err != nil {
		return models.TaskSummary{}, err
	}
	return summaries[0], nil
}

// TaskDetail assembles the full view of a task.
func (q *Queries) TaskDetail(ctx context.Context, id string) (models.TaskDetail, error) {
	t, err := q.GetTask(ctx, id)
	if err != nil {
		return models.TaskDetail{}, err
	}
	summary, err := q.Summary(ctx, t)
	if err != nil {
		return models.TaskDetail{}, err
	}

	children, err := q.ListTasks(ctx, models.TaskFilter{Parent: models.ParentIs, ParentID: id, OldestFirst: true})
	if err != nil {
		return models.TaskDetail{}, err
	}
	subtasks, err := q.Summaries(ctx, children)
	if err != nil {
		return models.TaskDetail{}, err
	}
	comments, err := q.ListComments(ctx, id)
	if err != nil {
		return models.TaskDetail{}, err
	}
	attachments, err := q.ListAttachments(ctx, id)
	if err != nil {
		return models.TaskDetail{}, err
	}
	log, err := q.StatusLog(ctx, id)
	if err != nil {
		return models.TaskDetail{}, err
	}

	return models.TaskDetail{
		TaskSummary: summary,
		Subtasks:    subtasks,
		Comments:    comments,
		Attachments: attachments,
		StatusLog:   log,
	}, nil
}
