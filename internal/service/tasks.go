package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"sprintboard/internal/access"
	"sprintboard/internal/apperr"
	"sprintboard/internal/blob"
	"sprintboard/internal/models"
	"sprintboard/internal/storage/sqlstore"
)

// TaskService owns task creation, partial updates with their status ledger,
// subtree deletion and the task read models.
type TaskService struct {
	store  *sqlstore.Store
	blobs  blob.Store
	logger *slog.Logger
}

// NewTaskService creates a new task service
func NewTaskService(store *sqlstore.Store, blobs blob.Store, logger *slog.Logger) *TaskService {
	return &TaskService{store: store, blobs: blobs, logger: logger}
}

// CreateTaskInput is the create payload.
type CreateTaskInput struct {
	Title       string            `json:"title" binding:"required"`
	Description string            `json:"description"`
	Type        models.TaskType   `json:"type" binding:"required"`
	Priority    models.Priority   `json:"priority"`
	Status      models.TaskStatus `json:"status"`
	StartDate   *string           `json:"startDate"`
	DueDate     *string           `json:"dueDate"`
	SprintID    *string           `json:"sprintId"`
	AssigneeIDs []string          `json:"assigneeIds"`
	ParentID    *string           `json:"parentId"`
}

type createTaskCommand struct {
	task      models.Task
	assignees []string
}

func (in CreateTaskInput) validate() (createTaskCommand, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return createTaskCommand{}, apperr.Validation("title is required")
	}
	if _, ok := models.ValidTaskTypes[in.Type]; !ok {
		return createTaskCommand{}, apperr.Validation("type must be SPRINT_TASK or GENERAL_TASK")
	}

	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedium
	} else if _, ok := models.ValidPriorities[priority]; !ok {
		return createTaskCommand{}, apperr.Validation("invalid priority")
	}
	status := in.Status
	if status == "" {
		status = models.StatusBacklog
	} else if _, ok := models.ValidTaskStatuses[status]; !ok {
		return createTaskCommand{}, apperr.Validation("invalid status")
	}

	start, err := parseOptionalDate("startDate", in.StartDate)
	if err != nil {
		return createTaskCommand{}, err
	}
	due, err := parseOptionalDate("dueDate", in.DueDate)
	if err != nil {
		return createTaskCommand{}, err
	}

	return createTaskCommand{
		task: models.Task{
			Title:       title,
			Description: strings.TrimSpace(in.Description),
			Status:      status,
			Type:        in.Type,
			Priority:    priority,
			StartDate:   start,
			DueDate:     due,
			SprintID:    normalizeID(in.SprintID),
			ParentID:    normalizeID(in.ParentID),
		},
		assignees: in.AssigneeIDs,
	}, nil
}

// Create inserts a task reported by the actor. A parent's type and sprint
// replace whatever the payload carried.
func (s *TaskService) Create(ctx context.Context, actor *access.Principal, in CreateTaskInput) (_ models.TaskSummary, err error) {
	ctx, span := startSpan(ctx, "TaskService.Create")
	defer func() { endSpan(span, err) }()

	p, err := access.RequireAuth(actor)
	if err != nil {
		return models.TaskSummary{}, err
	}
	cmd, err := in.validate()
	if err != nil {
		return models.TaskSummary{}, err
	}
	task := cmd.task
	task.ReporterID = &p.ID

	var created models.TaskSummary
	err = s.store.Tx(ctx, func(q *sqlstore.Queries) error {
		if task.ParentID != nil {
			parent, err := q.GetTask(ctx, *task.ParentID)
			if err != nil {
				if apperr.KindOf(err) == apperr.KindNotFound {
					return apperr.NotFound("parent task")
				}
				return err
			}
			task.Type = parent.Type
			task.SprintID = parent.SprintID
		}
		if task.Type == models.TypeSprintTask && task.SprintID == nil {
			return apperr.Validation("sprintId is required for sprint tasks")
		}
		if task.SprintID != nil {
			if _, err := q.GetSprint(ctx, *task.SprintID); err != nil {
				return err
			}
		}
		if err := q.EnsureUsers(ctx, cmd.assignees); err != nil {
			return err
		}

		row, err := q.CreateTask(ctx, task, cmd.assignees)
		if err != nil {
			return err
		}
		created, err = q.Summary(ctx, row)
		return err
	})
	if err != nil {
		return models.TaskSummary{}, err
	}

	span.SetAttributes(attribute.String("task.id", created.ID))
	s.logger.Info("task created", "task_id", created.ID, "type", created.Type, "actor", p.ID)
	return created, nil
}

// UpdateTaskInput is the partial update payload. Absent fields stay as they
// are; nullable fields sent as null are cleared.
type UpdateTaskInput struct {
	Title       models.Optional[string]            `json:"title"`
	Description models.Optional[string]            `json:"description"`
	Status      models.Optional[models.TaskStatus] `json:"status"`
	Priority    models.Optional[models.Priority]   `json:"priority"`
	StartDate   models.Optional[*string]           `json:"startDate"`
	DueDate     models.Optional[*string]           `json:"dueDate"`
	SprintID    models.Optional[*string]           `json:"sprintId"`
	AssigneeIDs models.Optional[[]string]          `json:"assigneeIds"`
}

type updateTaskCommand struct {
	title       *string
	description *string
	status      *models.TaskStatus
	priority    *models.Priority
	startDate   models.Optional[*time.Time]
	dueDate     models.Optional[*time.Time]
	sprintID    models.Optional[*string]
	assignees   models.Optional[[]string]
}

func (in UpdateTaskInput) validate() (updateTaskCommand, error) {
	var cmd updateTaskCommand

	if in.Title.Set {
		title := strings.TrimSpace(in.Title.V)
		if title == "" {
			return cmd, apperr.Validation("title must not be empty")
		}
		cmd.title = &title
	}
	if in.Description.Set {
		description := strings.TrimSpace(in.Description.V)
		cmd.description = &description
	}
	if in.Status.Set {
		if _, ok := models.ValidTaskStatuses[in.Status.V]; !ok {
			return cmd, apperr.Validation("invalid status")
		}
		status := in.Status.V
		cmd.status = &status
	}
	if in.Priority.Set {
		if _, ok := models.ValidPriorities[in.Priority.V]; !ok {
			return cmd, apperr.Validation("invalid priority")
		}
		priority := in.Priority.V
		cmd.priority = &priority
	}
	if in.StartDate.Set {
		start, err := parseOptionalDate("startDate", in.StartDate.V)
		if err != nil {
			return cmd, err
		}
		cmd.startDate = models.Some(start)
	}
	if in.DueDate.Set {
		due, err := parseOptionalDate("dueDate", in.DueDate.V)
		if err != nil {
			return cmd, err
		}
		cmd.dueDate = models.Some(due)
	}
	if in.SprintID.Set {
		cmd.sprintID = models.Some(normalizeID(in.SprintID.V))
	}
	if in.AssigneeIDs.Set {
		assignees := in.AssigneeIDs.V
		if assignees == nil {
			assignees = []string{}
		}
		cmd.assignees = models.Some(assignees)
	}
	return cmd, nil
}

// Update applies a partial update. The actor must be an admin, the reporter
// or an assignee; changing the sprint additionally requires admin. A status
// change appends one ledger entry in the same transaction as the write.
func (s *TaskService) Update(ctx context.Context, actor *access.Principal, id string, in UpdateTaskInput) (_ models.TaskSummary, err error) {
	ctx, span := startSpan(ctx, "TaskService.Update", attribute.String("task.id", id))
	defer func() { endSpan(span, err) }()

	p, err := access.RequireAuth(actor)
	if err != nil {
		return models.TaskSummary{}, err
	}
	cmd, err := in.validate()
	if err != nil {
		return models.TaskSummary{}, err
	}

	var (
		updated    models.TaskSummary
		transition *models.StatusEvent
	)
	err = s.store.Tx(ctx, func(q *sqlstore.Queries) error {
		current, err := q.GetTask(ctx, id)
		if err != nil {
			return err
		}
		assignees, err := q.AssigneeIDs(ctx, []string{id})
		if err != nil {
			return err
		}
		if !canEdit(p, current, assignees[id]) {
			return apperr.Forbidden("")
		}

		next := current
		if cmd.sprintID.Set && !sameID(cmd.sprintID.V, current.SprintID) {
			if !p.IsAdmin() {
				return apperr.Forbidden("only admins can change sprint assignment")
			}
			if cmd.sprintID.V != nil {
				if _, err := q.GetSprint(ctx, *cmd.sprintID.V); err != nil {
					return err
				}
			}
			next.SprintID = cmd.sprintID.V
		}
		if cmd.title != nil {
			next.Title = *cmd.title
		}
		if cmd.description != nil {
			next.Description = *cmd.description
		}
		if cmd.priority != nil {
			next.Priority = *cmd.priority
		}
		if cmd.startDate.Set {
			next.StartDate = cmd.startDate.V
		}
		if cmd.dueDate.Set {
			next.DueDate = cmd.dueDate.V
		}
		if cmd.status != nil && *cmd.status != current.Status {
			next.Status = *cmd.status
			event, err := q.AppendStatusEvent(ctx, models.StatusEvent{
				TaskID:  id,
				ActorID: &p.ID,
				From:    current.Status,
				To:      next.Status,
			})
			if err != nil {
				return err
			}
			transition = &event
		}

		if cmd.assignees.Set {
			if err := q.EnsureUsers(ctx, cmd.assignees.V); err != nil {
				return err
			}
			if err := q.ReplaceAssignees(ctx, id, cmd.assignees.V); err != nil {
				return err
			}
		}

		row, err := q.UpdateTask(ctx, next)
		if err != nil {
			return err
		}
		updated, err = q.Summary(ctx, row)
		return err
	})
	if err != nil {
		return models.TaskSummary{}, err
	}

	if transition != nil {
		s.logger.Info("task status changed", "task_id", id, "from", transition.From, "to", transition.To, "actor", p.ID)
	}
	return updated, nil
}

// Delete removes the task with its whole subtree and everything they own in
// one transaction, then drops the attachment blobs best-effort.
func (s *TaskService) Delete(ctx context.Context, actor *access.Principal, id string) (err error) {
	ctx, span := startSpan(ctx, "TaskService.Delete", attribute.String("task.id", id))
	defer func() { endSpan(span, err) }()

	p, err := access.RequireAuth(actor)
	if err != nil {
		return err
	}

	var (
		removed  []string
		locators []string
	)
	err = s.store.Tx(ctx, func(q *sqlstore.Queries) error {
		current, err := q.GetTask(ctx, id)
		if err != nil {
			return err
		}
		assignees, err := q.AssigneeIDs(ctx, []string{id})
		if err != nil {
			return err
		}
		if !canEdit(p, current, assignees[id]) {
			return apperr.Forbidden("")
		}

		removed, err = q.Subtree(ctx, id)
		if err != nil {
			return err
		}
		locators, err = q.AttachmentLocators(ctx, removed)
		if err != nil {
			return err
		}
		return q.DeleteTasks(ctx, removed)
	})
	if err != nil {
		return err
	}

	span.SetAttributes(attribute.Int("task.removed", len(removed)))
	s.logger.Info("task deleted", "task_id", id, "removed", len(removed), "actor", p.ID)
	s.dropBlobs(ctx, locators)
	return nil
}

func (s *TaskService) dropBlobs(ctx context.Context, locators []string) {
	if s.blobs == nil {
		return
	}
	for _, locator := range locators {
		if err := s.blobs.Delete(ctx, locator); err != nil {
			s.logger.Warn("blob cleanup failed", "locator", locator, "error", apperr.Degraded("delete blob", err))
		}
	}
}

// List returns the tasks matching f with their references and child counts.
func (s *TaskService) List(ctx context.Context, actor *access.Principal, f models.TaskFilter) (_ []models.TaskSummary, err error) {
	ctx, span := startSpan(ctx, "TaskService.List")
	defer func() { endSpan(span, err) }()

	if _, err := access.RequireAuth(actor); err != nil {
		return nil, err
	}
	if f.Type != nil {
		if _, ok := models.ValidTaskTypes[*f.Type]; !ok {
			return nil, apperr.Validation("invalid type filter")
		}
	}
	if f.Status != nil {
		if _, ok := models.ValidTaskStatuses[*f.Status]; !ok {
			return nil, apperr.Validation("invalid status filter")
		}
	}

	tasks, err := s.store.ListTasks(ctx, f)
	if err != nil {
		return nil, err
	}
	return s.store.Summaries(ctx, tasks)
}

// Get returns the full detail view of a task.
func (s *TaskService) Get(ctx context.Context, actor *access.Principal, id string) (_ models.TaskDetail, err error) {
	ctx, span := startSpan(ctx, "TaskService.Get", attribute.String("task.id", id))
	defer func() { endSpan(span, err) }()

	if _, err := access.RequireAuth(actor); err != nil {
		return models.TaskDetail{}, err
	}
	return s.store.TaskDetail(ctx, id)
}

// StatusLog returns the ledger of a task, most recent first.
func (s *TaskService) StatusLog(ctx context.Context, actor *access.Principal, id string) (_ []models.StatusEvent, err error) {
	ctx, span := startSpan(ctx, "TaskService.StatusLog", attribute.String("task.id", id))
	defer func() { endSpan(span, err) }()

	if _, err := access.RequireAuth(actor); err != nil {
		return nil, err
	}
	if _, err := s.store.GetTask(ctx, id); err != nil {
		return nil, err
	}
	return s.store.StatusLog(ctx, id)
}

func canEdit(p access.Principal, t models.Task, assignees []string) bool {
	if p.IsAdmin() {
		return true
	}
	if t.ReporterID != nil && *t.ReporterID == p.ID {
		return true
	}
	return contains(assignees, p.ID)
}
