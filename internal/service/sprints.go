package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"sprintboard/internal/access"
	"sprintboard/internal/apperr"
	"sprintboard/internal/models"
	"sprintboard/internal/storage/sqlstore"
)

// SprintService administers sprints. Mutations are admin only.
type SprintService struct {
	store  *sqlstore.Store
	logger *slog.Logger
}

func NewSprintService(store *sqlstore.Store, logger *slog.Logger) *SprintService {
	return &SprintService{store: store, logger: logger}
}

type CreateSprintInput struct {
	Name      string `json:"name" binding:"required"`
	StartDate string `json:"startDate" binding:"required"`
	EndDate   string `json:"endDate" binding:"required"`
}

type UpdateSprintInput struct {
	Name      models.Optional[string] `json:"name"`
	StartDate models.Optional[string] `json:"startDate"`
	EndDate   models.Optional[string] `json:"endDate"`
}

// List returns every sprint with its task count, latest start first.
func (s *SprintService) List(ctx context.Context, actor *access.Principal) (_ []models.Sprint, err error) {
	ctx, span := startSpan(ctx, "SprintService.List")
	defer func() { endSpan(span, err) }()

	if _, err := access.RequireAuth(actor); err != nil {
		return nil, err
	}
	return s.store.ListSprints(ctx)
}

// Get returns the sprint with its top-level tasks in creation order.
func (s *SprintService) Get(ctx context.Context, actor *access.Principal, id string) (_ models.SprintDetail, err error) {
	ctx, span := startSpan(ctx, "SprintService.Get", attribute.String("sprint.id", id))
	defer func() { endSpan(span, err) }()

	if _, err := access.RequireAuth(actor); err != nil {
		return models.SprintDetail{}, err
	}
	sprint, err := s.store.GetSprint(ctx, id)
	if err != nil {
		return models.SprintDetail{}, err
	}
	tasks, err := s.store.ListTasks(ctx, models.TaskFilter{SprintID: &id, Parent: models.ParentNone, OldestFirst: true})
	if err != nil {
		return models.SprintDetail{}, err
	}
	summaries, err := s.store.Summaries(ctx, tasks)
	if err != nil {
		return models.SprintDetail{}, err
	}
	return models.SprintDetail{Sprint: sprint, Tasks: summaries}, nil
}

// Create adds a sprint. Name and both dates are required.
func (s *SprintService) Create(ctx context.Context, actor *access.Principal, in CreateSprintInput) (_ models.Sprint, err error) {
	ctx, span := startSpan(ctx, "SprintService.Create")
	defer func() { endSpan(span, err) }()

	p, err := access.RequireAdmin(actor)
	if err != nil {
		return models.Sprint{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Sprint{}, apperr.Validation("sprint name is required")
	}
	start, err := parseDate("startDate", in.StartDate)
	if err != nil {
		return models.Sprint{}, err
	}
	end, err := parseDate("endDate", in.EndDate)
	if err != nil {
		return models.Sprint{}, err
	}

	sprint, err := s.store.CreateSprint(ctx, models.Sprint{Name: name, StartDate: start, EndDate: end})
	if err != nil {
		return models.Sprint{}, err
	}
	s.logger.Info("sprint created", "sprint_id", sprint.ID, "actor", p.ID)
	return sprint, nil
}

// Update changes the fields present in the payload.
func (s *SprintService) Update(ctx context.Context, actor *access.Principal, id string, in UpdateSprintInput) (_ models.Sprint, err error) {
	ctx, span := startSpan(ctx, "SprintService.Update", attribute.String("sprint.id", id))
	defer func() { endSpan(span, err) }()

	if _, err := access.RequireAdmin(actor); err != nil {
		return models.Sprint{}, err
	}

	var updated models.Sprint
	err = s.store.Tx(ctx, func(q *sqlstore.Queries) error {
		sprint, err := q.GetSprint(ctx, id)
		if err != nil {
			return err
		}
		if in.Name.Set {
			name := strings.TrimSpace(in.Name.V)
			if name == "" {
				return apperr.Validation("sprint name must not be empty")
			}
			sprint.Name = name
		}
		if in.StartDate.Set {
			if sprint.StartDate, err = parseDate("startDate", in.StartDate.V); err != nil {
				return err
			}
		}
		if in.EndDate.Set {
			if sprint.EndDate, err = parseDate("endDate", in.EndDate.V); err != nil {
				return err
			}
		}
		if err := q.UpdateSprint(ctx, sprint); err != nil {
			return err
		}
		updated, err = q.GetSprint(ctx, id)
		return err
	})
	if err != nil {
		return models.Sprint{}, err
	}
	return updated, nil
}

// Delete refuses while any task still references the sprint.
func (s *SprintService) Delete(ctx context.Context, actor *access.Principal, id string) (err error) {
	ctx, span := startSpan(ctx, "SprintService.Delete", attribute.String("sprint.id", id))
	defer func() { endSpan(span, err) }()

	p, err := access.RequireAdmin(actor)
	if err != nil {
		return err
	}

	err = s.store.Tx(ctx, func(q *sqlstore.Queries) error {
		if _, err := q.GetSprint(ctx, id); err != nil {
			return err
		}
		linked, err := q.CountSprintTasks(ctx, id)
		if err != nil {
			return err
		}
		if linked > 0 {
			return apperr.Precondition(fmt.Sprintf("cannot delete sprint: %d task(s) are still linked to it", linked))
		}
		return q.DeleteSprint(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("sprint deleted", "sprint_id", id, "actor", p.ID)
	return nil
}
