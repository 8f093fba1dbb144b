package service

import (
	"context"
	"time"

	"sprintboard/internal/access"
	"sprintboard/internal/models"
	"sprintboard/internal/report"
	"sprintboard/internal/storage/sqlstore"
)

// DashboardService gathers the read models the dashboard is computed from.
type DashboardService struct {
	store *sqlstore.Store
	now   func() time.Time
}

func NewDashboardService(store *sqlstore.Store, now func() time.Time) *DashboardService {
	if now == nil {
		now = time.Now
	}
	return &DashboardService{store: store, now: now}
}

// Get computes the caller's dashboard as of now.
func (s *DashboardService) Get(ctx context.Context, actor *access.Principal) (_ report.Dashboard, err error) {
	ctx, span := startSpan(ctx, "DashboardService.Get")
	defer func() { endSpan(span, err) }()

	p, err := access.RequireAuth(actor)
	if err != nil {
		return report.Dashboard{}, err
	}
	now := s.now().UTC()

	mine, err := s.summaries(ctx, models.TaskFilter{AssigneeID: &p.ID, Parent: models.ParentNone})
	if err != nil {
		return report.Dashboard{}, err
	}
	all, err := s.summaries(ctx, models.TaskFilter{Parent: models.ParentNone})
	if err != nil {
		return report.Dashboard{}, err
	}
	sprints, err := s.store.ListSprints(ctx)
	if err != nil {
		return report.Dashboard{}, err
	}

	active := report.ActiveSprint(sprints, now)
	var sprintTasks []models.TaskSummary
	if active != nil {
		sprintTasks, err = s.summaries(ctx, models.TaskFilter{SprintID: &active.ID, Parent: models.ParentNone})
		if err != nil {
			return report.Dashboard{}, err
		}
	}
	return report.Build(now, mine, all, active, sprintTasks), nil
}

func (s *DashboardService) summaries(ctx context.Context, f models.TaskFilter) ([]models.TaskSummary, error) {
	tasks, err := s.store.ListTasks(ctx, f)
	if err != nil {
		return nil, err
	}
	return s.store.Summaries(ctx, tasks)
}
