// Package report derives dashboard figures from task and sprint read models.
// Nothing here touches storage; every function takes the reference time.
package report

import (
	"math"
	"sort"
	"time"

	"sprintboard/internal/models"
)

// DueSoonWindow is how far ahead DueSoon looks.
const DueSoonWindow = 7 * 24 * time.Hour

// MyTasksLimit caps the task list shown on the dashboard.
const MyTasksLimit = 10

// Stats buckets tasks by status. Todo counts TODO and BACKLOG; IN_REVIEW only
// contributes to Total.
type Stats struct {
	Total      int `json:"total"`
	Done       int `json:"done"`
	InProgress int `json:"inProgress"`
	Todo       int `json:"todo"`
	Blocked    int `json:"blocked"`
}

// CompletionRate is Done/Total as a rounded percentage, 0 for no tasks.
func (s Stats) CompletionRate() int {
	return percent(s.Done, s.Total)
}

// Progress of a sprint.
type Progress struct {
	Done    int     `json:"done"`
	Total   int     `json:"total"`
	Ratio   float64 `json:"ratio"`
	Percent int     `json:"percent"`
}

// Dashboard is everything the landing page shows for one user.
type Dashboard struct {
	MyTasks        []models.TaskSummary `json:"myTasks"`
	Stats          Stats                `json:"stats"`
	CompletionRate int                  `json:"completionRate"`
	Overdue        []models.TaskSummary `json:"overdue"`
	DueSoon        []models.TaskSummary `json:"dueSoon"`
	ActiveSprint   *models.Sprint       `json:"activeSprint"`
	SprintProgress *Progress            `json:"sprintProgress"`
	SprintDaysLeft *int                 `json:"sprintDaysLeft"`
}

// TaskStats counts tasks per status bucket.
func TaskStats(tasks []models.TaskSummary) Stats {
	s := Stats{Total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case models.StatusDone:
			s.Done++
		case models.StatusInProgress:
			s.InProgress++
		case models.StatusTodo, models.StatusBacklog:
			s.Todo++
		case models.StatusBlocked:
			s.Blocked++
		}
	}
	return s
}

// Overdue keeps unfinished tasks due strictly before now, earliest first.
func Overdue(tasks []models.TaskSummary, now time.Time) []models.TaskSummary {
	out := filterDue(tasks, func(due time.Time) bool { return due.Before(now) })
	sortByDue(out)
	return out
}

// DueSoon keeps unfinished tasks due within [now, now+DueSoonWindow], earliest first.
func DueSoon(tasks []models.TaskSummary, now time.Time) []models.TaskSummary {
	horizon := now.Add(DueSoonWindow)
	out := filterDue(tasks, func(due time.Time) bool { return !due.Before(now) && !due.After(horizon) })
	sortByDue(out)
	return out
}

// ActiveSprint returns the first sprint whose range contains now. Callers pass
// sprints in their listing order, so among overlapping sprints the one with
// the latest start wins.
func ActiveSprint(sprints []models.Sprint, now time.Time) *models.Sprint {
	for i := range sprints {
		if sprints[i].Contains(now) {
			sp := sprints[i]
			return &sp
		}
	}
	return nil
}

// SprintProgress is done over total among tasks.
func SprintProgress(tasks []models.TaskSummary) Progress {
	p := Progress{Total: len(tasks)}
	for _, t := range tasks {
		if t.Status == models.StatusDone {
			p.Done++
		}
	}
	if p.Total > 0 {
		p.Ratio = float64(p.Done) / float64(p.Total)
	}
	p.Percent = percent(p.Done, p.Total)
	return p
}

// DaysLeft is the number of started days until the sprint ends, never negative.
func DaysLeft(sp models.Sprint, now time.Time) int {
	remaining := sp.EndDate.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Hours() / 24))
}

// Build assembles the dashboard. mine are the user's top-level assigned tasks
// newest first, all every top-level task, sprintTasks the top-level tasks of
// active (which may be nil).
func Build(now time.Time, mine, all []models.TaskSummary, active *models.Sprint, sprintTasks []models.TaskSummary) Dashboard {
	stats := TaskStats(mine)
	d := Dashboard{
		MyTasks:        head(mine, MyTasksLimit),
		Stats:          stats,
		CompletionRate: stats.CompletionRate(),
		Overdue:        Overdue(all, now),
		DueSoon:        DueSoon(all, now),
		ActiveSprint:   active,
	}
	if active != nil {
		progress := SprintProgress(sprintTasks)
		days := DaysLeft(*active, now)
		d.SprintProgress = &progress
		d.SprintDaysLeft = &days
	}
	return d
}

func filterDue(tasks []models.TaskSummary, keep func(due time.Time) bool) []models.TaskSummary {
	out := []models.TaskSummary{}
	for _, t := range tasks {
		if t.DueDate == nil || t.Status == models.StatusDone {
			continue
		}
		if keep(*t.DueDate) {
			out = append(out, t)
		}
	}
	return out
}

func sortByDue(tasks []models.TaskSummary) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].DueDate.Before(*tasks[j].DueDate)
	})
}

func head(tasks []models.TaskSummary, n int) []models.TaskSummary {
	if len(tasks) <= n {
		return append([]models.TaskSummary{}, tasks...)
	}
	return append([]models.TaskSummary{}, tasks[:n]...)
}

func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}
