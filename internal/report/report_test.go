package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprintboard/internal/models"
)

var now = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func task(id string, status models.TaskStatus, due *time.Time) models.TaskSummary {
	return models.TaskSummary{Task: models.Task{ID: id, Status: status, DueDate: due}}
}

func at(d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func ids(tasks []models.TaskSummary) []string {
	out := []string{}
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestTaskStats(t *testing.T) {
	tasks := []models.TaskSummary{
		task("1", models.StatusDone, nil),
		task("2", models.StatusDone, nil),
		task("3", models.StatusInProgress, nil),
		task("4", models.StatusTodo, nil),
		task("5", models.StatusBacklog, nil),
		task("6", models.StatusBlocked, nil),
		task("7", models.StatusInReview, nil),
	}
	stats := TaskStats(tasks)
	assert.Equal(t, Stats{Total: 7, Done: 2, InProgress: 1, Todo: 2, Blocked: 1}, stats)
	assert.Equal(t, 29, stats.CompletionRate())
	assert.Equal(t, 0, Stats{}.CompletionRate())
}

func TestOverdueAndDueSoon(t *testing.T) {
	tasks := []models.TaskSummary{
		task("late-2", models.StatusTodo, at(-time.Hour)),
		task("late-1", models.StatusBlocked, at(-48*time.Hour)),
		task("late-done", models.StatusDone, at(-time.Hour)),
		task("no-due", models.StatusTodo, nil),
		task("now", models.StatusTodo, at(0)),
		task("soon-3", models.StatusInReview, at(7*24*time.Hour)),
		task("soon-2", models.StatusTodo, at(72*time.Hour)),
		task("soon-done", models.StatusDone, at(time.Hour)),
		task("later", models.StatusTodo, at(7*24*time.Hour+time.Second)),
	}

	assert.Equal(t, []string{"late-1", "late-2"}, ids(Overdue(tasks, now)))
	assert.Equal(t, []string{"now", "soon-2", "soon-3"}, ids(DueSoon(tasks, now)))
	assert.Empty(t, Overdue(nil, now))
}

func TestActiveSprint(t *testing.T) {
	sprints := []models.Sprint{
		{ID: "future", StartDate: now.AddDate(0, 0, 1), EndDate: now.AddDate(0, 0, 14)},
		{ID: "late-start", StartDate: now.AddDate(0, 0, -2), EndDate: now.AddDate(0, 0, 5)},
		{ID: "early-start", StartDate: now.AddDate(0, 0, -7), EndDate: now.AddDate(0, 0, 14)},
	}
	active := ActiveSprint(sprints, now)
	require.NotNil(t, active)
	assert.Equal(t, "late-start", active.ID, "first match in list order")

	assert.Nil(t, ActiveSprint(sprints[:1], now))

	edge := []models.Sprint{{ID: "ends-now", StartDate: now.AddDate(0, 0, -1), EndDate: now}}
	require.NotNil(t, ActiveSprint(edge, now))
}

func TestSprintProgress(t *testing.T) {
	assert.Equal(t, Progress{}, SprintProgress(nil))

	p := SprintProgress([]models.TaskSummary{
		task("1", models.StatusDone, nil),
		task("2", models.StatusTodo, nil),
		task("3", models.StatusInProgress, nil),
	})
	assert.Equal(t, 1, p.Done)
	assert.Equal(t, 3, p.Total)
	assert.InDelta(t, 1.0/3.0, p.Ratio, 1e-9)
	assert.Equal(t, 33, p.Percent)
}

func TestDaysLeft(t *testing.T) {
	assert.Equal(t, 14, DaysLeft(models.Sprint{EndDate: now.AddDate(0, 0, 14)}, now))
	assert.Equal(t, 1, DaysLeft(models.Sprint{EndDate: now.Add(time.Hour)}, now))
	assert.Equal(t, 0, DaysLeft(models.Sprint{EndDate: now.Add(-time.Hour)}, now))
}

func TestBuild(t *testing.T) {
	var mine []models.TaskSummary
	for i := 0; i < 12; i++ {
		mine = append(mine, task(string(rune('a'+i)), models.StatusTodo, nil))
	}
	mine[0].Status = models.StatusDone

	all := append([]models.TaskSummary{task("late", models.StatusTodo, at(-time.Hour))}, mine...)
	sprint := &models.Sprint{ID: "s", StartDate: now.AddDate(0, 0, -7), EndDate: now.AddDate(0, 0, 14)}

	d := Build(now, mine, all, sprint, mine[:4])
	assert.Len(t, d.MyTasks, MyTasksLimit)
	assert.Equal(t, 12, d.Stats.Total)
	assert.Equal(t, 8, d.CompletionRate)
	assert.Equal(t, []string{"late"}, ids(d.Overdue))
	assert.Empty(t, d.DueSoon)
	require.NotNil(t, d.SprintProgress)
	assert.Equal(t, 25, d.SprintProgress.Percent)
	require.NotNil(t, d.SprintDaysLeft)
	assert.Equal(t, 14, *d.SprintDaysLeft)

	empty := Build(now, nil, nil, nil, nil)
	assert.Nil(t, empty.ActiveSprint)
	assert.Nil(t, empty.SprintProgress)
	assert.NotNil(t, empty.MyTasks)
}
