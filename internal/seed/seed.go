// Package seed loads a YAML fixture of users, sprints, tasks and comments.
// Everything is created through the services, so the fixture obeys the same
// rules as API traffic.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"sprintboard/internal/access"
	"sprintboard/internal/models"
	"sprintboard/internal/service"
	"sprintboard/internal/storage/sqlstore"
)

//go:embed seed.yaml
var defaultFixture []byte

// ErrNotEmpty is returned when the database already holds users.
var ErrNotEmpty = errors.New("database already contains users; use --force to replace its contents")

// Fixture is the YAML document. Dates are whole days relative to today.
type Fixture struct {
	Password string    `yaml:"password"`
	Users    []User    `yaml:"users"`
	Sprints  []Sprint  `yaml:"sprints"`
	Tasks    []Task    `yaml:"tasks"`
	Comments []Comment `yaml:"comments"`
}

type User struct {
	Key      string      `yaml:"key"`
	Name     string      `yaml:"name"`
	Email    string      `yaml:"email"`
	Password string      `yaml:"password"`
	Role     models.Role `yaml:"role"`
}

type Sprint struct {
	Key   string `yaml:"key"`
	Name  string `yaml:"name"`
	Start int    `yaml:"start"`
	End   int    `yaml:"end"`
}

type Task struct {
	Key         string            `yaml:"key"`
	Title       string            `yaml:"title"`
	Description string            `yaml:"description"`
	Status      models.TaskStatus `yaml:"status"`
	Type        models.TaskType   `yaml:"type"`
	Priority    models.Priority   `yaml:"priority"`
	Start       *int              `yaml:"start"`
	Due         *int              `yaml:"due"`
	Sprint      string            `yaml:"sprint"`
	Parent      string            `yaml:"parent"`
	Assignees   []string          `yaml:"assignees"`
	Reporter    string            `yaml:"reporter"`
}

type Comment struct {
	Task   string `yaml:"task"`
	Author string `yaml:"author"`
	Body   string `yaml:"body"`
}

// Result counts what was created.
type Result struct {
	Users    int
	Sprints  int
	Tasks    int
	Comments int
}

// Default returns the embedded fixture.
func Default() (*Fixture, error) {
	return Parse(defaultFixture)
}

// LoadFile reads a fixture from disk.
func LoadFile(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return &f, nil
}

// Loader applies fixtures.
type Loader struct {
	store  *sqlstore.Store
	svc    *service.Services
	logger *slog.Logger
	now    func() time.Time
}

func NewLoader(store *sqlstore.Store, svc *service.Services, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{store: store, svc: svc, logger: logger, now: time.Now}
}

// Apply loads f. It refuses a database that already has users unless force
// is set, in which case every existing row is removed first.
func (l *Loader) Apply(ctx context.Context, f *Fixture, force bool) (Result, error) {
	var res Result

	count, err := l.store.CountUsers(ctx)
	if err != nil {
		return res, err
	}
	if count > 0 {
		if !force {
			return res, ErrNotEmpty
		}
		l.logger.Warn("removing existing data before seeding", "users", count)
		if err := l.store.Reset(ctx); err != nil {
			return res, err
		}
	}

	today := l.now().UTC()
	day := func(offset int) string {
		return today.AddDate(0, 0, offset).Format(time.RFC3339)
	}

	users := make(map[string]*access.Principal, len(f.Users))
	for _, u := range f.Users {
		password := u.Password
		if password == "" {
			password = f.Password
		}
		created, err := l.svc.Users.Register(ctx, service.CreateUserInput{
			Name: u.Name, Email: u.Email, Password: password, Role: u.Role,
		})
		if err != nil {
			return res, fmt.Errorf("user %q: %w", u.Key, err)
		}
		users[u.Key] = &access.Principal{ID: created.ID, Role: created.Role}
		res.Users++
	}

	admin := firstAdmin(users)
	sprints := make(map[string]string, len(f.Sprints))
	for _, sp := range f.Sprints {
		if admin == nil {
			return res, errors.New("fixture needs an ADMIN user to create sprints")
		}
		created, err := l.svc.Sprints.Create(ctx, admin, service.CreateSprintInput{
			Name: sp.Name, StartDate: day(sp.Start), EndDate: day(sp.End),
		})
		if err != nil {
			return res, fmt.Errorf("sprint %q: %w", sp.Key, err)
		}
		sprints[sp.Key] = created.ID
		res.Sprints++
	}

	tasks := make(map[string]string, len(f.Tasks))
	for _, t := range f.Tasks {
		reporter, ok := users[t.Reporter]
		if !ok {
			return res, fmt.Errorf("task %q: unknown reporter %q", t.Title, t.Reporter)
		}
		in := service.CreateTaskInput{
			Title:       t.Title,
			Description: t.Description,
			Type:        t.Type,
			Priority:    t.Priority,
			Status:      t.Status,
		}
		if in.Type == "" {
			in.Type = models.TypeGeneralTask
		}
		if t.Start != nil {
			in.StartDate = ptr(day(*t.Start))
		}
		if t.Due != nil {
			in.DueDate = ptr(day(*t.Due))
		}
		if t.Sprint != "" {
			id, ok := sprints[t.Sprint]
			if !ok {
				return res, fmt.Errorf("task %q: unknown sprint %q", t.Title, t.Sprint)
			}
			in.SprintID = &id
		}
		if t.Parent != "" {
			id, ok := tasks[t.Parent]
			if !ok {
				return res, fmt.Errorf("task %q: parent %q must be listed before it", t.Title, t.Parent)
			}
			in.ParentID = &id
		}
		for _, key := range t.Assignees {
			u, ok := users[key]
			if !ok {
				return res, fmt.Errorf("task %q: unknown assignee %q", t.Title, key)
			}
			in.AssigneeIDs = append(in.AssigneeIDs, u.ID)
		}

		created, err := l.svc.Tasks.Create(ctx, reporter, in)
		if err != nil {
			return res, fmt.Errorf("task %q: %w", t.Title, err)
		}
		if t.Key != "" {
			tasks[t.Key] = created.ID
		}
		res.Tasks++
	}

	for _, c := range f.Comments {
		author, ok := users[c.Author]
		if !ok {
			return res, fmt.Errorf("comment: unknown author %q", c.Author)
		}
		taskID, ok := tasks[c.Task]
		if !ok {
			return res, fmt.Errorf("comment: unknown task %q", c.Task)
		}
		if _, err := l.svc.Collab.AddComment(ctx, author, taskID, c.Body); err != nil {
			return res, fmt.Errorf("comment on %q: %w", c.Task, err)
		}
		res.Comments++
	}

	l.logger.Info("seed applied", "users", res.Users, "sprints", res.Sprints, "tasks", res.Tasks, "comments", res.Comments)
	return res, nil
}

func firstAdmin(users map[string]*access.Principal) *access.Principal {
	var admin *access.Principal
	for _, p := range users {
		if p.IsAdmin() && (admin == nil || p.ID < admin.ID) {
			admin = p
		}
	}
	return admin
}

func ptr[T any](v T) *T { return &v }
