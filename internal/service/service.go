// Package service holds the task lifecycle rules: who may change what, the
// status ledger written alongside every status change, sprint and user
// administration, and the collaboration sub-entities. Every operation takes
// the calling principal explicitly.
package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sprintboard/internal/auth"
	"sprintboard/internal/blob"
	"sprintboard/internal/storage/sqlstore"
)

var tracer = otel.Tracer("sprintboard/internal/service")

// Deps are the collaborators shared by all services.
type Deps struct {
	Store     *sqlstore.Store
	Blobs     blob.Store
	Tokens    *auth.TokenManager
	Passwords *auth.PasswordManager
	Logger    *slog.Logger
	Now       func() time.Time
}

// Services bundles every service the HTTP layer talks to.
type Services struct {
	Tasks     *TaskService
	Sprints   *SprintService
	Collab    *CollabService
	Users     *UserService
	Dashboard *DashboardService
}

// New wires the services over deps, filling defaults for the optional ones.
func New(deps Deps) *Services {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Passwords == nil {
		deps.Passwords = auth.NewPasswordManager()
	}
	return &Services{
		Tasks:     NewTaskService(deps.Store, deps.Blobs, deps.Logger),
		Sprints:   NewSprintService(deps.Store, deps.Logger),
		Collab:    NewCollabService(deps.Store, deps.Blobs, deps.Logger),
		Users:     NewUserService(deps.Store, deps.Passwords, deps.Tokens, deps.Logger),
		Dashboard: NewDashboardService(deps.Store, deps.Now),
	}
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
