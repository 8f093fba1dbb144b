package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"sprintboard/internal/apperr"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// sqliteDriver is go-sqlite3 with unicode_lower registered on every
// connection; the built-in LOWER only folds ASCII.
const sqliteDriver = "sqlite3_sprintboard"

func init() {
	sql.Register(sqliteDriver, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("unicode_lower", strings.ToLower, true)
		},
	})
	sqlx.BindDriver(sqliteDriver, sqlx.QUESTION)
}

// Store wraps access to the relational database and exposes high level helpers.
// Outside a transaction the embedded Queries run directly against the pool.
type Store struct {
	*Queries
	db     *sqlx.DB
	driver string
	logger *slog.Logger
}

// Queries is the set of statements shared by the pool and by transactions.
type Queries struct {
	db sqlx.ExtContext
}

// Open connects to the database and runs the required migrations.
func Open(driver, dsn string, logger *slog.Logger) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty database dsn")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	switch driver {
	case DriverSQLite:
		if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
			if err := ensureDir(dsn); err != nil {
				return nil, err
			}
			dsn = fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=ON", dsn)
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	driverName := driver
	if driver == DriverSQLite {
		driverName = sqliteDriver
	}
	conn, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		conn.SetMaxOpenConns(1)
		conn.SetConnMaxLifetime(0)
	} else {
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(5)
		conn.SetConnMaxLifetime(5 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	s := &Store{Queries: &Queries{db: conn}, db: conn, driver: driver, logger: logger}
	if err := s.migrate(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	logger.Debug("database ready", "driver", driver)
	return s, nil
}

// Close releases the database resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Driver is the database/sql driver name the store was opened with.
func (s *Store) Driver() string {
	return s.driver
}

// Ping checks the connection, used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Tx runs fn inside a transaction and commits when it returns nil.
// Every read fn needs must go through q: with SQLite the pool holds a single
// connection, owned by the transaction until it ends.
func (s *Store) Tx(ctx context.Context, fn func(q *Queries) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Queries{db: tx}); err != nil {
		return rollback(tx, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func rollback(tx *sqlx.Tx, err error) error {
	if rerr := tx.Rollback(); rerr != nil {
		return fmt.Errorf("%w (rollback failed: %v)", err, rerr)
	}
	return err
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Reset removes every row while keeping the schema.
func (s *Store) Reset(ctx context.Context) error {
	return s.Tx(ctx, func(q *Queries) error {
		for _, table := range []string{"status_events", "comments", "attachments", "task_assignees", "tasks", "sprints", "users"} {
			if _, err := q.exec(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("reset %s: %w", table, err)
			}
		}
		return nil
	})
}

// Migrate applies the schema; it is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	return s.migrate(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            role TEXT NOT NULL DEFAULT 'MEMBER' CHECK (role IN ('ADMIN', 'MEMBER')),
            created_at TIMESTAMP NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS sprints (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            start_date TIMESTAMP NOT NULL,
            end_date TIMESTAMP NOT NULL,
            created_at TIMESTAMP NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS tasks (
            id TEXT PRIMARY KEY,
            title TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL DEFAULT 'BACKLOG'
                CHECK (status IN ('BACKLOG', 'TODO', 'IN_PROGRESS', 'IN_REVIEW', 'DONE', 'BLOCKED')),
            type TEXT NOT NULL CHECK (type IN ('SPRINT_TASK', 'GENERAL_TASK')),
            priority TEXT NOT NULL DEFAULT 'MEDIUM' CHECK (priority IN ('LOW', 'MEDIUM', 'HIGH', 'URGENT')),
            start_date TIMESTAMP NULL,
            due_date TIMESTAMP NULL,
            sprint_id TEXT NULL REFERENCES sprints(id),
            reporter_id TEXT NULL REFERENCES users(id),
            parent_id TEXT NULL REFERENCES tasks(id),
            created_at TIMESTAMP NOT NULL,
            updated_at TIMESTAMP NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS task_assignees (
            task_id TEXT NOT NULL REFERENCES tasks(id),
            user_id TEXT NOT NULL REFERENCES users(id),
            PRIMARY KEY (task_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS status_events (
            id TEXT PRIMARY KEY,
            task_id TEXT NOT NULL REFERENCES tasks(id),
            actor_id TEXT NULL REFERENCES users(id),
            from_status TEXT NOT NULL,
            to_status TEXT NOT NULL,
            at TIMESTAMP NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS comments (
            id TEXT PRIMARY KEY,
            task_id TEXT NOT NULL REFERENCES tasks(id),
            author_id TEXT NULL REFERENCES users(id),
            body TEXT NOT NULL,
            created_at TIMESTAMP NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS attachments (
            id TEXT PRIMARY KEY,
            task_id TEXT NOT NULL REFERENCES tasks(id),
            original_name TEXT NOT NULL,
            stored_name TEXT NOT NULL,
            mime_type TEXT NOT NULL,
            size_bytes BIGINT NOT NULL,
            uploaded_by_id TEXT NULL REFERENCES users(id),
            created_at TIMESTAMP NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_sprint ON tasks(sprint_id);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_id);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_created ON tasks(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_task_assignees_user ON task_assignees(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_status_events_task ON status_events(task_id, at);`,
		`CREATE INDEX IF NOT EXISTS idx_comments_task ON comments(task_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_attachments_task ON attachments(task_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// lower is the Unicode-aware lower-case function of the underlying database.
func (q *Queries) lower(expr string) string {
	if q.db.DriverName() == sqliteDriver {
		return "unicode_lower(" + expr + ")"
	}
	return "LOWER(" + expr + ")"
}

func (q *Queries) get(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, q.db, dest, q.db.Rebind(query), args...)
}

func (q *Queries) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, q.db, dest, q.db.Rebind(query), args...)
}

func (q *Queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.db.ExecContext(ctx, q.db.Rebind(query), args...)
}

// selectIn expands the single IN (?) placeholder in query over ids.
func (q *Queries) selectIn(ctx context.Context, dest any, query string, ids []string, args ...any) error {
	expanded, params, err := sqlx.In(query, append([]any{ids}, args...)...)
	if err != nil {
		return err
	}
	return sqlx.SelectContext(ctx, q.db, dest, q.db.Rebind(expanded), params...)
}

func (q *Queries) execIn(ctx context.Context, query string, ids []string) (sql.Result, error) {
	expanded, params, err := sqlx.In(query, ids)
	if err != nil {
		return nil, err
	}
	return q.db.ExecContext(ctx, q.db.Rebind(expanded), params...)
}

// notFound translates sql.ErrNoRows into the domain error for entity.
func notFound(err error, entity, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(entity)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func requireAffected(res sql.Result, entity string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.NotFound(entity)
	}
	return nil
}

func now() time.Time {
	return time.Now().UTC()
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
