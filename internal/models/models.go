package models

import "time"

// Role is the access level of a user.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

// TaskStatus is the board column a task sits in.
type TaskStatus string

const (
	StatusBacklog    TaskStatus = "BACKLOG"
	StatusTodo       TaskStatus = "TODO"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusInReview   TaskStatus = "IN_REVIEW"
	StatusDone       TaskStatus = "DONE"
	StatusBlocked    TaskStatus = "BLOCKED"
)

// TaskType separates sprint work from general work.
type TaskType string

const (
	TypeSprintTask  TaskType = "SPRINT_TASK"
	TypeGeneralTask TaskType = "GENERAL_TASK"
)

// Priority of a task.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// ValidRoles enumerates the accepted roles.
var ValidRoles = map[Role]struct{}{
	RoleAdmin:  {},
	RoleMember: {},
}

// ValidTaskStatuses enumerates the statuses supported by the board columns.
var ValidTaskStatuses = map[TaskStatus]struct{}{
	StatusBacklog:    {},
	StatusTodo:       {},
	StatusInProgress: {},
	StatusInReview:   {},
	StatusDone:       {},
	StatusBlocked:    {},
}

// ValidTaskTypes enumerates the task types.
var ValidTaskTypes = map[TaskType]struct{}{
	TypeSprintTask:  {},
	TypeGeneralTask: {},
}

// ValidPriorities enumerates the priorities.
var ValidPriorities = map[Priority]struct{}{
	PriorityLow:    {},
	PriorityMedium: {},
	PriorityHigh:   {},
	PriorityUrgent: {},
}

// User is an account. The password hash never leaves the server.
type User struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         Role      `json:"role" db:"role"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// IsAdmin reports whether the user holds the ADMIN role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserRef is the compact user shape embedded in other read models.
type UserRef struct {
	ID    string `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Email string `json:"email" db:"email"`
}

// Sprint is a time box that sprint tasks belong to.
type Sprint struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	StartDate time.Time `json:"startDate" db:"start_date"`
	EndDate   time.Time `json:"endDate" db:"end_date"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	TaskCount int       `json:"taskCount" db:"task_count"`
}

// Contains reports whether t falls inside [StartDate, EndDate].
func (s Sprint) Contains(t time.Time) bool {
	return !t.Before(s.StartDate) && !t.After(s.EndDate)
}

// SprintRef is the compact sprint shape embedded in task read models.
type SprintRef struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// SprintDetail is a sprint with its top-level tasks.
type SprintDetail struct {
	Sprint
	Tasks []TaskSummary `json:"tasks"`
}

// Task is the stored row.
type Task struct {
	ID          string     `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	Status      TaskStatus `json:"status" db:"status"`
	Type        TaskType   `json:"type" db:"type"`
	Priority    Priority   `json:"priority" db:"priority"`
	StartDate   *time.Time `json:"startDate" db:"start_date"`
	DueDate     *time.Time `json:"dueDate" db:"due_date"`
	SprintID    *string    `json:"sprintId" db:"sprint_id"`
	ReporterID  *string    `json:"reporterId" db:"reporter_id"`
	ParentID    *string    `json:"parentId" db:"parent_id"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at"`
}

// TaskCounts holds per-task child counts for list rows.
type TaskCounts struct {
	Subtasks    int `json:"subtasks"`
	Comments    int `json:"comments"`
	Attachments int `json:"attachments"`
}

// TaskSummary is a task with its resolved references.
type TaskSummary struct {
	Task
	AssigneeIDs []string   `json:"assigneeIds"`
	Assignees   []UserRef  `json:"assignees"`
	Reporter    *UserRef   `json:"reporter"`
	Sprint      *SprintRef `json:"sprint"`
	Counts      TaskCounts `json:"_count"`
}

// TaskDetail is the full task view.
type TaskDetail struct {
	TaskSummary
	Subtasks    []TaskSummary `json:"subtasks"`
	Comments    []Comment     `json:"comments"`
	Attachments []Attachment  `json:"attachments"`
	StatusLog   []StatusEvent `json:"statusLog"`
}

// StatusEvent records one accepted status change. Rows are append-only.
type StatusEvent struct {
	ID      string     `json:"id" db:"id"`
	TaskID  string     `json:"taskId" db:"task_id"`
	ActorID *string    `json:"actorId" db:"actor_id"`
	From    TaskStatus `json:"from" db:"from_status"`
	To      TaskStatus `json:"to" db:"to_status"`
	At      time.Time  `json:"at" db:"at"`
	Actor   *UserRef   `json:"actor" db:"-"`
}

// Comment on a task.
type Comment struct {
	ID        string    `json:"id" db:"id"`
	TaskID    string    `json:"taskId" db:"task_id"`
	AuthorID  *string   `json:"authorId" db:"author_id"`
	Body      string    `json:"body" db:"body"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	Author    *UserRef  `json:"author" db:"-"`
}

// Attachment is file metadata; StoredName is the opaque blob locator.
type Attachment struct {
	ID           string    `json:"id" db:"id"`
	TaskID       string    `json:"taskId" db:"task_id"`
	OriginalName string    `json:"originalName" db:"original_name"`
	StoredName   string    `json:"storedName" db:"stored_name"`
	MimeType     string    `json:"mimeType" db:"mime_type"`
	SizeBytes    int64     `json:"sizeBytes" db:"size_bytes"`
	UploadedByID *string   `json:"uploadedById" db:"uploaded_by_id"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UploadedBy   *UserRef  `json:"uploadedBy" db:"-"`
}

// ParentScope selects how a task listing treats the parent reference.
type ParentScope int

const (
	// ParentAny leaves the parent unfiltered.
	ParentAny ParentScope = iota
	// ParentNone keeps top-level tasks only.
	ParentNone
	// ParentIs keeps the children of TaskFilter.ParentID.
	ParentIs
)

// TaskFilter narrows a task listing. Every set field must match.
type TaskFilter struct {
	Type        *TaskType
	SprintID    *string
	AssigneeID  *string
	Status      *TaskStatus
	Query       string
	Parent      ParentScope
	ParentID    string
	OldestFirst bool
	Limit       int
}
