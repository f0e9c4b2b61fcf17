// Package storage defines the entity store used by the lifecycle manager.
package storage

import (
	"context"
	"errors"
	"time"

	"classwork/internal/models"
	"classwork/internal/realtime"
)

var (
	// ErrNotFound is returned when a referenced document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict is returned when a conditional update sees a newer version.
	ErrVersionConflict = errors.New("version conflict")
)

// ProjectFilter narrows ListProjects. Empty fields are ignored.
type ProjectFilter struct {
	CreatedBy  string
	AssignedTo string
	Status     models.Status
}

// StatusUpdate overwrites the status of a project or task.
// IfVersion, when non-zero, makes the write conditional.
type StatusUpdate struct {
	ID        string
	Status    models.Status
	UpdatedAt time.Time
	IfVersion int64
}

// Reader holds the queries the application needs.
type Reader interface {
	GetUser(ctx context.Context, id string) (models.User, error)
	ListUsers(ctx context.Context, role models.Role) ([]models.User, error)
	ListUsersByID(ctx context.Context, ids []string) ([]models.User, error)

	GetProject(ctx context.Context, id string) (models.Project, error)
	ListProjects(ctx context.Context, filter ProjectFilter) ([]models.Project, error)

	GetTask(ctx context.Context, id string) (models.Task, error)
	ListTasks(ctx context.Context, projectID string) ([]models.Task, error)

	ListComments(ctx context.Context, taskID string) ([]models.Comment, error)
	ListActivity(ctx context.Context, projectID string) ([]models.Activity, error)
}

// Writer holds single-document mutations. Inside WithTx they are applied atomically.
type Writer interface {
	InsertUser(ctx context.Context, u models.User) error

	InsertProject(ctx context.Context, p models.Project) error
	UpdateProjectStatus(ctx context.Context, u StatusUpdate) error
	DeleteProject(ctx context.Context, id string) error

	InsertTask(ctx context.Context, t models.Task) error
	UpdateTaskStatus(ctx context.Context, u StatusUpdate) error
	DeleteTasksByProject(ctx context.Context, projectID string) error

	InsertComment(ctx context.Context, c models.Comment) error
	DeleteCommentsByTasks(ctx context.Context, taskIDs []string) error

	InsertActivity(ctx context.Context, a models.Activity) error
	DeleteActivityByProject(ctx context.Context, projectID string) error
}

// Tx is the view of the store inside an atomic batch.
type Tx interface {
	Reader
	Writer
}

// Subscriber exposes push-based snapshots. Each subscription delivers an
// initial snapshot and a fresh one after every relevant committed change.
type Subscriber interface {
	SubscribeUsers(ctx context.Context, role models.Role, onChange func([]models.User, error)) *realtime.Subscription
	SubscribeProjects(ctx context.Context, filter ProjectFilter, onChange func([]models.Project, error)) *realtime.Subscription
	SubscribeTasks(ctx context.Context, projectID string, onChange func([]models.Task, error)) *realtime.Subscription
	SubscribeComments(ctx context.Context, taskID string, onChange func([]models.Comment, error)) *realtime.Subscription
}

// Store is the full entity store.
type Store interface {
	Reader
	Writer
	Subscriber

	// WithTx runs fn inside one transaction. Every write made through the Tx
	// is committed together, or none is when fn or the commit fails.
	WithTx(ctx context.Context, fn func(Tx) error) error
	Close() error
}
