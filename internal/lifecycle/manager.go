// Package lifecycle owns every state transition of projects and tasks and the
// atomic multi-document writes that go with them.
package lifecycle

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"classwork/internal/models"
	"classwork/internal/storage"
)

// Manager applies lifecycle rules on top of a storage.Store. It never retries
// a failed write and never branches on the caller's role.
type Manager struct {
	store    storage.Store
	logger   *slog.Logger
	validate *validate
	now      func() time.Time
	newID    func() string
	strict   bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDGenerator replaces uuid.NewString.
func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) { m.newID = fn }
}

// WithStrictTransitions rejects status updates that move a project backwards.
func WithStrictTransitions() Option {
	return func(m *Manager) { m.strict = true }
}

// New constructs a Manager.
func New(store storage.Store, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		store:  store,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.validate = newValidate(m.now)
	return m
}

// Now returns the manager's current time.
func (m *Manager) Now() time.Time {
	return m.now().UTC()
}

// WriteOption adjusts a single status write.
type WriteOption func(*writeOptions)

type writeOptions struct {
	ifVersion int64
}

// IfVersion makes the write fail with ErrVersionConflict unless the stored
// version equals v.
func IfVersion(v int64) WriteOption {
	return func(o *writeOptions) { o.ifVersion = v }
}

func collectWriteOptions(opts []WriteOption) writeOptions {
	var o writeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (m *Manager) activity(projectID, taskID *string, userID, action string) models.Activity {
	return models.Activity{
		ID:        m.newID(),
		ProjectID: projectID,
		TaskID:    taskID,
		UserID:    userID,
		Action:    action,
		CreatedAt: m.Now(),
	}
}

func ptr[T any](v T) *T {
	return &v
}
