package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"classwork/internal/models"
	"classwork/internal/storage"
)

var (
	errNestedSubtask   = errors.New("subtasks cannot have subtasks")
	errParentElsewhere = errors.New("parent task belongs to another project")
	errDueAfterProject = errors.New("due date is after the project deadline")
)

// NewTask contains information needed to add a task or subtask.
type NewTask struct {
	ProjectID string     `json:"projectId" validate:"required"`
	Title     string     `json:"title" validate:"required,min=3"`
	CreatedBy string     `json:"createdBy" validate:"required"`
	DueDate   *time.Time `json:"dueDate"`
	ParentID  string     `json:"parentId"`
}

// TaskNode is a top-level task with its subtasks. Badge is filled in by
// callers that know the viewer's clock.
type TaskNode struct {
	models.Task
	Badge    *models.Deadline `json:"deadlineBadge,omitempty"`
	Subtasks []models.Task    `json:"subtasks"`
}

// CreateTask adds a task to a project. When the project is still Pending it
// moves to In Progress in the same batch.
func (m *Manager) CreateTask(ctx context.Context, nt NewTask) (string, error) {
	nt.ProjectID = cleanString(nt.ProjectID)
	nt.Title = cleanString(nt.Title)
	nt.CreatedBy = cleanString(nt.CreatedBy)
	nt.ParentID = cleanString(nt.ParentID)
	if err := m.validate.Struct(nt); err != nil {
		return "", err
	}

	now := m.Now()
	task := models.Task{
		ID:        m.newID(),
		ProjectID: nt.ProjectID,
		Title:     nt.Title,
		Status:    models.StatusPending,
		CreatedBy: nt.CreatedBy,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if nt.DueDate != nil {
		task.DueDate = ptr(nt.DueDate.UTC())
	}
	if nt.ParentID != "" {
		task.ParentID = ptr(nt.ParentID)
	}

	var started bool
	err := m.store.WithTx(ctx, func(tx storage.Tx) error {
		project, err := tx.GetProject(ctx, nt.ProjectID)
		if err != nil {
			return err
		}
		if task.DueDate != nil && task.DueDate.After(project.Deadline) {
			return NewValidationError(errDueAfterProject, FieldError{Field: "dueDate", Error: errDueAfterProject.Error()})
		}
		if task.ParentID != nil {
			if err := checkParent(ctx, tx, *task.ParentID, project.ID); err != nil {
				return err
			}
		}

		if err := tx.InsertTask(ctx, task); err != nil {
			return err
		}
		if project.Status == models.StatusPending {
			if err := tx.UpdateProjectStatus(ctx, storage.StatusUpdate{
				ID:        project.ID,
				Status:    models.StatusInProgress,
				UpdatedAt: now,
			}); err != nil {
				return err
			}
			started = true
		}

		action := fmt.Sprintf("Task %q added", task.Title)
		if task.ParentID != nil {
			action = fmt.Sprintf("Subtask %q added", task.Title)
		}
		return tx.InsertActivity(ctx, m.activity(ptr(project.ID), ptr(task.ID), nt.CreatedBy, action))
	})
	if err != nil {
		return "", storeErr("create task", err)
	}

	m.logger.Info("task created",
		slog.String("task", task.ID),
		slog.String("project", task.ProjectID),
		slog.Bool("project_started", started))
	return task.ID, nil
}

func checkParent(ctx context.Context, tx storage.Tx, parentID, projectID string) error {
	parent, err := tx.GetTask(ctx, parentID)
	if err != nil {
		return err
	}
	if parent.ProjectID != projectID {
		return NewValidationError(errParentElsewhere, FieldError{Field: "parentId", Error: errParentElsewhere.Error()})
	}
	if parent.IsSubtask() {
		return NewValidationError(errNestedSubtask, FieldError{Field: "parentId", Error: errNestedSubtask.Error()})
	}
	return nil
}

// UpdateTaskStatus overwrites the task status. It never completes the project.
func (m *Manager) UpdateTaskStatus(ctx context.Context, taskID string, status models.Status, actingUserID string, opts ...WriteOption) error {
	if !status.Valid() {
		return NewValidationError(errInvalidInput, FieldError{Field: "status", Error: fmt.Sprintf("unknown status %q", status)})
	}
	o := collectWriteOptions(opts)

	err := m.store.WithTx(ctx, func(tx storage.Tx) error {
		task, err := tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if err := tx.UpdateTaskStatus(ctx, storage.StatusUpdate{
			ID:        taskID,
			Status:    status,
			UpdatedAt: m.Now(),
			IfVersion: o.ifVersion,
		}); err != nil {
			return err
		}
		action := fmt.Sprintf("Status of task %q changed to %s", task.Title, status)
		return tx.InsertActivity(ctx, m.activity(ptr(task.ProjectID), ptr(taskID), actingUserID, action))
	})
	if err != nil {
		return storeErr("update task status", err)
	}

	m.logger.Info("task status updated",
		slog.String("task", taskID),
		slog.String("status", string(status)),
		slog.String("user", actingUserID))
	return nil
}

// GetTask fetches a single task.
func (m *Manager) GetTask(ctx context.Context, taskID string) (models.Task, error) {
	t, err := m.store.GetTask(ctx, taskID)
	if err != nil {
		return models.Task{}, storeErr("get task", err)
	}
	return t, nil
}

// ListTasks returns every task and subtask of a project, oldest first.
func (m *Manager) ListTasks(ctx context.Context, projectID string) ([]models.Task, error) {
	tasks, err := m.store.ListTasks(ctx, projectID)
	if err != nil {
		return nil, storeErr("list tasks", err)
	}
	return tasks, nil
}

// TaskTree returns the project's tasks with their subtasks nested.
func (m *Manager) TaskTree(ctx context.Context, projectID string) ([]TaskNode, error) {
	tasks, err := m.ListTasks(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return BuildTree(tasks), nil
}

// BuildTree nests subtasks under their parents, keeping input order.
// Subtasks whose parent is missing are promoted to the top level.
func BuildTree(tasks []models.Task) []TaskNode {
	index := make(map[string]int, len(tasks))
	nodes := make([]TaskNode, 0, len(tasks))
	for _, t := range tasks {
		if t.IsSubtask() {
			continue
		}
		index[t.ID] = len(nodes)
		nodes = append(nodes, TaskNode{Task: t, Subtasks: []models.Task{}})
	}
	for _, t := range tasks {
		if !t.IsSubtask() {
			continue
		}
		if i, ok := index[*t.ParentID]; ok {
			nodes[i].Subtasks = append(nodes[i].Subtasks, t)
			continue
		}
		nodes = append(nodes, TaskNode{Task: t, Subtasks: []models.Task{}})
	}
	return nodes
}

// AllCompleted reports whether tasks is non-empty and every task is Completed.
func AllCompleted(tasks []models.Task) bool {
	if len(tasks) == 0 {
		return false
	}
	for _, t := range tasks {
		if t.Status != models.StatusCompleted {
			return false
		}
	}
	return true
}
