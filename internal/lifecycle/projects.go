package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"classwork/internal/assignment"
	"classwork/internal/models"
	"classwork/internal/storage"
)

// NewProject contains information needed to create a project.
type NewProject struct {
	Title       string    `json:"title" validate:"required,min=3"`
	Description string    `json:"description" validate:"required,min=10"`
	Deadline    time.Time `json:"deadline" validate:"required,notpast"`
	AssignedTo  []string  `json:"assignedTo" validate:"required,min=1,dive,required"`
	CreatedBy   string    `json:"createdBy" validate:"required"`
	SeedTasks   []string  `json:"seedTasks" validate:"omitempty,dive,required,min=3"`
}

func (np *NewProject) clean() {
	np.Title = cleanString(np.Title)
	np.Description = cleanString(np.Description)
	np.CreatedBy = cleanString(np.CreatedBy)

	seen := make(map[string]struct{}, len(np.AssignedTo))
	assigned := make([]string, 0, len(np.AssignedTo))
	for _, id := range np.AssignedTo {
		id = cleanString(id)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		assigned = append(assigned, id)
	}
	np.AssignedTo = assigned

	if np.SeedTasks != nil {
		seeds := make([]string, len(np.SeedTasks))
		for i, title := range np.SeedTasks {
			seeds[i] = cleanString(title)
		}
		np.SeedTasks = seeds
	}
}

// CreateProject persists a project and its seed tasks in one batch. A project
// created with seed tasks starts In Progress.
func (m *Manager) CreateProject(ctx context.Context, np NewProject) (string, error) {
	np.clean()
	if err := m.validate.Struct(np); err != nil {
		return "", err
	}

	now := m.Now()
	project := models.Project{
		ID:          m.newID(),
		Title:       np.Title,
		Description: np.Description,
		Deadline:    np.Deadline.UTC(),
		CreatedBy:   np.CreatedBy,
		AssignedTo:  np.AssignedTo,
		Status:      models.StatusPending,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if len(np.SeedTasks) > 0 {
		project.Status = models.StatusInProgress
	}

	err := m.store.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.InsertProject(ctx, project); err != nil {
			return err
		}
		for _, title := range np.SeedTasks {
			task := models.Task{
				ID:        m.newID(),
				ProjectID: project.ID,
				Title:     title,
				Status:    models.StatusPending,
				CreatedBy: np.CreatedBy,
				Version:   1,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.InsertTask(ctx, task); err != nil {
				return err
			}
		}

		students, err := tx.ListUsersByID(ctx, project.AssignedTo)
		if err != nil {
			return err
		}
		names := assignment.NewDirectory(students).Names(project.AssignedTo)
		action := fmt.Sprintf("Project %q created and assigned to %s", project.Title, strings.Join(names, ", "))
		return tx.InsertActivity(ctx, m.activity(ptr(project.ID), nil, np.CreatedBy, action))
	})
	if err != nil {
		return "", storeErr("create project", err)
	}

	m.logger.Info("project created",
		slog.String("project", project.ID),
		slog.String("status", string(project.Status)),
		slog.Int("seed_tasks", len(np.SeedTasks)))
	return project.ID, nil
}

// DeleteProject removes the project, its tasks, their comments and the
// project's activity in one batch. Authorization is enforced upstream.
func (m *Manager) DeleteProject(ctx context.Context, projectID, requestingUserID string) error {
	var removed int
	err := m.store.WithTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetProject(ctx, projectID); err != nil {
			return err
		}
		tasks, err := tx.ListTasks(ctx, projectID)
		if err != nil {
			return err
		}
		ids := make([]string, len(tasks))
		for i, t := range tasks {
			ids[i] = t.ID
		}
		removed = len(ids)

		if err := tx.DeleteCommentsByTasks(ctx, ids); err != nil {
			return err
		}
		if err := tx.DeleteTasksByProject(ctx, projectID); err != nil {
			return err
		}
		if err := tx.DeleteActivityByProject(ctx, projectID); err != nil {
			return err
		}
		return tx.DeleteProject(ctx, projectID)
	})
	if err != nil {
		return storeErr("delete project", err)
	}

	m.logger.Info("project deleted",
		slog.String("project", projectID),
		slog.String("user", requestingUserID),
		slog.Int("tasks", removed))
	return nil
}

// UpdateProjectStatus overwrites the project status. Transitions are not
// checked unless the manager runs with strict transitions.
func (m *Manager) UpdateProjectStatus(ctx context.Context, projectID string, status models.Status, actingUserID string, opts ...WriteOption) error {
	if !status.Valid() {
		return NewValidationError(errInvalidInput, FieldError{Field: "status", Error: fmt.Sprintf("unknown status %q", status)})
	}
	o := collectWriteOptions(opts)

	err := m.store.WithTx(ctx, func(tx storage.Tx) error {
		project, err := tx.GetProject(ctx, projectID)
		if err != nil {
			return err
		}
		if m.strict && project.Status.Regresses(status) {
			return fmt.Errorf("%s -> %s: %w", project.Status, status, ErrInvalidTransition)
		}
		if err := tx.UpdateProjectStatus(ctx, storage.StatusUpdate{
			ID:        projectID,
			Status:    status,
			UpdatedAt: m.Now(),
			IfVersion: o.ifVersion,
		}); err != nil {
			return err
		}
		action := fmt.Sprintf("Status of project %q changed to %s", project.Title, status)
		return tx.InsertActivity(ctx, m.activity(ptr(projectID), nil, actingUserID, action))
	})
	if err != nil {
		return storeErr("update project status", err)
	}

	m.logger.Info("project status updated",
		slog.String("project", projectID),
		slog.String("status", string(status)),
		slog.String("user", actingUserID))
	return nil
}

// SubmitProject marks the project Completed. Callers gate it on every task
// being Completed.
func (m *Manager) SubmitProject(ctx context.Context, projectID, actingUserID string) error {
	return m.UpdateProjectStatus(ctx, projectID, models.StatusCompleted, actingUserID)
}

// GetProject fetches a single project.
func (m *Manager) GetProject(ctx context.Context, projectID string) (models.Project, error) {
	p, err := m.store.GetProject(ctx, projectID)
	if err != nil {
		return models.Project{}, storeErr("get project", err)
	}
	return p, nil
}

// ListProjects returns projects matching filter.
func (m *Manager) ListProjects(ctx context.Context, filter storage.ProjectFilter) ([]models.Project, error) {
	projects, err := m.store.ListProjects(ctx, filter)
	if err != nil {
		return nil, storeErr("list projects", err)
	}
	return projects, nil
}

// ListActivity returns the project's activity oldest first.
func (m *Manager) ListActivity(ctx context.Context, projectID string) ([]models.Activity, error) {
	entries, err := m.store.ListActivity(ctx, projectID)
	if err != nil {
		return nil, storeErr("list activity", err)
	}
	return entries, nil
}
