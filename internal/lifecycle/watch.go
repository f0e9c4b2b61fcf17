package lifecycle

import (
	"context"

	"classwork/internal/models"
	"classwork/internal/realtime"
	"classwork/internal/storage"
)

// WatchProjects streams project snapshots matching filter until the
// subscription is closed or ctx is cancelled.
func (m *Manager) WatchProjects(ctx context.Context, filter storage.ProjectFilter, onChange func([]models.Project, error)) *realtime.Subscription {
	return m.store.SubscribeProjects(ctx, filter, onChange)
}

// WatchTasks streams the task tree of a project.
func (m *Manager) WatchTasks(ctx context.Context, projectID string, onChange func([]TaskNode, error)) *realtime.Subscription {
	return m.store.SubscribeTasks(ctx, projectID, func(tasks []models.Task, err error) {
		if err != nil {
			onChange(nil, storeErr("watch tasks", err))
			return
		}
		onChange(BuildTree(tasks), nil)
	})
}

// WatchComments streams the comments of a task.
func (m *Manager) WatchComments(ctx context.Context, taskID string, onChange func([]models.Comment, error)) *realtime.Subscription {
	return m.store.SubscribeComments(ctx, taskID, onChange)
}

// WatchUsers streams the users with a role.
func (m *Manager) WatchUsers(ctx context.Context, role models.Role, onChange func([]models.User, error)) *realtime.Subscription {
	return m.store.SubscribeUsers(ctx, role, onChange)
}
