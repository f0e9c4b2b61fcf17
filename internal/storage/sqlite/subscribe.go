package sqlite

import (
	"context"

	"classwork/internal/models"
	"classwork/internal/realtime"
	"classwork/internal/storage"
)

// SubscribeUsers pushes the users with the given role (all when empty).
func (s *Store) SubscribeUsers(ctx context.Context, role models.Role, onChange func([]models.User, error)) *realtime.Subscription {
	return realtime.Watch(ctx, s.hub, []string{realtime.CollectionUsers},
		func(ctx context.Context) ([]models.User, error) { return s.ListUsers(ctx, role) },
		onChange)
}

// SubscribeProjects pushes the projects matching filter.
func (s *Store) SubscribeProjects(ctx context.Context, filter storage.ProjectFilter, onChange func([]models.Project, error)) *realtime.Subscription {
	return realtime.Watch(ctx, s.hub, []string{realtime.CollectionProjects},
		func(ctx context.Context) ([]models.Project, error) { return s.ListProjects(ctx, filter) },
		onChange)
}

// SubscribeTasks pushes the tasks of a project.
func (s *Store) SubscribeTasks(ctx context.Context, projectID string, onChange func([]models.Task, error)) *realtime.Subscription {
	return realtime.Watch(ctx, s.hub, []string{realtime.CollectionTasks},
		func(ctx context.Context) ([]models.Task, error) { return s.ListTasks(ctx, projectID) },
		onChange)
}

// SubscribeComments pushes the comments of a task oldest first.
func (s *Store) SubscribeComments(ctx context.Context, taskID string, onChange func([]models.Comment, error)) *realtime.Subscription {
	return realtime.Watch(ctx, s.hub, []string{realtime.CollectionComments},
		func(ctx context.Context) ([]models.Comment, error) { return s.ListComments(ctx, taskID) },
		onChange)
}
