// Package viewer exposes the operations a signed-in user may perform. Each
// role gets its own capability set so nothing below this layer branches on
// role.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"classwork/internal/ai"
	"classwork/internal/assignment"
	"classwork/internal/lifecycle"
	"classwork/internal/models"
	"classwork/internal/realtime"
	"classwork/internal/storage"
)

var (
	// ErrForbidden is returned when the user may not see or change an entity.
	ErrForbidden = errors.New("forbidden")
	// ErrIncompleteTasks rejects a submission while tasks are still open.
	ErrIncompleteTasks = errors.New("all tasks must be completed before submitting")
)

// Deps are the collaborators shared by every view.
type Deps struct {
	Manager       *lifecycle.Manager
	Suggester     ai.Suggester
	DueSoonWindow time.Duration
}

// ProjectCard is a project as shown on a dashboard.
type ProjectCard struct {
	models.Project
	AssigneeNames []string        `json:"assigneeNames"`
	Badge         models.Deadline `json:"deadlineBadge"`
}

// Viewer holds what every signed-in user can do.
type Viewer interface {
	Profile() models.User
	Projects(ctx context.Context) ([]ProjectCard, error)
	Project(ctx context.Context, projectID string) (ProjectCard, error)
	Tasks(ctx context.Context, projectID string) ([]lifecycle.TaskNode, error)
	AddTask(ctx context.Context, nt lifecycle.NewTask) (string, error)
	SetTaskStatus(ctx context.Context, taskID string, status models.Status, opts ...lifecycle.WriteOption) error
	Comments(ctx context.Context, taskID string) ([]models.Comment, error)
	Comment(ctx context.Context, taskID, text string) (string, error)
	Activity(ctx context.Context, projectID string) ([]models.Activity, error)
	WatchProjects(ctx context.Context, onChange func([]ProjectCard, error)) *realtime.Subscription
	WatchTasks(ctx context.Context, projectID string, onChange func([]lifecycle.TaskNode, error)) (*realtime.Subscription, error)
	WatchComments(ctx context.Context, taskID string, onChange func([]models.Comment, error)) (*realtime.Subscription, error)
}

// ProjectAuthor is implemented by views that create and manage projects.
type ProjectAuthor interface {
	CreateProject(ctx context.Context, np lifecycle.NewProject) (string, error)
	DeleteProject(ctx context.Context, projectID string) error
	SetProjectStatus(ctx context.Context, projectID string, status models.Status, opts ...lifecycle.WriteOption) error
	Workloads(ctx context.Context) ([]ai.Workload, error)
	SuggestBreakdown(ctx context.Context, title, description string) ([]string, error)
	SuggestPriorities(ctx context.Context) ([]ai.PrioritySuggestion, error)
}

// Submitter is implemented by views that hand in projects.
type Submitter interface {
	SubmitProject(ctx context.Context, projectID string) error
	SuggestOrder(ctx context.Context, tasks []ai.StudentTask, workload string) (ai.StudentOrder, error)
}

// For returns the view matching the user's role.
func For(user models.User, deps Deps) (Viewer, error) {
	if deps.Suggester == nil {
		deps.Suggester = ai.Disabled{}
	}
	if deps.DueSoonWindow <= 0 {
		deps.DueSoonWindow = models.DefaultDueSoonWindow
	}
	switch user.Role {
	case models.RoleLecturer:
		return NewLecturerView(user, deps), nil
	case models.RoleStudent:
		return NewStudentView(user, deps), nil
	}
	return nil, fmt.Errorf("user %s has role %q: %w", user.ID, user.Role, ErrForbidden)
}

// base implements Viewer for a fixed project scope.
type base struct {
	user  models.User
	deps  Deps
	scope storage.ProjectFilter
	owns  func(models.Project) bool
}

func (b *base) Profile() models.User { return b.user }

func (b *base) Projects(ctx context.Context) ([]ProjectCard, error) {
	projects, err := b.deps.Manager.ListProjects(ctx, b.scope)
	if err != nil {
		return nil, err
	}
	return b.cards(ctx, projects)
}

func (b *base) Project(ctx context.Context, projectID string) (ProjectCard, error) {
	p, err := b.project(ctx, projectID)
	if err != nil {
		return ProjectCard{}, err
	}
	cards, err := b.cards(ctx, []models.Project{p})
	if err != nil {
		return ProjectCard{}, err
	}
	return cards[0], nil
}

func (b *base) Tasks(ctx context.Context, projectID string) ([]lifecycle.TaskNode, error) {
	if _, err := b.project(ctx, projectID); err != nil {
		return nil, err
	}
	nodes, err := b.deps.Manager.TaskTree(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return b.badges(nodes), nil
}

func (b *base) AddTask(ctx context.Context, nt lifecycle.NewTask) (string, error) {
	if _, err := b.project(ctx, nt.ProjectID); err != nil {
		return "", err
	}
	nt.CreatedBy = b.user.ID
	return b.deps.Manager.CreateTask(ctx, nt)
}

func (b *base) SetTaskStatus(ctx context.Context, taskID string, status models.Status, opts ...lifecycle.WriteOption) error {
	if _, err := b.task(ctx, taskID); err != nil {
		return err
	}
	return b.deps.Manager.UpdateTaskStatus(ctx, taskID, status, b.user.ID, opts...)
}

func (b *base) Comments(ctx context.Context, taskID string) ([]models.Comment, error) {
	if _, err := b.task(ctx, taskID); err != nil {
		return nil, err
	}
	return b.deps.Manager.ListComments(ctx, taskID)
}

func (b *base) Comment(ctx context.Context, taskID, text string) (string, error) {
	if _, err := b.task(ctx, taskID); err != nil {
		return "", err
	}
	return b.deps.Manager.AddComment(ctx, lifecycle.NewComment{
		TaskID:   taskID,
		UserID:   b.user.ID,
		UserName: b.user.Name,
		Text:     text,
	})
}

func (b *base) Activity(ctx context.Context, projectID string) ([]models.Activity, error) {
	if _, err := b.project(ctx, projectID); err != nil {
		return nil, err
	}
	return b.deps.Manager.ListActivity(ctx, projectID)
}

// WatchProjects rebuilds the cards whenever the projects or the student
// directory change, so late registrations replace "Unknown" names.
func (b *base) WatchProjects(ctx context.Context, onChange func([]ProjectCard, error)) *realtime.Subscription {
	var (
		mu       sync.Mutex
		projects []models.Project
		students []models.User
		haveP    bool
		haveS    bool
	)
	// emit runs with mu held, which also serializes onChange.
	emit := func() {
		if haveP && haveS {
			onChange(b.cardsWith(assignment.NewDirectory(students), projects), nil)
		}
	}

	projectSub := b.deps.Manager.WatchProjects(ctx, b.scope, func(ps []models.Project, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			onChange(nil, err)
			return
		}
		projects, haveP = ps, true
		emit()
	})
	studentSub := b.deps.Manager.WatchUsers(ctx, models.RoleStudent, func(us []models.User, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			onChange(nil, err)
			return
		}
		students, haveS = us, true
		emit()
	})
	return realtime.Join(projectSub, studentSub)
}

func (b *base) WatchTasks(ctx context.Context, projectID string, onChange func([]lifecycle.TaskNode, error)) (*realtime.Subscription, error) {
	if _, err := b.project(ctx, projectID); err != nil {
		return nil, err
	}
	return b.deps.Manager.WatchTasks(ctx, projectID, func(nodes []lifecycle.TaskNode, err error) {
		if err != nil {
			onChange(nil, err)
			return
		}
		onChange(b.badges(nodes), nil)
	}), nil
}

// WatchComments streams a task's comments oldest first.
func (b *base) WatchComments(ctx context.Context, taskID string, onChange func([]models.Comment, error)) (*realtime.Subscription, error) {
	if _, err := b.task(ctx, taskID); err != nil {
		return nil, err
	}
	return b.deps.Manager.WatchComments(ctx, taskID, onChange), nil
}

// project loads a project the user may see.
func (b *base) project(ctx context.Context, projectID string) (models.Project, error) {
	p, err := b.deps.Manager.GetProject(ctx, projectID)
	if err != nil {
		return models.Project{}, err
	}
	if !b.owns(p) {
		return models.Project{}, fmt.Errorf("project %s: %w", projectID, ErrForbidden)
	}
	return p, nil
}

// task loads a task whose project the user may see.
func (b *base) task(ctx context.Context, taskID string) (models.Task, error) {
	t, err := b.deps.Manager.GetTask(ctx, taskID)
	if err != nil {
		return models.Task{}, err
	}
	if _, err := b.project(ctx, t.ProjectID); err != nil {
		return models.Task{}, err
	}
	return t, nil
}

func (b *base) cards(ctx context.Context, projects []models.Project) ([]ProjectCard, error) {
	students, err := b.deps.Manager.ListUsers(ctx, models.RoleStudent)
	if err != nil {
		return nil, err
	}
	return b.cardsWith(assignment.NewDirectory(students), projects), nil
}

func (b *base) cardsWith(dir assignment.Directory, projects []models.Project) []ProjectCard {
	now := b.deps.Manager.Now()

	cards := make([]ProjectCard, len(projects))
	for i, p := range projects {
		cards[i] = ProjectCard{
			Project:       p,
			AssigneeNames: dir.Names(p.AssignedTo),
			Badge:         models.DeadlineFor(p.Status, p.Deadline, now, b.deps.DueSoonWindow),
		}
	}
	return cards
}

func (b *base) badges(nodes []lifecycle.TaskNode) []lifecycle.TaskNode {
	now := b.deps.Manager.Now()
	for i, n := range nodes {
		if n.DueDate == nil || n.Status == models.StatusCompleted {
			continue
		}
		badge := models.DeadlineFor(n.Status, *n.DueDate, now, b.deps.DueSoonWindow)
		nodes[i].Badge = &badge
	}
	return nodes
}
