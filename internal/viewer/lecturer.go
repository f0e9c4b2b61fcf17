package viewer

import (
	"context"

	"classwork/internal/ai"
	"classwork/internal/assignment"
	"classwork/internal/lifecycle"
	"classwork/internal/models"
	"classwork/internal/storage"
)

// LecturerView sees the projects the lecturer created.
type LecturerView struct {
	*base
}

var (
	_ Viewer        = (*LecturerView)(nil)
	_ ProjectAuthor = (*LecturerView)(nil)
)

// NewLecturerView builds the view for a lecturer.
func NewLecturerView(user models.User, deps Deps) *LecturerView {
	return &LecturerView{base: &base{
		user:  user,
		deps:  deps,
		scope: storage.ProjectFilter{CreatedBy: user.ID},
		owns:  func(p models.Project) bool { return p.CreatedBy == user.ID },
	}}
}

// CreateProject creates a project owned by the lecturer.
func (v *LecturerView) CreateProject(ctx context.Context, np lifecycle.NewProject) (string, error) {
	np.CreatedBy = v.user.ID
	return v.deps.Manager.CreateProject(ctx, np)
}

// DeleteProject deletes one of the lecturer's projects with everything under it.
func (v *LecturerView) DeleteProject(ctx context.Context, projectID string) error {
	if _, err := v.project(ctx, projectID); err != nil {
		return err
	}
	return v.deps.Manager.DeleteProject(ctx, projectID, v.user.ID)
}

// SetProjectStatus overwrites the status of one of the lecturer's projects.
func (v *LecturerView) SetProjectStatus(ctx context.Context, projectID string, status models.Status, opts ...lifecycle.WriteOption) error {
	if _, err := v.project(ctx, projectID); err != nil {
		return err
	}
	return v.deps.Manager.UpdateProjectStatus(ctx, projectID, status, v.user.ID, opts...)
}

// Workloads counts every student's open projects among the lecturer's.
func (v *LecturerView) Workloads(ctx context.Context) ([]ai.Workload, error) {
	projects, students, err := v.roster(ctx)
	if err != nil {
		return nil, err
	}
	return assignment.Workloads(projects, students), nil
}

// SuggestBreakdown asks for seed task titles for a project being drafted.
func (v *LecturerView) SuggestBreakdown(ctx context.Context, title, description string) ([]string, error) {
	return v.deps.Suggester.SuggestTaskBreakdown(ctx, title, description)
}

// SuggestPriorities asks for a priority for each open project and student.
func (v *LecturerView) SuggestPriorities(ctx context.Context) ([]ai.PrioritySuggestion, error) {
	projects, students, err := v.roster(ctx)
	if err != nil {
		return nil, err
	}
	return v.deps.Suggester.SuggestPriority(ctx, assignment.PriorityInputs(projects), assignment.Workloads(projects, students))
}

func (v *LecturerView) roster(ctx context.Context) ([]models.Project, []models.User, error) {
	projects, err := v.deps.Manager.ListProjects(ctx, v.scope)
	if err != nil {
		return nil, nil, err
	}
	students, err := v.deps.Manager.ListUsers(ctx, models.RoleStudent)
	if err != nil {
		return nil, nil, err
	}
	return projects, students, nil
}
