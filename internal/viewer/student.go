package viewer

import (
	"context"
	"fmt"

	"classwork/internal/ai"
	"classwork/internal/lifecycle"
	"classwork/internal/models"
	"classwork/internal/storage"
)

// StudentView sees the projects the student is assigned to.
type StudentView struct {
	*base
}

var (
	_ Viewer    = (*StudentView)(nil)
	_ Submitter = (*StudentView)(nil)
)

// NewStudentView builds the view for a student.
func NewStudentView(user models.User, deps Deps) *StudentView {
	return &StudentView{base: &base{
		user:  user,
		deps:  deps,
		scope: storage.ProjectFilter{AssignedTo: user.ID},
		owns:  func(p models.Project) bool { return p.IsAssigned(user.ID) },
	}}
}

// SubmitProject completes the project once it has tasks and all of them are Completed.
func (v *StudentView) SubmitProject(ctx context.Context, projectID string) error {
	if _, err := v.project(ctx, projectID); err != nil {
		return err
	}
	tasks, err := v.deps.Manager.ListTasks(ctx, projectID)
	if err != nil {
		return err
	}
	if !lifecycle.AllCompleted(tasks) {
		return lifecycle.NewValidationError(ErrIncompleteTasks, lifecycle.FieldError{
			Field: "tasks",
			Error: ErrIncompleteTasks.Error(),
		})
	}
	return v.deps.Manager.SubmitProject(ctx, projectID, v.user.ID)
}

// SuggestOrder asks for a working order. Without explicit tasks the
// student's open projects are ordered.
func (v *StudentView) SuggestOrder(ctx context.Context, tasks []ai.StudentTask, workload string) (ai.StudentOrder, error) {
	if len(tasks) == 0 {
		projects, err := v.deps.Manager.ListProjects(ctx, v.scope)
		if err != nil {
			return ai.StudentOrder{}, err
		}
		open := 0
		for _, p := range projects {
			if p.Status == models.StatusCompleted {
				continue
			}
			open++
			tasks = append(tasks, ai.StudentTask{Title: p.Title, Description: p.Description, Deadline: p.Deadline})
		}
		if workload == "" {
			workload = fmt.Sprintf("%d open projects", open)
		}
	}
	if len(tasks) == 0 {
		return ai.StudentOrder{Tasks: []string{}}, nil
	}
	return v.deps.Suggester.SuggestStudentOrder(ctx, tasks, workload)
}
