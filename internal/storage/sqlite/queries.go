package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"classwork/internal/models"
	"classwork/internal/realtime"
	"classwork/internal/storage"
)

// queries runs against either the pool or an open transaction.
type queries struct {
	db     sqlx.ExtContext
	record func(realtime.Change)
}

const (
	userColumns     = `id, name, email, role, lecturer_id, created_at`
	projectColumns  = `id, title, description, deadline, created_by, status, grade, version, created_at, updated_at`
	taskColumns     = `id, project_id, parent_id, title, status, created_by, due_date, grade, version, created_at, updated_at`
	commentColumns  = `id, task_id, user_id, user_name, user_image, text, created_at`
	activityColumns = `id, project_id, task_id, user_id, action, created_at`
)

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
}

// GetUser fetches a single user by id.
func (q *queries) GetUser(ctx context.Context, id string) (models.User, error) {
	var u models.User
	err := sqlx.GetContext(ctx, q.db, &u, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, notFound("user", id)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// ListUsers returns users ordered by name, optionally restricted to a role.
func (q *queries) ListUsers(ctx context.Context, role models.Role) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	var args []any
	if role != "" {
		query += ` WHERE role = ?`
		args = append(args, role)
	}
	query += ` ORDER BY name, id`

	users := []models.User{}
	if err := sqlx.SelectContext(ctx, q.db, &users, query, args...); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// ListUsersByID returns the users that exist among ids. Unknown ids are skipped.
func (q *queries) ListUsersByID(ctx context.Context, ids []string) ([]models.User, error) {
	users := []models.User{}
	if len(ids) == 0 {
		return users, nil
	}
	query, args, err := sqlx.In(`SELECT `+userColumns+` FROM users WHERE id IN (?) ORDER BY name, id`, ids)
	if err != nil {
		return nil, fmt.Errorf("list users by id: %w", err)
	}
	if err := sqlx.SelectContext(ctx, q.db, &users, q.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list users by id: %w", err)
	}
	return users, nil
}

// InsertUser persists a user profile.
func (q *queries) InsertUser(ctx context.Context, u models.User) error {
	_, err := sqlx.NamedExecContext(ctx, q.db, `INSERT INTO users(`+userColumns+`)
        VALUES(:id, :name, :email, :role, :lecturer_id, :created_at)`, u)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	q.record(realtime.Change{Collection: realtime.CollectionUsers, Op: realtime.OpCreated, ID: u.ID})
	return nil
}

// GetProject fetches a single project with its assignees.
func (q *queries) GetProject(ctx context.Context, id string) (models.Project, error) {
	var p models.Project
	err := sqlx.GetContext(ctx, q.db, &p, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Project{}, notFound("project", id)
	}
	if err != nil {
		return models.Project{}, fmt.Errorf("get project: %w", err)
	}

	projects := []models.Project{p}
	if err := q.loadAssignees(ctx, projects); err != nil {
		return models.Project{}, err
	}
	return projects[0], nil
}

// ListProjects retrieves projects matching filter ordered by creation date.
func (q *queries) ListProjects(ctx context.Context, filter storage.ProjectFilter) ([]models.Project, error) {
	var (
		where []string
		args  []any
	)
	if filter.CreatedBy != "" {
		where = append(where, `p.created_by = ?`)
		args = append(args, filter.CreatedBy)
	}
	if filter.AssignedTo != "" {
		where = append(where, `EXISTS (SELECT 1 FROM project_assignees a WHERE a.project_id = p.id AND a.user_id = ?)`)
		args = append(args, filter.AssignedTo)
	}
	if filter.Status != "" {
		where = append(where, `p.status = ?`)
		args = append(args, filter.Status)
	}

	query := `SELECT ` + prefixed("p", projectColumns) + ` FROM projects p`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY p.created_at ASC, p.rowid ASC`

	projects := []models.Project{}
	if err := sqlx.SelectContext(ctx, q.db, &projects, query, args...); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	if err := q.loadAssignees(ctx, projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (q *queries) loadAssignees(ctx context.Context, projects []models.Project) error {
	if len(projects) == 0 {
		return nil
	}
	ids := make([]string, len(projects))
	index := make(map[string]int, len(projects))
	for i, p := range projects {
		ids[i] = p.ID
		index[p.ID] = i
		projects[i].AssignedTo = []string{}
	}

	query, args, err := sqlx.In(`SELECT project_id, user_id FROM project_assignees
        WHERE project_id IN (?) ORDER BY project_id, position`, ids)
	if err != nil {
		return fmt.Errorf("load assignees: %w", err)
	}
	var rows []struct {
		ProjectID string `db:"project_id"`
		UserID    string `db:"user_id"`
	}
	if err := sqlx.SelectContext(ctx, q.db, &rows, q.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("load assignees: %w", err)
	}
	for _, r := range rows {
		i := index[r.ProjectID]
		projects[i].AssignedTo = append(projects[i].AssignedTo, r.UserID)
	}
	return nil
}

// InsertProject persists a project together with its assignee rows.
func (q *queries) InsertProject(ctx context.Context, p models.Project) error {
	_, err := sqlx.NamedExecContext(ctx, q.db, `INSERT INTO projects(`+projectColumns+`)
        VALUES(:id, :title, :description, :deadline, :created_by, :status, :grade, :version, :created_at, :updated_at)`, p)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	for i, userID := range p.AssignedTo {
		if _, err := q.db.ExecContext(ctx, `INSERT INTO project_assignees(project_id, user_id, position) VALUES(?, ?, ?)`, p.ID, userID, i); err != nil {
			return fmt.Errorf("insert project assignee: %w", err)
		}
	}
	q.record(realtime.Change{Collection: realtime.CollectionProjects, Op: realtime.OpCreated, ID: p.ID})
	return nil
}

// UpdateProjectStatus overwrites the project status and bumps its version.
func (q *queries) UpdateProjectStatus(ctx context.Context, u storage.StatusUpdate) error {
	if err := q.updateStatus(ctx, "projects", "project", u); err != nil {
		return err
	}
	q.record(realtime.Change{Collection: realtime.CollectionProjects, Op: realtime.OpUpdated, ID: u.ID})
	return nil
}

// DeleteProject removes the project document and its assignee rows only.
func (q *queries) DeleteProject(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound("project", id)
	}
	if _, err := q.db.ExecContext(ctx, `DELETE FROM project_assignees WHERE project_id = ?`, id); err != nil {
		return fmt.Errorf("delete project assignees: %w", err)
	}
	q.record(realtime.Change{Collection: realtime.CollectionProjects, Op: realtime.OpDeleted, ID: id})
	return nil
}

// GetTask retrieves a task by id.
func (q *queries) GetTask(ctx context.Context, id string) (models.Task, error) {
	var t models.Task
	err := sqlx.GetContext(ctx, q.db, &t, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, notFound("task", id)
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListTasks returns the tasks and subtasks of a project ordered by creation.
func (q *queries) ListTasks(ctx context.Context, projectID string) ([]models.Task, error) {
	tasks := []models.Task{}
	err := sqlx.SelectContext(ctx, q.db, &tasks, `SELECT `+taskColumns+` FROM tasks
        WHERE project_id = ? ORDER BY created_at ASC, rowid ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// InsertTask persists a task.
func (q *queries) InsertTask(ctx context.Context, t models.Task) error {
	_, err := sqlx.NamedExecContext(ctx, q.db, `INSERT INTO tasks(`+taskColumns+`)
        VALUES(:id, :project_id, :parent_id, :title, :status, :created_by, :due_date, :grade, :version, :created_at, :updated_at)`, t)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	q.record(realtime.Change{Collection: realtime.CollectionTasks, Op: realtime.OpCreated, ID: t.ID})
	return nil
}

// UpdateTaskStatus overwrites the task status and bumps its version.
func (q *queries) UpdateTaskStatus(ctx context.Context, u storage.StatusUpdate) error {
	if err := q.updateStatus(ctx, "tasks", "task", u); err != nil {
		return err
	}
	q.record(realtime.Change{Collection: realtime.CollectionTasks, Op: realtime.OpUpdated, ID: u.ID})
	return nil
}

// DeleteTasksByProject removes every task of a project.
func (q *queries) DeleteTasksByProject(ctx context.Context, projectID string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM tasks WHERE project_id = ?`, projectID)
	if err != nil {
		return fmt.Errorf("delete tasks: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected > 0 {
		q.record(realtime.Change{Collection: realtime.CollectionTasks, Op: realtime.OpDeleted, ID: projectID})
	}
	return nil
}

// ListComments returns the comments of a task oldest first.
func (q *queries) ListComments(ctx context.Context, taskID string) ([]models.Comment, error) {
	comments := []models.Comment{}
	err := sqlx.SelectContext(ctx, q.db, &comments, `SELECT `+commentColumns+` FROM comments
        WHERE task_id = ? ORDER BY created_at ASC, rowid ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// InsertComment appends a comment.
func (q *queries) InsertComment(ctx context.Context, c models.Comment) error {
	_, err := sqlx.NamedExecContext(ctx, q.db, `INSERT INTO comments(`+commentColumns+`)
        VALUES(:id, :task_id, :user_id, :user_name, :user_image, :text, :created_at)`, c)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	q.record(realtime.Change{Collection: realtime.CollectionComments, Op: realtime.OpCreated, ID: c.ID})
	return nil
}

// DeleteCommentsByTasks removes the comments of every listed task.
func (q *queries) DeleteCommentsByTasks(ctx context.Context, taskIDs []string) error {
	if len(taskIDs) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM comments WHERE task_id IN (?)`, taskIDs)
	if err != nil {
		return fmt.Errorf("delete comments: %w", err)
	}
	res, err := q.db.ExecContext(ctx, q.db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("delete comments: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected > 0 {
		for _, id := range taskIDs {
			q.record(realtime.Change{Collection: realtime.CollectionComments, Op: realtime.OpDeleted, ID: id})
		}
	}
	return nil
}

// ListActivity returns the activity of a project oldest first.
func (q *queries) ListActivity(ctx context.Context, projectID string) ([]models.Activity, error) {
	entries := []models.Activity{}
	err := sqlx.SelectContext(ctx, q.db, &entries, `SELECT `+activityColumns+` FROM activity_logs
        WHERE project_id = ? ORDER BY created_at ASC, rowid ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return entries, nil
}

// InsertActivity appends an activity entry.
func (q *queries) InsertActivity(ctx context.Context, a models.Activity) error {
	_, err := sqlx.NamedExecContext(ctx, q.db, `INSERT INTO activity_logs(`+activityColumns+`)
        VALUES(:id, :project_id, :task_id, :user_id, :action, :created_at)`, a)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	q.record(realtime.Change{Collection: realtime.CollectionActivity, Op: realtime.OpCreated, ID: a.ID})
	return nil
}

// DeleteActivityByProject removes the activity entries of a project.
func (q *queries) DeleteActivityByProject(ctx context.Context, projectID string) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM activity_logs WHERE project_id = ?`, projectID); err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	q.record(realtime.Change{Collection: realtime.CollectionActivity, Op: realtime.OpDeleted, ID: projectID})
	return nil
}

func (q *queries) updateStatus(ctx context.Context, table, kind string, u storage.StatusUpdate) error {
	query := `UPDATE ` + table + ` SET status = ?, updated_at = ?, version = version + 1 WHERE id = ?`
	args := []any{u.Status, u.UpdatedAt, u.ID}
	if u.IfVersion > 0 {
		query += ` AND version = ?`
		args = append(args, u.IfVersion)
	}

	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s status: %w", kind, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var exists int
	err = sqlx.GetContext(ctx, q.db, &exists, `SELECT COUNT(1) FROM `+table+` WHERE id = ?`, u.ID)
	if err != nil {
		return fmt.Errorf("update %s status: %w", kind, err)
	}
	if exists == 0 {
		return notFound(kind, u.ID)
	}
	return fmt.Errorf("%s %s: %w", kind, u.ID, storage.ErrVersionConflict)
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, c := range parts {
		parts[i] = alias + "." + c
	}
	return strings.Join(parts, ", ")
}
