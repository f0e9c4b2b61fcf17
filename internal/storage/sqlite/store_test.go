package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classwork/internal/models"
	"classwork/internal/storage"
)

var testNow = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "data", "test.db"), nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newProject(id, createdBy string, assigned ...string) models.Project {
	return models.Project{
		ID:          id,
		Title:       "Project " + id,
		Description: "A description for " + id,
		Deadline:    testNow.Add(14 * 24 * time.Hour),
		CreatedBy:   createdBy,
		AssignedTo:  assigned,
		Status:      models.StatusPending,
		Version:     1,
		CreatedAt:   testNow,
		UpdatedAt:   testNow,
	}
}

func newTask(id, projectID string, parent *string) models.Task {
	return models.Task{
		ID:        id,
		ProjectID: projectID,
		ParentID:  parent,
		Title:     "Task " + id,
		Status:    models.StatusPending,
		CreatedBy: "s1",
		Version:   1,
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("", nil, nil)
	assert.Error(t, err)
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	lecturer := "l1"
	require.NoError(t, store.InsertUser(ctx, models.User{ID: "l1", Name: "Lee", Email: "lee@uni.test", Role: models.RoleLecturer, CreatedAt: testNow}))
	require.NoError(t, store.InsertUser(ctx, models.User{ID: "s2", Name: "Bo", Email: "bo@uni.test", Role: models.RoleStudent, LecturerID: &lecturer, CreatedAt: testNow}))
	require.NoError(t, store.InsertUser(ctx, models.User{ID: "s1", Name: "Ada", Email: "ada@uni.test", Role: models.RoleStudent, CreatedAt: testNow}))

	u, err := store.GetUser(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, u.Role)
	require.NotNil(t, u.LecturerID)
	assert.Equal(t, "l1", *u.LecturerID)
	assert.True(t, testNow.Equal(u.CreatedAt))

	students, err := store.ListUsers(ctx, models.RoleStudent)
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "Ada", students[0].Name)

	found, err := store.ListUsersByID(ctx, []string{"s1", "missing"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "s1", found[0].ID)

	_, err = store.GetUser(ctx, "missing")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestProjectQueries(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.InsertProject(ctx, newProject("p1", "l1", "s1", "s2")))
	require.NoError(t, store.InsertProject(ctx, newProject("p2", "l1", "s2")))
	require.NoError(t, store.InsertProject(ctx, newProject("p3", "l2", "s1")))

	p, err := store.GetProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, p.AssignedTo)
	assert.True(t, p.Deadline.Equal(testNow.Add(14*24*time.Hour)))

	byLecturer, err := store.ListProjects(ctx, storage.ProjectFilter{CreatedBy: "l1"})
	require.NoError(t, err)
	assert.Len(t, byLecturer, 2)

	byStudent, err := store.ListProjects(ctx, storage.ProjectFilter{AssignedTo: "s1"})
	require.NoError(t, err)
	require.Len(t, byStudent, 2)
	assert.Equal(t, "p1", byStudent[0].ID)
	assert.Equal(t, "p3", byStudent[1].ID)

	none, err := store.ListProjects(ctx, storage.ProjectFilter{CreatedBy: "l1", Status: models.StatusCompleted})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUpdateStatusVersions(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.InsertProject(ctx, newProject("p1", "l1", "s1")))

	later := testNow.Add(time.Hour)
	require.NoError(t, store.UpdateProjectStatus(ctx, storage.StatusUpdate{ID: "p1", Status: models.StatusInProgress, UpdatedAt: later, IfVersion: 1}))

	p, err := store.GetProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, p.Status)
	assert.Equal(t, int64(2), p.Version)
	assert.True(t, later.Equal(p.UpdatedAt))

	err = store.UpdateProjectStatus(ctx, storage.StatusUpdate{ID: "p1", Status: models.StatusPending, UpdatedAt: later, IfVersion: 1})
	assert.True(t, errors.Is(err, storage.ErrVersionConflict))

	err = store.UpdateTaskStatus(ctx, storage.StatusUpdate{ID: "missing", Status: models.StatusCompleted, UpdatedAt: later})
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.InsertProject(ctx, newProject("p1", "l1", "s1")); err != nil {
			return err
		}
		if err := tx.InsertTask(ctx, newTask("t1", "p1", nil)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.GetProject(ctx, "p1")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	_, err = store.GetTask(ctx, "t1")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestCommentsOrderedAndDeleted(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.InsertTask(ctx, newTask("t1", "p1", nil)))

	for _, text := range []string{"first", "second", "third"} {
		require.NoError(t, store.InsertComment(ctx, models.Comment{
			ID:        text,
			TaskID:    "t1",
			UserID:    "s1",
			UserName:  "Ada",
			Text:      text,
			CreatedAt: testNow,
		}))
	}

	comments, err := store.ListComments(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, comments, 3)
	assert.Equal(t, "first", comments[0].Text)
	assert.Equal(t, "third", comments[2].Text)

	require.NoError(t, store.DeleteCommentsByTasks(ctx, []string{"t1"}))
	comments, err = store.ListComments(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func TestSubscribeProjectsSeesCommittedWrites(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	snapshots := make(chan []models.Project, 4)

	sub := store.SubscribeProjects(ctx, storage.ProjectFilter{AssignedTo: "s1"}, func(projects []models.Project, err error) {
		assert.NoError(t, err)
		snapshots <- projects
	})
	defer sub.Close()

	assert.Empty(t, next(t, snapshots))

	require.NoError(t, store.WithTx(ctx, func(tx storage.Tx) error {
		return tx.InsertProject(ctx, newProject("p1", "l1", "s1"))
	}))
	got := next(t, snapshots)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].ID)
}

func next(t *testing.T, ch <-chan []models.Project) []models.Project {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}
