package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classwork/internal/ai"
	"classwork/internal/lifecycle"
	"classwork/internal/models"
	"classwork/internal/storage/sqlite"
	"classwork/internal/viewer"
)

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type stubSuggester struct {
	ai.Disabled
}

func (stubSuggester) SuggestTaskBreakdown(context.Context, string, string) ([]string, error) {
	return []string{"Literature Review", "Draft Outline"}, nil
}

type testAPI struct {
	t       *testing.T
	server  *Server
	manager *lifecycle.Manager
}

func newTestAPI(t *testing.T, suggester ai.Suggester) testAPI {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "classwork.db"), nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	m := lifecycle.New(store, nil, lifecycle.WithClock(func() time.Time { return testNow }))
	a := testAPI{t: t, manager: m, server: New(viewer.Deps{Manager: m, Suggester: suggester}, nil, "")}

	for _, u := range []lifecycle.NewUser{
		{ID: "l1", Name: "Dr Lee", Email: "lee@uni.test", Role: models.RoleLecturer},
		{ID: "s1", Name: "Ada", Email: "ada@uni.test", Role: models.RoleStudent},
		{ID: "s2", Name: "Bo", Email: "bo@uni.test", Role: models.RoleStudent},
	} {
		rec := a.do(http.MethodPost, "/api/users", "", u)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	return a
}

func (a testAPI) do(method, path, user string, body any, headers ...string) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.server.Engine().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type projectEnvelope struct {
	Project viewer.ProjectCard `json:"project"`
}

type taskEnvelope struct {
	Task models.Task `json:"task"`
}

type errorEnvelope struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

func (a testAPI) createProject(seed ...string) viewer.ProjectCard {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/projects", "l1", body{
		"title":       "Research Paper",
		"description": "Write a short research paper on distributed systems.",
		"deadline":    testNow.Add(14 * 24 * time.Hour),
		"assignedTo":  []string{"s1", "s2"},
		"seedTasks":   seed,
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[projectEnvelope](a.t, rec).Project
}

type body = map[string]any

func TestHealth(t *testing.T) {
	a := newTestAPI(t, nil)
	rec := a.do(http.MethodGet, "/api/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestIdentify(t *testing.T) {
	a := newTestAPI(t, nil)

	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/api/me", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/api/me", "ghost", nil).Code)

	rec := a.do(http.MethodGet, "/api/me", "s1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[struct {
		User models.User `json:"user"`
	}](t, rec)
	assert.Equal(t, "Ada", me.User.Name)
	assert.Equal(t, models.RoleStudent, me.User.Role)
}

func TestRegisterUserValidation(t *testing.T) {
	a := newTestAPI(t, nil)

	rec := a.do(http.MethodPost, "/api/users", "", body{"id": "x", "name": "X", "email": "nope", "role": "student"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errBody := decode[errorEnvelope](t, rec)
	assert.Contains(t, errBody.Fields, "email")

	rec = a.do(http.MethodPost, "/api/users", "", body{"id": "s1", "name": "Other", "email": "other@uni.test", "role": "lecturer"})
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = a.do(http.MethodGet, "/api/users?role=student", "l1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	users := decode[struct {
		Users []models.User `json:"users"`
	}](t, rec)
	assert.Len(t, users.Users, 2)

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/api/users?role=admin", "l1", nil).Code)
}

func TestCreateProject(t *testing.T) {
	a := newTestAPI(t, nil)

	card := a.createProject("Literature Review", "Draft Outline")
	assert.Equal(t, models.StatusInProgress, card.Status)
	assert.Equal(t, "l1", card.CreatedBy)
	assert.Equal(t, []string{"Ada", "Bo"}, card.AssigneeNames)
	assert.Equal(t, models.DeadlineOnTrack, card.Badge.State)

	rec := a.do(http.MethodGet, "/api/projects/"+card.ID+"/tasks", "s2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tasks := decode[struct {
		Tasks []lifecycle.TaskNode `json:"tasks"`
	}](t, rec)
	require.Len(t, tasks.Tasks, 2)
	assert.Equal(t, models.StatusPending, tasks.Tasks[0].Status)

	rec = a.do(http.MethodPost, "/api/projects", "s1", body{"title": "Mine"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodPost, "/api/projects", "l1", body{
		"title":       "ab",
		"description": "Write a short research paper.",
		"deadline":    testNow.Add(time.Hour),
		"assignedTo":  []string{},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errBody := decode[errorEnvelope](t, rec)
	assert.Contains(t, errBody.Fields, "title")
	assert.Contains(t, errBody.Fields, "assignedTo")
}

func TestProjectNotFoundAndForbidden(t *testing.T) {
	a := newTestAPI(t, nil)
	_, err := a.manager.RegisterUser(context.Background(), lifecycle.NewUser{ID: "s3", Name: "Cy", Email: "cy@uni.test", Role: models.RoleStudent})
	require.NoError(t, err)
	card := a.createProject()

	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/api/projects/missing", "s1", nil).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/api/projects/"+card.ID, "s3", nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/api/nothing", "s1", nil).Code)
}

func TestConditionalProjectStatus(t *testing.T) {
	a := newTestAPI(t, nil)
	card := a.createProject()

	rec := a.do(http.MethodGet, "/api/projects/"+card.ID, "l1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tag := rec.Header().Get("ETag")
	assert.Equal(t, `"1"`, tag)

	path := "/api/projects/" + card.ID + "/status"
	rec = a.do(http.MethodPut, path, "l1", body{"status": "In Progress"}, "If-Match", tag)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(2), decode[projectEnvelope](t, rec).Project.Version)

	rec = a.do(http.MethodPut, path, "l1", body{"status": "Completed"}, "If-Match", tag)
	assert.Equal(t, http.StatusConflict, rec.Code)

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPut, path, "l1", body{"status": "Completed"}, "If-Match", "abc").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, a.do(http.MethodPut, path, "l1", body{"status": "Done"}).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPut, path, "s1", body{"status": "Completed"}).Code)
}

func TestSubmitFlow(t *testing.T) {
	a := newTestAPI(t, nil)
	card := a.createProject("Literature Review", "Draft Outline")

	rec := a.do(http.MethodGet, "/api/projects/"+card.ID+"/tasks", "s1", nil)
	tasks := decode[struct {
		Tasks []lifecycle.TaskNode `json:"tasks"`
	}](t, rec).Tasks
	require.Len(t, tasks, 2)

	rec = a.do(http.MethodPut, "/api/tasks/"+tasks[0].ID+"/status", "s1", body{"status": "Completed"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StatusCompleted, decode[taskEnvelope](t, rec).Task.Status)

	submit := "/api/projects/" + card.ID + "/submit"
	rec = a.do(http.MethodPost, submit, "s1", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode[errorEnvelope](t, rec).Fields, "tasks")

	rec = a.do(http.MethodPut, "/api/tasks/"+tasks[1].ID+"/status", "s2", body{"status": "Completed"})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, submit, "l1", nil).Code)

	rec = a.do(http.MethodPost, submit, "s1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.StatusCompleted, decode[projectEnvelope](t, rec).Project.Status)

	rec = a.do(http.MethodGet, "/api/projects/"+card.ID+"/activity", "l1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	activity := decode[struct {
		Activity []models.Activity `json:"activity"`
	}](t, rec).Activity
	assert.Len(t, activity, 4)
}

func TestTasksAndComments(t *testing.T) {
	a := newTestAPI(t, nil)
	card := a.createProject()

	rec := a.do(http.MethodPost, "/api/projects/"+card.ID+"/tasks", "s1", body{"title": "Collect sources"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	task := decode[taskEnvelope](t, rec).Task
	assert.Equal(t, "s1", task.CreatedBy)

	rec = a.do(http.MethodGet, "/api/projects/"+card.ID, "s1", nil)
	assert.Equal(t, models.StatusInProgress, decode[projectEnvelope](t, rec).Project.Status)

	rec = a.do(http.MethodPost, "/api/projects/"+card.ID+"/tasks", "s1", body{"title": "Sub", "parentId": "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(http.MethodPost, "/api/tasks/"+task.ID+"/comments", "s2", body{"text": "I can help"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	comment := decode[struct {
		Comment models.Comment `json:"comment"`
	}](t, rec).Comment
	assert.Equal(t, "Bo", comment.UserName)
	assert.Equal(t, "I can help", comment.Text)

	rec = a.do(http.MethodPost, "/api/tasks/"+task.ID+"/comments", "s2", body{"text": " "})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = a.do(http.MethodGet, "/api/tasks/"+task.ID+"/comments", "l1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	comments := decode[struct {
		Comments []models.Comment `json:"comments"`
	}](t, rec).Comments
	require.Len(t, comments, 1)
	assert.Equal(t, "s2", comments[0].UserID)

	rec = a.do(http.MethodDelete, "/api/projects/"+card.ID, "l1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/api/tasks/"+task.ID+"/comments", "l1", nil).Code)
}

func TestSuggestionsUnavailable(t *testing.T) {
	a := newTestAPI(t, nil)

	rec := a.do(http.MethodPost, "/api/suggestions/breakdown", "l1", body{"title": "Paper", "description": "A paper"})
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "could not generate suggestions", decode[errorEnvelope](t, rec).Error)

	rec = a.do(http.MethodPost, "/api/suggestions/order", "s1", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "no open projects means nothing to order")

	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, "/api/suggestions/priorities", "s1", nil).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/api/workloads", "s1", nil).Code)
}

func TestSuggestBreakdown(t *testing.T) {
	a := newTestAPI(t, stubSuggester{})

	rec := a.do(http.MethodPost, "/api/suggestions/breakdown", "l1", body{"title": "Paper", "description": "A paper"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"tasks":["Literature Review","Draft Outline"]}`, rec.Body.String())

	a.createProject()
	rec = a.do(http.MethodGet, "/api/workloads", "l1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"workloads":[{"studentId":"s1","activeCount":1},{"studentId":"s2","activeCount":1}]}`, rec.Body.String())
}

func TestProjectStream(t *testing.T) {
	a := newTestAPI(t, nil)
	ts := httptest.NewServer(a.server.Engine())
	t.Cleanup(ts.Close)

	lines := openStream(t, ts, "/api/projects/stream", "s1")

	first := nextData(t, lines)
	assert.Equal(t, "[]", first)

	a.createProject()
	require.Eventually(t, func() bool {
		data, err := tryData(lines)
		if err != nil {
			return false
		}
		var cards []viewer.ProjectCard
		return json.Unmarshal([]byte(data), &cards) == nil && len(cards) == 1
	}, 3*time.Second, 10*time.Millisecond)
}

func TestCommentStream(t *testing.T) {
	a := newTestAPI(t, nil)
	card := a.createProject("Literature Review")
	rec := a.do(http.MethodGet, "/api/projects/"+card.ID+"/tasks", "s1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tasks := decode[struct {
		Tasks []lifecycle.TaskNode `json:"tasks"`
	}](t, rec).Tasks
	require.Len(t, tasks, 1)
	path := "/api/tasks/" + tasks[0].ID + "/comments/stream"

	ts := httptest.NewServer(a.server.Engine())
	t.Cleanup(ts.Close)

	lines := openStream(t, ts, path, "l1")
	assert.Equal(t, "[]", nextData(t, lines))

	rec = a.do(http.MethodPost, "/api/tasks/"+tasks[0].ID+"/comments", "s2", body{"text": "I can help"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Eventually(t, func() bool {
		data, err := tryData(lines)
		if err != nil {
			return false
		}
		var comments []models.Comment
		return json.Unmarshal([]byte(data), &comments) == nil && len(comments) == 1 && comments[0].UserName == "Bo"
	}, 3*time.Second, 10*time.Millisecond)

	a.do(http.MethodPost, "/api/users", "", lifecycle.NewUser{ID: "s3", Name: "Cy", Email: "cy@uni.test", Role: models.RoleStudent})
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, path, "s3", nil).Code)
}

// openStream starts an SSE request and feeds the response lines into a channel.
func openStream(t *testing.T, ts *httptest.Server, path, user string) <-chan string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+path, nil)
	require.NoError(t, err)
	req.Header.Set(UserHeader, user)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

func nextData(t *testing.T, lines <-chan string) string {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			require.True(t, ok, "stream ended")
			if data, found := strings.CutPrefix(line, "data:"); found {
				return strings.TrimSpace(data)
			}
		case <-deadline:
			t.Fatal("timed out waiting for event")
		}
	}
}

var errNoData = errors.New("no data yet")

func tryData(lines <-chan string) (string, error) {
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return "", errNoData
			}
			if data, found := strings.CutPrefix(line, "data:"); found {
				return strings.TrimSpace(data), nil
			}
		default:
			return "", errNoData
		}
	}
}
