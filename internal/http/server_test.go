package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	internal_http "github.com/ignatij/goschedule/internal/http"
	"github.com/ignatij/goschedule/pkg/gantt"
	"github.com/ignatij/goschedule/pkg/models"
	"github.com/ignatij/goschedule/pkg/service"
	"github.com/ignatij/goschedule/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logger struct{}

func (logger) Infof(string, ...interface{})  {}
func (logger) Warnf(string, ...interface{})  {}
func (logger) Errorf(string, ...interface{}) {}

type errorBody struct {
	Error   string   `json:"error"`
	Kind    string   `json:"kind"`
	TaskIDs []string `json:"task_ids"`
	Path    []string `json:"path"`
}

func TestServer(t *testing.T) {
	today := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	newServer := func(t *testing.T) *httptest.Server {
		svc := service.NewScheduleService(storage.NewMockStore(), logger{},
			service.WithClock(func() time.Time { return today }))
		srv := httptest.NewServer(internal_http.NewHandler(svc))
		t.Cleanup(srv.Close)
		return srv
	}

	do := func(t *testing.T, srv *httptest.Server, method, path, body string) (int, []byte) {
		t.Helper()
		var reader io.Reader
		if body != "" {
			reader = bytes.NewBufferString(body)
		}
		req, err := http.NewRequest(method, srv.URL+path, reader)
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		out, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, out
	}

	createProject := func(t *testing.T, srv *httptest.Server) int64 {
		t.Helper()
		status, body := do(t, srv, "POST", "/projects", `{"name": "Site A", "start_date": "2024-01-01"}`)
		require.Equal(t, http.StatusCreated, status, string(body))
		var resp struct {
			ID int64 `json:"id"`
		}
		require.NoError(t, json.Unmarshal(body, &resp))
		return resp.ID
	}

	addTask := func(t *testing.T, srv *httptest.Server, projectID int64, body string) {
		t.Helper()
		status, out := do(t, srv, "POST", fmt.Sprintf("/projects/%d/tasks", projectID), body)
		require.Equal(t, http.StatusCreated, status, string(out))
	}

	decodeError := func(t *testing.T, body []byte) errorBody {
		t.Helper()
		var e errorBody
		require.NoError(t, json.Unmarshal(body, &e), string(body))
		return e
	}

	t.Run("HealthCheck", func(t *testing.T) {
		srv := newServer(t)
		status, body := do(t, srv, "GET", "/health", "")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "GoSchedule server is running", string(body))
	})

	t.Run("CreateProject", func(t *testing.T) {
		srv := newServer(t)
		status, body := do(t, srv, "POST", "/projects", `{"name": "Site A", "start_date": "2024-01-01"}`)
		assert.Equal(t, http.StatusCreated, status)
		assert.Equal(t, `{"id":1,"message":"Created project 'Site A' with ID 1"}`+"\n", string(body))
	})

	t.Run("CreateProjectMissingName", func(t *testing.T) {
		srv := newServer(t)
		status, body := do(t, srv, "POST", "/projects", `{"name": "", "start_date": "2024-01-01"}`)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "{\"error\":\"Missing 'name' parameter\"}\n", string(body))
	})

	t.Run("CreateProjectEndBeforeStart", func(t *testing.T) {
		srv := newServer(t)
		status, body := do(t, srv, "POST", "/projects", `{"name": "B", "start_date": "2024-02-01", "end_date": "2024-01-01"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, status)
		assert.Equal(t, "invalid project", decodeError(t, body).Kind)
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		srv := newServer(t)
		status, body := do(t, srv, "POST", "/projects", `{"name":`)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "{\"error\":\"Invalid JSON body\"}\n", string(body))
	})

	t.Run("ListEmptyProjects", func(t *testing.T) {
		srv := newServer(t)
		status, body := do(t, srv, "GET", "/projects", "")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "[]\n", string(body))
	})

	t.Run("ScheduleLifecycle", func(t *testing.T) {
		srv := newServer(t)
		id := createProject(t, srv)
		addTask(t, srv, id, `{"id": "A", "name": "Excavation", "start_date": "2024-01-01", "due_date": "2024-01-03"}`)
		addTask(t, srv, id, `{"id": "B", "name": "Footings", "start_date": "2024-01-01", "due_date": "2024-01-02", "priority": "HIGH"}`)

		status, body := do(t, srv, "POST", fmt.Sprintf("/projects/%d/dependencies", id),
			`{"predecessor_id": "A", "successor_id": "B", "type": "finish_to_start"}`)
		require.Equal(t, http.StatusCreated, status, string(body))
		var created struct {
			ID       string                  `json:"id"`
			Schedule models.ScheduleSnapshot `json:"schedule"`
		}
		require.NoError(t, json.Unmarshal(body, &created))
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, []string{"A", "B"}, created.Schedule.CriticalPath)

		status, body = do(t, srv, "GET", fmt.Sprintf("/projects/%d/schedule", id), "")
		require.Equal(t, http.StatusOK, status)
		var snap models.ScheduleSnapshot
		require.NoError(t, json.Unmarshal(body, &snap))
		b, ok := snap.Task("B")
		require.True(t, ok)
		assert.Equal(t, "2024-01-03", b.EarliestStart.Format(models.DateLayout))
		assert.Equal(t, 3, snap.DurationDays)

		// Closing the loop is rejected with the offending path.
		status, body = do(t, srv, "POST", fmt.Sprintf("/projects/%d/dependencies", id),
			`{"predecessor_id": "B", "successor_id": "A"}`)
		assert.Equal(t, http.StatusConflict, status)
		e := decodeError(t, body)
		assert.Equal(t, "cycle detected", e.Kind)
		assert.Equal(t, []string{"B", "A", "B"}, e.Path)

		status, body = do(t, srv, "GET", fmt.Sprintf("/projects/%d/gantt", id), "")
		require.Equal(t, http.StatusOK, status)
		var records []gantt.Record
		require.NoError(t, json.Unmarshal(body, &records))
		require.Len(t, records, 2)
		assert.Equal(t, "B", records[1].ID)
		assert.Equal(t, "A", records[1].Dependencies)
		assert.Equal(t, gantt.CriticalClass, records[1].CustomClass)

		status, body = do(t, srv, "GET", fmt.Sprintf("/projects/%d/history", id), "")
		require.Equal(t, http.StatusOK, status)
		var history []models.MutationLog
		require.NoError(t, json.Unmarshal(body, &history))
		ops := make([]string, 0, len(history))
		for _, h := range history {
			ops = append(ops, h.Operation)
		}
		assert.Equal(t, []string{models.OpCreateTask, models.OpCreateTask, models.OpAddEdge}, ops)

		status, body = do(t, srv, "DELETE", fmt.Sprintf("/projects/%d/dependencies/%s", id, created.ID), "")
		require.Equal(t, http.StatusOK, status, string(body))
		require.NoError(t, json.Unmarshal(body, &snap))
		b, _ = snap.Task("B")
		assert.Equal(t, "2024-01-01", b.EarliestStart.Format(models.DateLayout))

		status, _ = do(t, srv, "DELETE", fmt.Sprintf("/projects/%d/dependencies/%s", id, created.ID), "")
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("Hierarchy", func(t *testing.T) {
		srv := newServer(t)
		id := createProject(t, srv)
		addTask(t, srv, id, `{"id": "P", "name": "Structure", "start_date": "2024-01-01", "due_date": "2024-01-10"}`)
		addTask(t, srv, id, `{"id": "C1", "name": "Columns", "start_date": "2024-01-01", "due_date": "2024-01-02", "parent_id": "P"}`)
		addTask(t, srv, id, `{"id": "C2", "name": "Slab", "start_date": "2024-01-01", "due_date": "2024-01-04"}`)

		status, body := do(t, srv, "PUT", fmt.Sprintf("/projects/%d/tasks/C2/parent", id), `{"parent_id": "P"}`)
		require.Equal(t, http.StatusOK, status, string(body))

		status, body = do(t, srv, "PATCH", fmt.Sprintf("/projects/%d/tasks/C2", id), `{"progress": 100}`)
		require.Equal(t, http.StatusOK, status, string(body))
		var snap models.ScheduleSnapshot
		require.NoError(t, json.Unmarshal(body, &snap))
		p, ok := snap.Task("P")
		require.True(t, ok)
		assert.Equal(t, 75.0, p.Progress)

		status, body = do(t, srv, "GET", fmt.Sprintf("/projects/%d/tasks/P", id), "")
		require.Equal(t, http.StatusOK, status, string(body))
		var stored models.Task
		require.NoError(t, json.Unmarshal(body, &stored))
		assert.Equal(t, 75.0, stored.Progress, "derived progress is written back")
		assert.Equal(t, models.InProgressTaskStatus, stored.Status)

		status, body = do(t, srv, "GET", fmt.Sprintf("/projects/%d/tasks/nope", id), "")
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, models.ErrUnknownTask.Error(), decodeError(t, body).Kind)

		status, body = do(t, srv, "PATCH", fmt.Sprintf("/projects/%d/tasks/P", id), `{"progress": 10}`)
		assert.Equal(t, http.StatusUnprocessableEntity, status)
		assert.Equal(t, models.ErrDerivedProgress.Error(), decodeError(t, body).Kind)

		status, body = do(t, srv, "PUT", fmt.Sprintf("/projects/%d/tasks/P/parent", id), `{"parent_id": "C1"}`)
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, []string{"C1", "P", "C1"}, decodeError(t, body).Path)

		status, _ = do(t, srv, "DELETE", fmt.Sprintf("/projects/%d/tasks/P", id), "")
		assert.Equal(t, http.StatusConflict, status)

		status, body = do(t, srv, "DELETE", fmt.Sprintf("/projects/%d/tasks/C1", id), "")
		require.Equal(t, http.StatusOK, status, string(body))
		require.NoError(t, json.Unmarshal(body, &snap))
		assert.Len(t, snap.Tasks, 2)
	})

	t.Run("BadRequests", func(t *testing.T) {
		srv := newServer(t)
		id := createProject(t, srv)

		tests := []struct {
			name   string
			method string
			path   string
			body   string
			status int
		}{
			{"non numeric project", "GET", "/projects/abc/schedule", "", http.StatusBadRequest},
			{"unknown project", "GET", "/projects/99/schedule", "", http.StatusNotFound},
			{"project without tasks", "GET", fmt.Sprintf("/projects/%d/schedule", id), "", http.StatusNotFound},
			{"missing due date", "POST", fmt.Sprintf("/projects/%d/tasks", id), `{"name": "X", "start_date": "2024-01-01"}`, http.StatusBadRequest},
			{"bad date", "POST", fmt.Sprintf("/projects/%d/tasks", id), `{"name": "X", "start_date": "01/01/2024", "due_date": "2024-01-02"}`, http.StatusBadRequest},
			{"due before start", "POST", fmt.Sprintf("/projects/%d/tasks", id), `{"name": "X", "start_date": "2024-01-05", "due_date": "2024-01-02"}`, http.StatusUnprocessableEntity},
			{"unknown dependency type", "POST", fmt.Sprintf("/projects/%d/dependencies", id), `{"predecessor_id": "a", "successor_id": "b", "type": "XX"}`, http.StatusUnprocessableEntity},
			{"unknown tasks", "POST", fmt.Sprintf("/projects/%d/dependencies", id), `{"predecessor_id": "a", "successor_id": "b"}`, http.StatusNotFound},
			{"missing endpoints", "POST", fmt.Sprintf("/projects/%d/dependencies", id), `{"predecessor_id": "a"}`, http.StatusBadRequest},
			{"unknown task update", "PATCH", fmt.Sprintf("/projects/%d/tasks/nope", id), `{"name": "Y"}`, http.StatusNotFound},
			{"wrong method", "PUT", "/projects", "", http.StatusMethodNotAllowed},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				status, body := do(t, srv, tt.method, tt.path, tt.body)
				assert.Equal(t, tt.status, status, string(body))
			})
		}
	})

	t.Run("Refresh", func(t *testing.T) {
		srv := newServer(t)
		id := createProject(t, srv)
		addTask(t, srv, id, `{"id": "A", "name": "Excavation", "start_date": "2024-01-01", "due_date": "2024-01-03"}`)

		status, body := do(t, srv, "POST", "/refresh", "")
		require.Equal(t, http.StatusOK, status, string(body))
		var snaps map[string]models.ScheduleSnapshot
		require.NoError(t, json.Unmarshal(body, &snaps))
		assert.Contains(t, snaps, fmt.Sprint(id))
	})
}
