package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ignatij/goschedule/internal/log"
	"github.com/ignatij/goschedule/pkg/gantt"
	"github.com/ignatij/goschedule/pkg/models"
	"github.com/ignatij/goschedule/pkg/service"
	"github.com/pkg/errors"
)

// StartServer serves the schedule API on port until the listener fails.
func StartServer(port string, svc *service.ScheduleService) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           NewHandler(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.GetLogger().Infof("Starting GoSchedule server on :%s", port)
	return srv.ListenAndServe()
}

// NewHandler routes every endpoint of the schedule API.
func NewHandler(svc *service.ScheduleService) http.Handler {
	h := &handlers{svc: svc}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", HealthHandler)
	mux.HandleFunc("POST /projects", h.createProject)
	mux.HandleFunc("GET /projects", h.listProjects)
	mux.HandleFunc("GET /projects/{id}", h.getProject)
	mux.HandleFunc("GET /projects/{id}/schedule", h.getSchedule)
	mux.HandleFunc("GET /projects/{id}/gantt", h.getGantt)
	mux.HandleFunc("GET /projects/{id}/history", h.getHistory)
	mux.HandleFunc("POST /projects/{id}/tasks", h.createTask)
	mux.HandleFunc("GET /projects/{id}/tasks/{taskID}", h.getTask)
	mux.HandleFunc("PATCH /projects/{id}/tasks/{taskID}", h.updateTask)
	mux.HandleFunc("DELETE /projects/{id}/tasks/{taskID}", h.deleteTask)
	mux.HandleFunc("PUT /projects/{id}/tasks/{taskID}/parent", h.setParent)
	mux.HandleFunc("POST /projects/{id}/dependencies", h.createDependency)
	mux.HandleFunc("DELETE /projects/{id}/dependencies/{depID}", h.deleteDependency)
	mux.HandleFunc("POST /refresh", h.refresh)
	return mux
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "GoSchedule server is running")
}

type handlers struct {
	svc *service.ScheduleService
}

type errorResponse struct {
	Error   string   `json:"error"`
	Kind    string   `json:"kind,omitempty"`
	TaskIDs []string `json:"task_ids,omitempty"`
	Path    []string `json:"path,omitempty"`
}

type createdResponse struct {
	ID       interface{}              `json:"id"`
	Message  string                   `json:"message"`
	Schedule *models.ScheduleSnapshot `json:"schedule,omitempty"`
}

type projectRequest struct {
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date,omitempty"`
}

type taskRequest struct {
	ID        string  `json:"id,omitempty"`
	Name      string  `json:"name"`
	StartDate string  `json:"start_date"`
	DueDate   string  `json:"due_date"`
	Status    string  `json:"status,omitempty"`
	Priority  string  `json:"priority,omitempty"`
	Progress  float64 `json:"progress,omitempty"`
	ParentID  *string `json:"parent_id,omitempty"`
}

type taskPatchRequest struct {
	Name      *string  `json:"name,omitempty"`
	StartDate *string  `json:"start_date,omitempty"`
	DueDate   *string  `json:"due_date,omitempty"`
	Status    *string  `json:"status,omitempty"`
	Priority  *string  `json:"priority,omitempty"`
	Progress  *float64 `json:"progress,omitempty"`
}

type parentRequest struct {
	ParentID *string `json:"parent_id"`
}

type dependencyRequest struct {
	PredecessorID string `json:"predecessor_id"`
	SuccessorID   string `json:"successor_id"`
	Type          string `json:"type,omitempty"`
	Lag           int    `json:"lag"`
}

type refreshRequest struct {
	ProjectIDs []int64 `json:"project_ids,omitempty"`
}

func (h *handlers) createProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Missing 'name' parameter")
		return
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var end *time.Time
	if req.EndDate != "" {
		e, err := parseDate("end_date", req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		end = &e
	}
	id, err := h.svc.CreateProject(r.Context(), req.Name, start, end)
	if err != nil {
		writeServiceError(w, "Failed to create project", err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{
		ID:      id,
		Message: fmt.Sprintf("Created project '%s' with ID %d", req.Name, id),
	})
}

func (h *handlers) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.svc.ListProjects(r.Context())
	if err != nil {
		writeServiceError(w, "Failed to list projects", err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (h *handlers) getProject(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	project, err := h.svc.GetProject(r.Context(), id)
	if err != nil {
		writeServiceError(w, "Failed to get project", err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *handlers) getSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	snap, err := h.svc.GetSchedule(r.Context(), id)
	if err != nil {
		writeServiceError(w, "Failed to compute schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handlers) getGantt(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	snap, err := h.svc.GetSchedule(r.Context(), id)
	if err != nil {
		writeServiceError(w, "Failed to compute schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, gantt.Encode(snap))
}

func (h *handlers) getHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	logs, err := h.svc.History(r.Context(), id)
	if err != nil {
		writeServiceError(w, "Failed to load history", err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *handlers) createTask(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	var req taskRequest
	if !decode(w, r, &req) {
		return
	}
	task, err := req.task()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	taskID, snap, err := h.svc.ProposeTask(r.Context(), id, task)
	if err != nil {
		writeServiceError(w, "Failed to create task", err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{
		ID:       taskID,
		Message:  fmt.Sprintf("Created task '%s' with ID %s", task.Name, taskID),
		Schedule: snap,
	})
}

func (h *handlers) updateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	var req taskPatchRequest
	if !decode(w, r, &req) {
		return
	}
	patch, err := req.patch()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, err := h.svc.UpdateTask(r.Context(), id, r.PathValue("taskID"), patch)
	if err != nil {
		writeServiceError(w, "Failed to update task", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handlers) getTask(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	task, err := h.svc.GetTask(r.Context(), id, r.PathValue("taskID"))
	if err != nil {
		writeServiceError(w, "Failed to get task", err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *handlers) deleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	snap, err := h.svc.DeleteTask(r.Context(), id, r.PathValue("taskID"))
	if err != nil {
		writeServiceError(w, "Failed to delete task", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handlers) setParent(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	var req parentRequest
	if !decode(w, r, &req) {
		return
	}
	snap, err := h.svc.SetParent(r.Context(), id, r.PathValue("taskID"), req.ParentID)
	if err != nil {
		writeServiceError(w, "Failed to move task", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handlers) createDependency(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	var req dependencyRequest
	if !decode(w, r, &req) {
		return
	}
	if req.PredecessorID == "" || req.SuccessorID == "" {
		writeError(w, http.StatusBadRequest, "Missing 'predecessor_id' or 'successor_id' parameter")
		return
	}
	typ, err := models.ParseDependencyType(req.Type)
	if err != nil {
		writeServiceError(w, "Failed to add dependency", err)
		return
	}
	depID, snap, err := h.svc.ProposeEdge(r.Context(), id, req.PredecessorID, req.SuccessorID, typ, req.Lag)
	if err != nil {
		writeServiceError(w, "Failed to add dependency", err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{
		ID:       depID,
		Message:  fmt.Sprintf("Added %s dependency %s -> %s", typ, req.PredecessorID, req.SuccessorID),
		Schedule: snap,
	})
}

func (h *handlers) deleteDependency(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	snap, err := h.svc.RemoveEdge(r.Context(), id, r.PathValue("depID"))
	if err != nil {
		writeServiceError(w, "Failed to remove dependency", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if r.ContentLength > 0 && !decode(w, r, &req) {
		return
	}
	snaps, err := h.svc.RefreshSchedules(r.Context(), req.ProjectIDs...)
	if err != nil {
		writeServiceError(w, "Failed to refresh schedules", err)
		return
	}
	out := make(map[string]*models.ScheduleSnapshot, len(snaps))
	for id, snap := range snaps {
		out[strconv.FormatInt(id, 10)] = snap
	}
	writeJSON(w, http.StatusOK, out)
}

func (req taskRequest) task() (models.Task, error) {
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		return models.Task{}, err
	}
	due, err := parseDate("due_date", req.DueDate)
	if err != nil {
		return models.Task{}, err
	}
	t := models.Task{
		ID:        req.ID,
		Name:      req.Name,
		StartDate: start,
		DueDate:   due,
		Priority:  models.Priority(req.Priority),
		Progress:  req.Progress,
		ParentID:  req.ParentID,
	}
	if req.Status != "" {
		st, ok := models.ParseTaskStatus(req.Status)
		if !ok {
			return models.Task{}, fmt.Errorf("invalid status '%s'", req.Status)
		}
		t.Status = st
	}
	return t, nil
}

func (req taskPatchRequest) patch() (service.TaskPatch, error) {
	patch := service.TaskPatch{Name: req.Name, Progress: req.Progress}
	if req.StartDate != nil {
		d, err := parseDate("start_date", *req.StartDate)
		if err != nil {
			return patch, err
		}
		patch.StartDate = &d
	}
	if req.DueDate != nil {
		d, err := parseDate("due_date", *req.DueDate)
		if err != nil {
			return patch, err
		}
		patch.DueDate = &d
	}
	if req.Status != nil {
		st, ok := models.ParseTaskStatus(*req.Status)
		if !ok {
			return patch, fmt.Errorf("invalid status '%s'", *req.Status)
		}
		patch.Status = &st
	}
	if req.Priority != nil {
		p := models.Priority(*req.Priority)
		patch.Priority = &p
	}
	return patch, nil
}

func projectID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid project ID")
		return 0, false
	}
	return id, true
}

func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("Missing '%s' parameter", field)
	}
	d, err := models.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("Invalid '%s': expected YYYY-MM-DD", field)
	}
	return d, nil
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		log.GetLogger().Errorf("Failed to decode request body of %s %s: %v", r.Method, r.URL.Path, err)
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

// statusFor maps an error kind to the HTTP status it is reported with.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrUnknownTask):
		return http.StatusNotFound
	case errors.Is(err, models.ErrCycleDetected), errors.Is(err, models.ErrDuplicateEdge),
		errors.Is(err, models.ErrTaskHasChildren):
		return http.StatusConflict
	case errors.Is(err, models.ErrInternalInconsistency):
		return http.StatusInternalServerError
	case errors.Is(err, models.ErrInvalidProject), errors.Is(err, models.ErrInvalidTask),
		errors.Is(err, models.ErrInvalidDependencyType), errors.Is(err, models.ErrSelfDependency),
		errors.Is(err, models.ErrCrossProjectEdge), errors.Is(err, models.ErrDerivedProgress),
		errors.Is(err, models.ErrInvalidLag):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeServiceError(w http.ResponseWriter, prefix string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.GetLogger().Errorf("%s: %v", prefix, err)
	}
	resp := errorResponse{Error: fmt.Sprintf("%s: %v", prefix, err)}
	var se *models.ScheduleError
	if errors.As(err, &se) {
		resp.Kind = se.Kind.Error()
		resp.TaskIDs = se.TaskIDs
		resp.Path = se.Path
	}
	writeJSON(w, status, resp)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.GetLogger().Errorf("Failed to encode response: %v", err)
	}
}
