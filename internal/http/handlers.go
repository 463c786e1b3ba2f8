package http

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"time"

	"github.com/gorilla/schema"
	"github.com/sirupsen/logrus"

	"github.com/AnsonZhang2009/playground-todo-list/internal/models"
	"github.com/AnsonZhang2009/playground-todo-list/internal/service"
	"github.com/AnsonZhang2009/playground-todo-list/shared/middleware"
)

type TaskHandler struct {
	taskService *service.TaskService
	decoder     *schema.Decoder
	logger      *logrus.Logger
}

func NewTaskHandler(ts *service.TaskService, logger *logrus.Logger) *TaskHandler {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	decoder.RegisterConverter(time.Time{}, convertDate)

	return &TaskHandler{
		taskService: ts,
		decoder:     decoder,
		logger:      logger,
	}
}

// convertDate accepts calendar dates ("2006-01-02") and full RFC 3339
// instants on query parameters.
func convertDate(value string) reflect.Value {
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return reflect.ValueOf(t)
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return reflect.ValueOf(t)
	}
	return reflect.Value{}
}

func (h *TaskHandler) logEntry(r *http.Request, handler string) *logrus.Entry {
	return h.logger.WithFields(logrus.Fields{
		"component":  "http_handler",
		"handler":    handler,
		"request_id": middleware.GetRequestID(r.Context()),
	})
}

func (h *TaskHandler) parseID(w http.ResponseWriter, r *http.Request, logEntry *logrus.Entry) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		logEntry.WithField("raw_id", r.PathValue("id")).Warn("invalid id parameter")
		http.Error(w, `{"error":"invalid id parameter"}`, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// tasksOrEmpty keeps empty results serializing as [] instead of null.
func tasksOrEmpty(tasks []*models.Task) []*models.Task {
	if tasks == nil {
		return []*models.Task{}
	}
	return tasks
}

// CreateTask handles POST /tasks
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	logEntry := h.logEntry(r, "CreateTask")

	var req models.NewTask
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logEntry.WithError(err).Warn("invalid request body")
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	task, err := h.taskService.Create(r.Context(), req)
	if errors.Is(err, service.ErrValidation) {
		logEntry.WithError(err).Warn("task validation failed")
		http.Error(w, `{"error":"title is required"}`, http.StatusBadRequest)
		return
	}
	if err != nil {
		logEntry.WithError(err).Error("failed to create task")
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	logEntry.WithField("task_id", task.ID).Info("task created")
	writeJSON(w, http.StatusCreated, task)
}

// ListTasks handles GET /tasks
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	logEntry := h.logEntry(r, "ListTasks")

	var filter models.ListFilter
	if err := h.decoder.Decode(&filter, r.URL.Query()); err != nil {
		logEntry.WithError(err).Warn("invalid query parameters")
		http.Error(w, `{"error":"invalid query parameters"}`, http.StatusBadRequest)
		return
	}

	tasks, err := h.taskService.List(r.Context(), filter)
	if err != nil {
		logEntry.WithError(err).Error("failed to list tasks")
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	logEntry.WithField("count", len(tasks)).Debug("tasks listed")
	writeJSON(w, http.StatusOK, tasksOrEmpty(tasks))
}

// GetTask handles GET /tasks/{id}
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	logEntry := h.logEntry(r, "GetTask")

	id, ok := h.parseID(w, r, logEntry)
	if !ok {
		return
	}

	task, err := h.taskService.GetByID(r.Context(), id)
	if err == sql.ErrNoRows {
		logEntry.WithField("task_id", id).Warn("task not found")
		http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		logEntry.WithError(err).Error("failed to get task")
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	logEntry.WithField("task_id", id).Debug("task retrieved")
	writeJSON(w, http.StatusOK, task)
}

// UpdateTask handles PATCH /tasks/{id}
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	logEntry := h.logEntry(r, "UpdateTask")

	id, ok := h.parseID(w, r, logEntry)
	if !ok {
		return
	}

	var req models.TaskPatch
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logEntry.WithError(err).Warn("invalid request body")
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	task, err := h.taskService.Update(r.Context(), id, req)
	if errors.Is(err, service.ErrValidation) {
		logEntry.WithError(err).Warn("task validation failed")
		http.Error(w, `{"error":"title must not be empty"}`, http.StatusBadRequest)
		return
	}
	if err == sql.ErrNoRows {
		logEntry.WithField("task_id", id).Warn("task not found for update")
		http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		logEntry.WithError(err).Error("failed to update task")
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	logEntry.WithField("task_id", id).Info("task updated")
	writeJSON(w, http.StatusOK, task)
}

// DeleteTask handles DELETE /tasks/{id}
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	logEntry := h.logEntry(r, "DeleteTask")

	id, ok := h.parseID(w, r, logEntry)
	if !ok {
		return
	}

	removed, err := h.taskService.Delete(r.Context(), id)
	if err != nil {
		logEntry.WithError(err).Error("failed to delete task")
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	logEntry.WithFields(logrus.Fields{"task_id": id, "removed": len(removed)}).Info("task deleted")
	writeJSON(w, http.StatusOK, tasksOrEmpty(removed))
}
