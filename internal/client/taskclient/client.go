package taskclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/gorilla/schema"
	"github.com/sirupsen/logrus"

	"github.com/AnsonZhang2009/playground-todo-list/internal/models"
	"github.com/AnsonZhang2009/playground-todo-list/shared/middleware"
)

// APIError is a non-2xx response decoded into its status and server message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Client is a thin typed wrapper over the tasks HTTP API. One method per
// (resource, verb); no retries, no caching.
type Client struct {
	baseURL string
	httpc   *http.Client
	encoder *schema.Encoder
	logger  *logrus.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *Client {
	encoder := schema.NewEncoder()
	// Registered for both the value and pointer type: the encoder looks
	// custom encoders up by the field's static type and would otherwise
	// recurse into time.Time's unexported fields for *time.Time.
	encodeDate := func(v reflect.Value) string {
		return v.Interface().(time.Time).UTC().Format("2006-01-02")
	}
	encoder.RegisterEncoder(time.Time{}, encodeDate)
	encoder.RegisterEncoder(&time.Time{}, func(v reflect.Value) string {
		if v.IsNil() {
			return ""
		}
		return encodeDate(v.Elem())
	})

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
		encoder: encoder,
		logger:  logger,
	}
}

func (c *Client) logEntry(ctx context.Context, op string) *logrus.Entry {
	return c.logger.WithFields(logrus.Fields{
		"component":  "task_client",
		"op":         op,
		"request_id": middleware.GetRequestID(ctx),
	})
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requestID := middleware.GetRequestID(ctx); requestID != "" {
		req.Header.Set(middleware.HeaderRequestID, requestID)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("tasks service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
	}
	return apiErr
}

// ListTasks fetches the filtered task list. Due dates come back normalized to
// their UTC day boundary.
func (c *Client) ListTasks(ctx context.Context, filter *models.ListFilter) ([]models.Task, error) {
	logEntry := c.logEntry(ctx, "ListTasks")

	query := url.Values{}
	if filter != nil {
		if err := c.encoder.Encode(filter, query); err != nil {
			return nil, fmt.Errorf("failed to encode filter: %w", err)
		}
	}

	var tasks []models.Task
	if err := c.do(ctx, http.MethodGet, "/tasks", query, nil, &tasks); err != nil {
		logEntry.WithError(err).Debug("list request failed")
		return nil, err
	}
	for i := range tasks {
		tasks[i].DueDate = models.DayStart(tasks[i].DueDate)
	}

	logEntry.WithField("count", len(tasks)).Debug("tasks fetched")
	return tasks, nil
}

// GetTask fetches a single task by id.
func (c *Client) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	logEntry := c.logEntry(ctx, "GetTask")

	var task models.Task
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/tasks/%d", id), nil, nil, &task); err != nil {
		logEntry.WithError(err).Debug("get request failed")
		return nil, err
	}
	task.DueDate = models.DayStart(task.DueDate)
	return &task, nil
}

// CreateTask persists a new task and returns it with the server-assigned id.
func (c *Client) CreateTask(ctx context.Context, newTask models.NewTask) (*models.Task, error) {
	logEntry := c.logEntry(ctx, "CreateTask")

	var task models.Task
	if err := c.do(ctx, http.MethodPost, "/tasks", nil, newTask, &task); err != nil {
		logEntry.WithError(err).Debug("create request failed")
		return nil, err
	}
	task.DueDate = models.DayStart(task.DueDate)

	logEntry.WithField("task_id", task.ID).Debug("task created")
	return &task, nil
}

// UpdateTask applies a partial update and returns the authoritative row.
func (c *Client) UpdateTask(ctx context.Context, id int64, patch models.TaskPatch) (*models.Task, error) {
	logEntry := c.logEntry(ctx, "UpdateTask")

	var task models.Task
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/tasks/%d", id), nil, patch, &task); err != nil {
		logEntry.WithError(err).Debug("update request failed")
		return nil, err
	}
	task.DueDate = models.DayStart(task.DueDate)
	return &task, nil
}

// DeleteTask removes a task and returns the removed rows.
func (c *Client) DeleteTask(ctx context.Context, id int64) ([]models.Task, error) {
	logEntry := c.logEntry(ctx, "DeleteTask")

	var removed []models.Task
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/tasks/%d", id), nil, nil, &removed); err != nil {
		logEntry.WithError(err).Debug("delete request failed")
		return nil, err
	}
	for i := range removed {
		removed[i].DueDate = models.DayStart(removed[i].DueDate)
	}
	return removed, nil
}
