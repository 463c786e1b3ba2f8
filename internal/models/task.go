package models

import "time"

// Task is a single row of the todo table. DueDate always sits on a UTC day
// boundary so client-local calendar dates and stored instants never drift.
type Task struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Completed   bool      `json:"completed"`
	DueDate     time.Time `json:"dueDate"`
}

// NewTask is the create payload. The server assigns the id.
type NewTask struct {
	Title       string     `json:"title" validate:"required,min=1"`
	Description *string    `json:"description,omitempty"`
	Completed   *bool      `json:"completed,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
}

// TaskPatch carries a partial update. Nil means "leave the field alone".
type TaskPatch struct {
	Title       *string    `json:"title,omitempty" validate:"omitempty,min=1"`
	Description *string    `json:"description,omitempty"`
	Completed   *bool      `json:"completed,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
}

// ListFilter holds the optional list predicates. Zero values / nil pointers
// disable a filter; supplied filters combine with logical AND.
type ListFilter struct {
	Title          string     `json:"title,omitempty" schema:"title,omitempty"`
	ExactTitle     bool       `json:"exactTitle,omitempty" schema:"exactTitle,omitempty"`
	DateRangeStart *time.Time `json:"dateRangeStart,omitempty" schema:"dateRangeStart,omitempty"`
	DateRangeEnd   *time.Time `json:"dateRangeEnd,omitempty" schema:"dateRangeEnd,omitempty"`
	Completed      *bool      `json:"completed,omitempty" schema:"completed,omitempty"`
	ID             *int64     `json:"id,omitempty" schema:"id,omitempty"`
}

// DayStart truncates t to midnight UTC.
func DayStart(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Today returns the current UTC day boundary.
func Today() time.Time {
	return DayStart(time.Now())
}

// Clone returns a copy of the task with its own description pointer, so
// snapshots taken for rollback cannot alias live state.
func (t Task) Clone() Task {
	c := t
	if t.Description != nil {
		desc := *t.Description
		c.Description = &desc
	}
	return c
}
