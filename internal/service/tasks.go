package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/AnsonZhang2009/playground-todo-list/internal/models"
	"github.com/AnsonZhang2009/playground-todo-list/internal/repository"
)

// ErrValidation marks caller errors that map to a 4xx response.
var ErrValidation = errors.New("validation failed")

type TaskService struct {
	repo     repository.TaskRepository
	validate *validator.Validate
}

func NewTaskService(repo repository.TaskRepository) *TaskService {
	return &TaskService{
		repo:     repo,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Create persists a new task. Missing completed defaults to false, a missing
// due date defaults to today; a supplied due date is truncated to its UTC day.
func (s *TaskService) Create(ctx context.Context, newTask models.NewTask) (*models.Task, error) {
	if err := s.validate.Struct(newTask); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	task := &models.Task{
		Title:       newTask.Title,
		Description: newTask.Description,
		DueDate:     models.Today(),
	}
	if newTask.Completed != nil {
		task.Completed = *newTask.Completed
	}
	if newTask.DueDate != nil {
		task.DueDate = models.DayStart(*newTask.DueDate)
	}

	if err := s.repo.Create(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) GetByID(ctx context.Context, id int64) (*models.Task, error) {
	task, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, sql.ErrNoRows
	}
	return task, nil
}

// List truncates any date bounds to day boundaries before querying so the
// inclusive range matches whole calendar days.
func (s *TaskService) List(ctx context.Context, filter models.ListFilter) ([]*models.Task, error) {
	if filter.DateRangeStart != nil {
		start := models.DayStart(*filter.DateRangeStart)
		filter.DateRangeStart = &start
	}
	if filter.DateRangeEnd != nil {
		end := models.DayStart(*filter.DateRangeEnd)
		filter.DateRangeEnd = &end
	}
	return s.repo.List(ctx, filter)
}

// Update applies the supplied fields to an existing task and returns the
// updated row, or sql.ErrNoRows when the id is unknown.
func (s *TaskService) Update(ctx context.Context, id int64, patch models.TaskPatch) (*models.Task, error) {
	if err := s.validate.Struct(patch); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if patch.DueDate != nil {
		due := models.DayStart(*patch.DueDate)
		patch.DueDate = &due
	}

	task, err := s.repo.Update(ctx, id, &patch)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, sql.ErrNoRows
	}
	return task, nil
}

// Delete removes the task and returns the removed rows. A missing id removes
// zero rows and is not an error.
func (s *TaskService) Delete(ctx context.Context, id int64) ([]*models.Task, error) {
	return s.repo.Delete(ctx, id)
}
