package repository

import (
	"context"

	"github.com/AnsonZhang2009/playground-todo-list/internal/models"
)

type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id int64) (*models.Task, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Task, error)
	Update(ctx context.Context, id int64, patch *models.TaskPatch) (*models.Task, error)
	Delete(ctx context.Context, ids ...int64) ([]*models.Task, error)
}
