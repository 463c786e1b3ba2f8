// Package taskstore holds the client's view of all tasks. Mutations are
// applied optimistically: local state changes before the server confirms, and
// every mutation either settles on the authoritative server response or rolls
// back to the snapshot taken when it was staged.
package taskstore

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AnsonZhang2009/playground-todo-list/internal/client/taskclient"
	"github.com/AnsonZhang2009/playground-todo-list/internal/models"
)

// Gateway is the narrow slice of the tasks API the store depends on.
type Gateway interface {
	ListTasks(ctx context.Context, filter *models.ListFilter) ([]models.Task, error)
	GetTask(ctx context.Context, id int64) (*models.Task, error)
	CreateTask(ctx context.Context, newTask models.NewTask) (*models.Task, error)
	UpdateTask(ctx context.Context, id int64, patch models.TaskPatch) (*models.Task, error)
	DeleteTask(ctx context.Context, id int64) ([]models.Task, error)
}

var _ Gateway = (*taskclient.Client)(nil)

// Store owns tasks, loading and err; all three are readable from outside but
// only mutated internally. Network calls always run outside the lock, so two
// racing mutations of one id settle last-write-wins at reconciliation.
type Store struct {
	gw     Gateway
	logger *logrus.Logger

	mu      sync.Mutex
	tasks   []models.Task
	loading bool
	errMsg  string
	subs    map[int]func()
	nextSub int
}

func New(gw Gateway, logger *logrus.Logger) *Store {
	return &Store{
		gw:     gw,
		logger: logger,
		subs:   make(map[int]func()),
	}
}

// Subscribe registers fn to run after every state change and returns an
// unsubscribe func. Callbacks fire outside the store lock.
func (s *Store) Subscribe(fn func()) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Tasks returns a copy of the current list in insertion order.
func (s *Store) Tasks() []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTasks(s.tasks)
}

func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the message recorded by the last failed operation, or "".
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// CompletedTasks returns the tasks with completed set.
func (s *Store) CompletedTasks() []models.Task {
	return s.filterTasks(func(t models.Task) bool { return t.Completed })
}

// PendingTasks returns the tasks still open.
func (s *Store) PendingTasks() []models.Task {
	return s.filterTasks(func(t models.Task) bool { return !t.Completed })
}

func (s *Store) TaskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Store) filterTasks(keep func(models.Task) bool) []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Task
	for _, t := range s.tasks {
		if keep(t) {
			out = append(out, t.Clone())
		}
	}
	return out
}

func cloneTasks(tasks []models.Task) []models.Task {
	out := make([]models.Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}

// FetchAll replaces the task list wholesale with the server's filtered view.
// The one operation without optimism: there is no prior local state to keep.
// Failures are recorded in Err rather than returned.
func (s *Store) FetchAll(ctx context.Context, filter *models.ListFilter) {
	s.mu.Lock()
	s.loading = true
	s.errMsg = ""
	s.mu.Unlock()
	s.notify()

	tasks, err := s.gw.ListTasks(ctx, filter)

	s.mu.Lock()
	if err != nil {
		s.errMsg = "Failed to fetch tasks"
		s.logger.WithError(err).Error("failed to fetch tasks")
	} else {
		s.tasks = tasks
	}
	s.loading = false
	s.mu.Unlock()
	s.notify()
}

// FetchOne fetches a single task straight from the server, bypassing the
// local list, which it never mutates.
func (s *Store) FetchOne(ctx context.Context, id int64) (*models.Task, error) {
	s.mu.Lock()
	s.errMsg = ""
	s.mu.Unlock()
	s.notify()

	task, err := s.gw.GetTask(ctx, id)
	if err != nil {
		s.mu.Lock()
		s.errMsg = "Failed to fetch task"
		s.mu.Unlock()
		s.logger.WithError(err).Error("failed to fetch task")
		s.notify()
		return nil, err
	}
	return task, nil
}

// FetchLocalOne looks the task up in local state only. No I/O, never fails;
// returns nil when the id is not present.
func (s *Store) FetchLocalOne(id int64) *models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tasks {
		if t.ID == id {
			c := t.Clone()
			return &c
		}
	}
	return nil
}

// Create stages a full task under a synthetic negative id, then reconciles:
// on success the synthetic entry is swapped for the server's task, on failure
// it is removed again.
func (s *Store) Create(ctx context.Context, newTask models.NewTask) (*models.Task, error) {
	tempID := -time.Now().UnixNano()

	optimistic := models.Task{
		ID:          tempID,
		Title:       newTask.Title,
		Description: newTask.Description,
		DueDate:     models.Today(),
	}
	if newTask.Completed != nil {
		optimistic.Completed = *newTask.Completed
	}
	if newTask.DueDate != nil {
		optimistic.DueDate = models.DayStart(*newTask.DueDate)
	}

	s.mu.Lock()
	s.errMsg = ""
	s.tasks = append(s.tasks, optimistic)
	s.mu.Unlock()
	s.notify()

	created, err := s.gw.CreateTask(ctx, newTask)

	s.mu.Lock()
	if err != nil {
		s.tasks = deleteByID(s.tasks, tempID)
		s.errMsg = "Failed to create task"
		s.mu.Unlock()
		s.logger.WithError(err).Error("failed to create task")
		s.notify()
		return nil, err
	}
	if i := indexByID(s.tasks, tempID); i >= 0 {
		s.tasks[i] = created.Clone()
	}
	s.mu.Unlock()
	s.notify()
	return created, nil
}

// Update merges the supplied fields onto the local entry immediately, then
// reconciles with the server response or restores the pre-mutation snapshot.
// An unknown id is a no-op.
func (s *Store) Update(ctx context.Context, id int64, patch models.TaskPatch) (*models.Task, error) {
	s.mu.Lock()
	s.errMsg = ""
	i := indexByID(s.tasks, id)
	if i < 0 {
		s.mu.Unlock()
		return nil, nil
	}
	previous := s.tasks[i].Clone()
	s.tasks[i] = merge(s.tasks[i], patch)
	s.mu.Unlock()
	s.notify()

	updated, err := s.gw.UpdateTask(ctx, id, patch)

	s.mu.Lock()
	if err != nil {
		if j := indexByID(s.tasks, id); j >= 0 {
			s.tasks[j] = previous
		}
		s.errMsg = "Failed to update task"
		s.mu.Unlock()
		s.logger.WithError(err).Error("failed to update task")
		s.notify()
		return nil, err
	}
	if j := indexByID(s.tasks, id); j >= 0 {
		s.tasks[j] = updated.Clone()
	}
	s.mu.Unlock()
	s.notify()
	return updated, nil
}

// Toggle flips completed, re-sending every current field rather than a
// minimal patch.
func (s *Store) Toggle(ctx context.Context, id int64) (*models.Task, error) {
	task := s.FetchLocalOne(id)
	if task == nil {
		return nil, nil
	}

	flipped := !task.Completed
	return s.Update(ctx, id, models.TaskPatch{
		Title:       &task.Title,
		Description: task.Description,
		Completed:   &flipped,
		DueDate:     &task.DueDate,
	})
}

// Remove drops the task from the list immediately. On server failure the
// entire captured list comes back, order included; on success the optimistic
// removal stands.
func (s *Store) Remove(ctx context.Context, id int64) error {
	s.mu.Lock()
	s.errMsg = ""
	previous := cloneTasks(s.tasks)
	s.tasks = deleteByID(s.tasks, id)
	s.mu.Unlock()
	s.notify()

	_, err := s.gw.DeleteTask(ctx, id)
	if err != nil {
		s.mu.Lock()
		s.tasks = previous
		s.errMsg = "Failed to delete task"
		s.mu.Unlock()
		s.logger.WithError(err).Error("failed to delete task")
		s.notify()
		return err
	}
	return nil
}

func indexByID(tasks []models.Task, id int64) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func deleteByID(tasks []models.Task, id int64) []models.Task {
	out := tasks[:0]
	for _, t := range tasks {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}

func merge(task models.Task, patch models.TaskPatch) models.Task {
	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Description != nil {
		desc := *patch.Description
		task.Description = &desc
	}
	if patch.Completed != nil {
		task.Completed = *patch.Completed
	}
	if patch.DueDate != nil {
		task.DueDate = *patch.DueDate
	}
	return task
}
