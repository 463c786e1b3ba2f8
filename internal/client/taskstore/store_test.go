package taskstore

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/AnsonZhang2009/playground-todo-list/internal/models"
)

var errServerDown = errors.New("server down")

// mockGateway lets each test script the server side of every operation.
type mockGateway struct {
	listFn   func(ctx context.Context, filter *models.ListFilter) ([]models.Task, error)
	getFn    func(ctx context.Context, id int64) (*models.Task, error)
	createFn func(ctx context.Context, newTask models.NewTask) (*models.Task, error)
	updateFn func(ctx context.Context, id int64, patch models.TaskPatch) (*models.Task, error)
	deleteFn func(ctx context.Context, id int64) ([]models.Task, error)
}

func (m *mockGateway) ListTasks(ctx context.Context, filter *models.ListFilter) ([]models.Task, error) {
	return m.listFn(ctx, filter)
}

func (m *mockGateway) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	return m.getFn(ctx, id)
}

func (m *mockGateway) CreateTask(ctx context.Context, newTask models.NewTask) (*models.Task, error) {
	return m.createFn(ctx, newTask)
}

func (m *mockGateway) UpdateTask(ctx context.Context, id int64, patch models.TaskPatch) (*models.Task, error) {
	return m.updateFn(ctx, id, patch)
}

func (m *mockGateway) DeleteTask(ctx context.Context, id int64) ([]models.Task, error) {
	return m.deleteFn(ctx, id)
}

func newTestStore(gw *mockGateway) *Store {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return New(gw, logger)
}

func task(id int64, title string, completed bool) models.Task {
	return models.Task{ID: id, Title: title, Completed: completed, DueDate: models.Today()}
}

// seed loads the store through FetchAll so tests start from known state.
func seed(t *testing.T, store *Store, gw *mockGateway, tasks ...models.Task) {
	t.Helper()
	gw.listFn = func(context.Context, *models.ListFilter) ([]models.Task, error) {
		return append([]models.Task(nil), tasks...), nil
	}
	store.FetchAll(context.Background(), nil)
	require.Equal(t, len(tasks), store.TaskCount())
}

func TestFetchAllReplacesWholesale(t *testing.T) {
	gw := &mockGateway{}
	store := newTestStore(gw)
	seed(t, store, gw, task(1, "old", false))

	gw.listFn = func(context.Context, *models.ListFilter) ([]models.Task, error) {
		return []models.Task{task(2, "new a", false), task(3, "new b", true)}, nil
	}
	store.FetchAll(context.Background(), nil)

	tasks := store.Tasks()
	require.Len(t, tasks, 2)
	require.Equal(t, int64(2), tasks[0].ID)
	require.Equal(t, int64(3), tasks[1].ID)
	require.False(t, store.Loading())
	require.Empty(t, store.Err())
}

func TestFetchAllFailureSwallowedIntoState(t *testing.T) {
	gw := &mockGateway{}
	store := newTestStore(gw)
	seed(t, store, gw, task(1, "kept", false))

	gw.listFn = func(context.Context, *models.ListFilter) ([]models.Task, error) {
		return nil, errServerDown
	}
	store.FetchAll(context.Background(), nil)

	require.Equal(t, "Failed to fetch tasks", store.Err())
	require.False(t, store.Loading())
	// The previous list survives a failed refresh.
	require.Equal(t, 1, store.TaskCount())
}

func TestFetchAllTogglesLoading(t *testing.T) {
	gw := &mockGateway{}
	store := newTestStore(gw)

	var loadingDuringCall bool
	gw.listFn = func(context.Context, *models.ListFilter) ([]models.Task, error) {
		loadingDuringCall = store.Loading()
		return nil, nil
	}
	store.FetchAll(context.Background(), nil)

	require.True(t, loadingDuringCall)
	require.False(t, store.Loading())
}

func TestFetchOneDoesNotMutateTasks(t *testing.T) {
	gw := &mockGateway{}
	store := newTestStore(gw)
	seed(t, store, gw, task(1, "local", false))

	remote := task(99, "remote", true)
	gw.getFn = func(context.Context, int64) (*models.Task, error) {
		return &remote, nil
	}

	got, err := store.FetchOne(context.Background(), 99)
	require.NoError(t, err)
	require.Equal(t, int64(99), got.ID)
	require.Equal(t, 1, store.TaskCount())
	require.Nil(t, store.FetchLocalOne(99))
}

func TestFetchOneFailureRecordedAndReturned(t *testing.T) {
	gw := &mockGateway{}
	store := newTestStore(gw)

	gw.getFn = func(context.Context, int64) (*models.Task, error) {
		return nil, errServerDown
	}

	_, err := store.FetchOne(context.Background(), 1)
	require.ErrorIs(t, err, errServerDown)
	require.Equal(t, "Failed to fetch task", store.Err())
}

func TestFetchLocalOne(t *testing.T) {
	// No gateway functions set: any I/O would panic.
	gw := &mockGateway{}
	store := newTestStore(gw)
	seed(t, store, gw, task(1, "here", false))

	found := store.FetchLocalOne(1)
	require.NotNil(t, found)
	require.Equal(t, "here", found.Title)

	require.Nil(t, store.FetchLocalOne(2))
}

func TestCreateOptimisticThenCommit(t *testing.T) {
	gw := &mockGateway{}
	store := newTestStore(gw)

	var midFlight []models.Task
	gw.createFn = func(_ context.Context, newTask models.NewTask) (*models.Task, error) {
		// Observed while the request is in flight: the optimistic entry is
		// already present under a synthetic negative id.
		midFlight = store.Tasks()
		created := task(42, newTask.Title, false)
		return &created, nil
	}

	created, err := store.Create(context.Background(), models.NewTask{Title: "optimist"})
	require.NoError(t, err)
	require.Equal(t, int64(42), created.ID)

	require.Len(t, midFlight, 1)
	require.Negative(t, midFlight[0].ID)
	require.Equal(t, "optimist", midFlight[0].Title)

	tasks := store.Tasks()
	require.Len(t, tasks, 1)
	require.Equal(t, int64(42), tasks[0].ID)
	for _, tk := range tasks {
		require.Positive(t, tk.ID)
	}
}

func TestCreateRollbackOnFailure(t *testing.T) {
	gw := &mockGateway{}
	store := newTestStore(gw)
	seed(t, store, gw, task(1, "existing", false))
	before := store.Tasks()

	gw.createFn = func(context.Context, models.NewTask) (*models.Task, error) {
		return nil, errServerDown
	}

	_, err := store.Create(context.Background(), models.NewTask{Title: "doomed"})
	require.ErrorIs(t, err, errServerDown)
	require.Equal(t, "Failed to create task", store.Err())
	require.Equal(t, before, store.Tasks())
}

func TestCreateAppliesOptimisticDefaults(t *testing.T) {
	gw := &mockGateway{}
	store := newTestStore(gw)

	var midFlight []models.Task
	gw.createFn = func(_ context.Context, newTask models.NewTask) (*models.Task, error) {
		midFlight = store.Tasks()
		created := task(7, newTask.Title, false)
		return &created, nil
	}

	_, err := store.Create(context.Background(), models.NewTask{Title: "defaults"})
	require.NoError(t, err)

	require.Len(t, midFlight, 1)
	require.Nil(t, midFlight[0].Description)
	require.False(t, midFlight[0].Completed)
	require.True(t, models.Today().Equal(midFlight[0].DueDate))
}

func TestUpdateReconcilesWithServerResponse(t *testing.T) {
	gw := &mockGateway{}
	store := newTestStore(gw)
	seed(t, store, gw, task(1, "original", false))

	gw.updateFn = func(_ context.Context, id int64, patch models.TaskPatch) (*models.Task, error) {
		authoritative := task(id, "server title", true)
		return &authoritative, nil
	}

	title := "local title"
	updated, err := store.Update(context.Background(), 1, models.TaskPatch{Title: &title})
	require.NoError(t, err)
	require.Equal(t, "server title", updated.Title)

	local := store.FetchLocalOne(1)
	require.Equal(t, "server title", local.Title)
}

func TestUpdateAbsentIDIsNoOp(t *testing.T) {
	gw := &mockGateway{}
	store := newTestStore(gw)

	// No updateFn: reaching the gateway would panic.
	title := "whatever"
	updated, err := store.Update(context.Background(), 5, models.TaskPatch{Title: &title})
	require.NoError(t, err)
	require.Nil(t, updated)
}

func TestToggleRollbackOnFailure(t *testing.T) {
	gw := &mockGateway{}
	store := newTestStore(gw)
	seed(t, store, gw, task(1, "stubborn", false))

	var optimisticCompleted bool
	gw.updateFn = func(context.Context, int64, models.TaskPatch) (*models.Task, error) {
		optimisticCompleted = store.FetchLocalOne(1).Completed
		return nil, errServerDown
	}

	_, err := store.Toggle(context.Background(), 1)
	require.ErrorIs(t, err, errServerDown)

	require.True(t, optimisticCompleted)
	require.False(t, store.FetchLocalOne(1).Completed)
	require.Equal(t, "Failed to update task", store.Err())
}

func TestToggleSendsFullObject(t *testing.T) {
	gw := &mockGateway{}
	desc := "details"
	seeded := task(1, "full", false)
	seeded.Description = &desc

	store := newTestStore(gw)
	seed(t, store, gw, seeded)

	var sent models.TaskPatch
	gw.updateFn = func(_ context.Context, id int64, patch models.TaskPatch) (*models.Task, error) {
		sent = patch
		authoritative := task(id, "full", true)
		return &authoritative, nil
	}

	_, err := store.Toggle(context.Background(), 1)
	require.NoError(t, err)

	require.NotNil(t, sent.Title)
	require.Equal(t, "full", *sent.Title)
	require.NotNil(t, sent.Description)
	require.Equal(t, desc, *sent.Description)
	require.NotNil(t, sent.Completed)
	require.True(t, *sent.Completed)
	require.NotNil(t, sent.DueDate)
}

func TestRemoveRollbackRestoresExactOrder(t *testing.T) {
	gw := &mockGateway{}
	store := newTestStore(gw)
	seed(t, store, gw, task(1, "first", false), task(2, "middle", false), task(3, "last", false))

	var midFlight []models.Task
	gw.deleteFn = func(context.Context, int64) ([]models.Task, error) {
		midFlight = store.Tasks()
		return nil, errServerDown
	}

	err := store.Remove(context.Background(), 2)
	require.ErrorIs(t, err, errServerDown)

	require.Len(t, midFlight, 2)

	tasks := store.Tasks()
	require.Len(t, tasks, 3)
	require.Equal(t, int64(1), tasks[0].ID)
	require.Equal(t, int64(2), tasks[1].ID)
	require.Equal(t, int64(3), tasks[2].ID)
	require.Equal(t, "Failed to delete task", store.Err())
}

func TestRemoveSuccessKeepsOptimisticRemoval(t *testing.T) {
	gw := &mockGateway{}
	store := newTestStore(gw)
	seed(t, store, gw, task(1, "goner", false), task(2, "stays", false))

	gw.deleteFn = func(_ context.Context, id int64) ([]models.Task, error) {
		return []models.Task{task(id, "goner", false)}, nil
	}

	require.NoError(t, store.Remove(context.Background(), 1))

	tasks := store.Tasks()
	require.Len(t, tasks, 1)
	require.Equal(t, int64(2), tasks[0].ID)
	require.Empty(t, store.Err())
}

func TestDerivedViews(t *testing.T) {
	gw := &mockGateway{}
	store := newTestStore(gw)
	seed(t, store, gw,
		task(1, "done a", true),
		task(2, "open b", false),
		task(3, "done c", true),
	)

	require.Equal(t, 3, store.TaskCount())
	require.Len(t, store.CompletedTasks(), 2)
	require.Len(t, store.PendingTasks(), 1)
	require.Equal(t, "open b", store.PendingTasks()[0].Title)
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	gw := &mockGateway{}
	store := newTestStore(gw)

	var notified int
	unsubscribe := store.Subscribe(func() { notified++ })

	seed(t, store, gw, task(1, "watched", false))
	require.Positive(t, notified)

	unsubscribe()
	count := notified
	seed(t, store, gw, task(2, "unwatched", false))
	require.Equal(t, count, notified)
}

func TestConcurrentSettleLastWriteWins(t *testing.T) {
	gw := &mockGateway{}
	store := newTestStore(gw)
	seed(t, store, gw, task(1, "raced", false))

	// The second settle overwrites the first without error: reconciliation
	// is last-write-wins, not ordered by issuance.
	gw.updateFn = func(_ context.Context, id int64, patch models.TaskPatch) (*models.Task, error) {
		authoritative := task(id, *patch.Title, false)
		return &authoritative, nil
	}

	done := make(chan struct{}, 2)
	for _, title := range []string{"writer one", "writer two"} {
		go func(title string) {
			defer func() { done <- struct{}{} }()
			store.Update(context.Background(), 1, models.TaskPatch{Title: &title})
		}(title)
	}
	<-done
	<-done

	final := store.FetchLocalOne(1)
	require.NotNil(t, final)
	require.Contains(t, []string{"writer one", "writer two"}, final.Title)
	require.Equal(t, 1, store.TaskCount())
}

func TestCreateSyntheticIDsDistinct(t *testing.T) {
	gw := &mockGateway{}
	store := newTestStore(gw)

	var ids []int64
	gw.createFn = func(_ context.Context, newTask models.NewTask) (*models.Task, error) {
		for _, tk := range store.Tasks() {
			if tk.ID < 0 {
				ids = append(ids, tk.ID)
			}
		}
		created := task(time.Now().UnixNano()%1000+1, newTask.Title, false)
		return &created, nil
	}

	_, err := store.Create(context.Background(), models.NewTask{Title: "one"})
	require.NoError(t, err)
	_, err = store.Create(context.Background(), models.NewTask{Title: "two"})
	require.NoError(t, err)

	require.Len(t, ids, 2)
	require.NotEqual(t, ids[0], ids[1])
	require.Negative(t, ids[0])
	require.Negative(t, ids[1])
}
