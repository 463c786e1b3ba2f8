package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/AnsonZhang2009/playground-todo-list/internal/models"
)

// dialect papers over the placeholder and operator differences between the
// two supported drivers.
type dialect struct {
	driver string
}

func (d dialect) placeholder(n int) string {
	if d.driver == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// containsOp returns the case-insensitive substring operator. SQLite LIKE is
// case-insensitive for ASCII by default; postgres needs ILIKE.
func (d dialect) containsOp() string {
	if d.driver == "postgres" {
		return "ILIKE"
	}
	return "LIKE"
}

func (d dialect) supportsReturning() bool {
	return d.driver == "postgres"
}

func (d dialect) createTableSQL() string {
	if d.driver == "postgres" {
		return `CREATE TABLE IF NOT EXISTS todo (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT,
			completed BOOLEAN NOT NULL DEFAULT FALSE,
			due_date BIGINT NOT NULL
		)`
	}
	return `CREATE TABLE IF NOT EXISTS todo (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT,
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		due_date INTEGER NOT NULL
	)`
}

type SQLTaskRepository struct {
	db *sql.DB
	d  dialect
}

func NewSQLTaskRepository(driver, dsn string) (*SQLTaskRepository, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &SQLTaskRepository{db: db, d: dialect{driver: driver}}, nil
}

func (r *SQLTaskRepository) Close() error {
	return r.db.Close()
}

// Init creates the todo table when it does not exist yet.
func (r *SQLTaskRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, r.d.createTableSQL()); err != nil {
		return fmt.Errorf("failed to create todo table: %w", err)
	}
	return nil
}

const taskColumns = "id, title, description, completed, due_date"

func scanTask(row interface{ Scan(...any) error }) (*models.Task, error) {
	task := &models.Task{}
	var description sql.NullString
	var dueMillis int64
	if err := row.Scan(&task.ID, &task.Title, &description, &task.Completed, &dueMillis); err != nil {
		return nil, err
	}
	if description.Valid {
		task.Description = &description.String
	}
	task.DueDate = millisToTime(dueMillis)
	return task, nil
}

func millisToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func (r *SQLTaskRepository) Create(ctx context.Context, task *models.Task) error {
	args := []any{task.Title, task.Description, task.Completed, task.DueDate.UnixMilli()}
	if r.d.supportsReturning() {
		query := fmt.Sprintf(`INSERT INTO todo (title, description, completed, due_date) VALUES (%s, %s, %s, %s) RETURNING id`,
			r.d.placeholder(1), r.d.placeholder(2), r.d.placeholder(3), r.d.placeholder(4))
		return r.db.QueryRowContext(ctx, query, args...).Scan(&task.ID)
	}
	query := `INSERT INTO todo (title, description, completed, due_date) VALUES (?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	task.ID = id
	return nil
}

func (r *SQLTaskRepository) GetByID(ctx context.Context, id int64) (*models.Task, error) {
	query := fmt.Sprintf("SELECT %s FROM todo WHERE id = %s", taskColumns, r.d.placeholder(1))
	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

// buildWhere translates the filter into a conjunction of independent
// predicates. Each predicate contributes one parameterized expression; values
// never end up inside the SQL text.
func (r *SQLTaskRepository) buildWhere(filter models.ListFilter) (string, []any) {
	var conds []string
	var args []any

	add := func(expr string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(expr, r.d.placeholder(len(args))))
	}

	if filter.Title != "" {
		if filter.ExactTitle {
			add("title = %s", filter.Title)
		} else {
			add("title "+r.d.containsOp()+" %s", "%"+filter.Title+"%")
		}
	}
	if filter.DateRangeStart != nil {
		add("due_date >= %s", filter.DateRangeStart.UnixMilli())
	}
	if filter.DateRangeEnd != nil {
		add("due_date <= %s", filter.DateRangeEnd.UnixMilli())
	}
	if filter.Completed != nil {
		add("completed = %s", *filter.Completed)
	}
	if filter.ID != nil {
		add("id = %s", *filter.ID)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns rows matching every supplied predicate, ordered by id so that
// results are deterministic.
func (r *SQLTaskRepository) List(ctx context.Context, filter models.ListFilter) ([]*models.Task, error) {
	where, args := r.buildWhere(filter)
	query := fmt.Sprintf("SELECT %s FROM todo%s ORDER BY id", taskColumns, where)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func collectTasks(rows *sql.Rows) ([]*models.Task, error) {
	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// Update applies only the supplied patch fields. It returns (nil, nil) when no
// row has the given id; an empty patch returns the current row untouched.
func (r *SQLTaskRepository) Update(ctx context.Context, id int64, patch *models.TaskPatch) (*models.Task, error) {
	var sets []string
	var args []any

	set := func(column string, arg any) {
		args = append(args, arg)
		sets = append(sets, fmt.Sprintf("%s = %s", column, r.d.placeholder(len(args))))
	}

	if patch.Title != nil {
		set("title", *patch.Title)
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.Completed != nil {
		set("completed", *patch.Completed)
	}
	if patch.DueDate != nil {
		set("due_date", patch.DueDate.UnixMilli())
	}

	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE todo SET %s WHERE id = %s",
		strings.Join(sets, ", "), r.d.placeholder(len(args)))
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

// Delete removes the given ids and returns the removed rows. Missing ids
// simply remove nothing.
func (r *SQLTaskRepository) Delete(ctx context.Context, ids ...int64) ([]*models.Task, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = r.d.placeholder(i + 1)
		args[i] = id
	}
	in := strings.Join(placeholders, ", ")

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM todo WHERE id IN (%s) ORDER BY id", taskColumns, in), args...)
	if err != nil {
		return nil, err
	}
	removed, err := collectTasks(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM todo WHERE id IN (%s)", in), args...); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return removed, nil
}
