package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hongminglow/todo-api/internal/models"
	"github.com/hongminglow/todo-api/internal/storage"
)

const todoColumns = `id, title, description, is_completed, image, created_by, created_at, updated_at`

// CreateTodo inserts a todo row.
func (s *Store) CreateTodo(ctx context.Context, todo models.Todo) (models.Todo, error) {
	const query = `
		INSERT INTO todos (id, title, description, is_completed, image, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + todoColumns
	row := s.pool.QueryRow(ctx, query, uuid.NewString(), todo.Title, todo.Description, todo.IsCompleted, todo.Image, todo.CreatedBy)
	created, err := scanTodo(row)
	if err != nil {
		return models.Todo{}, translate(err)
	}
	return created, nil
}

func (s *Store) FindTodoByID(ctx context.Context, id string) (models.Todo, error) {
	if err := validID(id); err != nil {
		return models.Todo{}, err
	}
	return scanTodo(s.pool.QueryRow(ctx, `SELECT `+todoColumns+` FROM todos WHERE id = $1`, id))
}

func (s *Store) FindTodoByTitle(ctx context.Context, title string) (models.Todo, error) {
	return scanTodo(s.pool.QueryRow(ctx, `SELECT `+todoColumns+` FROM todos WHERE title = $1`, title))
}

// FindTodosByIDs loads todos by id and returns them in the order given.
func (s *Store) FindTodosByIDs(ctx context.Context, ids []string) ([]models.Todo, error) {
	if len(ids) == 0 {
		return []models.Todo{}, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT `+todoColumns+` FROM todos WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	todos, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Todo, error) {
		return scanTodo(row)
	})
	if err != nil {
		return nil, err
	}
	return storage.OrderByIDs(ids, todos), nil
}

// UpdateTodo overwrites the mutable columns of a todo.
func (s *Store) UpdateTodo(ctx context.Context, todo models.Todo) (models.Todo, error) {
	if err := validID(todo.ID); err != nil {
		return models.Todo{}, err
	}
	const query = `
		UPDATE todos
		SET title = $2, description = $3, is_completed = $4, image = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + todoColumns
	updated, err := scanTodo(s.pool.QueryRow(ctx, query, todo.ID, todo.Title, todo.Description, todo.IsCompleted, todo.Image))
	if err != nil {
		return models.Todo{}, translate(err)
	}
	return updated, nil
}

// DeleteTodo removes a todo and returns the deleted row.
func (s *Store) DeleteTodo(ctx context.Context, id string) (models.Todo, error) {
	if err := validID(id); err != nil {
		return models.Todo{}, err
	}
	return scanTodo(s.pool.QueryRow(ctx, `DELETE FROM todos WHERE id = $1 RETURNING `+todoColumns, id))
}

func scanTodo(row pgx.Row) (models.Todo, error) {
	var todo models.Todo
	if err := row.Scan(&todo.ID, &todo.Title, &todo.Description, &todo.IsCompleted, &todo.Image,
		&todo.CreatedBy, &todo.CreatedAt, &todo.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Todo{}, storage.ErrNotFound
		}
		return models.Todo{}, err
	}
	return todo, nil
}
