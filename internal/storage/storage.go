package storage

import (
	"context"
	"errors"

	"github.com/hongminglow/todo-api/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// ErrInvalidID indicates an identifier that cannot belong to any record of the backend.
var ErrInvalidID = errors.New("invalid record id")

// UserStore captures persistence operations on user records. Updates are
// field-targeted: nothing but CreateUser ever writes the password hash.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	FindUserByID(ctx context.Context, id string) (models.User, error)
	// FindByIdentifier matches username, email or phone.
	FindByIdentifier(ctx context.Context, identifier string) (models.User, error)
	// FindConflicting returns any user holding one of the given unique values.
	FindConflicting(ctx context.Context, username, email, phone string) (models.User, error)
	SetRefreshToken(ctx context.Context, userID, token string) error
	SetTodoIDs(ctx context.Context, userID string, todoIDs []string) error
}

// TodoStore captures persistence operations on todos.
type TodoStore interface {
	CreateTodo(ctx context.Context, todo models.Todo) (models.Todo, error)
	FindTodoByID(ctx context.Context, id string) (models.Todo, error)
	FindTodoByTitle(ctx context.Context, title string) (models.Todo, error)
	// FindTodosByIDs returns the todos in the order of ids, skipping missing ones.
	FindTodosByIDs(ctx context.Context, ids []string) ([]models.Todo, error)
	UpdateTodo(ctx context.Context, todo models.Todo) (models.Todo, error)
	DeleteTodo(ctx context.Context, id string) (models.Todo, error)
}

// Store is a complete backend.
type Store interface {
	UserStore
	TodoStore
	// Migrate prepares schema or indexes; it is safe to run repeatedly.
	Migrate(ctx context.Context) error
	Close(ctx context.Context) error
}

// OrderByIDs arranges todos to follow ids, dropping ids with no todo.
func OrderByIDs(ids []string, todos []models.Todo) []models.Todo {
	byID := make(map[string]models.Todo, len(todos))
	for _, t := range todos {
		byID[t.ID] = t
	}
	out := make([]models.Todo, 0, len(ids))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			out = append(out, t)
		}
	}
	return out
}
