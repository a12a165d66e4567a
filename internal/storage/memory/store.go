// Package memory is an in-process storage.Store used by tests and by
// DATABASE_URL=memory:// for local runs. Data is lost on exit.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hongminglow/todo-api/internal/models"
	"github.com/hongminglow/todo-api/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store keeps users and todos in maps guarded by one mutex.
type Store struct {
	mu    sync.RWMutex
	users map[string]models.User
	todos map[string]models.Todo
	now   func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users: make(map[string]models.User),
		todos: make(map[string]models.Todo),
		now:   time.Now,
	}
}

func (s *Store) Migrate(context.Context) error { return nil }

func (s *Store) Close(context.Context) error { return nil }

func (s *Store) CreateUser(_ context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conflictLocked(user.Username, user.Email, user.Phone); ok {
		return models.User{}, storage.ErrAlreadyExists
	}
	now := s.now().UTC()
	user.ID = uuid.NewString()
	user.TodoIDs = slices.Clone(user.TodoIDs)
	if user.TodoIDs == nil {
		user.TodoIDs = []string{}
	}
	user.CreatedAt, user.UpdatedAt = now, now
	s.users[user.ID] = user
	return cloneUser(user), nil
}

func (s *Store) FindUserByID(_ context.Context, id string) (models.User, error) {
	if err := validID(id); err != nil {
		return models.User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return cloneUser(user), nil
}

func (s *Store) FindByIdentifier(_ context.Context, identifier string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Username beats email beats phone when different users match.
	fields := []func(models.User) string{
		func(u models.User) string { return u.Username },
		func(u models.User) string { return u.Email },
		func(u models.User) string { return u.Phone },
	}
	for _, field := range fields {
		for _, u := range s.users {
			if field(u) == identifier {
				return cloneUser(u), nil
			}
		}
	}
	return models.User{}, storage.ErrNotFound
}

func (s *Store) FindConflicting(_ context.Context, username, email, phone string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u, ok := s.conflictLocked(username, email, phone); ok {
		return cloneUser(u), nil
	}
	return models.User{}, storage.ErrNotFound
}

func (s *Store) SetRefreshToken(_ context.Context, userID, token string) error {
	return s.updateUser(userID, func(u *models.User) { u.RefreshToken = token })
}

func (s *Store) SetTodoIDs(_ context.Context, userID string, todoIDs []string) error {
	ids := slices.Clone(todoIDs)
	if ids == nil {
		ids = []string{}
	}
	return s.updateUser(userID, func(u *models.User) { u.TodoIDs = ids })
}

func (s *Store) CreateTodo(_ context.Context, todo models.Todo) (models.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.todoByTitleLocked(todo.Title); ok {
		return models.Todo{}, storage.ErrAlreadyExists
	}
	now := s.now().UTC()
	todo.ID = uuid.NewString()
	todo.CreatedAt, todo.UpdatedAt = now, now
	s.todos[todo.ID] = todo
	return todo, nil
}

func (s *Store) FindTodoByID(_ context.Context, id string) (models.Todo, error) {
	if err := validID(id); err != nil {
		return models.Todo{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	todo, ok := s.todos[id]
	if !ok {
		return models.Todo{}, storage.ErrNotFound
	}
	return todo, nil
}

func (s *Store) FindTodoByTitle(_ context.Context, title string) (models.Todo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if todo, ok := s.todoByTitleLocked(title); ok {
		return todo, nil
	}
	return models.Todo{}, storage.ErrNotFound
}

func (s *Store) FindTodosByIDs(_ context.Context, ids []string) ([]models.Todo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Todo, 0, len(ids))
	for _, id := range ids {
		if todo, ok := s.todos[id]; ok {
			out = append(out, todo)
		}
	}
	return out, nil
}

func (s *Store) UpdateTodo(_ context.Context, todo models.Todo) (models.Todo, error) {
	if err := validID(todo.ID); err != nil {
		return models.Todo{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.todos[todo.ID]
	if !ok {
		return models.Todo{}, storage.ErrNotFound
	}
	if other, ok := s.todoByTitleLocked(todo.Title); ok && other.ID != todo.ID {
		return models.Todo{}, storage.ErrAlreadyExists
	}
	todo.CreatedBy = current.CreatedBy
	todo.CreatedAt = current.CreatedAt
	todo.UpdatedAt = s.now().UTC()
	s.todos[todo.ID] = todo
	return todo, nil
}

func (s *Store) DeleteTodo(_ context.Context, id string) (models.Todo, error) {
	if err := validID(id); err != nil {
		return models.Todo{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	todo, ok := s.todos[id]
	if !ok {
		return models.Todo{}, storage.ErrNotFound
	}
	delete(s.todos, id)
	return todo, nil
}

func (s *Store) updateUser(id string, mutate func(*models.User)) error {
	if err := validID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	mutate(&user)
	user.UpdatedAt = s.now().UTC()
	s.users[id] = user
	return nil
}

func (s *Store) conflictLocked(username, email, phone string) (models.User, bool) {
	for _, u := range s.users {
		if u.Username == username || u.Email == email || u.Phone == phone {
			return u, true
		}
	}
	return models.User{}, false
}

func (s *Store) todoByTitleLocked(title string) (models.Todo, bool) {
	for _, t := range s.todos {
		if t.Title == title {
			return t, true
		}
	}
	return models.Todo{}, false
}

func validID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return storage.ErrInvalidID
	}
	return nil
}

func cloneUser(u models.User) models.User {
	u.TodoIDs = slices.Clone(u.TodoIDs)
	return u
}
