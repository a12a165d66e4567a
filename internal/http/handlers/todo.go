package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hongminglow/todo-api/internal/apierr"
	"github.com/hongminglow/todo-api/internal/config"
	"github.com/hongminglow/todo-api/internal/http/respond"
	"github.com/hongminglow/todo-api/internal/middleware"
	"github.com/hongminglow/todo-api/internal/models"
	"github.com/hongminglow/todo-api/internal/models/dto"
	"github.com/hongminglow/todo-api/internal/storage"
	"github.com/hongminglow/todo-api/internal/upload"
)

// TodoHandler serves the current user's todos. A todo owned by someone else
// is reported as not found.
type TodoHandler struct {
	users    storage.UserStore
	todos    storage.TodoStore
	uploader upload.Uploader
	cfg      config.UploadConfig
}

// NewTodoHandler constructs the handler.
func NewTodoHandler(users storage.UserStore, todos storage.TodoStore, uploader upload.Uploader, cfg config.UploadConfig) *TodoHandler {
	if uploader == nil {
		uploader = upload.Disabled{}
	}
	return &TodoHandler{users: users, todos: todos, uploader: uploader, cfg: cfg}
}

// Register attaches the todo routes behind requireUser.
func (h *TodoHandler) Register(r chi.Router, requireUser func(http.Handler) http.Handler) {
	r.Route("/todo", func(r chi.Router) {
		r.Use(requireUser)
		r.Method(http.MethodPost, "/", handlerFunc(h.handleCreate))
		r.Method(http.MethodGet, "/", handlerFunc(h.handleList))
		r.Method(http.MethodGet, "/{id}", handlerFunc(h.handleGet))
		r.Method(http.MethodPatch, "/{id}", handlerFunc(h.handleUpdate))
		r.Method(http.MethodDelete, "/{id}", handlerFunc(h.handleDelete))
	})
}

func (h *TodoHandler) handleCreate(w http.ResponseWriter, r *http.Request) error {
	user, err := currentUser(r)
	if err != nil {
		return err
	}

	var req dto.CreateTodoRequest
	if isMultipart(r) {
		if err := parseMultipart(w, r, h.cfg.MaxBytes); err != nil {
			return err
		}
		req = dto.CreateTodoRequest{Title: r.FormValue("title"), Description: r.FormValue("description")}
	} else if err := decodeJSON(w, r, &req, h.cfg.MaxBytes); err != nil {
		return err
	}

	todo := models.Todo{
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		CreatedBy:   user.ID,
	}
	if err := todo.Validate(); err != nil {
		return apierr.BadRequest(err.Error())
	}
	if err := h.ensureTitleFree(r.Context(), todo.Title, ""); err != nil {
		return err
	}

	todo.Image = stageImage(r, "image", h.cfg.Dir, h.uploader)
	created, err := h.todos.CreateTodo(r.Context(), todo)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return apierr.Conflict("todo already exists")
		}
		return apierr.Internal("failed to create todo", err)
	}

	if err := h.saveTodoIDs(r.Context(), user.WithTodo(created.ID)); err != nil {
		return err
	}
	respond.JSON(w, http.StatusCreated, "todo created successfully", dto.TodoResponse{
		Username: user.Username,
		Email:    user.Email,
		Todo:     created,
	})
	return nil
}

func (h *TodoHandler) handleList(w http.ResponseWriter, r *http.Request) error {
	user, err := currentUser(r)
	if err != nil {
		return err
	}
	todos, err := h.todos.FindTodosByIDs(r.Context(), user.TodoIDs)
	if err != nil {
		return apierr.Internal("failed to fetch todos", err)
	}
	respond.JSON(w, http.StatusOK, "todos fetched successfully", dto.TodoListResponse{
		Username: user.Username,
		Email:    user.Email,
		Todos:    todos,
	})
	return nil
}

func (h *TodoHandler) handleGet(w http.ResponseWriter, r *http.Request) error {
	user, err := currentUser(r)
	if err != nil {
		return err
	}
	todo, err := h.ownedTodo(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	respond.JSON(w, http.StatusOK, "todo fetched successfully", dto.TodoResponse{
		Username: user.Username,
		Email:    user.Email,
		Todo:     todo,
	})
	return nil
}

func (h *TodoHandler) handleUpdate(w http.ResponseWriter, r *http.Request) error {
	user, err := currentUser(r)
	if err != nil {
		return err
	}
	current, err := h.ownedTodo(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		return err
	}

	patch, err := h.readPatch(w, r)
	if err != nil {
		return err
	}
	next := patch.Apply(current)
	if err := next.Validate(); err != nil {
		return apierr.BadRequest(err.Error())
	}
	if next.Title != current.Title {
		if err := h.ensureTitleFree(r.Context(), next.Title, current.ID); err != nil {
			return err
		}
	}
	if url := stageImage(r, "image", h.cfg.Dir, h.uploader); url != "" {
		patch.Image = &url
	}

	// An empty patch changes nothing but still counts as a touch for ordering.
	updated := current
	if !patch.Empty() {
		updated, err = h.todos.UpdateTodo(r.Context(), patch.Apply(current))
		if err != nil {
			switch {
			case errors.Is(err, storage.ErrAlreadyExists):
				return apierr.Conflict("todo already exists")
			case errors.Is(err, storage.ErrNotFound):
				return apierr.NotFound("todo not found")
			default:
				return apierr.Internal("failed to update todo", err)
			}
		}
	}

	if err := h.saveTodoIDs(r.Context(), user.WithTodoMovedToEnd(updated.ID)); err != nil {
		return err
	}
	respond.JSON(w, http.StatusOK, "todo updated successfully", dto.TodoResponse{
		Username: user.Username,
		Email:    user.Email,
		Todo:     updated,
	})
	return nil
}

func (h *TodoHandler) handleDelete(w http.ResponseWriter, r *http.Request) error {
	user, err := currentUser(r)
	if err != nil {
		return err
	}
	todo, err := h.ownedTodo(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		return err
	}

	removed, err := h.todos.DeleteTodo(r.Context(), todo.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apierr.NotFound("todo not found")
		}
		return apierr.Internal("failed to delete todo", err)
	}

	if err := h.saveTodoIDs(r.Context(), user.WithoutTodo(removed.ID)); err != nil {
		return err
	}
	respond.JSON(w, http.StatusOK, "todo deleted successfully", dto.TodoResponse{
		Username: user.Username,
		Email:    user.Email,
		Todo:     removed,
	})
	return nil
}

// readPatch collects the fields present in a JSON or multipart body. A
// replacement image is staged by the caller once the patch has validated.
func (h *TodoHandler) readPatch(w http.ResponseWriter, r *http.Request) (models.TodoPatch, error) {
	if !isMultipart(r) {
		var req dto.UpdateTodoRequest
		if err := decodeJSON(w, r, &req, h.cfg.MaxBytes); err != nil {
			return models.TodoPatch{}, err
		}
		return models.TodoPatch{Title: req.Title, Description: req.Description, IsCompleted: req.IsCompleted}, nil
	}

	if err := parseMultipart(w, r, h.cfg.MaxBytes); err != nil {
		return models.TodoPatch{}, err
	}
	completed, err := formBool(r, "isCompleted")
	if err != nil {
		return models.TodoPatch{}, err
	}
	return models.TodoPatch{
		Title:       formString(r, "title"),
		Description: formString(r, "description"),
		IsCompleted: completed,
	}, nil
}

func (h *TodoHandler) ownedTodo(ctx context.Context, user models.User, id string) (models.Todo, error) {
	todo, err := h.todos.FindTodoByID(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrInvalidID):
			return models.Todo{}, apierr.BadRequest("invalid todo id")
		case errors.Is(err, storage.ErrNotFound):
			return models.Todo{}, apierr.NotFound("todo not found")
		default:
			return models.Todo{}, apierr.Internal("failed to fetch todo", err)
		}
	}
	if todo.CreatedBy != user.ID {
		return models.Todo{}, apierr.NotFound("todo not found")
	}
	return todo, nil
}

// ensureTitleFree returns a conflict when another todo than exceptID already
// uses title.
func (h *TodoHandler) ensureTitleFree(ctx context.Context, title, exceptID string) error {
	existing, err := h.todos.FindTodoByTitle(ctx, title)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil
	case err != nil:
		return apierr.Internal("failed to check todo title", err)
	case existing.ID != exceptID:
		return apierr.Conflict("todo already exists")
	default:
		return nil
	}
}

func (h *TodoHandler) saveTodoIDs(ctx context.Context, user models.User) error {
	if err := h.users.SetTodoIDs(ctx, user.ID, user.TodoIDs); err != nil {
		return apierr.Internal("failed to update todo list", err)
	}
	return nil
}

func currentUser(r *http.Request) (models.User, error) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		return models.User{}, apierr.Unauthorized("unauthorized request")
	}
	return user, nil
}
