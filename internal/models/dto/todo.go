package dto

import "github.com/hongminglow/todo-api/internal/models"

type CreateTodoRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type UpdateTodoRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	IsCompleted *bool   `json:"isCompleted"`
}

type TodoResponse struct {
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Todo     models.Todo `json:"todo"`
}

type TodoListResponse struct {
	Username string        `json:"username"`
	Email    string        `json:"email"`
	Todos    []models.Todo `json:"todos"`
}
