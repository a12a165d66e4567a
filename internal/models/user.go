package models

import (
	"slices"
	"time"
)

// User captures application-facing fields for an authenticated identity.
// PasswordHash and RefreshToken never leave the process.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	PasswordHash string    `json:"-"`
	Profile      string    `json:"profile"`
	RefreshToken string    `json:"-"`
	TodoIDs      []string  `json:"todos"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// WithRefreshToken returns the user holding token as its only live session.
// An empty token means no session.
func (u User) WithRefreshToken(token string) User {
	u.RefreshToken = token
	return u
}

// WithTodo appends todoID unless the user already owns it.
func (u User) WithTodo(todoID string) User {
	if slices.Contains(u.TodoIDs, todoID) {
		u.TodoIDs = slices.Clone(u.TodoIDs)
		return u
	}
	u.TodoIDs = append(slices.Clone(u.TodoIDs), todoID)
	return u
}

// WithTodoMovedToEnd moves todoID to the end of the list, adding it if absent.
// Recently updated todos sort last.
func (u User) WithTodoMovedToEnd(todoID string) User {
	u = u.WithoutTodo(todoID)
	u.TodoIDs = append(u.TodoIDs, todoID)
	return u
}

// WithoutTodo drops every occurrence of todoID.
func (u User) WithoutTodo(todoID string) User {
	out := make([]string, 0, len(u.TodoIDs))
	for _, id := range u.TodoIDs {
		if id != todoID {
			out = append(out, id)
		}
	}
	u.TodoIDs = out
	return u
}

// OwnsTodo reports whether todoID is in the user's list.
func (u User) OwnsTodo(todoID string) bool {
	return slices.Contains(u.TodoIDs, todoID)
}
