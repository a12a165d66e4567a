package models

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxDescriptionLength bounds Todo.Description in characters.
const MaxDescriptionLength = 200

// Todo is a single item owned by a user.
type Todo struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	IsCompleted bool      `json:"isCompleted"`
	Image       string    `json:"image"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TodoPatch lists the fields a PATCH may change; nil means unchanged.
type TodoPatch struct {
	Title       *string
	Description *string
	IsCompleted *bool
	Image       *string
}

// Empty reports whether the patch changes nothing.
func (p TodoPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.IsCompleted == nil && p.Image == nil
}

// Apply returns t with the patch applied. t itself is not modified.
func (p TodoPatch) Apply(t Todo) Todo {
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.IsCompleted != nil {
		t.IsCompleted = *p.IsCompleted
	}
	if p.Image != nil {
		t.Image = *p.Image
	}
	return t
}

// Validate checks the invariants every stored todo must satisfy.
func (t Todo) Validate() error {
	if strings.TrimSpace(t.Title) == "" || strings.TrimSpace(t.Description) == "" {
		return errors.New("title and description are required")
	}
	if utf8.RuneCountInString(t.Description) > MaxDescriptionLength {
		return errors.New("description must be at most 200 characters")
	}
	return nil
}
