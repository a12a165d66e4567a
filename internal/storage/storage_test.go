package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/todo-api/internal/models"
)

func TestOrderByIDs(t *testing.T) {
	todos := []models.Todo{{ID: "1"}, {ID: "2"}, {ID: "3"}}

	got := OrderByIDs([]string{"3", "x", "1"}, todos)
	require.Len(t, got, 2)
	assert.Equal(t, "3", got[0].ID)
	assert.Equal(t, "1", got[1].ID)

	assert.Empty(t, OrderByIDs(nil, todos))
}
