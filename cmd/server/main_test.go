package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/todo-api/internal/config"
)

func TestBackendFor(t *testing.T) {
	cases := map[string]backend{
		"postgres://u:p@localhost:5432/todo":      backendPostgres,
		"postgresql://localhost/todo?sslmode=off": backendPostgres,
		"mongodb://localhost:27017":               backendMongo,
		"mongodb+srv://cluster0.example.net":      backendMongo,
		"memory://":                               backendMemory,
	}
	for raw, want := range cases {
		got, err := backendFor(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := backendFor("mysql://localhost/todo")
	assert.Error(t, err)
}

func TestOpenStore_Memory(t *testing.T) {
	store, err := openStore(context.Background(), config.Config{DatabaseURL: "memory://"})
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, store.Close(context.Background()))
}

func TestRootCommand(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "migrate"}, names)

	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	assert.NotNil(t, serve.Flags().Lookup("migrate"))
}
