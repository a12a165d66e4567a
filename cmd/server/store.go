package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/hongminglow/todo-api/internal/config"
	"github.com/hongminglow/todo-api/internal/storage"
	"github.com/hongminglow/todo-api/internal/storage/memory"
	"github.com/hongminglow/todo-api/internal/storage/mongo"
	"github.com/hongminglow/todo-api/internal/storage/postgres"
)

type backend int

const (
	backendPostgres backend = iota
	backendMongo
	backendMemory
)

// backendFor picks the storage backend from the DATABASE_URL scheme.
func backendFor(databaseURL string) (backend, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return 0, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
		return backendPostgres, nil
	case "mongodb", "mongodb+srv":
		return backendMongo, nil
	case "memory":
		return backendMemory, nil
	default:
		return 0, fmt.Errorf("unsupported DATABASE_URL scheme %q", u.Scheme)
	}
}

func openStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	kind, err := backendFor(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	switch kind {
	case backendMongo:
		store, err := mongo.NewStore(ctx, cfg.DatabaseURL, cfg.DatabaseName)
		if err != nil {
			return nil, err
		}
		return store, nil
	case backendMemory:
		return memory.New(), nil
	default:
		store, err := postgres.NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}
