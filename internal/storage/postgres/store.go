package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/hongminglow/todo-api/internal/models"
	"github.com/hongminglow/todo-api/internal/storage"
	"github.com/hongminglow/todo-api/internal/storage/postgres/migrations"
)

// Ensure Store satisfies the storage.Store interface at compile time.
var _ storage.Store = (*Store)(nil)

const uniqueViolation = "23505"

// Store provides Postgres-backed persistence for users and todos.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects a pool to databaseURL. Call Migrate before serving.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases database resources.
func (s *Store) Close(context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Migrate applies the embedded goose migrations.
func (s *Store) Migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

const userColumns = `id, username, first_name, last_name, email, phone, password_hash, profile, refresh_token, todo_ids, created_at, updated_at`

// CreateUser inserts a new user row.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	const query = `
		INSERT INTO users (id, username, first_name, last_name, email, phone, password_hash, profile)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + userColumns
	row := s.pool.QueryRow(ctx, query, uuid.NewString(), user.Username, user.FirstName, user.LastName,
		user.Email, user.Phone, user.PasswordHash, user.Profile)
	created, err := scanUser(row)
	if err != nil {
		return models.User{}, translate(err)
	}
	return created, nil
}

// FindUserByID fetches a user by primary key.
func (s *Store) FindUserByID(ctx context.Context, id string) (models.User, error) {
	if err := validID(id); err != nil {
		return models.User{}, err
	}
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// FindByIdentifier fetches the user matching the identifier, preferring a
// username match over email and email over phone.
func (s *Store) FindByIdentifier(ctx context.Context, identifier string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users
		WHERE username = $1 OR email = $1 OR phone = $1
		ORDER BY CASE WHEN username = $1 THEN 0 WHEN email = $1 THEN 1 ELSE 2 END
		LIMIT 1`
	row := s.pool.QueryRow(ctx, query, identifier)
	return scanUser(row)
}

// FindConflicting fetches any user already holding one of the unique values.
func (s *Store) FindConflicting(ctx context.Context, username, email, phone string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users
		WHERE username = $1 OR email = $2 OR phone = $3
		LIMIT 1`
	row := s.pool.QueryRow(ctx, query, username, email, phone)
	return scanUser(row)
}

// SetRefreshToken overwrites the stored session token.
func (s *Store) SetRefreshToken(ctx context.Context, userID, token string) error {
	return s.execUser(ctx, `UPDATE users SET refresh_token = $2, updated_at = NOW() WHERE id = $1`, userID, token)
}

// SetTodoIDs replaces the user's ordered todo list.
func (s *Store) SetTodoIDs(ctx context.Context, userID string, todoIDs []string) error {
	if todoIDs == nil {
		todoIDs = []string{}
	}
	return s.execUser(ctx, `UPDATE users SET todo_ids = $2, updated_at = NOW() WHERE id = $1`, userID, todoIDs)
}

func (s *Store) execUser(ctx context.Context, query, userID string, arg any) error {
	if err := validID(userID); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, query, userID, arg)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.Username, &user.FirstName, &user.LastName, &user.Email, &user.Phone,
		&user.PasswordHash, &user.Profile, &user.RefreshToken, &user.TodoIDs, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, err
	}
	if user.TodoIDs == nil {
		user.TodoIDs = []string{}
	}
	return user, nil
}

func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return storage.ErrAlreadyExists
	}
	return err
}

func validID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return storage.ErrInvalidID
	}
	return nil
}
