// Package credentials verifies and creates user identities on top of a
// storage.UserStore. It is the only place a password is hashed.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hongminglow/todo-api/internal/auth"
	"github.com/hongminglow/todo-api/internal/models"
	"github.com/hongminglow/todo-api/internal/storage"
)

// ErrMissingFields is returned by Registration.Validate.
var ErrMissingFields = errors.New("firstName, lastName, username, email, phone and password are required")

// ErrPasswordTooLong is returned by Registration.Validate for passwords bcrypt
// cannot hash.
var ErrPasswordTooLong = fmt.Errorf("password must be at most %d bytes", MaxPasswordBytes)

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// Registration is the input of Create. Password is plaintext.
type Registration struct {
	FirstName string
	LastName  string
	Username  string
	Email     string
	Phone     string
	Password  string
	Profile   string
}

// Normalize trims every field and lower-cases username and email.
func (r Registration) Normalize() Registration {
	return Registration{
		FirstName: strings.TrimSpace(r.FirstName),
		LastName:  strings.TrimSpace(r.LastName),
		Username:  strings.ToLower(strings.TrimSpace(r.Username)),
		Email:     strings.ToLower(strings.TrimSpace(r.Email)),
		Phone:     strings.TrimSpace(r.Phone),
		Password:  r.Password,
		Profile:   strings.TrimSpace(r.Profile),
	}
}

// Validate checks that every required field is present.
func (r Registration) Validate() error {
	for _, v := range []string{r.FirstName, r.LastName, r.Username, r.Email, r.Phone} {
		if strings.TrimSpace(v) == "" {
			return ErrMissingFields
		}
	}
	if strings.TrimSpace(r.Password) == "" {
		return ErrMissingFields
	}
	if len(r.Password) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}

// Service is the credential store.
type Service struct {
	users storage.UserStore
	cost  int
}

// NewService wraps users; cost is the bcrypt work factor.
func NewService(users storage.UserStore, cost int) *Service {
	return &Service{users: users, cost: cost}
}

// FindByIdentifier looks a user up by username, email or phone.
func (s *Service) FindByIdentifier(ctx context.Context, identifier string) (models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return models.User{}, storage.ErrNotFound
	}
	user, err := s.users.FindByIdentifier(ctx, identifier)
	if errors.Is(err, storage.ErrNotFound) && identifier != strings.ToLower(identifier) {
		return s.users.FindByIdentifier(ctx, strings.ToLower(identifier))
	}
	return user, err
}

// FindByID loads a user by id.
func (s *Service) FindByID(ctx context.Context, id string) (models.User, error) {
	return s.users.FindUserByID(ctx, id)
}

// CheckAvailable returns storage.ErrAlreadyExists when the username, email or
// phone of reg is already taken. reg must be normalized.
func (s *Service) CheckAvailable(ctx context.Context, reg Registration) error {
	_, err := s.users.FindConflicting(ctx, reg.Username, reg.Email, reg.Phone)
	switch {
	case err == nil:
		return storage.ErrAlreadyExists
	case errors.Is(err, storage.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("check uniqueness: %w", err)
	}
}

// Create hashes the password and persists a new user. The backend's unique
// indexes still reject a concurrent duplicate with storage.ErrAlreadyExists.
func (s *Service) Create(ctx context.Context, reg Registration) (models.User, error) {
	reg = reg.Normalize()
	if err := reg.Validate(); err != nil {
		return models.User{}, err
	}
	if err := s.CheckAvailable(ctx, reg); err != nil {
		return models.User{}, err
	}
	hash, err := auth.HashPassword(reg.Password, s.cost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	return s.users.CreateUser(ctx, models.User{
		Username:     reg.Username,
		FirstName:    reg.FirstName,
		LastName:     reg.LastName,
		Email:        reg.Email,
		Phone:        reg.Phone,
		PasswordHash: hash,
		Profile:      reg.Profile,
	})
}

// VerifySecret reports whether plaintext is the user's password.
func (s *Service) VerifySecret(user models.User, plaintext string) bool {
	if user.PasswordHash == "" {
		return false
	}
	return auth.CheckPassword(user.PasswordHash, plaintext)
}

// SetRefreshToken persists token as the user's only session and returns the
// resulting user. An empty token ends the session.
func (s *Service) SetRefreshToken(ctx context.Context, user models.User, token string) (models.User, error) {
	next := user.WithRefreshToken(token)
	if err := s.users.SetRefreshToken(ctx, next.ID, next.RefreshToken); err != nil {
		return user, fmt.Errorf("store refresh token: %w", err)
	}
	return next, nil
}
