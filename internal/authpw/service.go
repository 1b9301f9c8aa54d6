// Package authpw provides email/password account registration and sign-in.
package authpw

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/starford/octopad/internal/apperr"
	"github.com/starford/octopad/internal/models"
)

// MinPasswordLength is the shortest password Register accepts.
const MinPasswordLength = 6

// ErrInvalidCredentials is returned by SignIn for an unknown email or a wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+$`)

// UserStore is the storage the service needs.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) error
	UserByEmail(ctx context.Context, email string) (models.User, error)
}

// Service registers and authenticates users.
type Service struct {
	store UserStore
	cost  int
}

// NewService creates a service hashing with bcrypt.DefaultCost.
func NewService(store UserStore) *Service {
	return &Service{store: store, cost: bcrypt.DefaultCost}
}

// RegisterRequest contains sign-up parameters.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the fields before any store access.
func (r RegisterRequest) Validate() error {
	return apperr.FromValidation(validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required.Error("name is required")),
		validation.Field(&r.Email,
			validation.Required.Error("email is required"),
			validation.Match(emailPattern).Error("must be a valid email address")),
		validation.Field(&r.Password,
			validation.Required.Error("password is required"),
			validation.RuneLength(MinPasswordLength, 0).Error(fmt.Sprintf("must be at least %d characters", MinPasswordLength))),
	))
}

// Register creates a user and returns its id. A taken email is reported as apperr.ErrAlreadyExists.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (string, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := req.Validate(); err != nil {
		return "", err
	}

	if _, err := s.store.UserByEmail(ctx, req.Email); err == nil {
		return "", fmt.Errorf("email %s: %w", req.Email, apperr.ErrAlreadyExists)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return "", fmt.Errorf("authpw: lookup user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return "", fmt.Errorf("authpw: hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: string(hash),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			return "", err
		}
		return "", fmt.Errorf("authpw: create user: %w", err)
	}
	return user.ID, nil
}

// SignIn checks a password against the stored hash.
func (s *Service) SignIn(ctx context.Context, email, password string) (models.User, error) {
	user, err := s.store.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, apperr.ErrNotFound) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, fmt.Errorf("authpw: lookup user: %w", err)
	}
	if user.PasswordHash == "" {
		return models.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}
