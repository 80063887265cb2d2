package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/akarpov/murmur-server/internal/notify"
	"github.com/akarpov/murmur-server/internal/store"
	"github.com/akarpov/murmur-server/internal/token"
)

var (
	// ErrInvalidCredentials is returned when email/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when registering a taken username or email.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidUsername is returned when username doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidEmail is returned when email doesn't meet constraints.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
)

// Service provides registration, login and logout.
type Service struct {
	store    store.Store
	tokens   *token.Service
	notifier *notify.Dispatcher
}

// NewService creates an authentication service.
func NewService(st store.Store, tokens *token.Service, notifier *notify.Dispatcher) *Service {
	return &Service{
		store:    st,
		tokens:   tokens,
		notifier: notifier,
	}
}

// Register creates a new user with hashed password and returns a signed
// token together with the created record.
func (s *Service) Register(ctx context.Context, username, email, password string) (string, *store.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if len(username) < 3 || len(username) > 32 {
		return "", nil, ErrInvalidUsername
	}
	if !strings.Contains(email, "@") {
		return "", nil, ErrInvalidEmail
	}
	if len(password) < 6 {
		return "", nil, ErrInvalidPassword
	}

	hashed, err := HashPassword(password)
	if err != nil {
		return "", nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, username, email, hashed)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateUser) {
			return "", nil, ErrUserExists
		}
		return "", nil, fmt.Errorf("create user: %w", err)
	}

	tok, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}

	return tok, user, nil
}

// Login validates credentials, marks the user online and returns a signed
// token. The presence event goes out only after the presence write
// committed.
func (s *Service) Login(ctx context.Context, email, password string) (string, *store.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("find user: %w", err)
	}

	if errPwd := ComparePassword(user.PasswordHash, password); errPwd != nil {
		return "", nil, ErrInvalidCredentials
	}

	user, err = s.store.UpdateUserPresence(ctx, user.ID, true, time.Now())
	if err != nil {
		return "", nil, fmt.Errorf("update presence: %w", err)
	}
	s.notifier.PresenceChanged(user)

	tok, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}

	return tok, user, nil
}

// Logout marks the user offline and publishes the presence change. The
// token stays valid until its natural expiry; there is no revocation list.
func (s *Service) Logout(ctx context.Context, userID int64) error {
	user, err := s.store.UpdateUserPresence(ctx, userID, false, time.Now())
	if err != nil {
		return fmt.Errorf("update presence: %w", err)
	}
	s.notifier.PresenceChanged(user)
	return nil
}
