package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a lookup misses.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateUser is returned when a unique constraint on
	// username or email is violated.
	ErrDuplicateUser = errors.New("duplicate user")
)

// User represents a registered user.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	IsOnline     bool
	LastSeen     time.Time
	CreatedAt    time.Time
}

// Message represents a persisted direct message between two users.
type Message struct {
	ID          int64
	SenderID    int64
	RecipientID int64
	Body        string
	IsRead      bool
	ReadAt      *time.Time
	CreatedAt   time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	// Returns ErrDuplicateUser if username or email is taken.
	CreateUser(ctx context.Context, username, email, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID. Returns ErrNotFound on miss.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByEmail retrieves a user by email. Returns ErrNotFound on miss.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// ListUsersExcept lists all users except the given one,
	// ordered by username.
	ListUsersExcept(ctx context.Context, userID int64) ([]*User, error)

	// UpdateUserPresence sets the online flag and last-seen timestamp,
	// returning the updated record.
	UpdateUserPresence(ctx context.Context, userID int64, online bool, seenAt time.Time) (*User, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// CreateMessage persists a new unread message and returns it with
	// ID and creation time filled in.
	CreateMessage(ctx context.Context, senderID, recipientID int64, body string) (*Message, error)

	// ListMessagesBetween retrieves the conversation between two users
	// in either direction, ordered by creation time ascending.
	ListMessagesBetween(ctx context.Context, a, b int64) ([]*Message, error)

	// MarkMessageRead flips the read flag and stamps the read time,
	// returning the updated record. Idempotent: marking an already-read
	// message keeps the original read timestamp.
	MarkMessageRead(ctx context.Context, id int64) (*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
