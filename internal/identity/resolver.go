package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/akarpov/murmur-server/internal/store"
	"github.com/akarpov/murmur-server/internal/token"
)

// ErrUnauthenticated is returned where an operation requires an identity
// and none could be attached.
var ErrUnauthenticated = errors.New("unauthenticated")

// Resolver turns a bearer credential into a durable user identity. The
// same verification path serves discrete requests and connection
// handshakes, so the two cannot drift.
type Resolver struct {
	tokens *token.Service
	users  store.UserStore
}

// NewResolver creates a resolver backed by the given token service and
// user store.
func NewResolver(tokens *token.Service, users store.UserStore) *Resolver {
	return &Resolver{tokens: tokens, users: users}
}

// Resolve verifies the credential and looks the identity up fresh from the
// store. An empty credential resolves to (nil, nil): no identity, not an
// error; callers decide whether anonymous access is allowed. Invalid or
// expired credentials return ErrUnauthenticated-wrapped errors.
func (r *Resolver) Resolve(ctx context.Context, credential string) (*store.User, error) {
	if credential == "" {
		return nil, nil
	}

	userID, err := r.tokens.Verify(credential)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	user, err := r.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown user %d", ErrUnauthenticated, userID)
		}
		return nil, fmt.Errorf("resolve user: %w", err)
	}
	return user, nil
}

// CredentialFromRequest extracts the bearer credential from a discrete HTTP
// request. Returns "" when absent or not a bearer scheme.
func CredentialFromRequest(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// CredentialFromHandshake extracts the credential from connection
// establishment parameters. A websocket connection stops being a discrete
// request after the upgrade, so the token travels in the query string.
func CredentialFromHandshake(query url.Values) string {
	return query.Get("token")
}
