package middleware

import (
	"context"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/splitsmart/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// SessionIDKey is the context key for the caller's split session ID.
	SessionIDKey contextKey = "session_id"
	// UserNameKey is the context key for the name the caller goes by in chat.
	UserNameKey contextKey = "user_name"
	// OwnerKey is the context key for the client identity owning saved splits.
	OwnerKey contextKey = "owner"
)

// GetSessionID extracts the session ID from the context.
// Returns empty string if not found.
func GetSessionID(ctx context.Context) string {
	id, _ := ctx.Value(SessionIDKey).(string)
	return id
}

// GetUserName extracts the user name from the context.
func GetUserName(ctx context.Context) string {
	name, _ := ctx.Value(UserNameKey).(string)
	return name
}

// GetOwner extracts the owner of the caller's saved splits from the context.
func GetOwner(ctx context.Context) string {
	owner, _ := ctx.Value(OwnerKey).(string)
	return owner
}

// WithSession returns ctx carrying the identity from validated claims.
func WithSession(ctx context.Context, claims *auth.Claims) context.Context {
	ctx = context.WithValue(ctx, SessionIDKey, claims.SessionID)
	ctx = context.WithValue(ctx, UserNameKey, claims.UserName)
	return context.WithValue(ctx, OwnerKey, claims.Owner())
}

// RequireSession returns a middleware that validates session tokens. The
// listed procedures are let through without one, e.g. the call that starts a
// session.
func RequireSession(tokens *auth.TokenManager, public ...string) connect.UnaryInterceptorFunc {
	open := make(map[string]bool, len(public))
	for _, p := range public {
		open[p] = true
	}
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if open[req.Spec().Procedure] {
				return next(ctx, req)
			}

			authHeader := req.Header().Get("Authorization")
			if authHeader == "" {
				return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
			}
			tokenString, ok := bearer(authHeader)
			if !ok {
				return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidToken)
			}

			claims, err := tokens.Validate(tokenString)
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}

			return next(WithSession(ctx, claims), req)
		}
	}
}

func bearer(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
