package middleware

import (
	"context"

	"github.com/google/uuid"

	pkgerrors "github.com/zazmarga/online-cinema/pkg/errors"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxRole   contextKey = "actor_role"
	ctxEmail  contextKey = "user_email"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

// UserUUIDFromContext parses the authenticated user id; ok is false when absent or malformed.
func UserUUIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	raw := UserIDFromContext(ctx)
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

func EmailFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxEmail).(string); ok {
		return v
	}
	return ""
}

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

// WithRole injects the actor role into the context.
func WithRole(ctx context.Context, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRole, role)
}

// WithEmail injects the principal's email into the context.
func WithEmail(ctx context.Context, email string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxEmail, email)
}

// RequireUserID returns the authenticated user or an UNAUTHORIZED error.
func RequireUserID(ctx context.Context) (uuid.UUID, error) {
	id, ok := UserUUIDFromContext(ctx)
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id missing")
	}
	return id, nil
}
