package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxRole
	ctxProspectAccess
)

// Identity is the pre-validated caller identity supplied by the session collaborator.
type Identity struct {
	UserID         string
	Role           string
	ProspectAccess []string
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, id.UserID)
	ctx = context.WithValue(ctx, ctxRole, id.Role)
	ctx = context.WithValue(ctx, ctxProspectAccess, id.ProspectAccess)
	return ctx
}

func UserID(ctx context.Context) (string, error) {
	v := ctx.Value(ctxUserID)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("user_id not in context")
}

func Role(ctx context.Context) (string, error) {
	v := ctx.Value(ctxRole)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("role not in context")
}

// ProspectAccess returns the prospect ids granted to the caller (may be empty).
func ProspectAccess(ctx context.Context) []string {
	v, _ := ctx.Value(ctxProspectAccess).([]string)
	return v
}

// CurrentIdentity collects the identity stored by WithIdentity.
func CurrentIdentity(ctx context.Context) (Identity, error) {
	uid, err := UserID(ctx)
	if err != nil {
		return Identity{}, err
	}
	role, err := Role(ctx)
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: uid, Role: role, ProspectAccess: ProspectAccess(ctx)}, nil
}
