package auth

import (
	"context"

	"github.com/mind-engage/mindengage-survey/internal/rbac"
	"github.com/mind-engage/mindengage-survey/internal/survey"
)

type ctxKey string

const ctxKeySub ctxKey = "sub"

func WithSubject(ctx context.Context, sub int64) context.Context {
	return context.WithValue(ctx, ctxKeySub, sub)
}

func SubjectFromContext(ctx context.Context) (int64, bool) {
	sub, ok := ctx.Value(ctxKeySub).(int64)
	return sub, ok
}

// ActorFromContext combines the token subject with the role attached by the middleware chain.
func ActorFromContext(ctx context.Context) (survey.Actor, bool) {
	sub, ok := SubjectFromContext(ctx)
	if !ok {
		return survey.Actor{}, false
	}
	role := survey.Role(rbac.RoleFromContext(ctx))
	if !role.Valid() {
		return survey.Actor{}, false
	}
	return survey.Actor{ID: sub, Role: role}, true
}
