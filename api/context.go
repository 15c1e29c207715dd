package api

import (
	"context"

	"github.com/google/uuid"

	"github.com/alpenclub/tour-report-backend/errs"
)

type keyType string

const memberKey keyType = "member"

// Member is the authenticated club member attached to the request context.
type Member struct {
	ID    uuid.UUID
	Name  string
	Admin bool
}

// ctxWithMember adds the authenticated member to the context
func ctxWithMember(ctx context.Context, member Member) context.Context {
	return context.WithValue(ctx, memberKey, member)
}

// ctxGetMember retrieves the authenticated member from the context
func ctxGetMember(ctx context.Context) (Member, error) {
	value := ctx.Value(memberKey)
	if value == nil {
		return Member{}, errs.NewUnauthorized("no authenticated member in request context")
	}
	member, ok := value.(Member)
	if !ok {
		return Member{}, errs.NewUnauthorized("invalid member context value")
	}
	return member, nil
}
