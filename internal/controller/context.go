package controller

import "context"

type contextKey int

const (
	partyCodeCtxKey contextKey = iota
	userIdCtxKey
)

func (c controller) getPartyCodeFromCtx(ctx context.Context) string {
	code, ok := ctx.Value(partyCodeCtxKey).(string)
	if !ok {
		return ""
	}

	return code
}

func (c controller) getUserIdFromCtx(ctx context.Context) string {
	userId, ok := ctx.Value(userIdCtxKey).(string)
	if !ok {
		return ""
	}

	return userId
}
