package utils

import (
	"context"

	"github.com/venturelab/accelerator_backend/appctx"
)

// Alias the shared context key type so call sites stay short.
type contextKey = appctx.ContextKey

var (
	ContextKeyToken         = appctx.ContextKeyToken
	ContextKeyAccountId     = appctx.ContextKeyAccountId
	ContextKeyAccountName   = appctx.ContextKeyAccountName
	ContextKeyRole          = appctx.ContextKeyRole
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
	ContextKeyIsAdmin       = appctx.ContextKeyIsAdmin
)

func GetTokenFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyToken)
}

func GetAccountIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyAccountId)
}

func GetAccountNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyAccountName)
}

func GetRoleFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyRole)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func GetIsAdminFromContext(ctx context.Context) (bool, bool) {
	return appctx.GetBool(ctx, ContextKeyIsAdmin)
}

func SetTokenInContext(ctx context.Context, token string) context.Context {
	return appctx.Set(ctx, ContextKeyToken, token)
}

func SetAccountIdInContext(ctx context.Context, accountId int) context.Context {
	return appctx.Set(ctx, ContextKeyAccountId, accountId)
}

func SetAccountNameInContext(ctx context.Context, accountName string) context.Context {
	return appctx.Set(ctx, ContextKeyAccountName, accountName)
}

func SetRoleInContext(ctx context.Context, role string) context.Context {
	return appctx.Set(ctx, ContextKeyRole, role)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func SetIsAdminInContext(ctx context.Context, isAdmin bool) context.Context {
	return appctx.Set(ctx, ContextKeyIsAdmin, isAdmin)
}
