package appctx

import "context"

// ContextKey is the shared type for all context keys in this codebase.
// Keeping it in a tiny package avoids import cycles (config <-> utils <-> models).
type ContextKey string

func (c ContextKey) String() string { return string(c) }

var (
	ContextKeyToken         = ContextKey("Token")
	ContextKeyUsername      = ContextKey("Username")
	ContextKeyUserId        = ContextKey("UserId")
	ContextKeyUserName      = ContextKey("UserName")
	ContextKeyCorrelationId = ContextKey("CorrelationId")
	ContextKeyPrincipal     = ContextKey("Principal")

	// ContextKeyCongregationIds holds the congregations the caller is a member of.
	// The congregation guard scopes bulk writes to this set.
	ContextKeyCongregationIds = ContextKey("CongregationIds")

	// ContextKeyAllCongregations is true for callers allowed to act on every congregation.
	ContextKeyAllCongregations = ContextKey("AllCongregations")
)

func GetString(ctx context.Context, key ContextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok
}

func GetBool(ctx context.Context, key ContextKey) (bool, bool) {
	v, ok := ctx.Value(key).(bool)
	return v, ok
}

func GetInt(ctx context.Context, key ContextKey) (int, bool) {
	v, ok := ctx.Value(key).(int)
	return v, ok
}

func GetInts(ctx context.Context, key ContextKey) ([]int, bool) {
	v, ok := ctx.Value(key).([]int)
	return v, ok
}

func Set(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}
