package staffcontext

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// StaffContextKey is the request context key for the acting staff identity.
type StaffContextKey struct{}

// WithStaffID stores the acting staff ID in the context.
func WithStaffID(ctx context.Context, staffID int64) context.Context {
	return context.WithValue(ctx, StaffContextKey{}, staffID)
}

// StaffIDFromContext returns the acting staff ID from context, if set.
// Every mutating ledger operation uses it for audit attribution.
func StaffIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}

	value := ctx.Value(StaffContextKey{})
	if value == nil {
		return 0, false
	}
	switch typed := value.(type) {
	case int64:
		return snowflake.ID(typed), true
	case snowflake.ID:
		return typed, true
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil {
			return parsed, true
		}
	}
	return 0, false
}
