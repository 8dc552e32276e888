package records

import "context"

// Permission decides whether the current request may act on a record. The
// metadata is nil for list and create checks.
type Permission func(ctx context.Context, metadata map[string]any) bool

// AllowAll permits everything.
func AllowAll(context.Context, map[string]any) bool { return true }

// DenyAll permits nothing.
func DenyAll(context.Context, map[string]any) bool { return false }
