// Package audit records security-relevant events (signups, logins, data
// mutations) as structured log entries.
package audit

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"one4allvocab.org/internal/auth"
	"one4allvocab.org/internal/obs"
)

// LogEvent writes an audit entry enriched with request, trace and user context.
// Field values must never carry passwords or tokens.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	zf := []zap.Field{zap.String("type", "audit"), zap.String("event", event)}
	if id, ok := auth.IdentityFromContext(ctx); ok {
		zf = append(zf, zap.Int64("user_id", id.UserID))
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		zf = append(zf, zap.Any(k, fields[k]))
	}
	obs.FromContext(ctx).Info("audit", zf...)
	return nil
}
