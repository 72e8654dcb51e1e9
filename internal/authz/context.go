package authz

import (
	"context"
	"net/http"
	"slices"
)

type contextKey string

const (
	tenantIDKey contextKey = "tenant_id"
	subjectKey  contextKey = "subject"
	scopesKey   contextKey = "scopes"
)

const (
	ScopeScrapesWrite = "scrapes:write"
	ScopeRunsRead     = "runs:read"
)

// WithIdentity stores the caller's tenant, subject and scopes on the context.
func WithIdentity(ctx context.Context, tenantID, subject string, scopes []string) context.Context {
	if tenantID != "" {
		ctx = context.WithValue(ctx, tenantIDKey, tenantID)
	}
	if subject != "" {
		ctx = context.WithValue(ctx, subjectKey, subject)
	}
	return context.WithValue(ctx, scopesKey, slices.Clone(scopes))
}

func TenantIDFromRequest(r *http.Request) (string, bool) {
	tid, ok := r.Context().Value(tenantIDKey).(string)
	if !ok || tid == "" {
		return "", false
	}
	return tid, true
}

func SubjectFromRequest(r *http.Request) (string, bool) {
	sub, ok := r.Context().Value(subjectKey).(string)
	if !ok || sub == "" {
		return "", false
	}
	return sub, true
}

func HasScope(r *http.Request, scope string) bool {
	scopes, _ := r.Context().Value(scopesKey).([]string)
	return slices.Contains(scopes, scope)
}
