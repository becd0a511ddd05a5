package localsecrets

import (
	"context"
	"fmt"
	"strings"
)

const secretRefPrefix = "$SECRET:"

// Resolver resolves $SECRET:name references against a Store.
type Resolver struct {
	store *Store
}

// NewResolver returns a Resolver backed by store.
func NewResolver(store *Store) *Resolver {
	return &Resolver{store: store}
}

// ResolveValue resolves a single value that may contain a $SECRET:name
// reference. Values without the prefix are returned unchanged.
func (r *Resolver) ResolveValue(ctx context.Context, value string) (string, error) {
	if !strings.HasPrefix(value, secretRefPrefix) {
		return value, nil
	}

	name := strings.TrimPrefix(value, secretRefPrefix)
	if name == "" {
		return "", fmt.Errorf("empty secret name in reference")
	}

	secretValue, err := r.store.Get(ctx, name)
	if err != nil {
		return "", fmt.Errorf("get secret %q: %w", name, err)
	}
	return string(secretValue), nil
}

// ResolveDSN resolves ref (typically "$SECRET:postgres-dsn") to the
// plaintext Postgres DSN, the localsecrets analogue of
// internal/secretsdsn.Resolver.ResolveDSN.
func (r *Resolver) ResolveDSN(ctx context.Context, ref string) (string, error) {
	return r.ResolveValue(ctx, ref)
}

// IsSecretRef reports whether value is a $SECRET: reference.
func IsSecretRef(value string) bool {
	return strings.HasPrefix(value, secretRefPrefix)
}

// ExtractSecretName returns the referenced secret name, or "" if value is
// not a $SECRET: reference.
func ExtractSecretName(value string) string {
	if !strings.HasPrefix(value, secretRefPrefix) {
		return ""
	}
	return strings.TrimPrefix(value, secretRefPrefix)
}
