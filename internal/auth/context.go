package auth

import "context"

type ctxKey struct{}

// WithClaims stores verified token claims in the context.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// ClaimsFrom returns the claims stored by WithClaims, or nil.
func ClaimsFrom(ctx context.Context) *Claims {
	c, _ := ctx.Value(ctxKey{}).(*Claims)
	return c
}

// AccountID returns the authenticated account id, or "".
func AccountID(ctx context.Context) string {
	if c := ClaimsFrom(ctx); c != nil {
		return c.AccountID
	}
	return ""
}
