package calllog

import "context"

type ctxKey struct{}

// WithVerification returns a context carrying the verification run ID so
// provider calls made anywhere below can be attributed to the run.
func WithVerification(ctx context.Context, verificationID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, verificationID)
}

// VerificationFrom extracts the verification run ID from the context.
// Returns "" if none is set.
func VerificationFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
