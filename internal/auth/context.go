package auth

import "context"

type ctxKey int

const operatorKey ctxKey = iota

// AuthContext is the operator an API token resolved to.
type AuthContext struct {
	OperatorID int64
	Name       string
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, operatorKey, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(operatorKey).(AuthContext)
	return ac, ok
}

// OperatorID is 0 for unauthenticated requests.
func OperatorID(ctx context.Context) int64 {
	ac, _ := FromContext(ctx)
	return ac.OperatorID
}

// OperatorName is what completions record as performed_by.
func OperatorName(ctx context.Context) string {
	ac, _ := FromContext(ctx)
	return ac.Name
}
