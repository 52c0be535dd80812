package ports

import "context"

type ctxKey int

const clientIPKey ctxKey = iota

// WithClientIP returns a copy of ctx carrying the caller's IP address for audit entries.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIP returns the IP stored by WithClientIP, or "".
func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}
