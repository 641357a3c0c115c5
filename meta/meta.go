// Package meta provides functionality for managing request metadata through context.
//
// Values injected here are picked up by the notifier and attached to error reports
// under the "request" tab.
package meta

import (
	"context"
	"fmt"

	"github.com/code19m/errx"
)

// ContextKey is a type for keys used in context values for metadata.
type ContextKey string

const (
	// TraceID represents a unique identifier for tracing requests across services.
	TraceID ContextKey = "trace_id"

	// ActorID identifies the user or system making the request.
	ActorID ContextKey = "actor_id"

	// ActorType indicates the type of the actor making the request.
	ActorType ContextKey = "actor_type"

	// IPAddress contains the client's IP address.
	IPAddress ContextKey = "ip_address"

	// UserAgent contains the user agent string from the request.
	UserAgent ContextKey = "user_agent"

	// RemoteAddr contains the network address that sent the request.
	RemoteAddr ContextKey = "remote_addr"

	// Referer contains the address of the previous web page from which a link was followed.
	Referer ContextKey = "referer"

	// Operation names the operation (route, command, task) being executed.
	Operation ContextKey = "operation"
)

const (
	codeKeyNotFound  = "META_KEY_NOT_FOUND"
	codeTypeMismatch = "META_TYPE_MISMATCH"
)

//nolint:gochecknoglobals // fixed list of keys extracted from context
var knownKeys = []ContextKey{
	TraceID,
	ActorID,
	ActorType,
	IPAddress,
	UserAgent,
	RemoteAddr,
	Referer,
	Operation,
}

// InjectMetaToContext adds metadata from the provided map to the context.
// It only adds values that are not empty strings and returns a new context
// with the added values.
func InjectMetaToContext(ctx context.Context, data map[ContextKey]string) context.Context {
	for k, v := range data {
		if v != "" {
			ctx = context.WithValue(ctx, k, v) //nolint:fatcontext // allow due to finite number of keys
		}
	}
	return ctx
}

// ExtractMetaFromContext extracts all metadata from the provided context.
// Only predefined keys holding non-empty string values are returned.
func ExtractMetaFromContext(ctx context.Context) map[ContextKey]string {
	data := make(map[ContextKey]string)
	if ctx == nil {
		return data
	}
	for _, k := range knownKeys {
		if v, ok := ctx.Value(k).(string); ok && v != "" {
			data[k] = v
		}
	}
	return data
}

// Find returns the string value stored under key, or "" when absent.
func Find(ctx context.Context, key ContextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

// ShouldGetMeta returns the value stored under key or an error when the key
// is missing or holds a non-string value.
func ShouldGetMeta(ctx context.Context, key ContextKey) (string, error) {
	raw := ctx.Value(key)
	if raw == nil {
		return "", errx.New("[meta]: key not found", errx.WithCode(codeKeyNotFound), errx.WithDetails(errx.D{
			"key": string(key),
		}))
	}
	v, ok := raw.(string)
	if !ok {
		return "", errx.New("[meta]: type mismatch", errx.WithCode(codeTypeMismatch), errx.WithDetails(errx.D{
			"key":  string(key),
			"type": fmt.Sprintf("%T", raw),
		}))
	}
	return v, nil
}
