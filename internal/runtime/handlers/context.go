package handlers

import (
	"context"

	loggingpkg "github.com/drblury/diagflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/diagflow/internal/runtime/metadata"
)

// RequestContext describes the request a handler is serving. The dispatcher
// attaches it to the context passed into every handler call.
type RequestContext struct {
	Identifier string
	Action     Action
	Metadata   metadatapkg.Metadata
	Logger     loggingpkg.ServiceLogger
}

// CloneMetadata returns a copy of the request headers.
func (r RequestContext) CloneMetadata() metadatapkg.Metadata {
	return r.Metadata.Clone()
}

// Get retrieves a metadata value by key.
func (r RequestContext) Get(key string) string {
	return r.Metadata[key]
}

// CorrelationID returns the correlation ID from metadata, if present.
func (r RequestContext) CorrelationID() string {
	return r.Metadata[MetadataKeyCorrelationID]
}

type requestContextKey struct{}

// WithRequestContext attaches rc to ctx.
func WithRequestContext(ctx context.Context, rc RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// RequestFromContext returns the request a handler is serving, if any.
func RequestFromContext(ctx context.Context) (RequestContext, bool) {
	rc, ok := ctx.Value(requestContextKey{}).(RequestContext)
	return rc, ok
}

// LoggerFromContext returns the request-scoped logger or a no-op logger.
func LoggerFromContext(ctx context.Context) loggingpkg.ServiceLogger {
	if rc, ok := RequestFromContext(ctx); ok && rc.Logger != nil {
		return rc.Logger
	}
	return loggingpkg.NopLogger()
}
