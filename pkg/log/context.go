package log

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

type contextKey string

const requestContextKey contextKey = "labsentry_request_context"

// RequestContext carries request tracing information across the request
// lifecycle.
type RequestContext struct {
	RequestID string
	StartTime time.Time
}

var (
	randSource = rand.NewSource(time.Now().UnixNano())
	randMutex  sync.Mutex
	// base36 charset (lowercase letters + digits)
	base36Chars = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// GenerateRequestID generates a 10-character base36 request id.
func GenerateRequestID() string {
	randMutex.Lock()
	defer randMutex.Unlock()

	b := make([]byte, 10)
	for i := range b {
		b[i] = base36Chars[randSource.Int63()%36]
	}
	return string(b)
}

// WithRequestContext injects a RequestContext into the Context. Called by
// the logging middleware at the start of each request.
func WithRequestContext(ctx context.Context, requestID string) context.Context {
	reqCtx := &RequestContext{
		RequestID: requestID,
		StartTime: time.Now(),
	}
	return context.WithValue(ctx, requestContextKey, reqCtx)
}

// GetRequestContext extracts the RequestContext from the Context, returning
// a placeholder when none was injected.
func GetRequestContext(ctx context.Context) *RequestContext {
	if ctx == nil {
		return &RequestContext{RequestID: "unknown"}
	}
	if reqCtx, ok := ctx.Value(requestContextKey).(*RequestContext); ok {
		return reqCtx
	}
	return &RequestContext{RequestID: "unknown"}
}

// GetRequestID extracts the request id from the Context.
func GetRequestID(ctx context.Context) string {
	return GetRequestContext(ctx).RequestID
}

// GetElapsedTime returns how long the request has been running, in
// milliseconds.
func GetElapsedTime(ctx context.Context) int64 {
	reqCtx := GetRequestContext(ctx)
	if reqCtx.StartTime.IsZero() {
		return 0
	}
	return time.Since(reqCtx.StartTime).Milliseconds()
}
