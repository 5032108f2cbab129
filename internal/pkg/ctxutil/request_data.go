package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

// TraceData carries the per-request correlation identifiers set by
// middleware.AttachTraceContext.
type TraceData struct {
	TraceID   string
	RequestID string
}

// RequestData carries the authenticated actor and the organization/project
// scope resolved from its token, set by the auth middleware once a request
// has been authenticated.
type RequestData struct {
	OrgID     uuid.UUID
	ProjectID uuid.UUID
	UserID    uuid.UUID
}

type traceDataKey struct{}
type requestDataKey struct{}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	td, _ := ctx.Value(traceDataKey{}).(*TraceData)
	return td
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	rd, _ := ctx.Value(requestDataKey{}).(*RequestData)
	return rd
}
