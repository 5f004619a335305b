package trace

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// UnaryClientInterceptor sends the trace in ctx as outgoing metadata so a
// remote recognition service can log under the same trace ID.
func UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		return invoker(outgoing(ctx), method, req, reply, cc, opts...)
	}
}

// UnaryServerInterceptor continues the caller's trace in the handler ctx.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		return handler(WithContext(ctx, FromIncoming(ctx)), req)
	}
}

// FromIncoming builds a child span from incoming gRPC metadata, starting a
// new trace when the caller sent none.
func FromIncoming(ctx context.Context) Context {
	md, _ := metadata.FromIncomingContext(ctx)
	first := func(key string) string {
		if v := md.Get(key); len(v) > 0 {
			return v[0]
		}
		return ""
	}
	tc := Context{TraceID: first(TraceIDKey), ParentSpanID: first(SpanIDKey), SpanID: newSpanID()}
	if tc.TraceID == "" {
		tc.TraceID = newTraceID()
	}
	return tc
}

func outgoing(ctx context.Context) context.Context {
	ctx, tc := EnsureContext(ctx)
	md := metadata.MD{}
	if prev, ok := metadata.FromOutgoingContext(ctx); ok {
		md = prev.Copy()
	}
	md.Set(TraceIDKey, tc.TraceID)
	md.Set(SpanIDKey, tc.SpanID)
	if tc.ParentSpanID != "" {
		md.Set(ParentSpanIDKey, tc.ParentSpanID)
	}
	return metadata.NewOutgoingContext(ctx, md)
}
