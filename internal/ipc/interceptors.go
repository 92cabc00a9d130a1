package ipc

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/go-authgate/speaknative/internal/logging"
)

const metaRequestID = "x-request-id"

func requestIDFrom(md metadata.MD) string {
	if v := md.Get(metaRequestID); len(v) > 0 {
		return v[0]
	}
	return ""
}

// ClientUnaryLoggingInterceptor stamps an x-request-id on outgoing calls, puts
// the enriched logger into the context and logs one line per call.
func ClientUnaryLoggingInterceptor(base *slog.Logger) grpc.UnaryClientInterceptor {
	if base == nil {
		base = slog.Default()
	}

	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()

		md, _ := metadata.FromOutgoingContext(ctx)
		rid := requestIDFrom(md)
		if rid == "" {
			rid = uuid.NewString()
			ctx = metadata.AppendToOutgoingContext(ctx, metaRequestID, rid)
		}

		l := base.With(
			slog.String("request_id", rid),
			slog.String("method", method),
		)
		ctx = logging.Into(ctx, l)

		err := invoker(ctx, method, req, reply, cc, opts...)

		l.Debug("ipc",
			slog.String("code", status.Code(err).String()),
			slog.Duration("dur", time.Since(start)),
		)
		return err
	}
}

// UnaryLoggingInterceptor logs one line per handled call with the caller's
// request id and puts the enriched logger into the handler's context.
func UnaryLoggingInterceptor(base *slog.Logger) grpc.UnaryServerInterceptor {
	if base == nil {
		base = slog.Default()
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()

		md, _ := metadata.FromIncomingContext(ctx)
		rid := requestIDFrom(md)
		if rid == "" {
			rid = uuid.NewString()
		}

		l := base.With(
			slog.String("request_id", rid),
			slog.String("method", info.FullMethod),
		)
		resp, err := handler(logging.Into(ctx, l), req)

		l.Debug("ipc",
			slog.String("code", status.Code(err).String()),
			slog.Duration("dur", time.Since(start)),
		)
		return resp, err
	}
}

// UnaryRecoverInterceptor turns a handler panic into codes.Internal.
func UnaryRecoverInterceptor(base *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				l := logging.From(ctx)
				if l == slog.Default() && base != nil {
					l = base
				}
				l.Error("panic_recovered",
					slog.String("method", info.FullMethod),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				resp, err = nil, status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

// StreamLoggingInterceptor logs when a stream opens and closes.
func StreamLoggingInterceptor(base *slog.Logger) grpc.StreamServerInterceptor {
	if base == nil {
		base = slog.Default()
	}

	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		base.Debug("ipc stream opened", slog.String("method", info.FullMethod))
		err := handler(srv, ss)
		base.Debug("ipc stream closed",
			slog.String("method", info.FullMethod),
			slog.String("code", status.Code(err).String()),
			slog.Duration("dur", time.Since(start)),
		)
		return err
	}
}
