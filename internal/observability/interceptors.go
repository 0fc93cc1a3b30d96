// Package observability provides gRPC interceptors for metrics and logging.
package observability

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"voice-command-dispatcher/internal/observability/logging"
	"voice-command-dispatcher/internal/observability/metrics"
)

// SessionFunc returns the id of the current or most recent recognition
// session, or "".
type SessionFunc func() string

// UnaryServerInterceptor returns a gRPC unary interceptor for metrics and
// logging. Each call is logged with the session that was active when it
// completed, so StartSession logs the id it created.
func UnaryServerInterceptor(m *metrics.Metrics, session SessionFunc) grpc.UnaryServerInterceptor {
	logger := logging.WithComponent("grpc")
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		code := status.Code(err)
		duration := time.Since(start)
		m.RecordGRPC(info.FullMethod, code.String(), duration.Seconds())
		logCall(ctx, logger, info.FullMethod, code, duration, session).
			Err(err).
			Msg("gRPC unary call")

		return resp, err
	}
}

// StreamServerInterceptor returns a gRPC stream interceptor for metrics and
// logging. WatchStatus streams last as long as the watcher stays connected.
func StreamServerInterceptor(m *metrics.Metrics, session SessionFunc) grpc.StreamServerInterceptor {
	logger := logging.WithComponent("grpc")
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		start := time.Now()

		err := handler(srv, ss)

		code := status.Code(err)
		duration := time.Since(start)
		m.RecordGRPC(info.FullMethod, code.String(), duration.Seconds())

		ctx := context.Background()
		if ss != nil {
			ctx = ss.Context()
		}
		logCall(ctx, logger, info.FullMethod, code, duration, session).
			Err(err).
			Msg("gRPC stream completed")

		return err
	}
}

func logCall(ctx context.Context, logger zerolog.Logger, method string, code codes.Code, d time.Duration, session SessionFunc) *zerolog.Event {
	ev := logger.WithLevel(callLevel(code)).
		Str("method", method).
		Str("code", code.String()).
		Dur("duration", d)
	if session != nil {
		if id := session(); id != "" {
			ev = ev.Str("sessionId", id)
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		ev = ev.Str("peer", p.Addr.String())
	}
	return ev
}

// callLevel maps a status code to a log level. Rejections the client can act
// on (already active, no session, bad transcript) are warnings; server-side
// failures are errors.
func callLevel(code codes.Code) zerolog.Level {
	switch code {
	case codes.OK, codes.Canceled:
		return zerolog.InfoLevel
	case codes.FailedPrecondition, codes.InvalidArgument, codes.Unimplemented, codes.NotFound:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
