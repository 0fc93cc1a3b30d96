// Package grpcapi exposes session control over gRPC.
package grpcapi

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"voice-command-dispatcher/internal/app"
	"voice-command-dispatcher/internal/notify"
	"voice-command-dispatcher/internal/service/recognition"
	"voice-command-dispatcher/internal/service/recognition/push"
	"voice-command-dispatcher/internal/service/session"
)

type Server struct {
	app *app.Application
}

// Register registers the VoiceControl service on g.
func Register(g *grpc.Server, a *app.Application) {
	RegisterVoiceControlServer(g, &Server{app: a})
}

// Stop gracefully stops g, waiting for in-flight calls and open streams. If
// ctx ends first the server is stopped hard. It reports whether the stop was
// graceful.
func Stop(ctx context.Context, g *grpc.Server) bool {
	stopped := make(chan struct{})
	go func() {
		g.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return true
	case <-ctx.Done():
		g.Stop()
		<-stopped
		return false
	}
}

func (s *Server) StartSession(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	err := s.app.Controller.Start(ctx)
	switch {
	case err == nil:
		return snapshotStruct(s.app.Controller.Snapshot())
	case errors.Is(err, session.ErrAlreadyActive):
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, recognition.ErrUnsupported):
		return nil, status.Error(codes.Unimplemented, err.Error())
	default:
		return nil, status.Error(codes.Unavailable, err.Error())
	}
}

func (s *Server) StopSession(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	s.app.Controller.Stop()
	return snapshotStruct(s.app.Controller.Snapshot())
}

func (s *Server) GetSession(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return snapshotStruct(s.app.Controller.Snapshot())
}

// PushTranscript delivers a final transcript to the push recognizer.
func (s *Server) PushTranscript(_ context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if s.app.Push == nil {
		return nil, status.Error(codes.Unimplemented, "recognizer does not accept pushed transcripts")
	}

	err := s.app.Push.Push(in.GetValue(), true)
	switch {
	case err == nil:
		return &emptypb.Empty{}, nil
	case errors.Is(err, push.ErrNoSession):
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	default:
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
}

// WatchStatus streams hub messages until the client goes away.
func (s *Server) WatchStatus(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	msgs, unsubscribe := s.app.Hub.Subscribe()
	defer unsubscribe()

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			st, err := messageStruct(msg)
			if err != nil {
				return status.Error(codes.Internal, err.Error())
			}
			if err := stream.Send(st); err != nil {
				return err
			}
		}
	}
}

func snapshotStruct(snap session.Snapshot) (*structpb.Struct, error) {
	fields := map[string]any{
		"state":      snap.State.String(),
		"sessionId":  snap.SessionID,
		"lastKey":    snap.LastKey,
		"recognizer": snap.Recognizer,
	}
	if !snap.StartedAt.IsZero() {
		fields["startedAt"] = snap.StartedAt.Format(time.RFC3339)
	}
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return st, nil
}

// messageStruct converts a hub message through its JSON form.
func messageStruct(msg notify.Message) (*structpb.Struct, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return structpb.NewStruct(fields)
}
