package grpcapi

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"voice-command-dispatcher/internal/app"
	"voice-command-dispatcher/internal/config"
	"voice-command-dispatcher/internal/observability"
	"voice-command-dispatcher/internal/observability/metrics"
)

func newTestClient(t *testing.T, provider string) (*Client, *app.Application) {
	t.Helper()
	client, a, _ := newTestServer(t, provider)
	return client, a
}

func newTestServer(t *testing.T, provider string) (*Client, *app.Application, *grpc.Server) {
	t.Helper()

	cfg := config.Load()
	cfg.Recognition.Provider = provider
	cfg.Kafka.Enabled = false
	cfg.Notify.Desktop = false
	cfg.Commands.File = ""

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("failed to start app: %v", err)
	}

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(
		grpc.UnaryInterceptor(observability.UnaryServerInterceptor(metrics.DefaultMetrics, a.ActiveSession)),
		grpc.StreamInterceptor(observability.StreamServerInterceptor(metrics.DefaultMetrics, a.ActiveSession)),
	)
	Register(srv, a)
	go srv.Serve(lis)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}

	t.Cleanup(func() {
		conn.Close()
		srv.Stop()
		a.Shutdown()
	})
	return NewClient(conn), a, srv
}

func ctxTimeout(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestStartSession_Unsupported(t *testing.T) {
	client, _ := newTestClient(t, "none")

	_, err := client.StartSession(ctxTimeout(t))
	if status.Code(err) != codes.Unimplemented {
		t.Errorf("expected Unimplemented, got %v", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	client, a := newTestClient(t, "push")
	ctx := ctxTimeout(t)

	snap, err := client.StartSession(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := snap.Fields["state"].GetStringValue(); got != "LISTENING" {
		t.Errorf("expected LISTENING, got %s", got)
	}
	if snap.Fields["sessionId"].GetStringValue() == "" {
		t.Error("expected session id")
	}

	_, err = client.StartSession(ctx)
	if status.Code(err) != codes.FailedPrecondition {
		t.Errorf("expected FailedPrecondition on second start, got %v", err)
	}

	if err := client.PushTranscript(ctx, "ir a nosotros"); err != nil {
		t.Fatalf("unexpected push error: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for a.Controller.Snapshot().LastKey != "nosotros" && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := a.Controller.Snapshot().LastKey; got != "nosotros" {
		t.Errorf("expected lastKey nosotros, got %s", got)
	}

	snap, err = client.StopSession(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := snap.Fields["state"].GetStringValue(); got != "STOPPING" && got != "IDLE" {
		t.Errorf("expected STOPPING or IDLE, got %s", got)
	}

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap, err = client.GetSession(ctx)
		if err == nil && snap.Fields["state"].GetStringValue() == "IDLE" {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("session did not return to IDLE")
}

func TestPushTranscript_Codes(t *testing.T) {
	client, _ := newTestClient(t, "push")
	ctx := ctxTimeout(t)

	if err := client.PushTranscript(ctx, "inicio"); status.Code(err) != codes.FailedPrecondition {
		t.Errorf("expected FailedPrecondition without session, got %v", err)
	}

	if _, err := client.StartSession(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := client.PushTranscript(ctx, "  "); status.Code(err) != codes.InvalidArgument {
		t.Errorf("expected InvalidArgument for blank transcript, got %v", err)
	}
}

func TestPushTranscript_NotPushProvider(t *testing.T) {
	client, _ := newTestClient(t, "mock")

	if err := client.PushTranscript(ctxTimeout(t), "inicio"); status.Code(err) != codes.Unimplemented {
		t.Errorf("expected Unimplemented, got %v", err)
	}
}

func TestWatchStatus(t *testing.T) {
	client, a := newTestClient(t, "push")
	ctx := ctxTimeout(t)

	stream, err := client.WatchStatus(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for a.Hub.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := client.StartSession(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg, err := stream.Recv()
	if err != nil {
		t.Fatalf("unexpected recv error: %v", err)
	}
	if got := msg.Fields["type"].GetStringValue(); got != "status" {
		t.Errorf("expected status message, got %s", got)
	}
	st := msg.Fields["status"].GetStructValue()
	if got := st.Fields["wire"].GetStringValue(); got != "started" {
		t.Errorf("expected started, got %s", got)
	}
	if got := st.Fields["text"].GetStringValue(); got != "Reconocimiento de voz iniciado" {
		t.Errorf("expected localized text, got %s", got)
	}
}

func watchAndWait(t *testing.T, client *Client, a *app.Application) grpc.ServerStreamingClient[structpb.Struct] {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	stream, err := client.WatchStatus(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for a.Hub.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if a.Hub.Len() != 1 {
		t.Fatalf("expected 1 watcher, got %d", a.Hub.Len())
	}
	return stream
}

func TestStop_GracefulWithWatcherAfterCloseStreams(t *testing.T) {
	client, a, srv := newTestServer(t, "push")
	stream := watchAndWait(t, client, a)

	a.CloseStreams()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	if !Stop(ctx, srv) {
		t.Fatalf("expected graceful stop, forced after %v", time.Since(start))
	}

	if _, err := stream.Recv(); !errors.Is(err, io.EOF) {
		t.Errorf("expected watcher stream to end with EOF, got %v", err)
	}
}

func TestStop_ForcedWhenWatcherRemains(t *testing.T) {
	client, a, srv := newTestServer(t, "push")
	stream := watchAndWait(t, client, a)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan bool, 1)
	go func() { done <- Stop(ctx, srv) }()

	select {
	case graceful := <-done:
		if graceful {
			t.Error("expected forced stop while a watcher is connected")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after its deadline")
	}

	if _, err := stream.Recv(); err == nil {
		t.Error("expected watcher stream to fail after forced stop")
	}
}
