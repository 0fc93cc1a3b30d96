// Command testclient drives a session over gRPC: it starts a session, pushes
// transcripts and prints status messages until the session ends.
package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	grpcapi "voice-command-dispatcher/internal/api/grpc"
)

func main() {
	addr := flag.String("addr", "localhost:50051", "gRPC server address")
	transcripts := flag.String("transcripts", "hola inicio|inicio|ver servicios|ya detener", "Transcripts to push, separated by '|'")
	delay := flag.Duration("delay", 500*time.Millisecond, "Delay between transcripts")
	flag.Parse()

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Println("Connected to server")

	client := grpcapi.NewClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stream, err := client.WatchStatus(ctx)
	if err != nil {
		log.Fatalf("failed to watch status: %v", err)
	}

	ended := make(chan struct{})
	go func() {
		defer close(ended)
		for {
			msg, err := stream.Recv()
			if err != nil {
				return
			}
			log.Printf("Received: %v", msg.AsMap())
			if st := msg.Fields["status"].GetStructValue(); st != nil {
				switch st.Fields["kind"].GetStringValue() {
				case "ended", "error", "unsupported":
					return
				}
			}
		}
	}()

	snap, err := client.StartSession(ctx)
	if err != nil {
		log.Fatalf("failed to start session: %v", err)
	}
	log.Printf("Session started: %v", snap.AsMap())

	for _, t := range strings.Split(*transcripts, "|") {
		log.Printf("Pushing transcript: %q", t)
		if err := client.PushTranscript(ctx, t); err != nil {
			log.Printf("push failed: %v", err)
			break
		}
		time.Sleep(*delay)
	}

	select {
	case <-ended:
	case <-time.After(5 * time.Second):
		log.Println("No end received, stopping session")
		if _, err := client.StopSession(ctx); err != nil {
			log.Fatalf("failed to stop session: %v", err)
		}
		<-ended
	}
}
