package app

import (
	"context"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/vovakirdan/wireplan-server/internal/config"
)

func TestAppServesAndShutsDown(t *testing.T) {
	cfg := config.Default()
	cfg.Addr = "127.0.0.1:0"
	cfg.DatabasePath = filepath.Join(t.TempDir(), "rounds.db")

	application, err := New(&cfg, nil)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Serve(ctx, ln) }()

	base := "http://" + ln.Addr().String()
	for _, path := range []string{"/health", "/api/rooms", "/api/rounds"} {
		resp, err := http.Get(base + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s: status %d", path, resp.StatusCode)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("app did not shut down")
	}
}

func TestAppWithoutArchive(t *testing.T) {
	cfg := config.Default()
	cfg.DatabasePath = ""

	application, err := New(&cfg, nil)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if application.rounds != nil || application.store != nil {
		t.Fatal("archive should be disabled")
	}
}

func TestAppRejectsBadPolicy(t *testing.T) {
	cfg := config.Default()
	cfg.DisconnectPolicy = "linger"

	if _, err := New(&cfg, nil); err == nil {
		t.Fatal("expected an error for an unknown disconnect policy")
	}
}
