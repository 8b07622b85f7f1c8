package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
)

func TestInitMetrics(t *testing.T) {
	handler, shutdown, err := InitMetrics()
	if err != nil {
		t.Fatalf("InitMetrics failed: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()
		_ = shutdown(shutdownCtx)
	}()

	if handler == nil {
		t.Fatal("expected handler to be non-nil")
	}
	if shutdown == nil {
		t.Fatal("expected shutdown function to be non-nil")
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Error("expected go runtime metrics in output")
	}
}

func TestInitMetrics_CustomMetricAppearsInOutput(t *testing.T) {
	ctx := context.Background()

	handler, shutdown, err := InitMetrics()
	if err != nil {
		t.Fatalf("InitMetrics failed: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()
		_ = shutdown(shutdownCtx)
	}()

	meter := otel.Meter("skctl/test")
	counter, err := meter.Int64Counter("skctl_test_polls")
	if err != nil {
		t.Fatalf("failed to create counter: %v", err)
	}

	counter.Add(ctx, 42)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}

	body := rr.Body.String()

	if !strings.Contains(body, "skctl_test_polls") {
		t.Errorf("expected custom metric 'skctl_test_polls' in output, got:\n%s", body)
	}

	if !strings.Contains(body, "42") {
		t.Errorf("expected value '42' in output, got:\n%s", body)
	}
}

func TestServeMetrics(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "skctl_up 1")
	})
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	go func() { done <- ServeMetrics(ctx, addr, handler, log) }()

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + addr + "/metrics")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("metrics endpoint never came up: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "skctl_up 1" {
		t.Errorf("got body %q", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ServeMetrics returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ServeMetrics did not stop after cancel")
	}
}
