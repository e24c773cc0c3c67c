package http

import (
	"context"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shapeshift/internal/platform/config"

	"github.com/go-chi/chi/v5"
)

func header(k, v string) func(stdhttp.Handler) stdhttp.Handler {
	return func(next stdhttp.Handler) stdhttp.Handler {
		return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			w.Header().Set(k, v)
			next.ServeHTTP(w, r)
		})
	}
}

func TestAdaptChiRouting(t *testing.T) {
	t.Parallel()
	r := AdaptChi(chi.NewRouter())
	r.Use(header("X-Root", "1"))

	r.Route("/generations", func(sr Router) {
		sr.Use(header("X-Route", "1"))
		sr.Get("/{taskId}", func(w stdhttp.ResponseWriter, req *stdhttp.Request) {
			_, _ = io.WriteString(w, chi.URLParam(req, "taskId"))
		})
		sr.With(header("X-With", "1")).Post("/text", func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
			w.WriteHeader(stdhttp.StatusCreated)
		})
	})
	r.Group(func(g Router) {
		g.Method(stdhttp.MethodPatch, "/patched", func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
			w.WriteHeader(stdhttp.StatusAccepted)
		})
	})

	rec := httptest.NewRecorder()
	r.Mux().ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/generations/task_1", nil))
	if rec.Body.String() != "task_1" || rec.Header().Get("X-Root") != "1" || rec.Header().Get("X-Route") != "1" {
		t.Fatalf("get: body=%q headers=%v", rec.Body.String(), rec.Header())
	}

	rec = httptest.NewRecorder()
	r.Mux().ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodPost, "/generations/text", nil))
	if rec.Code != stdhttp.StatusCreated || rec.Header().Get("X-With") != "1" {
		t.Fatalf("post: code=%d headers=%v", rec.Code, rec.Header())
	}

	rec = httptest.NewRecorder()
	r.Mux().ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodPatch, "/patched", nil))
	if rec.Code != stdhttp.StatusAccepted {
		t.Fatalf("method: code=%d", rec.Code)
	}
}

func TestServerRunStopsOnCancel(t *testing.T) {
	t.Setenv("CORE_API_PORT", "0")
	t.Setenv("CORE_API_SHUTDOWN_GRACE", "1s")
	called := false
	srv := NewServer(config.New().Prefix("CORE_API_"), func(*chi.Mux) { called = true })
	if !called || srv.Addr() != ":0" {
		t.Fatalf("addr=%q opt called=%v", srv.Addr(), called)
	}
	srv.Router().Get("/ping", func(w stdhttp.ResponseWriter, _ *stdhttp.Request) { _, _ = io.WriteString(w, "pong") })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("server did not stop")
	}
}
