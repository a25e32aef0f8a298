package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder_StageFinished(t *testing.T) {
	r := NewRecorder()
	r.StageFinished("build", "build", 3*time.Second, nil)
	r.StageFinished("scan", "scan", time.Second, errors.New("quality gate failed"))

	if got := testutil.ToFloat64(r.success.WithLabelValues("build", "build")); got != 1 {
		t.Errorf("build success = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.success.WithLabelValues("scan", "scan")); got != 0 {
		t.Errorf("scan success = %v, want 0", got)
	}
	if got := testutil.ToFloat64(r.duration.WithLabelValues("build", "build")); got != 3 {
		t.Errorf("build duration = %v, want 3", got)
	}
}

func TestRecorder_Push(t *testing.T) {
	var path, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewRecorder()
	r.RunStarted(time.Unix(1717236000, 0))
	r.StageFinished("publish", "image", time.Second, nil)

	if err := r.Push(context.Background(), srv.URL, "release", map[string]string{"run": "abc"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/metrics/job/release/run/abc" {
		t.Errorf("unexpected push path %q", path)
	}
	if body == "" {
		t.Error("expected metrics in request body")
	}
}

func TestRecorder_PushFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewRecorder()
	err := r.Push(context.Background(), srv.URL, "release", nil)
	if err == nil || !strings.Contains(err.Error(), "pushing metrics") {
		t.Fatalf("expected push error, got %v", err)
	}
}
