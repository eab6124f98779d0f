package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLoggerCachesByName(t *testing.T) {
	require.NoError(t, Init(&LogConfig{Level: "debug", Format: "json", Output: "stdout"}))

	a := GetLogger("app")
	assert.Same(t, a, GetLogger("app"))
	assert.NotSame(t, a, GetLogger("worker"))
	assert.Equal(t, logrus.DebugLevel, a.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, a.Formatter)
}

func TestNewWritesRotatingFile(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Output = "file"
	cfg.LogPath = dir

	l := New("server", cfg)
	l.Info("hello")

	data, err := os.ReadFile(filepath.Join(dir, "server.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestWithContextAddsRequestID(t *testing.T) {
	log, hook := test.NewNullLogger()

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-1")
	WithContext(ctx, log).Info("with id")
	assert.Equal(t, "req-1", hook.LastEntry().Data["request_id"])

	WithContext(context.Background(), log).Info("without id")
	assert.NotContains(t, hook.LastEntry().Data, "request_id")
}

func TestMiddlewareLogsStatus(t *testing.T) {
	log, hook := test.NewNullLogger()
	h := Middleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/posts", nil))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, http.StatusTeapot, entry.Data["status"])
	assert.Equal(t, "/posts", entry.Data["path"])
}
