package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/omnipost-backend/internal/app"
	"github.com/unclebandit/omnipost-backend/internal/config"
	"github.com/unclebandit/omnipost-backend/internal/model"
)

func TestRouterServesAPI(t *testing.T) {
	log, _ := test.NewNullLogger()
	cfg := &config.Config{
		MediaDir:       filepath.Join(t.TempDir(), "media"),
		MediaBaseURL:   "http://localhost/media/files",
		FanOutLimit:    4,
		PublishTimeout: time.Second,
	}
	a, err := app.Build(context.Background(), cfg, log, nil)
	require.NoError(t, err)
	defer a.Close()

	srv := httptest.NewServer(NewRouter(a, cfg, log))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, _ := json.Marshal(map[string]any{"channel": "pinterest", "subject": "Pin", "body": "Board"})
	resp, err = http.Post(srv.URL+"/drafts", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Content-Type"))

	var post model.Post
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&post))
	assert.Equal(t, model.StateDraft, post.State)

	resp, err = http.Get(srv.URL + "/channels")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
