package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/omnipost-backend/internal/errors"
	"github.com/unclebandit/omnipost-backend/internal/handler"
	"github.com/unclebandit/omnipost-backend/internal/media"
	"github.com/unclebandit/omnipost-backend/internal/model"
	"github.com/unclebandit/omnipost-backend/internal/publisher"
	"github.com/unclebandit/omnipost-backend/internal/repository"
	"github.com/unclebandit/omnipost-backend/internal/scheduler"
	"github.com/unclebandit/omnipost-backend/internal/service"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{handler.BadRequest("x"), http.StatusBadRequest},
		{appErrors.NewValidationError("subject required"), http.StatusUnprocessableEntity},
		{appErrors.NewSchedulingError(time.Now(), time.Now()), http.StatusUnprocessableEntity},
		{appErrors.NewChannelMismatch("email", "sms"), http.StatusConflict},
		{fmt.Errorf("wrapped: %w", appErrors.NewIllegalTransition("p", "sent", "cancel")), http.StatusConflict},
		{appErrors.NewPostNotFound("p"), http.StatusNotFound},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, handler.StatusFor(c.err), c.err.Error())
	}
}

func TestWriteErrorHidesInternalErrors(t *testing.T) {
	log, hook := test.NewNullLogger()
	w := httptest.NewRecorder()
	handler.WriteError(w, httptest.NewRequest(http.MethodGet, "/posts", nil), log, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "pq:")
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "request failed", hook.LastEntry().Message)
}

func templateRouter(t *testing.T) http.Handler {
	log, _ := test.NewNullLogger()
	svc := &service.TemplateService{
		Repo:  repository.NewMemoryTemplateRepository(),
		Clock: service.NewFixedClock(time.Date(2025, 1, 9, 12, 0, 0, 0, time.UTC)),
		Log:   log,
	}
	r := chi.NewRouter()
	(&handler.TemplateHandler{Service: svc, Log: log}).Routes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, &buf))
	return w
}

func TestTemplateLifecycle(t *testing.T) {
	h := templateRouter(t)

	w := do(t, h, http.MethodPost, "/templates", map[string]any{
		"name":    "Newsletter",
		"channel": "email",
		"subject": "Hello {{first_name}}",
		"body":    "News for {{company}}",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created model.Template
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.True(t, created.IsActive)

	w = do(t, h, http.MethodPut, "/templates/"+created.ID, map[string]any{
		"name":    "Newsletter",
		"channel": "sms",
		"body":    "x",
	})
	assert.Equal(t, http.StatusConflict, w.Code, "channel is immutable")

	w = do(t, h, http.MethodPost, "/templates/"+created.ID+"/deactivate", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodGet, "/templates?channel=email&active=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Data []model.Template `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Empty(t, list.Data)

	w = do(t, h, http.MethodDelete, "/templates/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, h, http.MethodGet, "/templates/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTemplateRequestValidation(t *testing.T) {
	h := templateRouter(t)

	w := do(t, h, http.MethodPost, "/templates", map[string]any{"channel": "email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp handler.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Reasons, "Name failed required")

	w = do(t, h, http.MethodGet, "/templates?channel=fax", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCalendarAndStats(t *testing.T) {
	log, _ := test.NewNullLogger()
	clock := service.NewFixedClock(time.Date(2025, 1, 9, 12, 0, 0, 0, time.UTC))
	svc := &service.PostService{
		PostRepo:   repository.NewMemoryPostRepository(),
		Recipients: repository.NewMemoryRecipientDirectory(),
		Deliveries: repository.NewMemoryDeliveryRepository(),
		Templates:  &service.TemplateService{Repo: repository.NewMemoryTemplateRepository(), Clock: clock, Log: log},
		Publishers: publisher.NewRegistry().Fallback(&publisher.LogPublisher{Log: log}),
		Trigger:    scheduler.NewMemoryScheduler(),
		Clock:      clock,
		Log:        log,
	}
	r := chi.NewRouter()
	(&handler.CalendarHandler{Service: svc, Log: log}).Routes(r)

	ctx := t.Context()
	p, err := svc.CreateDraft(ctx, service.DraftInput{Channel: model.ChannelLinkedIn, Subject: "Hiring", Body: "Join us"})
	require.NoError(t, err)
	at := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	_, err = svc.ScheduleOrSend(ctx, p.ID, &at)
	require.NoError(t, err)

	w := do(t, r, http.MethodGet, "/calendar?granularity=week&anchor=2025-01-09", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cal struct {
		Data []model.CalendarBucket `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cal))
	require.Len(t, cal.Data, 7)
	assert.Len(t, cal.Data[5].Posts, 1, "friday holds the post")

	w = do(t, r, http.MethodGet, "/calendar?granularity=year", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, r, http.MethodGet, "/upcoming", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var up model.Upcoming
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &up))
	assert.Len(t, up.Tomorrow, 1)

	w = do(t, r, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats["scheduled"])
	assert.Equal(t, 1, stats["total"])

	w = do(t, r, http.MethodGet, "/channels", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"youtube"`)
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, ct := range files {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, name))
		hdr.Set("Content-Type", ct)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write([]byte("content of " + name))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestMediaUpload(t *testing.T) {
	log, _ := test.NewNullLogger()
	store, err := media.NewLocalStore(t.TempDir(), "http://cdn.local")
	require.NoError(t, err)
	r := chi.NewRouter()
	(&handler.MediaHandler{Store: store, Log: log}).Routes(r)

	body, ct := multipartBody(t, map[string]string{"clip.mp4": "video/mp4"})
	req := httptest.NewRequest(http.MethodPost, "/media", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Data []model.MediaAsset `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, model.MediaVideo, resp.Data[0].Kind)

	body, ct = multipartBody(t, map[string]string{"setup.exe": "application/x-msdownload"})
	req = httptest.NewRequest(http.MethodPost, "/media", body)
	req.Header.Set("Content-Type", ct)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	tooMany := map[string]string{}
	for i := 0; i < 11; i++ {
		tooMany[fmt.Sprintf("img%d.png", i)] = "image/png"
	}
	body, ct = multipartBody(t, tooMany)
	req = httptest.NewRequest(http.MethodPost, "/media", body)
	req.Header.Set("Content-Type", ct)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
