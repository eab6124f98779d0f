// internal/handler/calendar_handler.go
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/unclebandit/omnipost-backend/internal/capability"
	"github.com/unclebandit/omnipost-backend/internal/model"
	"github.com/unclebandit/omnipost-backend/internal/service"
)

// CalendarHandler serves the read-only views: calendar grid, upcoming list,
// per-state stats and the channel capability table.
type CalendarHandler struct {
	Service *service.PostService
	Log     logrus.FieldLogger
}

// location resolves the tz query parameter, defaulting to the server's local zone.
func location(r *http.Request) (*time.Location, error) {
	tz := r.URL.Query().Get("tz")
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, BadRequest("invalid tz")
	}
	return loc, nil
}

// Calendar handles GET /calendar?granularity=month|week|day&anchor=YYYY-MM-DD&tz=.
func (h *CalendarHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	loc, err := location(r)
	if err != nil {
		WriteError(w, r, h.Log, err)
		return
	}
	g := model.Granularity(r.URL.Query().Get("granularity"))
	if g == "" {
		g = model.GranularityMonth
	}
	anchor := time.Now().In(loc)
	if raw := r.URL.Query().Get("anchor"); raw != "" {
		anchor, err = time.ParseInLocation("2006-01-02", raw, loc)
		if err != nil {
			WriteError(w, r, h.Log, BadRequest("anchor must be YYYY-MM-DD"))
			return
		}
	}

	buckets, err := h.Service.CalendarView(r.Context(), g, anchor)
	if err != nil {
		WriteError(w, r, h.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"granularity": g,
		"anchor":      anchor.Format("2006-01-02"),
		"data":        buckets,
	})
}

func (h *CalendarHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	loc, err := location(r)
	if err != nil {
		WriteError(w, r, h.Log, err)
		return
	}
	up, err := h.Service.UpcomingView(r.Context(), loc)
	if err != nil {
		WriteError(w, r, h.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, up)
}

func (h *CalendarHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.Stats(r.Context())
	if err != nil {
		WriteError(w, r, h.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

func (h *CalendarHandler) Channels(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"data": capability.All()})
}

func (h *CalendarHandler) Routes(r chi.Router) {
	r.Get("/calendar", h.Calendar)
	r.Get("/upcoming", h.Upcoming)
	r.Get("/stats", h.Stats)
	r.Get("/channels", h.Channels)
}
