// internal/handler/template_handler.go
package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/unclebandit/omnipost-backend/internal/model"
	"github.com/unclebandit/omnipost-backend/internal/service"
)

// TemplateHandler serves the content template store.
type TemplateHandler struct {
	Service *service.TemplateService
	Log     logrus.FieldLogger
}

// ListTemplates returns templates, optionally filtered by channel and active flag.
func (h *TemplateHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	var channel model.Channel
	if raw := r.URL.Query().Get("channel"); raw != "" {
		ch, err := model.ParseChannel(raw)
		if err != nil {
			WriteError(w, r, h.Log, BadRequest(err.Error()))
			return
		}
		channel = ch
	}
	activeOnly := false
	if raw := r.URL.Query().Get("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			WriteError(w, r, h.Log, BadRequest("invalid active flag"))
			return
		}
		activeOnly = v
	}

	templates, err := h.Service.List(r.Context(), channel, activeOnly)
	if err != nil {
		WriteError(w, r, h.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"data": templates})
}

func (h *TemplateHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, h.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, t)
}

func (h *TemplateHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var in service.TemplateInput
	if err := DecodeJSON(r, &in); err != nil {
		WriteError(w, r, h.Log, err)
		return
	}
	in.Channel = model.NormalizeChannel(in.Channel)
	t, err := h.Service.Create(r.Context(), in)
	if err != nil {
		WriteError(w, r, h.Log, err)
		return
	}
	WriteJSON(w, http.StatusCreated, t)
}

func (h *TemplateHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var in service.TemplateInput
	if err := DecodeJSON(r, &in); err != nil {
		WriteError(w, r, h.Log, err)
		return
	}
	in.Channel = model.NormalizeChannel(in.Channel)
	t, err := h.Service.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		WriteError(w, r, h.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, t)
}

func (h *TemplateHandler) DeactivateTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.Service.Deactivate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, h.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, t)
}

func (h *TemplateHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		WriteError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Routes mounts the template endpoints.
func (h *TemplateHandler) Routes(r chi.Router) {
	r.Get("/templates", h.ListTemplates)
	r.Post("/templates", h.CreateTemplate)
	r.Get("/templates/{id}", h.GetTemplate)
	r.Put("/templates/{id}", h.UpdateTemplate)
	r.Post("/templates/{id}/deactivate", h.DeactivateTemplate)
	r.Delete("/templates/{id}", h.DeleteTemplate)
}
