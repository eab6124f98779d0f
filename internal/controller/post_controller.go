// internal/controller/post_controller.go
package controller

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/unclebandit/omnipost-backend/internal/handler"
	"github.com/unclebandit/omnipost-backend/internal/model"
	"github.com/unclebandit/omnipost-backend/internal/repository"
	"github.com/unclebandit/omnipost-backend/internal/service"
)

type PostController struct {
	PostService *service.PostService
	Log         logrus.FieldLogger
}

type contentRequest struct {
	Channel         model.Channel      `json:"channel"`
	Subject         string             `json:"subject"`
	Body            string             `json:"body"`
	MediaAssets     []model.MediaAsset `json:"media_assets" validate:"max=10,dive"`
	Thumbnail       *model.MediaAsset  `json:"thumbnail"`
	ChannelMetadata map[string]any     `json:"channel_metadata"`
}

func (c contentRequest) draft() model.ContentDraft {
	return model.ContentDraft{
		Channel:         model.NormalizeChannel(c.Channel),
		Subject:         c.Subject,
		Body:            c.Body,
		MediaAssets:     c.MediaAssets,
		Thumbnail:       c.Thumbnail,
		ChannelMetadata: c.ChannelMetadata,
	}
}

type recipientsRequest struct {
	RecipientIDs []string `json:"recipient_ids" validate:"dive,required"`
	CampaignID   string   `json:"campaign_id"`
}

type sendRequest struct {
	ScheduledAt *time.Time `json:"scheduled_at"`
}

type applyTemplateRequest struct {
	TemplateID string `json:"template_id" validate:"required"`
}

type previewRequest struct {
	RecipientID string `json:"recipient_id"`
}

// CreateDraft handles POST /drafts.
func (c *PostController) CreateDraft(w http.ResponseWriter, r *http.Request) {
	var in service.DraftInput
	if err := handler.DecodeJSON(r, &in); err != nil {
		handler.WriteError(w, r, c.Log, err)
		return
	}
	in.Channel = model.NormalizeChannel(in.Channel)

	post, err := c.PostService.CreateDraft(r.Context(), in)
	if err != nil {
		handler.WriteError(w, r, c.Log, err)
		return
	}
	handler.WriteJSON(w, http.StatusCreated, post)
}

// ValidateContent handles POST /drafts/validate for unsaved content.
func (c *PostController) ValidateContent(w http.ResponseWriter, r *http.Request) {
	var body contentRequest
	if err := handler.DecodeJSON(r, &body); err != nil {
		handler.WriteError(w, r, c.Log, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, c.PostService.ValidateContent(body.draft(), model.NormalizeChannel(body.Channel)))
}

// ListPosts handles GET /posts?channel=&status=&page=&page_size=.
func (c *PostController) ListPosts(w http.ResponseWriter, r *http.Request) {
	page := handler.IntQuery(r, "page", 1)
	pageSize := handler.IntQuery(r, "page_size", 20)

	var filter repository.PostFilter
	if raw := r.URL.Query().Get("channel"); raw != "" {
		ch, err := model.ParseChannel(raw)
		if err != nil {
			handler.WriteError(w, r, c.Log, handler.BadRequest(err.Error()))
			return
		}
		filter.Channel = ch
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		state := model.PostState(raw)
		if !state.Valid() {
			handler.WriteError(w, r, c.Log, handler.BadRequest("unknown status "+raw))
			return
		}
		filter.State = state
	}

	posts, pagination, err := c.PostService.List(r.Context(), page, pageSize, filter)
	if err != nil {
		handler.WriteError(w, r, c.Log, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]any{
		"data":       posts,
		"pagination": pagination, // page, page_size, total_count, total_pages
	})
}

func (c *PostController) GetPost(w http.ResponseWriter, r *http.Request) {
	post, err := c.PostService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handler.WriteError(w, r, c.Log, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, post)
}

func (c *PostController) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	var body contentRequest
	if err := handler.DecodeJSON(r, &body); err != nil {
		handler.WriteError(w, r, c.Log, err)
		return
	}
	post, err := c.PostService.UpdateDraft(r.Context(), chi.URLParam(r, "id"), body.draft())
	if err != nil {
		handler.WriteError(w, r, c.Log, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, post)
}

func (c *PostController) SetRecipients(w http.ResponseWriter, r *http.Request) {
	var body recipientsRequest
	if err := handler.DecodeJSON(r, &body); err != nil {
		handler.WriteError(w, r, c.Log, err)
		return
	}
	post, err := c.PostService.SetRecipients(r.Context(), chi.URLParam(r, "id"), body.RecipientIDs, body.CampaignID)
	if err != nil {
		handler.WriteError(w, r, c.Log, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, post)
}

func (c *PostController) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	if err := c.PostService.DeleteDraft(r.Context(), chi.URLParam(r, "id")); err != nil {
		handler.WriteError(w, r, c.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *PostController) ApplyTemplate(w http.ResponseWriter, r *http.Request) {
	var body applyTemplateRequest
	if err := handler.DecodeJSON(r, &body); err != nil {
		handler.WriteError(w, r, c.Log, err)
		return
	}
	post, err := c.PostService.ApplyTemplate(r.Context(), chi.URLParam(r, "id"), body.TemplateID)
	if err != nil {
		handler.WriteError(w, r, c.Log, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, post)
}

func (c *PostController) ValidateDraft(w http.ResponseWriter, r *http.Request) {
	res, err := c.PostService.ValidateDraft(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handler.WriteError(w, r, c.Log, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, res)
}

// SendPost schedules the post when scheduled_at is set, otherwise sends it and
// replies once every recipient has been attempted.
func (c *PostController) SendPost(w http.ResponseWriter, r *http.Request) {
	var body sendRequest
	if err := handler.DecodeOptionalJSON(r, &body); err != nil {
		handler.WriteError(w, r, c.Log, err)
		return
	}
	post, err := c.PostService.ScheduleOrSend(r.Context(), chi.URLParam(r, "id"), body.ScheduledAt)
	if err != nil {
		handler.WriteError(w, r, c.Log, err)
		return
	}
	status := http.StatusOK
	if post.State == model.StateScheduled {
		status = http.StatusAccepted
	}
	handler.WriteJSON(w, status, post)
}

func (c *PostController) CancelSchedule(w http.ResponseWriter, r *http.Request) {
	post, err := c.PostService.CancelSchedule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handler.WriteError(w, r, c.Log, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, post)
}

func (c *PostController) Duplicate(w http.ResponseWriter, r *http.Request) {
	post, err := c.PostService.Duplicate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handler.WriteError(w, r, c.Log, err)
		return
	}
	handler.WriteJSON(w, http.StatusCreated, post)
}

func (c *PostController) Deliveries(w http.ResponseWriter, r *http.Request) {
	deliveries, err := c.PostService.ListDeliveries(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handler.WriteError(w, r, c.Log, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]any{"data": deliveries})
}

// PersonalizedPreview renders the post for one recipient, or with blanks when none is given.
func (c *PostController) PersonalizedPreview(w http.ResponseWriter, r *http.Request) {
	var body previewRequest
	if err := handler.DecodeOptionalJSON(r, &body); err != nil {
		handler.WriteError(w, r, c.Log, err)
		return
	}
	preview, err := c.PostService.Preview(r.Context(), chi.URLParam(r, "id"), body.RecipientID)
	if err != nil {
		handler.WriteError(w, r, c.Log, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, preview)
}

func (c *PostController) Routes(r chi.Router) {
	r.Post("/drafts", c.CreateDraft)
	r.Post("/drafts/validate", c.ValidateContent)

	r.Get("/posts", c.ListPosts)
	r.Route("/posts/{id}", func(r chi.Router) {
		r.Get("/", c.GetPost)
		r.Put("/", c.UpdateDraft)
		r.Delete("/", c.DeleteDraft)
		r.Put("/recipients", c.SetRecipients)
		r.Post("/apply-template", c.ApplyTemplate)
		r.Post("/validate", c.ValidateDraft)
		r.Post("/send", c.SendPost)
		r.Post("/cancel", c.CancelSchedule)
		r.Post("/duplicate", c.Duplicate)
		r.Get("/deliveries", c.Deliveries)
		r.Post("/preview", c.PersonalizedPreview)
	})
}
