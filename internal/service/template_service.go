// internal/service/template_service.go
package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/unclebandit/omnipost-backend/internal/capability"
	appErrors "github.com/unclebandit/omnipost-backend/internal/errors"
	"github.com/unclebandit/omnipost-backend/internal/model"
	"github.com/unclebandit/omnipost-backend/internal/repository"
)

// templateMetaKeys are the only metadata keys a template passes on to a draft.
var templateMetaKeys = []string{
	model.MetaPostType,
	model.MetaPlaylistTitle,
	model.MetaYouTubePrivacy,
	model.MetaYouTubeTags,
	model.MetaThumbnailURL,
	model.MetaDestinationLink,
	model.MetaPreheader,
}

type TemplateService struct {
	Repo  repository.TemplateRepositoryInterface
	Clock Clock
	Log   logrus.FieldLogger
}

type TemplateInput struct {
	Name            string             `json:"name" validate:"required,max=200"`
	Channel         model.Channel      `json:"channel" validate:"required"`
	Subject         string             `json:"subject"`
	Body            string             `json:"body"`
	MediaAssets     []model.MediaAsset `json:"media_assets" validate:"max=10,dive"`
	ChannelMetadata map[string]any     `json:"channel_metadata"`
}

func (s *TemplateService) List(ctx context.Context, channel model.Channel, activeOnly bool) ([]*model.Template, error) {
	return s.Repo.List(ctx, channel, activeOnly)
}

func (s *TemplateService) Get(ctx context.Context, id string) (*model.Template, error) {
	return s.Repo.GetByID(ctx, id)
}

func (s *TemplateService) Create(ctx context.Context, in TemplateInput) (*model.Template, error) {
	if err := checkTemplateInput(in); err != nil {
		return nil, err
	}
	now := s.now()
	t := &model.Template{
		ID:              uuid.NewString(),
		Name:            strings.TrimSpace(in.Name),
		Channel:         in.Channel,
		Subject:         in.Subject,
		Body:            in.Body,
		MediaAssets:     model.CloneMedia(in.MediaAssets),
		ChannelMetadata: model.CloneMetadata(in.ChannelMetadata),
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.Repo.Create(ctx, t); err != nil {
		return nil, err
	}
	s.logger().WithFields(logrus.Fields{"template_id": t.ID, "channel": t.Channel}).Info("template created")
	return t, nil
}

// Update replaces a template's content. The channel cannot change.
func (s *TemplateService) Update(ctx context.Context, id string, in TemplateInput) (*model.Template, error) {
	t, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Channel == "" {
		in.Channel = t.Channel
	}
	if in.Channel != t.Channel {
		return nil, appErrors.NewChannelMismatch(string(t.Channel), string(in.Channel))
	}
	if err := checkTemplateInput(in); err != nil {
		return nil, err
	}

	t.Name = strings.TrimSpace(in.Name)
	t.Subject = in.Subject
	t.Body = in.Body
	t.MediaAssets = model.CloneMedia(in.MediaAssets)
	t.ChannelMetadata = model.CloneMetadata(in.ChannelMetadata)
	t.UpdatedAt = s.now()
	if err := s.Repo.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Deactivate hides a template from active listings. Drafts already seeded from it
// are unaffected.
func (s *TemplateService) Deactivate(ctx context.Context, id string) (*model.Template, error) {
	t, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.IsActive {
		return t, nil
	}
	t.IsActive = false
	t.UpdatedAt = s.now()
	if err := s.Repo.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TemplateService) Delete(ctx context.Context, id string) error {
	return s.Repo.Delete(ctx, id)
}

// ApplyTemplate seeds draft content from a template. Subject, body and media are
// replaced by deep copies of the template's; only the whitelisted metadata keys are
// copied over the draft's existing metadata. A nil draft yields a fresh draft on the
// template's channel. The template itself is never referenced by the result.
func (s *TemplateService) ApplyTemplate(ctx context.Context, templateID string, draft *model.ContentDraft) (model.ContentDraft, error) {
	t, err := s.Repo.GetByID(ctx, templateID)
	if err != nil {
		return model.ContentDraft{}, err
	}
	if !t.IsActive {
		return model.ContentDraft{}, appErrors.NewValidationError("template is inactive")
	}

	var out model.ContentDraft
	if draft != nil {
		if draft.Channel != t.Channel {
			return model.ContentDraft{}, appErrors.NewChannelMismatch(string(draft.Channel), string(t.Channel))
		}
		out = draft.Clone()
	} else {
		out = model.ContentDraft{Channel: t.Channel, ChannelMetadata: map[string]any{}}
	}

	out.Subject = t.Subject
	out.Body = t.Body
	out.MediaAssets = model.CloneMedia(t.MediaAssets)
	for _, key := range templateMetaKeys {
		v, ok := t.ChannelMetadata[key]
		if !ok {
			continue
		}
		out.ChannelMetadata[key] = model.CloneMetadata(map[string]any{key: v})[key]
	}
	if thumb, _ := t.ChannelMetadata[model.MetaThumbnailURL].(string); strings.TrimSpace(thumb) != "" {
		out.Thumbnail = &model.MediaAsset{URL: thumb, Kind: model.MediaImage}
	}
	return out, nil
}

func checkTemplateInput(in TemplateInput) error {
	var reasons []string
	if strings.TrimSpace(in.Name) == "" {
		reasons = append(reasons, "name required")
	}
	caps, ok := capability.Of(in.Channel)
	if !ok {
		return appErrors.NewValidationError(append(reasons, ReasonUnsupportedChannel)...)
	}
	if postType, _ := in.ChannelMetadata[model.MetaPostType].(string); postType != "" && !caps.AllowsPostType(postType) {
		reasons = append(reasons, ReasonInvalidPostType)
	}
	if len(in.MediaAssets) > capability.MaxMediaItems {
		reasons = append(reasons, ReasonTooManyMedia)
	}
	if len(reasons) > 0 {
		return appErrors.NewValidationError(reasons...)
	}
	return nil
}

func (s *TemplateService) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

func (s *TemplateService) logger() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}
