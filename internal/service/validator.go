// internal/service/validator.go
package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/unclebandit/omnipost-backend/internal/capability"
	appErrors "github.com/unclebandit/omnipost-backend/internal/errors"
	"github.com/unclebandit/omnipost-backend/internal/model"
)

// Rejection reasons, in check order.
const (
	ReasonUnsupportedChannel = "unsupported channel"
	ReasonSubjectRequired    = "subject required"
	ReasonContentRequired    = "content required"
	ReasonBodyRequired       = "body required"
	ReasonMediaRequired      = "media required"
	ReasonUnsupportedMedia   = "unsupported media type"
	ReasonTooManyMedia       = "too many media items"
	ReasonVideoRequired      = "first media asset must be a video"
	ReasonThumbnailImage     = "thumbnail must be an image"
	ReasonSenderRequired     = "sender address required"
	ReasonInvalidPostType    = "unsupported post type"
)

type ValidationResult struct {
	OK       bool     `json:"ok"`
	Reasons  []string `json:"reasons"`
	Warnings []string `json:"warnings,omitempty"`
}

// Err returns a *appErrors.ValidationError when the result is a rejection.
func (r ValidationResult) Err() error {
	if r.OK {
		return nil
	}
	return appErrors.NewValidationError(r.Reasons...)
}

// Validate decides whether draft is publishable on channel. Every violated rule is
// reported; the draft is never modified.
func Validate(draft model.ContentDraft, channel model.Channel) ValidationResult {
	caps, ok := capability.Of(channel)
	if !ok {
		return ValidationResult{Reasons: []string{ReasonUnsupportedChannel}}
	}

	var reasons, warnings []string
	subject := strings.TrimSpace(draft.Subject)
	body := strings.TrimSpace(draft.Body)

	if caps.RequiresSubject && subject == "" {
		reasons = append(reasons, ReasonSubjectRequired)
	}

	if subject == "" && body == "" {
		reasons = append(reasons, ReasonContentRequired)
	} else if caps.RequiresBody && body == "" {
		reasons = append(reasons, ReasonBodyRequired)
	}

	if caps.RequiresMedia && len(draft.MediaAssets) == 0 {
		reasons = append(reasons, ReasonMediaRequired)
	}

	for _, asset := range draft.MediaAssets {
		if !caps.AllowsKind(asset.Kind) {
			reasons = append(reasons, ReasonUnsupportedMedia)
			break
		}
	}

	if len(draft.MediaAssets) > caps.MediaCardinalityMax || len(draft.MediaAssets) > capability.MaxMediaItems {
		reasons = append(reasons, ReasonTooManyMedia)
	}

	reasons = append(reasons, channelSpecific(draft, caps)...)

	if caps.BodyCharLimit > 0 {
		if n := utf8.RuneCountInString(draft.Body); n > caps.BodyCharLimit {
			warnings = append(warnings,
				fmt.Sprintf("body is %d characters, over the %d character budget", n, caps.BodyCharLimit))
		}
	}

	return ValidationResult{
		OK:       len(reasons) == 0,
		Reasons:  reasons,
		Warnings: warnings,
	}
}

func channelSpecific(draft model.ContentDraft, caps capability.Capabilities) []string {
	var reasons []string

	if postType := draft.MetaString(model.MetaPostType); postType != "" && !caps.AllowsPostType(postType) {
		reasons = append(reasons, ReasonInvalidPostType)
	}

	switch caps.Channel {
	case model.ChannelYouTube:
		if len(draft.MediaAssets) > 0 && draft.MediaAssets[0].Kind != model.MediaVideo {
			reasons = append(reasons, ReasonVideoRequired)
		}
		if draft.Thumbnail != nil && draft.Thumbnail.Kind != model.MediaImage {
			reasons = append(reasons, ReasonThumbnailImage)
		}
	case model.ChannelEmail:
		if strings.TrimSpace(draft.MetaString(model.MetaSenderAddress)) == "" {
			reasons = append(reasons, ReasonSenderRequired)
		}
	}
	return reasons
}
