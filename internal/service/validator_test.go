package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/omnipost-backend/internal/errors"
	"github.com/unclebandit/omnipost-backend/internal/model"
)

func image(n int) []model.MediaAsset {
	out := make([]model.MediaAsset, n)
	for i := range out {
		out[i] = model.MediaAsset{URL: "https://cdn/img.png", Kind: model.MediaImage}
	}
	return out
}

func emailDraft() model.ContentDraft {
	return model.ContentDraft{
		Channel:         model.ChannelEmail,
		Subject:         "Spring sale",
		Body:            "Hi {{name}}",
		ChannelMetadata: map[string]any{model.MetaSenderAddress: "news@shop.test"},
	}
}

func TestValidateInstagramWithoutMedia(t *testing.T) {
	draft := model.ContentDraft{Channel: model.ChannelInstagram, Subject: "Sale", Body: "50% off"}

	res := Validate(draft, model.ChannelInstagram)

	assert.False(t, res.OK)
	assert.Equal(t, []string{ReasonMediaRequired}, res.Reasons)
}

func TestValidateMediaRequiredChannels(t *testing.T) {
	for _, ch := range []model.Channel{model.ChannelInstagram, model.ChannelPinterest, model.ChannelYouTube} {
		draft := model.ContentDraft{Channel: ch, Subject: "s", Body: "b"}
		res := Validate(draft, ch)
		assert.False(t, res.OK, ch)
		assert.Contains(t, res.Reasons, ReasonMediaRequired, ch)
	}
}

func TestValidateCollectsAllReasonsInOrder(t *testing.T) {
	draft := model.ContentDraft{
		Channel:     model.ChannelYouTube,
		MediaAssets: image(2),
		Thumbnail:   &model.MediaAsset{URL: "https://cdn/v.mp4", Kind: model.MediaVideo},
	}

	res := Validate(draft, model.ChannelYouTube)

	assert.Equal(t, []string{
		ReasonSubjectRequired,
		ReasonContentRequired,
		ReasonUnsupportedMedia,
		ReasonTooManyMedia,
		ReasonVideoRequired,
		ReasonThumbnailImage,
	}, res.Reasons)
}

func TestValidateYouTubeVideo(t *testing.T) {
	draft := model.ContentDraft{
		Channel:         model.ChannelYouTube,
		Subject:         "Launch trailer",
		MediaAssets:     []model.MediaAsset{{URL: "https://cdn/v.mp4", Kind: model.MediaVideo}},
		Thumbnail:       &model.MediaAsset{URL: "https://cdn/t.png", Kind: model.MediaImage},
		ChannelMetadata: map[string]any{model.MetaPostType: "Short"},
	}
	res := Validate(draft, model.ChannelYouTube)
	assert.True(t, res.OK, res.Reasons)

	draft.ChannelMetadata[model.MetaPostType] = "Reel"
	assert.Equal(t, []string{ReasonInvalidPostType}, Validate(draft, model.ChannelYouTube).Reasons)
}

func TestValidateEmail(t *testing.T) {
	assert.True(t, Validate(emailDraft(), model.ChannelEmail).OK)

	noSender := emailDraft()
	noSender.ChannelMetadata = nil
	assert.Equal(t, []string{ReasonSenderRequired}, Validate(noSender, model.ChannelEmail).Reasons)

	blank := emailDraft()
	blank.Subject = "   "
	blank.Body = ""
	assert.Equal(t, []string{ReasonSubjectRequired, ReasonContentRequired}, Validate(blank, model.ChannelEmail).Reasons)

	attachments := emailDraft()
	attachments.MediaAssets = append(image(9), model.MediaAsset{URL: "https://cdn/a.pdf", Kind: model.MediaDocument})
	assert.True(t, Validate(attachments, model.ChannelEmail).OK)

	attachments.MediaAssets = image(11)
	assert.Equal(t, []string{ReasonTooManyMedia}, Validate(attachments, model.ChannelEmail).Reasons)
}

func TestValidateBodyRequiredWhenOnlySubject(t *testing.T) {
	draft := model.ContentDraft{Channel: model.ChannelFacebook, Subject: "Title only"}
	assert.Equal(t, []string{ReasonBodyRequired}, Validate(draft, model.ChannelFacebook).Reasons)
}

func TestValidateSMSBudgetIsAdvisory(t *testing.T) {
	draft := model.ContentDraft{Channel: model.ChannelSMS, Body: strings.Repeat("a", 200)}

	res := Validate(draft, model.ChannelSMS)

	assert.True(t, res.OK)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "160")
}

func TestValidateSMSRejectsMedia(t *testing.T) {
	draft := model.ContentDraft{Channel: model.ChannelSMS, Body: "hi", MediaAssets: image(1)}
	assert.Equal(t, []string{ReasonUnsupportedMedia, ReasonTooManyMedia}, Validate(draft, model.ChannelSMS).Reasons)
}

func TestValidateSMSEmpty(t *testing.T) {
	res := Validate(model.ContentDraft{Channel: model.ChannelSMS}, model.ChannelSMS)
	assert.Equal(t, []string{ReasonContentRequired}, res.Reasons)
}

func TestValidateWhatsAppDocuments(t *testing.T) {
	draft := model.ContentDraft{
		Channel:     model.ChannelWhatsApp,
		Body:        "Your invoice",
		MediaAssets: []model.MediaAsset{{URL: "https://cdn/i.pdf", Kind: model.MediaDocument}},
	}
	assert.True(t, Validate(draft, model.ChannelWhatsApp).OK)
}

func TestValidateUnknownChannel(t *testing.T) {
	res := Validate(model.ContentDraft{Body: "x"}, model.Channel("fax"))
	assert.Equal(t, []string{ReasonUnsupportedChannel}, res.Reasons)
}

func TestValidateDoesNotMutateDraft(t *testing.T) {
	draft := emailDraft()
	draft.MediaAssets = image(3)
	before := draft.Clone()

	Validate(draft, model.ChannelEmail)

	assert.Equal(t, before, draft)
}

func TestValidationResultErr(t *testing.T) {
	assert.NoError(t, ValidationResult{OK: true}.Err())

	err := ValidationResult{Reasons: []string{ReasonMediaRequired}}.Err()
	var ve *appErrors.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{ReasonMediaRequired}, ve.Reasons)
}
