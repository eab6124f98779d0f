// internal/model/draft.go
package model

// Channel metadata keys understood by the registry, validator and template store.
const (
	MetaPostType        = "postType"
	MetaPlaylistTitle   = "playlistTitle"
	MetaYouTubePrivacy  = "youtubePrivacy"
	MetaYouTubeTags     = "youtubeTags"
	MetaThumbnailURL    = "thumbnailUrl"
	MetaDestinationLink = "destinationLink"
	MetaPreheader       = "preheader"
	MetaSenderAddress   = "senderAddress"
	MetaSenderName      = "senderName"
)

// ContentDraft is the channel-bound content of a post.
type ContentDraft struct {
	ID              string         `db:"id" json:"id"`
	Channel         Channel        `db:"channel" json:"channel"`
	Subject         string         `db:"subject" json:"subject,omitempty"`
	Body            string         `db:"body" json:"body,omitempty"`
	MediaAssets     []MediaAsset   `db:"media_assets" json:"media_assets"`
	Thumbnail       *MediaAsset    `db:"thumbnail" json:"thumbnail,omitempty"`
	ChannelMetadata map[string]any `db:"channel_metadata" json:"channel_metadata"`
}

// Clone returns a deep copy. Nothing in the copy aliases the receiver.
func (d ContentDraft) Clone() ContentDraft {
	out := d
	out.MediaAssets = CloneMedia(d.MediaAssets)
	if d.Thumbnail != nil {
		thumb := *d.Thumbnail
		out.Thumbnail = &thumb
	}
	out.ChannelMetadata = CloneMetadata(d.ChannelMetadata)
	return out
}

// MetaString reads a string metadata value, returning "" when absent or not a string.
func (d ContentDraft) MetaString(key string) string {
	if d.ChannelMetadata == nil {
		return ""
	}
	s, _ := d.ChannelMetadata[key].(string)
	return s
}

func CloneMedia(in []MediaAsset) []MediaAsset {
	out := make([]MediaAsset, len(in))
	copy(out, in)
	return out
}

func CloneMetadata(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMetadata(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}

// RenderedContent is what a channel publisher transmits for one target.
type RenderedContent struct {
	Channel     Channel      `json:"channel"`
	Subject     string       `json:"subject,omitempty"`
	Body        string       `json:"body"`
	MediaAssets []MediaAsset `json:"media_assets,omitempty"`
	Thumbnail   *MediaAsset  `json:"thumbnail,omitempty"`
}
