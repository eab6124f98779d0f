// internal/model/template.go
package model

import "time"

// Template is named, channel-scoped seed content for new drafts.
type Template struct {
	ID              string         `db:"id" json:"id"`
	Name            string         `db:"name" json:"name"`
	Channel         Channel        `db:"channel" json:"channel"`
	Subject         string         `db:"subject" json:"subject,omitempty"`
	Body            string         `db:"body" json:"body,omitempty"`
	MediaAssets     []MediaAsset   `db:"media_assets" json:"media_assets"`
	ChannelMetadata map[string]any `db:"channel_metadata" json:"channel_metadata"`
	IsActive        bool           `db:"is_active" json:"is_active"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

func (t *Template) Clone() *Template {
	if t == nil {
		return nil
	}
	out := *t
	out.MediaAssets = CloneMedia(t.MediaAssets)
	out.ChannelMetadata = CloneMetadata(t.ChannelMetadata)
	return &out
}
