// internal/model/channel.go
package model

import (
	"fmt"
	"strings"
)

// Channel is one publishing destination.
type Channel string

const (
	ChannelEmail     Channel = "email"
	ChannelSMS       Channel = "sms"
	ChannelWhatsApp  Channel = "whatsapp"
	ChannelFacebook  Channel = "facebook"
	ChannelInstagram Channel = "instagram"
	ChannelLinkedIn  Channel = "linkedin"
	ChannelYouTube   Channel = "youtube"
	ChannelPinterest Channel = "pinterest"
)

// AllChannels lists every channel in display order.
var AllChannels = []Channel{
	ChannelEmail,
	ChannelSMS,
	ChannelWhatsApp,
	ChannelFacebook,
	ChannelInstagram,
	ChannelLinkedIn,
	ChannelYouTube,
	ChannelPinterest,
}

func (c Channel) Valid() bool {
	for _, known := range AllChannels {
		if c == known {
			return true
		}
	}
	return false
}

func (c Channel) String() string { return string(c) }

// ParseChannel accepts any casing and surrounding whitespace.
// NormalizeChannel lower-cases and trims a channel name as clients send it.
func NormalizeChannel(c Channel) Channel {
	return Channel(strings.ToLower(strings.TrimSpace(string(c))))
}

func ParseChannel(raw string) (Channel, error) {
	c := NormalizeChannel(Channel(raw))
	if !c.Valid() {
		return "", fmt.Errorf("unknown channel %q", raw)
	}
	return c, nil
}

type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaVideo    MediaKind = "video"
	MediaDocument MediaKind = "document"
)

func (k MediaKind) Valid() bool {
	return k == MediaImage || k == MediaVideo || k == MediaDocument
}

// MediaAsset references an uploaded file by URL. The bytes live in the media store.
type MediaAsset struct {
	URL  string    `json:"url" validate:"required"`
	Kind MediaKind `json:"kind" validate:"required,oneof=image video document"`
}
