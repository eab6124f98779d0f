// Package capability holds the static per-channel publishing constraints.
// It is pure data and the only place channel rules are defined.
package capability

import "github.com/unclebandit/omnipost-backend/internal/model"

// MaxMediaItems is the hard per-post media cap, also applied at upload time.
const MaxMediaItems = 10

// SMSCharBudget is advisory: exceeding it produces a warning, never a rejection.
const SMSCharBudget = 160

type Capabilities struct {
	Channel             model.Channel     `json:"channel"`
	RequiresSubject     bool              `json:"requires_subject"`
	RequiresBody        bool              `json:"requires_body"`
	RequiresMedia       bool              `json:"requires_media"`
	MediaCardinalityMax int               `json:"media_cardinality_max"`
	AllowedMediaKinds   []model.MediaKind `json:"allowed_media_kinds"`
	BodyCharLimit       int               `json:"body_char_limit,omitempty"` // 0 means no limit
	SupportsScheduling  bool              `json:"supports_scheduling"`
	SupportsThumbnail   bool              `json:"supports_thumbnail"`
	Broadcast           bool              `json:"broadcast"`
	PostTypes           []string          `json:"post_types,omitempty"`
}

func (c Capabilities) AllowsKind(kind model.MediaKind) bool {
	for _, k := range c.AllowedMediaKinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (c Capabilities) AllowsPostType(postType string) bool {
	if len(c.PostTypes) == 0 {
		return true
	}
	for _, pt := range c.PostTypes {
		if pt == postType {
			return true
		}
	}
	return false
}

var (
	anyKind        = []model.MediaKind{model.MediaImage, model.MediaVideo, model.MediaDocument}
	imageOrVideo   = []model.MediaKind{model.MediaImage, model.MediaVideo}
	videoOnly      = []model.MediaKind{model.MediaVideo}
	feedPostTypes  = []string{"Post", "Reel"}
	videoPostTypes = []string{"Video", "Short", "Playlist"}
)

var registry = map[model.Channel]Capabilities{
	model.ChannelEmail: {
		RequiresSubject:     true,
		RequiresBody:        true,
		MediaCardinalityMax: MaxMediaItems,
		AllowedMediaKinds:   anyKind,
	},
	model.ChannelSMS: {
		RequiresBody:  true,
		BodyCharLimit: SMSCharBudget,
	},
	model.ChannelWhatsApp: {
		RequiresBody:        true,
		MediaCardinalityMax: MaxMediaItems,
		AllowedMediaKinds:   anyKind,
	},
	model.ChannelFacebook: {
		RequiresSubject:     true,
		RequiresBody:        true,
		MediaCardinalityMax: MaxMediaItems,
		AllowedMediaKinds:   imageOrVideo,
		Broadcast:           true,
		PostTypes:           feedPostTypes,
	},
	model.ChannelLinkedIn: {
		RequiresSubject:     true,
		RequiresBody:        true,
		MediaCardinalityMax: MaxMediaItems,
		AllowedMediaKinds:   imageOrVideo,
		Broadcast:           true,
	},
	model.ChannelInstagram: {
		RequiresSubject:     true,
		RequiresBody:        true,
		RequiresMedia:       true,
		MediaCardinalityMax: MaxMediaItems,
		AllowedMediaKinds:   imageOrVideo,
		Broadcast:           true,
		PostTypes:           feedPostTypes,
	},
	model.ChannelPinterest: {
		RequiresSubject:     true,
		RequiresBody:        true,
		RequiresMedia:       true,
		MediaCardinalityMax: MaxMediaItems,
		AllowedMediaKinds:   imageOrVideo,
		Broadcast:           true,
	},
	model.ChannelYouTube: {
		RequiresSubject:     true,
		RequiresMedia:       true,
		MediaCardinalityMax: 1,
		AllowedMediaKinds:   videoOnly,
		SupportsThumbnail:   true,
		Broadcast:           true,
		PostTypes:           videoPostTypes,
	},
}

func init() {
	for ch, c := range registry {
		c.Channel = ch
		c.SupportsScheduling = true
		registry[ch] = c
	}
}

// Of returns the capabilities of a channel. ok is false for unknown channels.
func Of(ch model.Channel) (Capabilities, bool) {
	c, ok := registry[ch]
	if !ok {
		return Capabilities{}, false
	}
	c.AllowedMediaKinds = append([]model.MediaKind(nil), c.AllowedMediaKinds...)
	c.PostTypes = append([]string(nil), c.PostTypes...)
	return c, true
}

// All returns every channel's capabilities in model.AllChannels order.
func All() []Capabilities {
	out := make([]Capabilities, 0, len(model.AllChannels))
	for _, ch := range model.AllChannels {
		c, _ := Of(ch)
		out = append(out, c)
	}
	return out
}

// IsBroadcast reports whether posts on ch go to the organisation's own identity
// instead of a recipient list.
func IsBroadcast(ch model.Channel) bool {
	c, ok := registry[ch]
	return ok && c.Broadcast
}
