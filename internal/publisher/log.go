package publisher

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/unclebandit/omnipost-backend/internal/model"
)

// LogPublisher only logs what would have been sent. It backs development setups
// with no transport configured.
type LogPublisher struct {
	Log logrus.FieldLogger
}

func (p *LogPublisher) Publish(ctx context.Context, content model.RenderedContent, metadata map[string]any, recipient *model.Recipient) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := model.SelfTarget
	if recipient != nil {
		target = recipient.ID
	}
	p.Log.WithFields(logrus.Fields{
		"channel":   content.Channel,
		"target":    target,
		"subject":   content.Subject,
		"media":     len(content.MediaAssets),
		"post_type": metadata[model.MetaPostType],
	}).Info("publish (log only)")
	return nil
}
