package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/unclebandit/omnipost-backend/internal/model"
)

// WebhookPublisher relays rendered content as JSON to a gateway that speaks the
// channel's own protocol (an SMS aggregator, the WhatsApp Business API, a social
// posting service).
type WebhookPublisher struct {
	URL    string
	Token  string
	Client *http.Client
}

type webhookPayload struct {
	Channel     model.Channel      `json:"channel"`
	Target      string             `json:"target"`
	Phone       string             `json:"phone,omitempty"`
	Email       string             `json:"email,omitempty"`
	Subject     string             `json:"subject,omitempty"`
	Body        string             `json:"body"`
	MediaAssets []model.MediaAsset `json:"media_assets,omitempty"`
	Thumbnail   *model.MediaAsset  `json:"thumbnail,omitempty"`
	Metadata    map[string]any     `json:"metadata,omitempty"`
	Timestamp   int64              `json:"timestamp"`
}

func (p *WebhookPublisher) Publish(ctx context.Context, content model.RenderedContent, metadata map[string]any, recipient *model.Recipient) error {
	payload := webhookPayload{
		Channel:     content.Channel,
		Target:      model.SelfTarget,
		Subject:     content.Subject,
		Body:        content.Body,
		MediaAssets: content.MediaAssets,
		Thumbnail:   content.Thumbnail,
		Metadata:    metadata,
		Timestamp:   time.Now().Unix(),
	}
	if recipient != nil {
		payload.Target = recipient.ID
		payload.Phone = recipient.Phone
		payload.Email = recipient.Email
	}
	if (content.Channel == model.ChannelSMS || content.Channel == model.ChannelWhatsApp) && strings.TrimSpace(payload.Phone) == "" {
		return errors.New("recipient has no phone number")
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.Token)
	}

	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
