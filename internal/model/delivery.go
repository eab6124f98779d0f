// internal/model/delivery.go
package model

import "time"

const (
	DeliverySent   = "sent"
	DeliveryFailed = "failed"
)

// Delivery is the audit record of one publish attempt to one target.
type Delivery struct {
	ID              string    `db:"id" json:"id"`
	PostID          string    `db:"post_id" json:"post_id"`
	RecipientID     string    `db:"recipient_id" json:"recipient_id"`
	Channel         Channel   `db:"channel" json:"channel"`
	Status          string    `db:"status" json:"status"` // sent, failed
	RenderedContent string    `db:"rendered_content" json:"rendered_content"`
	LastError       string    `db:"last_error" json:"last_error,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}
