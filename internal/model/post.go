// internal/model/post.go
package model

import "time"

type PostState string

const (
	StateDraft           PostState = "draft"
	StateScheduled       PostState = "scheduled"
	StateSending         PostState = "sending"
	StateSent            PostState = "sent"
	StatePartiallyFailed PostState = "partially_failed"
	StateFailed          PostState = "failed"
)

var AllStates = []PostState{
	StateDraft,
	StateScheduled,
	StateSending,
	StateSent,
	StatePartiallyFailed,
	StateFailed,
}

func (s PostState) Valid() bool {
	for _, known := range AllStates {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal states accept no further transitions.
func (s PostState) Terminal() bool {
	return s == StateSent || s == StatePartiallyFailed || s == StateFailed
}

// SelfTarget keys the single implicit target of a broadcast post.
const SelfTarget = "self"

type SendResult struct {
	RecipientID string    `json:"recipient_id"`
	Success     bool      `json:"success"`
	Reason      string    `json:"reason,omitempty"`
	Rendered    string    `json:"rendered_content,omitempty"`
	AttemptedAt time.Time `json:"attempted_at"`
}

type Post struct {
	ContentDraft
	State        PostState             `db:"state" json:"state"`
	ScheduledAt  *time.Time            `db:"scheduled_at" json:"scheduled_at,omitempty"`
	CampaignID   string                `db:"campaign_id" json:"campaign_id,omitempty"`
	RecipientIDs []string              `db:"recipient_ids" json:"recipient_ids"`
	SendResults  map[string]SendResult `db:"send_results" json:"send_results"`
	CreatedAt    time.Time             `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time             `db:"updated_at" json:"updated_at"`
}

// Clone deep-copies the post so stored records never share slices or maps with callers.
func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	out := *p
	out.ContentDraft = p.ContentDraft.Clone()
	if p.ScheduledAt != nil {
		at := *p.ScheduledAt
		out.ScheduledAt = &at
	}
	out.RecipientIDs = append([]string(nil), p.RecipientIDs...)
	out.SendResults = make(map[string]SendResult, len(p.SendResults))
	for k, v := range p.SendResults {
		out.SendResults[k] = v
	}
	return &out
}

// Counts tallies send results by outcome.
func (p *Post) Counts() (succeeded, failed int) {
	for _, r := range p.SendResults {
		if r.Success {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}
