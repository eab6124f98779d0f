// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ValidationError carries every reason a draft is not publishable.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Reasons, "; ")
}

func NewValidationError(reasons ...string) error {
	return &ValidationError{Reasons: append([]string(nil), reasons...)}
}

// ChannelMismatchError is returned when content bound to one channel is applied to another.
type ChannelMismatchError struct {
	Expected string
	Actual   string
}

func (e *ChannelMismatchError) Error() string {
	return fmt.Sprintf("channel mismatch: expected %s, got %s", e.Expected, e.Actual)
}

func NewChannelMismatch(expected, actual string) error {
	return &ChannelMismatchError{Expected: expected, Actual: actual}
}

// IllegalTransitionError rejects an action the post's current state does not allow.
type IllegalTransitionError struct {
	PostID string
	From   string
	Action string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("cannot %s post %s in state %s", e.Action, e.PostID, e.From)
}

func NewIllegalTransition(postID, from, action string) error {
	return &IllegalTransitionError{PostID: postID, From: from, Action: action}
}

type SchedulingError struct {
	ScheduledAt time.Time
	Now         time.Time
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("scheduled time %s is before now (%s)",
		e.ScheduledAt.Format(time.RFC3339), e.Now.Format(time.RFC3339))
}

func NewSchedulingError(scheduledAt, now time.Time) error {
	return &SchedulingError{ScheduledAt: scheduledAt, Now: now}
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

func NewPostNotFound(id string) error {
	return &NotFoundError{Resource: "post", ID: id}
}

func NewTemplateNotFound(id string) error {
	return &NotFoundError{Resource: "template", ID: id}
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// PublishFailure is one target's failed outcome. It is recorded in send results and
// never returned from a lifecycle operation.
type PublishFailure struct {
	RecipientID string
	Reason      string
}

func (e *PublishFailure) Error() string {
	return fmt.Sprintf("publish to %s failed: %s", e.RecipientID, e.Reason)
}

func NewPublishFailure(recipientID string, cause error) *PublishFailure {
	reason := "unknown error"
	if cause != nil {
		reason = cause.Error()
	}
	return &PublishFailure{RecipientID: recipientID, Reason: reason}
}
