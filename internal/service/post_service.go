// internal/service/post_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/omnipost-backend/internal/capability"
	appErrors "github.com/unclebandit/omnipost-backend/internal/errors"
	"github.com/unclebandit/omnipost-backend/internal/model"
	"github.com/unclebandit/omnipost-backend/internal/publisher"
	"github.com/unclebandit/omnipost-backend/internal/repository"
)

const (
	ReasonRecipientsRequired = "recipients required"
	ReasonNoRecipients       = "no recipients"
	ReasonUnknownRecipient   = "recipient not found"
	ReasonSendInterrupted    = "send interrupted"

	DefaultFanOutLimit    = 16
	DefaultPublishTimeout = 30 * time.Second

	finishAttempts = 3
	finishBackoff  = 50 * time.Millisecond
)

// PublisherResolver picks the publisher for a channel.
type PublisherResolver interface {
	For(ch model.Channel) (publisher.Publisher, error)
}

// Trigger arranges for DueForSend to be called at or after a post's scheduled time.
type Trigger interface {
	Schedule(ctx context.Context, postID string, at time.Time) error
	Cancel(ctx context.Context, postID string) error
}

// PostService owns the post lifecycle: draft editing, validation, scheduling and
// the multi-recipient fan-out. Every state transition of a post runs under that
// post's lock and is persisted with a conditional write.
type PostService struct {
	PostRepo   repository.PostRepositoryInterface
	Recipients repository.RecipientRepositoryInterface
	Deliveries repository.DeliveryRepositoryInterface
	Templates  *TemplateService
	Publishers PublisherResolver
	Trigger    Trigger
	Clock      Clock
	Log        logrus.FieldLogger
	Tracer     trace.Tracer

	FanOutLimit    int
	PublishTimeout time.Duration

	locks postLocks
}

type DraftInput struct {
	Channel         model.Channel      `json:"channel" validate:"required"`
	TemplateID      string             `json:"template_id"`
	Subject         string             `json:"subject"`
	Body            string             `json:"body"`
	MediaAssets     []model.MediaAsset `json:"media_assets" validate:"max=10,dive"`
	Thumbnail       *model.MediaAsset  `json:"thumbnail"`
	ChannelMetadata map[string]any     `json:"channel_metadata"`
	RecipientIDs    []string           `json:"recipient_ids"`
	CampaignID      string             `json:"campaign_id"`
}

func (in DraftInput) content() model.ContentDraft {
	return model.ContentDraft{
		Channel:         in.Channel,
		Subject:         in.Subject,
		Body:            in.Body,
		MediaAssets:     in.MediaAssets,
		Thumbnail:       in.Thumbnail,
		ChannelMetadata: in.ChannelMetadata,
	}
}

type PreviewResult struct {
	RecipientID string                `json:"recipient_id,omitempty"`
	Rendered    model.RenderedContent `json:"rendered"`
	Tokens      []string              `json:"tokens"`
	Validation  ValidationResult      `json:"validation"`
}

// ====================== Draft editing ======================

// CreateDraft stores a new post in draft state. With a template id the content is
// seeded from the template and any non-empty input field overrides it. Drafts are
// not required to be publishable yet.
func (s *PostService) CreateDraft(ctx context.Context, in DraftInput) (*model.Post, error) {
	if !in.Channel.Valid() {
		return nil, appErrors.NewValidationError(ReasonUnsupportedChannel)
	}

	content := model.ContentDraft{Channel: in.Channel}
	if in.TemplateID != "" {
		seeded, err := s.Templates.ApplyTemplate(ctx, in.TemplateID, &content)
		if err != nil {
			return nil, err
		}
		content = seeded
	}
	content = overlay(content, in.content())

	if err := checkAudience(in.Channel, in.RecipientIDs, in.CampaignID); err != nil {
		return nil, err
	}

	now := s.now()
	content.ID = uuid.NewString()
	p := &model.Post{
		ContentDraft: content,
		State:        model.StateDraft,
		CampaignID:   in.CampaignID,
		RecipientIDs: dedupe(in.RecipientIDs),
		SendResults:  map[string]model.SendResult{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.PostRepo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger().WithFields(logrus.Fields{"post_id": p.ID, "channel": p.Channel}).Info("draft created")
	return p, nil
}

// UpdateDraft replaces the content of a draft. The channel is fixed at creation.
func (s *PostService) UpdateDraft(ctx context.Context, id string, draft model.ContentDraft) (*model.Post, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	p, err := s.PostRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.State != model.StateDraft {
		return nil, appErrors.NewIllegalTransition(id, string(p.State), "update")
	}
	if draft.Channel != "" && draft.Channel != p.Channel {
		return nil, appErrors.NewChannelMismatch(string(p.Channel), string(draft.Channel))
	}

	content := draft.Clone()
	content.ID = p.ID
	content.Channel = p.Channel
	p.ContentDraft = content
	p.UpdatedAt = s.now()
	if err := s.save(ctx, p, model.StateDraft, "update"); err != nil {
		return nil, err
	}
	return p, nil
}

// ApplyTemplate reseeds a draft's content from a template of the same channel.
func (s *PostService) ApplyTemplate(ctx context.Context, id, templateID string) (*model.Post, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	p, err := s.PostRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.State != model.StateDraft {
		return nil, appErrors.NewIllegalTransition(id, string(p.State), "apply template to")
	}
	content, err := s.Templates.ApplyTemplate(ctx, templateID, &p.ContentDraft)
	if err != nil {
		return nil, err
	}
	p.ContentDraft = content
	p.UpdatedAt = s.now()
	if err := s.save(ctx, p, model.StateDraft, "apply template to"); err != nil {
		return nil, err
	}
	return p, nil
}

// SetRecipients sets the audience of a multi-recipient draft: explicit ids, a
// campaign resolved through the contact directory at send time, or both.
func (s *PostService) SetRecipients(ctx context.Context, id string, recipientIDs []string, campaignID string) (*model.Post, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	p, err := s.PostRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.State != model.StateDraft {
		return nil, appErrors.NewIllegalTransition(id, string(p.State), "set recipients of")
	}
	if err := checkAudience(p.Channel, recipientIDs, campaignID); err != nil {
		return nil, err
	}
	p.RecipientIDs = dedupe(recipientIDs)
	p.CampaignID = strings.TrimSpace(campaignID)
	p.UpdatedAt = s.now()
	if err := s.save(ctx, p, model.StateDraft, "set recipients of"); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostService) DeleteDraft(ctx context.Context, id string) error {
	unlock := s.locks.lock(id)
	defer unlock()

	p, err := s.PostRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p.State != model.StateDraft {
		return appErrors.NewIllegalTransition(id, string(p.State), "delete")
	}
	if err := s.PostRepo.DeleteIfState(ctx, id, model.StateDraft); err != nil {
		return s.conflict(ctx, id, "delete", err)
	}
	return nil
}

// Duplicate copies a post's content into a new draft. Audience, schedule and send
// results are not carried over.
func (s *PostService) Duplicate(ctx context.Context, id string) (*model.Post, error) {
	src, err := s.PostRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	content := src.ContentDraft.Clone()
	content.ID = uuid.NewString()
	p := &model.Post{
		ContentDraft: content,
		State:        model.StateDraft,
		RecipientIDs: []string{},
		SendResults:  map[string]model.SendResult{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.PostRepo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger().WithFields(logrus.Fields{"post_id": p.ID, "source_id": id}).Info("post duplicated")
	return p, nil
}

// ====================== Validation ======================

// ValidateContent checks unsaved content against a channel.
func (s *PostService) ValidateContent(draft model.ContentDraft, channel model.Channel) ValidationResult {
	return Validate(draft, channel)
}

// ValidateDraft checks a stored post, including that a multi-recipient post has an audience.
func (s *PostService) ValidateDraft(ctx context.Context, id string) (ValidationResult, error) {
	p, err := s.PostRepo.GetByID(ctx, id)
	if err != nil {
		return ValidationResult{}, err
	}
	return validatePost(p), nil
}

func validatePost(p *model.Post) ValidationResult {
	res := Validate(p.ContentDraft, p.Channel)
	if !capability.IsBroadcast(p.Channel) && len(p.RecipientIDs) == 0 && p.CampaignID == "" {
		res.Reasons = append(res.Reasons, ReasonRecipientsRequired)
		res.OK = false
	}
	return res
}

// ====================== Scheduling ======================

// ScheduleOrSend schedules a draft for at, or sends it now when at is nil. An
// immediate send is also accepted for a scheduled post. The returned post reflects
// the state after the operation; for an immediate send that is the terminal state.
func (s *PostService) ScheduleOrSend(ctx context.Context, id string, at *time.Time) (*model.Post, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	p, err := s.PostRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if at != nil {
		return s.schedule(ctx, p, *at)
	}

	if p.State != model.StateDraft && p.State != model.StateScheduled {
		return nil, appErrors.NewIllegalTransition(id, string(p.State), "send")
	}
	if res := validatePost(p); !res.OK {
		return nil, res.Err()
	}
	from := p.State
	if from == model.StateScheduled {
		s.cancelTrigger(ctx, id)
	}
	return s.send(ctx, p, from)
}

func (s *PostService) schedule(ctx context.Context, p *model.Post, at time.Time) (*model.Post, error) {
	if p.State != model.StateDraft {
		return nil, appErrors.NewIllegalTransition(p.ID, string(p.State), "schedule")
	}
	if res := validatePost(p); !res.OK {
		return nil, res.Err()
	}
	now := s.now()
	if at.Before(now) {
		return nil, appErrors.NewSchedulingError(at, now)
	}

	if err := s.Trigger.Schedule(ctx, p.ID, at); err != nil {
		return nil, fmt.Errorf("register trigger for post %s: %w", p.ID, err)
	}
	p.State = model.StateScheduled
	p.ScheduledAt = &at
	p.UpdatedAt = now
	if err := s.save(ctx, p, model.StateDraft, "schedule"); err != nil {
		s.cancelTrigger(ctx, p.ID)
		return nil, err
	}
	s.logger().WithFields(logrus.Fields{
		"post_id":      p.ID,
		"channel":      p.Channel,
		"scheduled_at": at.Format(time.RFC3339),
	}).Info("post scheduled")
	return p, nil
}

// CancelSchedule returns a scheduled post to draft and clears its scheduled time.
func (s *PostService) CancelSchedule(ctx context.Context, id string) (*model.Post, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	p, err := s.PostRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.State != model.StateScheduled {
		return nil, appErrors.NewIllegalTransition(id, string(p.State), "cancel")
	}
	p.State = model.StateDraft
	p.ScheduledAt = nil
	p.UpdatedAt = s.now()
	if err := s.save(ctx, p, model.StateScheduled, "cancel"); err != nil {
		return nil, err
	}
	s.cancelTrigger(ctx, id)
	s.logger().WithField("post_id", id).Info("schedule cancelled")
	return p, nil
}

// DueForSend is the scheduler callback. It sends only a post that is still
// scheduled and whose time has come; stale or duplicate triggers are ignored and
// an early one is re-armed.
func (s *PostService) DueForSend(ctx context.Context, id string) error {
	unlock := s.locks.lock(id)
	defer unlock()

	log := s.logger().WithField("post_id", id)
	p, err := s.PostRepo.GetByID(ctx, id)
	if err != nil {
		if appErrors.IsNotFound(err) {
			log.Warn("due trigger for unknown post ignored")
			return nil
		}
		return err
	}
	if p.State != model.StateScheduled {
		log.WithField("state", p.State).Debug("due trigger ignored")
		return nil
	}
	if p.ScheduledAt != nil && s.now().Before(*p.ScheduledAt) {
		// the trigger was consumed, so arm it again for the real time
		if err := s.Trigger.Schedule(ctx, id, *p.ScheduledAt); err != nil {
			return fmt.Errorf("re-arm trigger for post %s: %w", id, err)
		}
		log.Debug("early due trigger re-armed")
		return nil
	}
	if _, err := s.send(ctx, p, model.StateScheduled); err != nil {
		var illegal *appErrors.IllegalTransitionError
		if errors.As(err, &illegal) {
			log.WithError(err).Info("post changed before due send")
			return nil
		}
		return err
	}
	return nil
}

// RecoverStuck closes out posts that have sat in sending since before olderThan
// ago, which happens when a worker dies mid send or its terminal write is lost.
// Targets keep their recorded delivery outcome; the rest fail with
// ReasonSendInterrupted. It returns how many posts were recovered.
func (s *PostService) RecoverStuck(ctx context.Context, olderThan time.Duration) (int, error) {
	const pageSize = 100
	var ids []string
	for offset := 0; ; offset += pageSize {
		posts, total, err := s.PostRepo.List(ctx, repository.PostFilter{State: model.StateSending}, offset, pageSize)
		if err != nil {
			return 0, err
		}
		for _, p := range posts {
			ids = append(ids, p.ID)
		}
		if len(posts) == 0 || offset+pageSize >= total {
			break
		}
	}

	cutoff := s.now().Add(-olderThan)
	n := 0
	for _, id := range ids {
		ok, err := s.recoverOne(ctx, id, cutoff)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (s *PostService) recoverOne(ctx context.Context, id string, cutoff time.Time) (bool, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	p, err := s.PostRepo.GetByID(ctx, id)
	if err != nil {
		if appErrors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if p.State != model.StateSending || p.UpdatedAt.After(cutoff) {
		return false, nil
	}

	byTarget := map[string]model.SendResult{}
	if s.Deliveries != nil {
		recorded, err := s.Deliveries.ListByPost(ctx, id)
		if err != nil {
			return false, err
		}
		for _, d := range recorded {
			byTarget[d.RecipientID] = model.SendResult{
				RecipientID: d.RecipientID,
				Success:     d.Status == model.DeliverySent,
				Reason:      d.LastError,
				Rendered:    d.RenderedContent,
				AttemptedAt: d.CreatedAt,
			}
		}
	}
	targets, missing, err := s.resolveTargets(ctx, p)
	if err != nil {
		s.logger().WithField("post_id", id).WithError(err).Warn("resolve recipients for stuck post")
	}
	pending := missing
	for _, t := range targets {
		pending = append(pending, t.id)
	}
	for _, tid := range pending {
		if _, ok := byTarget[tid]; !ok {
			byTarget[tid] = s.failure(tid, ReasonSendInterrupted)
		}
	}
	if len(byTarget) == 0 {
		byTarget[model.SelfTarget] = s.failure(model.SelfTarget, ReasonSendInterrupted)
	}

	results := make([]model.SendResult, 0, len(byTarget))
	for _, r := range byTarget {
		results = append(results, r)
	}
	results = sortResults(results)
	p.SendResults = byTarget
	p.State = aggregate(results)
	p.UpdatedAt = s.now()
	if err := s.save(ctx, p, model.StateSending, "recover"); err != nil {
		return false, err
	}
	s.logger().WithFields(logrus.Fields{"post_id": id, "state": p.State}).Warn("stuck post recovered")
	return true, nil
}

// ====================== Sending ======================

type target struct {
	id        string
	recipient *model.Recipient
}

// send moves p to sending, publishes to every target and records the terminal
// state. Callers hold the post lock.
func (s *PostService) send(ctx context.Context, p *model.Post, from model.PostState) (*model.Post, error) {
	ctx, span := s.tracer().Start(ctx, "PostService.send", trace.WithAttributes(
		attribute.String("post.id", p.ID),
		attribute.String("post.channel", string(p.Channel)),
	))
	defer span.End()

	p.State = model.StateSending
	p.UpdatedAt = s.now()
	if err := s.save(ctx, p, from, "send"); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	log := s.logger().WithFields(logrus.Fields{"post_id": p.ID, "channel": p.Channel})
	log.Info("sending post")

	results := s.dispatch(ctx, p)

	p.SendResults = make(map[string]model.SendResult, len(results))
	for _, r := range results {
		p.SendResults[r.RecipientID] = r
	}
	p.State = aggregate(results)
	p.UpdatedAt = s.now()

	// The terminal write must land even when the caller's context is gone.
	saveCtx := context.WithoutCancel(ctx)
	err := s.finish(saveCtx, p)
	s.recordDeliveries(saveCtx, p, results)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.WithError(err).Error("terminal write failed, post left in sending")
		return nil, err
	}

	ok, failed := p.Counts()
	span.SetAttributes(
		attribute.String("post.state", string(p.State)),
		attribute.Int("post.succeeded", ok),
		attribute.Int("post.failed", failed),
	)
	log.WithFields(logrus.Fields{"state": p.State, "succeeded": ok, "failed": failed}).Info("post send finished")
	return p, nil
}

// finish writes the terminal state, retrying transient failures with a linear
// backoff. A state conflict is returned at once.
func (s *PostService) finish(ctx context.Context, p *model.Post) error {
	var err error
	for attempt := 1; attempt <= finishAttempts; attempt++ {
		if err = s.save(ctx, p, model.StateSending, "finish"); err == nil {
			return nil
		}
		var illegal *appErrors.IllegalTransitionError
		if errors.As(err, &illegal) || attempt == finishAttempts {
			break
		}
		s.logger().WithFields(logrus.Fields{"post_id": p.ID, "attempt": attempt}).WithError(err).Warn("terminal write failed, retrying")
		time.Sleep(time.Duration(attempt) * finishBackoff)
	}
	return err
}

// dispatch resolves targets and publishes to each. It never fails: every problem
// becomes a failed result for the targets it affects.
func (s *PostService) dispatch(ctx context.Context, p *model.Post) []model.SendResult {
	targets, missing, err := s.resolveTargets(ctx, p)
	if err != nil {
		return []model.SendResult{s.failure(model.SelfTarget, "resolve recipients: "+err.Error())}
	}
	if len(targets) == 0 && len(missing) == 0 {
		return []model.SendResult{s.failure(model.SelfTarget, ReasonNoRecipients)}
	}

	results := make([]model.SendResult, 0, len(targets)+len(missing))
	for _, id := range missing {
		results = append(results, s.failure(id, ReasonUnknownRecipient))
	}

	if res := validatePost(p); !res.OK {
		reason := strings.Join(res.Reasons, "; ")
		for _, t := range targets {
			results = append(results, s.failure(t.id, reason))
		}
		return sortResults(results)
	}

	pub, err := s.Publishers.For(p.Channel)
	if err != nil {
		for _, t := range targets {
			results = append(results, s.failure(t.id, err.Error()))
		}
		return sortResults(results)
	}

	return sortResults(append(results, s.fanOut(ctx, p, pub, targets)...))
}

// fanOut publishes to all targets in parallel and waits for every call to settle.
func (s *PostService) fanOut(ctx context.Context, p *model.Post, pub publisher.Publisher, targets []target) []model.SendResult {
	out := make([]model.SendResult, len(targets))
	metadata := model.CloneMetadata(p.ChannelMetadata)

	var g errgroup.Group
	g.SetLimit(s.fanOutLimit())
	for i, t := range targets {
		g.Go(func() error {
			out[i] = s.publishOne(ctx, p, pub, metadata, t)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *PostService) publishOne(ctx context.Context, p *model.Post, pub publisher.Publisher, metadata map[string]any, t target) (result model.SendResult) {
	ctx, span := s.tracer().Start(ctx, "PostService.publish", trace.WithAttributes(
		attribute.String("post.id", p.ID),
		attribute.String("post.channel", string(p.Channel)),
		attribute.String("target", t.id),
	))
	defer span.End()

	rendered := RenderContent(p.ContentDraft, t.recipient)
	defer func() {
		if r := recover(); r != nil {
			result = s.failure(t.id, fmt.Sprintf("publisher panic: %v", r))
		}
		result.Rendered = rendered.Body
		if !result.Success {
			span.SetStatus(codes.Error, result.Reason)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.publishTimeout())
	defer cancel()

	if err := pub.Publish(ctx, rendered, metadata, t.recipient); err != nil {
		f := appErrors.NewPublishFailure(t.id, err)
		span.RecordError(f)
		s.logger().WithFields(logrus.Fields{
			"post_id": p.ID,
			"target":  t.id,
		}).WithError(err).Warn("publish failed")
		return s.failure(t.id, f.Reason)
	}
	return model.SendResult{RecipientID: t.id, Success: true, AttemptedAt: s.now()}
}

// resolveTargets returns the publish targets of p. Explicit recipient ids that
// the directory does not know are returned in missing.
func (s *PostService) resolveTargets(ctx context.Context, p *model.Post) (targets []target, missing []string, err error) {
	if capability.IsBroadcast(p.Channel) {
		return []target{{id: model.SelfTarget}}, nil, nil
	}

	byID := map[string]model.Recipient{}
	if len(p.RecipientIDs) > 0 {
		found, err := s.Recipients.GetByIDs(ctx, p.RecipientIDs)
		if err != nil {
			return nil, nil, err
		}
		for _, r := range found {
			byID[r.ID] = r
		}
		for _, id := range p.RecipientIDs {
			if _, ok := byID[id]; !ok {
				missing = append(missing, id)
			}
		}
	}
	if p.CampaignID != "" {
		members, err := s.Recipients.GetRecipients(ctx, p.CampaignID)
		if err != nil {
			return nil, nil, err
		}
		for _, r := range members {
			byID[r.ID] = r
		}
	}

	for id := range byID {
		r := byID[id]
		targets = append(targets, target{id: id, recipient: &r})
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].id < targets[j].id })
	return targets, missing, nil
}

func (s *PostService) recordDeliveries(ctx context.Context, p *model.Post, results []model.SendResult) {
	if s.Deliveries == nil {
		return
	}
	deliveries := make([]model.Delivery, 0, len(results))
	for _, r := range results {
		status := model.DeliverySent
		if !r.Success {
			status = model.DeliveryFailed
		}
		deliveries = append(deliveries, model.Delivery{
			ID:              uuid.NewString(),
			PostID:          p.ID,
			RecipientID:     r.RecipientID,
			Channel:         p.Channel,
			Status:          status,
			RenderedContent: r.Rendered,
			LastError:       r.Reason,
			CreatedAt:       r.AttemptedAt,
		})
	}
	if err := s.Deliveries.CreateBatch(ctx, deliveries); err != nil {
		s.logger().WithField("post_id", p.ID).WithError(err).Error("failed to record deliveries")
	}
}

func (s *PostService) failure(targetID, reason string) model.SendResult {
	return model.SendResult{RecipientID: targetID, Success: false, Reason: reason, AttemptedAt: s.now()}
}

func aggregate(results []model.SendResult) model.PostState {
	var ok, failed int
	for _, r := range results {
		if r.Success {
			ok++
		} else {
			failed++
		}
	}
	switch {
	case failed == 0 && ok > 0:
		return model.StateSent
	case ok == 0:
		return model.StateFailed
	default:
		return model.StatePartiallyFailed
	}
}

func sortResults(results []model.SendResult) []model.SendResult {
	sort.Slice(results, func(i, j int) bool { return results[i].RecipientID < results[j].RecipientID })
	return results
}

// ====================== Queries ======================

func (s *PostService) Get(ctx context.Context, id string) (*model.Post, error) {
	return s.PostRepo.GetByID(ctx, id)
}

// List fetches posts with pagination.
func (s *PostService) List(ctx context.Context, page, pageSize int, filter repository.PostFilter) ([]*model.Post, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	posts, total, err := s.PostRepo.List(ctx, filter, offset, pageSize)
	if err != nil {
		return nil, nil, err
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}
	return posts, pagination, nil
}

// Stats counts posts per state, plus a total.
func (s *PostService) Stats(ctx context.Context) (map[string]int, error) {
	counts, err := s.PostRepo.CountByState(ctx)
	if err != nil {
		return nil, err
	}
	stats := map[string]int{"total": 0}
	for _, state := range model.AllStates {
		stats[string(state)] = counts[state]
		stats["total"] += counts[state]
	}
	return stats, nil
}

func (s *PostService) ListDeliveries(ctx context.Context, id string) ([]model.Delivery, error) {
	if _, err := s.PostRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.Deliveries.ListByPost(ctx, id)
}

// Preview renders a post for one recipient, or with placeholders when recipientID is empty.
func (s *PostService) Preview(ctx context.Context, id, recipientID string) (*PreviewResult, error) {
	p, err := s.PostRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	var recipient *model.Recipient
	if recipientID != "" {
		found, err := s.Recipients.GetByIDs(ctx, []string{recipientID})
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			return nil, &appErrors.NotFoundError{Resource: "recipient", ID: recipientID}
		}
		recipient = &found[0]
	}
	return &PreviewResult{
		RecipientID: recipientID,
		Rendered:    RenderContent(p.ContentDraft, recipient),
		Tokens:      Tokens(p.Subject + "\n" + p.Body),
		Validation:  validatePost(p),
	}, nil
}

// CalendarView loads the posts scheduled inside the grid around anchor and buckets them.
func (s *PostService) CalendarView(ctx context.Context, g model.Granularity, anchor time.Time) ([]model.CalendarBucket, error) {
	start, days, err := CalendarRange(g, anchor)
	if err != nil {
		return nil, err
	}
	end := start.AddDate(0, 0, days)
	posts, err := s.PostRepo.ListScheduled(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return Project(posts, g, anchor)
}

// UpcomingView groups posts from the start of today onward, in loc.
func (s *PostService) UpcomingView(ctx context.Context, loc *time.Location) (model.Upcoming, error) {
	now := s.now()
	if loc != nil {
		now = now.In(loc)
	}
	y, m, d := now.Date()
	posts, err := s.PostRepo.ListScheduled(ctx, time.Date(y, m, d, 0, 0, 0, 0, now.Location()), time.Time{})
	if err != nil {
		return model.Upcoming{}, err
	}
	return Upcoming(posts, now), nil
}

// ====================== helpers ======================

// save persists p if it is still in expected, translating a lost race into an
// illegal transition that names the state actually found.
func (s *PostService) save(ctx context.Context, p *model.Post, expected model.PostState, action string) error {
	if err := s.PostRepo.UpdateIfState(ctx, p, expected); err != nil {
		return s.conflict(ctx, p.ID, action, err)
	}
	return nil
}

func (s *PostService) conflict(ctx context.Context, id, action string, err error) error {
	if !errors.Is(err, repository.ErrStateConflict) {
		return err
	}
	current, getErr := s.PostRepo.GetByID(ctx, id)
	if getErr != nil {
		return getErr
	}
	return appErrors.NewIllegalTransition(id, string(current.State), action)
}

func (s *PostService) cancelTrigger(ctx context.Context, id string) {
	if err := s.Trigger.Cancel(ctx, id); err != nil {
		s.logger().WithField("post_id", id).WithError(err).Warn("failed to cancel trigger")
	}
}

// checkAudience rejects recipients on broadcast channels, which publish to the
// organisation's own identity.
func checkAudience(ch model.Channel, recipientIDs []string, campaignID string) error {
	if capability.IsBroadcast(ch) && (len(recipientIDs) > 0 || strings.TrimSpace(campaignID) != "") {
		return appErrors.NewValidationError("broadcast channels do not take recipients")
	}
	return nil
}

// overlay copies the non-empty fields of patch over base.
func overlay(base, patch model.ContentDraft) model.ContentDraft {
	if patch.Subject != "" {
		base.Subject = patch.Subject
	}
	if patch.Body != "" {
		base.Body = patch.Body
	}
	if len(patch.MediaAssets) > 0 {
		base.MediaAssets = model.CloneMedia(patch.MediaAssets)
	}
	if patch.Thumbnail != nil {
		thumb := *patch.Thumbnail
		base.Thumbnail = &thumb
	}
	if base.ChannelMetadata == nil {
		base.ChannelMetadata = map[string]any{}
	}
	for k, v := range model.CloneMetadata(patch.ChannelMetadata) {
		base.ChannelMetadata[k] = v
	}
	if base.MediaAssets == nil {
		base.MediaAssets = []model.MediaAsset{}
	}
	return base
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func (s *PostService) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

func (s *PostService) logger() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}

func (s *PostService) tracer() trace.Tracer {
	if s.Tracer == nil {
		return otel.Tracer("github.com/unclebandit/omnipost-backend/internal/service")
	}
	return s.Tracer
}

func (s *PostService) fanOutLimit() int {
	if s.FanOutLimit <= 0 {
		return DefaultFanOutLimit
	}
	return s.FanOutLimit
}

func (s *PostService) publishTimeout() time.Duration {
	if s.PublishTimeout <= 0 {
		return DefaultPublishTimeout
	}
	return s.PublishTimeout
}
