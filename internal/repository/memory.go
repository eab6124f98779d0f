package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	appErrors "github.com/unclebandit/omnipost-backend/internal/errors"
	"github.com/unclebandit/omnipost-backend/internal/model"
)

// MemoryPostRepository keeps posts in process memory. Records are cloned on the
// way in and out so callers never share state with the store.
type MemoryPostRepository struct {
	mu    sync.RWMutex
	posts map[string]*model.Post
}

func NewMemoryPostRepository() *MemoryPostRepository {
	return &MemoryPostRepository{posts: make(map[string]*model.Post)}
}

func (r *MemoryPostRepository) Create(_ context.Context, p *model.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.posts[p.ID]; exists {
		return fmt.Errorf("insert post %s: duplicate id", p.ID)
	}
	r.posts[p.ID] = p.Clone()
	return nil
}

func (r *MemoryPostRepository) GetByID(_ context.Context, id string) (*model.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, appErrors.NewPostNotFound(id)
	}
	return p.Clone(), nil
}

func (r *MemoryPostRepository) UpdateIfState(_ context.Context, p *model.Post, expected model.PostState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.posts[p.ID]
	if !ok {
		return appErrors.NewPostNotFound(p.ID)
	}
	if current.State != expected {
		return ErrStateConflict
	}
	next := p.Clone()
	next.Channel = current.Channel
	next.CreatedAt = current.CreatedAt
	r.posts[p.ID] = next
	return nil
}

func (r *MemoryPostRepository) DeleteIfState(_ context.Context, id string, expected model.PostState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.posts[id]
	if !ok {
		return appErrors.NewPostNotFound(id)
	}
	if current.State != expected {
		return ErrStateConflict
	}
	delete(r.posts, id)
	return nil
}

func (r *MemoryPostRepository) List(_ context.Context, filter PostFilter, offset, limit int) ([]*model.Post, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var filtered []*model.Post
	for _, p := range r.posts {
		if filter.Channel != "" && p.Channel != filter.Channel {
			continue
		}
		if filter.State != "" && p.State != filter.State {
			continue
		}
		filtered = append(filtered, p)
	}
	sort.Slice(filtered, func(i, j int) bool {
		if !filtered[i].CreatedAt.Equal(filtered[j].CreatedAt) {
			return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
		}
		return filtered[i].ID > filtered[j].ID
	})

	total := len(filtered)
	start := offset
	end := offset + limit
	if start > total {
		return []*model.Post{}, total, nil
	}
	if end > total {
		end = total
	}

	out := make([]*model.Post, 0, end-start)
	for _, p := range filtered[start:end] {
		out = append(out, p.Clone())
	}
	return out, total, nil
}

func (r *MemoryPostRepository) ListScheduled(_ context.Context, from, to time.Time) ([]*model.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*model.Post{}
	for _, p := range r.posts {
		if p.ScheduledAt == nil || p.ScheduledAt.Before(from) {
			continue
		}
		if !to.IsZero() && !p.ScheduledAt.Before(to) {
			continue
		}
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledAt.Equal(*out[j].ScheduledAt) {
			return out[i].ScheduledAt.Before(*out[j].ScheduledAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryPostRepository) CountByState(_ context.Context) (map[model.PostState]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[model.PostState]int, len(model.AllStates))
	for _, s := range model.AllStates {
		counts[s] = 0
	}
	for _, p := range r.posts {
		counts[p.State]++
	}
	return counts, nil
}

type MemoryTemplateRepository struct {
	mu        sync.RWMutex
	templates map[string]*model.Template
}

func NewMemoryTemplateRepository(seed ...*model.Template) *MemoryTemplateRepository {
	r := &MemoryTemplateRepository{templates: make(map[string]*model.Template, len(seed))}
	for _, t := range seed {
		r.templates[t.ID] = t.Clone()
	}
	return r
}

func (r *MemoryTemplateRepository) Create(_ context.Context, t *model.Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.templates[t.ID]; exists {
		return fmt.Errorf("insert template %s: duplicate id", t.ID)
	}
	r.templates[t.ID] = t.Clone()
	return nil
}

func (r *MemoryTemplateRepository) Update(_ context.Context, t *model.Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.templates[t.ID]; !ok {
		return appErrors.NewTemplateNotFound(t.ID)
	}
	r.templates[t.ID] = t.Clone()
	return nil
}

func (r *MemoryTemplateRepository) GetByID(_ context.Context, id string) (*model.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.templates[id]
	if !ok {
		return nil, appErrors.NewTemplateNotFound(id)
	}
	return t.Clone(), nil
}

func (r *MemoryTemplateRepository) List(_ context.Context, channel model.Channel, activeOnly bool) ([]*model.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*model.Template{}
	for _, t := range r.templates {
		if channel != "" && t.Channel != channel {
			continue
		}
		if activeOnly && !t.IsActive {
			continue
		}
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryTemplateRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.templates[id]; !ok {
		return appErrors.NewTemplateNotFound(id)
	}
	delete(r.templates, id)
	return nil
}

// MemoryRecipientDirectory is a fixed contact directory, used in tests and the
// in-process development wiring.
type MemoryRecipientDirectory struct {
	mu         sync.RWMutex
	recipients map[string]model.Recipient
	campaigns  map[string][]string
}

func NewMemoryRecipientDirectory(recipients ...model.Recipient) *MemoryRecipientDirectory {
	d := &MemoryRecipientDirectory{
		recipients: make(map[string]model.Recipient, len(recipients)),
		campaigns:  make(map[string][]string),
	}
	for _, r := range recipients {
		d.recipients[r.ID] = r
	}
	return d
}

// AddCampaign registers the members of a campaign audience.
func (d *MemoryRecipientDirectory) AddCampaign(campaignID string, recipientIDs ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.campaigns[campaignID] = append(d.campaigns[campaignID], recipientIDs...)
}

func (d *MemoryRecipientDirectory) GetRecipients(ctx context.Context, campaignID string) ([]model.Recipient, error) {
	d.mu.RLock()
	ids := append([]string(nil), d.campaigns[campaignID]...)
	d.mu.RUnlock()
	return d.GetByIDs(ctx, ids)
}

func (d *MemoryRecipientDirectory) GetByIDs(_ context.Context, ids []string) ([]model.Recipient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := []model.Recipient{}
	for _, id := range ids {
		if r, ok := d.recipients[id]; ok {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type MemoryDeliveryRepository struct {
	mu         sync.RWMutex
	deliveries []model.Delivery
}

func NewMemoryDeliveryRepository() *MemoryDeliveryRepository {
	return &MemoryDeliveryRepository{}
}

func (r *MemoryDeliveryRepository) CreateBatch(_ context.Context, deliveries []model.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, deliveries...)
	return nil
}

func (r *MemoryDeliveryRepository) ListByPost(_ context.Context, postID string) ([]model.Delivery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []model.Delivery{}
	for _, d := range r.deliveries {
		if d.PostID == postID {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].RecipientID < out[j].RecipientID
	})
	return out, nil
}

var (
	_ PostRepositoryInterface      = (*MemoryPostRepository)(nil)
	_ TemplateRepositoryInterface  = (*MemoryTemplateRepository)(nil)
	_ RecipientRepositoryInterface = (*MemoryRecipientDirectory)(nil)
	_ DeliveryRepositoryInterface  = (*MemoryDeliveryRepository)(nil)
)
