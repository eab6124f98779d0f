package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/omnipost-backend/internal/errors"
	"github.com/unclebandit/omnipost-backend/internal/model"
)

// ErrStateConflict is returned by conditional writes when the stored post is no longer
// in the expected state.
var ErrStateConflict = errors.New("post state changed concurrently")

type PostFilter struct {
	Channel model.Channel
	State   model.PostState
}

type PostRepositoryInterface interface {
	Create(ctx context.Context, p *model.Post) error
	GetByID(ctx context.Context, id string) (*model.Post, error)
	// UpdateIfState overwrites the stored post only while it is still in expected.
	UpdateIfState(ctx context.Context, p *model.Post, expected model.PostState) error
	DeleteIfState(ctx context.Context, id string, expected model.PostState) error
	List(ctx context.Context, filter PostFilter, offset, limit int) ([]*model.Post, int, error)
	// ListScheduled returns posts with a scheduled time in [from, to). A zero to means no upper bound.
	ListScheduled(ctx context.Context, from, to time.Time) ([]*model.Post, error)
	CountByState(ctx context.Context) (map[model.PostState]int, error)
}

type PostRepository struct {
	DB *sql.DB
}

const postColumns = `id, channel, subject, body, media_assets, thumbnail, channel_metadata,
	state, scheduled_at, campaign_id, recipient_ids, send_results, created_at, updated_at`

func (r *PostRepository) Create(ctx context.Context, p *model.Post) error {
	media, thumb, meta, results, err := encodePost(p)
	if err != nil {
		return err
	}
	query := `
        INSERT INTO posts (` + postColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
    `
	_, err = r.DB.ExecContext(ctx, query,
		p.ID, p.Channel, p.Subject, p.Body, media, thumb, meta,
		p.State, p.ScheduledAt, p.CampaignID, pq.Array(p.RecipientIDs), results,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert post %s: %w", p.ID, err)
	}
	return nil
}

func (r *PostRepository) GetByID(ctx context.Context, id string) (*model.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id=$1`
	p, err := scanPost(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewPostNotFound(id)
		}
		return nil, err
	}
	return p, nil
}

func (r *PostRepository) UpdateIfState(ctx context.Context, p *model.Post, expected model.PostState) error {
	media, thumb, meta, results, err := encodePost(p)
	if err != nil {
		return err
	}
	query := `
        UPDATE posts
        SET subject=$1, body=$2, media_assets=$3, thumbnail=$4, channel_metadata=$5,
            state=$6, scheduled_at=$7, campaign_id=$8, recipient_ids=$9, send_results=$10, updated_at=$11
        WHERE id=$12 AND state=$13
    `
	res, err := r.DB.ExecContext(ctx, query,
		p.Subject, p.Body, media, thumb, meta,
		p.State, p.ScheduledAt, p.CampaignID, pq.Array(p.RecipientIDs), results, p.UpdatedAt,
		p.ID, expected,
	)
	if err != nil {
		return fmt.Errorf("update post %s: %w", p.ID, err)
	}
	return r.checkAffected(ctx, res, p.ID)
}

func (r *PostRepository) DeleteIfState(ctx context.Context, id string, expected model.PostState) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM posts WHERE id=$1 AND state=$2`, id, expected)
	if err != nil {
		return fmt.Errorf("delete post %s: %w", id, err)
	}
	return r.checkAffected(ctx, res, id)
}

// checkAffected tells a missing row apart from a state conflict.
func (r *PostRepository) checkAffected(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var exists bool
	if err := r.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM posts WHERE id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return appErrors.NewPostNotFound(id)
	}
	return ErrStateConflict
}

func (r *PostRepository) List(ctx context.Context, filter PostFilter, offset, limit int) ([]*model.Post, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if filter.Channel != "" {
		where += fmt.Sprintf(" AND channel=$%d", argPos)
		args = append(args, filter.Channel)
		argPos++
	}
	if filter.State != "" {
		where += fmt.Sprintf(" AND state=$%d", argPos)
		args = append(args, filter.State)
		argPos++
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + postColumns + ` FROM posts` + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	posts, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (r *PostRepository) ListScheduled(ctx context.Context, from, to time.Time) ([]*model.Post, error) {
	if to.IsZero() {
		query := `SELECT ` + postColumns + ` FROM posts
            WHERE scheduled_at IS NOT NULL AND scheduled_at >= $1 ORDER BY scheduled_at, id`
		return r.query(ctx, query, from)
	}
	query := `SELECT ` + postColumns + ` FROM posts
        WHERE scheduled_at IS NOT NULL AND scheduled_at >= $1 AND scheduled_at < $2 ORDER BY scheduled_at, id`
	return r.query(ctx, query, from, to)
}

func (r *PostRepository) CountByState(ctx context.Context) (map[model.PostState]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT state, COUNT(*) FROM posts GROUP BY state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.PostState]int, len(model.AllStates))
	for _, s := range model.AllStates {
		counts[s] = 0
	}
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		counts[model.PostState(state)] = count
	}
	return counts, rows.Err()
}

func (r *PostRepository) query(ctx context.Context, query string, args ...interface{}) ([]*model.Post, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []*model.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPost(row rowScanner) (*model.Post, error) {
	var (
		p                           model.Post
		media, thumb, meta, results []byte
		campaignID                  sql.NullString
	)
	err := row.Scan(
		&p.ID, &p.Channel, &p.Subject, &p.Body, &media, &thumb, &meta,
		&p.State, &p.ScheduledAt, &campaignID, pq.Array(&p.RecipientIDs), &results,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.CampaignID = campaignID.String
	if err := decodeJSON(media, &p.MediaAssets); err != nil {
		return nil, fmt.Errorf("post %s media_assets: %w", p.ID, err)
	}
	if err := decodeJSON(thumb, &p.Thumbnail); err != nil {
		return nil, fmt.Errorf("post %s thumbnail: %w", p.ID, err)
	}
	if err := decodeJSON(meta, &p.ChannelMetadata); err != nil {
		return nil, fmt.Errorf("post %s channel_metadata: %w", p.ID, err)
	}
	if err := decodeJSON(results, &p.SendResults); err != nil {
		return nil, fmt.Errorf("post %s send_results: %w", p.ID, err)
	}
	if p.MediaAssets == nil {
		p.MediaAssets = []model.MediaAsset{}
	}
	if p.ChannelMetadata == nil {
		p.ChannelMetadata = map[string]any{}
	}
	if p.SendResults == nil {
		p.SendResults = map[string]model.SendResult{}
	}
	return &p, nil
}

func encodePost(p *model.Post) (media, thumb, meta, results []byte, err error) {
	if media, err = encodeJSON(p.MediaAssets, "[]"); err != nil {
		return
	}
	if p.Thumbnail != nil {
		if thumb, err = json.Marshal(p.Thumbnail); err != nil {
			return
		}
	}
	if meta, err = encodeJSON(p.ChannelMetadata, "{}"); err != nil {
		return
	}
	results, err = encodeJSON(p.SendResults, "{}")
	return
}

// encodeJSON marshals v for a JSONB column, substituting empty for nil slices and maps.
func encodeJSON(v interface{}, empty string) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return []byte(empty), nil
	}
	return b, nil
}

func decodeJSON(raw []byte, dst interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

var _ PostRepositoryInterface = (*PostRepository)(nil)
