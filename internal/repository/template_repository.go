package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	appErrors "github.com/unclebandit/omnipost-backend/internal/errors"
	"github.com/unclebandit/omnipost-backend/internal/model"
)

type TemplateRepositoryInterface interface {
	Create(ctx context.Context, t *model.Template) error
	Update(ctx context.Context, t *model.Template) error
	GetByID(ctx context.Context, id string) (*model.Template, error)
	// List filters by channel when it is non-empty.
	List(ctx context.Context, channel model.Channel, activeOnly bool) ([]*model.Template, error)
	Delete(ctx context.Context, id string) error
}

type TemplateRepository struct {
	DB *sql.DB
}

const templateColumns = `id, name, channel, subject, body, media_assets, channel_metadata, is_active, created_at, updated_at`

func (r *TemplateRepository) Create(ctx context.Context, t *model.Template) error {
	media, err := encodeJSON(t.MediaAssets, "[]")
	if err != nil {
		return err
	}
	meta, err := encodeJSON(t.ChannelMetadata, "{}")
	if err != nil {
		return err
	}
	query := `
        INSERT INTO templates (` + templateColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `
	_, err = r.DB.ExecContext(ctx, query,
		t.ID, t.Name, t.Channel, t.Subject, t.Body, media, meta, t.IsActive, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert template %s: %w", t.ID, err)
	}
	return nil
}

func (r *TemplateRepository) Update(ctx context.Context, t *model.Template) error {
	media, err := encodeJSON(t.MediaAssets, "[]")
	if err != nil {
		return err
	}
	meta, err := encodeJSON(t.ChannelMetadata, "{}")
	if err != nil {
		return err
	}
	query := `
        UPDATE templates
        SET name=$1, subject=$2, body=$3, media_assets=$4, channel_metadata=$5, is_active=$6, updated_at=$7
        WHERE id=$8
    `
	res, err := r.DB.ExecContext(ctx, query,
		t.Name, t.Subject, t.Body, media, meta, t.IsActive, t.UpdatedAt, t.ID)
	if err != nil {
		return fmt.Errorf("update template %s: %w", t.ID, err)
	}
	return templateAffected(res, t.ID)
}

func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*model.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE id=$1`
	t, err := scanTemplate(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewTemplateNotFound(id)
		}
		return nil, err
	}
	return t, nil
}

func (r *TemplateRepository) List(ctx context.Context, channel model.Channel, activeOnly bool) ([]*model.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE 1=1`
	args := []interface{}{}
	if channel != "" {
		args = append(args, channel)
		query += fmt.Sprintf(" AND channel=$%d", len(args))
	}
	if activeOnly {
		query += " AND is_active"
	}
	query += " ORDER BY name, id"

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := []*model.Template{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (r *TemplateRepository) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM templates WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete template %s: %w", id, err)
	}
	return templateAffected(res, id)
}

func templateAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return appErrors.NewTemplateNotFound(id)
	}
	return nil
}

func scanTemplate(row rowScanner) (*model.Template, error) {
	var (
		t           model.Template
		media, meta []byte
	)
	err := row.Scan(&t.ID, &t.Name, &t.Channel, &t.Subject, &t.Body, &media, &meta,
		&t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := decodeJSON(media, &t.MediaAssets); err != nil {
		return nil, fmt.Errorf("template %s media_assets: %w", t.ID, err)
	}
	if err := decodeJSON(meta, &t.ChannelMetadata); err != nil {
		return nil, fmt.Errorf("template %s channel_metadata: %w", t.ID, err)
	}
	return &t, nil
}

var _ TemplateRepositoryInterface = (*TemplateRepository)(nil)
