package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/unclebandit/omnipost-backend/internal/model"
)

type DeliveryRepositoryInterface interface {
	// CreateBatch appends one audit row per publish attempt in a single transaction.
	CreateBatch(ctx context.Context, deliveries []model.Delivery) error
	ListByPost(ctx context.Context, postID string) ([]model.Delivery, error)
}

type DeliveryRepository struct {
	DB *sql.DB
}

func (r *DeliveryRepository) CreateBatch(ctx context.Context, deliveries []model.Delivery) error {
	if len(deliveries) == 0 {
		return nil
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO deliveries (id, post_id, recipient_id, channel, status, rendered_content, last_error, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, d := range deliveries {
		_, err := stmt.ExecContext(ctx,
			d.ID, d.PostID, d.RecipientID, d.Channel, d.Status, d.RenderedContent, d.LastError, d.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert delivery for %s/%s: %w", d.PostID, d.RecipientID, err)
		}
	}
	return tx.Commit()
}

func (r *DeliveryRepository) ListByPost(ctx context.Context, postID string) ([]model.Delivery, error) {
	query := `
        SELECT id, post_id, recipient_id, channel, status, rendered_content, last_error, created_at
        FROM deliveries
        WHERE post_id=$1
        ORDER BY created_at, recipient_id
    `
	rows, err := r.DB.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deliveries := []model.Delivery{}
	for rows.Next() {
		var d model.Delivery
		if err := rows.Scan(&d.ID, &d.PostID, &d.RecipientID, &d.Channel, &d.Status,
			&d.RenderedContent, &d.LastError, &d.CreatedAt); err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

var _ DeliveryRepositoryInterface = (*DeliveryRepository)(nil)
