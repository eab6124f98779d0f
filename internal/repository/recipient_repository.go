package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/unclebandit/omnipost-backend/internal/model"
)

// RecipientRepositoryInterface is the read-only contact directory.
type RecipientRepositoryInterface interface {
	// GetRecipients returns the members of a campaign audience.
	GetRecipients(ctx context.Context, campaignID string) ([]model.Recipient, error)
	// GetByIDs returns the known recipients among ids; unknown ids are skipped.
	GetByIDs(ctx context.Context, ids []string) ([]model.Recipient, error)
}

type RecipientRepository struct {
	DB *sql.DB
}

func (r *RecipientRepository) GetRecipients(ctx context.Context, campaignID string) ([]model.Recipient, error) {
	query := `
        SELECT r.id, r.name, r.email, r.phone, r.company
        FROM recipients r
        JOIN campaign_recipients cr ON cr.recipient_id = r.id
        WHERE cr.campaign_id = $1
        ORDER BY r.id
    `
	return r.query(ctx, query, campaignID)
}

func (r *RecipientRepository) GetByIDs(ctx context.Context, ids []string) ([]model.Recipient, error) {
	if len(ids) == 0 {
		return []model.Recipient{}, nil
	}
	query := `
        SELECT id, name, email, phone, company
        FROM recipients
        WHERE id = ANY($1)
        ORDER BY id
    `
	return r.query(ctx, query, pq.Array(ids))
}

func (r *RecipientRepository) query(ctx context.Context, query string, args ...interface{}) ([]model.Recipient, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recipients := []model.Recipient{}
	for rows.Next() {
		var c model.Recipient
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Company); err != nil {
			return nil, err
		}
		recipients = append(recipients, c)
	}
	return recipients, rows.Err()
}

var _ RecipientRepositoryInterface = (*RecipientRepository)(nil)
