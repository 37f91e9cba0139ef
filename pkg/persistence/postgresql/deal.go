package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/dealflow/pkg/models"
	"github.com/dukex/dealflow/pkg/persistence"
	"github.com/lib/pq"
)

const selectDeal = `
	SELECT
		d.id
	  , d.account_id
	  , d.pipeline_id
	  , d.title
	  , d.value
	  , d.currency
	  , d.stage
	  , d.probability
	  , d.expected_close_date
	  , d.owner_id
	  , d.custom_fields
	  , d.created_at
	  , d.updated_at
	  , COALESCE(ARRAY(SELECT c.contact_id FROM contact_deals c WHERE c.deal_id = d.id ORDER BY c.linked_at, c.contact_id), '{}')
	FROM deals d
`

// DealRepository handles deal-related database operations.
type DealRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDealRepository creates a new deal repository.
func NewDealRepository(db *sql.DB, logger *slog.Logger) *DealRepository {
	return &DealRepository{db: db, logger: logger}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDeal(row scanner) (*models.Deal, error) {
	var (
		deal         models.Deal
		closeDate    sql.NullTime
		customFields []byte
		contactIDs   pq.StringArray
	)

	err := row.Scan(
		&deal.ID,
		&deal.AccountID,
		&deal.PipelineID,
		&deal.Title,
		&deal.Value,
		&deal.Currency,
		&deal.Stage,
		&deal.Probability,
		&closeDate,
		&deal.OwnerID,
		&customFields,
		&deal.CreatedAt,
		&deal.UpdatedAt,
		&contactIDs,
	)
	if err != nil {
		return nil, err
	}

	if closeDate.Valid {
		value := closeDate.Time.UTC()
		deal.ExpectedCloseDate = &value
	}

	if len(customFields) > 0 {
		err = json.Unmarshal(customFields, &deal.CustomFields)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal custom fields of deal %s: %w", deal.ID, err)
		}
	}

	if len(deal.CustomFields) == 0 {
		deal.CustomFields = nil
	}

	if len(contactIDs) > 0 {
		deal.ContactIDs = contactIDs
	}

	deal.CreatedAt = deal.CreatedAt.UTC()
	deal.UpdatedAt = deal.UpdatedAt.UTC()

	return &deal, nil
}

// GetByID retrieves a deal with its contact links.
func (r *DealRepository) GetByID(ctx context.Context, dealID string) (*models.Deal, error) {
	deal, err := scanDeal(r.db.QueryRowContext(ctx, selectDeal+" WHERE d.id = $1", dealID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewDealError("GetByID", dealID, persistence.ErrDealNotFound)
		}

		return nil, persistence.NewDealError("GetByID", dealID, err)
	}

	return deal, nil
}

// Save upserts the deal row and adds its contact links in one transaction.
// Links missing from the record are kept, LinkContact being the only writer
// that adds them.
func (r *DealRepository) Save(ctx context.Context, deal *models.Deal) error {
	now := time.Now().UTC()
	if deal.CreatedAt.IsZero() {
		deal.CreatedAt = now
	}

	if deal.UpdatedAt.IsZero() {
		deal.UpdatedAt = now
	}

	customFields, err := json.Marshal(deal.CustomFields)
	if err != nil {
		return persistence.NewDealError("Save", deal.ID, fmt.Errorf("failed to marshal custom fields: %w", err))
	}

	if deal.CustomFields == nil {
		customFields = []byte("{}")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewDealError("Save", deal.ID, fmt.Errorf("failed to begin transaction: %w", err))
	}

	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO deals (
			id, account_id, pipeline_id, title, value, currency, stage, probability,
			expected_close_date, owner_id, custom_fields, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			account_id = EXCLUDED.account_id,
			pipeline_id = EXCLUDED.pipeline_id,
			title = EXCLUDED.title,
			value = EXCLUDED.value,
			currency = EXCLUDED.currency,
			stage = EXCLUDED.stage,
			probability = EXCLUDED.probability,
			expected_close_date = EXCLUDED.expected_close_date,
			owner_id = EXCLUDED.owner_id,
			custom_fields = EXCLUDED.custom_fields,
			updated_at = EXCLUDED.updated_at
	`,
		deal.ID,
		deal.AccountID,
		deal.PipelineID,
		deal.Title,
		deal.Value,
		deal.Currency,
		deal.Stage,
		deal.Probability,
		deal.ExpectedCloseDate,
		deal.OwnerID,
		customFields,
		deal.CreatedAt,
		deal.UpdatedAt,
	)
	if err != nil {
		return persistence.NewDealError("Save", deal.ID, fmt.Errorf("failed to upsert deal: %w", err))
	}

	if len(deal.ContactIDs) > 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO contact_deals (deal_id, contact_id)
			SELECT $1, unnest($2::text[])
			ON CONFLICT DO NOTHING
		`, deal.ID, pq.Array(deal.ContactIDs))
		if err != nil {
			return persistence.NewDealError("Save", deal.ID, fmt.Errorf("failed to link contacts: %w", err))
		}
	}

	err = tx.Commit()
	if err != nil {
		return persistence.NewDealError("Save", deal.ID, fmt.Errorf("failed to commit: %w", err))
	}

	return nil
}

// Delete removes the contact links and the deal in one transaction.
func (r *DealRepository) Delete(ctx context.Context, dealID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewDealError("Delete", dealID, fmt.Errorf("failed to begin transaction: %w", err))
	}

	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, "DELETE FROM contact_deals WHERE deal_id = $1", dealID)
	if err != nil {
		return persistence.NewDealError("Delete", dealID, fmt.Errorf("failed to delete contact links: %w", err))
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM deals WHERE id = $1", dealID)
	if err != nil {
		return persistence.NewDealError("Delete", dealID, fmt.Errorf("failed to delete deal: %w", err))
	}

	err = tx.Commit()
	if err != nil {
		return persistence.NewDealError("Delete", dealID, fmt.Errorf("failed to commit: %w", err))
	}

	return nil
}

func (r *DealRepository) ListByPipeline(ctx context.Context, accountID, pipelineID string) ([]*models.Deal, error) {
	rows, err := r.db.QueryContext(ctx,
		selectDeal+" WHERE d.account_id = $1 AND d.pipeline_id = $2 ORDER BY d.created_at, d.id",
		accountID, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("failed to query deals of pipeline %s: %w", pipelineID, err)
	}

	defer closeRows(ctx, r.logger, rows)

	deals := make([]*models.Deal, 0)

	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deal: %w", err)
		}

		deals = append(deals, deal)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate deals: %w", err)
	}

	return deals, nil
}

func (r *DealRepository) LinkContact(ctx context.Context, dealID, contactID string) error {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO contact_deals (deal_id, contact_id)
		SELECT id, $2 FROM deals WHERE id = $1
		ON CONFLICT DO NOTHING
	`, dealID, contactID)
	if err != nil {
		return persistence.NewDealError("LinkContact", dealID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewDealError("LinkContact", dealID, err)
	}

	if affected > 0 {
		return nil
	}

	var exists bool

	err = r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM deals WHERE id = $1)", dealID).Scan(&exists)
	if err != nil {
		return persistence.NewDealError("LinkContact", dealID, err)
	}

	if !exists {
		return persistence.NewDealError("LinkContact", dealID, persistence.ErrDealNotFound)
	}

	return nil
}
