package file

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/dukex/dealflow/pkg/models"
	"github.com/dukex/dealflow/pkg/persistence"
)

// DealRepository stores one file per deal. Contact links are part of the deal
// document, so removing the file removes the links with it.
type DealRepository struct {
	root string
	mu   sync.Mutex
}

func NewDealRepository(root string) *DealRepository {
	return &DealRepository{root: root}
}

func (dr *DealRepository) path(dealID string) string {
	return filepath.Join(dr.root, dealsDir, escape(dealID)+".json")
}

// GetByID retrieves a deal by its ID from the file system.
func (dr *DealRepository) GetByID(_ context.Context, dealID string) (*models.Deal, error) {
	var deal models.Deal

	if err := readJSON(dr.path(dealID), &deal); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewDealError("GetByID", dealID, persistence.ErrDealNotFound)
		}

		return nil, persistence.NewDealError("GetByID", dealID, err)
	}

	return &deal, nil
}

// Save writes the deal document atomically.
func (dr *DealRepository) Save(_ context.Context, deal *models.Deal) error {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	return dr.write(deal)
}

func (dr *DealRepository) write(deal *models.Deal) error {
	if deal.CreatedAt.IsZero() {
		deal.CreatedAt = time.Now().UTC()
	}

	if err := writeJSON(dr.path(deal.ID), deal); err != nil {
		return persistence.NewDealError("Save", deal.ID, err)
	}

	return nil
}

// Delete removes a deal and its contact links.
func (dr *DealRepository) Delete(_ context.Context, dealID string) error {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	err := os.Remove(dr.path(dealID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return persistence.NewDealError("Delete", dealID, err)
	}

	return nil
}

func (dr *DealRepository) ListByPipeline(_ context.Context, accountID, pipelineID string) ([]*models.Deal, error) {
	paths, err := listJSON(filepath.Join(dr.root, dealsDir))
	if err != nil {
		return nil, err
	}

	deals := make([]*models.Deal, 0)

	for _, path := range paths {
		var deal models.Deal

		if err := readJSON(path, &deal); err != nil {
			// Deleted between listing and reading.
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}

			return nil, fmt.Errorf("failed to load deal %s: %w", filepath.Base(path), err)
		}

		if deal.AccountID == accountID && deal.PipelineID == pipelineID {
			deals = append(deals, &deal)
		}
	}

	slices.SortFunc(deals, func(a, b *models.Deal) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})

	return deals, nil
}

func (dr *DealRepository) LinkContact(ctx context.Context, dealID, contactID string) error {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	deal, err := dr.GetByID(ctx, dealID)
	if err != nil {
		return err
	}

	if slices.Contains(deal.ContactIDs, contactID) {
		return nil
	}

	deal.ContactIDs = append(deal.ContactIDs, contactID)

	return dr.write(deal)
}
