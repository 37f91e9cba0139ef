package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// AgeMarkerRepository keeps one marker file per deal and rule. The marker is
// created exclusively, so only the first MarkFired for a pair succeeds.
type AgeMarkerRepository struct {
	root string
}

func NewAgeMarkerRepository(root string) *AgeMarkerRepository {
	return &AgeMarkerRepository{root: root}
}

func (ar *AgeMarkerRepository) dir(dealID string) string {
	return filepath.Join(ar.root, markersDir, escape(dealID))
}

func (ar *AgeMarkerRepository) path(dealID, ruleID string) string {
	return filepath.Join(ar.dir(dealID), escape(ruleID))
}

func (ar *AgeMarkerRepository) MarkFired(_ context.Context, dealID, ruleID string, at time.Time) (bool, error) {
	if err := os.MkdirAll(ar.dir(dealID), 0750); err != nil {
		return false, fmt.Errorf("failed to create marker directory for deal %s: %w", dealID, err)
	}

	marker, err := os.OpenFile(ar.path(dealID, ruleID), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}

		return false, fmt.Errorf("failed to mark rule %s for deal %s: %w", ruleID, dealID, err)
	}

	_, err = marker.WriteString(at.UTC().Format(time.RFC3339Nano))

	return true, errors.Join(err, marker.Close())
}

func (ar *AgeMarkerRepository) HasFired(_ context.Context, dealID, ruleID string) (bool, error) {
	_, err := os.Stat(ar.path(dealID, ruleID))
	if err == nil {
		return true, nil
	}

	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	return false, fmt.Errorf("failed to read marker of rule %s for deal %s: %w", ruleID, dealID, err)
}

func (ar *AgeMarkerRepository) ClearRule(_ context.Context, dealID, ruleID string) error {
	err := os.Remove(ar.path(dealID, ruleID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to clear marker of rule %s for deal %s: %w", ruleID, dealID, err)
	}

	return nil
}

func (ar *AgeMarkerRepository) ClearDeal(_ context.Context, dealID string) error {
	if err := os.RemoveAll(ar.dir(dealID)); err != nil {
		return fmt.Errorf("failed to clear markers for deal %s: %w", dealID, err)
	}

	return nil
}
