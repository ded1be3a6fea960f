package store

import (
	"context"
	"fmt"

	"cashadvance/models"
)

func (s *Store) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

// ListTransactions returns ownerID's ledger lines, newest first, optionally for one application.
func (s *Store) ListTransactions(ctx context.Context, ownerID, applicationID string) ([]models.Transaction, error) {
	items := []models.Transaction{}
	q := s.db.WithContext(ctx).Where("user_id = ?", ownerID)
	if applicationID != "" {
		q = q.Where("application_id = ?", applicationID)
	}
	if err := q.Order("created_at desc").Order("id desc").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return items, nil
}
