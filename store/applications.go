package store

import (
	"context"
	"fmt"

	"cashadvance/models"
	"cashadvance/pkg/lifecycle"
)

func (s *Store) CreateApplication(ctx context.Context, a *models.Application) error {
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// FindApplication loads an application only if ownerID owns it. Missing and
// foreign applications are both reported as not found.
func (s *Store) FindApplication(ctx context.Context, id, ownerID string) (*models.Application, error) {
	var a models.Application
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, ownerID).First(&a).Error
	if err != nil {
		return nil, notFoundOr(err, "application")
	}
	return &a, nil
}

// ListApplications returns ownerID's applications, newest first.
func (s *Store) ListApplications(ctx context.Context, ownerID string) ([]models.Application, error) {
	items := []models.Application{}
	err := s.db.WithContext(ctx).Where("user_id = ?", ownerID).
		Order("created_at desc").Order("id desc").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return items, nil
}

// UpdateApplicationIf applies set to the owned application only while its
// status is one of from, in a single statement. It reports the rows changed:
// zero means the row is missing, foreign, or in another status.
func (s *Store) UpdateApplicationIf(ctx context.Context, id, ownerID string, from []lifecycle.Status, set map[string]interface{}) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Application{}).
		Where("id = ? AND user_id = ? AND status IN ?", id, ownerID, statusStrings(from)).
		Updates(set)
	if res.Error != nil {
		return 0, fmt.Errorf("update application: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// FindForReview loads any application regardless of owner. Admin use only.
func (s *Store) FindForReview(ctx context.Context, id string) (*models.Application, error) {
	var a models.Application
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, notFoundOr(err, "application")
	}
	return &a, nil
}

// ListForReview lists all applications, optionally filtered by status. Admin use only.
func (s *Store) ListForReview(ctx context.Context, status lifecycle.Status, limit int) ([]models.Application, error) {
	items := []models.Application{}
	q := s.db.WithContext(ctx).Model(&models.Application{})
	if status != "" {
		q = q.Where("status = ?", string(status))
	}
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	if err := q.Order("created_at desc").Order("id desc").Limit(limit).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list applications for review: %w", err)
	}
	return items, nil
}

// ReviewUpdateIf is UpdateApplicationIf without the owner filter. Admin use only.
func (s *Store) ReviewUpdateIf(ctx context.Context, id string, from []lifecycle.Status, set map[string]interface{}) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Application{}).
		Where("id = ? AND status IN ?", id, statusStrings(from)).
		Updates(set)
	if res.Error != nil {
		return 0, fmt.Errorf("review application: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func statusStrings(list []lifecycle.Status) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = string(s)
	}
	return out
}
