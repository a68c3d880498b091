package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/caregrid/dispatch-service/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type rosterRepository struct {
	db *gorm.DB
}

func (r *rosterRepository) GetClient(ctx context.Context, clientID uuid.UUID) (domain.Client, error) {
	var rec clientModel
	if err := r.db.WithContext(ctx).Where("client_id = ?", clientID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Client{}, domain.ErrNotFound
		}
		return domain.Client{}, err
	}
	return toDomainClient(rec), nil
}

func (r *rosterRepository) GetAssignment(ctx context.Context, assignmentID uuid.UUID) (domain.Assignment, error) {
	var rec assignmentModel
	if err := r.db.WithContext(ctx).Where("assignment_id = ?", assignmentID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Assignment{}, domain.ErrNotFound
		}
		return domain.Assignment{}, err
	}
	return toDomainAssignment(rec), nil
}

// GetWorkersAvailable returns active workers in stable roster order
// (created_at), excluding the given IDs. Weekday availability is stored as a
// JSON list, so that filter runs here after the load.
func (r *rosterRepository) GetWorkersAvailable(ctx context.Context, date time.Time, excludeIDs []uuid.UUID) ([]domain.Worker, error) {
	q := r.db.WithContext(ctx).Where("active = ?", true).Order("created_at asc")
	if len(excludeIDs) > 0 {
		q = q.Where("worker_id NOT IN ?", excludeIDs)
	}
	var rows []workerModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	weekday := date.Weekday()
	out := make([]domain.Worker, 0, len(rows))
	for _, row := range rows {
		worker := toDomainWorker(row)
		if worker.AvailableOn(weekday) {
			out = append(out, worker)
		}
	}
	return out, nil
}

func (r *rosterRepository) AssignWorker(ctx context.Context, assignmentID, workerID uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&assignmentModel{}).
		Where("assignment_id = ? AND status = ? AND cancelled = ?", assignmentID, string(domain.AssignmentStatusOpen), false).
		Updates(map[string]any{
			"worker_id":  workerID,
			"status":     string(domain.AssignmentStatusAssigned),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *rosterRepository) RecordCalloff(ctx context.Context, assignmentID, workerID uuid.UUID, reason string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&assignmentModel{}).
			Where("assignment_id = ?", assignmentID).
			Updates(map[string]any{
				"worker_id":  nil,
				"status":     string(domain.AssignmentStatusOpen),
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return tx.Create(&calloffModel{
			AssignmentID: assignmentID,
			WorkerID:     workerID,
			Reason:       reason,
			RecordedAt:   now,
		}).Error
	})
}
