package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/leanfinance/onboarding-service/internal/apperrors"
	"github.com/leanfinance/onboarding-service/internal/model"
	"github.com/leanfinance/onboarding-service/internal/observer"
	"github.com/leanfinance/onboarding-service/pkg/logger"
	"github.com/leanfinance/onboarding-service/pkg/utils"
)

// --- Onboarding Repository Methods ---

// Create inserts a new onboarding record and its technician rows in one
// transaction. record.ID is populated on success.
func (r *PostgresRepo) Create(ctx context.Context, record *model.OnboardingRecord) error {
	loggerCtx := logger.FromContext(ctx)

	operation := func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Omit("Technicians", "Steps").Create(record).Error; err != nil {
				return checkConstraintViolation(err)
			}
			for i := range record.Technicians {
				record.Technicians[i].OnboardingID = record.ID
				if err := tx.Create(&record.Technicians[i]).Error; err != nil {
					return checkConstraintViolation(err)
				}
			}
			return nil
		})
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "CreateOnboarding", operation)
	observer.ObserveDbOperationDuration("create", "onboardings", time.Since(startTime), commitErr)

	if commitErr != nil {
		loggerCtx.Error("Failed to create onboarding after retries",
			zap.Int64("deal_id", record.DealID),
			zap.Error(commitErr))
		return commitErr // Already wrapped
	}

	loggerCtx.Info("Onboarding created",
		zap.Int64("onboarding_id", record.ID),
		zap.Int64("deal_id", record.DealID))
	return nil
}

// FindByDealID returns the record for an external deal id with its
// technicians preloaded, or apperrors.ErrNotFound.
func (r *PostgresRepo) FindByDealID(ctx context.Context, dealID int64) (*model.OnboardingRecord, error) {
	loggerCtx := logger.FromContext(ctx)

	var record model.OnboardingRecord
	operation := func() error {
		result := r.db.WithContext(ctx).
			Preload("Technicians").
			Preload("Steps").
			Where("deal_id = ?", dealID).
			First(&record)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindOnboardingByDealID", operation)
	observer.ObserveDbOperationDuration("find_by_deal_id", "onboardings", time.Since(startTime), findErr)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		loggerCtx.Error("Failed to find onboarding by deal_id after retries",
			zap.Int64("deal_id", dealID),
			zap.Error(findErr))
		return nil, findErr // Already wrapped
	}
	return &record, nil
}

// UpdateStatus writes status and current_step for a record, refreshing
// updated_at. An empty currentStep clears the column.
func (r *PostgresRepo) UpdateStatus(ctx context.Context, onboardingID int64, status model.OnboardingStatus, currentStep model.StepName) error {
	loggerCtx := logger.FromContext(ctx)

	if !status.Valid() {
		return fmt.Errorf("%w: unknown onboarding status %q", apperrors.ErrValidation, status)
	}

	updates := map[string]interface{}{
		"status":       status,
		"current_step": string(currentStep),
		"updated_at":   utils.Now(),
	}

	operation := func() error {
		result := r.db.WithContext(ctx).
			Model(&model.OnboardingRecord{}).
			Where("id = ?", onboardingID).
			Updates(updates)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: onboarding %d", apperrors.ErrNotFound, onboardingID)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "UpdateOnboardingStatus", operation)
	observer.ObserveDbOperationDuration("update_status", "onboardings", time.Since(startTime), commitErr)

	if commitErr != nil {
		loggerCtx.Error("Failed to update onboarding status after retries",
			zap.Int64("onboarding_id", onboardingID),
			zap.String("status", string(status)),
			zap.Error(commitErr))
		return commitErr // Already wrapped
	}
	return nil
}

// UpsertStep inserts or updates a step row keyed on (onboarding_id, step_name).
func (r *PostgresRepo) UpsertStep(ctx context.Context, step model.StepRecord) error {
	loggerCtx := logger.FromContext(ctx)

	if !step.Status.Valid() {
		return fmt.Errorf("%w: unknown step status %q", apperrors.ErrValidation, step.Status)
	}

	operation := func() error {
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "onboarding_id"}, {Name: "step_name"}},
			DoUpdates: clause.AssignmentColumns(model.StepUpdateColumns()),
		}).Create(&step)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "UpsertOnboardingStep", operation)
	observer.ObserveDbOperationDuration("upsert", "onboarding_steps", time.Since(startTime), commitErr)

	if commitErr != nil {
		loggerCtx.Error("Failed to upsert onboarding step after retries",
			zap.Int64("onboarding_id", step.OnboardingID),
			zap.String("step", string(step.StepName)),
			zap.Error(commitErr))
		return commitErr // Already wrapped
	}
	return nil
}

// ListFailed returns onboardings in failed status, oldest first.
func (r *PostgresRepo) ListFailed(ctx context.Context) ([]model.OnboardingRecord, error) {
	return r.listByStatus(ctx, "list_failed", model.StatusFailed)
}

// ListResumable returns onboardings eligible for a retry cycle: pending,
// waiting for a technician, or left in progress by an interrupted run.
func (r *PostgresRepo) ListResumable(ctx context.Context) ([]model.OnboardingRecord, error) {
	return r.listByStatus(ctx, "list_resumable",
		model.StatusPending, model.StatusWaitingTechnician, model.StatusInProgress)
}

func (r *PostgresRepo) listByStatus(ctx context.Context, opName string, statuses ...model.OnboardingStatus) ([]model.OnboardingRecord, error) {
	loggerCtx := logger.FromContext(ctx)

	var records []model.OnboardingRecord
	operation := func() error {
		result := r.db.WithContext(ctx).
			Preload("Technicians").
			Where("status IN ?", statuses).
			Order("created_at ASC").
			Find(&records)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil // Success, even if no records found
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, opName, operation)
	observer.ObserveDbOperationDuration(opName, "onboardings", time.Since(startTime), findErr)

	if findErr != nil {
		loggerCtx.Error("Failed to list onboardings by status after retries",
			zap.String("operation", opName),
			zap.Error(findErr))
		return nil, findErr // Already wrapped
	}
	if records == nil { // Ensure empty slice is returned, not nil
		return []model.OnboardingRecord{}, nil
	}
	return records, nil
}
