package storage

import (
	"context"

	"github.com/leanfinance/onboarding-service/internal/model"
)

// OnboardingRepo defines onboarding storage operations
type OnboardingRepo interface {
	// Create inserts a new onboarding record together with its technician
	// rows, assigning record.ID.
	Create(ctx context.Context, record *model.OnboardingRecord) error
	// FindByDealID returns the record for an external deal id, with its
	// technicians loaded. Returns apperrors.ErrNotFound when absent.
	FindByDealID(ctx context.Context, dealID int64) (*model.OnboardingRecord, error)
	// UpdateStatus writes status and current_step, refreshing updated_at.
	// An empty currentStep clears the pointer.
	UpdateStatus(ctx context.Context, onboardingID int64, status model.OnboardingStatus, currentStep model.StepName) error
	// UpsertStep inserts or updates the step row keyed on
	// (onboarding_id, step_name).
	UpsertStep(ctx context.Context, step model.StepRecord) error
	// ListFailed returns records in failed status, oldest first.
	ListFailed(ctx context.Context) ([]model.OnboardingRecord, error)
	// ListResumable returns records in pending, waiting_technician or
	// in_progress status, oldest first.
	ListResumable(ctx context.Context) ([]model.OnboardingRecord, error)
	Close(ctx context.Context) error
}
