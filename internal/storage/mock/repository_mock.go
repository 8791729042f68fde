package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/leanfinance/onboarding-service/internal/model"
)

// OnboardingRepoMock mocks the OnboardingRepo interface
type OnboardingRepoMock struct {
	mock.Mock
}

// Create mocks the Create method
func (m *OnboardingRepoMock) Create(ctx context.Context, record *model.OnboardingRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// FindByDealID mocks the FindByDealID method
func (m *OnboardingRepoMock) FindByDealID(ctx context.Context, dealID int64) (*model.OnboardingRecord, error) {
	args := m.Called(ctx, dealID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OnboardingRecord), args.Error(1)
}

// UpdateStatus mocks the UpdateStatus method
func (m *OnboardingRepoMock) UpdateStatus(ctx context.Context, onboardingID int64, status model.OnboardingStatus, currentStep model.StepName) error {
	args := m.Called(ctx, onboardingID, status, currentStep)
	return args.Error(0)
}

// UpsertStep mocks the UpsertStep method
func (m *OnboardingRepoMock) UpsertStep(ctx context.Context, step model.StepRecord) error {
	args := m.Called(ctx, step)
	return args.Error(0)
}

// ListFailed mocks the ListFailed method
func (m *OnboardingRepoMock) ListFailed(ctx context.Context) ([]model.OnboardingRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.OnboardingRecord), args.Error(1)
}

// ListResumable mocks the ListResumable method
func (m *OnboardingRepoMock) ListResumable(ctx context.Context) ([]model.OnboardingRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.OnboardingRecord), args.Error(1)
}

// Close mocks the Close method
func (m *OnboardingRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
