package usecase

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/leanfinance/onboarding-service/internal/holded"
	"github.com/leanfinance/onboarding-service/internal/hubspot"
	"github.com/leanfinance/onboarding-service/internal/model"
)

// CRMMock mocks the CRM interface.
type CRMMock struct {
	mock.Mock
}

func (m *CRMMock) SearchWonDeals(ctx context.Context, closedSince time.Time) ([]hubspot.Object, error) {
	args := m.Called(ctx, closedSince)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]hubspot.Object), args.Error(1)
}

func (m *CRMMock) GetDeal(ctx context.Context, dealID string) (*hubspot.Object, error) {
	args := m.Called(ctx, dealID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hubspot.Object), args.Error(1)
}

func (m *CRMMock) GetCompany(ctx context.Context, companyID string) (*hubspot.Object, error) {
	args := m.Called(ctx, companyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hubspot.Object), args.Error(1)
}

func (m *CRMMock) GetContact(ctx context.Context, contactID string) (*hubspot.Object, error) {
	args := m.Called(ctx, contactID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hubspot.Object), args.Error(1)
}

func (m *CRMMock) GetDealCompanyID(ctx context.Context, dealID string) (string, error) {
	args := m.Called(ctx, dealID)
	return args.String(0), args.Error(1)
}

func (m *CRMMock) GetCompanyContactIDs(ctx context.Context, companyID string) ([]string, error) {
	args := m.Called(ctx, companyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *CRMMock) UpdateCompany(ctx context.Context, companyID string, properties map[string]string) error {
	args := m.Called(ctx, companyID, properties)
	return args.Error(0)
}

// DirectoryMock mocks the Directory interface.
type DirectoryMock struct {
	mock.Mock
}

func (m *DirectoryMock) FetchTeamMembers(ctx context.Context) ([]model.TeamMember, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.TeamMember), args.Error(1)
}

func (m *DirectoryMock) FetchServices(ctx context.Context) ([]model.ServiceEntry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ServiceEntry), args.Error(1)
}

// MessengerMock mocks pipeline.Messenger.
type MessengerMock struct {
	mock.Mock
}

func (m *MessengerMock) SendDirectMessage(ctx context.Context, userID, text string) (string, error) {
	args := m.Called(ctx, userID, text)
	return args.String(0), args.Error(1)
}

// DriveAPIMock mocks pipeline.DriveAPI.
type DriveAPIMock struct {
	mock.Mock
}

func (m *DriveAPIMock) FindFolder(ctx context.Context, name, parentID string) (string, error) {
	args := m.Called(ctx, name, parentID)
	return args.String(0), args.Error(1)
}

func (m *DriveAPIMock) FindOrCreateFolder(ctx context.Context, name, parentID string) (string, error) {
	args := m.Called(ctx, name, parentID)
	return args.String(0), args.Error(1)
}

// ContactCreatorMock mocks pipeline.ContactCreator.
type ContactCreatorMock struct {
	mock.Mock
}

func (m *ContactCreatorMock) CreateContact(ctx context.Context, payload holded.ContactPayload) (string, error) {
	args := m.Called(ctx, payload)
	return args.String(0), args.Error(1)
}

// SenderMock mocks mailer.Sender.
type SenderMock struct {
	mock.Mock
}

func (m *SenderMock) Send(ctx context.Context, to, subject, htmlBody string) (string, error) {
	args := m.Called(ctx, to, subject, htmlBody)
	return args.String(0), args.Error(1)
}
