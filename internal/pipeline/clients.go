package pipeline

import (
	"context"

	"github.com/leanfinance/onboarding-service/internal/holded"
)

// DriveAPI is the Drive surface the steps need.
type DriveAPI interface {
	FindFolder(ctx context.Context, name, parentID string) (string, error)
	FindOrCreateFolder(ctx context.Context, name, parentID string) (string, error)
}

// CompanyUpdater writes properties back to the CRM company.
type CompanyUpdater interface {
	UpdateCompany(ctx context.Context, companyID string, properties map[string]string) error
}

// ContactCreator creates contacts in the invoicing system.
type ContactCreator interface {
	CreateContact(ctx context.Context, payload holded.ContactPayload) (string, error)
}

// Messenger sends direct messages to team members.
type Messenger interface {
	SendDirectMessage(ctx context.Context, userID, text string) (string, error)
}
