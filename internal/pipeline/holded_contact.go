package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/leanfinance/onboarding-service/internal/holded"
	"github.com/leanfinance/onboarding-service/internal/model"
	"github.com/leanfinance/onboarding-service/pkg/logger"
)

// countryCodes maps free-text CRM country values to ISO 3166-1 alpha-2 codes.
// Unrecognized values default to ES.
var countryCodes = map[string]string{
	"spain":          "ES",
	"españa":         "ES",
	"portugal":       "PT",
	"france":         "FR",
	"francia":        "FR",
	"germany":        "DE",
	"alemania":       "DE",
	"italy":          "IT",
	"italia":         "IT",
	"united kingdom": "GB",
	"uk":             "GB",
	"united states":  "US",
	"usa":            "US",
}

func countryToCode(country string) string {
	if code, ok := countryCodes[strings.ToLower(strings.TrimSpace(country))]; ok {
		return code
	}
	return "ES"
}

// HoldedContactStep creates the company's client contact in Holded.
//
// Idempotency: skipped when the company already carries a Holded id. After
// creating the contact the step writes tl_holded_id back to the CRM company.
type HoldedContactStep struct {
	holded  ContactCreator
	hubspot CompanyUpdater
}

// NewHoldedContactStep creates the Holded step.
func NewHoldedContactStep(holdedClient ContactCreator, hubspotClient CompanyUpdater) *HoldedContactStep {
	return &HoldedContactStep{holded: holdedClient, hubspot: hubspotClient}
}

func (s *HoldedContactStep) Name() model.StepName {
	return model.StepCreateHoldedContact
}

func (s *HoldedContactStep) CheckAlreadyDone(_ context.Context, pc *Context) (bool, error) {
	if pc.Company != nil && pc.Company.HoldedID != "" {
		pc.HoldedContactID = pc.Company.HoldedID
		pc.HoldedContactURL = holded.ContactURL(pc.Company.HoldedID)
		return true, nil
	}
	return false, nil
}

func (s *HoldedContactStep) Execute(ctx context.Context, pc *Context) Result {
	loggerCtx := logger.FromContext(ctx).With(
		zap.Int64("deal_id", pc.DealID),
		zap.String("company", pc.CompanyName),
	)

	if pc.Company == nil {
		return failure("no company data available")
	}

	contactID, err := s.holded.CreateContact(ctx, buildContactPayload(pc))
	if err != nil {
		return failure("failed to create contact: %v", err)
	}

	pc.HoldedContactID = contactID
	pc.HoldedContactURL = holded.ContactURL(contactID)

	if err := s.hubspot.UpdateCompany(ctx, pc.Company.CompanyID, map[string]string{"tl_holded_id": contactID}); err != nil {
		return failure("failed to write holded id to company: %v", err)
	}
	pc.Company.HoldedID = contactID

	loggerCtx.Info("Holded contact created",
		zap.String("holded_id", contactID),
		zap.String("company_id", pc.Company.CompanyID))

	return Result{
		Success: true,
		Data: map[string]interface{}{
			"holded_contact_id":  contactID,
			"holded_contact_url": pc.HoldedContactURL,
		},
	}
}

// buildContactPayload maps CRM company and contact data to the Holded
// create-contact body. The contact email falls back to the contact person's
// when the company carries none.
func buildContactPayload(pc *Context) holded.ContactPayload {
	company := pc.Company

	email := company.Email
	if email == "" && pc.ContactPerson != nil {
		email = pc.ContactPerson.Email
	}

	payload := holded.ContactPayload{
		Name:  company.Name,
		Type:  "client",
		Code:  company.NIF,
		Email: email,
		Phone: company.Phone,
		BillAddress: &holded.BillAddress{
			Address:     company.Address,
			City:        company.City,
			PostalCode:  company.ZipCode,
			Province:    company.State,
			Country:     company.Country,
			CountryCode: countryToCode(company.Country),
		},
	}

	if company.Website != "" {
		payload.SocialNetworks = &holded.SocialNetworks{Website: company.Website}
	}

	if pc.ContactPerson != nil && pc.ContactPerson.ContactID != "" {
		cp := pc.ContactPerson
		phone := cp.Phone
		if phone == "" {
			phone = cp.Mobile
		}
		payload.ContactPersons = []holded.ContactPerson{{
			Name:  cp.DisplayName(),
			Email: cp.Email,
			Phone: phone,
			Job:   cp.JobTitle,
		}}
	}

	return payload
}
