// Package pipeline runs the fixed sequence of provisioning steps for one
// onboarding, persisting per-step progress so interrupted runs resume where
// they left off.
package pipeline

import (
	"context"
	"fmt"

	"github.com/leanfinance/onboarding-service/internal/model"
)

// skippedKey marks a step result as "already done, nothing executed".
// Reserved: steps must not use it for their own payload.
const skippedKey = "skipped"

// Result is the outcome of one step execution.
type Result struct {
	Success bool
	Data    map[string]interface{}
	Error   string
}

// Skipped reports whether the result marks an idempotent skip.
func (r Result) Skipped() bool {
	v, ok := r.Data[skippedKey]
	b, isBool := v.(bool)
	return ok && isBool && b
}

func failure(format string, args ...interface{}) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Step is one provisioning action. CheckAlreadyDone implements idempotency:
// when it reports true the step is recorded as skipped and Execute never runs.
type Step interface {
	Name() model.StepName
	CheckAlreadyDone(ctx context.Context, pc *Context) (bool, error)
	Execute(ctx context.Context, pc *Context) Result
}

// RunStep runs one step with its idempotency check. A check error fails the
// step like an execution error would.
func RunStep(ctx context.Context, step Step, pc *Context) Result {
	done, err := step.CheckAlreadyDone(ctx, pc)
	if err != nil {
		return failure("idempotency check failed: %v", err)
	}
	if done {
		return Result{Success: true, Data: map[string]interface{}{skippedKey: true}}
	}
	return step.Execute(ctx, pc)
}

// Context is the mutable state shared by the steps of one onboarding run.
// Built from an enriched deal plus the resolved department and technician,
// and filled in as steps execute.
type Context struct {
	DealID         int64
	DealName       string
	CompanyName    string
	ServiceName    string
	HubspotOwnerID *int64

	Company       *model.CompanyInfo
	ContactPerson *model.ContactPersonInfo

	Department model.Department
	Technician *model.TeamMember

	// Filled by the Drive step.
	DriveFolderID    string
	DriveFolderURL   string
	DriveSubfolderID string

	// Filled by the Holded step.
	HoldedContactID  string
	HoldedContactURL string

	HubspotPortalID int64
}

// NewContext builds the step context for one deal. Company ids already
// provisioned in earlier runs are carried over so steps can skip themselves.
func NewContext(deal *model.EnrichedDeal, department model.Department, technician *model.TeamMember, portalID int64) *Context {
	pc := &Context{
		DealID:          deal.DealID,
		DealName:        deal.DealName,
		CompanyName:     deal.CompanyName,
		ServiceName:     deal.ServiceName,
		HubspotOwnerID:  deal.HubspotOwnerID,
		Company:         &deal.Company,
		ContactPerson:   &deal.ContactPerson,
		Department:      department,
		Technician:      technician,
		HubspotPortalID: portalID,
	}
	if deal.Company.HoldedID != "" {
		pc.HoldedContactID = deal.Company.HoldedID
	}
	return pc
}

// DealURL returns the HubSpot UI link for the deal, or "" when the portal id
// is unknown.
func (pc *Context) DealURL() string {
	if pc.HubspotPortalID == 0 || pc.DealID == 0 {
		return ""
	}
	return fmt.Sprintf("https://app.hubspot.com/contacts/%d/deal/%d", pc.HubspotPortalID, pc.DealID)
}
