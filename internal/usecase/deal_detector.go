package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/leanfinance/onboarding-service/internal/apperrors"
	"github.com/leanfinance/onboarding-service/internal/hubspot"
	"github.com/leanfinance/onboarding-service/internal/model"
	"github.com/leanfinance/onboarding-service/internal/observer"
	"github.com/leanfinance/onboarding-service/internal/storage"
	"github.com/leanfinance/onboarding-service/pkg/logger"
	"github.com/leanfinance/onboarding-service/pkg/utils"
)

// CRM is the HubSpot surface the detector needs.
type CRM interface {
	SearchWonDeals(ctx context.Context, closedSince time.Time) ([]hubspot.Object, error)
	GetDeal(ctx context.Context, dealID string) (*hubspot.Object, error)
	GetCompany(ctx context.Context, companyID string) (*hubspot.Object, error)
	GetContact(ctx context.Context, contactID string) (*hubspot.Object, error)
	GetDealCompanyID(ctx context.Context, dealID string) (string, error)
	GetCompanyContactIDs(ctx context.Context, companyID string) ([]string, error)
}

// dealNameSeparators, most to least specific. The first separator producing
// two non-empty halves wins, splitting on its first occurrence so extra
// hyphens stay in the service name.
var dealNameSeparators = []string{" - ", " -", "- ", "-"}

// ParseDealName splits "EMPRESA - SERVICIO" into company and service names.
func ParseDealName(dealName string) (string, string, error) {
	for _, sep := range dealNameSeparators {
		before, after, found := strings.Cut(dealName, sep)
		if !found {
			continue
		}
		company := strings.TrimSpace(before)
		service := strings.TrimSpace(after)
		if company != "" && service != "" {
			return company, service, nil
		}
	}
	return "", "", fmt.Errorf("%w: deal name %q has no company/service separator", apperrors.ErrValidation, dealName)
}

// DealDetector finds new won deals in the CRM and enriches them with company,
// contact and technician data.
type DealDetector struct {
	crm          CRM
	repo         storage.OnboardingRepo
	lookbackDays int
}

// NewDealDetector creates a detector. lookbackDays bounds the close-date
// window of each search.
func NewDealDetector(crm CRM, repo storage.OnboardingRepo, lookbackDays int) *DealDetector {
	return &DealDetector{crm: crm, repo: repo, lookbackDays: lookbackDays}
}

// DetectNewDeals returns enriched deals for every won deal in the lookback
// window that has no onboarding record yet. Deals whose enrichment chain is
// broken (unparseable name, no company, no contacts) are skipped with a
// warning; they are retried on later cycles while inside the window.
func (d *DealDetector) DetectNewDeals(ctx context.Context) ([]model.EnrichedDeal, error) {
	loggerCtx := logger.FromContext(ctx)

	since := utils.Now().AddDate(0, 0, -d.lookbackDays)
	loggerCtx.Info("Deal detection started",
		zap.Time("since", since),
		zap.Int("lookback_days", d.lookbackDays))

	rawDeals, err := d.crm.SearchWonDeals(ctx, since)
	if err != nil {
		return nil, err
	}

	var newDeals []model.EnrichedDeal
	for i := range rawDeals {
		raw := &rawDeals[i]
		dealID, err := strconv.ParseInt(raw.ID, 10, 64)
		if err != nil {
			loggerCtx.Warn("Deal with non-numeric id, skipping", zap.String("id", raw.ID))
			observer.IncDealSkipped("bad_deal_id")
			continue
		}

		dealLogger := loggerCtx.With(
			zap.Int64("deal_id", dealID),
			zap.String("deal_name", raw.Property("dealname")))

		// Idempotency gate: a deal with a record is never re-detected.
		_, err = d.repo.FindByDealID(ctx, dealID)
		if err == nil {
			dealLogger.Debug("Deal already processed")
			observer.IncDealSkipped("already_processed")
			continue
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}

		enriched, err := d.enrichDeal(ctx, dealID, raw)
		if err != nil {
			return nil, err
		}
		if enriched == nil {
			continue // Skip reason already logged and counted
		}

		dealLogger.Info("New deal detected",
			zap.String("company", enriched.CompanyName),
			zap.String("service", enriched.ServiceName),
			zap.Int("technicians", len(enriched.Technicians)),
			zap.Bool("holded_exists", enriched.Company.HoldedID != ""))
		newDeals = append(newDeals, *enriched)
	}

	observer.IncDealsDetected(len(newDeals))
	loggerCtx.Info("Deal detection completed", zap.Int("new_deals", len(newDeals)))
	return newDeals, nil
}

// EnrichDealByID re-enriches one deal from the CRM, used when retrying a
// persisted onboarding. Returns (nil, nil) when the enrichment chain is
// broken, so the caller can leave the record for a later cycle.
func (d *DealDetector) EnrichDealByID(ctx context.Context, dealID int64) (*model.EnrichedDeal, error) {
	raw, err := d.crm.GetDeal(ctx, strconv.FormatInt(dealID, 10))
	if err != nil {
		return nil, err
	}
	return d.enrichDeal(ctx, dealID, raw)
}

// enrichDeal walks the deal's association chain. A broken chain returns
// (nil, nil) after logging the reason; API failures return the error.
func (d *DealDetector) enrichDeal(ctx context.Context, dealID int64, raw *hubspot.Object) (*model.EnrichedDeal, error) {
	loggerCtx := logger.FromContext(ctx).With(zap.Int64("deal_id", dealID))

	dealName := raw.Property("dealname")
	companyName, serviceName, err := ParseDealName(dealName)
	if err != nil {
		loggerCtx.Warn("Deal name unparseable, skipping", zap.String("deal_name", dealName))
		observer.IncDealSkipped("unparseable_name")
		return nil, nil
	}

	companyID, err := d.crm.GetDealCompanyID(ctx, strconv.FormatInt(dealID, 10))
	if err != nil {
		return nil, err
	}
	if companyID == "" {
		loggerCtx.Warn("Deal has no associated company, skipping")
		observer.IncDealSkipped("no_company")
		return nil, nil
	}

	companyObj, err := d.crm.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	company := buildCompanyInfo(companyID, companyObj)

	contactIDs, err := d.crm.GetCompanyContactIDs(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if len(contactIDs) == 0 {
		loggerCtx.Warn("Company has no contacts, skipping", zap.String("company_id", companyID))
		observer.IncDealSkipped("no_contacts")
		return nil, nil
	}
	if len(contactIDs) > 1 {
		loggerCtx.Info("Company has multiple contacts, using the first",
			zap.String("company_id", companyID),
			zap.Int("contact_count", len(contactIDs)))
	}

	contactObj, err := d.crm.GetContact(ctx, contactIDs[0])
	if err != nil {
		return nil, err
	}

	enriched := &model.EnrichedDeal{
		DealID:        dealID,
		DealName:      dealName,
		CompanyName:   companyName,
		ServiceName:   serviceName,
		CloseDate:     parseCloseDate(raw.Property("closedate")),
		Pipeline:      raw.Property("pipeline"),
		DealStage:     raw.Property("dealstage"),
		Company:       company,
		ContactPerson: buildContactPerson(contactIDs[0], contactObj),
		Technicians:   extractTechnicians(contactObj),
	}
	if owner := raw.Property("hubspot_owner_id"); owner != "" {
		if id, err := strconv.ParseInt(owner, 10, 64); err == nil {
			enriched.HubspotOwnerID = &id
		}
	}
	if amount := raw.Property("amount"); amount != "" {
		if v, err := strconv.ParseFloat(amount, 64); err == nil {
			enriched.Amount = &v
		}
	}
	return enriched, nil
}

func buildCompanyInfo(companyID string, obj *hubspot.Object) model.CompanyInfo {
	website := obj.Property("website")
	if website == "" {
		website = obj.Property("domain")
	}
	return model.CompanyInfo{
		CompanyID:      companyID,
		Name:           obj.Property("name"),
		NIF:            obj.Property("nif"),
		Email:          obj.Property("generic_email"),
		Phone:          obj.Property("phone"),
		Website:        website,
		Address:        obj.Property("address"),
		City:           obj.Property("city"),
		State:          obj.Property("state"),
		ZipCode:        obj.Property("zip"),
		Country:        obj.Property("country"),
		HoldedID:       obj.Property("tl_holded_id"),
		DriveFolderID:  obj.Property("drive_folder_id"),
		DriveFolderURL: obj.Property("drive_folder_url"),
	}
}

func buildContactPerson(contactID string, obj *hubspot.Object) model.ContactPersonInfo {
	return model.ContactPersonInfo{
		ContactID: contactID,
		FirstName: obj.Property("firstname"),
		LastName:  obj.Property("lastname"),
		FullName:  obj.Property("nombre_y_apellidos"),
		Email:     obj.Property("email"),
		Phone:     obj.Property("phone"),
		Mobile:    obj.Property("mobilephone"),
		JobTitle:  obj.Property("cargo_en_empresa"),
	}
}

// extractTechnicians collects the non-empty assigned-technician properties
// from a contact, in the fixed property order.
func extractTechnicians(obj *hubspot.Object) []model.TechnicianCandidate {
	var result []model.TechnicianCandidate
	for _, propName := range hubspot.TechnicianProperties {
		if value := obj.Property(propName); value != "" {
			result = append(result, model.TechnicianCandidate{
				HubspotTecID: value,
				PropertyName: propName,
			})
		}
	}
	return result
}

// closeDateLayouts are the ISO-8601 shapes the CRM emits: full timestamps
// with and without offset, and date-only.
var closeDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseCloseDate parses the CRM closedate: millisecond epoch first, ISO-8601
// second, the current time as a last resort.
func parseCloseDate(value string) time.Time {
	if value == "" {
		return utils.Now()
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return utils.UnixToTimeWithMilliseconds(ms)
	}
	for _, layout := range closeDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return utils.Now()
}
