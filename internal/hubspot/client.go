// Package hubspot provides the HTTP client for the HubSpot CRM v3/v4 API:
// deal search, object retrieval, association traversal and property writes.
package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/leanfinance/onboarding-service/internal/apperrors"
	"github.com/leanfinance/onboarding-service/internal/config"
	"github.com/leanfinance/onboarding-service/internal/observer"
	"github.com/leanfinance/onboarding-service/pkg/logger"
)

const (
	searchPageLimit   = 100
	maxRequestRetries = 3
)

// DealProperties are the deal properties requested on every deal read.
var DealProperties = []string{
	"dealname",
	"amount",
	"hubspot_owner_id",
	"pipeline",
	"dealstage",
	"closedate",
}

// CompanyProperties are the company properties requested on every company read.
var CompanyProperties = []string{
	"name",
	"nif",
	"generic_email",
	"phone",
	"address",
	"city",
	"state",
	"zip",
	"country",
	"website",
	"domain",
	"tl_holded_id",
	"drive_folder_id",
	"drive_folder_url",
}

// TechnicianProperties are the assigned-technician contact properties, checked
// in this order when collecting technician candidates.
var TechnicianProperties = []string{
	"tecnico_enisa_asignado",
	"tecnico_subvencion_asignado",
	"cfo_asignado",
	"cfo_asignado_ii",
	"asesor_fiscal_asignado",
	"administrativo_asignado",
	"asesor_laboral_asignado",
}

// ContactProperties are the contact properties requested on every contact read.
var ContactProperties = append([]string{
	"firstname",
	"lastname",
	"nombre_y_apellidos",
	"email",
	"phone",
	"mobilephone",
	"cargo_en_empresa",
}, TechnicianProperties...)

// Object is a generic HubSpot CRM object: an id plus a flat property map.
type Object struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

// Property returns a property value, trimmed; "" when absent.
func (o *Object) Property(name string) string {
	if o == nil {
		return ""
	}
	return strings.TrimSpace(o.Properties[name])
}

type searchRequest struct {
	FilterGroups []filterGroup `json:"filterGroups"`
	Properties   []string      `json:"properties"`
	Limit        int           `json:"limit"`
	After        string        `json:"after,omitempty"`
}

type filterGroup struct {
	Filters []filter `json:"filters"`
}

type filter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value"`
}

type searchResponse struct {
	Total   int      `json:"total"`
	Results []Object `json:"results"`
	Paging  *struct {
		Next struct {
			After string `json:"after"`
		} `json:"next"`
	} `json:"paging,omitempty"`
}

type associationsResponse struct {
	Results []struct {
		ToObjectID int64 `json:"toObjectId"`
	} `json:"results"`
}

// Client is the HTTP client for the HubSpot CRM API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	pipelineID string
	wonStageID string
}

// NewClient creates a HubSpot client from configuration.
func NewClient(cfg config.HubSpotConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		pipelineID: cfg.PipelineID,
		wonStageID: cfg.WonStageID,
	}
}

// SearchWonDeals returns all deals in the configured pipeline that reached the
// won stage with a close date at or after closedSince. Pages through the
// search API until the cursor is exhausted.
func (c *Client) SearchWonDeals(ctx context.Context, closedSince time.Time) ([]Object, error) {
	loggerCtx := logger.FromContext(ctx)

	reqBody := searchRequest{
		FilterGroups: []filterGroup{{
			Filters: []filter{
				{PropertyName: "pipeline", Operator: "EQ", Value: c.pipelineID},
				{PropertyName: "dealstage", Operator: "EQ", Value: c.wonStageID},
				{PropertyName: "closedate", Operator: "GTE", Value: strconv.FormatInt(closedSince.UnixMilli(), 10)},
			},
		}},
		Properties: DealProperties,
		Limit:      searchPageLimit,
	}

	var deals []Object
	for {
		var page searchResponse
		if err := c.doJSON(ctx, "search_deals", http.MethodPost, "/crm/v3/objects/deals/search", reqBody, &page); err != nil {
			return nil, err
		}
		deals = append(deals, page.Results...)

		if page.Paging == nil || page.Paging.Next.After == "" {
			break
		}
		reqBody.After = page.Paging.Next.After
	}

	loggerCtx.Debug("Won-deal search finished",
		zap.Int("deals", len(deals)),
		zap.Time("closed_since", closedSince))
	return deals, nil
}

// GetDeal fetches one deal with the standard deal property set.
func (c *Client) GetDeal(ctx context.Context, dealID string) (*Object, error) {
	return c.getObject(ctx, "get_deal", "deals", dealID, DealProperties)
}

// GetCompany fetches one company with the standard company property set.
func (c *Client) GetCompany(ctx context.Context, companyID string) (*Object, error) {
	return c.getObject(ctx, "get_company", "companies", companyID, CompanyProperties)
}

// GetContact fetches one contact with the standard contact property set.
func (c *Client) GetContact(ctx context.Context, contactID string) (*Object, error) {
	return c.getObject(ctx, "get_contact", "contacts", contactID, ContactProperties)
}

func (c *Client) getObject(ctx context.Context, opName, objectType, id string, properties []string) (*Object, error) {
	path := fmt.Sprintf("/crm/v3/objects/%s/%s?properties=%s",
		objectType, url.PathEscape(id), strings.Join(properties, ","))

	var obj Object
	if err := c.doJSON(ctx, opName, http.MethodGet, path, nil, &obj); err != nil {
		return nil, err
	}
	return &obj, nil
}

// GetDealCompanyID returns the id of the first company associated with a deal,
// or "" when the deal has no company association.
func (c *Client) GetDealCompanyID(ctx context.Context, dealID string) (string, error) {
	path := fmt.Sprintf("/crm/v4/objects/deals/%s/associations/companies", url.PathEscape(dealID))

	var assoc associationsResponse
	if err := c.doJSON(ctx, "deal_company_association", http.MethodGet, path, nil, &assoc); err != nil {
		return "", err
	}
	if len(assoc.Results) == 0 {
		return "", nil
	}
	return strconv.FormatInt(assoc.Results[0].ToObjectID, 10), nil
}

// GetCompanyContactIDs returns the ids of all contacts associated with a
// company, in association order.
func (c *Client) GetCompanyContactIDs(ctx context.Context, companyID string) ([]string, error) {
	path := fmt.Sprintf("/crm/v4/objects/companies/%s/associations/contacts", url.PathEscape(companyID))

	var assoc associationsResponse
	if err := c.doJSON(ctx, "company_contact_associations", http.MethodGet, path, nil, &assoc); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(assoc.Results))
	for _, r := range assoc.Results {
		ids = append(ids, strconv.FormatInt(r.ToObjectID, 10))
	}
	return ids, nil
}

// UpdateCompany patches company properties.
func (c *Client) UpdateCompany(ctx context.Context, companyID string, properties map[string]string) error {
	path := fmt.Sprintf("/crm/v3/objects/companies/%s", url.PathEscape(companyID))
	body := map[string]map[string]string{"properties": properties}
	return c.doJSON(ctx, "update_company", http.MethodPatch, path, body, nil)
}

// doJSON performs one API call with retries. Responses with status 429 or 5xx
// are retried up to maxRequestRetries times, honoring Retry-After; other
// non-2xx statuses fail immediately.
func (c *Client) doJSON(ctx context.Context, opName, method, path string, reqBody, respBody interface{}) error {
	loggerCtx := logger.FromContext(ctx)

	var encoded []byte
	if reqBody != nil {
		var err error
		encoded, err = json.Marshal(reqBody)
		if err != nil {
			return apperrors.NewFatal(err, "failed to encode hubspot %s request", opName)
		}
	}

	operation := func() error {
		var bodyReader io.Reader
		if encoded != nil {
			bodyReader = bytes.NewReader(encoded)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: hubspot %s: %w", apperrors.ErrExternalAPI, opName, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if respBody == nil {
				return nil
			}
			if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
				return backoff.Permanent(fmt.Errorf("%w: hubspot %s: decode response: %w", apperrors.ErrExternalAPI, opName, err))
			}
			return nil
		case resp.StatusCode == http.StatusTooManyRequests:
			wait := retryAfter(resp)
			loggerCtx.Warn("HubSpot rate limited",
				zap.String("operation", opName),
				zap.Duration("retry_after", wait))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("%w: hubspot %s", apperrors.ErrRateLimited, opName)
		case resp.StatusCode >= 500:
			return fmt.Errorf("%w: hubspot %s: status %d", apperrors.ErrExternalAPI, opName, resp.StatusCode)
		default:
			detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return backoff.Permanent(fmt.Errorf("%w: hubspot %s: status %d: %s",
				apperrors.ErrExternalAPI, opName, resp.StatusCode, strings.TrimSpace(string(detail))))
		}
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRequestRetries), ctx)
	notify := func(err error, d time.Duration) {
		loggerCtx.Warn("Retrying HubSpot request",
			zap.String("operation", opName),
			zap.Error(err),
			zap.Duration("after", d))
	}

	startTime := time.Now()
	err := backoff.RetryNotify(operation, policy, notify)
	observer.ObserveExternalCallDuration("hubspot", opName, time.Since(startTime), err)
	return err
}

// retryAfter parses the Retry-After header, defaulting to 10s.
func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 10 * time.Second
}
