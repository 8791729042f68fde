// Package sheets reads the "matriz-onboardings" Google Sheet: the team
// directory ("usuarios") and the service-to-department mapping ("servicios").
// Results are cached in memory because the sheet changes rarely.
package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/leanfinance/onboarding-service/internal/apperrors"
	"github.com/leanfinance/onboarding-service/internal/config"
	"github.com/leanfinance/onboarding-service/internal/model"
	"github.com/leanfinance/onboarding-service/internal/observer"
	"github.com/leanfinance/onboarding-service/pkg/logger"
)

const (
	usersRange    = "usuarios!A:G"
	servicesRange = "servicios!A:C"

	maxRequestRetries = 3
)

// Client reads the onboarding spreadsheet with a TTL cache per range.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	token         string
	spreadsheetID string
	cacheTTL      time.Duration

	mu               sync.Mutex
	membersCache     []model.TeamMember
	membersCachedAt  time.Time
	servicesCache    []model.ServiceEntry
	servicesCachedAt time.Time
}

// NewClient creates a Sheets client from configuration.
func NewClient(cfg config.SheetsConfig) *Client {
	return &Client{
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		token:         cfg.Token,
		spreadsheetID: cfg.SpreadsheetID,
		cacheTTL:      cfg.CacheTTL,
	}
}

// FetchTeamMembers returns the parsed "usuarios" rows, served from cache
// while fresh.
func (c *Client) FetchTeamMembers(ctx context.Context) ([]model.TeamMember, error) {
	c.mu.Lock()
	if c.membersCache != nil && time.Since(c.membersCachedAt) < c.cacheTTL {
		cached := c.membersCache
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	rows, err := c.readRange(ctx, "read_users", usersRange)
	if err != nil {
		return nil, err
	}
	members := parseTeamMembers(ctx, rows)

	c.mu.Lock()
	c.membersCache = members
	c.membersCachedAt = time.Now()
	c.mu.Unlock()

	logger.FromContext(ctx).Info("Team members loaded from sheet", zap.Int("count", len(members)))
	return members, nil
}

// FetchServices returns the parsed "servicios" rows, served from cache while
// fresh.
func (c *Client) FetchServices(ctx context.Context) ([]model.ServiceEntry, error) {
	c.mu.Lock()
	if c.servicesCache != nil && time.Since(c.servicesCachedAt) < c.cacheTTL {
		cached := c.servicesCache
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	rows, err := c.readRange(ctx, "read_services", servicesRange)
	if err != nil {
		return nil, err
	}
	services := parseServices(ctx, rows)

	c.mu.Lock()
	c.servicesCache = services
	c.servicesCachedAt = time.Now()
	c.mu.Unlock()

	logger.FromContext(ctx).Info("Services loaded from sheet", zap.Int("count", len(services)))
	return services, nil
}

// InvalidateCache forces a reload on the next fetch.
func (c *Client) InvalidateCache() {
	c.mu.Lock()
	c.membersCache = nil
	c.servicesCache = nil
	c.mu.Unlock()
}

func (c *Client) readRange(ctx context.Context, opName, sheetRange string) ([][]string, error) {
	loggerCtx := logger.FromContext(ctx)

	reqURL := fmt.Sprintf("%s/%s/values/%s",
		c.baseURL, url.PathEscape(c.spreadsheetID), url.PathEscape(sheetRange))

	var rows [][]string
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+c.token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: sheets %s: %w", apperrors.ErrExternalAPI, opName, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: sheets %s: status %d", apperrors.ErrExternalAPI, opName, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return backoff.Permanent(fmt.Errorf("%w: sheets %s: status %d: %s",
				apperrors.ErrExternalAPI, opName, resp.StatusCode, strings.TrimSpace(string(detail))))
		}

		var payload struct {
			Values [][]string `json:"values"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return backoff.Permanent(fmt.Errorf("%w: sheets %s: decode response: %w", apperrors.ErrExternalAPI, opName, err))
		}
		rows = payload.Values
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRequestRetries), ctx)
	notify := func(err error, d time.Duration) {
		loggerCtx.Warn("Retrying Sheets request",
			zap.String("operation", opName),
			zap.Error(err),
			zap.Duration("after", d))
	}

	startTime := time.Now()
	err := backoff.RetryNotify(operation, policy, notify)
	observer.ObserveExternalCallDuration("sheets", opName, time.Since(startTime), err)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// parseTeamMembers parses "usuarios" rows. The first row is the header. Rows
// with fewer than 6 columns or an unknown department code are skipped with a
// warning. Column G is a TRUE/FALSE responsible checkbox.
func parseTeamMembers(ctx context.Context, rows [][]string) []model.TeamMember {
	loggerCtx := logger.FromContext(ctx)
	if len(rows) == 0 {
		return []model.TeamMember{}
	}

	members := make([]model.TeamMember, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rowNumber := i + 2
		if len(row) < 6 {
			loggerCtx.Warn("Users row too short, skipping",
				zap.Int("row_number", rowNumber),
				zap.Int("columns", len(row)))
			continue
		}

		department := model.Department(strings.ToUpper(strings.TrimSpace(row[5])))
		if !department.Valid() {
			loggerCtx.Warn("Users row with unknown department, skipping",
				zap.Int("row_number", rowNumber),
				zap.String("department", string(department)))
			continue
		}

		isResponsible := len(row) >= 7 && strings.EqualFold(strings.TrimSpace(row[6]), "TRUE")

		members = append(members, model.TeamMember{
			HubspotTecID:  strings.TrimSpace(row[0]),
			SlackID:       strings.TrimSpace(row[1]),
			Email:         strings.TrimSpace(row[2]),
			FullName:      strings.TrimSpace(row[3]),
			ShortName:     strings.TrimSpace(row[4]),
			Department:    department,
			IsResponsible: isResponsible,
		})
	}
	return members
}

// parseServices parses "servicios" rows. The first row is the header. Rows
// with an empty name are skipped; an unknown department code is logged and
// left empty so the entry still counts as "found, unassigned".
func parseServices(ctx context.Context, rows [][]string) []model.ServiceEntry {
	loggerCtx := logger.FromContext(ctx)
	if len(rows) == 0 {
		return []model.ServiceEntry{}
	}

	services := make([]model.ServiceEntry, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rowNumber := i + 2
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}

		entry := model.ServiceEntry{Name: strings.TrimSpace(row[0])}
		if len(row) > 1 {
			entry.Tags = strings.TrimSpace(row[1])
		}
		if len(row) > 2 && strings.TrimSpace(row[2]) != "" {
			department := model.Department(strings.ToUpper(strings.TrimSpace(row[2])))
			if department.Valid() {
				entry.Department = department
			} else {
				loggerCtx.Warn("Services row with unknown department",
					zap.Int("row_number", rowNumber),
					zap.String("service", entry.Name),
					zap.String("department", string(department)))
			}
		}
		services = append(services, entry)
	}
	return services
}
