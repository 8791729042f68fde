// Package holded provides the HTTP client for the Holded invoicing API,
// used to create client contacts.
package holded

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/leanfinance/onboarding-service/internal/apperrors"
	"github.com/leanfinance/onboarding-service/internal/config"
	"github.com/leanfinance/onboarding-service/internal/observer"
	"github.com/leanfinance/onboarding-service/pkg/logger"
)

const maxRequestRetries = 3

// BillAddress is the billing address block of a contact payload. Country is
// the free-text value from the CRM; CountryCode the derived ISO code.
type BillAddress struct {
	Address     string `json:"address"`
	City        string `json:"city"`
	PostalCode  string `json:"postalCode"`
	Province    string `json:"province"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
}

// SocialNetworks carries the contact's web presence.
type SocialNetworks struct {
	Website string `json:"website,omitempty"`
}

// ContactPerson is one person attached to a contact.
type ContactPerson struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Job   string `json:"cargo,omitempty"`
}

// ContactPayload is the create-contact request body.
type ContactPayload struct {
	Name           string          `json:"name"`
	Type           string          `json:"type"`
	Code           string          `json:"code,omitempty"`
	Email          string          `json:"email,omitempty"`
	Phone          string          `json:"phone,omitempty"`
	BillAddress    *BillAddress    `json:"billAddress,omitempty"`
	SocialNetworks *SocialNetworks `json:"socialNetworks,omitempty"`
	ContactPersons []ContactPerson `json:"contactPersons,omitempty"`
}

// Client is the HTTP client for the Holded invoicing API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates a Holded client from configuration.
func NewClient(cfg config.HoldedConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
	}
}

// ContactURL returns the Holded UI link for a contact.
func ContactURL(contactID string) string {
	return "https://app.holded.com/contacts/" + contactID
}

// CreateContact creates a contact and returns its Holded id.
func (c *Client) CreateContact(ctx context.Context, payload ContactPayload) (string, error) {
	loggerCtx := logger.FromContext(ctx)

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, "create_contact", http.MethodPost, "/contacts", payload, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("%w: holded create_contact: response carries no contact id", apperrors.ErrExternalAPI)
	}

	loggerCtx.Info("Holded contact created",
		zap.String("contact_id", resp.ID),
		zap.String("name", payload.Name))
	return resp.ID, nil
}

func (c *Client) doJSON(ctx context.Context, opName, method, path string, reqBody, respBody interface{}) error {
	loggerCtx := logger.FromContext(ctx)

	var encoded []byte
	if reqBody != nil {
		var err error
		encoded, err = json.Marshal(reqBody)
		if err != nil {
			return apperrors.NewFatal(err, "failed to encode holded %s request", opName)
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
		req.Header.Set("key", c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: holded %s: %w", apperrors.ErrExternalAPI, opName, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: holded %s: status %d", apperrors.ErrExternalAPI, opName, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return backoff.Permanent(fmt.Errorf("%w: holded %s: status %d: %s",
				apperrors.ErrExternalAPI, opName, resp.StatusCode, strings.TrimSpace(string(detail))))
		}
		if respBody == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
			return backoff.Permanent(fmt.Errorf("%w: holded %s: decode response: %w", apperrors.ErrExternalAPI, opName, err))
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRequestRetries), ctx)
	notify := func(err error, d time.Duration) {
		loggerCtx.Warn("Retrying Holded request",
			zap.String("operation", opName),
			zap.Error(err),
			zap.Duration("after", d))
	}

	startTime := time.Now()
	err := backoff.RetryNotify(operation, policy, notify)
	observer.ObserveExternalCallDuration("holded", opName, time.Since(startTime), err)
	return err
}
