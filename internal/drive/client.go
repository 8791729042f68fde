// Package drive provides the HTTP client for the Google Drive v3 API,
// used to create client folders on the shared drive.
package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
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
	folderMimeType    = "application/vnd.google-apps.folder"
	maxRequestRetries = 3
)

// Client is the HTTP client for the Google Drive API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient creates a Drive client from configuration.
func NewClient(cfg config.DriveConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
	}
}

// FolderURL returns the Drive UI link for a folder.
func FolderURL(folderID string) string {
	return "https://drive.google.com/drive/folders/" + folderID
}

// FindFolder looks up a non-trashed folder by name under a parent across all
// shared drives. Returns "" when no such folder exists.
func (c *Client) FindFolder(ctx context.Context, name, parentID string) (string, error) {
	loggerCtx := logger.FromContext(ctx)

	safeName := strings.ReplaceAll(name, "'", `\'`)
	query := fmt.Sprintf("name = '%s' and '%s' in parents and mimeType = '%s' and trashed = false",
		safeName, parentID, folderMimeType)

	params := url.Values{}
	params.Set("q", query)
	params.Set("fields", "files(id, name)")
	params.Set("includeItemsFromAllDrives", "true")
	params.Set("supportsAllDrives", "true")
	params.Set("corpora", "allDrives")

	var resp struct {
		Files []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"files"`
	}
	if err := c.doJSON(ctx, "find_folder", http.MethodGet, "/files?"+params.Encode(), nil, &resp); err != nil {
		return "", err
	}
	if len(resp.Files) == 0 {
		return "", nil
	}

	loggerCtx.Debug("Drive folder found",
		zap.String("name", name),
		zap.String("folder_id", resp.Files[0].ID))
	return resp.Files[0].ID, nil
}

// CreateFolder creates a folder under a parent and returns its id.
func (c *Client) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	loggerCtx := logger.FromContext(ctx)

	metadata := map[string]interface{}{
		"name":     name,
		"mimeType": folderMimeType,
		"parents":  []string{parentID},
	}

	params := url.Values{}
	params.Set("supportsAllDrives", "true")
	params.Set("fields", "id, name")

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, "create_folder", http.MethodPost, "/files?"+params.Encode(), metadata, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("%w: drive create_folder: response carries no folder id", apperrors.ErrExternalAPI)
	}

	loggerCtx.Info("Drive folder created",
		zap.String("name", name),
		zap.String("folder_id", resp.ID),
		zap.String("parent_id", parentID))
	return resp.ID, nil
}

// FindOrCreateFolder returns the id of the named folder under a parent,
// creating it when absent.
func (c *Client) FindOrCreateFolder(ctx context.Context, name, parentID string) (string, error) {
	existing, err := c.FindFolder(ctx, name, parentID)
	if err != nil {
		return "", err
	}
	if existing != "" {
		return existing, nil
	}
	return c.CreateFolder(ctx, name, parentID)
}

func (c *Client) doJSON(ctx context.Context, opName, method, path string, reqBody, respBody interface{}) error {
	loggerCtx := logger.FromContext(ctx)

	var encoded []byte
	if reqBody != nil {
		var err error
		encoded, err = json.Marshal(reqBody)
		if err != nil {
			return apperrors.NewFatal(err, "failed to encode drive %s request", opName)
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
			return fmt.Errorf("%w: drive %s: %w", apperrors.ErrExternalAPI, opName, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: drive %s: status %d", apperrors.ErrExternalAPI, opName, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return backoff.Permanent(fmt.Errorf("%w: drive %s: status %d: %s",
				apperrors.ErrExternalAPI, opName, resp.StatusCode, strings.TrimSpace(string(detail))))
		}
		if respBody == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
			return backoff.Permanent(fmt.Errorf("%w: drive %s: decode response: %w", apperrors.ErrExternalAPI, opName, err))
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRequestRetries), ctx)
	notify := func(err error, d time.Duration) {
		loggerCtx.Warn("Retrying Drive request",
			zap.String("operation", opName),
			zap.Error(err),
			zap.Duration("after", d))
	}

	startTime := time.Now()
	err := backoff.RetryNotify(operation, policy, notify)
	observer.ObserveExternalCallDuration("drive", opName, time.Since(startTime), err)
	return err
}
