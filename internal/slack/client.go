// Package slack provides the HTTP client for the Slack Web API, used to send
// direct messages to technicians and responsibles.
package slack

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

// Client is the HTTP client for the Slack Web API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	botToken   string
}

// NewClient creates a Slack client from configuration.
func NewClient(cfg config.SlackConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		botToken:   cfg.BotToken,
	}
}

// SendDirectMessage opens (or reuses) the DM conversation with a user and
// posts a message. Returns the message timestamp, which acts as its id.
func (c *Client) SendDirectMessage(ctx context.Context, userID, text string) (string, error) {
	loggerCtx := logger.FromContext(ctx)

	var openResp struct {
		Channel struct {
			ID string `json:"id"`
		} `json:"channel"`
	}
	if err := c.apiCall(ctx, "conversations.open", map[string]string{"users": userID}, &openResp); err != nil {
		return "", err
	}
	if openResp.Channel.ID == "" {
		return "", fmt.Errorf("%w: slack conversations.open: response carries no channel id", apperrors.ErrExternalAPI)
	}

	var msgResp struct {
		TS string `json:"ts"`
	}
	payload := map[string]string{"channel": openResp.Channel.ID, "text": text}
	if err := c.apiCall(ctx, "chat.postMessage", payload, &msgResp); err != nil {
		return "", err
	}

	loggerCtx.Info("Slack direct message sent",
		zap.String("user_id", userID),
		zap.String("ts", msgResp.TS))
	return msgResp.TS, nil
}

// apiCall posts one Slack Web API method. Slack signals application errors
// with HTTP 200 and ok:false, so the envelope is checked before decoding into
// the caller's response struct.
func (c *Client) apiCall(ctx context.Context, method string, reqBody interface{}, respBody interface{}) error {
	loggerCtx := logger.FromContext(ctx)

	encoded, err := json.Marshal(reqBody)
	if err != nil {
		return apperrors.NewFatal(err, "failed to encode slack %s request", method)
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(encoded))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+c.botToken)
		req.Header.Set("Content-Type", "application/json; charset=utf-8")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: slack %s: %w", apperrors.ErrExternalAPI, method, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: slack %s: status %d", apperrors.ErrExternalAPI, method, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("%w: slack %s: status %d", apperrors.ErrExternalAPI, method, resp.StatusCode))
		}

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: slack %s: read response: %w", apperrors.ErrExternalAPI, method, err)
		}
		var envelope struct {
			OK    bool   `json:"ok"`
			Error string `json:"error"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return backoff.Permanent(fmt.Errorf("%w: slack %s: decode response: %w", apperrors.ErrExternalAPI, method, err))
		}
		if !envelope.OK {
			slackErr := envelope.Error
			if slackErr == "" {
				slackErr = "unknown_error"
			}
			return backoff.Permanent(fmt.Errorf("%w: slack %s: %s", apperrors.ErrExternalAPI, method, slackErr))
		}
		if respBody == nil {
			return nil
		}
		if err := json.Unmarshal(raw, respBody); err != nil {
			return backoff.Permanent(fmt.Errorf("%w: slack %s: decode response: %w", apperrors.ErrExternalAPI, method, err))
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRequestRetries), ctx)
	notify := func(err error, d time.Duration) {
		loggerCtx.Warn("Retrying Slack request",
			zap.String("method", method),
			zap.Error(err),
			zap.Duration("after", d))
	}

	startTime := time.Now()
	callErr := backoff.RetryNotify(operation, policy, notify)
	observer.ObserveExternalCallDuration("slack", method, time.Since(startTime), callErr)
	return callErr
}
