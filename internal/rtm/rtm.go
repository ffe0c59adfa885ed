// Package rtm uploads a zipped JUnit result set to the test-management
// service and waits for the import to finish.
package rtm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/herald/internal/constants"
	heralderrors "github.com/mrz1836/herald/internal/errors"
	"github.com/mrz1836/herald/internal/httpx"
	"github.com/mrz1836/herald/internal/retry"
)

const adapterName = "rtm"

const (
	importPath = "/api/v1/automation/import-test-results"
	statusPath = "/api/v1/automation/import-status/"
)

// Import states reported by the service.
const (
	StatusImporting = "IMPORTING"
	StatusFailed    = "FAILED"
)

// Config holds the RTM connection and import settings.
type Config struct {
	BaseURL    string
	Token      string
	ProjectKey string
	JobURL     string
	// Fields are extra issue fields set on the test execution.
	Fields map[string]string
	// PollInterval is the wait between import-status checks.
	PollInterval time.Duration
}

// ImportStatus is the service's view of one import task.
type ImportStatus struct {
	TaskID           string `json:"-"`
	Status           string `json:"status"`
	Progress         any    `json:"progress,omitempty"`
	TestExecutionKey string `json:"testExecutionKey,omitempty"`
	Message          string `json:"message,omitempty"`
}

// Client talks to the RTM automation API.
type Client struct {
	cfg    Config
	api    *httpx.Client
	policy retry.Policy
	logger zerolog.Logger
}

// New returns a client. opts are applied to the underlying HTTP client.
func New(cfg Config, policy retry.Policy, logger zerolog.Logger, opts ...httpx.Option) *Client {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = constants.DefaultImportPollInterval
	}
	base := []httpx.Option{httpx.WithAuth(httpx.BearerToken(cfg.Token))}
	return &Client{
		cfg:    cfg,
		api:    httpx.New(cfg.BaseURL, append(base, opts...)...),
		policy: policy,
		logger: logger.With().Str("adapter", adapterName).Logger(),
	}
}

// ExecutionFields returns the testExecutionFields payload for issueKey.
func (c *Client) ExecutionFields(issueKey string) (string, error) {
	fields := map[string]string{
		"description": "Automated test execution " + issueKey + " uploaded by herald.",
	}
	if c.cfg.JobURL != "" {
		fields["description"] += "\nBuild URL: " + c.cfg.JobURL
	}
	for k, v := range c.cfg.Fields {
		fields[k] = v
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to encode execution fields: %w", err)
	}
	return string(data), nil
}

// Upload sends archive as the results of the test execution issueKey and
// polls until the import leaves the IMPORTING state.
func (c *Client) Upload(ctx context.Context, archive, issueKey string) (*ImportStatus, error) {
	if issueKey == "" {
		return nil, fmt.Errorf("%w: issue key", heralderrors.ErrEmptyValue)
	}
	execFields, err := c.ExecutionFields(issueKey)
	if err != nil {
		return nil, err
	}

	taskID, err := retry.Do(ctx, c.policy, c.logger, adapterName, "import results", func(ctx context.Context) (string, error) {
		body, contentType, err := httpx.Multipart(map[string]string{
			"projectKey":          c.cfg.ProjectKey,
			"reportType":          "JUNIT",
			"jobUrl":              c.cfg.JobURL,
			"testExecutionFields": execFields,
			"testExecutionKey":    issueKey,
		}, httpx.FilePart{Field: "file", Path: archive, ContentType: "application/zip"})
		if err != nil {
			return "", err
		}
		resp, err := c.api.Do(ctx, httpx.Request{
			Method:  http.MethodPost,
			Path:    importPath,
			Body:    body,
			Content: contentType,
		})
		if err != nil {
			return "", err
		}
		return parseTaskID(resp)
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info().Str("task_id", taskID).Str("issue_key", issueKey).Msg("results import started")

	status, err := retry.Do(ctx, c.policy, c.logger, adapterName, "import status", func(ctx context.Context) (*ImportStatus, error) {
		return c.wait(ctx, taskID)
	})
	if err != nil {
		return nil, err
	}

	if status.Status == StatusFailed {
		return status, &heralderrors.AdapterError{
			Adapter:  adapterName,
			Op:       "import " + taskID,
			Attempts: 1,
			Err:      fmt.Errorf("import finished with status %s: %s", status.Status, status.Message),
		}
	}
	c.logger.Info().
		Str("task_id", taskID).
		Str("status", status.Status).
		Str("test_execution", status.TestExecutionKey).
		Msg("results import finished")
	return status, nil
}

// parseTaskID accepts either a bare task id or a JSON object carrying one.
func parseTaskID(resp []byte) (string, error) {
	text := strings.Trim(strings.TrimSpace(string(resp)), `"`)
	if strings.HasPrefix(text, "{") {
		var obj struct {
			TaskID string `json:"taskId"`
			ID     string `json:"id"`
		}
		if err := json.Unmarshal(resp, &obj); err != nil {
			return "", fmt.Errorf("failed to decode import response: %w", err)
		}
		text = obj.TaskID
		if text == "" {
			text = obj.ID
		}
	}
	if text == "" {
		return "", fmt.Errorf("%w: import response has no task id", heralderrors.ErrEmptyValue)
	}
	return text, nil
}

// wait polls the import status until it is no longer IMPORTING. ctx bounds
// the whole poll.
func (c *Client) wait(ctx context.Context, taskID string) (*ImportStatus, error) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		var status ImportStatus
		err := c.api.JSON(ctx, http.MethodGet, statusPath+url.PathEscape(taskID), nil, nil, &status)
		if err != nil {
			return nil, err
		}
		status.TaskID = taskID
		c.logger.Debug().Str("task_id", taskID).Str("status", status.Status).Interface("progress", status.Progress).Msg("import status")
		if status.Status != StatusImporting {
			return &status, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
