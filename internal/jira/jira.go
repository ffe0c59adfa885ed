// Package jira attaches report files to a Jira issue. Attaching is
// idempotent: an existing attachment with the same file name is deleted
// before the new one is uploaded.
package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	heralderrors "github.com/mrz1836/herald/internal/errors"
	"github.com/mrz1836/herald/internal/httpx"
	"github.com/mrz1836/herald/internal/retry"
)

const adapterName = "jira"

// Config holds the Jira connection settings.
type Config struct {
	BaseURL string
	User    string
	Token   string
}

// Attachment is a file attached to an issue.
type Attachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// Client talks to the Jira Cloud REST API v3.
type Client struct {
	api    *httpx.Client
	policy retry.Policy
	logger zerolog.Logger
}

// New returns a client. opts are applied to the underlying HTTP client.
func New(cfg Config, policy retry.Policy, logger zerolog.Logger, opts ...httpx.Option) *Client {
	base := []httpx.Option{
		httpx.WithAuth(httpx.BasicAuth{User: cfg.User, Token: cfg.Token}),
		httpx.WithHeader("X-Atlassian-Token", "no-check"),
	}
	return &Client{
		api:    httpx.New(cfg.BaseURL, append(base, opts...)...),
		policy: policy,
		logger: logger.With().Str("adapter", adapterName).Logger(),
	}
}

// BrowseURL returns the browser link for an issue.
func (c *Client) BrowseURL(issueKey string) string {
	return c.api.URL("browse/"+url.PathEscape(issueKey), nil)
}

func issuePath(issueKey string) (string, error) {
	if issueKey == "" || strings.ContainsAny(issueKey, " \t\r\n/?#") {
		return "", fmt.Errorf("%w: %q", heralderrors.ErrInvalidIssueKey, issueKey)
	}
	return "/rest/api/3/issue/" + url.PathEscape(issueKey), nil
}

// Attachments lists the attachments of an issue.
func (c *Client) Attachments(ctx context.Context, issueKey string) ([]Attachment, error) {
	issue, err := issuePath(issueKey)
	if err != nil {
		return nil, err
	}
	return retry.Do(ctx, c.policy, c.logger, adapterName, "list attachments", func(ctx context.Context) ([]Attachment, error) {
		return c.listAttachments(ctx, issue)
	})
}

func (c *Client) listAttachments(ctx context.Context, issue string) ([]Attachment, error) {
	var out struct {
		Fields struct {
			Attachment []Attachment `json:"attachment"`
		} `json:"fields"`
	}
	if err := c.api.JSON(ctx, http.MethodGet, issue, url.Values{"fields": {"attachment"}}, nil, &out); err != nil {
		return nil, err
	}
	return out.Fields.Attachment, nil
}

// Attach uploads files to the issue in parallel, replacing attachments that
// share a file name. It returns the new attachments in the order of files.
func (c *Client) Attach(ctx context.Context, issueKey string, files ...string) ([]Attachment, error) {
	issue, err := issuePath(issueKey)
	if err != nil {
		return nil, err
	}

	existing, err := c.Attachments(ctx, issueKey)
	if err != nil {
		return nil, err
	}
	byName := make(map[string][]string, len(existing))
	for _, a := range existing {
		byName[a.Filename] = append(byName[a.Filename], a.ID)
	}

	attached := make([]Attachment, len(files))

	g, gctx := errgroup.WithContext(ctx)
	for i, file := range files {
		g.Go(func() error {
			name := filepath.Base(file)
			for _, id := range byName[name] {
				if err := c.deleteAttachment(gctx, id); err != nil {
					return err
				}
			}
			a, err := c.upload(gctx, issue, file)
			if err != nil {
				return err
			}
			attached[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("issue_key", issueKey).
		Int("files", len(files)).
		Msg("attached reports to issue")
	return attached, nil
}

func (c *Client) deleteAttachment(ctx context.Context, id string) error {
	return retry.Run(ctx, c.policy, c.logger, adapterName, "delete attachment", func(ctx context.Context) error {
		_, err := c.api.Do(ctx, httpx.Request{
			Method: http.MethodDelete,
			Path:   "/rest/api/3/attachment/" + url.PathEscape(id),
		})
		var se *httpx.StatusError
		if heralderrors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil
		}
		return err
	})
}

// upload posts one file. Same-name attachments are deleted before the first
// attempt, so one found before a retry was stored by the failed attempt and
// is returned instead of posting a duplicate.
func (c *Client) upload(ctx context.Context, issue, file string) (Attachment, error) {
	name := filepath.Base(file)
	attempt := 0
	return retry.Do(ctx, c.policy, c.logger, adapterName, "attach "+name, func(ctx context.Context) (Attachment, error) {
		attempt++
		if attempt > 1 {
			current, err := c.listAttachments(ctx, issue)
			if err != nil {
				return Attachment{}, err
			}
			for _, a := range current {
				if a.Filename == name {
					c.logger.Debug().Str("attachment", name).Msg("upload stored by failed attempt, not re-posting")
					return a, nil
				}
			}
		}

		body, contentType, err := httpx.Multipart(nil, httpx.FilePart{
			Field:       "file",
			Path:        file,
			ContentType: httpx.ContentTypeFor(file),
		})
		if err != nil {
			return Attachment{}, err
		}

		resp, err := c.api.Do(ctx, httpx.Request{
			Method:  http.MethodPost,
			Path:    issue + "/attachments",
			Body:    body,
			Content: contentType,
		})
		if err != nil {
			return Attachment{}, err
		}

		var created []Attachment
		if err := json.Unmarshal(resp, &created); err != nil || len(created) == 0 {
			return Attachment{Filename: name}, nil //nolint:nilerr // upload succeeded; the echo is informational
		}
		return created[0], nil
	})
}
