// Package confluence publishes a versioned report to a Confluence space: one
// page per report version, with the HTML and PDF reports attached. Publishing
// the same version again updates the existing page and replaces its
// attachments.
package confluence

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/herald/internal/domain"
	"github.com/mrz1836/herald/internal/fileutil"
	"github.com/mrz1836/herald/internal/httpx"
	"github.com/mrz1836/herald/internal/report"
	"github.com/mrz1836/herald/internal/retry"
)

const adapterName = "confluence"

// Config holds the connection settings for one Confluence space.
type Config struct {
	// BaseURL is the wiki base URL, without /rest/api.
	BaseURL string
	Space   string
	User    string
	Token   string
	// Title prefixes every page title; the version is appended.
	Title string
}

// Page is the subset of a Confluence content object herald uses.
type Page struct {
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Version versionRef `json:"version"`
}

type versionRef struct {
	Number int `json:"number"`
}

type spaceRef struct {
	Key string `json:"key"`
}

// PublishRequest describes one report version to publish.
type PublishRequest struct {
	Version     string
	Summary     domain.TestSummary
	HTMLPath    string
	PDFPath     string
	IssueKey    string
	IssueURL    string
	GeneratedAt time.Time
}

// PublishResult describes the published page.
type PublishResult struct {
	PageID  string
	PageURL string
	Title   string
	Created bool
	// Attachments maps file name to download link.
	Attachments map[string]string
}

// Client talks to the Confluence REST API.
type Client struct {
	cfg    Config
	api    *httpx.Client
	policy retry.Policy
	logger zerolog.Logger
}

// New returns a client. opts are applied to the underlying HTTP client.
func New(cfg Config, policy retry.Policy, logger zerolog.Logger, opts ...httpx.Option) *Client {
	if cfg.Title == "" {
		cfg.Title = report.DefaultTitle
	}
	base := []httpx.Option{
		httpx.WithAuth(httpx.BasicAuth{User: cfg.User, Token: cfg.Token}),
		httpx.WithHeader("X-Atlassian-Token", "no-check"),
	}
	return &Client{
		cfg:    cfg,
		api:    httpx.New(cfg.BaseURL, append(base, opts...)...),
		policy: policy,
		logger: logger.With().Str("adapter", adapterName).Logger(),
	}
}

// PageTitle returns the page title for a report version.
func (c *Client) PageTitle(version string) string {
	return fmt.Sprintf("%s v%s", c.cfg.Title, version)
}

// PageURL returns the browser URL of a page.
func (c *Client) PageURL(pageID string) string {
	return c.api.URL(path.Join("spaces", url.PathEscape(c.cfg.Space), "pages", pageID), nil)
}

// AttachmentURL returns the download link of an attachment.
func (c *Client) AttachmentURL(pageID, name string) string {
	return c.api.URL(path.Join("download", "attachments", pageID, url.PathEscape(name)), url.Values{"api": {"v2"}})
}

// Publish creates or updates the page for req.Version, uploads both reports
// and rewrites the body with links to the attachments.
func (c *Client) Publish(ctx context.Context, req PublishRequest) (*PublishResult, error) {
	title := c.PageTitle(req.Version)
	logger := c.logger.With().Str("page_title", title).Logger()

	page, err := c.FindPage(ctx, title)
	if err != nil {
		return nil, err
	}

	result := &PublishResult{Title: title, Attachments: make(map[string]string, 2)}
	if page == nil {
		body, bodyErr := c.pageBody(req, nil)
		if bodyErr != nil {
			return nil, bodyErr
		}
		if page, err = c.CreatePage(ctx, title, body); err != nil {
			return nil, err
		}
		result.Created = true
		logger.Info().Str("page_id", page.ID).Msg("created confluence page")
	}
	result.PageID = page.ID
	result.PageURL = c.PageURL(page.ID)

	for _, file := range []string{req.HTMLPath, req.PDFPath} {
		name, uploadErr := c.UploadAttachment(ctx, page.ID, file)
		if uploadErr != nil {
			return nil, uploadErr
		}
		result.Attachments[name] = c.AttachmentURL(page.ID, name)
	}

	body, err := c.pageBody(req, result.Attachments)
	if err != nil {
		return nil, err
	}
	if _, err := c.UpdatePage(ctx, page, body); err != nil {
		return nil, err
	}

	logger.Info().
		Str("page_id", page.ID).
		Str("page_url", result.PageURL).
		Bool("created", result.Created).
		Msg("published report to confluence")
	return result, nil
}

// FindPage looks up a page by exact title in the configured space. It
// returns nil when there is none.
func (c *Client) FindPage(ctx context.Context, title string) (*Page, error) {
	query := url.Values{
		"spaceKey": {c.cfg.Space},
		"title":    {title},
		"type":     {"page"},
		"expand":   {"version"},
	}
	var out struct {
		Results []Page `json:"results"`
	}
	err := retry.Run(ctx, c.policy, c.logger, adapterName, "find page", func(ctx context.Context) error {
		return c.api.JSON(ctx, http.MethodGet, "/rest/api/content", query, nil, &out)
	})
	if err != nil {
		return nil, err
	}
	for i := range out.Results {
		if out.Results[i].Title == title {
			return &out.Results[i], nil
		}
	}
	return nil, nil //nolint:nilnil // absent page is not an error
}

type storageBody struct {
	Storage struct {
		Value          string `json:"value"`
		Representation string `json:"representation"`
	} `json:"storage"`
}

type pagePayload struct {
	ID      string      `json:"id,omitempty"`
	Type    string      `json:"type"`
	Title   string      `json:"title"`
	Space   *spaceRef   `json:"space,omitempty"`
	Version *versionRef `json:"version,omitempty"`
	Body    storageBody `json:"body"`
}

func newPayload(title, body string) pagePayload {
	p := pagePayload{Type: "page", Title: title}
	p.Body.Storage.Value = body
	p.Body.Storage.Representation = "storage"
	return p
}

// CreatePage creates a page in the configured space.
func (c *Client) CreatePage(ctx context.Context, title, body string) (*Page, error) {
	payload := newPayload(title, body)
	payload.Space = &spaceRef{Key: c.cfg.Space}

	return retry.Do(ctx, c.policy, c.logger, adapterName, "create page", func(ctx context.Context) (*Page, error) {
		var page Page
		if err := c.api.JSON(ctx, http.MethodPost, "/rest/api/content", nil, payload, &page); err != nil {
			return nil, err
		}
		return &page, nil
	})
}

// UpdatePage replaces the body of page, bumping its version by one.
func (c *Client) UpdatePage(ctx context.Context, page *Page, body string) (*Page, error) {
	current, err := c.pageVersion(ctx, page.ID)
	if err != nil {
		return nil, err
	}

	payload := newPayload(page.Title, body)
	payload.ID = page.ID
	payload.Version = &versionRef{Number: current + 1}

	return retry.Do(ctx, c.policy, c.logger, adapterName, "update page", func(ctx context.Context) (*Page, error) {
		var updated Page
		if err := c.api.JSON(ctx, http.MethodPut, "/rest/api/content/"+page.ID, nil, payload, &updated); err != nil {
			return nil, err
		}
		return &updated, nil
	})
}

// pageVersion re-reads the version so attachment uploads, which bump it on
// some deployments, do not cause a conflict.
func (c *Client) pageVersion(ctx context.Context, pageID string) (int, error) {
	return retry.Do(ctx, c.policy, c.logger, adapterName, "get page version", func(ctx context.Context) (int, error) {
		var page Page
		err := c.api.JSON(ctx, http.MethodGet, "/rest/api/content/"+pageID, url.Values{"expand": {"version"}}, nil, &page)
		return page.Version.Number, err
	})
}

// UploadAttachment creates or replaces the attachment named after file.
func (c *Client) UploadAttachment(ctx context.Context, pageID, file string) (string, error) {
	name := filepath.Base(file)
	err := retry.Run(ctx, c.policy, c.logger, adapterName, "upload "+name, func(ctx context.Context) error {
		body, contentType, err := httpx.Multipart(
			map[string]string{"minorEdit": "true"},
			httpx.FilePart{Field: "file", Path: file, ContentType: httpx.ContentTypeFor(file)},
		)
		if err != nil {
			return err
		}
		_, err = c.api.Do(ctx, httpx.Request{
			Method:  http.MethodPut,
			Path:    "/rest/api/content/" + pageID + "/child/attachment",
			Body:    body,
			Content: contentType,
		})
		return err
	})
	if err != nil {
		return "", err
	}
	c.logger.Debug().Str("page_id", pageID).Str("file", name).Msg("uploaded attachment")
	return name, nil
}

func (c *Client) pageBody(req PublishRequest, attachments map[string]string) (string, error) {
	var md strings.Builder
	md.WriteString(report.SummaryMarkdown(c.cfg.Title, req.Version, req.Summary, report.Links{
		IssueKey: req.IssueKey,
		IssueURL: req.IssueURL,
	}))
	if !req.GeneratedAt.IsZero() {
		fmt.Fprintf(&md, "\nGenerated: %s\n", req.GeneratedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	}
	if len(attachments) > 0 {
		md.WriteString("\n### Attachments\n\n")
		for _, file := range []string{req.HTMLPath, req.PDFPath} {
			name := filepath.Base(file)
			if link, ok := attachments[name]; ok {
				fmt.Fprintf(&md, "- [%s](%s)\n", name, link)
			}
		}
	} else {
		md.WriteString("\nDetails are available in the attached PDF and HTML reports.\n")
	}
	return report.MarkdownToHTML(md.String())
}

// WriteURLFile records the page URL next to the results for downstream tools.
func WriteURLFile(dest, pageURL string) error {
	if err := fileutil.AtomicWrite(dest, []byte(pageURL+"\n")); err != nil {
		return fmt.Errorf("failed to write confluence url: %w", err)
	}
	return nil
}
