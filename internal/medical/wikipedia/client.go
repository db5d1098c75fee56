// Package wikipedia provides a client for the MediaWiki API, used as the
// reference source for medical condition summaries.
package wikipedia

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/nutriplan/nutriplan/internal/medical"
	"github.com/nutriplan/nutriplan/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the MediaWiki API endpoint.
	DefaultBaseURL = "https://en.wikipedia.org/w/api.php"

	// ProviderName identifies this provider.
	ProviderName = "wikipedia"
)

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Wikipedia client.
type ClientConfig struct {
	// BaseURL is the API endpoint (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use. If nil, a default resilient
	// client will be created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration
}

// Client is a MediaWiki API client.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	sanitizer  *bluemonday.Policy
}

// NewClient creates a new Wikipedia client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         timeout,
			MaxRetries:      3,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		})
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		// Extracts are requested as plaintext, but malformed articles can
		// leak markup through the API. Everything user-facing is stripped.
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// API response types (from the MediaWiki API).

type searchResponse struct {
	Query struct {
		Search []searchResult `json:"search"`
	} `json:"query"`
}

type searchResult struct {
	PageID int    `json:"pageid"`
	Title  string `json:"title"`
}

type extractResponse struct {
	Query struct {
		Pages map[string]pageData `json:"pages"`
	} `json:"query"`
}

type pageData struct {
	Title      string         `json:"title"`
	Extract    string         `json:"extract"`
	Categories []categoryData `json:"categories"`
}

type categoryData struct {
	Title string `json:"title"`
}

// LookupCondition searches for the condition and returns the summary of
// the best-matching article.
func (c *Client) LookupCondition(ctx context.Context, condition string) (*medical.ConditionInfo, error) {
	pageID, err := c.searchPage(ctx, condition)
	if err != nil {
		return nil, err
	}

	page, err := c.fetchExtract(ctx, pageID)
	if err != nil {
		return nil, err
	}

	categories := make([]string, 0, len(page.Categories))
	for _, cat := range page.Categories {
		categories = append(categories, strings.TrimPrefix(cat.Title, "Category:"))
	}

	return &medical.ConditionInfo{
		Condition:   condition,
		Title:       c.sanitizer.Sanitize(page.Title),
		Summary:     c.sanitizer.Sanitize(page.Extract),
		Categories:  categories,
		Source:      ProviderName,
		RetrievedAt: time.Now().UTC(),
	}, nil
}

// searchPage finds the page id of the best search match for the condition.
func (c *Client) searchPage(ctx context.Context, condition string) (int, error) {
	params := url.Values{
		"action":   {"query"},
		"format":   {"json"},
		"list":     {"search"},
		"srsearch": {condition},
		"utf8":     {"1"},
	}

	var result searchResponse
	if err := c.doGet(ctx, params, &result); err != nil {
		return 0, fmt.Errorf("search condition: %w", err)
	}
	if len(result.Query.Search) == 0 {
		return 0, fmt.Errorf("%w: %s", medical.ErrConditionNotFound, condition)
	}
	return result.Query.Search[0].PageID, nil
}

// fetchExtract retrieves the intro extract and categories for a page.
func (c *Client) fetchExtract(ctx context.Context, pageID int) (*pageData, error) {
	id := strconv.Itoa(pageID)
	params := url.Values{
		"action":      {"query"},
		"format":      {"json"},
		"prop":        {"extracts|categories"},
		"exintro":     {"true"},
		"explaintext": {"true"},
		"pageids":     {id},
	}

	var result extractResponse
	if err := c.doGet(ctx, params, &result); err != nil {
		return nil, fmt.Errorf("fetch extract: %w", err)
	}

	page, ok := result.Query.Pages[id]
	if !ok {
		return nil, fmt.Errorf("%w: page %s missing from response", medical.ErrConditionNotFound, id)
	}
	return &page, nil
}

func (c *Client) doGet(ctx context.Context, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from wikipedia", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
