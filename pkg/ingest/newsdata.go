// Package ingest pulls real news from newsdata.io into the story store on
// a cron schedule: five fixed categories from top-tier sources plus one
// wildcard slot for variety, a few stories each, four times a day.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/satyrpress/satyr/pkg/secrets"
	"github.com/satyrpress/satyr/pkg/version"
)

// RawStory is one result from the newsdata.io feed, field names as the API
// sends them.
type RawStory struct {
	Title       string   `json:"title"`
	Link        string   `json:"link"`
	Description string   `json:"description"`
	PubDate     string   `json:"pubDate"`
	ImageURL    string   `json:"image_url"`
	VideoURL    string   `json:"video_url"`
	SourceID    string   `json:"source_id"`
	Creator     []string `json:"creator"`
	Content     string   `json:"content"`
	Language    string   `json:"language"`
	Country     []string `json:"country"`
	Keywords    []string `json:"keywords"`
	Category    []string `json:"category"`
}

// FeedPage is one page of the feed. NextPage is the pagination token,
// empty on the last page.
type FeedPage struct {
	Status   string     `json:"status"`
	Results  []RawStory `json:"results"`
	NextPage string     `json:"nextPage"`
}

// feedError is the error payload newsdata nests under "results" when
// status is "error".
type feedError struct {
	Status  string `json:"status"`
	Results struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"results"`
}

// Client is a newsdata.io API client.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	log      *slog.Logger
}

// NewClient creates a client for the given endpoint, resolving the API key
// through the secrets cache.
func NewClient(endpoint string) (*Client, error) {
	key, err := secrets.Get(secrets.NewsdataAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve newsdata API key: %w", err)
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   key,
		http:     &http.Client{Timeout: 30 * time.Second},
		log:      slog.With("component", "newsdata"),
	}, nil
}

// FetchByCategory fetches one page of stories for a category; an empty
// category is the wildcard fetch with no filter. page is the token from a
// previous page, empty for the first.
func (c *Client) FetchByCategory(ctx context.Context, category string, usePriority bool, page string) (*FeedPage, error) {
	params := c.baseParams()
	if category != "" {
		params.Set("category", category)
	}
	if usePriority {
		params.Set("prioritydomain", "top")
	}
	if page != "" {
		params.Set("page", page)
	}
	return c.fetch(ctx, params)
}

// FetchByQuery fetches one page of stories matching a search query.
func (c *Client) FetchByQuery(ctx context.Context, query string, usePriority bool, page string) (*FeedPage, error) {
	params := c.baseParams()
	params.Set("q", query)
	if usePriority {
		params.Set("prioritydomain", "top")
	}
	if page != "" {
		params.Set("page", page)
	}
	return c.fetch(ctx, params)
}

func (c *Client) baseParams() url.Values {
	return url.Values{
		"apikey":   {c.apiKey},
		"country":  {"us"},
		"language": {"en"},
	}
}

func (c *Client) fetch(ctx context.Context, params url.Values) (*FeedPage, error) {
	safe := url.Values{}
	for k, vs := range params {
		if k == "apikey" {
			safe.Set(k, "xxx")
		} else {
			safe[k] = vs
		}
	}
	c.log.Debug("Fetching feed page", "params", safe.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", version.Full())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := decodeBody(resp)
	if err != nil {
		return nil, err
	}

	var probe struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("failed to decode feed response: %w", err)
	}

	if probe.Status == "error" {
		var fe feedError
		_ = json.Unmarshal(raw, &fe)
		return nil, fmt.Errorf("feed error %s: %s", fe.Results.Code, fe.Results.Message)
	}
	if probe.Status != "success" {
		return nil, fmt.Errorf("unexpected feed status %q", probe.Status)
	}

	var page FeedPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("failed to decode feed page: %w", err)
	}
	return &page, nil
}

func decodeBody(resp *http.Response) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("feed returned %d with unreadable body: %w", resp.StatusCode, err)
	}
	return raw, nil
}
