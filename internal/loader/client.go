package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
)

// StatusError is returned when an endpoint answers with a non-2xx status.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("loader: GET %s: status %d", e.URL, e.Code)
}

// Query narrows the features a page request returns. Both filters are sent
// as JSON objects; nil sends "{}".
type Query struct {
	Items    map[string]any `json:"items_query,omitempty"`
	Features map[string]any `json:"features_query,omitempty"`
}

func (q Query) values(page int) (url.Values, error) {
	items, err := encodeFilter(q.Items)
	if err != nil {
		return nil, fmt.Errorf("encode items query: %w", err)
	}
	features, err := encodeFilter(q.Features)
	if err != nil {
		return nil, fmt.Errorf("encode features query: %w", err)
	}
	v := url.Values{}
	v.Set("features_page", strconv.Itoa(page))
	v.Set("items_query", items)
	v.Set("features_query", features)
	return v, nil
}

func encodeFilter(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	return sonic.MarshalString(m)
}

// Config holds the endpoint URLs. PopupURL may be empty, which disables
// popups.
type Config struct {
	FeaturesURL string
	PopupURL    string
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// Client talks to the features and popup endpoints.
type Client struct {
	featuresURL string
	popupURL    string
	http        *http.Client
	logger      *slog.Logger
}

// New creates a client. A nil HTTPClient gets a 30s timeout.
func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		featuresURL: cfg.FeaturesURL,
		popupURL:    cfg.PopupURL,
		http:        hc,
		logger:      logger,
	}
}

// HasPopups reports whether a popup endpoint is configured.
func (c *Client) HasPopups() bool { return c.popupURL != "" }

// Page fetches one page of features. Rows that cannot be decoded are
// skipped. A nil result means there are no more pages.
func (c *Client) Page(ctx context.Context, q Query, page int) ([]Feature, error) {
	v, err := q.values(page)
	if err != nil {
		return nil, err
	}
	body, err := c.get(ctx, c.featuresURL, v)
	if err != nil {
		return nil, err
	}

	var rows []json.RawMessage
	if err := sonic.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode features page %d: %w", page, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	// A page of only bad rows comes back as an empty, non-nil slice so the
	// sequence keeps going.
	features := make([]Feature, 0, len(rows))
	for i, row := range rows {
		f, err := DecodeRow(row)
		if err != nil {
			c.logger.Debug("feature_row_skipped", "page", page, "row", i, "error", err)
			continue
		}
		features = append(features, f)
	}
	return features, nil
}

// Pages yields feature pages in order, starting at page 1. Page N+1 is
// requested only after page N has been yielded. The sequence ends at the
// first empty page, or after yielding a fetch error.
func (c *Client) Pages(ctx context.Context, q Query) iter.Seq2[[]Feature, error] {
	return func(yield func([]Feature, error) bool) {
		for page := 1; ; page++ {
			features, err := c.Page(ctx, q, page)
			if err != nil {
				c.logger.Warn("features_page_failed", "page", page, "error", err)
				yield(nil, err)
				return
			}
			if features == nil {
				c.logger.Debug("features_load_complete", "pages", page-1)
				return
			}
			c.logger.Debug("features_page_loaded", "page", page, "features", len(features))
			if !yield(features, nil) {
				return
			}
		}
	}
}

// LoadAll collects every page. On error it returns the features loaded
// before the failure together with the error.
func (c *Client) LoadAll(ctx context.Context, q Query) ([]Feature, error) {
	var all []Feature
	for page, err := range c.Pages(ctx, q) {
		if err != nil {
			return all, err
		}
		all = append(all, page...)
	}
	return all, nil
}

// PopupContent fetches the HTML fragment for a feature's detail panel.
func (c *Client) PopupContent(ctx context.Context, featureID int64) (string, error) {
	if c.popupURL == "" {
		return "", fmt.Errorf("loader: no popup endpoint configured")
	}
	body, err := c.get(ctx, c.popupURL, url.Values{"feature_id": {strconv.FormatInt(featureID, 10)}})
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) get(ctx context.Context, endpoint string, v url.Values) ([]byte, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("loader: bad endpoint %q: %w", endpoint, err)
	}
	q := u.Query()
	for k, vals := range v {
		q[k] = vals
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("loader: GET %s: %w", u.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{URL: u.Path, Code: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("loader: read %s: %w", u.Path, err)
	}
	return body, nil
}
