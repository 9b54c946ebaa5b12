// Package catalog is a small client for the Hugging Face Hub model API.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"hftracker/internal/tracker"
)

const (
	DefaultBaseURL = "https://huggingface.co"

	defaultTimeout   = 30 * time.Second
	defaultPageLimit = 1000
	maxPages         = 100
)

var ErrNotFound = errors.New("catalog: artifact not found")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("catalog: %s returned %d: %s", e.URL, e.Status, e.Body)
	}
	return fmt.Sprintf("catalog: %s returned %d", e.URL, e.Status)
}

// Client lists and describes models on the Hub.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	pageLimit  int
	limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom API base URL (tests, mirrors).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			c.baseURL = u
		}
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithToken sends the token as a bearer credential (private or gated models).
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// WithRateLimit bounds outgoing requests per second. 0 disables limiting.
func WithRateLimit(perSec float64) Option {
	return func(c *Client) {
		if perSec <= 0 {
			c.limiter = nil
			return
		}
		burst := int(perSec)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// WithPageLimit sets the page size requested from the listing endpoint.
func WithPageLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageLimit = n
		}
	}
}

// NewClient creates a new Hub client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    DefaultBaseURL,
		pageLimit:  defaultPageLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL is the site root; artifact pages live at BaseURL()/<id>.
func (c *Client) BaseURL() string { return c.baseURL }

// modelWire is the subset of the Hub model JSON we use.
// The listing endpoint omits sha and often lastModified.
type modelWire struct {
	ID           string     `json:"id"`
	ModelID      string     `json:"modelId"`
	Author       string     `json:"author"`
	SHA          *string    `json:"sha"`
	LastModified *time.Time `json:"lastModified"`
	CreatedAt    *time.Time `json:"createdAt"`
	UpdatedAt    *time.Time `json:"updatedAt"`
	Tags         []string   `json:"tags"`
	Downloads    *int64     `json:"downloads"`
}

func (m modelWire) record(fallbackOwner string) tracker.ArtifactRecord {
	id := m.ID
	if id == "" {
		id = m.ModelID
	}
	owner := m.Author
	if owner == "" {
		owner = fallbackOwner
	}
	if owner == "" {
		if i := strings.IndexByte(id, '/'); i > 0 {
			owner = id[:i]
		}
	}
	r := tracker.ArtifactRecord{
		ID:           id,
		Owner:        owner,
		ContentHash:  m.SHA,
		LastModified: m.LastModified,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
		Tags:         m.Tags,
	}
	if m.Downloads != nil {
		r.Downloads = *m.Downloads
	}
	return r.Normalize()
}

// ListArtifacts returns every model of owner, most recently modified first.
// Records from the listing may lack hash and timestamps; use GetArtifact for
// the full record.
func (c *Client) ListArtifacts(ctx context.Context, owner string) ([]tracker.ArtifactRecord, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, errors.New("catalog: owner required")
	}

	q := url.Values{}
	q.Set("author", owner)
	q.Set("limit", fmt.Sprint(c.pageLimit))
	next := c.baseURL + "/api/models?" + q.Encode()

	var out []tracker.ArtifactRecord
	for page := 0; next != "" && page < maxPages; page++ {
		var batch []modelWire
		hdr, err := c.getJSON(ctx, next, &batch)
		if err != nil {
			return nil, fmt.Errorf("list models of %s: %w", owner, err)
		}
		for _, m := range batch {
			if r := m.record(owner); r.ID != "" {
				out = append(out, r)
			}
		}
		next = nextLink(hdr.Get("Link"))
	}

	tracker.SortByRecency(out)
	return out, nil
}

// GetArtifact fetches the detailed record of one model.
func (c *Client) GetArtifact(ctx context.Context, id string) (tracker.ArtifactRecord, error) {
	id = strings.Trim(strings.TrimSpace(id), "/")
	if id == "" {
		return tracker.ArtifactRecord{}, errors.New("catalog: id required")
	}
	parts := strings.Split(id, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}

	var m modelWire
	if _, err := c.getJSON(ctx, c.baseURL+"/api/models/"+strings.Join(parts, "/"), &m); err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Status == http.StatusNotFound {
			return tracker.ArtifactRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return tracker.ArtifactRecord{}, fmt.Errorf("get model %s: %w", id, err)
	}
	r := m.record("")
	if r.ID == "" {
		r.ID = id
	}
	return r, nil
}

func (c *Client) getJSON(ctx context.Context, u string, v any) (http.Header, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{URL: u, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return resp.Header, nil
}

// nextLink extracts the rel="next" target from an RFC 8288 Link header.
func nextLink(h string) string {
	for _, part := range strings.Split(h, ",") {
		segs := strings.Split(part, ";")
		if len(segs) < 2 {
			continue
		}
		target := strings.TrimSpace(segs[0])
		if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
			continue
		}
		for _, p := range segs[1:] {
			p = strings.ReplaceAll(strings.TrimSpace(p), " ", "")
			if strings.EqualFold(p, `rel="next"`) || strings.EqualFold(p, "rel=next") {
				return target[1 : len(target)-1]
			}
		}
	}
	return ""
}
