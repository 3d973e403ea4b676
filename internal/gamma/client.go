// Package gamma resolves Polymarket markets through the Gamma API: event
// slug in, outcome token pair out.
package gamma

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
)

const DefaultURL = "https://gamma-api.polymarket.com"

// DefaultUserAgent mimics a browser UA to avoid Cloudflare 403s.
const DefaultUserAgent = "Mozilla/5.0"

type Client struct {
	host       string
	httpClient *http.Client
	userAgent  string
}

// NewClient validates host and returns a client. An empty host selects the
// production endpoint.
func NewClient(host string) (*Client, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		host = DefaultURL
	}
	host = strings.TrimRight(host, "/")

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("gamma url parse %q: %w", host, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("gamma url must be http(s), got %q", host)
	}

	return &Client{
		host:       host,
		httpClient: &http.Client{Timeout: 12 * time.Second},
		userAgent:  DefaultUserAgent,
	}, nil
}

// looseStrings decodes Gamma list fields that arrive either as a JSON array
// or as a JSON string containing an array, which is how the API serializes
// outcomes and clobTokenIds on most endpoints.
type looseStrings []string

func (l *looseStrings) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*l = nil
		return nil
	}
	if b[0] == '"' {
		var inner string
		if err := json.Unmarshal(b, &inner); err != nil {
			return err
		}
		inner = strings.TrimSpace(inner)
		if inner == "" {
			*l = nil
			return nil
		}
		b = []byte(inner)
	}
	var vals []string
	if err := json.Unmarshal(b, &vals); err != nil {
		return err
	}
	*l = vals
	return nil
}

type eventDoc struct {
	Slug    string      `json:"slug"`
	Markets []marketDoc `json:"markets"`
}

type marketDoc struct {
	Slug         string       `json:"slug"`
	Question     string       `json:"question"`
	EndDate      string       `json:"endDate"`
	Outcomes     looseStrings `json:"outcomes"`
	ClobTokenIDs looseStrings `json:"clobTokenIds"`
}

// ResolvedMarket is one binary market with its two outcome tokens.
type ResolvedMarket struct {
	EventSlug string
	Question  string
	EndDate   string
	Outcomes  []string
	TokenIDs  []string
}

// ResolveMarketBySlug looks the event up by slug and returns its binary
// market. Markets with anything other than exactly two tokens are rejected.
func (c *Client) ResolveMarketBySlug(ctx context.Context, eventSlug string) (ResolvedMarket, error) {
	if c == nil {
		return ResolvedMarket{}, fmt.Errorf("gamma client nil")
	}
	eventSlug = strings.TrimSpace(eventSlug)
	if eventSlug == "" {
		return ResolvedMarket{}, fmt.Errorf("event slug required")
	}

	q := url.Values{}
	q.Set("slug", eventSlug)

	var events []eventDoc
	if err := c.getJSON(ctx, "/events?"+q.Encode(), &events); err != nil {
		return ResolvedMarket{}, err
	}
	if len(events) == 0 {
		return ResolvedMarket{}, fmt.Errorf("gamma: no event for slug %q", eventSlug)
	}

	m, err := pickMarket(events, eventSlug)
	if err != nil {
		return ResolvedMarket{}, err
	}

	ids := make([]string, 0, len(m.ClobTokenIDs))
	for _, id := range m.ClobTokenIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) != 2 {
		return ResolvedMarket{}, fmt.Errorf("gamma: expected 2 clobTokenIds for %q, got %d", eventSlug, len(ids))
	}

	return ResolvedMarket{
		EventSlug: eventSlug,
		Question:  strings.TrimSpace(m.Question),
		EndDate:   strings.TrimSpace(m.EndDate),
		Outcomes:  append([]string(nil), m.Outcomes...),
		TokenIDs:  ids,
	}, nil
}

// pickMarket prefers the market whose own slug matches the event slug, which
// is how hourly events name their single market. First market of the first
// event otherwise.
func pickMarket(events []eventDoc, slug string) (*marketDoc, error) {
	for i := range events {
		for j := range events[i].Markets {
			if strings.TrimSpace(events[i].Markets[j].Slug) == slug {
				return &events[i].Markets[j], nil
			}
		}
	}
	if len(events[0].Markets) == 0 {
		return nil, fmt.Errorf("gamma: event %q has no markets", slug)
	}
	return &events[0].Markets[0], nil
}

func (c *Client) getJSON(ctx context.Context, pathQuery string, out any) error {
	endpoint := c.host + pathQuery
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return fmt.Errorf("gamma %s: status=%d body=%q", endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("gamma decode: %w", err)
	}
	return nil
}
