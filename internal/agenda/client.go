package agenda

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Record is one row of the agenda payload. The server owns the schema, so
// rows are kept as decoded JSON objects.
type Record map[string]any

// Field returns the first non-empty value among keys, formatted as text.
func (r Record) Field(keys ...string) string {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		switch val := v.(type) {
		case string:
			if val != "" {
				return val
			}
		case float64:
			if val == float64(int64(val)) {
				return fmt.Sprintf("%d", int64(val))
			}
			return fmt.Sprintf("%g", val)
		default:
			return fmt.Sprint(val)
		}
	}
	return ""
}

// Keys returns the record's keys in sorted order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Data is the body of GET /api/agenda/dados.
type Data struct {
	Demandas             []Record `json:"demandas"`
	DiariasTerceirizados []Record `json:"diarias_terceirizados"`
}

// Client fetches agenda data over HTTP.
type Client struct {
	endpoint *url.URL
	http     *http.Client
	token    string
}

// NewClient builds a client for baseURL+path. token, when set, is sent as a
// bearer token.
func NewClient(baseURL, path, token string, timeout time.Duration) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("agenda: parse base url: %w", err)
	}
	base.Path = strings.TrimSuffix(base.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	return &Client{
		endpoint: base,
		http:     &http.Client{Timeout: timeout},
		token:    token,
	}, nil
}

// Fetch loads the data for week. Missing arrays in the response come back
// as empty slices.
func (c *Client) Fetch(ctx context.Context, w Week) (*Data, error) {
	u := *c.endpoint
	q := u.Query()
	q.Set("inicio", w.Inicio())
	q.Set("fim", w.Fim())
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("agenda API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var data Data
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if data.Demandas == nil {
		data.Demandas = []Record{}
	}
	if data.DiariasTerceirizados == nil {
		data.DiariasTerceirizados = []Record{}
	}
	return &data, nil
}
