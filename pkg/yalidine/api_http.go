package yalidine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.yalidine.app/v1"

// maxPageSize is the largest page the carrier serves for reference lists.
const maxPageSize = 1000

// Observer receives one call per HTTP exchange with the carrier.
// status is 0 when no response was received.
type Observer interface {
	ObserveRequest(method, endpoint string, status int, duration time.Duration)
}

// HTTPAPIClient is the production implementation of APIClient using HTTP.
type HTTPAPIClient struct {
	baseURL    string
	apiID      string
	apiToken   string
	httpClient *http.Client
	limiter    *rate.Limiter
	observer   Observer
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL       string
	APIID         string
	APIToken      string
	Timeout       time.Duration
	RatePerSecond float64 // Carrier quota; 0 disables client-side pacing
	Burst         int
	Observer      Observer
	HTTPClient    *http.Client // Optional, overrides Timeout
}

// NewHTTPAPIClient creates a new HTTP-based API client.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 20 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	return &HTTPAPIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiID:      cfg.APIID,
		apiToken:   cfg.APIToken,
		httpClient: httpClient,
		limiter:    limiter,
		observer:   cfg.Observer,
	}
}

// IsConfigured reports whether both API credentials are set.
func (c *HTTPAPIClient) IsConfigured() bool {
	return c.apiID != "" && c.apiToken != ""
}

// Wilayas fetches all wilayas.
func (c *HTTPAPIClient) Wilayas(ctx context.Context) ([]Wilaya, error) {
	var page Page[Wilaya]
	q := url.Values{"page_size": {strconv.Itoa(maxPageSize)}}
	if err := c.Do(ctx, http.MethodGet, "/wilayas/?"+q.Encode(), nil, &page); err != nil {
		return nil, err
	}
	return page.Data, nil
}

// Communes fetches communes, restricted to a wilaya when wilayaID > 0.
func (c *HTTPAPIClient) Communes(ctx context.Context, wilayaID int) ([]Commune, error) {
	q := url.Values{"page_size": {strconv.Itoa(maxPageSize)}}
	if wilayaID > 0 {
		q.Set("wilaya_id", strconv.Itoa(wilayaID))
	}
	return collectPages[Commune](ctx, c, "/communes/", q)
}

// Centers fetches pickup centers, restricted to a wilaya when wilayaID > 0.
func (c *HTTPAPIClient) Centers(ctx context.Context, wilayaID int) ([]Center, error) {
	q := url.Values{"page_size": {strconv.Itoa(maxPageSize)}}
	if wilayaID > 0 {
		q.Set("wilaya_id", strconv.Itoa(wilayaID))
	}
	return collectPages[Center](ctx, c, "/centers/", q)
}

// Fees fetches the rate table between two wilayas.
func (c *HTTPAPIClient) Fees(ctx context.Context, fromWilayaID, toWilayaID int) (*FeesResponse, error) {
	q := url.Values{
		"from_wilaya_id": {strconv.Itoa(fromWilayaID)},
		"to_wilaya_id":   {strconv.Itoa(toWilayaID)},
	}
	var result FeesResponse
	if err := c.Do(ctx, http.MethodGet, "/fees/?"+q.Encode(), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateParcels creates one or more parcels in a single call.
func (c *HTTPAPIClient) CreateParcels(ctx context.Context, parcels []ParcelRequest) (map[string]CreateResult, error) {
	result := make(map[string]CreateResult, len(parcels))
	if err := c.Do(ctx, http.MethodPost, "/parcels/", parcels, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Parcel fetches one parcel by tracking code.
func (c *HTTPAPIClient) Parcel(ctx context.Context, tracking string) (*Parcel, error) {
	var page Page[Parcel]
	if err := c.Do(ctx, http.MethodGet, "/parcels/"+url.PathEscape(tracking), nil, &page); err != nil {
		return nil, err
	}
	if len(page.Data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrParcelNotFound, tracking)
	}
	return &page.Data[0], nil
}

// UpdateParcel patches a parcel.
func (c *HTTPAPIClient) UpdateParcel(ctx context.Context, tracking string, patch ParcelPatch) (*Parcel, error) {
	var result Parcel
	if err := c.Do(ctx, http.MethodPatch, "/parcels/"+url.PathEscape(tracking), patch, &result); err != nil {
		return nil, err
	}
	if result.Tracking == "" {
		result.Tracking = tracking
	}
	return &result, nil
}

// DeleteParcel deletes a parcel. The carrier answers with a list of
// {tracking, deleted} objects.
func (c *HTTPAPIClient) DeleteParcel(ctx context.Context, tracking string) (*DeleteResult, error) {
	var raw json.RawMessage
	if err := c.Do(ctx, http.MethodDelete, "/parcels/"+url.PathEscape(tracking), nil, &raw); err != nil {
		return nil, err
	}

	var list []DeleteResult
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return &list[0], nil
	}
	var single DeleteResult
	if err := json.Unmarshal(raw, &single); err == nil && single.Tracking != "" {
		return &single, nil
	}
	// Empty body on success
	return &DeleteResult{Tracking: tracking, Deleted: true}, nil
}

// Parcels lists parcels with raw carrier query parameters.
func (c *HTTPAPIClient) Parcels(ctx context.Context, query url.Values) (*Page[Parcel], error) {
	path := "/parcels/"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var page Page[Parcel]
	if err := c.Do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// History fetches the status history of a parcel.
func (c *HTTPAPIClient) History(ctx context.Context, tracking string) ([]HistoryEvent, error) {
	var page Page[HistoryEvent]
	if err := c.Do(ctx, http.MethodGet, "/histories/"+url.PathEscape(tracking), nil, &page); err != nil {
		return nil, err
	}
	return page.Data, nil
}

// collectPages follows has_more until the list is exhausted.
func collectPages[T any](ctx context.Context, c *HTTPAPIClient, path string, q url.Values) ([]T, error) {
	var all []T
	for pageNum := 1; ; pageNum++ {
		q.Set("page", strconv.Itoa(pageNum))
		var page Page[T]
		if err := c.Do(ctx, http.MethodGet, path+"?"+q.Encode(), nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Data...)
		if !page.HasMore || len(page.Data) == 0 {
			return all, nil
		}
	}
}

// Do performs an authenticated request. body is JSON-encoded when non-nil;
// a 2xx response is decoded into out when out is non-nil. Non-2xx responses
// return *APIError carrying the carrier body verbatim.
func (c *HTTPAPIClient) Do(ctx context.Context, method, path string, body, out any) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("yalidine: failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("yalidine: failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-ID", c.apiID)
	req.Header.Set("X-API-TOKEN", c.apiToken)
	req.Header.Set("User-Agent", "tournevent-shipping/1.0")

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &TransportError{Op: "rate limit wait", Err: err}
		}
	}

	endpoint := endpointOf(path)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(method, endpoint, 0, time.Since(start))
		return &TransportError{Op: method + " " + endpoint, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	c.observe(method, endpoint, resp.StatusCode, time.Since(start))
	if err != nil {
		return &TransportError{Op: "read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, respBody)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], respBody...)
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("yalidine: failed to decode %s response: %w", endpoint, err)
	}
	return nil
}

func (c *HTTPAPIClient) observe(method, endpoint string, status int, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveRequest(method, endpoint, status, d)
	}
}

// endpointOf reduces a request path to a low-cardinality label, e.g.
// "/parcels/yal-123?x=1" -> "parcels".
func endpointOf(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	path = strings.Trim(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	return path
}

// Ensure HTTPAPIClient implements APIClient interface
var _ APIClient = (*HTTPAPIClient)(nil)
