// Package engine is the HTTP client for the per-provider compliance scan
// engines. Each provider runs its own engine service; all of them expose the
// same /api/v1 surface but name the account identifier differently.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/threatengine/onboarding/internal/metrics"
	"github.com/threatengine/onboarding/internal/models"
)

// ErrUnsupportedProvider means no engine is configured for the provider type.
var ErrUnsupportedProvider = errors.New("unsupported provider")

// Error is a non-2xx reply from an engine.
type Error struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s engine returned %d: %s", e.Provider, e.StatusCode, e.Body)
}

// endpoint pairs an engine base URL with the identifier field that engine's
// scan API expects ("account", "subscription", "project" or "compartment").
type endpoint struct {
	baseURL    string
	identifier string
}

var identifierFields = map[string]string{
	models.ProviderAWS:      "account",
	models.ProviderAzure:    "subscription",
	models.ProviderGCP:      "project",
	models.ProviderAliCloud: "account",
	models.ProviderOCI:      "compartment",
	models.ProviderIBM:      "account",
}

const (
	scanTimeout  = 300 * time.Second
	queryTimeout = 30 * time.Second
	// results pages can be large
	resultsTimeout = 60 * time.Second
)

// Client calls the scan engines.
type Client struct {
	endpoints map[string]endpoint
	http      *http.Client
}

// NewClient builds a Client from provider type -> engine base URL. Providers
// with an empty URL are left unconfigured and report ErrUnsupportedProvider.
func NewClient(engineURLs map[string]string) *Client {
	eps := make(map[string]endpoint, len(engineURLs))
	for provider, base := range engineURLs {
		field, ok := identifierFields[provider]
		if !ok || base == "" {
			continue
		}
		eps[provider] = endpoint{baseURL: strings.TrimRight(base, "/"), identifier: field}
	}
	// per-request deadlines come from context
	return &Client{endpoints: eps, http: &http.Client{}}
}

// ScanRequest is one scan dispatch.
type ScanRequest struct {
	Provider        string
	Identifier      string
	Credentials     map[string]string
	Regions         []string
	Services        []string
	ExcludeServices []string
}

// ScanResult is the engine's reply to a completed scan.
type ScanResult struct {
	ScanID       string `json:"scan_id"`
	Status       string `json:"status"`
	TotalChecks  int    `json:"total_checks"`
	PassedChecks int    `json:"passed_checks"`
	FailedChecks int    `json:"failed_checks"`
}

// Scan runs a synchronous compliance scan. The engine holds the connection
// open for the duration of the scan, so the deadline is generous.
func (c *Client) Scan(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	ep, ok := c.endpoints[req.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, req.Provider)
	}

	body := map[string]any{
		ep.identifier:      req.Identifier,
		"credentials":      req.Credentials,
		"regions":          emptyIfNil(req.Regions),
		"services":         emptyIfNil(req.Services),
		"exclude_services": emptyIfNil(req.ExcludeServices),
	}

	var result ScanResult
	err := c.do(ctx, req.Provider, http.MethodPost, ep.baseURL+"/api/v1/scan", body, scanTimeout, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// CancelScan asks the engine to cancel a running scan.
func (c *Client) CancelScan(ctx context.Context, provider, scanID string) (map[string]any, error) {
	return c.query(ctx, provider, http.MethodPost, "/api/v1/scan/"+scanID+"/cancel", nil, queryTimeout)
}

// ScanStatus returns the engine's status view of a scan.
func (c *Client) ScanStatus(ctx context.Context, provider, scanID string) (map[string]any, error) {
	return c.query(ctx, provider, http.MethodGet, "/api/v1/scan/"+scanID+"/status", nil, queryTimeout)
}

// ScanProgress returns the engine's progress counters for a scan.
func (c *Client) ScanProgress(ctx context.Context, provider, scanID string) (map[string]any, error) {
	return c.query(ctx, provider, http.MethodGet, "/api/v1/scan/"+scanID+"/progress", nil, queryTimeout)
}

// ScanResults returns one page of detailed check results.
func (c *Client) ScanResults(ctx context.Context, provider, scanID string, page, pageSize int) (map[string]any, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("page_size", strconv.Itoa(pageSize))
	return c.query(ctx, provider, http.MethodGet, "/api/v1/scan/"+scanID+"/results", params, resultsTimeout)
}

// ScanSummary returns the engine's per-service statistics for a scan.
func (c *Client) ScanSummary(ctx context.Context, provider, scanID string) (map[string]any, error) {
	return c.query(ctx, provider, http.MethodGet, "/api/v1/scan/"+scanID+"/summary", nil, queryTimeout)
}

// ListScans lists scans on the engine side, optionally filtered by status and
// by account identifier (the filter parameter name is provider-specific).
func (c *Client) ListScans(ctx context.Context, provider, status, identifier string, limit, offset int) (map[string]any, error) {
	ep, ok := c.endpoints[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	if status != "" {
		params.Set("status", status)
	}
	if identifier != "" {
		params.Set(ep.identifier, identifier)
	}
	return c.query(ctx, provider, http.MethodGet, "/api/v1/scans", params, queryTimeout)
}

// EngineMetrics returns the engine's own metrics document.
func (c *Client) EngineMetrics(ctx context.Context, provider string) (map[string]any, error) {
	return c.query(ctx, provider, http.MethodGet, "/api/v1/metrics", nil, queryTimeout)
}

func (c *Client) query(ctx context.Context, provider, method, path string, params url.Values, timeout time.Duration) (map[string]any, error) {
	ep, ok := c.endpoints[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
	u := ep.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	var out map[string]any
	if err := c.do(ctx, provider, method, u, nil, timeout, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, provider, method, u string, body any, timeout time.Duration, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveEngineRequest(provider, "error", time.Since(start).Seconds())
		return fmt.Errorf("%s engine: %w", provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.ObserveEngineRequest(provider, "error", time.Since(start).Seconds())
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &Error{Provider: provider, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	metrics.ObserveEngineRequest(provider, "ok", time.Since(start).Seconds())

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s engine: decode reply: %w", provider, err)
	}
	return nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
