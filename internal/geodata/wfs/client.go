// Package wfs provides a client for OGC Web Feature Service (WFS 2.0.0)
// GetFeature queries returning GeoJSON, as served by the Grand Lyon geoserver.
package wfs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ecolyon/ecolyon/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the Grand Lyon WFS endpoint.
	DefaultBaseURL = "https://data.grandlyon.com/geoserver/metropole-de-lyon/ows"

	// ProviderName identifies this provider in the resilience registry.
	ProviderName = "grandlyon-wfs"

	// DefaultSRSName is the spatial reference requested for geometries.
	DefaultSRSName = "EPSG:4171"

	serviceVersion = "2.0.0"
	outputFormat   = "application/json"
)

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the WFS client.
type ClientConfig struct {
	// BaseURL is the OWS endpoint (defaults to DefaultBaseURL).
	BaseURL string

	// SRSName is the requested spatial reference (defaults to DefaultSRSName).
	SRSName string

	// HTTPClient executes requests. If nil, a resilient client is created.
	HTTPClient HTTPDoer

	// Registry receives provider health when the default client is created.
	Registry *resilience.Registry

	// Timeout for individual requests of the default client (default: 15s).
	Timeout time.Duration
}

// Client queries a WFS endpoint.
type Client struct {
	baseURL    string
	srsName    string
	httpClient HTTPDoer
}

// NewClient creates a new WFS client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	srsName := cfg.SRSName
	if srsName == "" {
		srsName = DefaultSRSName
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 15 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         timeout,
			MaxRetries:      2,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     2 * time.Second,
			Registry:        cfg.Registry,
		})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		srsName:    srsName,
		httpClient: httpClient,
	}
}

// Query describes a GetFeature request.
type Query struct {
	// TypeName is the dataset identifier, e.g. "metropole-de-lyon:adr_voie_lieu.adrbanc_latest".
	TypeName string

	// Count limits the number of returned features. Zero requests all of them.
	Count int

	// CQLFilter is an optional ECQL attribute filter.
	CQLFilter string

	// PropertyNames restricts the returned properties.
	PropertyNames []string
}

// Values encodes the query as WFS request parameters.
func (q Query) Values(srsName string) url.Values {
	v := url.Values{}
	v.Set("SERVICE", "WFS")
	v.Set("VERSION", serviceVersion)
	v.Set("request", "GetFeature")
	v.Set("typename", q.TypeName)
	v.Set("outputFormat", outputFormat)
	v.Set("SRSNAME", srsName)
	if q.Count > 0 {
		v.Set("count", strconv.Itoa(q.Count))
	}
	if q.CQLFilter != "" {
		v.Set("CQL_FILTER", q.CQLFilter)
	}
	if len(q.PropertyNames) > 0 {
		v.Set("propertyName", strings.Join(q.PropertyNames, ","))
	}
	return v
}

// StatusError is returned for non-200 responses.
type StatusError struct {
	TypeName   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.StatusCode, e.TypeName)
}

// GetFeatures runs a GetFeature query and decodes the feature collection.
func (c *Client) GetFeatures(ctx context.Context, q Query) (*FeatureCollection, error) {
	if q.TypeName == "" {
		return nil, fmt.Errorf("get features: empty typename")
	}

	reqURL := c.baseURL + "?" + q.Values(c.srsName).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", outputFormat)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", q.TypeName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{TypeName: q.TypeName, StatusCode: resp.StatusCode}
	}

	var fc FeatureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", q.TypeName, err)
	}

	return &fc, nil
}

// Count returns the number of features of a dataset, asking the server for a
// single feature and reading the collection counters.
func (c *Client) Count(ctx context.Context, typeName string) (int, error) {
	fc, err := c.GetFeatures(ctx, Query{TypeName: typeName, Count: 1})
	if err != nil {
		return 0, err
	}
	return fc.Count(), nil
}
