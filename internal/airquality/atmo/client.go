// Package atmo provides a client for the ATMO Auvergne-Rhône-Alpes API.
package atmo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ecolyon/ecolyon/internal/airquality"
	"github.com/ecolyon/ecolyon/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the base URL for the ATMO AURA API.
	DefaultBaseURL = "https://api.atmo-aura.fr/api/v1"

	// ProviderName identifies this provider.
	ProviderName = "atmo-aura"
)

// ErrMissingToken is returned when no API token is configured.
var ErrMissingToken = errors.New("atmo: missing api token")

// ClientConfig holds configuration for the ATMO client.
type ClientConfig struct {
	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// APIToken authenticates requests.
	APIToken string

	// HTTPClient is the HTTP client to use. If nil, a resilient client is created.
	HTTPClient HTTPDoer

	// Registry receives provider health (optional, used with the default client).
	Registry *resilience.Registry

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is an ATMO AURA API client.
type Client struct {
	baseURL    string
	apiToken   string
	httpClient HTTPDoer
}

// NewClient creates a new ATMO client.
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
			Registry:        cfg.Registry,
		})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiToken:   cfg.APIToken,
		httpClient: httpClient,
	}
}

type indexResponse struct {
	Data []indexData `json:"data"`
}

type indexData struct {
	CommuneNom   string         `json:"commune_nom"`
	CodeINSEE    string         `json:"code_insee"`
	DateEcheance string         `json:"date_echeance"`
	Indice       int            `json:"indice"`
	Qualificatif string         `json:"qualificatif"`
	CouleurHTML  string         `json:"couleur_html"`
	SousIndices  []subIndexData `json:"sous_indices"`
}

type subIndexData struct {
	PolluantNom   string  `json:"polluant_nom"`
	Indice        int     `json:"indice"`
	Concentration float64 `json:"concentration"`
}

// FetchIndex retrieves today's ATMO index of a commune.
func (c *Client) FetchIndex(ctx context.Context, inseeCode string) (*airquality.Index, error) {
	if c.apiToken == "" {
		return nil, ErrMissingToken
	}

	q := url.Values{}
	q.Set("api_token", c.apiToken)
	q.Set("date_echeance", "now")
	reqURL := fmt.Sprintf("%s/communes/%s/indices/atmo?%s", c.baseURL, url.PathEscape(inseeCode), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch index: %w", resilience.RedactURLError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from indices endpoint", resp.StatusCode)
	}

	var result indexResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode index response: %w", err)
	}

	if len(result.Data) == 0 {
		return nil, airquality.ErrNoIndex
	}

	return toIndex(&result.Data[0], inseeCode), nil
}

func toIndex(d *indexData, inseeCode string) *airquality.Index {
	index := &airquality.Index{
		Commune:   d.CommuneNom,
		INSEECode: d.CodeINSEE,
		Date:      d.DateEcheance,
		Value:     d.Indice,
		Label:     d.Qualificatif,
		Color:     d.CouleurHTML,
		FetchedAt: time.Now(),
		Provider:  ProviderName,
	}
	if index.INSEECode == "" {
		index.INSEECode = inseeCode
	}
	if index.Label == "" {
		index.Label = airquality.LabelFor(d.Indice)
	}

	for _, s := range d.SousIndices {
		p := toPollutant(s.PolluantNom)
		if p == "" {
			continue
		}
		index.SubIndices = append(index.SubIndices, airquality.SubIndex{
			Pollutant:     p,
			Index:         s.Indice,
			Concentration: s.Concentration,
		})
	}

	return index
}

func toPollutant(name string) airquality.Pollutant {
	switch strings.ToUpper(strings.ReplaceAll(name, " ", "")) {
	case "NO2":
		return airquality.PollutantNO2
	case "O3":
		return airquality.PollutantO3
	case "PM10":
		return airquality.PollutantPM10
	case "PM2.5", "PM25":
		return airquality.PollutantPM25
	case "SO2":
		return airquality.PollutantSO2
	default:
		return ""
	}
}
