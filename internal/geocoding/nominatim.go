package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/UnknownOlympus/propgeo/internal/models"
)

const (
	// NominatimBaseURL is the public OpenStreetMap Nominatim search endpoint.
	NominatimBaseURL = "https://nominatim.openstreetmap.org/search"
	// DefaultUserAgent identifies the tool per the Nominatim usage policy:
	// https://operations.osmfoundation.org/policies/nominatim/
	DefaultUserAgent = "propgeo/1.0 (+https://github.com/UnknownOlympus/propgeo)"
	// DefaultTimeout is the HTTP timeout used when none is configured.
	DefaultTimeout = 15 * time.Second

	maxErrorBody = 512
)

// NominatimProvider implements the Provider interface using OpenStreetMap's Nominatim API.
// This is a free geocoding service with usage limits (1 request/second for fair use).
type NominatimProvider struct {
	client    HTTPClient   // HTTP client for making requests
	baseURL   string       // Base URL for the Nominatim search API
	country   string       // Comma separated ISO 3166-1 alpha-2 country filter
	language  string       // Optional accept-language value
	userAgent string       // userAgent is required by Nominatim usage policy
	log       *slog.Logger // Logger for logging operations
}

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError is returned when the API answers with a non-success HTTP status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("nominatim API returned status %d: %s", e.Code, e.Body)
}

// NominatimOptions holds the optional settings of a Nominatim provider.
// Zero values fall back to the public endpoint and the default user agent.
type NominatimOptions struct {
	BaseURL   string
	UserAgent string
	Country   string
	Language  string
	Timeout   time.Duration
}

// NewNominatimProvider creates a new Nominatim geocoding provider with its own HTTP client.
func NewNominatimProvider(opts NominatimOptions, log *slog.Logger) *NominatimProvider {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return NewNominatimProviderWithClient(&http.Client{Timeout: timeout}, opts, log)
}

// NewNominatimProviderWithClient creates a Nominatim provider with a custom HTTP client.
// Useful for testing with mocked HTTP clients.
func NewNominatimProviderWithClient(client HTTPClient, opts NominatimOptions, log *slog.Logger) *NominatimProvider {
	provider := &NominatimProvider{
		client:    client,
		baseURL:   opts.BaseURL,
		country:   opts.Country,
		language:  opts.Language,
		userAgent: opts.UserAgent,
		log:       log,
	}
	if provider.baseURL == "" {
		provider.baseURL = NominatimBaseURL
	}
	if provider.userAgent == "" {
		provider.userAgent = DefaultUserAgent
	}

	return provider
}

// Geocode looks up a property name using the Nominatim search API and returns
// the top match as-is. A successful response with an empty list yields an
// error matching ErrNotFound; any other failure is returned without retry.
func (np *NominatimProvider) Geocode(ctx context.Context, query string) (*models.Place, error) {
	np.log.DebugContext(ctx, "Geocoding using Nominatim", "query", query)

	reqURL, err := url.Parse(np.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	params := reqURL.Query()
	params.Set("q", query)
	params.Set("format", "jsonv2")
	params.Set("addressdetails", "1")
	params.Set("limit", "1")
	if np.country != "" {
		params.Set("countrycodes", np.country)
	}
	if np.language != "" {
		params.Set("accept-language", np.language)
	}
	reqURL.RawQuery = params.Encode()

	np.log.DebugContext(ctx, "Nominatim request URL", "url", reqURL.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", np.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := np.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute geocoding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		np.log.ErrorContext(ctx, "Nominatim API error", "status", resp.StatusCode, "body", string(body))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	np.log.DebugContext(ctx, "Nominatim raw response", "body", string(body))

	var results []models.Place
	if err = json.Unmarshal(body, &results); err != nil {
		np.log.ErrorContext(ctx, "Failed to parse Nominatim response", "error", err, "body", string(body))
		return nil, fmt.Errorf("failed to decode nominatim response: %w", err)
	}

	if len(results) == 0 {
		return nil, NotFound(query)
	}

	place := results[0]
	place.Query = query

	np.log.DebugContext(ctx, "Nominatim found result",
		"query", place.Query,
		"place_id", string(place.PlaceID),
		"display_name", place.DisplayName,
		"address", place.Address,
		"lat", place.Lat,
		"lon", place.Lon)

	return &place, nil
}
