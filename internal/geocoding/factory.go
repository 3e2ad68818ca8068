package geocoding

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"googlemaps.github.io/maps"
)

// ProviderType represents the type of geocoding provider.
type ProviderType string

const (
	// ProviderTypeNominatim represents OpenStreetMap Nominatim geocoding provider.
	ProviderTypeNominatim ProviderType = "nominatim"
	// ProviderTypeGoogle represents Google Maps geocoding provider.
	ProviderTypeGoogle ProviderType = "google"
)

// ErrAPIKeyRequired is returned when a provider that needs credentials has none.
var ErrAPIKeyRequired = errors.New("API key is required for Google provider")

// ProviderConfig holds configuration for creating a geocoding provider.
type ProviderConfig struct {
	Type      ProviderType  // Type of provider to create
	APIKey    string        // API key (used by Google provider)
	Endpoint  string        // Search endpoint override (used by Nominatim provider)
	UserAgent string        // User-Agent override (used by Nominatim provider)
	Country   string        // Comma separated ISO 3166-1 alpha-2 filter
	Language  string        // Preferred result language, empty for the API default
	Timeout   time.Duration // HTTP timeout per request
	Logger    *slog.Logger  // Logger for the provider
}

// NewProvider creates a geocoding provider based on the provided configuration.
//
// Supported provider types:
// - "nominatim": OpenStreetMap Nominatim API (free, no API key required)
// - "google": Google Maps Geocoding API (requires API key)
//
// Returns an error if the provider type is unsupported or if provider creation fails.
func NewProvider(config ProviderConfig) (Provider, error) {
	switch config.Type {
	case ProviderTypeNominatim:
		return newNominatimProvider(config), nil
	case ProviderTypeGoogle:
		return newGoogleProvider(config)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", config.Type)
	}
}

func newNominatimProvider(config ProviderConfig) Provider {
	return NewNominatimProvider(NominatimOptions{
		BaseURL:   config.Endpoint,
		UserAgent: config.UserAgent,
		Country:   config.Country,
		Language:  config.Language,
		Timeout:   config.Timeout,
	}, config.Logger)
}

// newGoogleProvider creates a Google Maps geocoding provider.
func newGoogleProvider(config ProviderConfig) (Provider, error) {
	if config.APIKey == "" {
		return nil, ErrAPIKeyRequired
	}

	clientOpts := []maps.ClientOption{
		maps.WithAPIKey(config.APIKey),
	}
	if config.Timeout > 0 {
		clientOpts = append(clientOpts, maps.WithHTTPClient(&http.Client{Timeout: config.Timeout}))
	}

	client, err := maps.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Maps client: %w", err)
	}

	return NewGoogleProvider(client, config.Country, config.Language, config.Logger), nil
}
