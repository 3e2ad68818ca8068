package geocoding

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/UnknownOlympus/propgeo/internal/models"
	"googlemaps.github.io/maps"
)

// googleClass is reported in the class column for Google matches, which carry
// no OSM class tag.
const googleClass = "google"

// GoogleProvider is a struct that holds the client for Google Maps API
// and a logger for logging purposes. It is used to interact with the
// Google Maps geocoding services.
type GoogleProvider struct {
	client   GoogleAPIClient // client is the Google Maps API client
	country  string          // country restricts matches to one ISO 3166-1 country
	language string          // language of the formatted address
	log      *slog.Logger    // log is the logger for logging operations
}

type GoogleAPIClient interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// NewGoogleProvider initializes a new GoogleProvider with the given client, filters and logger.
// Google's component filter takes a single country, so only the first code of
// a comma separated list is used.
func NewGoogleProvider(client GoogleAPIClient, country, language string, log *slog.Logger) *GoogleProvider {
	country, _, _ = strings.Cut(country, ",")

	return &GoogleProvider{
		client:   client,
		country:  strings.TrimSpace(country),
		language: language,
		log:      log,
	}
}

// Geocode takes a context and a query string as input, and returns the best match
// for it using the Google Maps Geocoding API, shaped like a Nominatim result.
func (gp *GoogleProvider) Geocode(ctx context.Context, query string) (*models.Place, error) {
	gp.log.DebugContext(ctx, "Geocoding using Google Maps", "query", query)

	req := gp.request(query)
	geocodeResponse, err := gp.client.Geocode(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to geocode address: %w", err)
	}

	if len(geocodeResponse) == 0 {
		return nil, NotFound(query)
	}

	result := geocodeResponse[0]
	place := &models.Place{
		Query:       query,
		DisplayName: result.FormattedAddress,
		Lat:         models.Coordinate(strconv.FormatFloat(result.Geometry.Location.Lat, 'f', -1, 64)),
		Lon:         models.Coordinate(strconv.FormatFloat(result.Geometry.Location.Lng, 'f', -1, 64)),
		Class:       googleClass,
	}
	if len(result.Types) > 0 {
		place.Type = result.Types[0]
	}

	return place, nil
}

func (gp *GoogleProvider) request(query string) *maps.GeocodingRequest {
	req := &maps.GeocodingRequest{Address: query, Language: gp.language}
	if gp.country != "" {
		req.Components = map[maps.Component]string{maps.ComponentCountry: gp.country}
	}

	return req
}
