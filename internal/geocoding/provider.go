package geocoding

import (
	"context"
	"errors"

	"github.com/UnknownOlympus/propgeo/internal/models"
)

// ErrNotFound is returned when a provider answers successfully but has no
// match for the query. Callers treat it as a per-query miss, not a failure.
var ErrNotFound = errors.New("no geocoding results")

// Provider is an interface that defines a method for geocoding a property name.
// The Geocode method takes a context and a query string as input,
// and returns the best matching place and an error if any occurs.
type Provider interface {
	Geocode(ctx context.Context, query string) (*models.Place, error)
}

// notFoundError carries the query that produced no results.
type notFoundError struct {
	query string
}

func (e *notFoundError) Error() string {
	return "No results for '" + e.query + "'."
}

func (e *notFoundError) Unwrap() error {
	return ErrNotFound
}

// NotFound returns an error for a query without results. It matches
// ErrNotFound with errors.Is.
func NotFound(query string) error {
	return &notFoundError{query: query}
}
