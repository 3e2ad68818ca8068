package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Place represents a single geocoding match returned by a provider.
// Coordinates are kept as the decimal text the API returned so they are
// written out untouched.
type Place struct {
	Query       string          `json:"-"`            // Query is the property name that produced this match.
	PlaceID     json.RawMessage `json:"place_id"`     // PlaceID is the provider's identifier as sent, number or string.
	Name        string          `json:"name"`         // Name is the place name, often empty for plain addresses.
	DisplayName string          `json:"display_name"` // DisplayName is the full formatted address.
	Lat         Coordinate      `json:"lat"`          // Lat is the latitude in decimal degrees.
	Lon         Coordinate      `json:"lon"`          // Lon is the longitude in decimal degrees.
	Type        string          `json:"type"`         // Type is the place type tag (house, building, ...).
	Class       string          `json:"class"`        // Class is the place class tag (building, amenity, ...).
	Address     map[string]any  `json:"address"`      // Address holds the address breakdown when requested.
}

// Label returns the value written to the query column: the place name when the
// provider has one, else the display name.
func (p *Place) Label() string {
	if p.Name != "" {
		return p.Name
	}

	return p.DisplayName
}

// Coordinate is a decimal degree value in its original textual form.
// It decodes from a JSON string ("30.27") as well as a bare number (30.27).
type Coordinate string

// UnmarshalJSON implements json.Unmarshaler.
func (c *Coordinate) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Coordinate(s)

		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("coordinate %s is neither a string nor a number: %w", data, err)
	}
	*c = Coordinate(n)

	return nil
}

func (c Coordinate) String() string {
	return string(c)
}
