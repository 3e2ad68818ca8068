// Package output writes geocoding results as CSV.
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/UnknownOlympus/propgeo/internal/models"
	"github.com/jszwec/csvutil"
)

// row is one CSV record. Field order defines the column order.
type row struct {
	Query       string `csv:"query"`
	DisplayName string `csv:"display_name"`
	Latitude    string `csv:"latitude"`
	Longitude   string `csv:"longitude"`
	Type        string `csv:"type"`
	Class       string `csv:"class"`
}

// WriteCSV writes a header row followed by one row per place to w.
// The header is written even when places is empty.
func WriteCSV(w io.Writer, places []*models.Place) error {
	writer := csv.NewWriter(w)
	enc := csvutil.NewEncoder(writer)

	if err := enc.EncodeHeader(row{}); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, place := range places {
		if place == nil {
			continue
		}
		if err := enc.Encode(newRow(place)); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}

	return nil
}

// WriteFile creates or truncates path and writes the CSV to it.
func WriteFile(path string, places []*models.Place) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output file: %w", cerr)
		}
	}()

	return WriteCSV(file, places)
}

func newRow(place *models.Place) row {
	return row{
		Query:       place.Label(),
		DisplayName: place.DisplayName,
		Latitude:    place.Lat.String(),
		Longitude:   place.Lon.String(),
		Type:        place.Type,
		Class:       place.Class,
	}
}
