// Package input gathers the property names to geocode from a file, the
// command line or standard input.
package input

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

var (
	// ErrFileNotFound is returned when the property file does not exist.
	ErrFileNotFound = errors.New("property file not found")
	// ErrNoInput is returned when no source yields property names.
	ErrNoInput = errors.New("no properties provided")
)

// Source describes where property names may come from. The first usable
// source wins: File, then Args, then Stdin when it is not a terminal.
type Source struct {
	File        string    // File is a path to a newline-separated list of names.
	Args        []string  // Args are names given on the command line.
	Stdin       io.Reader // Stdin is read when neither File nor Args yield names.
	Interactive bool      // Interactive reports whether Stdin is a terminal.
}

// Collect returns the trimmed, non-empty property names from the first
// available source, preserving their order and duplicates.
func Collect(src Source) ([]string, error) {
	if src.File != "" {
		return readFile(src.File)
	}

	if names := clean(src.Args); len(names) > 0 {
		return names, nil
	}

	if src.Interactive || src.Stdin == nil {
		return nil, ErrNoInput
	}

	names, err := readLines(src.Stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read standard input: %w", err)
	}

	return names, nil
}

func readFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to open property file: %w", err)
	}
	defer file.Close()

	names, err := readLines(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read property file %s: %w", path, err)
	}

	return names, nil
}

func readLines(r io.Reader) ([]string, error) {
	names := []string{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), 1<<20)
	for scanner.Scan() {
		if name := strings.TrimSpace(scanner.Text()); name != "" {
			names = append(names, name)
		}
	}

	return names, scanner.Err()
}

func clean(items []string) []string {
	names := make([]string, 0, len(items))
	for _, item := range items {
		if name := strings.TrimSpace(item); name != "" {
			names = append(names, name)
		}
	}

	return names
}
