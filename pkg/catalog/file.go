package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// File is the on-disk format for extra catalog entries:
//
//	zones:
//	  - id: America/Halifax
//	    label: Halifax
type File struct {
	Zones []Entry `yaml:"zones"`
}

// ReadFile loads extra entries from a YAML file. Every ID must be loadable
// from the timezone database.
func ReadFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	return Parse(data)
}

// Parse decodes the YAML catalog format.
func Parse(data []byte) ([]Entry, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding catalog file: %w", err)
	}

	var errs []error
	entries := make([]Entry, 0, len(f.Zones))
	for i, z := range f.Zones {
		z.ID = strings.TrimSpace(z.ID)
		if z.ID == "" {
			errs = append(errs, fmt.Errorf("zone %d: missing id", i))
			continue
		}
		if _, err := time.LoadLocation(z.ID); err != nil {
			errs = append(errs, fmt.Errorf("zone %d (%s): %w", i, z.ID, err))
			continue
		}
		entries = append(entries, z)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return entries, nil
}
