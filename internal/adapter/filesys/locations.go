package filesys

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/weather-history-store/internal/domain"
)

// locationsFilename is the registry document inside the data directory. It
// is read wholesale and rewritten wholesale on any mutation.
const locationsFilename = "locations.json"

// locationsDocument is the on-disk shape of the registry.
type locationsDocument struct {
	Locations []domain.Location `json:"locations"`
}

// loadLocations reads the registry. A missing document is an empty registry,
// not an error — a fresh data directory has no locations yet.
func loadLocations(dir string) ([]domain.Location, error) {
	path := filepath.Join(dir, locationsFilename)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %v: %w", locationsFilename, err, domain.ErrStorage)
	}
	var doc locationsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %v: %w", locationsFilename, err, domain.ErrCorruptDocument)
	}
	return doc.Locations, nil
}

// saveLocations rewrites the registry through a temp file and atomic rename
// so a crash never leaves a half-written document behind.
func saveLocations(dir string, locations []domain.Location) error {
	data, err := json.MarshalIndent(locationsDocument{Locations: locations}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %v: %w", locationsFilename, err, domain.ErrStorage)
	}

	tmp, err := os.CreateTemp(dir, locationsFilename+".*.tmp")
	if err != nil {
		return fmt.Errorf("create %s temp file: %v: %w", locationsFilename, err, domain.ErrStorage)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %v: %w", locationsFilename, err, domain.ErrStorage)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %v: %w", locationsFilename, err, domain.ErrStorage)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %v: %w", locationsFilename, err, domain.ErrStorage)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, locationsFilename)); err != nil {
		return fmt.Errorf("replace %s: %v: %w", locationsFilename, err, domain.ErrStorage)
	}
	return nil
}

// findLocation returns the index of alias in locations, or -1.
func findLocation(locations []domain.Location, alias string) int {
	for i, l := range locations {
		if l.Alias == alias {
			return i
		}
	}
	return -1
}

// checkUnique enforces the registry's global uniqueness of name and alias.
// Names compare case-insensitively; aliases are lowercase by construction.
func checkUnique(locations []domain.Location, candidate domain.Location) error {
	for _, l := range locations {
		if l.Alias == candidate.Alias {
			return fmt.Errorf("location alias %q already exists: %w", candidate.Alias, domain.ErrConflict)
		}
		if strings.EqualFold(l.Name, candidate.Name) {
			return fmt.Errorf("location name %q already exists: %w", candidate.Name, domain.ErrConflict)
		}
	}
	return nil
}
