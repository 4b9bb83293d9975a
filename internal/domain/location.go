package domain

import (
	"fmt"
	"strings"
)

// Location identifies a place weather history is kept for. Name and Alias
// are each globally unique; Alias doubles as the storage key, so it must be
// filesystem safe. Coordinates stay decimal strings to preserve the source
// precision.
type Location struct {
	Name      string `json:"name"`
	Alias     string `json:"alias"`
	Longitude string `json:"longitude"`
	Latitude  string `json:"latitude"`
	TZ        string `json:"tz"`
}

// Validate checks the fields required before a location may be added.
func (l Location) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("location name is required: %w", ErrValidation)
	}
	if err := ValidateAlias(l.Alias); err != nil {
		return err
	}
	if l.TZ == "" {
		return fmt.Errorf("location %q timezone is required: %w", l.Alias, ErrValidation)
	}
	return nil
}

// ValidateAlias rejects aliases that cannot serve as storage keys. Aliases
// become archive filenames and URL path segments, so only lowercase
// alphanumerics and underscores are allowed.
func ValidateAlias(alias string) error {
	if alias == "" {
		return fmt.Errorf("location alias is required: %w", ErrValidation)
	}
	for _, r := range alias {
		ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_'
		if !ok {
			return fmt.Errorf("alias %q may only contain [a-z0-9_]: %w", alias, ErrValidation)
		}
	}
	return nil
}

// LocationUpdate carries the fields an existing location may be reassigned.
// Identity (name, alias) is immutable after add; only the physical facts may
// change. Nil means "leave unchanged".
type LocationUpdate struct {
	Longitude *string
	Latitude  *string
	TZ        *string
}

// Apply copies the set fields onto a location.
func (u LocationUpdate) Apply(l *Location) {
	if u.Longitude != nil {
		l.Longitude = *u.Longitude
	}
	if u.Latitude != nil {
		l.Latitude = *u.Latitude
	}
	if u.TZ != nil {
		l.TZ = *u.TZ
	}
}
