package domain

import (
	"encoding/json"
	"fmt"
)

// History is one calendar day of weather observations for one location.
// Every observation field is optional: nil means the source never reported
// it. Sunrise and Sunset are UTC epoch seconds; WindDirection is compass
// degrees; MoonPhase runs 0 through 1.
type History struct {
	Alias string `json:"alias,omitempty"`
	Date  Date   `json:"date"`

	TemperatureHigh *float64 `json:"temperature_high,omitempty"`
	TemperatureLow  *float64 `json:"temperature_low,omitempty"`
	TemperatureMean *float64 `json:"temperature_mean,omitempty"`
	DewPoint        *float64 `json:"dew_point,omitempty"`
	Humidity        *float64 `json:"humidity,omitempty"`

	PrecipitationChance *float64 `json:"precipitation_chance,omitempty"`
	PrecipitationType   *string  `json:"precipitation_type,omitempty"`
	PrecipitationAmount *float64 `json:"precipitation_amount,omitempty"`

	WindSpeed     *float64 `json:"wind_speed,omitempty"`
	WindGust      *float64 `json:"wind_gust,omitempty"`
	WindDirection *int64   `json:"wind_direction,omitempty"`

	CloudCover *float64 `json:"cloud_cover,omitempty"`
	Pressure   *float64 `json:"pressure,omitempty"`
	UVIndex    *float64 `json:"uv_index,omitempty"`
	Sunrise    *int64   `json:"sunrise,omitempty"`
	Sunset     *int64   `json:"sunset,omitempty"`
	MoonPhase  *float64 `json:"moon_phase,omitempty"`
	Visibility *float64 `json:"visibility,omitempty"`

	Description *string `json:"description,omitempty"`
}

// Encode serializes the history to its JSON document form, the wire format
// shared by archive entries and the document backend.
func (h History) Encode() ([]byte, error) {
	data, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("encode history %s %s: %v: %w", h.Alias, h.Date, err, ErrStorage)
	}
	return data, nil
}

// DecodeHistory parses a JSON history document. The alias is taken from the
// caller, not the document, because archives are keyed by location already
// and older documents may omit it. Unknown keys are ignored so newer
// documents stay readable.
func DecodeHistory(alias string, data []byte) (History, error) {
	var h History
	if err := json.Unmarshal(data, &h); err != nil {
		return History{}, fmt.Errorf("decode history for %s: %v: %w", alias, err, ErrCorruptDocument)
	}
	if h.Date.IsZero() {
		return History{}, fmt.Errorf("history for %s has no date: %w", alias, ErrCorruptDocument)
	}
	h.Alias = alias
	return h, nil
}

// Float64 returns a pointer to v. Convenience for building histories.
func Float64(v float64) *float64 { return &v }

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }
