package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryEncodeDecodeRoundTrip(t *testing.T) {
	h := History{
		Alias:           "boise_id",
		Date:            NewDate(2020, time.January, 1),
		TemperatureHigh: Float64(41.3),
		TemperatureLow:  Float64(27.9),
		WindSpeed:       Float64(6.4),
		WindDirection:   Int64(270),
		Sunrise:         Int64(1577890620),
		Sunset:          Int64(1577923680),
		MoonPhase:       Float64(0.22),
		Description:     String("partly cloudy"),
	}

	data, err := h.Encode()
	require.NoError(t, err)

	back, err := DecodeHistory("boise_id", data)
	require.NoError(t, err)
	assert.Equal(t, h, back)
}

func TestDecodeHistory(t *testing.T) {
	t.Run("absent fields stay nil", func(t *testing.T) {
		h, err := DecodeHistory("boise_id", []byte(`{"date":"2020-01-01","temperature_high":41.3}`))
		require.NoError(t, err)
		require.NotNil(t, h.TemperatureHigh)
		assert.Equal(t, 41.3, *h.TemperatureHigh)
		assert.Nil(t, h.TemperatureLow)
		assert.Nil(t, h.Description)
	})

	t.Run("alias comes from the caller", func(t *testing.T) {
		h, err := DecodeHistory("boise_id", []byte(`{"alias":"stale","date":"2020-01-01"}`))
		require.NoError(t, err)
		assert.Equal(t, "boise_id", h.Alias)
	})

	t.Run("unknown keys are ignored", func(t *testing.T) {
		_, err := DecodeHistory("boise_id", []byte(`{"date":"2020-01-01","heat_index":99.1}`))
		assert.NoError(t, err)
	})

	t.Run("malformed JSON is corrupt", func(t *testing.T) {
		_, err := DecodeHistory("boise_id", []byte(`{"date":`))
		assert.ErrorIs(t, err, ErrCorruptDocument)
	})

	t.Run("missing date is corrupt", func(t *testing.T) {
		_, err := DecodeHistory("boise_id", []byte(`{"temperature_high":41.3}`))
		assert.ErrorIs(t, err, ErrCorruptDocument)
	})
}

func TestLocationValidate(t *testing.T) {
	valid := Location{Name: "Boise, ID", Alias: "boise_id", Longitude: "-116.2023", Latitude: "43.6007", TZ: "America/Boise"}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Location)
	}{
		{"blank name", func(l *Location) { l.Name = " " }},
		{"blank alias", func(l *Location) { l.Alias = "" }},
		{"alias with path separator", func(l *Location) { l.Alias = "boise/id" }},
		{"alias with uppercase", func(l *Location) { l.Alias = "Boise_ID" }},
		{"blank timezone", func(l *Location) { l.TZ = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := valid
			tt.mutate(&l)
			assert.ErrorIs(t, l.Validate(), ErrValidation)
		})
	}
}

func TestMetadataUnchanged(t *testing.T) {
	md := Metadata{Date: NewDate(2020, time.January, 1), Size: 512, StoreSize: 180, MTime: 1600000000}
	assert.True(t, md.Unchanged(512, 1600000000))
	assert.False(t, md.Unchanged(640, 1600000000))
	assert.False(t, md.Unchanged(512, 1600000500))
}
