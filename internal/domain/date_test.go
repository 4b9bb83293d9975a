package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	t.Run("valid ISO date", func(t *testing.T) {
		d, err := ParseDate("2020-01-31")
		require.NoError(t, err)
		assert.Equal(t, NewDate(2020, time.January, 31), d)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := ParseDate("01/31/2020")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("rejects impossible day", func(t *testing.T) {
		_, err := ParseDate("2020-02-30")
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestDateJSONRoundTrip(t *testing.T) {
	d := NewDate(2020, time.July, 4)
	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2020-07-04"`, string(data))

	var back Date
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, d, back)
}

func TestDateNextCrossesMonth(t *testing.T) {
	assert.Equal(t, NewDate(2020, time.March, 1), NewDate(2020, time.February, 29).Next())
	assert.Equal(t, NewDate(2021, time.January, 1), NewDate(2020, time.December, 31).Next())
}

func TestNewDateRange(t *testing.T) {
	t.Run("end before start fails", func(t *testing.T) {
		_, err := NewDateRange(NewDate(2020, time.January, 5), NewDate(2020, time.January, 1))
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("single day allowed", func(t *testing.T) {
		r, err := NewDateRange(NewDate(2020, time.January, 5), NewDate(2020, time.January, 5))
		require.NoError(t, err)
		assert.True(t, r.IsOneDay())
	})
}

func TestDateRangeDays(t *testing.T) {
	r, err := NewDateRange(NewDate(2020, time.January, 30), NewDate(2020, time.February, 2))
	require.NoError(t, err)

	days := r.Days()
	require.Len(t, days, 4)
	assert.Equal(t, NewDate(2020, time.January, 30), days[0])
	assert.Equal(t, NewDate(2020, time.February, 2), days[3])

	assert.True(t, r.Covers(NewDate(2020, time.January, 31)))
	assert.False(t, r.Covers(NewDate(2020, time.February, 3)))
}

func TestGroupDates(t *testing.T) {
	tests := []struct {
		name  string
		dates []string
		want  []string
	}{
		{"empty", nil, nil},
		{"single", []string{"2020-01-01"}, []string{"2020-01-01"}},
		{"contiguous run", []string{"2020-01-01", "2020-01-02", "2020-01-03"}, []string{"2020-01-01 thru 2020-01-03"}},
		{"gap splits", []string{"2020-01-01", "2020-01-02", "2020-01-05"}, []string{"2020-01-01 thru 2020-01-02", "2020-01-05"}},
		{"unsorted with duplicates", []string{"2020-01-02", "2020-01-01", "2020-01-02"}, []string{"2020-01-01 thru 2020-01-02"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dates []Date
			for _, s := range tt.dates {
				d, err := ParseDate(s)
				require.NoError(t, err)
				dates = append(dates, d)
			}
			var got []string
			for _, r := range GroupDates(dates) {
				got = append(got, r.String())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
