package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnixMillis(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Time
	}{
		{
			name:     "epoch",
			input:    "0",
			expected: time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "specific timestamp",
			input:    "1696320000000", // 2023-10-03 08:00:00 UTC
			expected: time.Date(2023, 10, 3, 8, 0, 0, 0, time.UTC),
		},
		{
			name:     "padded",
			input:    " 1696320000500 ",
			expected: time.Date(2023, 10, 3, 8, 0, 0, 500*int(time.Millisecond), time.UTC),
		},
		{
			name:     "exponent form",
			input:    "1.69632E12",
			expected: time.Date(2023, 10, 3, 8, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseUnixMillis(tt.input)
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(got), "expected %v, got %v", tt.expected, got)
		})
	}
}

func TestParseUnixMillis_Invalid(t *testing.T) {
	for _, input := range []string{"", "soon", "12:00"} {
		_, err := ParseUnixMillis(input)
		assert.Error(t, err, input)
	}
}

func TestFormatting(t *testing.T) {
	ts := time.Date(2024, 3, 7, 9, 5, 3, 0, time.UTC)

	assert.Equal(t, "09:05:03", ClockTime(ts, time.UTC))
	assert.Equal(t, "2024/03/07", SlashDate(ts, time.UTC))
	assert.Equal(t, "07-03-24", ShortDate(ts, time.UTC))

	plusTwo := time.FixedZone("plus2", 2*60*60)
	assert.Equal(t, "11:05:03", ClockTime(ts, plusTwo))
}

func TestDayBefore(t *testing.T) {
	day := time.Date(2024, 3, 7, 23, 30, 0, 0, time.UTC)

	assert.True(t, DayBefore(day.Add(-24*time.Hour), day, time.UTC))
	assert.False(t, DayBefore(day.Add(-23*time.Hour), day, time.UTC))
	assert.False(t, DayBefore(day, day, time.UTC))
	assert.False(t, DayBefore(day.Add(time.Hour), day, time.UTC))

	// 23:30 UTC is already the next day two hours east
	plusTwo := time.FixedZone("plus2", 2*60*60)
	earlier := day.Add(-3 * time.Hour)
	assert.False(t, DayBefore(earlier, day, time.UTC))
	assert.True(t, DayBefore(earlier, day, plusTwo))
}
