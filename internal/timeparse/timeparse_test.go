package timeparse

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)

func TestParseDateFormats(t *testing.T) {
	want := Date{Year: 2025, Month: time.March, Day: 10}

	for _, input := range []string{"10/03/2025", "10-03-2025", "10 03 2025", " 10/03/2025 "} {
		t.Run(input, func(t *testing.T) {
			got, err := ParseDate(input, testNow)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestParseDateRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"month out of range", "32/13/2099"},
		{"day out of range", "31/04/2025"},
		{"not a leap year", "29/02/2025"},
		{"empty", ""},
		{"garbage", "next tuesday"},
		{"two digit year", "10/03/25"},
		{"past date", "28/02/2025"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDate(tt.input, testNow)
			var perr *ParseError
			require.Error(t, err)
			assert.True(t, errors.As(err, &perr), "expected *ParseError, got %T", err)
		})
	}
}

func TestParseDateAllowsToday(t *testing.T) {
	got, err := ParseDate("01/03/2025", testNow)
	require.NoError(t, err)
	assert.Equal(t, DateOf(testNow), got)
}

func TestParseDateRoundTrip(t *testing.T) {
	dates := []Date{
		{Year: 2025, Month: time.March, Day: 10},
		{Year: 2025, Month: time.December, Day: 31},
		{Year: 2028, Month: time.February, Day: 29},
	}
	for _, d := range dates {
		t.Run(d.String(), func(t *testing.T) {
			got, err := ParseDate(d.String(), testNow)
			require.NoError(t, err)
			assert.Equal(t, d, got)

			iso, err := ParseISO(d.ISO())
			require.NoError(t, err)
			assert.Equal(t, d, iso)
		})
	}
}

func TestParseTimeFormats(t *testing.T) {
	tests := []struct {
		input string
		want  TimeOfDay
	}{
		{"9:30", TimeOfDay{9, 30}},
		{"14:00", TimeOfDay{14, 0}},
		{"0930", TimeOfDay{9, 30}},
		{"1400", TimeOfDay{14, 0}},
		{"2pm", TimeOfDay{14, 0}},
		{"2PM", TimeOfDay{14, 0}},
		{"12pm", TimeOfDay{12, 0}},
		{"12am", TimeOfDay{0, 0}},
		{"9:15am", TimeOfDay{9, 15}},
		{"11 pm", TimeOfDay{23, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTime(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTimeRejectsInvalid(t *testing.T) {
	for _, input := range []string{"25:99", "24:00", "9:75", "13pm", "0am", "", "noonish", "123"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseTime(input)
			var perr *ParseError
			require.Error(t, err)
			assert.True(t, errors.As(err, &perr), "expected *ParseError, got %T", err)
		})
	}
}

func TestParseTimeRoundTrip(t *testing.T) {
	for _, tod := range []TimeOfDay{{0, 0}, {9, 30}, {14, 0}, {23, 45}} {
		t.Run(tod.String(), func(t *testing.T) {
			got, err := ParseTime(tod.String())
			require.NoError(t, err)
			assert.Equal(t, tod, got)
		})
	}
}

func TestMinutesRoundTrip(t *testing.T) {
	for _, m := range []int{0, 45, 570, 1439} {
		assert.Equal(t, m, FromMinutes(m).Minutes())
	}
}
