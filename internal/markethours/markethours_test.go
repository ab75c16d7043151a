package markethours

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ist(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, IST)
}

func TestNSE_IsOpen(t *testing.T) {
	s := NSE()
	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before open", ist(2026, 3, 4, 9, 14), false},
		{"at open", ist(2026, 3, 4, 9, 15), true},
		{"midday", ist(2026, 3, 4, 12, 0), true},
		{"at close", ist(2026, 3, 4, 15, 30), false},
		{"saturday", ist(2026, 3, 7, 11, 0), false},
		{"holiday", ist(2026, 1, 26, 11, 0), false},
		{"utc input", time.Date(2026, 3, 4, 4, 0, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.IsOpen(tt.at))
		})
	}
}

func TestNSE_NextOpen(t *testing.T) {
	s := NSE()
	// Friday after close -> Monday open
	assert.Equal(t, ist(2026, 3, 9, 9, 15), s.NextOpen(ist(2026, 3, 6, 16, 0)))
	// early on a trading day -> same day
	assert.Equal(t, ist(2026, 3, 4, 9, 15), s.NextOpen(ist(2026, 3, 4, 7, 0)))
	// the day before Republic Day (Sunday) skips to Tuesday
	assert.Equal(t, ist(2026, 1, 27, 9, 15), s.NextOpen(ist(2026, 1, 25, 10, 0)))
	// inside the session
	now := ist(2026, 3, 4, 10, 0)
	assert.Equal(t, now, s.NextOpen(now))
}

func TestAlways(t *testing.T) {
	s, err := Named("")
	require.NoError(t, err)
	sat := ist(2026, 3, 7, 3, 0)
	assert.True(t, s.IsOpen(sat))
	assert.Equal(t, sat, s.NextOpen(sat))
	assert.Equal(t, "market always open", s.Status(sat))
}

func TestNamed_AndHolidays(t *testing.T) {
	_, err := Named("lse")
	assert.Error(t, err)

	s, err := Named("nse")
	require.NoError(t, err)
	day := ist(2026, 3, 4, 11, 0)
	require.True(t, s.IsOpen(day))
	require.NoError(t, s.AddHolidays("2026-03-04"))
	assert.False(t, s.IsOpen(day))
	assert.Error(t, s.AddHolidays("04/03/2026"))
}

func TestStatus(t *testing.T) {
	s := NSE()
	assert.Equal(t, "market open, closes in 1h30m", s.Status(ist(2026, 3, 4, 14, 0)))
	closed := s.Status(ist(2026, 3, 6, 16, 0))
	assert.True(t, strings.HasPrefix(closed, "market closed, opens Mon 09:15"), closed)
}
