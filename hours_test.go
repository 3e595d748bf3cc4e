package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clock(hour, min int) time.Time {
	return time.Date(2025, 3, 17, hour, min, 0, 0, time.UTC)
}

func TestParseClockTime(t *testing.T) {
	m, err := parseClockTime("06:05")
	require.NoError(t, err)
	assert.Equal(t, 6*60+5, m)

	m, err = parseClockTime("00:00")
	require.NoError(t, err)
	assert.Zero(t, m)

	for _, bad := range []string{"", "6am", "25:00", "12:61", "1205"} {
		_, err := parseClockTime(bad)
		assert.Error(t, err, bad)
	}
}

func TestOperatingHoursContains(t *testing.T) {
	h, err := NewOperatingHours("06:05", "23:35")
	require.NoError(t, err)

	assert.True(t, h.Contains(clock(6, 5)), "open bound is inclusive")
	assert.True(t, h.Contains(clock(23, 35)), "close bound is inclusive")
	assert.True(t, h.Contains(clock(12, 0)))
	assert.False(t, h.Contains(clock(6, 4)))
	assert.False(t, h.Contains(clock(23, 36)))
	assert.False(t, h.Contains(clock(2, 0)))
}

func TestOperatingHoursWrapsMidnight(t *testing.T) {
	h, err := NewOperatingHours("22:00", "05:00")
	require.NoError(t, err)

	assert.True(t, h.Contains(clock(23, 0)))
	assert.True(t, h.Contains(clock(1, 30)))
	assert.True(t, h.Contains(clock(22, 0)))
	assert.True(t, h.Contains(clock(5, 0)))
	assert.False(t, h.Contains(clock(12, 0)))
	assert.False(t, h.Contains(clock(21, 59)))
}

func TestOperatingHoursNextOpen(t *testing.T) {
	h, err := NewOperatingHours("06:05", "23:35")
	require.NoError(t, err)

	t.Run("inside window returns now unchanged", func(t *testing.T) {
		now := clock(12, 0)
		assert.Equal(t, now, h.NextOpen(now))
	})

	t.Run("before opening waits for today", func(t *testing.T) {
		got := h.NextOpen(clock(4, 0))
		assert.Equal(t, clock(6, 5), got)
	})

	t.Run("after closing waits for tomorrow", func(t *testing.T) {
		got := h.NextOpen(clock(23, 50))
		assert.Equal(t, clock(6, 5).AddDate(0, 0, 1), got)
	})
}

func TestNewOperatingHoursRejectsBadInput(t *testing.T) {
	_, err := NewOperatingHours("oops", "23:35")
	assert.Error(t, err)

	_, err = NewOperatingHours("06:05", "late")
	assert.Error(t, err)
}
