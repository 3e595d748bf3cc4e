package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigWritesDefaultsWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.FileExists(t, path)
	assert.Equal(t, ModeReschedule, cfg.BookingMode)
	assert.Equal(t, "Yes", cfg.Preferences.CurrentTestDate)
	assert.Equal(t, 4, cfg.MaxAttempts)
	assert.Equal(t, 100, cfg.MaxQueueChecks)
	assert.Equal(t, "06:05", cfg.OpenTime)
	assert.Equal(t, "23:35", cfg.CloseTime)
	assert.True(t, cfg.BlockImages)
}

func TestLoadConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")

	cfg := DefaultConfig()
	cfg.Preferences.Licence = "ABCDE123456FG7HI"
	cfg.Preferences.BookingRef = "12345678"
	cfg.Preferences.Centres = []string{"Gateshead", "Sunderland"}
	cfg.Preferences.ExcludedDates = []string{"2025-03-10", "2025-03-11"}
	cfg.Preferences.BeforeDate = "2025-06-01"
	cfg.Preferences.AutoBook = true
	cfg.PhoneNumber = "+447700900000"
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, cfg.Preferences, loaded.Preferences)
	assert.Equal(t, cfg.PhoneNumber, loaded.PhoneNumber)
	assert.Equal(t, cfg.ClickTarget, loaded.ClickTarget)
}

func TestLoadConfigRejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("booking_mode: [unclosed"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Preferences.Licence = "ABCDE123456FG7HI"
		cfg.Preferences.BookingRef = "12345678"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults with credentials pass",
			mutate: func(c *Config) {},
		},
		{
			name:    "unknown mode",
			mutate:  func(c *Config) { c.BookingMode = "panic" },
			wantErr: "booking_mode",
		},
		{
			name:    "reschedule needs a licence",
			mutate:  func(c *Config) { c.Preferences.Licence = "" },
			wantErr: "licence",
		},
		{
			name:    "reschedule needs a booking reference",
			mutate:  func(c *Config) { c.Preferences.BookingRef = "" },
			wantErr: "booking_ref",
		},
		{
			name: "booking mode needs no credentials",
			mutate: func(c *Config) {
				c.BookingMode = ModeBooking
				c.Preferences.Licence = ""
				c.Preferences.BookingRef = ""
			},
		},
		{
			name:    "bad open time",
			mutate:  func(c *Config) { c.OpenTime = "6am" },
			wantErr: "open_time",
		},
		{
			name:    "bad close time",
			mutate:  func(c *Config) { c.CloseTime = "25:00" },
			wantErr: "close_time",
		},
		{
			name:    "zero attempt ceiling",
			mutate:  func(c *Config) { c.MaxAttempts = 0 },
			wantErr: "must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfigValidateNormalizesMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BookingMode = " Booking "

	require.NoError(t, cfg.Validate())
	assert.Equal(t, ModeBooking, cfg.BookingMode)
}

func TestClickTargetHasRegion(t *testing.T) {
	assert.False(t, ClickTarget{X: 820, Y: 420}.HasRegion())
	assert.False(t, ClickTarget{X: 820, Y: 420, X2: 820, Y2: 500}.HasRegion())
	assert.True(t, ClickTarget{X: 700, Y: 400, X2: 900, Y2: 460}.HasRegion())
}
