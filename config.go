package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Booking modes.
const (
	ModeReschedule = "reschedule"
	ModeBooking    = "booking"
)

type Config struct {
	// BookingMode selects the flow: "reschedule" to move an existing booking
	// or "booking" to make a first-time one.
	BookingMode string `yaml:"booking_mode"`

	Preferences Preferences `yaml:"preferences"`

	InitialBooking InitialBookingConfig `yaml:"initial_booking"`

	QueueURL       string `yaml:"queue_url"`
	ApplicationURL string `yaml:"application_url"`

	// Operating window of the booking service, local time, "HH:MM". The
	// window may wrap past midnight.
	OpenTime  string `yaml:"open_time"`
	CloseTime string `yaml:"close_time"`

	MaxAttempts         int `yaml:"max_attempts"`
	MaxQueueChecks      int `yaml:"max_queue_checks"`
	AttemptDelaySeconds int `yaml:"attempt_delay_seconds"`

	// SolveManually pauses for a human instead of clicking the challenge.
	SolveManually      bool        `yaml:"solve_manually"`
	ManualSolveSeconds int         `yaml:"manual_solve_seconds"`
	ClickTarget        ClickTarget `yaml:"click_target"`

	Headless           bool   `yaml:"headless"`
	BlockImages        bool   `yaml:"block_images"`
	BrowserProfilePath string `yaml:"browser_profile_path"`
	ScreenshotDir      string `yaml:"screenshot_dir"`

	PhoneNumber string       `yaml:"phone_number"`
	Twilio      TwilioConfig `yaml:"twilio"`

	Log LogConfig `yaml:"log"`

	DebugMode bool `yaml:"debug_mode"`
}

// Preferences are the user's booking criteria. They are loaded once at
// startup and never mutated afterwards; flows copy anything they need to
// change (like the centre search list).
type Preferences struct {
	Licence    string   `yaml:"licence"`
	BookingRef string   `yaml:"booking_ref"`
	Centres    []string `yaml:"centres"`

	// Date bounds in "2006-01-02" form. Empty or "None" means unset.
	BeforeDate string `yaml:"before_date"`
	AfterDate  string `yaml:"after_date"`

	ExcludedDates []string `yaml:"excluded_dates"`

	// CurrentTestDate is the booking summary date string as the site shows
	// it ("Monday 2 January 2006 3:04PM"). The literal "Yes" means the user
	// wants the earliest test regardless of their current date.
	CurrentTestDate string `yaml:"current_test_date"`

	// FormattedCurrentTestDate is the same date in "2006-01-02" form, used
	// to keep the scanner from re-picking the slot we already hold.
	FormattedCurrentTestDate string `yaml:"formatted_current_test_date"`

	// AutoBook submits the final confirmation. When false the flow stops
	// after the reservation hold so the user can confirm by hand.
	AutoBook bool `yaml:"auto_book"`
}

type InitialBookingConfig struct {
	Postcode        string `yaml:"postcode"`
	CentreElementID string `yaml:"centre_element_id"`
}

// ClickTarget is where the challenge click lands, in page coordinates.
// When X2/Y2 are set they form the top-right corner of a rectangle whose
// bottom-left corner is X/Y, and the click lands at a random point inside.
type ClickTarget struct {
	X  float64 `yaml:"x"`
	Y  float64 `yaml:"y"`
	X2 float64 `yaml:"x2"`
	Y2 float64 `yaml:"y2"`
}

// HasRegion reports whether the target describes a usable rectangle.
func (t ClickTarget) HasRegion() bool {
	return t.X2 > t.X && t.Y2 > t.Y
}

type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	FromNumber string `yaml:"from_number"`

	// APIBase exists so tests can point the notifier at a local server.
	APIBase string `yaml:"api_base"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

func DefaultConfig() *Config {
	return &Config{
		BookingMode: ModeReschedule,
		Preferences: Preferences{
			CurrentTestDate: "Yes",
		},
		InitialBooking: InitialBookingConfig{
			Postcode:        "NE21PL",
			CentreElementID: "centre-name-957",
		},
		QueueURL: "https://queue.driverpracticaltest.dvsa.gov.uk/" +
			"?c=dvsatars&e=ibsredirectprod0915" +
			"&t=https%3A%2F%2Fdriverpracticaltest.dvsa.gov.uk%2Flogin&cid=en-GB",
		ApplicationURL:      "https://driverpracticaltest.dvsa.gov.uk/application",
		OpenTime:            "06:05",
		CloseTime:           "23:35",
		MaxAttempts:         4,
		MaxQueueChecks:      100,
		AttemptDelaySeconds: 60,
		SolveManually:       false,
		ManualSolveSeconds:  60,
		ClickTarget:         ClickTarget{X: 820, Y: 420},
		Headless:            false,
		BlockImages:         true,
		BrowserProfilePath:  filepath.Join(userDataDir(), "browser-profile"),
		ScreenshotDir:       "error_screenshots",
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  20,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
	}
}

// LoadConfig reads the config file, writing the defaults out first when the
// file does not exist yet.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := config.Save(path); err != nil {
			return nil, err
		}
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	mode := strings.ToLower(strings.TrimSpace(c.BookingMode))
	if mode != ModeReschedule && mode != ModeBooking {
		return fmt.Errorf("unknown booking_mode %q (want %q or %q)", c.BookingMode, ModeReschedule, ModeBooking)
	}
	c.BookingMode = mode

	if mode == ModeReschedule {
		if c.Preferences.Licence == "" {
			return fmt.Errorf("preferences.licence is required in reschedule mode")
		}
		if c.Preferences.BookingRef == "" {
			return fmt.Errorf("preferences.booking_ref is required in reschedule mode")
		}
	}

	if _, err := parseClockTime(c.OpenTime); err != nil {
		return fmt.Errorf("invalid open_time: %w", err)
	}
	if _, err := parseClockTime(c.CloseTime); err != nil {
		return fmt.Errorf("invalid close_time: %w", err)
	}

	if c.MaxAttempts <= 0 || c.MaxQueueChecks <= 0 {
		return fmt.Errorf("max_attempts and max_queue_checks must be positive")
	}

	return nil
}

func userDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./fastpass-data"
	}
	return filepath.Join(home, ".fastpass")
}
