package main

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// OperatingHours is the daily window during which the booking service accepts
// traffic. Minutes are counted from local midnight; the window may wrap past
// midnight (open 22:00, close 05:00).
type OperatingHours struct {
	openMin  int
	closeMin int
}

func NewOperatingHours(open, close string) (OperatingHours, error) {
	o, err := parseClockTime(open)
	if err != nil {
		return OperatingHours{}, err
	}
	c, err := parseClockTime(close)
	if err != nil {
		return OperatingHours{}, err
	}
	return OperatingHours{openMin: o, closeMin: c}, nil
}

// parseClockTime parses "HH:MM" into minutes since midnight.
func parseClockTime(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Contains reports whether t falls inside the window, inclusive at both ends.
func (h OperatingHours) Contains(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	if h.openMin <= h.closeMin {
		return h.openMin <= m && m <= h.closeMin
	}
	// Window wraps past midnight.
	return m >= h.openMin || m <= h.closeMin
}

// NextOpen returns the next instant at or after now when the window opens.
// If now is already inside the window it is returned unchanged.
func (h OperatingHours) NextOpen(now time.Time) time.Time {
	if h.Contains(now) {
		return now
	}
	open := time.Date(now.Year(), now.Month(), now.Day(), h.openMin/60, h.openMin%60, 0, 0, now.Location())
	if !open.After(now) {
		open = open.AddDate(0, 0, 1)
	}
	return open
}

// waitUntilOpen blocks until the operating window opens, logging progress
// every 30 seconds so long waits are visibly alive.
func waitUntilOpen(h OperatingHours, log *zap.Logger) {
	now := time.Now()
	if h.Contains(now) {
		return
	}

	target := h.NextOpen(now)
	log.Info("outside operating hours, waiting for opening",
		zap.Time("opens_at", target),
		zap.Duration("wait", target.Sub(now).Round(time.Second)))

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		remaining := time.Until(target)
		if remaining <= 0 {
			return
		}
		if remaining < 30*time.Second {
			time.Sleep(remaining)
			return
		}
		<-ticker.C
		log.Info("still waiting for opening hours",
			zap.Duration("remaining", time.Until(target).Round(time.Second)))
	}
}

// connectivityProbes are hosts expected to answer whenever the network is up.
var connectivityProbes = []string{
	"https://www.google.com",
	"https://www.cloudflare.com",
	"https://www.amazon.com",
}

// waitForInternet blocks until at least one probe host answers. Every probe
// round that fails entirely is followed by a one second pause.
func waitForInternet(log *zap.Logger) {
	client := resty.New().SetTimeout(5 * time.Second)

	for round := 1; ; round++ {
		for _, host := range connectivityProbes {
			resp, err := client.R().Head(host)
			if err == nil && !resp.IsError() {
				log.Info("internet connection confirmed", zap.String("host", host))
				return
			}
		}
		if round == 1 || round%30 == 0 {
			log.Warn("no internet connection, retrying", zap.Int("round", round))
		}
		time.Sleep(time.Second)
	}
}
