package main

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const twilioAPIBase = "https://api.twilio.com"

// Notifier sends SMS alerts through the Twilio Messages API. Dispatch is
// fire-and-forget: a failed notification is logged and swallowed, it must
// never interrupt the booking flow.
type Notifier struct {
	client *resty.Client
	twilio TwilioConfig
	to     string
	log    *zap.Logger
}

// NewNotifier builds the notifier. When the Twilio credentials or the target
// phone number are missing it comes back disabled and every send is a no-op.
func NewNotifier(cfg *Config, log *zap.Logger) *Notifier {
	n := &Notifier{twilio: cfg.Twilio, to: cfg.PhoneNumber, log: log}

	if cfg.Twilio.AccountSID == "" || cfg.Twilio.AuthToken == "" || cfg.PhoneNumber == "" {
		log.Info("sms notifications disabled (no twilio credentials or phone number)")
		return n
	}

	base := cfg.Twilio.APIBase
	if base == "" {
		base = twilioAPIBase
	}

	n.client = resty.New().
		SetBaseURL(base).
		SetTimeout(10*time.Second).
		SetBasicAuth(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken)

	return n
}

func (n *Notifier) enabled() bool {
	return n != nil && n.client != nil
}

// SlotAvailable alerts that a qualifying slot showed up on the calendar.
func (n *Notifier) SlotAvailable(date, timeStr string) {
	n.send(fmt.Sprintf("Tests are available on %s at %s.", date, timeStr))
}

// SlotSelected alerts that a slot was actually chosen for booking.
func (n *Notifier) SlotSelected(centre, date, timeStr string, shortNotice bool) {
	kind := "Standard"
	if shortNotice {
		kind = "Short Notice"
	}
	n.send(fmt.Sprintf("Test found at %s!\nDate: %s, Time: %s, %s.", centre, date, timeStr, kind))
}

func (n *Notifier) send(body string) {
	if !n.enabled() {
		return
	}

	resp, err := n.client.R().
		SetFormData(map[string]string{
			"To":   n.to,
			"From": n.twilio.FromNumber,
			"Body": body,
		}).
		Post(fmt.Sprintf("/2010-04-01/Accounts/%s/Messages.json", n.twilio.AccountSID))
	if err != nil {
		n.log.Warn("sms dispatch failed", zap.Error(err))
		return
	}
	if resp.IsError() {
		n.log.Warn("sms dispatch rejected",
			zap.Int("status", resp.StatusCode()),
			zap.String("response", resp.String()))
		return
	}

	n.log.Info("sms sent", zap.String("to", n.to))
}
