package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type smsCapture struct {
	path string
	to   string
	from string
	body string
	user string
}

func notifierFixture(t *testing.T) (*Notifier, *smsCapture) {
	t.Helper()

	captured := &smsCapture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		captured.path = r.URL.Path
		captured.to = r.PostFormValue("To")
		captured.from = r.PostFormValue("From")
		captured.body = r.PostFormValue("Body")
		captured.user, _, _ = r.BasicAuth()
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.PhoneNumber = "+447700900000"
	cfg.Twilio = TwilioConfig{
		AccountSID: "AC123",
		AuthToken:  "secret",
		FromNumber: "+15005550006",
		APIBase:    srv.URL,
	}

	return NewNotifier(cfg, zap.NewNop()), captured
}

func TestNotifierSlotAvailable(t *testing.T) {
	n, captured := notifierFixture(t)

	n.SlotAvailable("2025-03-17", "14:30")

	assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", captured.path)
	assert.Equal(t, "+447700900000", captured.to)
	assert.Equal(t, "+15005550006", captured.from)
	assert.Equal(t, "AC123", captured.user)
	assert.Contains(t, captured.body, "2025-03-17")
	assert.Contains(t, captured.body, "14:30")
}

func TestNotifierSlotSelected(t *testing.T) {
	n, captured := notifierFixture(t)

	n.SlotSelected("Gateshead", "2025-03-17", "14:30", true)
	assert.Contains(t, captured.body, "Gateshead")
	assert.Contains(t, captured.body, "Short Notice")

	n.SlotSelected("Gateshead", "2025-03-17", "14:30", false)
	assert.Contains(t, captured.body, "Standard")
}

func TestNotifierDisabledWithoutCredentials(t *testing.T) {
	cfg := DefaultConfig()
	n := NewNotifier(cfg, zap.NewNop())

	assert.False(t, n.enabled())
	// Must be a silent no-op, not a panic or a network call.
	n.SlotAvailable("2025-03-17", "14:30")
	n.SlotSelected("Gateshead", "2025-03-17", "14:30", false)
}

func TestNotifierSwallowsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code": 21211}`, http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.PhoneNumber = "+447700900000"
	cfg.Twilio = TwilioConfig{AccountSID: "AC123", AuthToken: "secret", APIBase: srv.URL}

	n := NewNotifier(cfg, zap.NewNop())
	n.SlotAvailable("2025-03-17", "14:30") // must not panic or propagate
}
