package main

import "strings"

// PageState is the classification of whatever the booking site is currently
// showing. It is derived from the page URL and rendered content and never
// persisted anywhere.
type PageState int

const (
	// StateOK means no known obstacle was detected and the page is usable.
	StateOK PageState = iota
	// StateQueue means the virtual waiting room is holding us.
	StateQueue
	// StateFirewall means the anti-bot interstitial is blocking the page.
	StateFirewall
	// StateLoginRequired means the credentials form is being shown.
	StateLoginRequired
	// StateError means the site served its generic error page.
	StateError
)

func (s PageState) String() string {
	switch s {
	case StateOK:
		return "ok"
	case StateQueue:
		return "queue"
	case StateFirewall:
		return "firewall"
	case StateLoginRequired:
		return "login_required"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Signatures the classifier matches against. The site ships no versioned API,
// so these substrings against the rendered markup are the whole protocol.
// Change them here and nowhere else.
const (
	queueHost         = "queue.driverpracticaltest.dvsa.gov.uk"
	firewallSignature = "request unsuccessful"
	firewallIncident  = "incident id"
	loginBanner       = "enter details below to access your booking"
	errorBanner       = "oops"
)

// ClassifyPage maps the current URL and page content to a PageState. Matching
// is case-insensitive and first-match-wins: queue URL beats everything, the
// firewall signature beats the login banner, the login banner beats the error
// banner. Pure function, no side effects.
func ClassifyPage(pageURL, content string) PageState {
	addr := strings.ToLower(pageURL)
	body := strings.ToLower(content)

	switch {
	case strings.Contains(addr, queueHost):
		return StateQueue
	case strings.Contains(body, firewallSignature) && strings.Contains(body, firewallIncident):
		return StateFirewall
	case strings.Contains(body, loginBanner):
		return StateLoginRequired
	case strings.Contains(body, errorBanner):
		return StateError
	default:
		return StateOK
	}
}

// Blocked reports whether the state prevents any further page interaction
// within the current session.
func (s PageState) Blocked() bool {
	return s == StateQueue || s == StateFirewall || s == StateLoginRequired || s == StateError
}
