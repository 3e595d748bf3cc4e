package main

import (
	"errors"
	"strings"

	"go.uber.org/zap"
)

// BookingOutcome is the terminal result of the booking finalizer.
type BookingOutcome int

const (
	// OutcomeFailed means the confirm sequence could not be completed.
	OutcomeFailed BookingOutcome = iota
	// OutcomeBooked means the final confirmation went through.
	OutcomeBooked
	// OutcomeSlotTaken means another candidate grabbed the slot first.
	// Not retryable: the slot is gone.
	OutcomeSlotTaken
	// OutcomeReserved means the slot is held but auto-book is off, so we
	// stopped short of the final confirmation. This is a success.
	OutcomeReserved
)

func (o BookingOutcome) String() string {
	switch o {
	case OutcomeBooked:
		return "booked"
	case OutcomeSlotTaken:
		return "slot-taken"
	case OutcomeReserved:
		return "reserved"
	default:
		return "failed"
	}
}

// Content markers the finalizer watches for, matched lowercase.
const (
	slotTakenBanner      = "the time chosen is no longer available"
	challengeStuckBanner = "why am i seeing this page"
	confirmFailedMark    = "imperva"
)

// errElementMissing is returned by session interaction helpers when the
// element is simply not on the page, as opposed to a protocol failure.
var errElementMissing = errors.New("element not present on page")

// bookingPage is the slice of session behavior the finalizer drives. Tests
// substitute a scripted fake.
type bookingPage interface {
	// ClickCandidate presses the "I am the candidate" button. Returns
	// errElementMissing when the button is not on the page.
	ClickCandidate() error
	// EnterMainFrame switches content reads into the challenge iframe when
	// one is present. Best effort.
	EnterMainFrame()
	// Content returns the current frame's rendered text.
	Content() string
	SolveChallenge() bool
	Refresh() error
	Sleep(base, jitter float64)
	// ConfirmChanges presses the final confirmation button.
	ConfirmChanges() error
	CurrentState() PageState
}

const maxBookingAttempts = 4

// finalizeBooking drives the confirm sequence once a slot has been selected:
// identify as the candidate, get past any interposed challenge, and - only
// when autoBook is set - submit the final confirmation.
//
// The slot-taken race is checked on every attempt and ends the flow
// immediately; retrying cannot bring the slot back.
func finalizeBooking(p bookingPage, log *zap.Logger, autoBook bool) BookingOutcome {
	candidateClicked := false
	reserved := false

	for attempt := 1; attempt <= maxBookingAttempts; attempt++ {
		log.Info("booking attempt", zap.Int("attempt", attempt), zap.Int("max", maxBookingAttempts))
		p.Sleep(0.3, 0)

		if !candidateClicked {
			err := p.ClickCandidate()
			if errors.Is(err, errElementMissing) {
				// No candidate button usually means the reservation is
				// already held for us.
				log.Info("candidate button absent, slot appears already reserved")
				reserved = true
				break
			}
			if err != nil {
				log.Warn("candidate click failed", zap.Error(err))
				continue
			}
			candidateClicked = true
		}

		p.EnterMainFrame()

		if strings.Contains(strings.ToLower(p.Content()), slotTakenBanner) {
			log.Warn("slot was taken by another candidate")
			return OutcomeSlotTaken
		}

		if p.SolveChallenge() {
			reserved = true
			break
		}
		log.Warn("challenge not resolved during booking")

		// Possibly still parked on the interstitial; give it a long pause
		// and a refresh before the next attempt.
		if strings.Contains(strings.ToLower(p.Content()), challengeStuckBanner) {
			log.Info("still behind challenge interstitial, backing off before refresh")
			p.Sleep(20, 4)
			if err := p.Refresh(); err != nil {
				log.Warn("refresh failed", zap.Error(err))
			}
		}
	}

	if !reserved {
		log.Warn("could not complete booking steps within attempt ceiling")
		return OutcomeFailed
	}

	if !autoBook {
		log.Info("auto-book disabled, stopping before final confirmation")
		return OutcomeReserved
	}

	log.Info("auto-book enabled, submitting final confirmation")
	if err := p.ConfirmChanges(); err != nil {
		log.Error("final confirmation click failed", zap.Error(err))
		return OutcomeFailed
	}
	p.Sleep(1, 0)

	if p.CurrentState() == StateFirewall {
		log.Warn("firewall triggered at final confirmation")
		p.Sleep(40, 4)
		if err := p.Refresh(); err != nil {
			log.Warn("refresh failed", zap.Error(err))
		}
		if p.CurrentState() == StateFirewall {
			p.SolveChallenge()
			if strings.Contains(strings.ToLower(p.Content()), confirmFailedMark) {
				log.Error("still behind firewall, booking confirmation failed")
				return OutcomeFailed
			}
		}
	}

	log.Info("booking confirmation succeeded")
	return OutcomeBooked
}
