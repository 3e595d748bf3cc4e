package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// maxPreFormChallengeRounds bounds the queue/challenge rounds allowed before
// the application form must be reachable.
const maxPreFormChallengeRounds = 5

// InitialBookingFlow makes a first-time booking: pick the test type, enter
// the licence, choose a preferred date and centre, and click through to the
// first bookable day on the centre's calendar.
type InitialBookingFlow struct {
	cfg     *Config
	log     *zap.Logger
	session *BotSession
}

func NewInitialBookingFlow(cfg *Config, log *zap.Logger, session *BotSession) *InitialBookingFlow {
	return &InitialBookingFlow{cfg: cfg, log: log, session: session}
}

func (f *InitialBookingFlow) Run() error {
	s := f.session

	f.log.Info("navigating to application form", zap.String("url", f.cfg.ApplicationURL))
	if err := s.Navigate(f.cfg.ApplicationURL); err != nil {
		return err
	}
	s.Sleep(2, 0)

	f.clearEntryObstacles()

	if err := f.fillApplication(); err != nil {
		return err
	}

	html := s.PageHTML()
	date, ok := firstBookableDate(html)
	if !ok {
		f.log.Warn("no bookable dates on the calendar")
		s.CaptureScreenshot("no_bookable_dates")
		return nil
	}

	f.log.Info("clicking first bookable date", zap.String("date", date))
	if err := s.clickSelector(fmt.Sprintf(`a[%s=%q]`, calendarDateAttr, date)); err != nil {
		return err
	}
	s.Sleep(2, 0)

	f.log.Info("application submitted through to the centre calendar")
	return nil
}

// clearEntryObstacles burns through any queue or challenge sitting between
// us and the application form, bounded at a handful of rounds.
func (f *InitialBookingFlow) clearEntryObstacles() {
	s := f.session

	for round := 0; round < maxPreFormChallengeRounds; round++ {
		switch state := s.CurrentState(); state {
		case StateQueue, StateFirewall:
			f.log.Info("entry obstacle detected", zap.Stringer("state", state))
			if s.SolveChallenge() {
				return
			}
			f.log.Warn("challenge not resolved, refreshing")
			if err := s.Refresh(); err != nil {
				f.log.Warn("refresh failed", zap.Error(err))
			}
			s.Sleep(3, 0)

		case StateError:
			f.log.Warn("error page at application entry, refreshing")
			s.Sleep(3, 0)
			if err := s.Refresh(); err != nil {
				f.log.Warn("refresh failed", zap.Error(err))
			}

		default:
			return
		}
	}
}

// fillApplication walks the multi-step application form up to the centre
// calendar. The preferred date is a week out; any sooner slot still shows on
// the calendar.
func (f *InitialBookingFlow) fillApplication() error {
	s := f.session

	if err := s.clickID("test-type-car"); err != nil {
		return err
	}
	s.Sleep(1, 0)

	if err := s.typeInto("driving-licence", f.cfg.Preferences.Licence, false); err != nil {
		return err
	}
	s.Sleep(1, 0)

	if err := s.clickID("special-needs-none"); err != nil {
		return err
	}
	s.Sleep(0.5, 0)

	if err := s.clickID("driving-licence-submit"); err != nil {
		return err
	}
	s.Sleep(3, 0)

	preferred := time.Now().AddDate(0, 0, 7).Format("02/01/06")
	f.log.Info("entering preferred test date", zap.String("date", preferred))
	if err := s.typeInto("test-choice-calendar", preferred, false); err != nil {
		return err
	}
	s.Sleep(1, 0)

	if err := s.clickID("driving-licence-submit"); err != nil {
		return err
	}
	s.Sleep(2, 0)

	f.log.Info("entering centre postcode", zap.String("postcode", f.cfg.InitialBooking.Postcode))
	if err := s.typeInto("test-centres-input", f.cfg.InitialBooking.Postcode, false); err != nil {
		return err
	}
	s.Sleep(1, 0)

	if err := s.clickID("test-centres-submit"); err != nil {
		return err
	}
	s.Sleep(3, 0)

	f.log.Info("selecting test centre", zap.String("element", f.cfg.InitialBooking.CentreElementID))
	if err := s.clickID(f.cfg.InitialBooking.CentreElementID); err != nil {
		return err
	}
	s.Sleep(3, 0)

	return nil
}
