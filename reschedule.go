package main

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const cancelledBanner = "your booking has been cancelled."

// RescheduleFlow moves an existing booking to an earlier slot: pass the
// queue, log in with the licence and booking reference, then hunt the
// calendar for a qualifying date and hand it to the finalizer.
type RescheduleFlow struct {
	cfg      *Config
	log      *zap.Logger
	session  *BotSession
	notifier *Notifier

	// centres is this run's centre search list. It starts as a copy of the
	// preference list and may be replaced by the centre parsed off the
	// booking summary in earliest-test mode.
	centres []string
}

func NewRescheduleFlow(cfg *Config, log *zap.Logger, session *BotSession, notifier *Notifier) *RescheduleFlow {
	centres := make([]string, len(cfg.Preferences.Centres))
	copy(centres, cfg.Preferences.Centres)

	return &RescheduleFlow{
		cfg:      cfg,
		log:      log,
		session:  session,
		notifier: notifier,
		centres:  centres,
	}
}

// Run executes one full reschedule attempt. Expected dead ends (queue
// exhaustion, bad credentials, no qualifying slot) end the attempt quietly;
// only infrastructure failures come back as errors.
func (f *RescheduleFlow) Run() error {
	if err := f.login(); err != nil {
		return err
	}
	if !f.session.Active() {
		f.log.Info("session not active after login, ending attempt")
		return nil
	}
	return f.searchAndBook()
}

func (f *RescheduleFlow) login() error {
	s := f.session

	f.log.Info("navigating to queue entry", zap.String("url", f.cfg.QueueURL))
	if err := s.Navigate(f.cfg.QueueURL); err != nil {
		return err
	}

	state := drainQueue(s, f.log, f.cfg.MaxQueueChecks)
	if state == StateError {
		s.markInactive("error page while draining queue")
		return nil
	}

	if err := f.enterCredentials(); err != nil {
		f.log.Error("credential entry failed", zap.Error(err))
	}

	// The login submit is a favourite spot for the firewall to interpose.
	if s.CurrentState() == StateFirewall {
		f.log.Warn("firewall triggered after login submit")
		s.Sleep(2, 5)
		if s.SolveChallenge() {
			s.Sleep(3, 0)
			if s.CurrentState() == StateFirewall {
				f.log.Warn("still behind firewall, backing off")
				s.Sleep(20, 4)
			}
		} else {
			f.log.Warn("challenge not resolved after login submit")
		}
		if err := s.Refresh(); err != nil {
			f.log.Warn("refresh failed", zap.Error(err))
		}
	}

	if strings.Contains(s.CurrentURL(), "loginError=true") {
		s.markInactive("licence or booking reference rejected")
		return nil
	}

	html := s.PageHTML()

	testDate, testCentre := parseBookingSummary(html)
	if testDate != "" {
		f.log.Info("current booking", zap.String("date", testDate), zap.String("centre", testCentre))
	} else {
		f.log.Warn("could not parse booking summary, unusual page layout")
	}

	if strings.Contains(strings.ToLower(html), cancelledBanner) {
		s.markInactive("booking has been cancelled")
		return nil
	}

	if err := f.openSearchPage(testCentre); err != nil {
		f.log.Error("could not reach the slot search page", zap.Error(err))
		s.markInactive("post-login navigation failed")
		return nil
	}

	if final := s.CurrentState(); final.Blocked() {
		s.markInactive("post-login page state " + final.String())
	} else {
		s.markActive()
	}
	return nil
}

func (f *RescheduleFlow) enterCredentials() error {
	s := f.session

	if err := s.typeInto("driving-licence-number", f.cfg.Preferences.Licence, false); err != nil {
		return err
	}
	if err := s.typeInto("application-reference-number", f.cfg.Preferences.BookingRef, false); err != nil {
		return err
	}

	s.Sleep(1, 1)
	if err := s.clickID("booking-login"); err != nil {
		return err
	}
	s.Sleep(3, 1)

	f.log.Info("credentials submitted")
	return nil
}

// openSearchPage walks from the booking summary to the page with the slot
// calendar: in earliest-test mode via the date-change path, otherwise via the
// centre-change path.
func (f *RescheduleFlow) openSearchPage(summaryCentre string) error {
	s := f.session

	if strings.Contains(f.cfg.Preferences.CurrentTestDate, "Yes") {
		f.log.Info("earliest-test mode, requesting earliest date change")
		if err := s.clickID("date-time-change"); err != nil {
			return err
		}
		s.Sleep(1, 2)
		if err := s.clickID("test-choice-earliest"); err != nil {
			return err
		}
		s.Sleep(1, 2)
		s.scrollToBottom()
		s.Sleep(1, 2)
		if err := s.clickID("driving-licence-submit"); err != nil {
			return err
		}

		// Stick to the centre we are already booked at.
		if summaryCentre != "" {
			f.centres = []string{summaryCentre}
		}
		s.Sleep(1, 2)
		return nil
	}

	f.log.Info("changing test centre to begin search")
	if err := s.clickID("test-centre-change"); err != nil {
		return err
	}
	s.Sleep(3, 2)

	if len(f.centres) == 0 {
		f.log.Warn("no centre preference configured")
	} else {
		if err := s.typeInto("test-centres-input", f.centres[0], true); err != nil {
			return err
		}
	}
	if err := s.clickID("test-centres-submit"); err != nil {
		return err
	}
	s.Sleep(5, 2)

	return s.clickSelector(".test-centre-results a")
}

// searchAndBook rotates to the next centre, scans its calendar, and books
// the first qualifying slot it finds.
func (f *RescheduleFlow) searchAndBook() error {
	s := f.session

	if len(f.centres) == 0 {
		f.log.Warn("no test centres to search")
		return nil
	}

	centre := f.centres[s.centreIndex%len(f.centres)]
	s.centreIndex = (s.centreIndex + 1) % len(f.centres)

	if err := f.switchCentre(centre); err != nil {
		f.log.Error("could not switch test centre", zap.Error(err))
		if state := s.CurrentState(); state.Blocked() {
			s.markInactive("blocked while switching centre: " + state.String())
		}
		return nil
	}
	s.Sleep(3, 2)

	html := s.PageHTML()
	if strings.Contains(strings.ToLower(html), "there are no tests available") {
		f.log.Info("no tests available at centre", zap.String("centre", centre))
		return nil
	}
	if state := s.CurrentState(); state != StateOK {
		s.markInactive("blocked after selecting centre: " + state.String())
		return nil
	}

	f.log.Info("tests appear available, scanning calendar", zap.String("centre", centre))

	date, ok := FindPreferredDate(html, buildSearchWindow(f.cfg.Preferences))
	if !ok {
		f.log.Info("no qualifying test dates right now")
		return nil
	}

	slot, err := f.selectSlot(date, centre)
	if err != nil {
		f.log.Error("slot selection failed", zap.Error(err))
		s.CaptureScreenshot("booking_flow")
		return nil
	}

	outcome := finalizeBooking(s, f.log, f.cfg.Preferences.AutoBook)
	switch outcome {
	case OutcomeBooked:
		f.log.Info("test booked",
			zap.String("date", slot.Date), zap.String("time", slot.Time), zap.String("centre", centre))
	case OutcomeReserved:
		f.log.Info("slot reserved, waiting for manual confirmation",
			zap.String("date", slot.Date), zap.String("time", slot.Time))
	case OutcomeSlotTaken:
		f.log.Warn("slot was taken by someone else", zap.String("date", slot.Date))
	default:
		f.log.Warn("could not finalize booking", zap.String("date", slot.Date))
	}
	return nil
}

func (f *RescheduleFlow) switchCentre(centre string) error {
	s := f.session

	f.log.Info("switching test centre", zap.String("centre", centre))
	if err := s.clickID("change-test-centre"); err != nil {
		return err
	}
	s.Sleep(2, 2)

	if err := s.typeInto("test-centres-input", centre, true); err != nil {
		return err
	}
	if err := s.clickID("test-centres-submit"); err != nil {
		return err
	}
	s.Sleep(5, 2)

	return s.clickSelector(".test-centre-results a")
}

// selectSlot clicks the found calendar day, reads the slot details off its
// label, fires the notifications and clicks through the slot warnings up to
// the point where the finalizer takes over.
func (f *RescheduleFlow) selectSlot(date, centre string) (CandidateSlot, error) {
	s := f.session

	f.navigateCalendarToMonth(date)

	if err := s.clickSelector(fmt.Sprintf(`a[%s=%q]`, calendarDateAttr, date)); err != nil {
		return CandidateSlot{}, err
	}

	labelFor, err := s.elementAttr(fmt.Sprintf("#date-%s label", date), "for")
	if err != nil {
		return CandidateSlot{}, err
	}
	timeStr, err := slotTimeFromLabel(labelFor)
	if err != nil {
		return CandidateSlot{}, err
	}

	shortRaw, err := s.elementAttr("#"+labelFor, "data-short-notice")
	shortNotice := err == nil && shortRaw == "true"

	slot := CandidateSlot{Date: date, Time: timeStr, ShortNotice: shortNotice}
	f.log.Info("found test slot",
		zap.String("date", slot.Date), zap.String("time", slot.Time),
		zap.Bool("short_notice", slot.ShortNotice))

	f.notifier.SlotAvailable(slot.Date, slot.Time)
	f.notifier.SlotSelected(centre, slot.Date, slot.Time, slot.ShortNotice)

	if err := s.clickSelector(fmt.Sprintf(`label[for=%q]`, labelFor)); err != nil {
		return CandidateSlot{}, err
	}
	s.Sleep(0.2, 0)
	if err := s.clickID("slot-chosen-submit"); err != nil {
		return CandidateSlot{}, err
	}
	s.Sleep(0.4, 0)

	// Short-notice slots render a second warning button with the same id;
	// the visible one is the second.
	if slot.ShortNotice {
		if err := s.clickNth("#slot-warning-continue", 1); err != nil {
			return CandidateSlot{}, err
		}
	} else {
		if err := s.clickID("slot-warning-continue"); err != nil {
			return CandidateSlot{}, err
		}
	}
	s.Sleep(1, 1)

	return slot, nil
}

// navigateCalendarToMonth pages the calendar backwards until the displayed
// month matches the target date's month, bounded at twelve clicks.
func (f *RescheduleFlow) navigateCalendarToMonth(date string) {
	s := f.session

	target, err := time.Parse(calendarDateFormat, date)
	if err != nil {
		return
	}

	for i := 0; i < 12; i++ {
		month, err := s.elementText(".BookingCalendar-currentMonth")
		if err != nil {
			f.log.Warn("could not read calendar month", zap.Error(err))
			return
		}
		if strings.EqualFold(strings.TrimSpace(month), target.Month().String()) {
			return
		}
		if err := s.clickSelector(".BookingCalendar-nav--prev"); err != nil {
			f.log.Warn("could not page calendar to previous month", zap.Error(err))
			return
		}
		s.Sleep(0.1, 0.2)
	}
}
