package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Calendar markup hooks. Like the classifier signatures, these are the whole
// contract with the site's markup and live in one place.
const (
	calendarBodySelector  = ".BookingCalendar-datesBody td"
	unavailableClassMark  = "--unavailable"
	calendarDateAttr      = "data-date"
	calendarDateFormat    = "2006-01-02"
	bookingSummaryDateFmt = "Monday 2 January 2006 3:04PM"
)

// Sentinel bounds used when the user supplied no explicit date limits.
var (
	farFuture = time.Date(2050, 12, 12, 0, 0, 0, 0, time.UTC)
	farPast   = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
)

// CandidateSlot is a slot the scanner picked and the finalizer consumes.
// Purely ephemeral.
type CandidateSlot struct {
	Date        string // "2006-01-02"
	Time        string // "15:04"
	ShortNotice bool
}

// SearchWindow is the fully-resolved filter the scanner applies to calendar
// days. Build it once per scan with buildSearchWindow.
type SearchWindow struct {
	// Before is the exclusive upper bound: a qualifying date is strictly
	// earlier than it.
	Before time.Time
	// After is the exclusive lower bound.
	After time.Time
	// Excluded holds dates the user never wants, keyed by "2006-01-02".
	Excluded map[string]bool
	// CurrentFormatted is the already-held test date; never re-pick it.
	CurrentFormatted string
}

// buildSearchWindow derives the scanner bounds from the preferences.
//
// The upper bound starts from the current test date (anything earlier than it
// is an improvement): the day before the booked test, or the far-future
// sentinel when the date is "Yes" (earliest-test mode) or unparsable. An
// explicit before-date overrides it only when it cuts off earlier. The lower
// bound is the after-date, or the far-past sentinel.
func buildSearchWindow(p Preferences) SearchWindow {
	before := farFuture
	if !strings.Contains(p.CurrentTestDate, "Yes") {
		if current, err := time.Parse(bookingSummaryDateFmt, p.CurrentTestDate); err == nil {
			before = current.AddDate(0, 0, -1)
		}
	}

	if explicit, ok := parseDateBound(p.BeforeDate); ok && explicit.Before(before) {
		before = explicit
	}

	after := farPast
	if explicit, ok := parseDateBound(p.AfterDate); ok {
		after = explicit
	}

	excluded := make(map[string]bool, len(p.ExcludedDates))
	for _, d := range p.ExcludedDates {
		excluded[d] = true
	}

	return SearchWindow{
		Before:           before,
		After:            after,
		Excluded:         excluded,
		CurrentFormatted: p.FormattedCurrentTestDate,
	}
}

// parseDateBound parses a user-supplied "2006-01-02" bound. Empty and the
// literal "None" mean unset.
func parseDateBound(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "None" {
		return time.Time{}, false
	}
	t, err := time.Parse(calendarDateFormat, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Accepts reports whether a single calendar date passes every filter.
func (w SearchWindow) Accepts(d time.Time, raw string) bool {
	if !d.Before(w.Before) || !d.After(w.After) {
		return false
	}
	if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	if w.Excluded[raw] {
		return false
	}
	if raw == w.CurrentFormatted {
		return false
	}
	return true
}

// FindPreferredDate scans the rendered calendar grid for the first day, in
// document order, that passes the window filters. Cells marked unavailable
// are skipped without ever reading their date attribute (unavailable cells
// may not carry one). A missing grid or no qualifying day is simply a
// not-found, never an error.
func FindPreferredDate(html string, w SearchWindow) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}

	found := ""
	doc.Find(calendarBodySelector).EachWithBreak(func(_ int, cell *goquery.Selection) bool {
		class, _ := cell.Attr("class")
		if strings.Contains(class, unavailableClassMark) {
			return true
		}

		link := cell.Find("a").First()
		if link.Length() == 0 {
			return true
		}
		raw, ok := link.Attr(calendarDateAttr)
		if !ok {
			return true
		}

		d, err := time.Parse(calendarDateFormat, raw)
		if err != nil {
			return true
		}

		if w.Accepts(d, raw) {
			found = raw
			return false
		}
		return true
	})

	return found, found != ""
}

// firstBookableDate returns the data-date of the first cell flagged bookable,
// used by the initial booking flow where any open day will do.
func firstBookableDate(html string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}

	link := doc.Find(".BookingCalendar-datesBody .BookingCalendar-date--bookable a").First()
	if link.Length() == 0 {
		return "", false
	}
	raw, ok := link.Attr(calendarDateAttr)
	return raw, ok && raw != ""
}

// slotTimeFromLabel extracts the appointment time from a slot label's "for"
// attribute, which encodes the slot as unix epoch milliseconds
// ("slot-1742220600000").
func slotTimeFromLabel(labelFor string) (string, error) {
	raw := strings.TrimPrefix(labelFor, "slot-")
	if raw == labelFor {
		return "", fmt.Errorf("label target %q does not name a slot", labelFor)
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid slot timestamp %q: %w", raw, err)
	}
	return time.UnixMilli(ms).Format("15:04"), nil
}

// parseBookingSummary pulls the current test date and centre out of the
// post-login summary page. Either value may come back empty when the layout
// is not what we expect; callers treat that as "unknown", not an error.
func parseBookingSummary(html string) (testDate, testCentre string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", ""
	}

	contents := doc.Find(".contents")
	if contents.Length() < 2 {
		return "", ""
	}

	testDate = strings.TrimSpace(contents.Eq(0).Find("dd").First().Text())
	testCentre = strings.TrimSpace(contents.Eq(1).Find("dd").First().Text())
	return testDate, testCentre
}
