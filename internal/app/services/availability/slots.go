// Package availability computes the free booking slots of a business day.
package availability

import (
	"fmt"
	"time"

	"github.com/gestly/gestly/internal/app/domain/appointment"
	"github.com/gestly/gestly/internal/app/domain/business"
)

// DefaultInterval is used when a business has no slot interval configured.
const (
	DefaultInterval = 30
	MinInterval     = 5
)

// Slot is a bookable start time and the attendants free for it.
type Slot struct {
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	AttendantIDs []string  `json:"attendant_ids,omitempty"`
}

// Input is everything Calculate needs about one day.
type Input struct {
	Location *time.Location
	// Date is the calendar day, YYYY-MM-DD, in Location.
	Date      string
	Hours     business.DayHours
	Interval  int
	MinNotice int
	Duration  int
	// Attendants are candidate attendant ids in preference order. Empty
	// means the business books without staff assignment.
	Attendants   []string
	Appointments []appointment.Appointment
	Now          time.Time
}

// Overlaps reports whether [a, b) and [c, d) intersect.
func Overlaps(a, b, c, d time.Time) bool {
	return a.Before(d) && c.Before(b)
}

// Calculate walks the opening window in interval steps and returns the
// slots where the service fits.
func Calculate(in Input) ([]Slot, error) {
	if in.Duration <= 0 {
		return nil, fmt.Errorf("duration must be positive")
	}
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation(business.DateLayout, in.Date, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, want YYYY-MM-DD", in.Date)
	}
	if in.Hours.Closed {
		return nil, nil
	}
	if err := in.Hours.Validate(); err != nil {
		return nil, err
	}

	at := func(minutes int) time.Time {
		return time.Date(day.Year(), day.Month(), day.Day(), 0, minutes, 0, 0, loc)
	}
	open, _ := business.ParseClock(in.Hours.Open)
	closeAt, _ := business.ParseClock(in.Hours.Close)

	var breakStart, breakEnd time.Time
	hasBreak := in.Hours.BreakStart != "" && in.Hours.BreakEnd != ""
	if hasBreak {
		bs, _ := business.ParseClock(in.Hours.BreakStart)
		be, _ := business.ParseClock(in.Hours.BreakEnd)
		breakStart, breakEnd = at(bs), at(be)
	}

	step := in.Interval
	if step <= 0 {
		step = DefaultInterval
	}
	if step < MinInterval {
		step = MinInterval
	}
	earliest := in.Now.Add(time.Duration(in.MinNotice) * time.Minute)
	closing := at(closeAt)
	length := time.Duration(in.Duration) * time.Minute

	var slots []Slot
	for m := open; m+in.Duration <= closeAt; m += step {
		start := at(m)
		// Wall times skipped by a DST jump normalise to a later hour.
		if start.Hour()*60+start.Minute() != m {
			continue
		}
		end := start.Add(length)
		if end.After(closing) || start.Before(earliest) {
			continue
		}
		if hasBreak && Overlaps(start, end, breakStart, breakEnd) {
			continue
		}
		if len(in.Attendants) == 0 {
			if !overlapsAny(in.Appointments, start, end, "") {
				slots = append(slots, Slot{Start: start, End: end})
			}
			continue
		}
		var free []string
		for _, id := range in.Attendants {
			if !overlapsAny(in.Appointments, start, end, id) {
				free = append(free, id)
			}
		}
		if len(free) > 0 {
			slots = append(slots, Slot{Start: start, End: end, AttendantIDs: free})
		}
	}
	return slots, nil
}

// overlapsAny reports whether an appointment blocking attendantID overlaps
// [start, end). An empty attendantID means any appointment blocks.
func overlapsAny(appts []appointment.Appointment, start, end time.Time, attendantID string) bool {
	for _, a := range appts {
		if !a.Blocks() {
			continue
		}
		if attendantID != "" && a.AttendantID != "" && a.AttendantID != attendantID {
			continue
		}
		if Overlaps(start, end, a.StartAt, a.EndAt) {
			return true
		}
	}
	return false
}

// Find returns the slot starting at start, if any.
func Find(slots []Slot, start time.Time) (Slot, bool) {
	for _, s := range slots {
		if s.Start.Equal(start) {
			return s, true
		}
	}
	return Slot{}, false
}
