package service

import "time"

// InterviewPolicy places automatically scheduled interviews.
type InterviewPolicy struct {
	LeadDays int
	Hour     int
	Location *time.Location
}

var wib = time.FixedZone("WIB", 7*60*60)

// NextSlot is the first weekday at least LeadDays after now, at Hour local
// time, and always strictly after now.
func (p InterviewPolicy) NextSlot(now time.Time) time.Time {
	loc := p.Location
	if loc == nil {
		loc = wib
	}
	local := now.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), p.Hour, 0, 0, 0, loc).AddDate(0, 0, p.LeadDays)
	for isWeekend(day) || !day.After(local) {
		day = day.AddDate(0, 0, 1)
	}
	return day.UTC()
}

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}
