package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextSlot(t *testing.T) {
	wibAt := func(month time.Month, day, hour int) time.Time {
		return time.Date(2026, month, day, hour, 0, 0, 0, wib)
	}
	p := InterviewPolicy{LeadDays: 3, Hour: 9}

	cases := []struct {
		name string
		p    InterviewPolicy
		now  time.Time
		want time.Time
	}{
		{"monday afternoon", p, t0, wibAt(time.March, 5, 9)},
		{"thursday rolls past weekend", p, wibAt(time.March, 5, 14), wibAt(time.March, 9, 9)},
		{"friday lands on monday", p, wibAt(time.March, 6, 17), wibAt(time.March, 9, 9)},
		{"same day before the hour", InterviewPolicy{Hour: 9}, wibAt(time.March, 2, 8), wibAt(time.March, 2, 9)},
		{"same day after the hour", InterviewPolicy{Hour: 9}, wibAt(time.March, 2, 10), wibAt(time.March, 3, 9)},
		{"saturday with no lead", InterviewPolicy{Hour: 9}, wibAt(time.March, 7, 8), wibAt(time.March, 9, 9)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.p.NextSlot(tc.now)
			assert.True(t, tc.want.Equal(got), "got %v want %v", got, tc.want)
			assert.Equal(t, time.UTC, got.Location())
			assert.True(t, got.After(tc.now))
		})
	}
}

func TestNextSlotCustomZone(t *testing.T) {
	jakarta := time.FixedZone("UTC+8", 8*60*60)
	got := InterviewPolicy{LeadDays: 1, Hour: 10, Location: jakarta}.NextSlot(t0)
	assert.True(t, time.Date(2026, time.March, 3, 10, 0, 0, 0, jakarta).Equal(got))
}
