// Copyright (c) 2025, the vodvault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package offline

import (
	"fmt"
	"time"
)

// DefaultRetentionWindow is how long an artifact stays playable after
// acquisition.
const DefaultRetentionWindow = 30 * 24 * time.Hour

// expiredDisplay is the sentinel rendering for an expired artifact.
const expiredDisplay = "0:00:00"

// TimeLeft is the remaining lifetime of an artifact, decomposed for display.
// It is always recomputed from (acquiredAt, now, window), never persisted.
type TimeLeft struct {
	Days    int
	Hours   int
	Minutes int
	Expired bool
}

// Remaining computes the lifetime left in an artifact's retention window.
// The decomposition floors at every step: whole days, then whole hours within
// the day, then whole minutes within the hour. It never rounds up, so an
// artifact with 59 seconds left still displays 0d:00h:00m.
func Remaining(acquiredAt, now time.Time, window time.Duration) TimeLeft {
	rem := window - now.Sub(acquiredAt)
	if rem <= 0 {
		return TimeLeft{Expired: true}
	}

	return TimeLeft{
		Days:    int(rem / (24 * time.Hour)),
		Hours:   int((rem % (24 * time.Hour)) / time.Hour),
		Minutes: int((rem % time.Hour) / time.Minute),
	}
}

// String renders the display form: "0:00:00" when expired, otherwise
// "Nd:HHh:MMm" with zero-padded hours and minutes.
func (t TimeLeft) String() string {
	if t.Expired {
		return expiredDisplay
	}
	return fmt.Sprintf("%dd:%02dh:%02dm", t.Days, t.Hours, t.Minutes)
}

// MarshalText makes TimeLeft render as its display string in JSON payloads.
func (t TimeLeft) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}
