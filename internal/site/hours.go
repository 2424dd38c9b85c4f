package site

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Bahrain observes UTC+3 all year; the fixed zone covers hosts without tzdata.
var bahrain = func() *time.Location {
	if loc, err := time.LoadLocation("Asia/Bahrain"); err == nil {
		return loc
	}
	return time.FixedZone("AST", 3*60*60)
}()

// Location returns the zone used for opening hours and order timestamps.
func Location() *time.Location { return bahrain }

// Hours is a daily opening window in "HH:MM". A close at or before open means the
// window runs past midnight.
type Hours struct {
	Open  string `yaml:"open"`
	Close string `yaml:"close"`
}

func (h Hours) empty() bool { return h.Open == "" && h.Close == "" }

func (h Hours) minutes() (int, int, error) {
	open, err := clockMinutes(h.Open)
	if err != nil {
		return 0, 0, err
	}
	closing, err := clockMinutes(h.Close)
	if err != nil {
		return 0, 0, err
	}
	return open, closing, nil
}

// IsOpenAt reports whether t (converted to Bahrain time) falls inside the window.
// Branches without hours are treated as closed.
func (h Hours) IsOpenAt(t time.Time) bool {
	open, closing, err := h.minutes()
	if err != nil {
		return false
	}
	local := t.In(bahrain)
	now := local.Hour()*60 + local.Minute()
	if closing <= open {
		return now >= open || now < closing
	}
	return now >= open && now < closing
}

// IsOpenNow reports whether the branch is open at t.
func (b Branch) IsOpenNow(t time.Time) bool { return b.Hours.IsOpenAt(t) }

func clockMinutes(value string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return 0, fmt.Errorf("invalid clock %q", value)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", value)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", value)
	}
	return h*60 + m, nil
}
