package timegrid

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MELR22/rissa-plotter/pkg/errs"
)

const day = 24 * time.Hour

type kind int

const (
	kindFixed kind = iota
	kindSemiMonthStart
	kindSemiMonthEnd
	kindMonthStart
	kindMonthEnd
)

// Frequency is a parsed grid frequency specifier.
//
// Supported specifiers:
//
//	D, 3D      fixed steps of n days
//	W, 2W      fixed steps of n weeks
//	SMS        semi-month start: the 1st and the 15th
//	SME        semi-month end: the 15th and the last day of the month
//	MS, ME     month start, month end
type Frequency struct {
	name string
	kind kind
	step time.Duration
}

// DefaultFrequency is the semi-monthly grid used for seasonal comparisons
const DefaultFrequency = "SME"

// ParseFrequency parses a frequency specifier. Unknown specifiers are a
// configuration error.
func ParseFrequency(spec string) (Frequency, error) {
	s := strings.ToUpper(strings.TrimSpace(spec))
	switch s {
	case "SMS":
		return Frequency{name: s, kind: kindSemiMonthStart}, nil
	case "SME", "SM":
		return Frequency{name: "SME", kind: kindSemiMonthEnd}, nil
	case "MS":
		return Frequency{name: s, kind: kindMonthStart}, nil
	case "ME", "M":
		return Frequency{name: "ME", kind: kindMonthEnd}, nil
	case "":
		return Frequency{}, errs.ErrConfiguration.New("empty frequency specifier")
	}

	unit := s[len(s)-1]
	var base time.Duration
	switch unit {
	case 'D':
		base = day
	case 'W':
		base = 7 * day
	default:
		return Frequency{}, errs.ErrConfiguration.New(fmt.Sprintf("unrecognized frequency %q", spec))
	}

	n := 1
	if digits := s[:len(s)-1]; digits != "" {
		parsed, err := strconv.Atoi(digits)
		if err != nil || parsed <= 0 {
			return Frequency{}, errs.ErrConfiguration.New(fmt.Sprintf("unrecognized frequency %q", spec))
		}
		n = parsed
	}

	return Frequency{name: s, kind: kindFixed, step: time.Duration(n) * base}, nil
}

// MustParseFrequency is like ParseFrequency but panics on error
func MustParseFrequency(spec string) Frequency {
	f, err := ParseFrequency(spec)
	if err != nil {
		panic(err)
	}
	return f
}

// String returns the canonical specifier
func (f Frequency) String() string {
	return f.name
}

// Step returns the fixed step, or zero for calendar-anchored frequencies
func (f Frequency) Step() time.Duration {
	return f.step
}

// Anchored reports whether grid points fall on calendar anchors
func (f Frequency) Anchored() bool {
	return f.kind != kindFixed
}

// floor returns the latest anchor at or before t
func (f Frequency) floor(t time.Time) time.Time {
	loc := t.Location()
	y, m, d := t.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, loc)
	fifteenth := time.Date(y, m, 15, 0, 0, 0, 0, loc)
	last := lastOfMonth(y, m, loc)

	switch f.kind {
	case kindSemiMonthStart:
		if d >= 15 {
			return fifteenth
		}
		return first
	case kindSemiMonthEnd:
		if !t.Before(last) {
			return last
		}
		if !t.Before(fifteenth) {
			return fifteenth
		}
		return first.AddDate(0, 0, -1)
	case kindMonthStart:
		return first
	case kindMonthEnd:
		if !t.Before(last) {
			return last
		}
		return first.AddDate(0, 0, -1)
	}
	return t
}

// next returns the anchor following a, which must itself be an anchor
func (f Frequency) next(a time.Time) time.Time {
	loc := a.Location()
	y, m, d := a.Date()

	switch f.kind {
	case kindSemiMonthStart:
		if d < 15 {
			return time.Date(y, m, 15, 0, 0, 0, 0, loc)
		}
		return time.Date(y, m+1, 1, 0, 0, 0, 0, loc)
	case kindSemiMonthEnd:
		if d == 15 {
			return lastOfMonth(y, m, loc)
		}
		return time.Date(y, m+1, 15, 0, 0, 0, 0, loc)
	case kindMonthStart:
		return time.Date(y, m+1, 1, 0, 0, 0, 0, loc)
	case kindMonthEnd:
		return lastOfMonth(y, m+1, loc)
	}
	return a.Add(f.step)
}

func lastOfMonth(y int, m time.Month, loc *time.Location) time.Time {
	return time.Date(y, m+1, 1, 0, 0, 0, 0, loc).AddDate(0, 0, -1)
}
