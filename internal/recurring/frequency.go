package recurring

import (
	"strings"
	"time"
)

// Frequency is the closed set of billing-frequency tags carried on invoiced
// recurring services. Unknown raw tags keep their text and fall back to the
// monthly rule.
type Frequency struct {
	kind frequencyKind
	raw  string
}

type frequencyKind int

const (
	freqUnknown frequencyKind = iota
	freqDiario
	freqSemanal
	freqBisemanal
	freqMensual
	freqBimensual
	freqTrimestral
	freqSemestral
	freqAnual
)

var frequencyTags = map[string]frequencyKind{
	"diario":     freqDiario,
	"semanal":    freqSemanal,
	"bisemanal":  freqBisemanal,
	"mensual":    freqMensual,
	"bimensual":  freqBimensual,
	"trimestral": freqTrimestral,
	"semestral":  freqSemestral,
	"anual":      freqAnual,
}

// ParseFrequency matches the exact lowercase tag. Anything else becomes an
// unknown frequency that schedules like "mensual".
func ParseFrequency(raw string) Frequency {
	tag := strings.ToLower(strings.TrimSpace(raw))
	if k, ok := frequencyTags[tag]; ok {
		return Frequency{kind: k, raw: tag}
	}
	return Frequency{kind: freqUnknown, raw: raw}
}

func (f Frequency) String() string {
	for tag, k := range frequencyTags {
		if k == f.kind {
			return tag
		}
	}
	return "unknown(" + f.raw + ")"
}

// Daily reports whether the frequency fans out one task per business day.
func (f Frequency) Daily() bool { return f.kind == freqDiario }

// Weekly reports whether the frequency fans out over Wednesdays
// (semanal or bisemanal).
func (f Frequency) Weekly() bool {
	return f.kind == freqSemanal || f.kind == freqBisemanal
}

// Dates maps the frequency onto the task dates of the given month.
//
// month may be any instant; only its year/month (and location) are used.
// The result is empty when the frequency skips the month entirely
// (bimensual in odd months, trimestral outside quarter starts, ...).
// Business-day adjustment may push a date past month end; it is returned
// as-is, without clamping.
func (f Frequency) Dates(month time.Time, cal BusinessCalendar) []time.Time {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, month.Location())

	switch f.kind {
	case freqDiario:
		return businessDays(first, cal)
	case freqSemanal:
		return wednesdays(first, 7, cal)
	case freqBisemanal:
		return wednesdays(first, 14, cal)
	case freqBimensual:
		if int(first.Month())%2 != 0 {
			return nil
		}
	case freqTrimestral:
		if int(first.Month())%3 != 1 {
			return nil
		}
	case freqSemestral:
		if m := first.Month(); m != time.January && m != time.July {
			return nil
		}
	case freqAnual:
		if first.Month() != time.January {
			return nil
		}
	}

	// mensual, the passing cases above, and unknown tags.
	return []time.Time{cal.NextBusinessDay(lastWednesday(first))}
}

func businessDays(first time.Time, cal BusinessCalendar) []time.Time {
	var out []time.Time
	for d := first; d.Month() == first.Month(); d = d.AddDate(0, 0, 1) {
		if cal.NextBusinessDay(d).Equal(d) {
			out = append(out, d)
		}
	}
	return out
}

// wednesdays walks from the first Wednesday of the month at the given stride,
// adjusting each hit forward to a business day.
func wednesdays(first time.Time, strideDays int, cal BusinessCalendar) []time.Time {
	var out []time.Time
	for d := firstWednesday(first); d.Month() == first.Month(); d = d.AddDate(0, 0, strideDays) {
		out = append(out, cal.NextBusinessDay(d))
	}
	return out
}

func firstWednesday(first time.Time) time.Time {
	d := first
	for d.Weekday() != time.Wednesday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func lastWednesday(first time.Time) time.Time {
	d := first.AddDate(0, 1, -1) // last day of the month
	for d.Weekday() != time.Wednesday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}
