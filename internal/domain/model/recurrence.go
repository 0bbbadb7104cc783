package model

import (
	"fmt"
	"strconv"
	"time"
)

// ClockTime is a wall-clock time of day with minute precision.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses a strict "HH:MM" 24-hour time.
func ParseClockTime(s string) (ClockTime, error) {
	if len(s) != 5 || s[2] != ':' {
		return ClockTime{}, fmt.Errorf("time %q: expected HH:MM", s)
	}

	hour, err := strconv.Atoi(s[:2])
	if err != nil || !isDigits(s[:2]) {
		return ClockTime{}, fmt.Errorf("time %q: invalid hour", s)
	}
	minute, err := strconv.Atoi(s[3:])
	if err != nil || !isDigits(s[3:]) {
		return ClockTime{}, fmt.Errorf("time %q: invalid minute", s)
	}

	c := ClockTime{Hour: hour, Minute: minute}
	if !c.valid() {
		return ClockTime{}, fmt.Errorf("time %q: out of range", s)
	}
	return c, nil
}

func isDigits(s string) bool {
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}

func (c ClockTime) valid() bool {
	return c.Hour >= 0 && c.Hour <= 23 && c.Minute >= 0 && c.Minute <= 59
}

// String formats the time as HH:MM.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Recurrence is the rule deciding when a scheduled task fires. The concrete
// variants are Immediate, Daily, Weekly and Monthly.
type Recurrence interface {
	Frequency() Frequency
	// Describe returns a fixed-locale description such as "every Monday 09:00".
	Describe() string
	// CronExpr returns the 5-field cron form of the rule. Immediate has none.
	CronExpr() (string, bool)
	// Fields flattens the rule into its storage and wire form.
	Fields() RecurrenceFields
	validate() *ValidationError
}

// Immediate fires once when saved and again on every manual execution.
type Immediate struct{}

// Daily fires every calendar day at At.
type Daily struct {
	At ClockTime
}

// Weekly fires on Weekday (1=Monday ... 7=Sunday) at At.
type Weekly struct {
	Weekday int
	At      ClockTime
}

// Monthly fires on Day (1-28) of every month at At.
type Monthly struct {
	Day int
	At  ClockTime
}

func (Immediate) Frequency() Frequency { return FrequencyImmediate }
func (Daily) Frequency() Frequency     { return FrequencyDaily }
func (Weekly) Frequency() Frequency    { return FrequencyWeekly }
func (Monthly) Frequency() Frequency   { return FrequencyMonthly }

func (Immediate) Describe() string { return "immediate (one-off)" }

func (r Daily) Describe() string { return "every day " + r.At.String() }

func (r Weekly) Describe() string {
	return fmt.Sprintf("every %s %s", WeekdayName(r.Weekday), r.At)
}

func (r Monthly) Describe() string {
	return fmt.Sprintf("day %d of every month %s", r.Day, r.At)
}

func (Immediate) CronExpr() (string, bool) { return "", false }

func (r Daily) CronExpr() (string, bool) {
	return fmt.Sprintf("%d %d * * *", r.At.Minute, r.At.Hour), true
}

func (r Weekly) CronExpr() (string, bool) {
	return fmt.Sprintf("%d %d * * %d", r.At.Minute, r.At.Hour, r.Weekday%7), true
}

func (r Monthly) CronExpr() (string, bool) {
	return fmt.Sprintf("%d %d %d * *", r.At.Minute, r.At.Hour, r.Day), true
}

func (Immediate) Fields() RecurrenceFields {
	return RecurrenceFields{Frequency: FrequencyImmediate}
}

func (r Daily) Fields() RecurrenceFields {
	return RecurrenceFields{Frequency: FrequencyDaily, ExecuteTime: r.At.String()}
}

func (r Weekly) Fields() RecurrenceFields {
	weekday := r.Weekday
	return RecurrenceFields{Frequency: FrequencyWeekly, Weekday: &weekday, ExecuteTime: r.At.String()}
}

func (r Monthly) Fields() RecurrenceFields {
	day := r.Day
	return RecurrenceFields{Frequency: FrequencyMonthly, MonthDay: &day, ExecuteTime: r.At.String()}
}

func (Immediate) validate() *ValidationError { return nil }

func (r Daily) validate() *ValidationError {
	return validateClock(r.At)
}

func (r Weekly) validate() *ValidationError {
	if r.Weekday < 1 || r.Weekday > 7 {
		return &ValidationError{Field: "weekday", Reason: "must be between 1 (Monday) and 7 (Sunday)"}
	}
	return validateClock(r.At)
}

func (r Monthly) validate() *ValidationError {
	if r.Day < 1 || r.Day > 28 {
		return &ValidationError{Field: "monthDay", Reason: "must be between 1 and 28"}
	}
	return validateClock(r.At)
}

func validateClock(c ClockTime) *ValidationError {
	if !c.valid() {
		return &ValidationError{Field: "executeTime", Reason: "must be a valid HH:MM time"}
	}
	return nil
}

// ValidateRecurrence checks the frequency-specific payload of r.
func ValidateRecurrence(r Recurrence) error {
	if r == nil {
		return &ValidationError{Field: "frequency", Reason: "is required"}
	}
	if verr := r.validate(); verr != nil {
		return verr
	}
	return nil
}

// WeekdayName returns the English name of an ISO weekday (1=Monday ... 7=Sunday).
func WeekdayName(isoWeekday int) string {
	if isoWeekday < 1 || isoWeekday > 7 {
		return fmt.Sprintf("weekday(%d)", isoWeekday)
	}
	return time.Weekday(isoWeekday % 7).String()
}

// RecurrenceFields is the flat form of a recurrence used by storage and the
// REST API. Only the fields relevant to Frequency are populated.
type RecurrenceFields struct {
	Frequency   Frequency
	Weekday     *int
	MonthDay    *int
	ExecuteTime string
}

// ParseRecurrence builds a Recurrence from its flat form. Fields that the
// frequency does not use are ignored. Errors are *ValidationError.
func ParseRecurrence(f RecurrenceFields) (Recurrence, error) {
	if f.Frequency == FrequencyImmediate {
		return Immediate{}, nil
	}

	var r Recurrence
	switch f.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
	case "":
		return nil, &ValidationError{Field: "frequency", Reason: "is required"}
	default:
		return nil, &ValidationError{Field: "frequency", Reason: fmt.Sprintf("unknown frequency %q", f.Frequency)}
	}

	if f.ExecuteTime == "" {
		return nil, &ValidationError{Field: "executeTime", Reason: "is required"}
	}
	at, err := ParseClockTime(f.ExecuteTime)
	if err != nil {
		return nil, &ValidationError{Field: "executeTime", Reason: "must be a valid HH:MM time"}
	}

	switch f.Frequency {
	case FrequencyDaily:
		r = Daily{At: at}
	case FrequencyWeekly:
		if f.Weekday == nil {
			return nil, &ValidationError{Field: "weekday", Reason: "is required for weekly tasks"}
		}
		r = Weekly{Weekday: *f.Weekday, At: at}
	case FrequencyMonthly:
		if f.MonthDay == nil {
			return nil, &ValidationError{Field: "monthDay", Reason: "is required for monthly tasks"}
		}
		r = Monthly{Day: *f.MonthDay, At: at}
	}

	if verr := r.validate(); verr != nil {
		return nil, verr
	}
	return r, nil
}
