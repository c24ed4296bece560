package eval

import (
	"math"
	"strings"
	"time"

	"calcfield.io/calc/ast"
	"calcfield.io/calc/object"
	"fortio.org/safecast"
)

func registerDates(r *Registry) {
	for _, b := range []Builtin{
		{Name: "NOW", MinArgs: 0, MaxArgs: 0, Callback: nowFunc, Help: "NOW() current instant"},
		{Name: "YEAR", MinArgs: 1, MaxArgs: 1, Callback: datePart(func(t time.Time) int { return t.Year() }), Help: "YEAR(date)"},
		{Name: "MONTH", MinArgs: 1, MaxArgs: 1, Callback: datePart(func(t time.Time) int { return int(t.Month()) }), Help: "MONTH(date) 1 to 12"},
		{Name: "DAY", MinArgs: 1, MaxArgs: 1, Callback: datePart(func(t time.Time) int { return t.Day() }), Help: "DAY(date), null for null"},
		{Name: "HOUR", MinArgs: 1, MaxArgs: 1, Callback: datePart(func(t time.Time) int { return t.Hour() }), Help: "HOUR(date)"},
		{Name: "MINUTE", MinArgs: 1, MaxArgs: 1, Callback: datePart(func(t time.Time) int { return t.Minute() }), Help: "MINUTE(date)"},
		{Name: "SECOND", MinArgs: 1, MaxArgs: 1, Callback: datePart(func(t time.Time) int { return t.Second() }), Help: "SECOND(date)"},
		{Name: "DATE", MinArgs: 3, MaxArgs: 3, Callback: dateFunc, Help: "DATE(year, month, day)"},
		{Name: "DATEADD", MinArgs: 3, MaxArgs: 3, Callback: dateAdd(1), Help: "DATEADD(date, amount, unit)"},
		{Name: "DATESUBTRACT", MinArgs: 3, MaxArgs: 3, Callback: dateAdd(-1), Help: "DATESUBTRACT(date, amount, unit)"},
		{Name: "DATEDIFF", MinArgs: 2, MaxArgs: 3, Callback: dateDiffFunc, Help: `DATEDIFF(start, end, unit="days") whole units`},
		{Name: "TIMESTAMP", MinArgs: 1, MaxArgs: 1, Callback: timestampFunc, Help: "TIMESTAMP(epoch milliseconds)"},
	} {
		b.Category = "date"
		r.MustCreate(b)
	}
}

// Epoch numbers at or above this magnitude are milliseconds, below seconds.
const millisecondsThreshold = 1e11

// Accepted date string layouts, after numeric strings.
var dateLayouts = []string{
	time.RFC3339Nano,
	object.DateLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// toDate coerces a date, epoch number (seconds or milliseconds), numeric
// string or ISO-8601 string to a UTC time.
func toDate(fn string, pos int, v object.Value) (time.Time, error) {
	switch v := v.(type) {
	case object.Date:
		return v.Value.UTC(), nil
	case object.Number:
		return fromEpoch(fn, v.Value)
	case object.String:
		s := strings.TrimSpace(v.Value)
		if f, err := ParseNumber(s); err == nil {
			return fromEpoch(fn, f)
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, object.NewInvalidArguments(fn, "cannot parse %q as a date", v.Value)
	default:
		return time.Time{}, object.NewTypeMismatch(fn, pos, "date", v)
	}
}

func fromEpoch(fn string, n float64) (time.Time, error) {
	ms := n
	if math.Abs(n) < millisecondsThreshold {
		ms = n * 1000
	}
	return fromMilliseconds(fn, ms)
}

func fromMilliseconds(fn string, ms float64) (time.Time, error) {
	i, err := safecast.Convert[int64](math.Round(ms))
	if err != nil {
		return time.Time{}, object.NewInvalidArguments(fn, "timestamp %s out of range", object.FormatNumber(ms))
	}
	return time.UnixMilli(i).UTC(), nil
}

func nowFunc(ev *Evaluator, _ Context, _ string, _ []ast.Node) (object.Value, error) {
	return object.NewDate(ev.Now()), nil
}

// DAY is documented to map null to null, the other parts are strict.
func datePart(part func(time.Time) int) Function {
	return func(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
		v, err := ev.Eval(args[0], ctx)
		if err != nil {
			return nil, err
		}
		if name == "DAY" && v.Type() == object.NIL {
			return object.NULL, nil
		}
		t, err := toDate(name, 1, v)
		if err != nil {
			return nil, err
		}
		return object.Number{Value: float64(part(t))}, nil
	}
}

func dateFunc(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
	values, err := ev.evalArgs(ctx, args)
	if err != nil {
		return nil, err
	}
	var parts [3]int
	for i, v := range values {
		if parts[i], err = argInt(name, i+1, v); err != nil {
			return nil, err
		}
	}
	year, month, day := parts[0], parts[1], parts[2]
	if year < 1 || year > 9999 || month < 1 || month > 12 || day < 1 || day > daysIn(year, time.Month(month)) {
		return nil, object.NewInvalidArguments(name, "invalid date year %d month %d day %d", year, month, day)
	}
	return object.NewDate(time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)), nil
}

func daysIn(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Canonical unit for each accepted (lower case) alias.
var unitAliases = map[string]string{
	"years": "years", "year": "years", "y": "years",
	"months": "months", "month": "months", "m": "months",
	"weeks": "weeks", "week": "weeks", "w": "weeks",
	"days": "days", "day": "days", "d": "days",
	"hours": "hours", "hour": "hours", "h": "hours",
	"minutes": "minutes", "minute": "minutes", "min": "minutes",
	"seconds": "seconds", "second": "seconds", "s": "seconds",
	"milliseconds": "milliseconds", "millisecond": "milliseconds", "ms": "milliseconds",
}

var unitDurations = map[string]time.Duration{
	"weeks":        7 * 24 * time.Hour,
	"days":         24 * time.Hour,
	"hours":        time.Hour,
	"minutes":      time.Minute,
	"seconds":      time.Second,
	"milliseconds": time.Millisecond,
}

func argUnit(fn string, pos int, v object.Value) (string, error) {
	s, err := argString(fn, pos, v)
	if err != nil {
		return "", err
	}
	unit, ok := unitAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", object.NewInvalidArguments(fn, "unknown date unit %q", s)
	}
	return unit, nil
}

func dateAdd(sign float64) Function {
	return func(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
		values, err := ev.evalArgs(ctx, args)
		if err != nil {
			return nil, err
		}
		t, err := toDate(name, 1, values[0])
		if err != nil {
			return nil, err
		}
		amount, err := argNumber(name, 2, values[1])
		if err != nil {
			return nil, err
		}
		unit, err := argUnit(name, 3, values[2])
		if err != nil {
			return nil, err
		}
		amount *= sign
		outOfRange := object.NewInvalidArguments(name, "%s %s is out of range", object.FormatNumber(amount), unit)
		var res time.Time
		switch unit {
		case "years", "months":
			perUnit := 1
			if unit == "years" {
				perUnit = 12
			}
			if math.Abs(amount)*float64(perUnit) > maxMonths {
				return nil, outOfRange
			}
			n, err := toInt(name, 2, amount)
			if err != nil {
				return nil, err
			}
			res = AddMonths(t, n*perUnit)
		default:
			ns := amount * float64(unitDurations[unit])
			if math.IsNaN(ns) || math.Abs(ns) >= math.MaxInt64 {
				return nil, outOfRange
			}
			res = t.Add(time.Duration(ns))
		}
		if res.Year() < 1 || res.Year() > 9999 {
			return nil, outOfRange
		}
		return object.NewDate(res), nil
	}
}

// Span of the years 1 to 9999, any larger month count lands outside of them.
const maxMonths = 12 * 9999

// AddMonths adds months calendar months to t, clamping the day to the end of
// the target month: Jan 31 + 1 month is the last day of February.
func AddMonths(t time.Time, months int) time.Time {
	t = t.UTC()
	total := int(t.Month()) - 1 + months
	year := t.Year() + total/12
	month := total % 12
	if month < 0 {
		month += 12
		year--
	}
	m := time.Month(month + 1)
	day := min(t.Day(), daysIn(year, m))
	return time.Date(year, m, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func dateDiffFunc(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
	values, err := ev.evalArgs(ctx, args)
	if err != nil {
		return nil, err
	}
	start, err := toDate(name, 1, values[0])
	if err != nil {
		return nil, err
	}
	end, err := toDate(name, 2, values[1])
	if err != nil {
		return nil, err
	}
	unit := "days"
	if len(values) > 2 {
		if unit, err = argUnit(name, 3, values[2]); err != nil {
			return nil, err
		}
	}
	switch unit {
	case "years":
		return object.Number{Value: float64(monthsBetween(start, end) / 12)}, nil
	case "months":
		return object.Number{Value: float64(monthsBetween(start, end))}, nil
	default:
		// Not end.Sub(start), which saturates past 292 years.
		ms := end.UnixMilli() - start.UnixMilli()
		return object.Number{Value: float64(ms / unitDurations[unit].Milliseconds())}, nil
	}
}

// monthsBetween is the number of whole calendar months from start to end,
// truncated toward zero.
func monthsBetween(start, end time.Time) int {
	months := (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month())
	switch {
	case months > 0 && AddMonths(start, months).After(end):
		months--
	case months < 0 && AddMonths(start, months).Before(end):
		months++
	}
	return months
}

// Numbers are always milliseconds here, other values go through the usual coercion.
func timestampFunc(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
	v, err := ev.Eval(args[0], ctx)
	if err != nil {
		return nil, err
	}
	if n, ok := v.(object.Number); ok {
		t, err := fromMilliseconds(name, n.Value)
		if err != nil {
			return nil, err
		}
		return object.NewDate(t), nil
	}
	t, err := toDate(name, 1, v)
	if err != nil {
		return nil, err
	}
	return object.NewDate(t), nil
}
