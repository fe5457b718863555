package eval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/arxos/graphrules/internal/ast"
	"github.com/arxos/graphrules/internal/grerr"
)

// builtin function set, supplemented from the original Python
// functions.py table (spec.md §4.3 names the same set): date/time
// helpers, string helpers, numeric helpers, and COALESCE/MIN/MAX.
var builtins = map[string]int{ // name -> fixed arg count, -1 means variadic
	"NOW":            0,
	"TODAY":          0,
	"DATETIME_ADD":   3,
	"DATETIME_DIFF":  3,
	"CONCAT":         -1,
	"LENGTH":         1,
	"UPPER":          1,
	"LOWER":          1,
	"TRIM":           1,
	"SUBSTRING":      3,
	"ABS":            1,
	"ROUND":          -1, // 1 or 2 args
	"MIN":            -1,
	"MAX":            -1,
	"COALESCE":       -1,
}

func (ev *Evaluator) evalCall(ctx context.Context, c *EvaluationContext, call ast.Call) (any, error) {
	arity, ok := builtins[call.Name]
	if !ok {
		return nil, grerr.Invalidf("unknown function %q", call.Name)
	}
	if arity >= 0 && len(call.Args) != arity {
		return nil, grerr.Invalidf("%s expects %d argument(s), got %d", call.Name, arity, len(call.Args))
	}

	args := make([]any, len(call.Args))
	for i, a := range call.Args {
		v, err := ev.Eval(ctx, c, a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	switch call.Name {
	case "NOW":
		return time.Now().UTC(), nil
	case "TODAY":
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	case "DATETIME_ADD":
		return datetimeAdd(args)
	case "DATETIME_DIFF":
		return datetimeDiff(args)
	case "CONCAT":
		var b strings.Builder
		for _, a := range args {
			b.WriteString(fmt.Sprint(a))
		}
		return b.String(), nil
	case "LENGTH":
		s, ok := args[0].(string)
		if !ok {
			return nil, grerr.Invalidf("LENGTH requires a string argument")
		}
		return int64(len(s)), nil
	case "UPPER":
		s, ok := args[0].(string)
		if !ok {
			return nil, grerr.Invalidf("UPPER requires a string argument")
		}
		return strings.ToUpper(s), nil
	case "LOWER":
		s, ok := args[0].(string)
		if !ok {
			return nil, grerr.Invalidf("LOWER requires a string argument")
		}
		return strings.ToLower(s), nil
	case "TRIM":
		s, ok := args[0].(string)
		if !ok {
			return nil, grerr.Invalidf("TRIM requires a string argument")
		}
		return strings.TrimSpace(s), nil
	case "SUBSTRING":
		return substring(args)
	case "ABS":
		f, ok := asFloat(args[0])
		if !ok {
			return nil, grerr.Invalidf("ABS requires a numeric argument")
		}
		if f < 0 {
			f = -f
		}
		return f, nil
	case "ROUND":
		return round(args)
	case "MIN":
		return minMax(args, true)
	case "MAX":
		return minMax(args, false)
	case "COALESCE":
		for _, a := range args {
			if a != nil {
				return a, nil
			}
		}
		return nil, nil
	default:
		return nil, grerr.Invalidf("unknown function %q", call.Name)
	}
}

func datetimeAdd(args []any) (any, error) {
	t, ok := args[0].(time.Time)
	if !ok {
		return nil, grerr.Invalidf("DATETIME_ADD requires a datetime as its first argument")
	}
	amount, ok := asFloat(args[1])
	if !ok {
		return nil, grerr.Invalidf("DATETIME_ADD requires a numeric amount")
	}
	unit, ok := args[2].(string)
	if !ok {
		return nil, grerr.Invalidf("DATETIME_ADD requires a unit string")
	}
	switch strings.ToLower(unit) {
	case "seconds", "second":
		return t.Add(time.Duration(amount) * time.Second), nil
	case "minutes", "minute":
		return t.Add(time.Duration(amount) * time.Minute), nil
	case "hours", "hour":
		return t.Add(time.Duration(amount) * time.Hour), nil
	case "days", "day":
		return t.AddDate(0, 0, int(amount)), nil
	case "months", "month":
		return t.AddDate(0, int(amount), 0), nil
	case "years", "year":
		return t.AddDate(int(amount), 0, 0), nil
	default:
		return nil, grerr.Invalidf("unknown DATETIME_ADD unit %q", unit)
	}
}

func datetimeDiff(args []any) (any, error) {
	a, ok1 := args[0].(time.Time)
	b, ok2 := args[1].(time.Time)
	if !ok1 || !ok2 {
		return nil, grerr.Invalidf("DATETIME_DIFF requires two datetimes")
	}
	unit, ok := args[2].(string)
	if !ok {
		return nil, grerr.Invalidf("DATETIME_DIFF requires a unit string")
	}
	d := a.Sub(b)
	switch strings.ToLower(unit) {
	case "seconds", "second":
		return d.Seconds(), nil
	case "minutes", "minute":
		return d.Minutes(), nil
	case "hours", "hour":
		return d.Hours(), nil
	case "days", "day":
		return d.Hours() / 24, nil
	default:
		return nil, grerr.Invalidf("unknown DATETIME_DIFF unit %q", unit)
	}
}

func substring(args []any) (any, error) {
	s, ok := args[0].(string)
	if !ok {
		return nil, grerr.Invalidf("SUBSTRING requires a string as its first argument")
	}
	start, ok1 := asFloat(args[1])
	length, ok2 := asFloat(args[2])
	if !ok1 || !ok2 {
		return nil, grerr.Invalidf("SUBSTRING requires numeric start/length")
	}
	runes := []rune(s)
	st := int(start)
	if st < 0 {
		st = 0
	}
	if st > len(runes) {
		st = len(runes)
	}
	end := st + int(length)
	if end > len(runes) {
		end = len(runes)
	}
	if end < st {
		end = st
	}
	return string(runes[st:end]), nil
}

func round(args []any) (any, error) {
	f, ok := asFloat(args[0])
	if !ok {
		return nil, grerr.Invalidf("ROUND requires a numeric first argument")
	}
	precision := 0
	if len(args) == 2 {
		p, ok := asFloat(args[1])
		if !ok {
			return nil, grerr.Invalidf("ROUND precision must be numeric")
		}
		precision = int(p)
	}
	scaled := f * pow10(precision)
	rounded := float64(int64(scaled + sign(scaled)*0.5))
	return rounded / pow10(precision), nil
}

func pow10(n int) float64 {
	v := 1.0
	for i := 0; i < n; i++ {
		v *= 10
	}
	for i := 0; i > n; i-- {
		v /= 10
	}
	return v
}

func sign(f float64) float64 {
	if f < 0 {
		return -1
	}
	return 1
}

func minMax(args []any, wantMin bool) (any, error) {
	if len(args) == 0 {
		return nil, grerr.Invalidf("MIN/MAX require at least one argument")
	}
	best := args[0]
	bestF, ok := asFloat(best)
	if !ok {
		return nil, grerr.Invalidf("MIN/MAX require numeric arguments")
	}
	for _, a := range args[1:] {
		f, ok := asFloat(a)
		if !ok {
			return nil, grerr.Invalidf("MIN/MAX require numeric arguments")
		}
		if (wantMin && f < bestF) || (!wantMin && f > bestF) {
			best, bestF = a, f
		}
	}
	return best, nil
}
